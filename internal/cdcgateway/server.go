// Package cdcgateway is the HTTP front door for deploying pipeline
// definitions to a remote cluster: it accepts a YAML file, persists it to a
// shared directory, and hands it to a runner that submits it on the job
// manager. It is plain CRUD over a directory plus one shell-out; all job
// state lives in the cluster.
package cdcgateway

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/streamhouse/flinksql-go/logger"
)

// Runner submits a saved pipeline definition to the cluster and returns the
// submission tool's output.
type Runner interface {
	Run(path string) (stdout string, err error)
}

type Server struct {
	dir    string
	runner Runner
	log    zerolog.Logger
}

func NewServer(dir string, runner Runner) *Server {
	return &Server{
		dir:    dir,
		runner: runner,
		log:    logger.Log.With().Str("service", "cdc-gateway").Logger(),
	}
}

// Routes builds the service router.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/submit", s.handleSubmit)
	r.Get("/jobs", s.handleListJobs)
	r.Delete("/jobs/{filename}", s.handleDeleteJob)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "cdc-gateway"})
}

type submitResponse struct {
	Status       string `json:"status"`
	SubmissionID string `json:"submissionId"`
	Filename     string `json:"filename"`
	JobID        string `json:"jobId,omitempty"`
	Message      string `json:"message"`
	Stdout       string `json:"stdout,omitempty"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	Stdout  string `json:"stdout,omitempty"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no file provided"})
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no file selected"})
		return
	}
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".yaml" && ext != ".yml" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "only YAML files are supported"})
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	// reject files that are not even parseable YAML before they reach the
	// cluster
	var probe any
	if err := yaml.Unmarshal(content, &probe); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid YAML", Details: err.Error()})
		return
	}

	filename := fmt.Sprintf("cdc_%s_%s.yaml", time.Now().Format("20060102_150405"), contentHash(content))
	path := filepath.Join(s.dir, filename)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.log.Info().Str("filename", filename).Msg("saved pipeline definition")

	stdout, err := s.runner.Run(path)
	if err != nil {
		s.log.Error().Err(err).Str("filename", filename).Msg("pipeline submission failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "failed to submit pipeline",
			Details: err.Error(),
			Stdout:  stdout,
		})
		return
	}

	jobID := extractJobID(stdout)
	s.log.Info().Str("filename", filename).Str("jobId", jobID).Msg("pipeline submitted")

	writeJSON(w, http.StatusOK, submitResponse{
		Status:       "submitted",
		SubmissionID: uuid.NewString(),
		Filename:     filename,
		JobID:        jobID,
		Message:      "pipeline submitted successfully",
		Stdout:       stdout,
	})
}

type jobFile struct {
	Filename string    `json:"filename"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	files := []jobFile{}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, jobFile{
			Filename: entry.Name(),
			Size:     info.Size(),
			Modified: info.ModTime().UTC(),
		})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })

	writeJSON(w, http.StatusOK, map[string][]jobFile{"jobs": files})
}

func (s *Server) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	// Base strips any traversal components from the URL parameter
	filename := filepath.Base(chi.URLParam(r, "filename"))
	path := filepath.Join(s.dir, filename)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "file not found"})
		return
	}

	if err := os.Remove(path); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	s.log.Info().Str("filename", filename).Msg("deleted pipeline definition")

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "filename": filename})
}

// extractJobID scans submission output for the numeric job id the cluster
// prints on lines announcing the submission. Returns "" when no id is
// discoverable; the submission may still have succeeded.
func extractJobID(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, "Job has been submitted") && !strings.Contains(line, "Job ID") {
			continue
		}
		for _, token := range strings.Fields(line) {
			if isNumericToken(token) {
				return token
			}
		}
	}
	return ""
}

func isNumericToken(token string) bool {
	stripped := strings.ReplaceAll(token, ".", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func contentHash(content []byte) string {
	sum := md5.Sum(content)
	return hex.EncodeToString(sum[:])[:16]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
