// Package jobs manages the lifecycle of gateway jobs spawned by submitted
// statements: deterministic-unique naming, resolution of the cluster-assigned
// job id, and best-effort stop requests for jobs that must not be left
// running. Everything here degrades gracefully; a failed lookup or stop is
// logged and contained, never escalated past the primary statement outcome.
package jobs

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/streamhouse/flinksql-go/internal/classify"
	"github.com/streamhouse/flinksql-go/internal/gateway"
	"github.com/streamhouse/flinksql-go/logger"
)

// Store is the slice of the local sink the manager needs to probe a SHOW
// JOBS listing whose column names vary across gateway versions.
type Store interface {
	Load(ctx context.Context, table string, columns []string, rows [][]any) (int, error)
	QueryValue(ctx context.Context, query string) (string, bool, error)
	Drop(ctx context.Context, table string) error
}

// Manager resolves and stops gateway jobs. Each awaited sub-operation has
// its own timeout budget; none of them share the main statement's clock.
type Manager struct {
	gw    *gateway.Client
	store Store

	PollInterval    time.Duration
	SetNameTimeout  time.Duration
	ShowJobsTimeout time.Duration
	StopTimeout     time.Duration
}

func NewManager(gw *gateway.Client, store Store) *Manager {
	return &Manager{
		gw:              gw,
		store:           store,
		PollInterval:    500 * time.Millisecond,
		SetNameTimeout:  10 * time.Second,
		ShowJobsTimeout: 30 * time.Second,
		StopTimeout:     30 * time.Second,
	}
}

// GenerateName builds a job name of the form {intent}_job_{suffix} with a
// cryptographically sourced suffix. The name doubles as a correlation key
// because the gateway does not return a job id synchronously for every
// statement shape.
func GenerateName(intent classify.Intent) string {
	return fmt.Sprintf("%s_job_%s", intent, randomHex(8))
}

// AssignName binds the generated name to the session's pipeline-name
// property by running a SET statement and awaiting it. Failure degrades the
// later lookup but must not abort the main statement, so it only reports a
// boolean.
func (m *Manager) AssignName(ctx context.Context, session, name string) bool {
	log := logger.WithSession(session)

	stmt := fmt.Sprintf("SET 'pipeline.name' = '%s'", escapeLiteral(name))
	op, err := m.gw.SubmitStatement(ctx, session, stmt)
	if err != nil {
		log.Warn().Err(err).Str("jobName", name).Msg("failed to submit job name assignment")
		return false
	}

	status, err := m.gw.AwaitTerminal(ctx, session, op, m.PollInterval, m.SetNameTimeout)
	if err != nil || status.Status != gateway.StatusFinished {
		log.Warn().Str("jobName", name).Msg("job name assignment did not finish")
		return false
	}
	return true
}

// Column-name variants observed across gateway versions for the SHOW JOBS
// listing, probed in order.
var lookupVariants = [][2]string{
	{"job id", "job name"},
	{"Job ID", "Job Name"},
	{"job_id", "job_name"},
}

// ResolveByName runs SHOW JOBS, materializes its single result page into a
// throwaway sink table, and probes the known column-name variants until one
// yields a non-null id. Returns "" when the job is not listed; the listing
// is foreign state and absence is not an error.
func (m *Manager) ResolveByName(ctx context.Context, session, name string) string {
	log := logger.WithSession(session)

	rs, ok := m.fetchJobListing(ctx, session)
	if !ok || len(rs.Rows) == 0 {
		return ""
	}

	probe := "jobs_" + randomHex(4)
	if _, err := m.store.Load(ctx, probe, rs.Columns, rs.Rows); err != nil {
		log.Warn().Err(err).Msg("failed to materialize job listing")
		return ""
	}
	defer func() {
		if err := m.store.Drop(ctx, probe); err != nil {
			log.Warn().Err(err).Str("table", probe).Msg("failed to drop job listing probe table")
		}
	}()

	escaped := escapeLiteral(name)
	for _, variant := range lookupVariants {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = '%s'`,
			quoteIdent(variant[0]), probe, quoteIdent(variant[1]), escaped)
		id, ok, err := m.store.QueryValue(ctx, query)
		if err != nil {
			// wrong variant for this listing shape, try the next
			continue
		}
		if ok && id != "" {
			return id
		}
	}
	return ""
}

// ResolveLatest finds the id of the job most plausibly started by the given
// operation: first from the operation's info metadata, then by taking the
// first row of a fresh SHOW JOBS listing. The fallback is an approximation,
// not a correctness guarantee.
func (m *Manager) ResolveLatest(ctx context.Context, session, operation string) string {
	if info, err := m.gw.OperationInfo(ctx, session, operation); err == nil && info.JobID != "" {
		return info.JobID
	}

	rs, ok := m.fetchJobListing(ctx, session)
	if !ok || len(rs.Rows) == 0 {
		return ""
	}

	idx := idColumnIndex(rs.Columns)
	if idx >= len(rs.Rows[0]) {
		return ""
	}
	return fieldString(rs.Rows[0][idx])
}

// Stop tries the known stop statement variants in order, each awaited under
// its own timeout. The first variant reaching FINISHED wins; errors and
// ERROR statuses move on to the next. When every variant fails the job may
// remain running, which is an accepted limitation of best-effort cleanup.
func (m *Manager) Stop(ctx context.Context, session, jobID string) bool {
	log := logger.WithSession(session)
	escaped := escapeLiteral(jobID)

	variants := []string{
		fmt.Sprintf("STOP JOB '%s'", escaped),
		fmt.Sprintf("STOP JOB '%s' WITH SAVEPOINT", escaped),
	}

	for _, stmt := range variants {
		op, err := m.gw.SubmitStatement(ctx, session, stmt)
		if err != nil {
			continue
		}
		status, err := m.gw.AwaitTerminal(ctx, session, op, m.PollInterval, m.StopTimeout)
		if err != nil {
			continue
		}
		if status.Status == gateway.StatusFinished {
			log.Info().Str("jobId", jobID).Msg("stopped job")
			return true
		}
	}

	log.Warn().Str("jobId", jobID).Msg("all stop attempts failed, job may still be running")
	return false
}

// fetchJobListing submits SHOW JOBS, awaits it and fetches its single result
// page. The listing is always one page.
func (m *Manager) fetchJobListing(ctx context.Context, session string) (*gateway.ResultSet, bool) {
	log := logger.WithSession(session)

	op, err := m.gw.SubmitStatement(ctx, session, "SHOW JOBS")
	if err != nil {
		log.Warn().Err(err).Msg("failed to submit SHOW JOBS")
		return nil, false
	}

	status, err := m.gw.AwaitTerminal(ctx, session, op, m.PollInterval, m.ShowJobsTimeout)
	if err != nil || status.Status != gateway.StatusFinished {
		log.Warn().Msg("SHOW JOBS did not finish")
		return nil, false
	}

	rs, err := m.gw.FetchResultSet(ctx, session, op, 1)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch job listing")
		return nil, false
	}
	return rs, true
}

// idColumnIndex locates the job id column by normalized name, falling back
// to position zero.
func idColumnIndex(columns []string) int {
	for i, col := range columns {
		normalized := strings.ReplaceAll(strings.ToLower(col), "_", " ")
		if normalized == "job id" {
			return i
		}
	}
	return 0
}

func fieldString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
