package flinksql

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsqlerr "github.com/streamhouse/flinksql-go/errors"
	"github.com/streamhouse/flinksql-go/internal/gateway"
)

// fakeGateway emulates the asynchronous gateway surface: sessions,
// statement submission, per-operation status scripts, result pages and the
// auxiliary statements (SET pipeline name, SHOW JOBS, STOP JOB) the client
// issues around a main statement.
type fakeGateway struct {
	mu sync.Mutex

	sessionsCreated int
	sessionsDeleted int
	ops             map[string]string
	polls           map[string]int
	stops           []string
	pipelineName    string
	n               int

	// statusScript returns the status for the nth poll (1-based) of the
	// main statement; auxiliary statements always finish immediately.
	statusScript func(stmt string, poll int) gateway.StatusResponse
	// mainPage serves result pages for the main statement, nil meaning 404.
	mainPage func(pageIdx int) *gateway.ResultPage
	// jobID reported in the SHOW JOBS listing and the info endpoint.
	jobID    string
	infoCode int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		ops:   map[string]string{},
		polls: map[string]int{},
		statusScript: func(string, int) gateway.StatusResponse {
			return gateway.StatusResponse{Status: gateway.StatusFinished}
		},
		jobID:    "job-1",
		infoCode: http.StatusNotFound,
	}
}

func (f *fakeGateway) auxiliary(stmt string) bool {
	return strings.HasPrefix(stmt, "SET ") || stmt == "SHOW JOBS" || strings.HasPrefix(stmt, "STOP JOB")
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/sessions":
		f.sessionsCreated++
		_ = json.NewEncoder(w).Encode(map[string]string{"sessionHandle": fmt.Sprintf("sess-%d", f.sessionsCreated)})

	case r.Method == http.MethodDelete && len(parts) == 3:
		f.sessionsDeleted++
		_ = json.NewEncoder(w).Encode(map[string]string{})

	case r.Method == http.MethodPost && len(parts) == 4 && parts[3] == "statements":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		stmt := body["statement"]
		f.n++
		op := fmt.Sprintf("op-%d", f.n)
		f.ops[op] = stmt
		if strings.HasPrefix(stmt, "SET 'pipeline.name' = '") {
			f.pipelineName = strings.TrimSuffix(strings.TrimPrefix(stmt, "SET 'pipeline.name' = '"), "'")
		}
		if strings.HasPrefix(stmt, "STOP JOB") {
			f.stops = append(f.stops, stmt)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"operationHandle": op})

	case len(parts) == 6 && parts[5] == "status":
		op := parts[4]
		stmt := f.ops[op]
		if f.auxiliary(stmt) {
			_ = json.NewEncoder(w).Encode(gateway.StatusResponse{Status: gateway.StatusFinished})
			return
		}
		f.polls[op]++
		_ = json.NewEncoder(w).Encode(f.statusScript(stmt, f.polls[op]))

	case len(parts) == 7 && parts[5] == "result":
		stmt := f.ops[parts[4]]
		if stmt == "SHOW JOBS" {
			_ = json.NewEncoder(w).Encode(&gateway.ResultPage{Results: &gateway.ResultData{
				Columns: []gateway.Column{{Name: "job id"}, {Name: "job name"}, {Name: "status"}},
				Data:    []gateway.Row{{Fields: []any{f.jobID, f.pipelineName, "RUNNING"}}},
			}})
			return
		}
		if f.auxiliary(stmt) || f.mainPage == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		idx, _ := strconv.Atoi(parts[6])
		page := f.mainPage(idx)
		if page == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(page)

	case len(parts) == 6 && parts[5] == "info":
		if f.infoCode != http.StatusOK {
			w.WriteHeader(f.infoCode)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"jobId": f.jobID})

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeGateway) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stops)
}

func (f *fakeGateway) submittedStop() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.stops) == 0 {
		return ""
	}
	return f.stops[0]
}

func newTestClient(t *testing.T, fake *fakeGateway) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(fake)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	cfg := NewConfigWithDefaults()
	cfg.Host = u.Hostname()
	cfg.Port = port
	cfg.PollInterval = 5 * time.Millisecond
	cfg.StatementTimeout = 2 * time.Second
	cfg.SetNameTimeout = time.Second
	cfg.ShowJobsTimeout = time.Second
	cfg.StopTimeout = time.Second

	c, err := NewClient(cfg)
	require.NoError(t, err)
	c.gw.PagePause = 0
	c.gw.FetchRetryPause = time.Millisecond

	return c, func() {
		_ = c.Close()
		srv.Close()
	}
}

func selectPage() *gateway.ResultPage {
	return &gateway.ResultPage{Results: &gateway.ResultData{
		Columns: []gateway.Column{{Name: "id"}, {Name: "name"}},
		Data: []gateway.Row{
			{Fields: []any{json.Number("1"), "alpha"}},
			{Fields: []any{json.Number("2"), "beta"}},
		},
	}}
}

func TestExecuteRemoteSelect(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	fake.statusScript = func(stmt string, poll int) gateway.StatusResponse {
		statuses := []string{"PENDING", "RUNNING", "FINISHED"}
		if poll > len(statuses) {
			poll = len(statuses)
		}
		return gateway.StatusResponse{Status: statuses[poll-1]}
	}
	fake.mainPage = func(idx int) *gateway.ResultPage {
		if idx == 0 {
			return selectPage()
		}
		return nil
	}
	c, done := newTestClient(t, fake)
	defer done()

	res, err := c.ExecuteRemote(context.Background(), "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, KindRows, res.Kind)
	assert.Equal(t, 2, res.RowCount)
	assert.Equal(t, "result", res.Table)

	// rows landed in the local store
	_, rows, err := c.ExecuteLocal(context.Background(), "SELECT * FROM result ORDER BY id")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	// exactly one stop attempt sequence for a read
	assert.Equal(t, 1, fake.stopCount())
	assert.Equal(t, "STOP JOB '"+fake.jobID+"'", fake.submittedStop())
}

func TestExecuteRemoteSelectZeroRows(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	fake.mainPage = func(idx int) *gateway.ResultPage {
		return &gateway.ResultPage{Results: &gateway.ResultData{
			Columns: []gateway.Column{{Name: "id"}},
		}}
	}
	c, done := newTestClient(t, fake)
	defer done()

	res, err := c.ExecuteRemote(context.Background(), "SELECT * FROM empty_table")
	require.NoError(t, err)
	assert.Equal(t, KindRows, res.Kind)
	assert.Equal(t, 0, res.RowCount)
	assert.Empty(t, res.Table)

	// the stop attempt happens even when zero rows came back
	assert.Equal(t, 1, fake.stopCount())
}

func TestExecuteRemoteInsert(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	fake.infoCode = http.StatusOK
	fake.jobID = "job-stream-7"
	c, done := newTestClient(t, fake)
	defer done()

	res, err := c.ExecuteRemote(context.Background(), "INSERT INTO sink SELECT * FROM src")
	require.NoError(t, err)
	assert.Equal(t, KindJobStarted, res.Kind)
	assert.Equal(t, "job-stream-7", res.JobID)
	assert.NotEmpty(t, res.Warning)

	// streaming writes are never auto-stopped
	assert.Equal(t, 0, fake.stopCount())
}

func TestExecuteRemoteStreamingDDL(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	c, done := newTestClient(t, fake)
	defer done()

	res, err := c.ExecuteRemote(context.Background(), "CREATE TABLE t (id INT) WITH ('connector'='kafka')")
	require.NoError(t, err)
	assert.Equal(t, KindExecuted, res.Kind)
	assert.Equal(t, 0, fake.stopCount())
}

func TestExecuteRemoteGatewayError(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	fake.statusScript = func(string, int) gateway.StatusResponse {
		return gateway.StatusResponse{Status: gateway.StatusError, ErrorMessage: "Table 'orders' not found"}
	}
	c, done := newTestClient(t, fake)
	defer done()

	_, err := c.ExecuteRemote(context.Background(), "SELECT * FROM orders")
	require.Error(t, err)
	assert.ErrorIs(t, err, fsqlerr.ExecutionError)

	var execErr fsqlerr.StatementExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "Table 'orders' not found", execErr.GatewayMessage())
}

func TestExecuteRemotePollTimeout(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	fake.statusScript = func(string, int) gateway.StatusResponse {
		return gateway.StatusResponse{Status: "RUNNING"}
	}
	c, done := newTestClient(t, fake)
	defer done()

	_, err := c.ExecuteRemoteInto(context.Background(), "SELECT 1", "result", 100*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, fsqlerr.PollTimeoutError)
}

func TestSessionReuse(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	c, done := newTestClient(t, fake)
	defer done()

	_, err := c.ExecuteRemote(context.Background(), "CREATE TABLE a (id INT)")
	require.NoError(t, err)
	_, err = c.ExecuteRemote(context.Background(), "CREATE TABLE b (id INT)")
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.sessionsCreated)
}

func TestCloseDeletesSession(t *testing.T) {
	t.Parallel()

	fake := newFakeGateway()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	c, err := Connect(u.Hostname(), port)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.sessionsCreated)
	assert.Equal(t, 1, fake.sessionsDeleted)
}

func TestExecResultString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "query returned 0 rows", (&ExecResult{Kind: KindRows}).String())
	assert.Equal(t, "statement executed successfully", (&ExecResult{Kind: KindExecuted}).String())
	assert.Contains(t, (&ExecResult{Kind: KindRows, RowCount: 3, Table: "result"}).String(), "3 rows")
	assert.Contains(t, (&ExecResult{Kind: KindJobStarted, JobID: "j"}).String(), "id: j")
}
