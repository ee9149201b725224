package flinksql

import (
	"context"
	"errors"
	"fmt"
	"time"

	fsqlerr "github.com/streamhouse/flinksql-go/errors"
	"github.com/streamhouse/flinksql-go/internal/classify"
	"github.com/streamhouse/flinksql-go/internal/errs"
	"github.com/streamhouse/flinksql-go/internal/gateway"
	"github.com/streamhouse/flinksql-go/internal/jobs"
	"github.com/streamhouse/flinksql-go/internal/sink"
	"github.com/streamhouse/flinksql-go/logger"
)

// Client drives statements through the gateway and materializes results in
// an embedded local store. One client owns exactly one gateway session and
// one store; it is meant for single-threaded interactive use and must not be
// shared across goroutines, nor may two clients share a session handle.
type Client struct {
	cfg     *Config
	gw      *gateway.Client
	store   *sink.Sink
	jobs    *jobs.Manager
	session string
}

// Connect builds a client against the gateway at host:port and eagerly
// establishes its session so connectivity problems surface immediately.
func Connect(host string, port int) (*Client, error) {
	cfg := NewConfigWithDefaults()
	cfg.Host = host
	cfg.Port = port

	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if _, err := c.ensureSession(context.Background()); err != nil {
		_ = c.store.Close()
		return nil, err
	}
	return c, nil
}

// NewClient builds a client from an explicit configuration. The gateway
// session is created lazily on first use.
func NewClient(cfg *Config) (*Client, error) {
	store, err := sink.Open()
	if err != nil {
		return nil, err
	}

	gw := gateway.New(cfg.baseURL())
	gw.UserAgent = "flinksql-go/" + Version

	jm := jobs.NewManager(gw, store)
	jm.PollInterval = cfg.PollInterval
	jm.SetNameTimeout = cfg.SetNameTimeout
	jm.ShowJobsTimeout = cfg.ShowJobsTimeout
	jm.StopTimeout = cfg.StopTimeout

	return &Client{
		cfg:   cfg,
		gw:    gw,
		store: store,
		jobs:  jm,
	}, nil
}

// Close deletes the gateway session (best effort, the remote side expires
// abandoned sessions on its own) and releases the local store.
func (c *Client) Close() error {
	if c.session != "" {
		if err := c.gw.CloseSession(context.Background(), c.session); err != nil {
			log := logger.WithSession(c.session)
			log.Debug().Err(err).Msg("failed to delete gateway session")
		}
		c.session = ""
	}
	return c.store.Close()
}

// ensureSession returns the live session handle, creating one on first use.
// The handle is reused for every subsequent statement until Close.
func (c *Client) ensureSession(ctx context.Context) (string, error) {
	if c.session != "" {
		return c.session, nil
	}
	session, err := c.gw.CreateSession(ctx)
	if err != nil {
		return "", err
	}
	log := logger.WithSession(session)
	log.Debug().Msg("created gateway session")
	c.session = session
	return session, nil
}

// ResultKind describes the outcome shape of a remote statement.
type ResultKind int

const (
	// KindRows: a tabular result was fetched (possibly zero rows).
	KindRows ResultKind = iota
	// KindExecuted: the statement completed without a tabular result.
	KindExecuted
	// KindJobStarted: a streaming job was started and left running.
	KindJobStarted
)

// ExecResult is the outcome of one remote statement lifecycle.
type ExecResult struct {
	Kind     ResultKind
	RowCount int
	// Table the rows were loaded into; empty when no rows were loaded.
	Table   string
	Columns []string
	// JobID of a started streaming job, when resolvable.
	JobID string
	// Warning the caller should surface, e.g. that a streaming job keeps
	// running or that pagination was truncated.
	Warning   string
	Truncated bool
}

func (r *ExecResult) String() string {
	switch r.Kind {
	case KindJobStarted:
		if r.JobID != "" {
			return fmt.Sprintf("streaming job started (id: %s); it will keep running until stopped", r.JobID)
		}
		return "streaming job started; it will keep running until stopped"
	case KindExecuted:
		return "statement executed successfully"
	default:
		if r.RowCount == 0 {
			return "query returned 0 rows"
		}
		msg := fmt.Sprintf("loaded %d rows into table %s", r.RowCount, r.Table)
		if r.Truncated {
			msg += " (result may be truncated)"
		}
		return msg
	}
}

// ExecuteRemote runs a statement through the full lifecycle with the
// configured timeout and default target table.
func (c *Client) ExecuteRemote(ctx context.Context, statement string) (*ExecResult, error) {
	return c.ExecuteRemoteInto(ctx, statement, c.cfg.DefaultTable, c.cfg.StatementTimeout)
}

// ExecuteRemoteInto drives one statement end to end: classify, ensure a
// session, optionally bind a pipeline name, submit, poll to a terminal
// status, then branch on intent. Streaming writes are left running and
// reported with their job id; reads have their pages fetched and loaded into
// the named sink table. For intents configured for auto-stop the started job
// is located and stopped in a deferred cleanup step that runs no matter how
// the fetch path ended, and whose failure never masks the primary outcome.
func (c *Client) ExecuteRemoteInto(ctx context.Context, statement, table string, timeout time.Duration) (*ExecResult, error) {
	intent := classify.Statement(statement)

	session, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}

	var jobName string
	if c.cfg.NameJobs {
		jobName = jobs.GenerateName(intent)
		c.jobs.AssignName(ctx, session, jobName)
	}

	operation, err := c.gw.SubmitStatement(ctx, session, statement)
	if err != nil {
		return nil, err
	}
	log := logger.WithOperation(session, operation)

	if c.cfg.autoStop(intent) {
		// cleanup must survive a canceled or expired statement context:
		// abandoning the client-side wait does not cancel gateway-side
		// execution, so the job still has to be hunted down
		cleanupCtx := context.WithoutCancel(ctx)
		defer c.stopStatementJob(cleanupCtx, session, operation, jobName)
	}

	status, err := c.gw.AwaitTerminal(ctx, session, operation, c.cfg.PollInterval, timeout)
	if err != nil {
		return nil, err
	}
	if status.Status == gateway.StatusError {
		return nil, errs.NewExecutionError(session, operation, status.ErrorMessage)
	}

	if intent.IsStreamingWrite() {
		jobID := c.resolveJob(ctx, session, operation, jobName)
		log.Info().Str("jobId", jobID).Msg("streaming job started")
		return &ExecResult{
			Kind:    KindJobStarted,
			JobID:   jobID,
			Warning: "streaming job keeps running; monitor it with SHOW JOBS",
		}, nil
	}

	rs, err := c.gw.FetchResultSet(ctx, session, operation, c.cfg.MaxResultPages)
	if err != nil {
		if errors.Is(err, fsqlerr.FetchRetryError) && !intent.IsRead() {
			// DDL and mutations often have no result page at all
			return &ExecResult{Kind: KindExecuted}, nil
		}
		return nil, err
	}

	if len(rs.Columns) == 0 {
		return &ExecResult{Kind: KindExecuted}, nil
	}
	if len(rs.Rows) == 0 {
		return &ExecResult{Kind: KindRows, Columns: rs.Columns}, nil
	}

	n, err := c.store.Load(ctx, table, rs.Columns, rs.Rows)
	if err != nil {
		return nil, err
	}

	result := &ExecResult{
		Kind:      KindRows,
		RowCount:  n,
		Table:     table,
		Columns:   rs.Columns,
		Truncated: rs.Truncated,
	}
	if rs.Truncated {
		result.Warning = "result hit the page cap and may be truncated"
	}
	return result, nil
}

// stopStatementJob locates the job behind the given operation and issues a
// best-effort stop. All failures are contained here; at worst the job stays
// running and the caller was already told its statement's outcome.
func (c *Client) stopStatementJob(ctx context.Context, session, operation, jobName string) {
	jobID := c.resolveJob(ctx, session, operation, jobName)
	if jobID == "" {
		log := logger.WithOperation(session, operation)
		log.Warn().Msg("could not resolve job id for cleanup, job may still be running")
		return
	}
	c.jobs.Stop(ctx, session, jobID)
}

// resolveJob prefers lookup by the bound pipeline name and falls back to the
// most-recent-job heuristic.
func (c *Client) resolveJob(ctx context.Context, session, operation, jobName string) string {
	if jobName != "" {
		if id := c.jobs.ResolveByName(ctx, session, jobName); id != "" {
			return id
		}
	}
	return c.jobs.ResolveLatest(ctx, session, operation)
}

// ExecuteLocal runs a statement against the local store only.
func (c *Client) ExecuteLocal(ctx context.Context, statement string) ([]string, [][]any, error) {
	return c.store.Query(ctx, statement)
}

// Tables lists the tables held in the local store.
func (c *Client) Tables(ctx context.Context) ([]string, error) {
	return c.store.Tables(ctx)
}

// Describe returns the schema of a local table.
func (c *Client) Describe(ctx context.Context, table string) ([]sink.TableColumn, error) {
	return c.store.Describe(ctx, table)
}
