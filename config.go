package flinksql

import (
	"fmt"
	"time"

	"github.com/streamhouse/flinksql-go/internal/classify"
)

// Config controls the statement lifecycle driven by a Client. Zero values
// are filled by NewConfigWithDefaults; construct through that and override
// what you need.
type Config struct {
	Host string
	Port int

	// PollInterval is the fixed cadence of operation status polling. The
	// gateway is expected to be local and low latency, so there is no
	// backoff, but the interval is configurable rather than hard coded.
	PollInterval time.Duration

	// StatementTimeout bounds the status polling of the main statement.
	StatementTimeout time.Duration

	// SetNameTimeout bounds the SET pipeline-name sub-operation.
	SetNameTimeout time.Duration

	// ShowJobsTimeout bounds job-listing sub-operations.
	ShowJobsTimeout time.Duration

	// StopTimeout bounds each individual stop attempt.
	StopTimeout time.Duration

	// MaxResultPages caps pagination. Hitting the cap truncates the result
	// instead of erroring.
	MaxResultPages int

	// NameJobs controls whether a generated pipeline name is bound to the
	// session before each statement, enabling id lookup by name.
	NameJobs bool

	// AutoStopIntents names the statement intents whose jobs are targeted
	// for a best-effort stop after the statement completes. By default only
	// reads are stopped: a read against an unbounded source starts a job
	// that never finishes on its own, while a streaming write is left
	// running for the operator.
	AutoStopIntents map[string]bool

	// DefaultTable is the sink table results land in when ExecuteRemote is
	// not given an explicit target.
	DefaultTable string
}

func NewConfigWithDefaults() *Config {
	return &Config{
		Host:             "localhost",
		Port:             8083,
		PollInterval:     1 * time.Second,
		StatementTimeout: 300 * time.Second,
		SetNameTimeout:   10 * time.Second,
		ShowJobsTimeout:  30 * time.Second,
		StopTimeout:      30 * time.Second,
		MaxResultPages:   10,
		NameJobs:         true,
		AutoStopIntents: map[string]bool{
			classify.IntentSelect.String(): true,
		},
		DefaultTable: "result",
	}
}

func (c *Config) baseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

func (c *Config) autoStop(intent classify.Intent) bool {
	return c.AutoStopIntents[intent.String()]
}
