package cdcgateway

import (
	"context"
	"os/exec"
	"time"

	"github.com/streamhouse/flinksql-go/internal/errs"
)

// DockerRunner submits a pipeline definition by executing the cluster's
// submission script inside the job manager container.
type DockerRunner struct {
	Container string
	Script    string
	Timeout   time.Duration
}

func NewDockerRunner(container, script string) *DockerRunner {
	return &DockerRunner{
		Container: container,
		Script:    script,
		Timeout:   300 * time.Second,
	}
}

func (d *DockerRunner) Run(path string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "docker", "exec", d.Container, d.Script, path)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return string(out), errs.WrapErr(ctx.Err(), "pipeline submission timed out")
	}
	if err != nil {
		return string(out), errs.WrapErr(err, "pipeline submission command failed")
	}
	return string(out), nil
}

var _ Runner = (*DockerRunner)(nil)
