// cdc-gateway exposes the pipeline submission HTTP service. Definitions are
// written to a directory shared with the job manager container, then
// submitted by shelling out to the cluster's submission script.
package main

import (
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/streamhouse/flinksql-go/internal/cdcgateway"
	"github.com/streamhouse/flinksql-go/logger"
)

func main() {
	_ = godotenv.Load()

	dir := envOr("CDC_YAML_DIR", "/shared/cdc-yaml")
	addr := envOr("CDC_GATEWAY_ADDR", ":5002")
	container := envOr("FLINK_JOBMANAGER_CONTAINER", "jobmanager")
	script := envOr("FLINK_CDC_SCRIPT", "/opt/flink/bin/flink-cdc.sh")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		logger.Log.Fatal().Err(err).Str("dir", dir).Msg("cannot create pipeline directory")
	}

	srv := cdcgateway.NewServer(dir, cdcgateway.NewDockerRunner(container, script))

	logger.Log.Info().Str("addr", addr).Str("dir", dir).Msg("cdc-gateway listening")
	if err := http.ListenAndServe(addr, srv.Routes()); err != nil {
		logger.Log.Fatal().Err(err).Msg("server exited")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
