// bucket-bootstrap provisions the object-store buckets the streaming
// platform needs before any job runs. Credentials come from the object
// store's identity configuration file so the bootstrap and the store never
// disagree about keys.
package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/streamhouse/flinksql-go/internal/bucket"
	"github.com/streamhouse/flinksql-go/logger"
)

func main() {
	_ = godotenv.Load()

	endpoint := envOr("S3_ENDPOINT", "http://seaweedfs:8333")
	credsPath := envOr("S3_CREDENTIALS_PATH", "/etc/seaweedfs/s3_config.json")
	region := envOr("S3_REGION", "us-east-1")
	buckets := strings.Split(envOr("S3_BUCKETS", "paimon-data,flink-checkpoints"), ",")

	creds, err := bucket.LoadCredentials(credsPath)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("path", credsPath).Msg("cannot load object store credentials")
	}

	client := s3.New(s3.Options{
		BaseEndpoint: aws.String(endpoint),
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(creds.AccessKey, creds.SecretKey, ""),
		UsePathStyle: true,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := bucket.Ensure(ctx, client, buckets); err != nil {
		logger.Log.Fatal().Err(err).Msg("bucket provisioning failed")
	}
	logger.Log.Info().Strs("buckets", buckets).Msg("all buckets provisioned")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
