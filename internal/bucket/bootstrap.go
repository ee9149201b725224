// Package bucket provisions the object-store buckets the platform expects.
// Provisioning is idempotent: existing buckets are left alone and every
// bucket is verified reachable afterwards.
package bucket

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/streamhouse/flinksql-go/internal/errs"
	"github.com/streamhouse/flinksql-go/logger"
)

// API is the slice of the S3 surface the bootstrap needs, so it can be
// exercised against a fake.
type API interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

var _ API = (*s3.Client)(nil)

// Ensure creates each named bucket unless it already exists, then verifies
// it is reachable. The first verification failure aborts: a bucket the
// platform cannot reach is a deployment problem, not something to retry
// around.
func Ensure(ctx context.Context, api API, buckets []string) error {
	log := logger.Log.With().Str("service", "bucket-bootstrap").Logger()

	for _, name := range buckets {
		if exists(ctx, api, name) {
			log.Info().Str("bucket", name).Msg("bucket already exists")
		} else {
			log.Info().Str("bucket", name).Msg("creating bucket")
			if _, err := api.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(name)}); err != nil {
				return errs.WrapErrf(err, "failed to create bucket %s", name)
			}
		}

		if !exists(ctx, api, name) {
			return errs.WrapErr(fmt.Errorf("bucket %s not accessible after provisioning", name), "verification failed")
		}
		log.Info().Str("bucket", name).Msg("bucket ready")
	}
	return nil
}

func exists(ctx context.Context, api API, name string) bool {
	_, err := api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)})
	return err == nil
}

// Credentials is one access key pair from the object store's identity
// configuration file.
type Credentials struct {
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
}

type identityConfig struct {
	Identities []struct {
		Credentials []Credentials `json:"credentials"`
	} `json:"identities"`
}

// LoadCredentials reads the first credential pair from a SeaweedFS-style
// identities file.
func LoadCredentials(path string) (*Credentials, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.WrapErr(err, "failed to read credentials file")
	}

	var cfg identityConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, errs.WrapErr(err, "failed to parse credentials file")
	}
	if len(cfg.Identities) == 0 || len(cfg.Identities[0].Credentials) == 0 {
		return nil, errs.WrapErr(fmt.Errorf("no credentials in %s", path), "invalid credentials file")
	}
	return &cfg.Identities[0].Credentials[0], nil
}
