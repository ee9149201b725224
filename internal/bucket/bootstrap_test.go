package bucket

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	buckets   map[string]bool
	headCalls []string
	createErr error
	// bucket names whose creation silently does nothing, so the verify
	// step sees them as still missing
	brokenCreate map[string]bool
}

func newFakeS3(existing ...string) *fakeS3 {
	f := &fakeS3{buckets: map[string]bool{}, brokenCreate: map[string]bool{}}
	for _, b := range existing {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	f.headCalls = append(f.headCalls, *in.Bucket)
	if !f.buckets[*in.Bucket] {
		return nil, fmt.Errorf("NotFound: bucket %s does not exist", *in.Bucket)
	}
	return &s3.HeadBucketOutput{}, nil
}

func (f *fakeS3) CreateBucket(ctx context.Context, in *s3.CreateBucketInput, opts ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if !f.brokenCreate[*in.Bucket] {
		f.buckets[*in.Bucket] = true
	}
	return &s3.CreateBucketOutput{}, nil
}

func TestEnsure(t *testing.T) {
	t.Parallel()

	t.Run("creates missing buckets", func(t *testing.T) {
		api := newFakeS3()
		err := Ensure(context.Background(), api, []string{"paimon-data", "flink-checkpoints"})
		require.NoError(t, err)
		assert.True(t, api.buckets["paimon-data"])
		assert.True(t, api.buckets["flink-checkpoints"])
	})

	t.Run("leaves existing buckets alone", func(t *testing.T) {
		api := newFakeS3("paimon-data")
		err := Ensure(context.Background(), api, []string{"paimon-data"})
		require.NoError(t, err)
		// one existence check plus one verification, no create
		assert.Equal(t, []string{"paimon-data", "paimon-data"}, api.headCalls)
	})

	t.Run("propagates a create failure", func(t *testing.T) {
		api := newFakeS3()
		api.createErr = fmt.Errorf("access denied")
		err := Ensure(context.Background(), api, []string{"paimon-data"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "paimon-data")
	})

	t.Run("fails when verification cannot see the bucket", func(t *testing.T) {
		api := newFakeS3()
		api.brokenCreate["paimon-data"] = true
		err := Ensure(context.Background(), api, []string{"paimon-data"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "verification failed")
	})

	t.Run("stops at the first failure", func(t *testing.T) {
		api := newFakeS3()
		api.createErr = fmt.Errorf("access denied")
		err := Ensure(context.Background(), api, []string{"a", "b"})
		require.Error(t, err)
		assert.False(t, api.buckets["b"])
	})
}

func TestLoadCredentials(t *testing.T) {
	t.Parallel()

	t.Run("reads the first identity", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		content := `{
  "identities": [
    {
      "name": "admin",
      "credentials": [{"accessKey": "ak123", "secretKey": "sk456"}]
    }
  ]
}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		creds, err := LoadCredentials(path)
		require.NoError(t, err)
		assert.Equal(t, "ak123", creds.AccessKey)
		assert.Equal(t, "sk456", creds.SecretKey)
	})

	t.Run("rejects a file with no identities", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"identities": []}`), 0o600))

		_, err := LoadCredentials(path)
		require.Error(t, err)
	})

	t.Run("rejects a missing file", func(t *testing.T) {
		_, err := LoadCredentials(filepath.Join(t.TempDir(), "absent.json"))
		require.Error(t, err)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o600))

		_, err := LoadCredentials(path)
		require.Error(t, err)
	})
}
