package duck

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// clearS3Env blanks every variable the loader reads; empty values are
// treated as unset.
func clearS3Env(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID",
		"S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY",
		"S3_ENDPOINT", "AWS_ENDPOINT_URL",
		"S3_REGION", "AWS_REGION",
		"S3_USE_SSL", "S3_URL_STYLE",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadS3ConfigFromEnv(t *testing.T) {
	t.Run("unset means default credentials chain", func(t *testing.T) {
		clearS3Env(t)
		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.Nil(t, cfg)
	})

	t.Run("key without secret is an error", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_ACCESS_KEY_ID", "minio")
		_, err := LoadS3ConfigFromEnv()
		require.Error(t, err)
		require.Contains(t, err.Error(), "S3_SECRET_ACCESS_KEY")
	})

	t.Run("secret without key is an error", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_SECRET_ACCESS_KEY", "minio123")
		_, err := LoadS3ConfigFromEnv()
		require.Error(t, err)
		require.Contains(t, err.Error(), "S3_ACCESS_KEY_ID")
	})

	t.Run("minio endpoint auto-detects path style without SSL", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_ACCESS_KEY_ID", "minio")
		t.Setenv("S3_SECRET_ACCESS_KEY", "minio123")
		t.Setenv("S3_ENDPOINT", "http://localhost:9000")

		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.NotNil(t, cfg)
		require.Equal(t, "minio", cfg.AccessKeyID)
		require.Equal(t, "http://localhost:9000", cfg.Endpoint)
		require.Equal(t, "us-east-1", cfg.Region)
		require.False(t, cfg.UseSSL)
		require.Equal(t, "path", cfg.URLStyle)
	})

	t.Run("aws endpoint keeps SSL", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("AWS_ACCESS_KEY_ID", "AKIA123")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
		t.Setenv("S3_ENDPOINT", "https://s3.us-west-2.amazonaws.com")
		t.Setenv("AWS_REGION", "us-west-2")

		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.NotNil(t, cfg)
		require.True(t, cfg.UseSSL)
		require.Equal(t, "us-west-2", cfg.Region)
	})
}
