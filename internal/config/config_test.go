package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"TWILIO_ACCOUNT_SID":     "AC123",
		"TWILIO_AUTH_TOKEN_FILE": "/run/secrets/twilio_auth_token",
		"S3_BUCKET_NAME":         "bucket",
		"AWS_REGION":             "",
	}
	files := map[string]string{
		"/run/secrets/twilio_auth_token": "secret-token\n",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	readFile := func(path string) ([]byte, error) {
		v, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(v), nil
	}

	cfg := Default()
	cfg.S3.Region = "eu-west-1"
	require.NoError(t, applyEnv(context.Background(), &cfg, lookup, readFile))

	assert.Equal(t, "AC123", cfg.Twilio.AccountSID)
	assert.Equal(t, "secret-token", cfg.Twilio.AuthToken)
	assert.Equal(t, "bucket", cfg.S3.Bucket)
	assert.Equal(t, "eu-west-1", cfg.S3.Region, "empty env value must not clear the file value")
}

func TestApplyEnvMissingSecretFile(t *testing.T) {
	t.Parallel()

	lookup := func(key string) (string, bool) {
		if key == "FAL_KEY_FILE" {
			return "/nope", true
		}
		return "", false
	}
	readFile := func(string) ([]byte, error) { return nil, os.ErrNotExist }

	cfg := Default()
	err := applyEnv(context.Background(), &cfg, lookup, readFile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyEnvSecretFileWinsOverValue(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"FAL_KEY":         "from-env",
		"FAL_KEY_FILE":    "/run/secrets/fal_key",
		"LOG_LEVEL":       "debug",
		"PUBLIC_BASE_URL": "https://bot.example.com",
		"STORAGE_BACKEND": "local",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	readFile := func(path string) ([]byte, error) {
		if path != "/run/secrets/fal_key" {
			return nil, os.ErrNotExist
		}
		return []byte("  from-file \n"), nil
	}

	cfg := Default()
	require.NoError(t, applyEnv(context.Background(), &cfg, lookup, readFile))

	assert.Equal(t, "from-file", cfg.Fal.APIKey)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "https://bot.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultFalModel, cfg.Fal.Model, "untagged fields keep their values")
}

func TestLoadFromTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
addr = ":9999"
request_timeout = "30s"

[storage]
backend = "local"

[webhook]
allowed_host_suffixes = ["twilio.com"]
dedup_ttl = "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("TWILIO_PHONE_NUMBER", "whatsapp:+15550001111")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, StorageBackendLocal, cfg.Storage.Backend)
	assert.Equal(t, []string{"twilio.com"}, cfg.Webhook.AllowedHostSuffixes)
	assert.Equal(t, "whatsapp:+15550001111", cfg.Twilio.PhoneNumber)
	assert.Equal(t, DefaultFalModel, cfg.Fal.Model)
	assert.Equal(t, int64(DefaultMaxBytes), cfg.Media.MaxBytes)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultHTTPAddr, cfg.Server.Addr)
	assert.Equal(t, DefaultTwilioHost, cfg.Twilio.MediaHost)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.Fal.PollInterval = "soon"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Storage.Backend = "gcs"
	assert.Error(t, bad.Validate())

	bad = Default()
	bad.Server.RequestTimeout = "-1s"
	assert.Error(t, bad.Validate())
}

func TestTwilioHasCredentials(t *testing.T) {
	t.Parallel()

	assert.False(t, TwilioConfig{AccountSID: "AC1"}.HasCredentials())
	assert.True(t, TwilioConfig{AccountSID: "AC1", AuthToken: "t"}.HasCredentials())
}
