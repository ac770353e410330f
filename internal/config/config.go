package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultEnvPath      = ".env"
	DefaultHTTPAddr     = ":8000"
	DefaultTwilioHost   = "api.twilio.com"
	DefaultFalBaseURL   = "https://queue.fal.run"
	DefaultFalModel     = "fal-ai/flux-pro/kontext/max"
	DefaultFalPrompt    = "Change to Simpsons style while maintaining the original composition and object placement"
	DefaultPollInterval = "1s"
	DefaultMaxWait      = "5m"
	DefaultDedupTTL     = "10m"
	DefaultDedupSize    = 2048
	DefaultLocalRoot    = "data/media"
	DefaultMaxBytes     = 5 * 1024 * 1024

	StorageBackendS3    = "s3"
	StorageBackendLocal = "local"
)

// DefaultAllowedHostSuffixes are the media hosts the webhook accepts:
// the provider's domain, its API subdomain and the object store.
var DefaultAllowedHostSuffixes = []string{"twilio.com", "api.twilio.com", "amazonaws.com"}

type Config struct {
	Log     LogConfig     `toml:"log"`
	Server  ServerConfig  `toml:"server"`
	Twilio  TwilioConfig  `toml:"twilio"`
	Fal     FalConfig     `toml:"fal"`
	Storage StorageConfig `toml:"storage"`
	S3      S3Config      `toml:"s3"`
	Local   LocalConfig   `toml:"local"`
	Webhook WebhookConfig `toml:"webhook"`
	Media   MediaConfig   `toml:"media"`
}

type LogConfig struct {
	Level  string `toml:"level" env:"LOG_LEVEL,overwrite"`
	Format string `toml:"format" env:"LOG_FORMAT,overwrite" validate:"omitempty,oneof=text json"`
}

type ServerConfig struct {
	Addr string `toml:"addr" env:"HTTP_ADDR,overwrite"`
	// PublicBaseURL is the externally visible origin used when checking
	// webhook signatures behind a proxy, e.g. "https://bot.example.com".
	PublicBaseURL  string `toml:"public_base_url" env:"PUBLIC_BASE_URL,overwrite" validate:"omitempty,url"`
	RequestTimeout string `toml:"request_timeout"`
}

type TwilioConfig struct {
	AccountSID  string `toml:"account_sid" env:"TWILIO_ACCOUNT_SID,overwrite"`
	AuthToken   string `toml:"auth_token" env:"TWILIO_AUTH_TOKEN,overwrite"`
	PhoneNumber string `toml:"phone_number" env:"TWILIO_PHONE_NUMBER,overwrite"`
	MediaHost   string `toml:"media_host"`
}

// HasCredentials reports whether both account credentials are set.
func (c TwilioConfig) HasCredentials() bool {
	return strings.TrimSpace(c.AccountSID) != "" && strings.TrimSpace(c.AuthToken) != ""
}

type FalConfig struct {
	APIKey       string `toml:"api_key" env:"FAL_KEY,overwrite"`
	BaseURL      string `toml:"base_url" validate:"omitempty,url"`
	Model        string `toml:"model"`
	Prompt       string `toml:"prompt"`
	PollInterval string `toml:"poll_interval"`
	MaxWait      string `toml:"max_wait"`
}

type StorageConfig struct {
	Backend string `toml:"backend" env:"STORAGE_BACKEND,overwrite" validate:"omitempty,oneof=s3 local"`
}

type S3Config struct {
	AccessKeyID     string `toml:"access_key_id" env:"AWS_ACCESS_KEY_ID,overwrite"`
	SecretAccessKey string `toml:"secret_access_key" env:"AWS_SECRET_ACCESS_KEY,overwrite"`
	Region          string `toml:"region" env:"AWS_REGION,overwrite"`
	Bucket          string `toml:"bucket" env:"S3_BUCKET_NAME,overwrite"`
	// Endpoint overrides the S3 endpoint for S3-compatible stores.
	Endpoint      string `toml:"endpoint" validate:"omitempty,url"`
	PublicBaseURL string `toml:"public_base_url" validate:"omitempty,url"`
}

type LocalConfig struct {
	Root          string `toml:"root"`
	PublicBaseURL string `toml:"public_base_url" validate:"omitempty,url"`
}

type WebhookConfig struct {
	AllowedHostSuffixes []string `toml:"allowed_host_suffixes"`
	DedupTTL            string   `toml:"dedup_ttl"`
	DedupSize           int      `toml:"dedup_size" validate:"gte=0"`
}

type MediaConfig struct {
	MaxBytes int64 `toml:"max_bytes" validate:"gte=0"`
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Twilio: TwilioConfig{
			MediaHost: DefaultTwilioHost,
		},
		Fal: FalConfig{
			BaseURL:      DefaultFalBaseURL,
			Model:        DefaultFalModel,
			Prompt:       DefaultFalPrompt,
			PollInterval: DefaultPollInterval,
			MaxWait:      DefaultMaxWait,
		},
		Storage: StorageConfig{
			Backend: StorageBackendS3,
		},
		Local: LocalConfig{
			Root: DefaultLocalRoot,
		},
		Webhook: WebhookConfig{
			AllowedHostSuffixes: append([]string(nil), DefaultAllowedHostSuffixes...),
			DedupTTL:            DefaultDedupTTL,
			DedupSize:           DefaultDedupSize,
		},
		Media: MediaConfig{
			MaxBytes: DefaultMaxBytes,
		},
	}
}

// Load reads the optional .env file, the optional TOML file at path and
// finally the environment. Later sources win.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(DefaultEnvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load %s: %w", DefaultEnvPath, err)
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("decode %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, err
	}

	if err := applyEnv(context.Background(), &cfg, os.LookupEnv, os.ReadFile); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field formats and parses every duration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	durations := map[string]string{
		"server.request_timeout": c.Server.RequestTimeout,
		"fal.poll_interval":      c.Fal.PollInterval,
		"fal.max_wait":           c.Fal.MaxWait,
		"webhook.dedup_ttl":      c.Webhook.DedupTTL,
	}
	for key, raw := range durations {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("invalid config: %s: %w", key, err)
		}
	}
	return nil
}

// ParseDuration parses a TOML duration string; empty means zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", raw)
	}
	return d, nil
}

// MustDuration parses an already validated duration.
func MustDuration(raw string) time.Duration {
	d, _ := ParseDuration(raw)
	return d
}
