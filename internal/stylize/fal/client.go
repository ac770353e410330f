// Package fal calls the fal.ai queue API to restyle an image.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL      = "https://queue.fal.run"
	DefaultModel        = "fal-ai/flux-pro/kontext/max"
	DefaultPrompt       = "Change to Simpsons style while maintaining the original composition and object placement"
	DefaultPollInterval = time.Second
	DefaultMaxWait      = 5 * time.Minute

	statusCompleted = "COMPLETED"
	maxResponseSize = 1 << 20
)

var (
	// ErrNoImages is returned when a completed job produced no image entries.
	ErrNoImages = errors.New("fal: job completed but returned no images")
	// ErrTimeout is returned when the job does not complete within MaxWait.
	ErrTimeout = errors.New("fal: timed out waiting for job")
)

// Stylizer turns a publicly fetchable image URL into a stylized image URL.
type Stylizer interface {
	Stylize(ctx context.Context, imageURL string) (string, error)
}

type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Prompt       string
	PollInterval time.Duration
	MaxWait      time.Duration
}

// Client submits jobs to the queue and polls until they finish.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewClient(log *slog.Logger, cfg Config, httpClient *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = DefaultModel
	}
	if strings.TrimSpace(cfg.Prompt) == "" {
		cfg.Prompt = DefaultPrompt
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = DefaultMaxWait
	}
	return &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: log.With(slog.String("client", "fal")),
		sleep:  sleepContext,
	}
}

type submitRequest struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url"`
}

type submitResponse struct {
	RequestID   string `json:"request_id"`
	StatusURL   string `json:"status_url"`
	ResponseURL string `json:"response_url"`
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

type resultResponse struct {
	Images []struct {
		URL string `json:"url"`
	} `json:"images"`
}

// Stylize submits imageURL with the configured prompt, waits for the job and
// returns the URL of the first produced image.
func (c *Client) Stylize(ctx context.Context, imageURL string) (string, error) {
	if strings.TrimSpace(c.cfg.APIKey) == "" {
		return "", fmt.Errorf("fal: api key is not configured")
	}
	c.logger.Info("submitting stylize job", slog.String("image_url", imageURL))

	var submitted submitResponse
	body, err := json.Marshal(submitRequest{Prompt: c.cfg.Prompt, ImageURL: imageURL})
	if err != nil {
		return "", err
	}
	if err := c.do(ctx, http.MethodPost, c.cfg.BaseURL+"/"+strings.TrimLeft(c.cfg.Model, "/"), body, &submitted); err != nil {
		return "", fmt.Errorf("fal submit: %w", err)
	}
	if submitted.StatusURL == "" || submitted.ResponseURL == "" {
		return "", fmt.Errorf("fal submit: response missing status or response url")
	}

	if err := c.wait(ctx, submitted); err != nil {
		return "", err
	}

	var result resultResponse
	if err := c.do(ctx, http.MethodGet, submitted.ResponseURL, nil, &result); err != nil {
		return "", fmt.Errorf("fal result: %w", err)
	}
	if len(result.Images) == 0 || strings.TrimSpace(result.Images[0].URL) == "" {
		return "", ErrNoImages
	}
	url := result.Images[0].URL
	c.logger.Info("stylize job completed", slog.String("request_id", submitted.RequestID), slog.String("url", url))
	return url, nil
}

func (c *Client) wait(ctx context.Context, job submitResponse) error {
	deadline := time.Now().Add(c.cfg.MaxWait)
	for {
		var status statusResponse
		if err := c.do(ctx, http.MethodGet, job.StatusURL, nil, &status); err != nil {
			return fmt.Errorf("fal status: %w", err)
		}
		if status.Error != "" {
			return fmt.Errorf("fal job %s failed: %s", job.RequestID, status.Error)
		}
		if strings.EqualFold(status.Status, statusCompleted) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w %s", ErrTimeout, job.RequestID)
		}
		c.logger.Debug("stylize job pending", slog.String("request_id", job.RequestID), slog.String("status", status.Status))
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return err
		}
	}
}

func (c *Client) do(ctx context.Context, method, url string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Key "+strings.TrimSpace(c.cfg.APIKey))
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
