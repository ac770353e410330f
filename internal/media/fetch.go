package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultFetchAttempts = 3
	DefaultFetchTimeout  = 15 * time.Second
	DefaultFetchBackoff  = 400 * time.Millisecond
)

// Fetcher performs GET requests with bounded retry on transient failures:
// transport errors and 502/503/504 responses. Attempt i (0-based) is
// followed by a wait of backoff*(i+1) when another attempt remains.
type Fetcher struct {
	client   *http.Client
	attempts int
	backoff  time.Duration
	newTimer func() backoff.Timer
	onRetry  func(attempt int, cause string)
}

type FetcherOption func(*Fetcher)

// WithHTTPClient replaces the default client (15s timeout, redirects followed).
func WithHTTPClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimer replaces the wall-clock timer used between attempts.
func WithTimer(newTimer func() backoff.Timer) FetcherOption {
	return func(f *Fetcher) { f.newTimer = newTimer }
}

// WithRetryHook registers a callback invoked before every retry.
func WithRetryHook(hook func(attempt int, cause string)) FetcherOption {
	return func(f *Fetcher) { f.onRetry = hook }
}

func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{Timeout: DefaultFetchTimeout},
		attempts: DefaultFetchAttempts,
		backoff:  DefaultFetchBackoff,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// linearBackOff waits step, 2*step, 3*step, ...
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.step * time.Duration(b.n)
}

func (b *linearBackOff) Reset() { b.n = 0 }

// RequestOption decorates an outgoing request, e.g. with credentials.
type RequestOption func(*http.Request)

// WithBasicAuth authenticates the request with provider account credentials.
func WithBasicAuth(username, password string) RequestOption {
	return func(r *http.Request) { r.SetBasicAuth(username, password) }
}

// Get returns the first successful response. The caller must close its body.
func (f *Fetcher) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		for _, opt := range opts {
			opt(req)
		}

		r, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices {
			resp = r
			return nil
		}
		discard(r)
		statusErr := &StatusError{URL: rawURL, StatusCode: r.StatusCode}
		if !isRetryableStatus(r.StatusCode) {
			return backoff.Permanent(statusErr)
		}
		return statusErr
	}

	retries := 0
	notify := func(err error, _ time.Duration) {
		retries++
		if f.onRetry != nil {
			f.onRetry(retries, retryCause(err))
		}
	}

	var timer backoff.Timer
	if f.newTimer != nil {
		timer = f.newTimer()
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{step: f.backoff}, uint64(max(f.attempts-1, 0))),
		ctx,
	)
	if err := backoff.RetryNotifyWithTimer(operation, policy, notify, timer); err != nil {
		return nil, err
	}
	return resp, nil
}

// Download holds a fully read, size-checked response body.
type Download struct {
	Data        []byte
	ContentType string
}

// Download fetches rawURL and reads at most maxBytes of its body. A larger
// body yields an error wrapping ErrAssetTooLarge.
func (f *Fetcher) Download(ctx context.Context, rawURL string, maxBytes int64, opts ...RequestOption) (Download, error) {
	resp, err := f.Get(ctx, rawURL, opts...)
	if err != nil {
		return Download{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := CheckSize(resp.ContentLength, maxBytes); err != nil {
		return Download{}, err
	}
	data, err := ReadAllWithLimit(resp.Body, maxBytes)
	if err != nil {
		return Download{}, err
	}
	return Download{
		Data:        data,
		ContentType: BaseMime(resp.Header.Get("Content-Type")),
	}, nil
}

func retryCause(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return http.StatusText(statusErr.StatusCode)
	}
	return err.Error()
}

func isRetryableStatus(code int) bool {
	switch code {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	_ = resp.Body.Close()
}
