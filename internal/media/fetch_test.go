package media

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantTimer fires as soon as it is started and records each wait.
type instantTimer struct {
	calls   []time.Duration
	onStart func()
	c       chan time.Time
}

func newInstantTimer() *instantTimer {
	return &instantTimer{c: make(chan time.Time, 1)}
}

func (t *instantTimer) Start(d time.Duration) {
	t.calls = append(t.calls, d)
	if t.onStart != nil {
		t.onStart()
		return
	}
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time { return t.c }

func (t *instantTimer) option() FetcherOption {
	return WithTimer(func() backoff.Timer { return t })
}

func statusSequenceServer(t *testing.T, statuses ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		idx := int(n) - 1
		if idx >= len(statuses) {
			idx = len(statuses) - 1
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(statuses[idx])
		_, _ = w.Write([]byte("png-bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestFetcherGetSuccess(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusOK)
	rec := newInstantTimer()
	f := NewFetcher(rec.option())

	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, rec.calls)
}

func TestFetcherRetriesTransientStatus(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusServiceUnavailable, http.StatusServiceUnavailable, http.StatusOK)
	rec := newInstantTimer()
	var retried []int
	f := NewFetcher(rec.option(), WithRetryHook(func(attempt int, _ string) {
		retried = append(retried, attempt)
	}))

	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, []time.Duration{400 * time.Millisecond, 800 * time.Millisecond}, rec.calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestFetcherFinalAttemptStatusFails(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusBadGateway, http.StatusGatewayTimeout, http.StatusServiceUnavailable, http.StatusOK)
	rec := newInstantTimer()
	f := NewFetcher(rec.option())

	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Len(t, rec.calls, 2)
}

func TestFetcherNonRetryableStatusFailsImmediately(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusNotFound)
	rec := newInstantTimer()
	f := NewFetcher(rec.option())

	_, err := f.Get(context.Background(), srv.URL)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Empty(t, rec.calls)
}

func TestFetcherTransportErrorExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls int32
	client := &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("connection failed")
	})}
	rec := newInstantTimer()
	f := NewFetcher(WithHTTPClient(client), rec.option())

	_, err := f.Get(context.Background(), "https://example.com/test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection failed")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Len(t, rec.calls, 2)
}

func TestFetcherBasicAuth(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "AC123" || pass != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer srv.Close()

	f := NewFetcher()
	dl, err := f.Download(context.Background(), srv.URL, MaxImageBytes, WithBasicAuth("AC123", "token"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", dl.ContentType)
	assert.Equal(t, []byte("jpeg"), dl.Data)

	_, err = f.Download(context.Background(), srv.URL, MaxImageBytes)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
}

func TestFetcherDownloadTooLarge(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewFetcher().Download(context.Background(), srv.URL, 32)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAssetTooLarge))
}

func TestFetcherStopsOnCancelledContext(t *testing.T) {
	t.Parallel()

	srv, hits := statusSequenceServer(t, http.StatusServiceUnavailable)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := newInstantTimer()
	rec.onStart = cancel
	f := NewFetcher(rec.option())

	_, err := f.Get(ctx, srv.URL)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestFetcherRetryHookReportsCause(t *testing.T) {
	t.Parallel()

	srv, _ := statusSequenceServer(t, http.StatusBadGateway, http.StatusOK)
	var causes []string
	f := NewFetcher(newInstantTimer().option(), WithRetryHook(func(_ int, cause string) {
		causes = append(causes, cause)
	}))

	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, []string{"Bad Gateway"}, causes)
}

func TestLinearBackOff(t *testing.T) {
	t.Parallel()

	b := &linearBackOff{step: DefaultFetchBackoff}
	assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 800*time.Millisecond, b.NextBackOff())
	assert.Equal(t, 1200*time.Millisecond, b.NextBackOff())
	b.Reset()
	assert.Equal(t, 400*time.Millisecond, b.NextBackOff())
}
