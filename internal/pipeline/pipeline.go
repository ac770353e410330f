// Package pipeline turns a received image URL into the public URL of its
// stylized copy: re-host, stylize, download, upload.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/memohai/stylebot/internal/media"
	"github.com/memohai/stylebot/internal/metrics"
	"github.com/memohai/stylebot/internal/stylize/fal"
)

const (
	StageRehost   = "rehost"
	StageStylize  = "stylize"
	StageDownload = "download"
	StageUpload   = "upload"
)

// Uploader stores bytes under key and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, key string) (string, error)
}

type Config struct {
	// ProviderMediaHost is the host whose media needs account credentials.
	ProviderMediaHost string
	AccountSID        string
	AuthToken         string
	MaxBytes          int64
}

type Pipeline struct {
	cfg      Config
	fetcher  *media.Fetcher
	stylizer fal.Stylizer
	uploader Uploader
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

func New(log *slog.Logger, cfg Config, fetcher *media.Fetcher, stylizer fal.Stylizer, uploader Uploader, m *metrics.Metrics) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	if fetcher == nil {
		fetcher = media.NewFetcher(media.WithRetryHook(m.FetchRetried))
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = media.MaxImageBytes
	}
	cfg.ProviderMediaHost = strings.ToLower(strings.TrimSpace(cfg.ProviderMediaHost))
	return &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		stylizer: stylizer,
		uploader: uploader,
		metrics:  m,
		logger:   log.With(slog.String("service", "pipeline")),
		now:      time.Now,
	}
}

// Process runs one pipeline invocation. Expected failures are *media.Error;
// stylizer failures propagate unchanged. No stage is retried here.
func (p *Pipeline) Process(ctx context.Context, originalURL, messageSID string) (finalURL string, err error) {
	started := p.now()
	ts := started.Unix()
	log := p.logger.With(slog.String("sid", messageSID))
	defer func() {
		p.metrics.PipelineRun(media.Outcome(err))
	}()

	publicURL, err := p.stage(StageRehost, func() (string, error) {
		return p.EnsurePublicURL(ctx, originalURL, messageSID, ts)
	})
	if err != nil {
		return "", err
	}

	stylizedURL, err := p.stage(StageStylize, func() (string, error) {
		if p.stylizer == nil {
			return "", errors.New("stylizer is not configured")
		}
		return p.stylizer.Stylize(ctx, publicURL)
	})
	if err != nil {
		return "", err
	}
	log.Info("stylized image", slog.String("url", stylizedURL))

	var data []byte
	if _, err = p.stage(StageDownload, func() (string, error) {
		var derr error
		data, derr = p.downloadResult(ctx, stylizedURL)
		return "", derr
	}); err != nil {
		return "", err
	}

	key := media.ObjectKey(media.CategoryProcessed, messageSID, ts, media.ExtensionFromURL(stylizedURL))
	finalURL, err = p.stage(StageUpload, func() (string, error) {
		return p.upload(ctx, data, key)
	})
	if err != nil {
		return "", err
	}

	log.Info("uploaded stylized image",
		slog.String("url", finalURL),
		slog.Float64("elapsed_ms", float64(p.now().Sub(started).Microseconds())/1000),
	)
	return finalURL, nil
}

func (p *Pipeline) stage(name string, fn func() (string, error)) (string, error) {
	started := time.Now()
	out, err := fn()
	p.metrics.ObserveStage(name, started, err)
	return out, err
}

// downloadResult fetches the stylized image without provider credentials.
func (p *Pipeline) downloadResult(ctx context.Context, rawURL string) ([]byte, error) {
	dl, err := p.fetcher.Download(ctx, rawURL, p.cfg.MaxBytes)
	if err != nil {
		return nil, classifyFetchError("download stylized image", err, p.cfg.MaxBytes)
	}
	if len(dl.Data) == 0 {
		return nil, media.DownloadError(media.ReasonEmptyContent, "no bytes downloaded from stylized url", media.ErrEmptyAsset)
	}
	return dl.Data, nil
}

func (p *Pipeline) upload(ctx context.Context, data []byte, key string) (string, error) {
	if p.uploader == nil {
		return "", media.UploadError("upload "+key, media.ErrProviderUnavailable)
	}
	url, err := p.uploader.Upload(ctx, data, key)
	if err != nil || strings.TrimSpace(url) == "" {
		return "", media.UploadError("upload "+key, err)
	}
	return url, nil
}

// classifyFetchError maps fetcher failures onto the pipeline error kinds.
func classifyFetchError(detail string, err error, maxBytes int64) error {
	if errors.Is(err, media.ErrAssetTooLarge) {
		return media.ValidationError(media.ReasonTooLarge, "image exceeds %d bytes", maxBytes)
	}
	return media.DownloadError(media.ReasonTransport, detail, err)
}
