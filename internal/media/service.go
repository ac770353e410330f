package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// Service uploads media through a StorageProvider and resolves public URLs.
type Service struct {
	provider StorageProvider
	logger   *slog.Logger
}

// NewService creates a media service with the given storage provider.
func NewService(log *slog.Logger, provider StorageProvider) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider: provider,
		logger:   log.With(slog.String("service", "media")),
	}
}

// Upload stores data under key and returns its public URL. An empty URL
// with a non-nil error means nothing usable was stored.
func (s *Service) Upload(ctx context.Context, data []byte, key string) (string, error) {
	if s == nil || s.provider == nil {
		return "", ErrProviderUnavailable
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("storage key is required")
	}
	contentType := ContentTypeForExt(path.Ext(key))
	if err := s.provider.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		s.logger.Error("upload failed", slog.String("key", key), slog.Any("error", err))
		return "", fmt.Errorf("store media: %w", err)
	}
	url := s.provider.AccessPath(key)
	if url == "" {
		return "", fmt.Errorf("storage provider returned no url for %s", key)
	}
	s.logger.Info("uploaded", slog.String("key", key), slog.String("url", url), slog.Int("bytes", len(data)))
	return url, nil
}

// ObjectKey builds "{category}/{messageID}_{ts}{ext}".
func ObjectKey(category, messageID string, ts int64, ext string) string {
	return fmt.Sprintf("%s/%s_%d%s", category, messageID, ts, NormalizeExt(ext))
}

const (
	CategoryOriginal  = "original"
	CategoryProcessed = "processed"
)
