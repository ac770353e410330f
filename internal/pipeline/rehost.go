package pipeline

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/memohai/stylebot/internal/media"
)

// EnsurePublicURL returns a URL a third party can fetch without credentials.
// URLs outside the provider's media host are returned unchanged. Provider
// media is downloaded with account credentials, validated and re-uploaded
// under original/{sid}_{ts}{ext}.
func (p *Pipeline) EnsurePublicURL(ctx context.Context, rawURL, messageSID string, ts int64) (string, error) {
	if !p.isProviderMedia(rawURL) {
		return rawURL, nil
	}
	if strings.TrimSpace(p.cfg.AccountSID) == "" || strings.TrimSpace(p.cfg.AuthToken) == "" {
		return "", media.ValidationError(media.ReasonMissingCredentials, "provider credentials are not configured")
	}

	dl, err := p.fetcher.Download(ctx, rawURL, p.cfg.MaxBytes, media.WithBasicAuth(p.cfg.AccountSID, p.cfg.AuthToken))
	if err != nil {
		return "", classifyFetchError("download provider media", err, p.cfg.MaxBytes)
	}
	if !media.IsAllowedImageType(dl.ContentType) {
		return "", media.ValidationError(media.ReasonUnsupportedType, "unsupported media type: %q", dl.ContentType)
	}
	if err := media.CheckSize(int64(len(dl.Data)), p.cfg.MaxBytes); err != nil {
		return "", media.ValidationError(media.ReasonTooLarge, "image exceeds %d bytes", p.cfg.MaxBytes)
	}

	key := media.ObjectKey(media.CategoryOriginal, messageSID, ts, media.ExtensionFromMime(dl.ContentType))
	publicURL, err := p.upload(ctx, dl.Data, key)
	if err != nil {
		return "", err
	}
	p.logger.Info("re-hosted provider media", slog.String("sid", messageSID), slog.String("url", publicURL))
	return publicURL, nil
}

func (p *Pipeline) isProviderMedia(rawURL string) bool {
	if p.cfg.ProviderMediaHost == "" {
		return false
	}
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), p.cfg.ProviderMediaHost)
}
