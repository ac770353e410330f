// Package localfs implements media.StorageProvider on the local filesystem.
// Objects written under <root>/<key> are served by the HTTP server at
// /media/<key>, which makes the backend usable for development behind a tunnel.
package localfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/memohai/stylebot/internal/media"
)

// RoutePrefix is where stored objects are exposed over HTTP.
const RoutePrefix = "/media"

// Provider stores objects below a root directory.
type Provider struct {
	root          string
	publicBaseURL string
}

// New creates a filesystem provider. publicBaseURL is the externally
// reachable origin of this service, e.g. "https://abc.ngrok.app".
func New(root, publicBaseURL string) (*Provider, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &Provider{
		root:          abs,
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}, nil
}

// Put writes data to <root>/<key>.
func (p *Provider) Put(_ context.Context, key string, reader io.Reader, _ string) error {
	dest, err := p.hostPath(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	_, copyErr := io.Copy(f, reader)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(dest)
		if copyErr != nil {
			return fmt.Errorf("write file: %w", copyErr)
		}
		return fmt.Errorf("close file: %w", closeErr)
	}
	return nil
}

// AccessPath returns the public URL for key, or "" when no public base URL
// is configured.
func (p *Provider) AccessPath(key string) string {
	if p.publicBaseURL == "" {
		return ""
	}
	return p.publicBaseURL + RoutePrefix + "/" + strings.TrimLeft(filepath.ToSlash(key), "/")
}

// Register exposes stored objects read-only.
func (p *Provider) Register(e *echo.Echo) {
	e.GET(RoutePrefix+"/*", p.serve)
}

func (p *Provider) serve(c echo.Context) error {
	dest, err := p.hostPath(c.Param("*"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if _, err := os.Stat(dest); err != nil {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	c.Response().Header().Set(echo.HeaderContentType, media.ContentTypeForExt(filepath.Ext(dest)))
	return c.File(dest)
}

func (p *Provider) hostPath(key string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimSpace(key)))
	if clean == "." || clean == "" {
		return "", fmt.Errorf("invalid storage key: %q", key)
	}
	if filepath.IsAbs(clean) {
		return "", fmt.Errorf("absolute key is forbidden: %s", key)
	}
	if strings.HasPrefix(clean, ".."+string(filepath.Separator)) || clean == ".." {
		return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
	}
	joined := filepath.Join(p.root, clean)
	if !strings.HasPrefix(joined, p.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", media.ErrPathTraversal, key)
	}
	return joined, nil
}
