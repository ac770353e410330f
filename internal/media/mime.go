package media

import (
	"net/url"
	"path"
	"strings"
)

// DefaultExt is used whenever an extension cannot be inferred or is not accepted.
const DefaultExt = ".jpg"

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
	"image/webp": {},
}

var acceptedExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// BaseMime strips parameters from a Content-Type header and lowercases it.
func BaseMime(contentType string) string {
	mime := strings.TrimSpace(contentType)
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}
	return strings.ToLower(mime)
}

// IsAllowedImageType reports whether mime (already normalized) is accepted.
func IsAllowedImageType(mime string) bool {
	_, ok := allowedImageTypes[mime]
	return ok
}

func extensionFromMime(mime string) string {
	switch BaseMime(mime) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return DefaultExt
	}
}

// ExtensionFromMime derives an accepted file extension from a content type.
func ExtensionFromMime(mime string) string {
	return NormalizeExt(extensionFromMime(mime))
}

// ExtensionFromURL derives an accepted file extension from a URL path suffix.
func ExtensionFromURL(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return NormalizeExt(path.Ext(p))
}

// NormalizeExt lowercases ext and coerces anything outside the accepted set to DefaultExt.
func NormalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if _, ok := acceptedExts[ext]; ok {
		return ext
	}
	return DefaultExt
}

// ContentTypeForExt maps an accepted extension back to its content type.
func ContentTypeForExt(ext string) string {
	switch NormalizeExt(ext) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
