package twilio

import (
	"net/url"
	"strings"
)

// HostAllowed reports whether rawURL is an http(s) URL whose host equals one
// of suffixes or is a subdomain of it. Matching is case-insensitive.
func HostAllowed(rawURL string, suffixes []string) bool {
	host := urlHost(rawURL)
	if host == "" {
		return false
	}
	for _, suffix := range suffixes {
		suffix = strings.Trim(strings.ToLower(strings.TrimSpace(suffix)), ".")
		if suffix == "" {
			continue
		}
		if host == suffix || strings.HasSuffix(host, "."+suffix) {
			return true
		}
	}
	return false
}

func urlHost(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ""
	}
	return strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
}
