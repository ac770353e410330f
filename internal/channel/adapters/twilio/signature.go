package twilio

import (
	"net/http"
	"strings"

	twclient "github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the provider's request signature.
const SignatureHeader = "X-Twilio-Signature"

// SignatureVerifier checks webhook signatures with the account auth token.
type SignatureVerifier struct {
	validator     twclient.RequestValidator
	enabled       bool
	publicBaseURL string
}

// NewSignatureVerifier returns a verifier. With an empty token verification
// is disabled and every request passes.
func NewSignatureVerifier(authToken, publicBaseURL string) *SignatureVerifier {
	authToken = strings.TrimSpace(authToken)
	return &SignatureVerifier{
		validator:     twclient.NewRequestValidator(authToken),
		enabled:       authToken != "",
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
	}
}

// Enabled reports whether signatures are checked.
func (v *SignatureVerifier) Enabled() bool {
	return v != nil && v.enabled
}

// Verify reports whether the request signature matches the given form params.
// The request body must already be parsed into params.
func (v *SignatureVerifier) Verify(r *http.Request, params map[string]string) bool {
	if !v.Enabled() {
		return true
	}
	signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if signature == "" {
		return false
	}
	return v.validator.Validate(v.requestURL(r), params, signature)
}

// requestURL rebuilds the URL the provider posted to. A configured public base
// URL wins over the scheme and host seen by this process.
func (v *SignatureVerifier) requestURL(r *http.Request) string {
	if v.publicBaseURL != "" {
		return v.publicBaseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Proto"), ",")[0]); proto != "" {
		scheme = strings.ToLower(proto)
	}
	host := r.Host
	if fwd := strings.TrimSpace(strings.Split(r.Header.Get("X-Forwarded-Host"), ",")[0]); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host + r.URL.RequestURI()
}
