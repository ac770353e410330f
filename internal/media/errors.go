package media

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetTooLarge indicates the payload exceeds the configured max size.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrEmptyAsset indicates a download produced no bytes.
	ErrEmptyAsset = errors.New("media asset is empty")
	// ErrProviderUnavailable indicates the storage provider is not configured.
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrPathTraversal indicates a storage key attempted directory traversal.
	ErrPathTraversal = errors.New("path traversal is forbidden")
)

// Kind classifies an expected pipeline failure.
type Kind string

const (
	KindValidation Kind = "validation"
	KindDownload   Kind = "download"
	KindUpload     Kind = "upload"
)

// Reason narrows a Kind so callers can pick a reply without inspecting text.
type Reason string

const (
	ReasonTooLarge           Reason = "too_large"
	ReasonUnsupportedType    Reason = "unsupported_type"
	ReasonMissingCredentials Reason = "missing_credentials"
	ReasonEmptyContent       Reason = "empty_content"
	ReasonTransport          Reason = "transport"
	ReasonNoURL              Reason = "no_url"
)

// Error is an expected pipeline failure. Anything that is not an *Error
// is treated as unanticipated by callers.
type Error struct {
	Kind   Kind
	Reason Reason
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := string(e.Kind) + " error"
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func ValidationError(reason Reason, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func DownloadError(reason Reason, detail string, err error) *Error {
	return &Error{Kind: KindDownload, Reason: reason, Detail: detail, Err: err}
}

func UploadError(detail string, err error) *Error {
	return &Error{Kind: KindUpload, Reason: ReasonNoURL, Detail: detail, Err: err}
}

// KindOf returns the failure kind of err and whether it is an expected one.
func KindOf(err error) (Kind, Reason, bool) {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind, me.Reason, true
	}
	return "", "", false
}

const (
	OutcomeSuccess    = "success"
	OutcomeUnexpected = "unexpected_error"
)

// Outcome names the result of a pipeline run for logs and metrics labels.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	if kind, _, ok := KindOf(err); ok {
		return string(kind) + "_error"
	}
	return OutcomeUnexpected
}

// StatusError reports a non-2xx response from a fetched URL.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}
