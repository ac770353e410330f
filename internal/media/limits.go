package media

import (
	"errors"
	"fmt"
	"io"
)

// MaxImageBytes caps every image the pipeline downloads, re-hosts or uploads.
const MaxImageBytes int64 = 5 * 1024 * 1024

// CheckSize rejects a declared or measured length above maxBytes.
func CheckSize(n, maxBytes int64) error {
	if n > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds max %d", ErrAssetTooLarge, n, maxBytes)
	}
	return nil
}

// ReadAllWithLimit reads the body into memory, stopping one byte past
// maxBytes so an oversized body is never buffered whole.
func ReadAllWithLimit(reader io.Reader, maxBytes int64) ([]byte, error) {
	if reader == nil {
		return nil, errors.New("media: nil reader")
	}
	if maxBytes <= 0 {
		return nil, fmt.Errorf("media: invalid size limit %d", maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(reader, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, maxBytes)
	}
	return data, nil
}
