package media

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	puts        map[string][]byte
	contentType map[string]string
	err         error
	base        string
}

func (p *fakeProvider) Put(_ context.Context, key string, reader io.Reader, contentType string) error {
	if p.err != nil {
		return p.err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	if p.puts == nil {
		p.puts = map[string][]byte{}
		p.contentType = map[string]string{}
	}
	p.puts[key] = data
	p.contentType[key] = contentType
	return nil
}

func (p *fakeProvider) AccessPath(key string) string {
	if p.base == "" {
		return ""
	}
	return p.base + "/" + key
}

func TestServiceUpload(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{base: "https://bucket.s3.us-east-1.amazonaws.com"}
	svc := NewService(nil, provider)

	url, err := svc.Upload(context.Background(), []byte("img"), "processed/SM1_1.png")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.us-east-1.amazonaws.com/processed/SM1_1.png", url)
	assert.Equal(t, "image/png", provider.contentType["processed/SM1_1.png"])
}

func TestServiceUploadFailures(t *testing.T) {
	t.Parallel()

	svc := NewService(nil, &fakeProvider{err: errors.New("denied"), base: "https://b"})
	url, err := svc.Upload(context.Background(), []byte("img"), "processed/a.jpg")
	assert.Error(t, err)
	assert.Empty(t, url)

	svc = NewService(nil, &fakeProvider{})
	url, err = svc.Upload(context.Background(), []byte("img"), "processed/a.jpg")
	assert.Error(t, err)
	assert.Empty(t, url)

	svc = NewService(nil, nil)
	_, err = svc.Upload(context.Background(), []byte("img"), "processed/a.jpg")
	assert.True(t, errors.Is(err, ErrProviderUnavailable))
}
