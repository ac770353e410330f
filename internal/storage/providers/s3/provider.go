// Package s3 implements media.StorageProvider on Amazon S3 or an
// S3-compatible endpoint.
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config selects the bucket and credentials. Empty static credentials fall
// back to the default AWS credential chain.
type Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string
	PublicBaseURL   string
}

// Provider uploads objects to a single bucket.
type Provider struct {
	client  putObjectAPI
	bucket  string
	baseURL string
}

// New loads AWS configuration and builds an S3 client.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	region := strings.TrimSpace(cfg.Region)
	bucket := strings.TrimSpace(cfg.Bucket)
	if region == "" || bucket == "" {
		return nil, fmt.Errorf("s3 region and bucket are required")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newWithClient(client, bucket, publicBaseURL(cfg.PublicBaseURL, endpoint, bucket, region)), nil
}

func newWithClient(client putObjectAPI, bucket, baseURL string) *Provider {
	return &Provider{client: client, bucket: bucket, baseURL: baseURL}
}

// publicBaseURL picks the origin objects are reachable at, in order: an
// explicit public URL, the custom endpoint (path-style), virtual-hosted S3.
func publicBaseURL(explicit, endpoint, bucket, region string) string {
	if explicit = strings.TrimRight(strings.TrimSpace(explicit), "/"); explicit != "" {
		return explicit
	}
	if endpoint != "" {
		return endpoint + "/" + bucket
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
}

// Put uploads the reader under key.
func (p *Provider) Put(ctx context.Context, key string, reader io.Reader, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
		Body:   reader,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := p.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}

// AccessPath returns the public object URL for key.
func (p *Provider) AccessPath(key string) string {
	segments := strings.Split(strings.TrimLeft(key, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return p.baseURL + "/" + strings.Join(segments, "/")
}
