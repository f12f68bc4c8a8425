package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type Options struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	PresignTTL    time.Duration
}

// Upload describes a presigned direct upload.
type Upload struct {
	Key       string      `json:"key"`
	URL       string      `json:"url"`
	Method    string      `json:"method"`
	Headers   http.Header `json:"headers,omitempty"`
	PublicURL string      `json:"public_url"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Presigner hands out presigned S3 PUT URLs for media uploads.
type Presigner struct {
	client        *s3.PresignClient
	bucket        string
	publicBaseURL string
	ttl           time.Duration
}

func NewPresigner(ctx context.Context, opts Options) (*Presigner, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	public := strings.TrimRight(opts.PublicBaseURL, "/")
	if public == "" {
		if opts.Endpoint != "" {
			public = strings.TrimRight(opts.Endpoint, "/") + "/" + opts.Bucket
		} else {
			public = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", opts.Bucket, opts.Region)
		}
	}

	return &Presigner{
		client:        s3.NewPresignClient(client),
		bucket:        opts.Bucket,
		publicBaseURL: public,
		ttl:           opts.PresignTTL,
	}, nil
}

// PresignUpload signs a PUT for key. The client must send the returned headers.
func (p *Presigner) PresignUpload(ctx context.Context, key, contentType string) (*Upload, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}

	var req *v4.PresignedHTTPRequest
	req, err := p.client.PresignPutObject(ctx, in, s3.WithPresignExpires(p.ttl))
	if err != nil {
		return nil, fmt.Errorf("presign put: %w", err)
	}

	return &Upload{
		Key:       key,
		URL:       req.URL,
		Method:    req.Method,
		Headers:   req.SignedHeader,
		PublicURL: p.PublicURL(key),
		ExpiresAt: time.Now().Add(p.ttl),
	}, nil
}

// PublicURL is where an uploaded object is served from.
func (p *Presigner) PublicURL(key string) string {
	return p.publicBaseURL + "/" + strings.TrimLeft(key, "/")
}
