package storage

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config encapsulates connection info for an S3-compatible endpoint.
type S3Config struct {
	Endpoint    string
	AccessKey   string
	SecretKey   string
	Region      string
	UseSSL      bool
	PageTimeout time.Duration
}

// S3Lister lists objects from S3-compatible services using the low-level
// ListObjectsV2 API so that continuation tokens stay visible to the caller.
type S3Lister struct {
	core *minio.Core
}

// NewS3Lister builds an S3Lister. The page timeout is enforced on the HTTP
// transport, so each page fetch fails independently; the overall discovery
// deadline comes from the caller's context.
func NewS3Lister(cfg S3Config) (*S3Lister, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}

	endpoint := strings.TrimPrefix(cfg.Endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	opts := &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: region,
	}
	if cfg.PageTimeout > 0 {
		opts.Transport = &http.Transport{
			ResponseHeaderTimeout: cfg.PageTimeout,
		}
	}

	core, err := minio.NewCore(endpoint, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Lister{core: core}, nil
}

func (l *S3Lister) Name() string { return "s3" }

// List returns one page of objects under req.Prefix.
func (l *S3Lister) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res, err := l.core.ListObjectsV2(req.Bucket, req.Prefix, "", req.Token, "", req.MaxKeys)
	if err != nil {
		return nil, wrapS3Error(req.Bucket, err)
	}

	out := &ListResult{
		Objects:   make([]ObjectRef, 0, len(res.Contents)),
		NextToken: res.NextContinuationToken,
		Truncated: res.IsTruncated,
	}
	for _, obj := range res.Contents {
		out.Objects = append(out.Objects, ObjectRef{
			Bucket:       req.Bucket,
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         obj.ETag,
		})
	}
	return out, nil
}

// ListLevel lists one directory level: objects directly under the prefix and
// the immediate child prefixes. Pages are drained internally.
func (l *S3Lister) ListLevel(ctx context.Context, req ListRequest, delimiter string) (*LevelResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	level := &LevelResult{}
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res, err := l.core.ListObjectsV2(req.Bucket, req.Prefix, "", token, delimiter, req.MaxKeys)
		if err != nil {
			return nil, wrapS3Error(req.Bucket, err)
		}

		for _, obj := range res.Contents {
			level.Objects = append(level.Objects, ObjectRef{
				Bucket:       req.Bucket,
				Key:          obj.Key,
				Size:         obj.Size,
				LastModified: obj.LastModified,
				ETag:         obj.ETag,
			})
		}
		for _, cp := range res.CommonPrefixes {
			level.Prefixes = append(level.Prefixes, cp.Prefix)
		}

		if !res.IsTruncated || res.NextContinuationToken == "" {
			return level, nil
		}
		token = res.NextContinuationToken
	}
}

func validateRequest(req ListRequest) error {
	if req.Bucket == "" {
		return fmt.Errorf("%w: bucket name is required", ErrInvalidSpec)
	}
	return nil
}

func wrapS3Error(bucket string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket", "InvalidBucketName":
		return fmt.Errorf("%w: bucket %q: %s", ErrInvalidSpec, bucket, resp.Code)
	}
	return fmt.Errorf("%w: s3 list failed: %v", ErrStorageUnavailable, err)
}

var (
	_ Lister          = (*S3Lister)(nil)
	_ DelimiterLister = (*S3Lister)(nil)
)
