package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config configures the optional S3-backed blob store, for deployments
// that want archive blobs to survive process restart (spec §4.7: handles
// "survive process restart only if the underlying store is persistent").
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3-compatible endpoint URL (optional).
	Endpoint string
	// UsePathStyle forces path-style addressing, required by most
	// S3-compatible providers (R2, MinIO, etc).
	UsePathStyle bool
}

func (c S3Config) validate() error {
	if c.Bucket == "" {
		return errors.New("blob: S3 bucket is required")
	}
	return nil
}

// S3Store is a Store backend persisting blobs to S3-compatible storage,
// keyed by content hash under an optional prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Store creates an S3-backed Store using the AWS SDK default
// credential chain (env vars, shared config, IAM role).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("blob: load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) { o.BaseEndpoint = &endpoint })
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) { o.UsePathStyle = true })
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3Store) key(hash string) string {
	if s.prefix == "" {
		return hash
	}
	return s.prefix + "/" + hash
}

// StoreBlob implements Store. Uploads are idempotent by content hash: a
// re-upload of identical bytes overwrites the same key with identical
// content, which is harmless.
func (s *S3Store) StoreBlob(ctx context.Context, data []byte) (Handle, error) {
	sum := sha256.Sum256(data)
	handle := Handle{hash: hex.EncodeToString(sum[:])}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    strPtr(s.key(handle.hash)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return Handle{}, fmt.Errorf("blob: put object: %w", err)
	}
	return handle, nil
}

// Fetch implements Store.
func (s *S3Store) Fetch(ctx context.Context, handle Handle) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    strPtr(s.key(handle.hash)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blob: get object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("blob: read object body: %w", err)
	}
	return data, nil
}

func strPtr(s string) *string { return &s }
