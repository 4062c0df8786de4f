package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// S3API is the subset of the S3 client used by the S3 backend.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3 implements Backend on a single S3 bucket.
type S3 struct {
	client  S3API
	bucket  string
	baseURL string
}

// S3Option configures an S3 backend.
type S3Option func(*S3)

// WithPublicBaseURL overrides the URL objects are served from, e.g. a CDN in
// front of the bucket.
func WithPublicBaseURL(baseURL string) S3Option {
	return func(s *S3) {
		s.baseURL = baseURL
	}
}

// NewS3 creates a backend for bucket. Public URLs default to the bucket's
// virtual-hosted address.
func NewS3(client S3API, bucket string, opts ...S3Option) *S3 {
	s := &S3{
		client:  client,
		bucket:  bucket,
		baseURL: fmt.Sprintf("https://%s.s3.amazonaws.com", bucket),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Write uploads r to key. PutObject requires a Content-Length, so readers
// that cannot report their size are buffered first.
func (s *S3) Write(ctx context.Context, key string, r io.Reader, opts ...WriteOption) error {
	o := ApplyWriteOptions(opts...)

	body, size, err := sizedBody(r)
	if err != nil {
		return fmt.Errorf("S3 PutObject %q: reading body: %w", key, err)
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	}
	if o.ContentType != "" {
		input.ContentType = aws.String(o.ContentType)
	}
	if o.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("S3 PutObject %q: %w", key, err)
	}
	return nil
}

// sizedBody returns a seekable body and its length, buffering r when it is
// not already a sized seeker such as *bytes.Reader.
func sizedBody(r io.Reader) (io.ReadSeeker, int64, error) {
	type sizedSeeker interface {
		io.ReadSeeker
		Len() int
	}
	if sr, ok := r.(sizedSeeker); ok {
		return sr, int64(sr.Len()), nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(data), int64(len(data)), nil
}

// Read fetches the object at key.
func (s *S3) Read(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("S3 GetObject %q: %w", key, err)
	}
	return out.Body, nil
}

// Delete removes the object at key. S3 deletes are already idempotent.
func (s *S3) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("S3 DeleteObject %q: %w", key, err)
	}
	return nil
}

// URL returns the public address of key.
func (s *S3) URL(key string) string {
	return joinURL(s.baseURL, key)
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

var _ Backend = (*S3)(nil)
