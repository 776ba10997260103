// Package artifacts fetches model artifacts from local disk or S3.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sethvargo/go-retry"
)

const s3Scheme = "s3://"

// S3API is the slice of the S3 client used here.
type S3API interface {
	GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// Fetcher opens artifacts by location: "s3://bucket/key" or a local path.
type Fetcher struct {
	s3      S3API
	backoff func() retry.Backoff
}

// NewFetcher returns a Fetcher. s3Client may be nil when only local paths are used.
func NewFetcher(s3Client S3API) *Fetcher {
	return &Fetcher{
		s3: s3Client,
		backoff: func() retry.Backoff {
			return retry.WithMaxRetries(5, retry.NewFibonacci(1*time.Second))
		},
	}
}

// ParseS3 splits an s3:// location into bucket and key.
func ParseS3(location string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(location, s3Scheme)
	if !found {
		return "", "", false
	}
	bucket, key, found = strings.Cut(rest, "/")
	if !found || bucket == "" || key == "" {
		return "", "", false
	}
	return bucket, key, true
}

// Open returns a reader over the artifact at location.
func (f *Fetcher) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	if !strings.HasPrefix(location, s3Scheme) {
		file, err := os.Open(location)
		if err != nil {
			return nil, fmt.Errorf("could not open artifact: %w", err)
		}
		return file, nil
	}

	bucket, key, ok := ParseS3(location)
	if !ok {
		return nil, fmt.Errorf("malformed s3 location %q", location)
	}
	if f.s3 == nil {
		return nil, fmt.Errorf("no s3 client configured for %s", location)
	}

	var body io.ReadCloser
	err := retry.Do(ctx, f.backoff(), func(ctx context.Context) error {
		out, err := f.s3.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			if permanent(err) {
				return err
			}
			return retry.RetryableError(err)
		}
		body = out.Body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", location, err)
	}
	return body, nil
}

// permanent reports S3 errors that retrying cannot fix.
func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchBucket, s3.ErrCodeNoSuchKey, "AccessDenied":
			return true
		}
	}
	return false
}
