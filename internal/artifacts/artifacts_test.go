package artifacts

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/sethvargo/go-retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects  map[string]string
	failures int
	calls    int
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, awserr.New("RequestTimeout", "slow down", nil)
	}
	body, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "missing", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func fastFetcher(client S3API) *Fetcher {
	f := NewFetcher(client)
	f.backoff = func() retry.Backoff {
		return retry.WithMaxRetries(3, retry.NewConstant(time.Millisecond))
	}
	return f
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestParseS3(t *testing.T) {
	bucket, key, ok := ParseS3("s3://models/sentiment/v1.json")
	require.True(t, ok)
	assert.Equal(t, "models", bucket)
	assert.Equal(t, "sentiment/v1.json", key)

	for _, bad := range []string{"models/v1.json", "s3://models", "s3:///key", "s3://models/"} {
		_, _, ok := ParseS3(bad)
		assert.False(t, ok, bad)
	}
}

func TestOpenLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vectorizer.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"idf": []}`), 0o644))

	rc, err := NewFetcher(nil).Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, `{"idf": []}`, readAll(t, rc))

	_, err = NewFetcher(nil).Open(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenS3RetriesTransientErrors(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"models/clf.json": "weights"}, failures: 2}

	rc, err := fastFetcher(client).Open(context.Background(), "s3://models/clf.json")
	require.NoError(t, err)
	assert.Equal(t, "weights", readAll(t, rc))
	assert.Equal(t, 3, client.calls)
}

func TestOpenS3MissingKeyIsPermanent(t *testing.T) {
	client := &fakeS3{objects: map[string]string{}}

	_, err := fastFetcher(client).Open(context.Background(), "s3://models/clf.json")
	require.Error(t, err)
	assert.Equal(t, 1, client.calls)

	var aerr awserr.Error
	require.True(t, errors.As(err, &aerr))
	assert.Equal(t, s3.ErrCodeNoSuchKey, aerr.Code())
}

func TestOpenS3WithoutClient(t *testing.T) {
	_, err := NewFetcher(nil).Open(context.Background(), "s3://models/clf.json")
	assert.Error(t, err)

	_, err = NewFetcher(&fakeS3{}).Open(context.Background(), "s3://models")
	assert.Error(t, err)
}
