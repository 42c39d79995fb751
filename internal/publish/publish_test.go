package publish

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeS3 struct {
	putErr error
	inputs []*s3.PutObjectInput
	bodies []string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, params)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func writeArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, os.WriteFile(path, []byte("PK\x03\x04zipdata"), 0644))
	return path
}

func TestNewPublisher_RequiresBucket(t *testing.T) {
	_, err := NewPublisher(Config{Region: "us-east-1"}, nil)
	assert.ErrorIs(t, err, ErrNoBucket)
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	p := &Publisher{client: fake, bucket: "deploy-bucket", prefix: "lambda/report", logger: testLogger()}

	archivePath := writeArchive(t)
	key, err := p.Upload(context.Background(), archivePath, "abc123")
	require.NoError(t, err)

	assert.Equal(t, "lambda/report/out.zip", key)
	require.Len(t, fake.inputs, 1)
	input := fake.inputs[0]
	assert.Equal(t, "deploy-bucket", *input.Bucket)
	assert.Equal(t, "lambda/report/out.zip", *input.Key)
	assert.Equal(t, "application/zip", *input.ContentType)
	assert.Equal(t, map[string]string{"sha256": "abc123"}, input.Metadata)
	assert.Equal(t, "PK\x03\x04zipdata", fake.bodies[0])
}

func TestUpload_NoPrefix(t *testing.T) {
	fake := &fakeS3{}
	p := &Publisher{client: fake, bucket: "deploy-bucket", logger: testLogger()}

	key, err := p.Upload(context.Background(), writeArchive(t), "")
	require.NoError(t, err)
	assert.Equal(t, "out.zip", key)
	assert.Nil(t, fake.inputs[0].Metadata)
}

func TestUpload_PutFailure(t *testing.T) {
	fake := &fakeS3{putErr: errors.New("AccessDenied")}
	p := &Publisher{client: fake, bucket: "deploy-bucket", logger: testLogger()}

	_, err := p.Upload(context.Background(), writeArchive(t), "abc123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://deploy-bucket/out.zip")
}

func TestUpload_MissingArchive(t *testing.T) {
	p := &Publisher{client: &fakeS3{}, bucket: "deploy-bucket", logger: testLogger()}

	_, err := p.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.zip"), "")
	assert.Error(t, err)
}
