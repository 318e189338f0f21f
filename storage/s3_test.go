package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sleuth-ingest/config"
)

type fakePutter struct {
	input *s3.PutObjectInput
	body  string
	err   error
}

func (f *fakePutter) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = in
	b, _ := io.ReadAll(in.Body)
	f.body = string(b)
	return &s3.PutObjectOutput{}, f.err
}

func TestNewArchiver_Disabled(t *testing.T) {
	assert.Nil(t, NewArchiver(&fakePutter{}, &config.Config{}, zap.NewNop()))
}

func TestArchive(t *testing.T) {
	put := &fakePutter{}
	a := NewArchiver(put, &config.Config{S3Bucket: "uploads", S3Prefix: "/sleuth/"}, zap.NewNop())
	require.NotNil(t, a)

	loc, err := a.Archive(context.Background(), "run-1", "../dir/studies.txt", []byte("// Reference=MNI"))
	require.NoError(t, err)
	assert.Equal(t, "s3://uploads/sleuth/run-1/studies.txt", loc)
	assert.Equal(t, "uploads", *put.input.Bucket)
	assert.Equal(t, "sleuth/run-1/studies.txt", *put.input.Key)
	assert.Equal(t, "// Reference=MNI", put.body)
}

func TestArchive_Error(t *testing.T) {
	put := &fakePutter{err: errors.New("denied")}
	a := &Archiver{Client: put, Bucket: "b", Logger: zap.NewNop()}
	_, err := a.Archive(context.Background(), "r", "f.txt", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")
}
