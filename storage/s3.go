package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"sleuth-ingest/config"
)

// NewS3Client creates a client for an S3 compatible endpoint. Without S3_URL
// the default AWS endpoint resolution applies.
func NewS3Client(ctx context.Context, cfg *config.Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3Key != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3Key, cfg.S3Secret, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3URL != "" {
			o.BaseEndpoint = aws.String(cfg.S3URL)
			o.UsePathStyle = true
		}
	}), nil
}

// PutObjectAPI is the part of *s3.Client the archiver needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver copies uploaded Sleuth files to a bucket so a failed import can be
// inspected and replayed.
type Archiver struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
	Logger *zap.Logger
}

// NewArchiver returns an archiver for cfg, or nil when archiving is disabled.
func NewArchiver(client PutObjectAPI, cfg *config.Config, logger *zap.Logger) *Archiver {
	if !cfg.ArchiveEnabled() {
		return nil
	}
	return &Archiver{Client: client, Bucket: cfg.S3Bucket, Prefix: cfg.S3Prefix, Logger: logger}
}

// Key returns the object key for a file of a run.
func (a *Archiver) Key(runID, fileName string) string {
	return path.Join(strings.Trim(a.Prefix, "/"), runID, path.Base(fileName))
}

// Archive stores one file and returns its s3:// location.
func (a *Archiver) Archive(ctx context.Context, runID, fileName string, data []byte) (string, error) {
	key := a.Key(runID, fileName)
	_, err := a.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", fileName, err)
	}
	a.Logger.Debug("Archived upload", zap.String("run_id", runID), zap.String("key", key))
	return fmt.Sprintf("s3://%s/%s", a.Bucket, key), nil
}
