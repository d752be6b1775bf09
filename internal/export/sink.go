package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/JonMunkholm/crm/internal/clock"
	"github.com/JonMunkholm/crm/internal/config"
)

// Sink stores an encoded export and returns where it went.
type Sink interface {
	Put(ctx context.Context, f Format, body []byte) (string, error)
}

// FileSink writes to a local path. "-" writes to Stdout.
type FileSink struct {
	Path   string
	Stdout io.Writer
}

func (s FileSink) Put(ctx context.Context, f Format, body []byte) (string, error) {
	if s.Path == "-" || s.Path == "" {
		out := s.Stdout
		if out == nil {
			out = os.Stdout
		}
		_, err := out.Write(body)
		return "stdout", err
	}

	// Write beside the target and rename so a reader never sees half a file.
	dir := filepath.Dir(s.Path)
	tmp, err := os.CreateTemp(dir, ".export-*")
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return "", fmt.Errorf("move export file: %w", err)
	}
	return s.Path, nil
}

// objectPutter is the part of the S3 client the sink uses.
type objectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads exports to a bucket under exports/.
type S3Sink struct {
	client objectPutter
	bucket string
	clock  clock.Clock
	newID  func() string
}

// NewS3Sink builds a sink from the export settings. Credentials come from
// the default AWS chain; Endpoint and PathStyle target S3-compatible stores.
func NewS3Sink(ctx context.Context, cfg config.ExportConfig, opts ...func(*awsconfig.LoadOptions) error) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("EXPORT_S3_BUCKET is required for S3 exports")
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts = append([]func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}, opts...)
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Sink{client: client, bucket: cfg.Bucket, clock: clock.Real{}, newID: uuid.NewString}, nil
}

// ObjectKey names an export object: exports/companies-<UTC timestamp>-<id>.<ext>.
func ObjectKey(now time.Time, id string, f Format) string {
	return fmt.Sprintf("exports/companies-%s-%s.%s", now.UTC().Format("20060102T150405Z"), id, f.Ext())
}

func (s *S3Sink) Put(ctx context.Context, f Format, body []byte) (string, error) {
	key := ObjectKey(s.clock.Now(), s.newID(), f)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(f.ContentType()),
	})
	if err != nil {
		return "", fmt.Errorf("upload s3://%s/%s: %w", s.bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}
