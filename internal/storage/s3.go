package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API is the subset of the S3 client used by S3Store
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	UseSSL          bool
	AccessKeyID     string
	SecretAccessKey string
	// BackupPrefix is prepended to backup keys, ex: `backups/`
	BackupPrefix string
}

// S3Store keeps documents as objects in a single bucket
type S3Store struct {
	client       S3API
	bucket       string
	backupPrefix string
	now          func() time.Time
}

// NewS3Store creates a store backed by an S3-compatible endpoint
func NewS3Store(cfg S3Config) *S3Store {
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			protocol := "http"
			if cfg.UseSSL {
				protocol = "https"
			}
			endpoint = protocol + "://" + endpoint
		}
		opts.BaseEndpoint = aws.String(endpoint)
	}
	return NewS3StoreWithClient(s3.New(opts), cfg.Bucket, cfg.BackupPrefix)
}

func NewS3StoreWithClient(client S3API, bucket string, backupPrefix string) *S3Store {
	return &S3Store{
		client:       client,
		bucket:       bucket,
		backupPrefix: backupPrefix,
		now:          time.Now,
	}
}

func objectKey(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

func (s *S3Store) Load(ctx context.Context, p string) (string, error) {
	key := objectKey(p)
	out, err := s.client.GetObject(
		ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		},
	)
	if isNotFound(err) {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return string(b), nil
}

func (s *S3Store) Save(ctx context.Context, content string, p string) error {
	key := objectKey(p)
	_, err := s.client.PutObject(
		ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(content),
			ContentType: aws.String("application/edi-x12"),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to put object %s: %w", key, err)
	}
	return nil
}

func (s *S3Store) Exists(ctx context.Context, p string) (bool, error) {
	key := objectKey(p)
	_, err := s.client.HeadObject(
		ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		},
	)
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to head object %s: %w", key, err)
	}
	return true, nil
}

func (s *S3Store) Backup(ctx context.Context, p string) (string, error) {
	key := objectKey(p)
	exists, err := s.Exists(ctx, key)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", fmt.Errorf("%w: s3://%s/%s", ErrNotFound, s.bucket, key)
	}
	target := s.backupPrefix + backupName(key, s.now())
	_, err = s.client.CopyObject(
		ctx, &s3.CopyObjectInput{
			Bucket:     aws.String(s.bucket),
			CopySource: aws.String(s.bucket + "/" + key),
			Key:        aws.String(target),
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to copy object %s: %w", key, err)
	}
	return target, nil
}
