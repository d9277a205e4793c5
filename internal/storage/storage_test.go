package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store := NewFileStore(dir, "backups")
	store.now = fixedNow

	exists, err := store.Exists(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Load(ctx, "out/a.x12")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.Backup(ctx, "out/a.x12")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "ST*270~", "out/a.x12"))
	exists, err = store.Exists(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.True(t, exists)

	content, err := store.Load(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.Equal(t, "ST*270~", content)

	backup, err := store.Backup(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "backups", "a.x12.20240101120000.bak"), backup)
	b, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "ST*270~", string(b))

	require.NoError(t, store.Save(ctx, "ST*271~", "out/a.x12"))
	content, err = store.Load(ctx, filepath.Join(dir, "out", "a.x12"))
	require.NoError(t, err)
	assert.Equal(t, "ST*271~", content)
}

func TestFileStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	store := NewFileStore(t.TempDir(), "")
	assert.ErrorIs(t, store.Save(ctx, "x", "a"), context.Canceled)
	_, err := store.Load(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

// fakeS3 is an in-memory S3API
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(b))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	b, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = b
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(b)))}, nil
}

func (f *fakeS3) CopyObject(_ context.Context, in *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[aws.ToString(in.CopySource)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = append([]byte(nil), b...)
	return &s3.CopyObjectOutput{}, nil
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "edi", "backups/")
	store.now = fixedNow

	_, err := store.Load(ctx, "out/a.x12")
	assert.ErrorIs(t, err, ErrNotFound)
	exists, err := store.Exists(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.False(t, exists)
	_, err = store.Backup(ctx, "out/a.x12")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Save(ctx, "ST*270~", "/out/a.x12"))
	assert.Contains(t, fake.objects, "edi/out/a.x12")

	content, err := store.Load(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.Equal(t, "ST*270~", content)

	backup, err := store.Backup(ctx, "out/a.x12")
	require.NoError(t, err)
	assert.Equal(t, "backups/out/a.x12.20240101120000.bak", backup)
	assert.Equal(t, "ST*270~", string(fake.objects["edi/"+backup]))
}

func TestNewS3Store(t *testing.T) {
	store := NewS3Store(
		S3Config{
			Bucket:          "edi",
			Region:          "us-east-1",
			Endpoint:        "localhost:9000",
			AccessKeyID:     "minio",
			SecretAccessKey: "minio123",
		},
	)
	client, ok := store.client.(*s3.Client)
	require.True(t, ok)
	opts := client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.True(t, strings.HasPrefix(aws.ToString(opts.BaseEndpoint), "http://"))
}
