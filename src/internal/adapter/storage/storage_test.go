package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aspoi/membership-payments/src/internal/domain"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type s3Stub struct {
	headFn func(ctx context.Context, params *s3.HeadObjectInput) (*s3.HeadObjectOutput, error)
	putFn  func(ctx context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error)
}

func (s s3Stub) HeadObject(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	return s.headFn(ctx, params)
}

func (s s3Stub) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	return s.putFn(ctx, params)
}

func TestS3StorePutUploadsNewObject(t *testing.T) {
	var uploaded []byte
	store := NewS3Store(s3Stub{
		headFn: func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return nil, &types.NotFound{}
		},
		putFn: func(_ context.Context, params *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			assert.Equal(t, "membership-receipts", *params.Bucket)
			assert.Equal(t, "receipts/2025-01/1_a.png", *params.Key)
			assert.Equal(t, "image/png", *params.ContentType)
			body, err := io.ReadAll(params.Body)
			require.NoError(t, err)
			uploaded = body
			return &s3.PutObjectOutput{}, nil
		},
	}, "membership-receipts", "eu-west-1")

	url, err := store.Put(context.Background(), "receipts/2025-01/1_a.png", []byte("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://membership-receipts.s3.eu-west-1.amazonaws.com/receipts/2025-01/1_a.png", url)
	assert.Equal(t, []byte("png"), uploaded)
}

func TestS3StorePutRefusesToOverwrite(t *testing.T) {
	store := NewS3Store(s3Stub{
		headFn: func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return &s3.HeadObjectOutput{}, nil
		},
		putFn: func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
			t.Fatal("put must not be called for an existing key")
			return nil, nil
		},
	}, "bucket", "us-east-1")

	_, err := store.Put(context.Background(), "k", []byte("x"), "image/png")
	assert.ErrorIs(t, err, domain.ErrObjectExists)
}

func TestS3StorePutSurfacesHeadErrors(t *testing.T) {
	store := NewS3Store(s3Stub{
		headFn: func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error) {
			return nil, errors.New("access denied")
		},
	}, "bucket", "us-east-1")

	_, err := store.Put(context.Background(), "k", []byte("x"), "image/png")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrObjectExists)
}

func TestFilesystemStorePutIsNonOverwriting(t *testing.T) {
	root := t.TempDir()
	store := NewFilesystemStore(root, "http://localhost:8080/files/")

	url, err := store.Put(context.Background(), "receipts/2025-01/1_a.png", []byte("first"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/receipts/2025-01/1_a.png", url)

	_, err = store.Put(context.Background(), "receipts/2025-01/1_a.png", []byte("second"), "image/png")
	assert.ErrorIs(t, err, domain.ErrObjectExists)

	content, err := os.ReadFile(filepath.Join(root, "receipts", "2025-01", "1_a.png"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))
}

func TestFilesystemStoreKeepsKeysInsideRoot(t *testing.T) {
	root := t.TempDir()
	store := NewFilesystemStore(root, "http://files")

	_, err := store.Put(context.Background(), "../../escape.txt", []byte("x"), "text/plain")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.NoError(t, err)
}
