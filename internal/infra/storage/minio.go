package storage

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

const DefaultURLExpiry = 15 * time.Minute

// MinioStore keeps previews as objects and hands out presigned GET URLs.
type MinioStore struct {
	client     *minio.Client
	bucketName string
	prefix     string
	expiry     time.Duration
}

type MinioConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
	URLExpiry time.Duration
}

// NewMinio buat koneksi MinIO
func NewMinio(ctx context.Context, cfg MinioConfig) (*MinioStore, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	// pastikan bucket ada
	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", cfg.Bucket, err)
		}
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &MinioStore{client: cli, bucketName: cfg.Bucket, prefix: cfg.Prefix, expiry: expiry}, nil
}

// Create implementasi PreviewStore
func (s *MinioStore) Create(ctx context.Context, file domain.File) (domain.Preview, error) {
	key := ObjectKey(s.prefix, uuid.NewString(), file.Name)

	_, err := s.client.PutObject(ctx, s.bucketName, key, bytes.NewReader(file.Data), int64(len(file.Data)), minio.PutObjectOptions{
		ContentType: ContentType(file),
	})
	if err != nil {
		return domain.Preview{}, fmt.Errorf("put preview %s: %w", key, err)
	}

	// bucket private, jadi pakai presigned URL
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, s.expiry, url.Values{})
	if err != nil {
		_ = s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{})
		return domain.Preview{}, fmt.Errorf("presign preview %s: %w", key, err)
	}
	return domain.Preview{Key: key, URL: u.String()}, nil
}

func (s *MinioStore) Release(ctx context.Context, p domain.Preview) error {
	if err := s.client.RemoveObject(ctx, s.bucketName, p.Key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove preview %s: %w", p.Key, err)
	}
	return nil
}

// Check implements the readiness probe.
func (s *MinioStore) Check(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", s.bucketName)
	}
	return nil
}
