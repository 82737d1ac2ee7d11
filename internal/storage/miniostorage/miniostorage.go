// Package miniostorage provides structure to work with minio-storage
package miniostorage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rapidphoto/pipeline/internal/model"
	"github.com/wb-go/wbf/config"
)

type MinioBlobStorage struct {
	bucket string
	client *minio.Client
}

func NewMinioClient(cfg *config.Config) (*MinioBlobStorage, error) {
	bucket := cfg.GetString("BUCKET_NAME")

	if bucket == "" {
		bucket = "rapidphoto"
		log.Printf("Bucket name is empty. Using default value %q...", bucket)
	}

	user := cfg.GetString("MINIO_USER")
	pass := cfg.GetString("MINIO_PASS")
	addr := cfg.GetString("MINIO_ADDR")

	strg, err := minio.New(addr, &minio.Options{
		Creds:  credentials.NewStaticV4(user, pass, ""),
		Secure: false,
	})
	if err != nil {
		return nil, err
	}

	// создаем бакет если его нет
	if err := ensureBucket(context.Background(), strg, bucket); err != nil {
		log.Println("Failed to create bucket in MinIO:", err)
		return nil, err
	}

	return &MinioBlobStorage{bucket: bucket, client: strg}, nil
}

// Get downloads the whole object; source images are bounded in size by the
// upload path, so buffering them is fine.
func (s *MinioBlobStorage) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: get %q: %v", model.ErrUpstream, key, err)
	}
	defer func() {
		if err := obj.Close(); err != nil {
			log.Println("Failed to close object stream:", err)
		}
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %q", model.ErrBlobNotFound, key)
		}
		return nil, fmt.Errorf("%w: read %q: %v", model.ErrUpstream, key, err)
	}

	return data, nil
}

func (s *MinioBlobStorage) Put(ctx context.Context, key string, contentType string, data []byte) error {
	if data == nil {
		return fmt.Errorf("nil data passed to storage.Put for key %q", key)
	}

	if _, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("%w: put %q: %v", model.ErrUpstream, key, err)
	}

	return nil
}

func ensureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}

	if exists {
		return nil
	}

	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}
