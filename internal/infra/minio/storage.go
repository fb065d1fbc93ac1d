// Package minio adapts a MinIO/S3 bucket to the FileStore port. Folder
// IDs are key prefixes inside one bucket and object keys double as file
// IDs. Rename is copy-then-remove; S3 APIs offer no atomic variant.
package minio

import (
	"context"
	"fmt"
	"mime"
	"path"
	"strings"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mexwill790-beep/wan/internal/domain/entity"
)

type Storage struct {
	client *miniogo.Client
	bucket string
}

type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

func NewStorage(cfg StorageConfig) (*Storage, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Storage{client: client, bucket: cfg.Bucket}, nil
}

func (s *Storage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniogo.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *Storage) List(ctx context.Context, folderID, mimePrefix string) ([]entity.RemoteFile, error) {
	prefix := strings.TrimSuffix(folderID, "/") + "/"

	var out []entity.RemoteFile
	for obj := range s.client.ListObjects(ctx, s.bucket, miniogo.ListObjectsOptions{Prefix: prefix}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			continue
		}
		mimeType := contentTypeOf(obj.Key)
		if mimePrefix != "" && !strings.HasPrefix(mimeType, mimePrefix) {
			continue
		}
		out = append(out, entity.RemoteFile{
			ID:           obj.Key,
			Name:         path.Base(obj.Key),
			MimeType:     mimeType,
			Size:         obj.Size,
			ModifiedTime: obj.LastModified,
		})
	}
	return out, nil
}

func (s *Storage) Download(ctx context.Context, fileID, destPath string) error {
	if err := s.client.FGetObject(ctx, s.bucket, fileID, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	return nil
}

func (s *Storage) Upload(ctx context.Context, localPath, folderID, name string) (string, error) {
	key := strings.TrimSuffix(folderID, "/") + "/" + name
	_, err := s.client.FPutObject(ctx, s.bucket, key, localPath, miniogo.PutObjectOptions{
		ContentType: contentTypeOf(name),
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return key, nil
}

func (s *Storage) Rename(ctx context.Context, fileID, newName string) error {
	newKey := path.Join(path.Dir(fileID), newName)
	_, err := s.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: s.bucket, Object: newKey},
		miniogo.CopySrcOptions{Bucket: s.bucket, Object: fileID},
	)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", fileID, newKey, err)
	}
	if err := s.client.RemoveObject(ctx, s.bucket, fileID, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", fileID, err)
	}
	return nil
}

// contentTypeOf derives the mime type from the object key. Bucket
// listings do not return stored content types, and one HEAD per object
// would make large folders expensive.
func contentTypeOf(key string) string {
	return mime.TypeByExtension(path.Ext(key))
}
