package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	cmstorage "github.com/chartmuseum/storage"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

// BackendStorage adapts a chartmuseum storage backend to ObjectStorage.
type BackendStorage struct {
	backend cmstorage.Backend
}

// NewLocalBackend stores objects under dir on the local filesystem.
func NewLocalBackend(dir string) (*BackendStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &BackendStorage{backend: cmstorage.NewLocalFilesystemBackend(dir)}, nil
}

// NewS3Backend uses chartmuseum's Amazon backend with path-style addressing.
func NewS3Backend(cfg config.StorageConfig) (*BackendStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("storage endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("storage credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	pathStyle := true
	backend := cmstorage.NewAmazonS3BackendWithOptions(cfg.Bucket, "", region, endpoint, "", &cmstorage.AmazonS3Options{
		S3ForcePathStyle: &pathStyle,
	})
	return &BackendStorage{backend: backend}, nil
}

func (c *BackendStorage) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	files, err := c.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		key := object.Path
		if prefix != "" {
			key = strings.TrimPrefix(prefix, "/") + "/" + strings.TrimPrefix(object.Path, "/")
		}
		results = append(results, ObjectInfo{Key: key, Size: int64(len(object.Content))})
	}
	return results, nil
}

func (c *BackendStorage) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := c.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func (c *BackendStorage) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := c.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

var _ ObjectStorage = (*BackendStorage)(nil)
