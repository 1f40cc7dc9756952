package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

// ObjectInfo represents metadata for a remote file/object.
type ObjectInfo struct {
	Key  string
	Size int64
}

// ObjectStorage captures the minimal S3-compatible operations the archive and ingest paths need.
type ObjectStorage interface {
	ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error)
	DownloadObject(ctx context.Context, key string, destPath string) error
	UploadObject(ctx context.Context, key string, data []byte) error
}

// New builds the object storage selected by cfg.Backend.
func New(cfg config.StorageConfig) (ObjectStorage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "minio":
		return NewMinioClient(cfg)
	case "s3":
		return NewS3Backend(cfg)
	case "local":
		return NewLocalBackend(cfg.LocalDir)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// ReportKey is the archive key of a run's document: <prefix>/YYYY/MM/DD/<runID>.<ext>.
func ReportKey(prefix string, generatedAt time.Time, runID, ext string) string {
	return path.Join(strings.Trim(prefix, "/"), generatedAt.UTC().Format("2006/01/02"), runID+"."+strings.TrimPrefix(ext, "."))
}
