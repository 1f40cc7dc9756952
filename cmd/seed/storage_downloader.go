package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/drive"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/storage"
)

func storageFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "storage-backend", Value: "minio", EnvVars: []string{"STORAGE_BACKEND"}},
		&cli.StringFlag{Name: "storage-endpoint", EnvVars: []string{"STORAGE_ENDPOINT"}},
		&cli.StringFlag{Name: "storage-access-key", EnvVars: []string{"STORAGE_ACCESS_KEY"}},
		&cli.StringFlag{Name: "storage-secret-key", EnvVars: []string{"STORAGE_SECRET_KEY"}},
		&cli.StringFlag{Name: "storage-bucket", EnvVars: []string{"STORAGE_BUCKET"}},
		&cli.StringFlag{Name: "storage-region", Value: "us-east-1", EnvVars: []string{"STORAGE_REGION"}},
		&cli.BoolFlag{Name: "storage-use-ssl", Value: true, EnvVars: []string{"STORAGE_USE_SSL"}},
		&cli.StringFlag{Name: "storage-local-dir", Value: "./data/archive", EnvVars: []string{"STORAGE_LOCAL_DIR"}},
		&cli.StringFlag{Name: "storage-prefix", Usage: "Prefix to list CSV exports under", Value: "transactions"},
		&cli.StringFlag{Name: "storage-key", Usage: "Download a single object instead of the whole prefix"},
		&cli.StringFlag{Name: "download-dir", Value: "./data/tmp/storage"},
	}
}

func driveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "drive-credentials", EnvVars: []string{"GOOGLE_DRIVE_CREDENTIALS_JSON"}},
		&cli.StringFlag{Name: "drive-folder", EnvVars: []string{"DRIVE_FOLDER_ID"}},
		&cli.StringFlag{Name: "download-dir", Value: "./data/tmp/drive", EnvVars: []string{"DRIVE_DOWNLOAD_DIR"}},
	}
}

type storageDownloader struct {
	client  storage.ObjectStorage
	destDir string
}

func newStorageDownloader(c *cli.Context) (*storageDownloader, error) {
	client, err := storage.New(config.StorageConfig{
		Enabled:   true,
		Backend:   c.String("storage-backend"),
		LocalDir:  c.String("storage-local-dir"),
		Endpoint:  c.String("storage-endpoint"),
		AccessKey: c.String("storage-access-key"),
		SecretKey: c.String("storage-secret-key"),
		Bucket:    c.String("storage-bucket"),
		Region:    c.String("storage-region"),
		UseSSL:    c.Bool("storage-use-ssl"),
	})
	if err != nil {
		return nil, err
	}

	destDir := c.String("download-dir")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to ensure download dir %s: %w", destDir, err)
	}
	return &storageDownloader{client: client, destDir: destDir}, nil
}

func (d *storageDownloader) download(ctx context.Context, prefix, override string) ([]string, error) {
	var keys []string

	if override != "" {
		keys = []string{resolveObjectKey(prefix, override)}
	} else {
		listPrefix := strings.TrimSpace(prefix)
		objects, err := d.client.ListObjects(ctx, listPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects for prefix %s: %w", listPrefix, err)
		}
		for _, obj := range objects {
			if strings.HasSuffix(strings.ToLower(obj.Key), ".csv") {
				keys = append(keys, obj.Key)
			}
		}
	}

	if len(keys) == 0 {
		return nil, fmt.Errorf("no CSV files found for prefix %s", prefix)
	}

	localPaths := make([]string, 0, len(keys))
	for _, key := range keys {
		localPath := filepath.Join(d.destDir, objectRelativePath(prefix, key))
		if err := d.client.DownloadObject(ctx, key, localPath); err != nil {
			return nil, err
		}
		localPaths = append(localPaths, localPath)
	}

	sort.Strings(localPaths)
	return localPaths, nil
}

func resolveObjectKey(prefix, override string) string {
	if prefix == "" {
		return strings.TrimPrefix(override, "/")
	}

	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	overrideTrimmed := strings.TrimPrefix(strings.TrimSpace(override), "/")

	if strings.HasPrefix(overrideTrimmed, prefixTrimmed) {
		return overrideTrimmed
	}
	return fmt.Sprintf("%s/%s", prefixTrimmed, overrideTrimmed)
}

func objectRelativePath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	prefixTrimmed := strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	rel := strings.TrimPrefix(key, prefixTrimmed+"/")
	if rel == "" {
		return filepath.Base(key)
	}
	return rel
}

func downloadDrive(c *cli.Context) ([]string, error) {
	if c.String("drive-credentials") == "" {
		return nil, fmt.Errorf("drive credentials are required")
	}
	svc, err := drive.NewService(c.Context, c.String("drive-credentials"))
	if err != nil {
		return nil, err
	}
	return drive.NewDownloader(svc).DownloadFolderCSV(c.Context, drive.DownloadOptions{
		FolderID:    c.String("drive-folder"),
		DownloadDir: c.String("download-dir"),
	})
}
