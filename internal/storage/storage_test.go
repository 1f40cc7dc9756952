package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
)

func TestLocalBackend_RoundTrip(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	store, err := New(config.StorageConfig{Backend: "local", LocalDir: root})
	require.NoError(t, err)

	key := ReportKey("/reports/", time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC), "run-1", "json")
	assert.Equal(t, "reports/2024/06/01/run-1.json", key)
	require.NoError(t, store.UploadObject(ctx, key, []byte(`{"status":"completed"}`)))

	objects, err := store.ListObjects(ctx, "reports/2024/06/01")
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, key, objects[0].Key)

	dest := filepath.Join(t.TempDir(), "nested", "run-1.json")
	require.NoError(t, store.DownloadObject(ctx, key, dest))
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"completed"}`, string(content))
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.StorageConfig
	}{
		{name: "unknown backend", cfg: config.StorageConfig{Backend: "ftp"}},
		{name: "minio without endpoint", cfg: config.StorageConfig{Backend: "minio", Bucket: "b"}},
		{name: "minio without credentials", cfg: config.StorageConfig{Endpoint: "localhost:9000", Bucket: "b"}},
		{name: "s3 without bucket", cfg: config.StorageConfig{Backend: "s3", Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
		{name: "local without dir", cfg: config.StorageConfig{Backend: "local"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewMinioClient_EndpointScheme(t *testing.T) {
	client, err := NewMinioClient(config.StorageConfig{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "reports",
		UseSSL:    true,
	})
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", client.client.EndpointURL().Host)
	assert.Equal(t, "http", client.client.EndpointURL().Scheme)
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", contentType("reports/a.json"))
	assert.Equal(t, "text/csv", contentType("reports/a.CSV"))
	assert.Equal(t, "application/octet-stream", contentType("reports/a"))
}
