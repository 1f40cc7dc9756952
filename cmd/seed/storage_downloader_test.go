package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/storage"
)

func TestResolveObjectKey(t *testing.T) {
	tests := []struct {
		prefix, override, want string
	}{
		{"", "/sales.csv", "sales.csv"},
		{"transactions/", "sales.csv", "transactions/sales.csv"},
		{"transactions", "transactions/2024/sales.csv", "transactions/2024/sales.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveObjectKey(tt.prefix, tt.override))
	}
}

func TestObjectRelativePath(t *testing.T) {
	assert.Equal(t, "2024/sales.csv", objectRelativePath("transactions", "transactions/2024/sales.csv"))
	assert.Equal(t, "sales.csv", objectRelativePath("", "sales.csv"))
}

func TestStorageDownloader(t *testing.T) {
	ctx := context.Background()
	backend, err := storage.NewLocalBackend(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, backend.UploadObject(ctx, "transactions/jan.csv", []byte("Product line,Date,Quantity\nFood,1/1/2024,3\n")))
	require.NoError(t, backend.UploadObject(ctx, "transactions/readme.txt", []byte("skip")))

	dest := t.TempDir()
	d := &storageDownloader{client: backend, destDir: dest}
	paths, err := d.download(ctx, "transactions", "")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dest, "jan.csv")}, paths)

	content, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Contains(t, string(content), "Food,1/1/2024,3")

	_, err = d.download(ctx, "missing", "")
	assert.Error(t, err)
}

func TestListCSV(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.CSV"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), nil, 0o644))

	files, err := listCSV(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.CSV"), filepath.Join(dir, "b.csv")}, files)

	_, err = listCSV(t.TempDir())
	assert.Error(t, err)
}
