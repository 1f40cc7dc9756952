package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

func records(n int) []domain.TransactionRecord {
	out := make([]domain.TransactionRecord, n)
	for i := range out {
		out[i] = domain.TransactionRecord{Row: i + 1, ProductLine: "Food", Timestamp: "2024-01-01", Quantity: 1}
	}
	return out
}

func TestBatchWriter(t *testing.T) {
	ctx := context.Background()
	var sizes []int
	w := NewBatchWriter(BatchWriterConfig{BatchRows: 4}, func(_ context.Context, recs []domain.TransactionRecord) (int64, error) {
		sizes = append(sizes, len(recs))
		return int64(len(recs)), nil
	})

	require.NoError(t, w.Add(ctx, records(3)))
	assert.Empty(t, sizes)

	require.NoError(t, w.Add(ctx, records(2)))
	assert.Equal(t, []int{5}, sizes)

	require.NoError(t, w.Add(ctx, records(1)))
	require.NoError(t, w.Finalize(ctx))
	assert.Equal(t, []int{5, 1}, sizes)

	written, batches, buffered := w.Stats()
	assert.Equal(t, int64(6), written)
	assert.Equal(t, 2, batches)
	assert.Equal(t, 0, buffered)

	require.NoError(t, w.Finalize(ctx))
	assert.Len(t, sizes, 2)
}

func TestBatchWriter_FlushError(t *testing.T) {
	boom := errors.New("disk full")
	w := NewBatchWriter(BatchWriterConfig{BatchRows: 1}, func(context.Context, []domain.TransactionRecord) (int64, error) {
		return 0, boom
	})

	err := w.Add(context.Background(), records(2))
	assert.ErrorIs(t, err, boom)

	_, _, buffered := w.Stats()
	assert.Equal(t, 2, buffered)
}
