package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/repository"
	"github.com/andresuchdata/autopo-py/forecast-go/pkg/logger"
)

// IngestResult summarizes one ingested export.
type IngestResult struct {
	FileID    string `json:"file_id"`
	Name      string `json:"name"`
	Inserted  int    `json:"inserted"`
	Malformed int    `json:"malformed"`
}

type IngestService struct {
	source FileSource
	repo   repository.TransactionRepository
	policy domain.MalformedPolicy
	log    zerolog.Logger
}

func NewIngestService(source FileSource, repo repository.TransactionRepository, policy domain.MalformedPolicy) *IngestService {
	return &IngestService{
		source: source,
		repo:   repo,
		policy: policy,
		log:    logger.Component("drive-ingest"),
	}
}

// IngestFile downloads one export and appends its transactions. name decides whether
// the file is treated as XLSX.
func (s *IngestService) IngestFile(ctx context.Context, fileID, name string) (IngestResult, error) {
	result := IngestResult{FileID: fileID, Name: name}

	var buf bytes.Buffer
	if err := download(ctx, s.source, &File{ID: fileID, Name: name}, &buf); err != nil {
		return result, err
	}

	read, err := prep.ReadTransactionsCSV(&buf, s.policy)
	if err != nil {
		return result, fmt.Errorf("parse %s: %w", name, err)
	}
	result.Malformed = len(read.Malformed)

	inserted, err := s.repo.InsertTransactions(ctx, read.Records)
	if err != nil {
		return result, fmt.Errorf("store %s: %w", name, err)
	}
	result.Inserted = inserted

	s.log.Info().
		Str("file_id", fileID).
		Str("name", name).
		Int("inserted", inserted).
		Int("malformed", result.Malformed).
		Msg("ingested transaction export")
	return result, nil
}

// IngestFolder ingests every CSV and XLSX export in the folder.
func (s *IngestService) IngestFolder(ctx context.Context, folderID string) ([]IngestResult, error) {
	files, err := s.source.ListFiles(ctx, folderID)
	if err != nil {
		return nil, err
	}

	results := make([]IngestResult, 0, len(files))
	for _, f := range files {
		if !isExport(f.Name) {
			continue
		}
		res, err := s.IngestFile(ctx, f.ID, f.Name)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// download writes the file to w as CSV, converting XLSX exports.
func download(ctx context.Context, source FileSource, f *File, w io.Writer) error {
	if !isXLSX(f.Name) {
		return source.DownloadFile(ctx, f.ID, w)
	}

	var raw bytes.Buffer
	if err := source.DownloadFile(ctx, f.ID, &raw); err != nil {
		return err
	}
	if err := convertXLSX(&raw, w); err != nil {
		return fmt.Errorf("convert %s: %w", f.Name, err)
	}
	return nil
}
