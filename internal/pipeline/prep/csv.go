package prep

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
)

// ReadResult is the outcome of reading a transaction export.
type ReadResult struct {
	Records   []domain.TransactionRecord
	Malformed []error
}

var columnNameSanitizer = strings.NewReplacer(" ", "", "_", "", ".", "", "-", "", "/", "", "\ufeff", "")

func normalizeColumnName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	return columnNameSanitizer.Replace(name)
}

// ReadTransactionsCSV reads a transaction export such as the supermarket sales CSV.
// Rows with a missing product line or an invalid quantity/value are skipped or abort
// the read depending on policy. Dates are not parsed here.
func ReadTransactionsCSV(r io.Reader, policy domain.MalformedPolicy) (ReadResult, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return ReadResult{}, nil
		}
		return ReadResult{}, fmt.Errorf("failed to read CSV header: %w", err)
	}

	colIndex := func(names ...string) int {
		targets := make(map[string]struct{}, len(names))
		for _, name := range names {
			targets[normalizeColumnName(name)] = struct{}{}
		}
		for i, h := range header {
			if _, ok := targets[normalizeColumnName(h)]; ok {
				return i
			}
		}
		return -1
	}

	idxLine := colIndex("product line", "product_line", "category", "productline")
	idxDate := colIndex("date", "timestamp", "sold_at", "datetime")
	idxTime := colIndex("time")
	idxQty := colIndex("quantity", "qty", "quantity_sold")
	idxValue := colIndex("sales", "total", "value", "revenue")

	for name, idx := range map[string]int{"product line": idxLine, "date": idxDate, "quantity": idxQty} {
		if idx < 0 {
			return ReadResult{}, fmt.Errorf("missing required column: %s", name)
		}
	}

	var result ReadResult
	row := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		row++
		if err != nil {
			return result, fmt.Errorf("failed to read CSV record %d: %w", row, err)
		}

		get := func(idx int) string {
			if idx < 0 || idx >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[idx])
		}

		tx, rowErr := parseRecord(row, get(idxLine), get(idxDate), get(idxTime), get(idxQty), get(idxValue))
		if rowErr != nil {
			if policy == domain.MalformedAbort {
				return result, rowErr
			}
			result.Malformed = append(result.Malformed, rowErr)
			continue
		}
		result.Records = append(result.Records, tx)
	}

	return result, nil
}

func parseRecord(row int, line, date, clock, qty, value string) (domain.TransactionRecord, error) {
	if line == "" {
		return domain.TransactionRecord{}, &domain.MalformedRecordError{Row: row, Field: "product_line", Reason: "empty"}
	}

	quantity, err := parseNumber(qty)
	if err != nil || quantity < 0 {
		return domain.TransactionRecord{}, &domain.MalformedRecordError{Row: row, Field: "quantity", Value: qty, Reason: "must be a non-negative number"}
	}

	var amount float64
	if value != "" {
		amount, err = parseNumber(value)
		if err != nil {
			return domain.TransactionRecord{}, &domain.MalformedRecordError{Row: row, Field: "value", Value: value, Reason: "not a number"}
		}
	}

	timestamp := date
	if clock != "" {
		timestamp = date + " " + clock
	}

	return domain.TransactionRecord{
		Row:         row,
		ProductLine: line,
		Timestamp:   timestamp,
		Quantity:    quantity,
		Value:       amount,
	}, nil
}

func parseNumber(raw string) (float64, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if raw == "" {
		return 0, fmt.Errorf("empty")
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("not finite")
	}
	return f, nil
}
