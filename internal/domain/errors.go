package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrInsufficientHistory  = errors.New("insufficient history")
	ErrModelFit             = errors.New("model fit failed")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrPartialRun           = errors.New("partial run")
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
)

// MalformedDateError reports a transaction timestamp that matched no known layout.
type MalformedDateError struct {
	Row         int
	ProductLine string
	Value       string
}

func (e *MalformedDateError) Error() string {
	return fmt.Sprintf("row %d (%s): unparseable date %q", e.Row, e.ProductLine, e.Value)
}

func (e *MalformedDateError) Is(target error) bool { return target == ErrMalformedInput }

// MalformedRecordError reports a transaction row with a missing or invalid field.
type MalformedRecordError struct {
	Row    int
	Field  string
	Value  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("row %d: invalid %s %q: %s", e.Row, e.Field, e.Value, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedInput }

// InsufficientHistoryError marks a product line with too few days to model.
type InsufficientHistoryError struct {
	ProductLine string
	Days        int
	Required    int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("%s: %d days of history, %d required", e.ProductLine, e.Days, e.Required)
}

func (e *InsufficientHistoryError) Is(target error) bool { return target == ErrInsufficientHistory }

// ModelFitError is raised by a forecasting model that could not be fitted.
type ModelFitError struct {
	ProductLine string
	Model       string
	Reason      string
}

func (e *ModelFitError) Error() string {
	return fmt.Sprintf("%s: %s model fit failed: %s", e.ProductLine, e.Model, e.Reason)
}

func (e *ModelFitError) Is(target error) bool { return target == ErrModelFit }

// InvalidConfigurationError lists every configuration field that failed validation.
type InvalidConfigurationError struct {
	Problems []string
}

func (e *InvalidConfigurationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *InvalidConfigurationError) Is(target error) bool { return target == ErrInvalidConfiguration }

// PartialRunError is returned alongside a partial report when a run was cancelled.
type PartialRunError struct {
	Unprocessed []string
	Cause       error
}

func (e *PartialRunError) Error() string {
	msg := fmt.Sprintf("partial run: %d product lines unprocessed", len(e.Unprocessed))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialRunError) Is(target error) bool { return target == ErrPartialRun }

func (e *PartialRunError) Unwrap() error { return e.Cause }
