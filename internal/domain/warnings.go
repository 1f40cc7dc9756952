package domain

// WarningReason names why a product line was degraded or excluded.
type WarningReason string

const (
	WarnInsufficientHistory WarningReason = "insufficient_history"
	WarnPoorModelQuality    WarningReason = "model_quality_poor"
	WarnModelFallback       WarningReason = "model_fallback"
	WarnFitTimeout          WarningReason = "fit_timeout"
	WarnMalformedRecord     WarningReason = "malformed_record"
	WarnOutliersClipped     WarningReason = "outliers_clipped"
	WarnMissingStock        WarningReason = "missing_stock_level"
	WarnUnprocessed         WarningReason = "unprocessed"
)

// Warning is surfaced in every report so consumers need not read logs.
type Warning struct {
	ProductLine string        `json:"product_line,omitempty"`
	Reason      WarningReason `json:"reason"`
	Detail      string        `json:"detail"`
}
