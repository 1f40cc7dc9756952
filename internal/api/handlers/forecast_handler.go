package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/prep"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline/report"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
)

const dateLayout = "2006-01-02"

type ForecastHandler struct {
	service *service.ForecastService
}

func NewForecastHandler(service *service.ForecastService) *ForecastHandler {
	return &ForecastHandler{service: service}
}

type runRequest struct {
	ProductLines []string       `json:"product_lines" form:"product_lines"`
	WindowStart  string         `json:"window_start" form:"window_start" binding:"omitempty,datetime=2006-01-02"`
	WindowEnd    string         `json:"window_end" form:"window_end" binding:"omitempty,datetime=2006-01-02"`
	Stock        map[string]int `json:"stock" form:"-" binding:"omitempty,dive,gte=0"`
	Source       string         `json:"source" form:"source"`
}

func (r runRequest) window() prep.Window {
	var w prep.Window
	if r.WindowStart != "" {
		w.Start, _ = time.Parse(dateLayout, r.WindowStart)
	}
	if r.WindowEnd != "" {
		w.End, _ = time.Parse(dateLayout, r.WindowEnd)
	}
	return w
}

// RunForecast starts an analysis run. The feed is either uploaded as multipart CSV
// exports under "files" or, for a JSON body, loaded from the transaction store.
func (h *ForecastHandler) RunForecast(c *gin.Context) {
	var req runRequest
	var records []domain.TransactionRecord

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		uploaded, names, err := h.readUploads(c)
		if err != nil {
			respondError(c, err)
			return
		}
		records = uploaded
		if req.Source == "" {
			req.Source = "upload:" + strings.Join(names, ",")
		}
	} else if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "api"
	}

	env, err := h.service.RunAnalysis(c.Request.Context(), service.RunRequest{
		Transactions: records,
		ProductLines: req.ProductLines,
		Stock:        req.Stock,
		Window:       req.window(),
		Source:       req.Source,
	})
	var partial *domain.PartialRunError
	if err != nil && !(errors.As(err, &partial) && env != nil) {
		respondError(c, err)
		return
	}
	if partial != nil {
		log.Warn().Strs("unprocessed", partial.Unprocessed).Str("run_id", env.RunID).Msg("analysis run is partial")
	}

	c.JSON(http.StatusOK, env)
}

func (h *ForecastHandler) readUploads(c *gin.Context) ([]domain.TransactionRecord, []string, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: invalid form data", domain.ErrInvalidInput)
	}

	files := form.File["files"]
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w: no files provided", domain.ErrInvalidInput)
	}

	var records []domain.TransactionRecord
	names := make([]string, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		parsed, malformed, err := h.service.ReadFeed(f)
		f.Close()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", fh.Filename, err)
		}
		if malformed > 0 {
			log.Warn().Str("filename", fh.Filename).Int("malformed", malformed).Msg("skipped malformed rows")
		}
		records = append(records, parsed...)
		names = append(names, fh.Filename)
	}
	if records == nil {
		records = []domain.TransactionRecord{}
	}
	return records, names, nil
}

func (h *ForecastHandler) GetDashboard(c *gin.Context) {
	data, err := h.service.Dashboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, data)
}

func (h *ForecastHandler) GetLatestReport(c *gin.Context) {
	env, err := h.service.LatestReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, env)
}

func (h *ForecastHandler) GetLatestSuggestionsCSV(c *gin.Context) {
	env, err := h.service.LatestReport(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=suggestions-%s.csv", env.RunID))
	c.Status(http.StatusOK)
	if err := report.WriteSuggestionsCSV(c.Writer, env.Report); err != nil {
		log.Error().Err(err).Str("run_id", env.RunID).Msg("failed to write suggestions csv")
	}
}
