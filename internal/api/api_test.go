package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/config"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/domain"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/pipeline"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	cfg := config.DefaultForecastConfig()
	cfg.EnableHolidayEffects = false
	engine, err := pipeline.NewEngine(cfg)
	require.NoError(t, err)

	stock := service.NewStockService(nil)
	return NewRouter(&Services{
		ForecastService: service.NewForecastService(engine, service.ForecastDeps{Stock: stock}),
		StockService:    stock,
	}, nil)
}

func salesExport() string {
	var b strings.Builder
	b.WriteString("Invoice ID,Product line,Date,Quantity,Total\n")
	for d := 1; d <= 28; d++ {
		fmt.Fprintf(&b, "inv-%d,Food and beverages,1/%d/2024,%d,%d.50\n", d, d, 10+d%5, 40+d)
		fmt.Fprintf(&b, "inv-%d,Fashion accessories,1/%d/2024,2,15\n", d+100, d)
	}
	return b.String()
}

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func do(router *gin.Engine, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(t), http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestForecastRoutes(t *testing.T) {
	router := newTestRouter(t)

	t.Run("dashboard before any run", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/v1/forecast/dashboard", nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("json run without a transaction store", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/api/v1/forecast/runs", bytes.NewBufferString(`{}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid window", func(t *testing.T) {
		rec := do(router, http.MethodPost, "/api/v1/forecast/runs", bytes.NewBufferString(`{"window_start":"01/02/2024"}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("multipart run", func(t *testing.T) {
		body, ct := multipartBody(t, "sales.csv", salesExport())
		rec := do(router, http.MethodPost, "/api/v1/forecast/runs", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var env domain.ReportEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
		assert.NotEmpty(t, env.RunID)
		assert.Equal(t, "upload:sales.csv", env.Source)
		assert.Equal(t, domain.RunCompleted, env.Report.Status)
		assert.Equal(t, 2, env.Report.Summary.TotalProducts)
	})

	t.Run("dashboard", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/v1/forecast/dashboard", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		var data domain.DashboardData
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
		assert.Equal(t, 2, data.Summary.TotalProducts)
		assert.Len(t, data.TopPriorityProducts, 2)
	})

	t.Run("latest report", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/v1/forecast/reports/latest", nil, "")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("suggestions csv", func(t *testing.T) {
		rec := do(router, http.MethodGet, "/api/v1/forecast/reports/latest/suggestions.csv", nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
		lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
		assert.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "rank,product_line"))
	})

	t.Run("upload without files", func(t *testing.T) {
		body := &bytes.Buffer{}
		w := multipart.NewWriter(body)
		require.NoError(t, w.WriteField("source", "empty"))
		require.NoError(t, w.Close())
		rec := do(router, http.MethodPost, "/api/v1/forecast/runs", body, w.FormDataContentType())
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStockRoutes(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{name: "set level", method: http.MethodPut, target: "/api/v1/stock/Food%20and%20beverages", body: `{"quantity": 120}`, wantStatus: http.StatusOK},
		{name: "set zero level", method: http.MethodPut, target: "/api/v1/stock/Sports", body: `{"quantity": 0}`, wantStatus: http.StatusOK},
		{name: "negative level", method: http.MethodPut, target: "/api/v1/stock/Sports", body: `{"quantity": -4}`, wantStatus: http.StatusBadRequest},
		{name: "missing quantity", method: http.MethodPut, target: "/api/v1/stock/Sports", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "stockout", method: http.MethodPost, target: "/api/v1/stock/Toys/stockout", body: `{"note":"sold out"}`, wantStatus: http.StatusCreated},
		{name: "stockout without body", method: http.MethodPost, target: "/api/v1/stock/Books/stockout", wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, tt.method, tt.target, bytes.NewBufferString(tt.body), "application/json")
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
		})
	}

	rec := do(router, http.MethodGet, "/api/v1/stock", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var levels struct {
		Data []domain.StockLevel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &levels))
	got := map[string]int{}
	for _, l := range levels.Data {
		got[l.ProductLine] = l.Quantity
	}
	assert.Equal(t, map[string]int{"Books": 0, "Food and beverages": 120, "Sports": 0, "Toys": 0}, got)

	rec = do(router, http.MethodGet, "/api/v1/stock/stockouts", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var events struct {
		Data []domain.StockoutEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	assert.Len(t, events.Data, 2)
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)
	assert.False(t, all)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
