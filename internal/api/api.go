package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/api/handlers"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/api/middleware"
	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
)

type Services struct {
	ForecastService *service.ForecastService
	StockService    *service.StockService
}

func NewRouter(services *Services, allowedOrigins []string) *gin.Engine {
	router := gin.New()

	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	defaultOrigins := []string{"http://localhost:3000", "http://127.0.0.1:3000"}
	corsConfig := cors.Config{
		AllowOrigins:     defaultOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(allowedOrigins) > 0 {
		normalizedOrigins, allowAll := normalizeAllowedOrigins(allowedOrigins)
		if allowAll {
			corsConfig.AllowOrigins = nil
			corsConfig.AllowOriginFunc = func(origin string) bool { return true }
		} else if len(normalizedOrigins) > 0 {
			corsConfig.AllowOrigins = normalizedOrigins
		}
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := router.Group("/api/v1")

	if services != nil {
		if services.ForecastService != nil {
			forecastHandler := handlers.NewForecastHandler(services.ForecastService)
			forecastGroup := apiGroup.Group("/forecast")
			{
				forecastGroup.POST("/runs", forecastHandler.RunForecast)
				forecastGroup.GET("/dashboard", forecastHandler.GetDashboard)
				forecastGroup.GET("/reports/latest", forecastHandler.GetLatestReport)
				forecastGroup.GET("/reports/latest/suggestions.csv", forecastHandler.GetLatestSuggestionsCSV)
			}
		}

		if services.StockService != nil {
			stockHandler := handlers.NewStockHandler(services.StockService)
			stockGroup := apiGroup.Group("/stock")
			{
				stockGroup.GET("", stockHandler.GetStockLevels)
				stockGroup.GET("/stockouts", stockHandler.GetStockouts)
				stockGroup.PUT("/:line", stockHandler.SetStockLevel)
				stockGroup.POST("/:line/stockout", stockHandler.NotifyStockout)
			}
		}
	}

	return router
}

func normalizeAllowedOrigins(origins []string) ([]string, bool) {
	var (
		parsed   []string
		allowAll bool
	)
	for _, origin := range origins {
		for _, part := range strings.Split(origin, ",") {
			trimmed := strings.TrimSpace(part)
			if trimmed == "" {
				continue
			}
			if trimmed == "*" {
				allowAll = true
				continue
			}
			parsed = append(parsed, trimmed)
		}
	}
	return parsed, allowAll
}
