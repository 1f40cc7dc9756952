package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/autopo-py/forecast-go/internal/service"
)

type StockHandler struct {
	service *service.StockService
}

func NewStockHandler(service *service.StockService) *StockHandler {
	return &StockHandler{service: service}
}

type stockLevelRequest struct {
	Quantity *int `json:"quantity" binding:"required,gte=0"`
}

type stockoutRequest struct {
	Note string `json:"note" binding:"max=500"`
}

func (h *StockHandler) SetStockLevel(c *gin.Context) {
	var req stockLevelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	level, err := h.service.IngestStockLevel(c.Request.Context(), c.Param("line"), *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, level)
}

func (h *StockHandler) NotifyStockout(c *gin.Context) {
	var req stockoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	event, err := h.service.NotifyStockout(c.Request.Context(), c.Param("line"), req.Note)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, event)
}

func (h *StockHandler) GetStockLevels(c *gin.Context) {
	levels, err := h.service.Levels(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": levels})
}

func (h *StockHandler) GetStockouts(c *gin.Context) {
	events, err := h.service.Stockouts(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": events})
}
