package handlers

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/andresuchdata/pendulum-sync/internal/api/middleware"
	"github.com/andresuchdata/pendulum-sync/internal/cache"
	"github.com/andresuchdata/pendulum-sync/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const jsonContentType = "application/json; charset=utf-8"

type ReportHandler struct {
	cache       cache.ReportCache
	chatDir     string
	gameplayDir string
}

func NewReportHandler(reportCache cache.ReportCache, chatDir, gameplayDir string) *ReportHandler {
	if reportCache == nil {
		reportCache = cache.NewNoopReportCache()
	}
	return &ReportHandler{
		cache:       reportCache,
		chatDir:     chatDir,
		gameplayDir: gameplayDir,
	}
}

// GetChatReport returns the latest chat fine-tuning summary.
func (h *ReportHandler) GetChatReport(c *gin.Context) {
	h.serve(c, report.DataTypeChat, h.chatDir)
}

// GetGameplayReport returns the latest gameplay sessions summary.
func (h *ReportHandler) GetGameplayReport(c *gin.Context) {
	h.serve(c, report.DataTypeGameplay, h.gameplayDir)
}

// serve prefers the cached summary and falls back to the file on disk.
func (h *ReportHandler) serve(c *gin.Context, dataType, root string) {
	ctx := c.Request.Context()
	c.Set(middleware.DataTypeKey, dataType)

	payload, ok, err := h.cache.Get(ctx, dataType)
	if err != nil {
		log.Warn().Err(err).Str("data_type", dataType).Msg("report cache read failed, falling back to disk")
	}
	if ok {
		c.Header(middleware.ReportSourceHeader, "cache")
		c.Data(http.StatusOK, jsonContentType, payload)
		return
	}

	raw, err := report.Load(root)
	if errors.Is(err, fs.ErrNotExist) {
		c.JSON(http.StatusNotFound, gin.H{"error": dataType + " report not found"})
		return
	}
	if err != nil {
		log.Error().Err(err).Str("data_type", dataType).Msg("failed to read report")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read report"})
		return
	}

	c.Header(middleware.ReportSourceHeader, "file")
	c.Data(http.StatusOK, jsonContentType, raw)
}
