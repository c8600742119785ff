package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tovala_bridge/internal/tovala"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusStarted   = "started"
	statusCanceled  = "canceled"
	statusRequested = "refresh_requested"

	errStartCook   = "failed to start cooking"
	errCancelCook  = "failed to cancel cooking"
	errUpstreamGw  = "upstream API unreachable"
	errBodyMissing = "either barcode or title is required"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandStatus maps upstream failures to HTTP codes.
func commandStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tovala.ErrConnectionFailed):
		return http.StatusBadGateway, errUpstreamGw
	case errors.Is(err, tovala.ErrRateLimited):
		return http.StatusTooManyRequests, "upstream rate limited"
	case errors.Is(err, tovala.ErrNotAuthenticated), errors.Is(err, tovala.ErrInvalidCredentials):
		return http.StatusBadGateway, "upstream session unavailable"
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

// Request DTO for starting a cook. Exactly one of Barcode or Title is used;
// Barcode wins when both are present.
type startCookRequest struct {
	Barcode string `json:"barcode,omitempty"`
	Title   string `json:"title,omitempty"`
}

// StartCookRequest is an exported model for Swagger docs of the cook/start payload.
type StartCookRequest struct {
	// Barcode in pipe-delimited form
	Barcode string `json:"barcode,omitempty" example:"133A254|463|5E34BF80"`
	// Catalog recipe title, resolved to its barcode
	Title string `json:"title,omitempty" example:"Salmon"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Get oven snapshot
// @Description  Returns the last polled snapshot. "available" is false while the most recent refresh cycle failed; the stale snapshot is still included.
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "available, state"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/oven/state [get]
// @Security     BearerAuth
func (h *Handler) getState(c *gin.Context) {
	snap, ok := h.services.Monitoring.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"available": ok,
		"state":     snap,
	})
}

// @Summary      Request an immediate poll
// @Tags         oven
// @Produce      json
// @Success      202  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/oven/refresh [post]
// @Security     BearerAuth
func (h *Handler) requestRefresh(c *gin.Context) {
	h.services.Monitoring.RequestRefresh()
	c.JSON(http.StatusAccepted, gin.H{"status": statusRequested})
}

// @Summary      List recipe catalog
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, recipes"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/oven/recipes [get]
// @Security     BearerAuth
func (h *Handler) getRecipes(c *gin.Context) {
	recipes := h.services.OvenControl.Recipes()
	c.JSON(http.StatusOK, gin.H{
		"count":   len(recipes),
		"recipes": recipes,
	})
}

// @Summary      Recent cook history
// @Tags         oven
// @Produce      json
// @Param        limit  query  int  false  "Max records (default 10)"
// @Success      200  {object}  map[string]interface{}  "count, history"
// @Failure      401  {object}  map[string]string
// @Router       /api/v1/oven/history [get]
// @Security     BearerAuth
func (h *Handler) getHistory(c *gin.Context) {
	limit := 0
	if qs := c.Query("limit"); qs != "" {
		if v, err := strconv.Atoi(qs); err == nil && v > 0 {
			limit = v
		}
	}
	history := h.services.OvenControl.History(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"count":   len(history),
		"history": history,
	})
}

// @Summary      Start cooking
// @Description  Starts the cook for a barcode, or a catalog recipe by title.
// @Tags         oven
// @Accept       json
// @Produce      json
// @Param        body  body   StartCookRequest  true  "Cook payload"
// @Success      200   {object}  map[string]string
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      502   {object}  map[string]string
// @Router       /api/v1/oven/cook/start [post]
// @Security     BearerAuth
func (h *Handler) startCook(c *gin.Context) {
	var req startCookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	ctx := c.Request.Context()
	var err error
	switch {
	case req.Barcode != "":
		err = h.services.OvenControl.StartCook(ctx, req.Barcode)
	case req.Title != "":
		err = h.services.OvenControl.StartRecipe(ctx, req.Title)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": errBodyMissing})
		return
	}
	if err != nil {
		code, msg := commandStatus(err)
		h.logAndJSONError(c, code, msg, "cook_start_failed", err, "barcode", req.Barcode, "title", req.Title)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusStarted})
}

// @Summary      Cancel cooking
// @Tags         oven
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      401  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/v1/oven/cook/cancel [post]
// @Security     BearerAuth
func (h *Handler) cancelCook(c *gin.Context) {
	if err := h.services.OvenControl.CancelCook(c.Request.Context()); err != nil {
		code, msg := commandStatus(err)
		h.logAndJSONError(c, code, msg, "cook_cancel_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusCanceled})
}
