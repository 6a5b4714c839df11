package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/RickEth137/ClawStream/internal/engine"
	"github.com/RickEth137/ClawStream/internal/service"
	"github.com/RickEth137/ClawStream/pkg/response"
)

// HTTPHandler serves the read-only discovery API.
type HTTPHandler struct {
	service  service.StreamService
	registry *engine.Registry
}

func NewHTTPHandler(svc service.StreamService, reg *engine.Registry) *HTTPHandler {
	return &HTTPHandler{service: svc, registry: reg}
}

func (h *HTTPHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	{
		api.GET("/streams", h.ListStreams)
		api.GET("/streams/:id", h.GetStream)
		api.GET("/streams/:id/state", h.GetStreamState)
	}
}

func (h *HTTPHandler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}

func (h *HTTPHandler) ListStreams(c *gin.Context) {
	response.Success(c, gin.H{"streams": h.service.ListStreams(c.Request.Context())})
}

func (h *HTTPHandler) GetStream(c *gin.Context) {
	info, err := h.service.GetStream(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrStreamNotFound) {
			response.NotFound(c, "stream not found")
			return
		}
		response.InternalError(c, "failed to load stream")
		return
	}
	response.Success(c, info)
}

// GetStreamState returns a one-shot state snapshot without a
// WebSocket subscription. Useful for thumbnails and debugging.
func (h *HTTPHandler) GetStreamState(c *gin.Context) {
	session, ok := h.registry.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "stream not found")
		return
	}
	response.Success(c, session.Snapshot())
}
