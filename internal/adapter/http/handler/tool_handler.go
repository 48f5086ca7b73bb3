package handler

import (
	"net/http"

	"social-custody-gateway/internal/adapter/http/dto"
	"social-custody-gateway/internal/adapter/http/middleware"
	"social-custody-gateway/internal/dispatch"
	"social-custody-gateway/pkg/apperror"
	"social-custody-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// ToolHandler exposes the dispatcher to tool hosts.
type ToolHandler struct {
	dispatcher *dispatch.Dispatcher
	log        zerolog.Logger
}

func NewToolHandler(d *dispatch.Dispatcher, log zerolog.Logger) *ToolHandler {
	return &ToolHandler{dispatcher: d, log: log}
}

// Call handles POST /api/v1/tools/call. Operation failures are part of the
// envelope and still answer 200; only malformed requests get an error status.
func (h *ToolHandler) Call(c *gin.Context) {
	var req dto.ToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrInvalidParameters("malformed tool call: "+err.Error()))
		return
	}

	h.log.Debug().
		Str("request_id", response.RequestID(c)).
		Str("client_id", c.GetString(middleware.CtxClientID)).
		Str("operation", req.Operation).
		Msg("tool call")

	c.JSON(http.StatusOK, h.dispatcher.Dispatch(c.Request.Context(), req.Operation, req.Params))
}

// List handles GET /api/v1/tools.
func (h *ToolHandler) List(c *gin.Context) {
	response.OK(c, h.dispatcher.Operations())
}
