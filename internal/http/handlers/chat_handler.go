// Chat assistant HTTP handler.
//
//   - POST /chat  (one question, one answer)
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Assistant answers free-form questions about inventory movement.
//
// Implementations must honor the provided context for cancellation and
// timeouts.
type Assistant interface {
	// Reply answers one user message and returns the final text.
	Reply(ctx context.Context, message string) (string, error)
}

// ChatRequest is the JSON payload for the chat endpoint.
type ChatRequest struct {
	// Message is the user's question.
	Message string `json:"message" binding:"required" example:"What sold today?"`
}

// ChatResponse wraps the assistant's answer.
type ChatResponse struct {
	OK    bool   `json:"ok"`
	Reply string `json:"reply"`
}

// Chat godoc
// @ID          chat
// @Summary     Ask the inventory assistant
// @Description Answers one question using live analytics data. Sales figures are inferred from inventory decreases and carry a disclaimer.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "User message"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     503  {object}  handlers.ErrorResponse  "Assistant not configured"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Message) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "message required")
		return
	}

	reply, err := h.chatSvc.Reply(c.Request.Context(), req.Message)
	if err != nil {
		failFromError(c, err)
		return
	}
	ok(c, http.StatusOK, ChatResponse{OK: true, Reply: reply})
}
