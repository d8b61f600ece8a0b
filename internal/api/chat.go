package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/llm"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
)

type chatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages         []chatMessage `json:"messages" binding:"required,min=1,dive"`
	Model            string        `json:"model"`
	Prompt           string        `json:"prompt"`
	Temperature      *float64      `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	TopP             *float64      `json:"topP" binding:"omitempty,gte=0,lte=1"`
	PresencePenalty  *float64      `json:"presencePenalty" binding:"omitempty,gte=-2,lte=2"`
	FrequencyPenalty *float64      `json:"frequencyPenalty" binding:"omitempty,gte=-2,lte=2"`
	MaxTokens        int           `json:"maxTokens" binding:"omitempty,gte=1"`
	UserID           string        `json:"userId" binding:"required"`
	Username         string        `json:"username" binding:"required"`
}

func (r chatRequest) completion() llm.CompletionRequest {
	msgs := make([]llm.Message, 0, len(r.Messages))
	for _, m := range r.Messages {
		role := llm.RoleUser
		switch m.Role {
		case "assistant", "ai":
			role = llm.RoleAssistant
		case "system":
			role = llm.RoleSystem
		}
		msgs = append(msgs, llm.Message{Role: role, Content: m.Content})
	}
	return llm.CompletionRequest{
		SystemPrompt:     r.Prompt,
		Messages:         msgs,
		Model:            r.Model,
		MaxTokens:        r.MaxTokens,
		Temperature:      r.Temperature,
		TopP:             r.TopP,
		PresencePenalty:  r.PresencePenalty,
		FrequencyPenalty: r.FrequencyPenalty,
		User:             r.UserID,
	}
}

type rateLimitRequest struct {
	UserID string `json:"userId" binding:"required"`
	Type   string `json:"type" binding:"required"`
}

// handleChat streams a completion as plain text.
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	if s.deps.Chat == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Message: "Chat is not configured.", Category: "internal"})
		return
	}

	ctx := c.Request.Context()
	if s.deps.Limits != nil {
		res, err := s.deps.Limits.Check(ctx, ratelimit.KindChatAPI, ratelimit.Key(ratelimit.KindChatAPI, req.UserID, req.Username))
		if err != nil {
			s.writeError(c, err)
			return
		}
		setRateLimitHeaders(c, res)
	}

	chunks, err := s.deps.Chat.Stream(ctx, req.completion())
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	c.Stream(func(w io.Writer) bool {
		chunk, ok := <-chunks
		if !ok {
			return false
		}
		if chunk.Error != nil {
			// Headers are gone; the stream just ends early.
			s.deps.Logger.Warn("chat stream failed", slog.String("error", chunk.Error.Error()))
			return false
		}
		if chunk.Content != "" {
			_, _ = io.WriteString(w, chunk.Content)
		}
		return !chunk.Done
	})
}

// handleChatRateLimit counts one request against the user's quota and
// reports whether it was allowed.
func (s *Server) handleChatRateLimit(c *gin.Context) {
	var req rateLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	kind, err := ratelimit.ParseKind(req.Type)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid rate limit type"})
		return
	}
	if s.deps.Limits == nil {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	res, err := s.deps.Limits.Check(c.Request.Context(), kind, ratelimit.Key(kind, req.UserID))
	var rlErr *fderrors.RateLimitError
	switch {
	case errors.As(err, &rlErr):
		setRateLimitHeaders(c, res)
		c.JSON(http.StatusOK, gin.H{"success": false})
	case err != nil:
		s.writeError(c, err)
	default:
		setRateLimitHeaders(c, res)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
