package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck/dispatch"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

type runRequest struct {
	Input string `json:"input"`
}

type runResponse struct {
	Rule   dispatch.Rule `json:"rule"`
	Output string        `json:"output,omitempty"`
	CallID string        `json:"callId,omitempty"`
}

type voiceEventRequest struct {
	CallID string `json:"callId" binding:"required"`
	Type   string `json:"type" binding:"required"`
}

func (s *Server) handleRun(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}

	f, err := s.load(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	out, err := s.deps.Dispatcher.Dispatch(c.Request.Context(), f.Graph, dispatch.Input{
		Text:   req.Input,
		User:   userFrom(c),
		FlowID: f.ID,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse{Rule: out.Rule, Output: out.Output, CallID: out.CallID})
}

func (s *Server) handleHangup(c *gin.Context) {
	user := userFrom(c)
	if user.Anonymous() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: "User is not authenticated.", Category: "unauthenticated"})
		return
	}
	if err := s.deps.Dispatcher.Hangup(c.Request.Context(), user.ID); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Call ended"})
}

func (s *Server) handleVoiceEvent(c *gin.Context) {
	var req voiceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request: "+err.Error())
		return
	}
	evt, err := voice.ParseEventType(req.Type)
	if err != nil {
		s.writeError(c, err)
		return
	}

	tr, err := s.deps.Dispatcher.HandleVoiceEvent(c.Request.Context(), req.CallID, evt)
	if err != nil && !errors.Is(err, voice.ErrSessionEnded) {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": tr.To, "changed": tr.Changed()})
}
