package api

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleEvents streams the caller's notifications as server-sent events.
func (s *Server) handleEvents(c *gin.Context) {
	if s.deps.Bus == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Message: "Notifications are not configured.", Category: "internal"})
		return
	}
	user := userFrom(c)
	if user.Anonymous() {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Message: "User is not authenticated.", Category: "unauthenticated"})
		return
	}

	sub := s.deps.Bus.Subscribe(user.ID)
	if sub == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, errorResponse{Message: "Notifications are shutting down.", Category: "internal"})
		return
	}
	defer sub.Unsubscribe()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(io.Writer) bool {
		select {
		case n, ok := <-sub.C():
			if !ok {
				return false
			}
			c.SSEvent("notification", n)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
