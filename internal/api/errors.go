package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/randalmurphal/flowdeck/pkg/flowdeck"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/dispatch"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/editor"
	fderrors "github.com/randalmurphal/flowdeck/pkg/flowdeck/errors"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/ratelimit"
	"github.com/randalmurphal/flowdeck/pkg/flowdeck/voice"
)

type errorResponse struct {
	Message  string `json:"message"`
	Category string `json:"category"`
	NodeID   string `json:"nodeId,omitempty"`
}

// sentinels maps errors outside the category taxonomy to a status.
var sentinels = []struct {
	err    error
	status int
}{
	{editor.ErrTypeDisabled, http.StatusConflict},
	{dispatch.ErrCallInProgress, http.StatusConflict},
	{voice.ErrSessionEnded, http.StatusConflict},
	{voice.ErrNoActiveCall, http.StatusNotFound},
	{voice.ErrUnknownEvent, http.StatusBadRequest},
	{flowdeck.ErrNodeNotFound, http.StatusNotFound},
	{flowdeck.ErrTypeImmutable, http.StatusUnprocessableEntity},
}

func statusFor(err error) (int, bool) {
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.status, true
		}
	}
	return fderrors.HTTPStatus(err), false
}

// writeError answers with the status and user message for err.
func (s *Server) writeError(c *gin.Context, err error) {
	status, sentinel := statusFor(err)
	resp := errorResponse{
		Message:  fderrors.UserMessage(err),
		Category: fderrors.Categorize(err).String(),
	}
	if sentinel {
		resp.Message = err.Error()
	}

	var valErr *fderrors.ValidationError
	if errors.As(err, &valErr) {
		resp.NodeID = valErr.NodeID
	}
	var rlErr *fderrors.RateLimitError
	if errors.As(err, &rlErr) {
		setRateLimitHeaders(c, ratelimit.Result{Limit: rlErr.Limit, Remaining: rlErr.Remaining, Reset: rlErr.Reset})
	}

	if status >= http.StatusInternalServerError {
		s.deps.Logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{
		Message:  msg,
		Category: fderrors.CategoryValidation.String(),
	})
}

func setRateLimitHeaders(c *gin.Context, res ratelimit.Result) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(res.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(res.Reset.UnixMilli(), 10))
}
