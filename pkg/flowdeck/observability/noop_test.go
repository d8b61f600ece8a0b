package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordDispatch(context.Background(), "rule", time.Second, errors.New("x"))
		m.RecordRateLimitRejection(context.Background(), "flow")
		m.RecordStoreOp(context.Background(), "save", nil)
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	got, span := sm.StartDispatchSpan(ctx, "f", "u")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())

	got, span = sm.StartCollaboratorSpan(ctx, "openai")
	assert.Equal(t, ctx, got)
	assert.NotPanics(t, func() {
		sm.EndSpanWithError(span, errors.New("x"))
		sm.AddSpanEvent(ctx, "e", attribute.Int("n", 1))
	})
}
