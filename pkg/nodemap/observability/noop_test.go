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
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordOperation(ctx, "save", time.Millisecond, errors.New("x"))
		m.RecordStaleDiscard(ctx, "fetch_one")
		m.RecordSaveCoalesced(ctx)
	})
}

func TestNoopSpanManager(t *testing.T) {
	var m SpanManager = NoopSpanManager{}
	ctx := context.Background()

	got, span := m.StartRemoteSpan(ctx, "login", "POST", "/auth/login")
	assert.Equal(t, ctx, got)
	assert.False(t, span.IsRecording())
	assert.NotPanics(t, func() {
		m.AddSpanEvent(ctx, "e", attribute.String("k", "v"))
		m.EndSpanWithError(span, errors.New("x"))
	})
}
