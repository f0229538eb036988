package nodemap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap/event"
	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
)

// Default timings.
const (
	DefaultAutosaveDelay    = time.Second
	DefaultFeedbackDuration = 3 * time.Second
)

// Option configures a Session or one of its components.
type Option func(*options)

type options struct {
	logger           *zap.Logger
	metrics          observability.MetricsRecorder
	clock            Clock
	bus              event.Bus
	autosaveDelay    time.Duration
	feedbackDuration time.Duration
}

func defaultOptions() options {
	return options{
		logger:           zap.NewNop(),
		metrics:          observability.NoopMetrics{},
		clock:            SystemClock(),
		autosaveDelay:    DefaultAutosaveDelay,
		feedbackDuration: DefaultFeedbackDuration,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the structured logger. Nil is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
//
// Example:
//
//	sess := nodemap.NewSession(ctx, client, nodemap.WithMetrics(observability.NewMetricsRecorder()))
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithClock replaces the clock used for the save debounce and feedback
// timers. Tests use this to drive time by hand.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithEventBus publishes state changes to bus. Use a non-blocking bus so a
// slow subscriber cannot stall the engine.
func WithEventBus(bus event.Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}

// WithAutosaveDelay sets the trailing debounce window. Non-positive values
// are ignored.
func WithAutosaveDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.autosaveDelay = d
		}
	}
}

// WithFeedbackDuration sets how long the save success or failure indicator
// stays visible. Non-positive values are ignored.
func WithFeedbackDuration(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.feedbackDuration = d
		}
	}
}

func (o *options) publish(typ string, payload any) {
	if o.bus == nil {
		return
	}
	if err := o.bus.Publish(context.Background(), event.New(typ, eventSource, payload)); err != nil {
		o.logger.Debug("event not published",
			zap.String("type", typ),
			zap.Error(err),
		)
	}
}
