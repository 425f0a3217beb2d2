package stream

import (
	"context"

	"github.com/openresearch/conductor/pkg/domain"
	"github.com/openresearch/conductor/pkg/observability"
)

// LogSink is a NotificationSink that writes every progress event to the
// structured log. It never blocks and never surfaces failures, matching the
// fire-and-forget sink contract.
type LogSink struct {
	logger *observability.StructuredLogger
}

// NewLogSink creates a logging notification sink
func NewLogSink() *LogSink {
	return &LogSink{
		logger: observability.NewStructuredLogger("research_events"),
	}
}

// Notify implements domain.NotificationSink
func (s *LogSink) Notify(ctx context.Context, eventType, message string, payload interface{}) {
	attrs := map[string]interface{}{
		"event_type": eventType,
	}
	if payload != nil {
		attrs["payload"] = payload
	}
	s.logger.Info(ctx, message, attrs)
}

// Fanout delivers every notification to several sinks in order
type Fanout struct {
	sinks []domain.NotificationSink
}

// NewFanout creates a sink that forwards to all the given sinks
func NewFanout(sinks ...domain.NotificationSink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Notify implements domain.NotificationSink
func (f *Fanout) Notify(ctx context.Context, eventType, message string, payload interface{}) {
	for _, sink := range f.sinks {
		if sink != nil {
			sink.Notify(ctx, eventType, message, payload)
		}
	}
}
