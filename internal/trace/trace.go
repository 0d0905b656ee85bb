// Package trace records turn, model-call and tool-call spans as zerolog lines.
package trace

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Tracer opens spans around units of work and records point events in them.
type Tracer interface {
	StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error))
	Event(ctx context.Context, name string, attrs map[string]any)
}

type spanKey struct{}

// span is the open span carried in a context. Attributes accumulate down the
// tree so events in a child span still name the session that owns it.
type span struct {
	name   string
	attrs  map[string]any
	logger zerolog.Logger
}

type ZerologTracer struct {
	logger zerolog.Logger
}

func NewZerologTracer(logger zerolog.Logger) *ZerologTracer {
	return &ZerologTracer{logger: logger}
}

// New writes spans to w at the named level. "disabled", "" or an unknown
// level yields a tracer that drops everything.
func New(w io.Writer, level string) *ZerologTracer {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.Disabled
	}
	return NewZerologTracer(zerolog.New(w).Level(lvl).With().Timestamp().Logger())
}

func Nop() *ZerologTracer {
	return NewZerologTracer(zerolog.Nop())
}

func (t *ZerologTracer) StartSpan(ctx context.Context, name string, attrs map[string]any) (context.Context, func(err error)) {
	if ctx == nil {
		ctx = context.Background()
	}
	merged := make(map[string]any, len(attrs))
	builder := t.logger.With().Str("span", name)
	if parent, ok := ctx.Value(spanKey{}).(*span); ok {
		builder = builder.Str("parent", parent.name)
		for k, v := range parent.attrs {
			merged[k] = v
		}
	}
	for k, v := range attrs {
		merged[k] = v
	}
	for k, v := range merged {
		builder = builder.Interface(k, v)
	}
	current := &span{name: name, attrs: merged, logger: builder.Logger()}
	ctx = context.WithValue(ctx, spanKey{}, current)

	start := time.Now()
	current.logger.Debug().Str("event", "span_start").Msg(name)

	finish := func(err error) {
		event := current.logger.Info()
		if err != nil {
			event = current.logger.Error().Err(err)
		}
		event.Str("event", "span_end").Dur("duration", time.Since(start)).Msg(name)
	}
	return ctx, finish
}

func (t *ZerologTracer) Event(ctx context.Context, name string, attrs map[string]any) {
	logger := t.logger
	if ctx != nil {
		if current, ok := ctx.Value(spanKey{}).(*span); ok {
			logger = current.logger
		}
	}
	event := logger.Info()
	for k, v := range attrs {
		event = event.Interface(k, v)
	}
	event.Str("event", name).Msg(name)
}

var _ Tracer = (*ZerologTracer)(nil)
