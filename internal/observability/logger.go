package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/geocoder89/identity/internal/actorctx"
	"go.opentelemetry.io/otel/trace"
)

func NewLogger(env string) *slog.Logger {
	return newLogger(os.Stdout, env)
}

func newLogger(w io.Writer, env string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(NewActorHandler(handler)))
}

// ActorHandler stamps the authenticated user id, when the request context
// carries one, onto every record.
type ActorHandler struct {
	next slog.Handler
}

func NewActorHandler(next slog.Handler) *ActorHandler {
	return &ActorHandler{next: next}
}

func (h *ActorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ActorHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := actorctx.UserIDFrom(ctx); ok {
		r.AddAttrs(slog.Int64("user_id", id))
	}
	return h.next.Handle(ctx, r)
}

func (h *ActorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ActorHandler{next: h.next.WithAttrs(attrs)}
}

func (h *ActorHandler) WithGroup(name string) slog.Handler {
	return &ActorHandler{next: h.next.WithGroup(name)}
}

// TraceHandler adds the active span's ids so log lines can be joined to traces.
type TraceHandler struct {
	next slog.Handler
}

func NewTraceHandler(next slog.Handler) *TraceHandler {
	return &TraceHandler{next: next}
}

func (h *TraceHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	sc := trace.SpanContextFromContext(ctx)

	if sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r)
}

func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TraceHandler{next: h.next.WithAttrs(attrs)}
}

func (h *TraceHandler) WithGroup(name string) slog.Handler {
	return &TraceHandler{next: h.next.WithGroup(name)}
}
