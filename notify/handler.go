package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// Handler is a slog.Handler that forwards records at or above minLevel
// to a Notifier after passing them to the inner handler.
type Handler struct {
	inner    slog.Handler
	notifier Notifier
	minLevel slog.Level
	attrs    []slog.Attr
}

// NewHandler creates a new Handler
func NewHandler(inner slog.Handler, notifier Notifier, minLevel slog.Level) *Handler {
	return &Handler{
		inner:    inner,
		notifier: notifier,
		minLevel: minLevel,
	}
}

// Enabled reports whether the handler handles records at the given level.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || (h.notifier != nil && level >= h.minLevel)
}

// Handle passes the record to the inner handler and notifies if needed.
func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.inner.Enabled(ctx, r.Level) {
		if err := h.inner.Handle(ctx, r); err != nil {
			return err
		}
	}

	if r.Level >= h.minLevel && h.notifier != nil {
		h.notifier.Notify(severityOf(r.Level), h.formatRecord(r))
	}
	return nil
}

// WithAttrs returns a new Handler whose attributes consist of both the receiver's attributes and the arguments.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{
		inner:    h.inner.WithAttrs(attrs),
		notifier: h.notifier,
		minLevel: h.minLevel,
		attrs:    merged,
	}
}

// WithGroup returns a new Handler with the given group appended to the receiver's existing groups.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		inner:    h.inner.WithGroup(name),
		notifier: h.notifier,
		minLevel: h.minLevel,
		attrs:    h.attrs,
	}
}

func severityOf(level slog.Level) Severity {
	if level >= slog.LevelError {
		return Error
	}
	return Warning
}

// formatRecord renders "message key=value ..." with keys sorted
func (h *Handler) formatRecord(r slog.Record) string {
	values := make(map[string]string)
	for _, a := range h.attrs {
		values[a.Key] = formatAttributeValue(a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		values[a.Key] = formatAttributeValue(a.Value)
		return true
	})
	if len(values) == 0 {
		return r.Message
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Message)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, values[k])
	}
	return b.String()
}

// formatAttributeValue formats a slog.Value for display
func formatAttributeValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindAny:
		anyValue := v.Any()
		if anyValue == nil {
			return "<nil>"
		}
		if err, ok := anyValue.(error); ok {
			return err.Error()
		}
		if stringer, ok := anyValue.(fmt.Stringer); ok {
			return stringer.String()
		}
		return fmt.Sprintf("%+v", anyValue)
	default:
		return v.String()
	}
}
