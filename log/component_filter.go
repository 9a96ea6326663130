package log

import (
	"context"
	"log/slog"
	"strings"
)

// ComponentKey is the attribute loggers tag themselves with, e.g.
// logger.With(slog.String(log.ComponentKey, "ostium")).
const ComponentKey = "component"

// ComponentFilterHandler drops records from components outside the
// allowlist. Records carrying no component attribute always pass, so startup
// and request logs survive a narrow filter.
type ComponentFilterHandler struct {
	next      slog.Handler
	allowed   map[string]struct{}
	component string
}

// NewComponentFilterHandler wraps next with component filtering. With an
// empty allowlist the original handler is returned unchanged.
func NewComponentFilterHandler(next slog.Handler, allowedComponents []string) slog.Handler {
	if next == nil || len(allowedComponents) == 0 {
		return next
	}
	allowed := make(map[string]struct{}, len(allowedComponents))
	for _, c := range allowedComponents {
		if trimmed := strings.TrimSpace(strings.ToLower(c)); trimmed != "" {
			allowed[trimmed] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return next
	}
	return &ComponentFilterHandler{next: next, allowed: allowed}
}

func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *ComponentFilterHandler) Handle(ctx context.Context, record slog.Record) error {
	component := h.component
	record.Attrs(func(a slog.Attr) bool {
		if a.Key == ComponentKey {
			component = a.Value.String()
			return false
		}
		return true
	})
	if component != "" {
		if _, ok := h.allowed[strings.ToLower(component)]; !ok {
			return nil
		}
	}
	return h.next.Handle(ctx, record)
}

func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &ComponentFilterHandler{
		next:      h.next.WithAttrs(attrs),
		allowed:   h.allowed,
		component: h.component,
	}
	for _, a := range attrs {
		if a.Key == ComponentKey {
			clone.component = a.Value.String()
		}
	}
	return clone
}

func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	return &ComponentFilterHandler{
		next:      h.next.WithGroup(name),
		allowed:   h.allowed,
		component: h.component,
	}
}
