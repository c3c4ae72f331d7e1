package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/muesli/termenv"
	"go.trai.ch/envy/internal/ui/output"
	"go.trai.ch/envy/internal/ui/style"
)

// levelStyle is the icon and color of one severity.
type levelStyle struct {
	icon  string
	color string
}

func styleFor(level slog.Level) levelStyle {
	switch {
	case level >= slog.LevelError:
		return levelStyle{icon: style.Cross, color: string(style.Red)}
	case level >= slog.LevelWarn:
		return levelStyle{icon: style.Warning, color: string(style.Yellow)}
	case level < slog.LevelInfo:
		return levelStyle{icon: style.Dot, color: string(style.Slate)}
	default:
		return levelStyle{color: string(style.Teal)}
	}
}

// PrettyHandler is a slog.Handler writing one colored line per record.
// Attributes follow the message as key=value pairs.
type PrettyHandler struct {
	out    *termenv.Output
	level  slog.Leveler
	suffix string
	prefix string
}

// NewPrettyHandler creates a PrettyHandler writing to w, or stderr when w is nil.
func NewPrettyHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyHandler {
	if w == nil {
		w = os.Stderr
	}
	h := &PrettyHandler{out: output.New(w), level: slog.LevelInfo}
	if opts != nil && opts.Level != nil {
		h.level = opts.Level
	}
	return h
}

// Enabled reports whether records at level are written.
func (h *PrettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle writes the record.
//
//nolint:gocritic // slog.Handler interface requires slog.Record by value
func (h *PrettyHandler) Handle(_ context.Context, r slog.Record) error {
	ls := styleFor(r.Level)
	line := r.Message
	if ls.icon != "" {
		line = ls.icon + " " + line
	}
	line += h.suffix
	r.Attrs(func(a slog.Attr) bool {
		line += h.pair(a)
		return true
	})

	styled := h.out.String(line).Foreground(termenv.RGBColor(ls.color))
	_, err := h.out.WriteString(styled.String() + "\n")
	return err
}

// WithAttrs returns a handler that appends attrs to every line.
func (h *PrettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		next.suffix += h.pair(a)
	}
	return &next
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *PrettyHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix += name + "."
	return &next
}

func (h *PrettyHandler) pair(a slog.Attr) string {
	return " " + h.prefix + a.Key + "=" + a.Value.String()
}
