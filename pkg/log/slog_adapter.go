package log

import (
	"context"
	"log/slog"
)

// SlogAdapter writes protocol events to an slog.Logger.
// Useful for development when you want to see protocol events in console.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter that writes to the given slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log writes the event to the slog logger at Debug level.
func (a *SlogAdapter) Log(event Event) {
	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("category", event.Category.String()),
	}

	if event.DeviceID != "" {
		attrs = append(attrs, slog.String("device_id", event.DeviceID))
	}

	switch {
	case event.Line != nil:
		attrs = append(attrs,
			slog.String("line", string(event.Line.Data)),
			slog.Bool("truncated", event.Line.Truncated),
			slog.Bool("unsolicited", event.Line.Unsolicited),
			slog.Bool("timeout", event.Line.Timeout),
		)
	case event.State != nil:
		attrs = append(attrs,
			slog.String("entity", event.State.Entity),
			slog.String("old_state", event.State.OldState),
			slog.String("new_state", event.State.NewState),
		)
		if event.State.Reason != "" {
			attrs = append(attrs, slog.String("reason", event.State.Reason))
		}
	case event.MacroStep != nil:
		attrs = append(attrs,
			slog.String("macro_id", event.MacroStep.MacroID),
			slog.Int("index", event.MacroStep.Index),
			slog.String("device", event.MacroStep.Device),
			slog.String("command", event.MacroStep.Command),
			slog.String("result", event.MacroStep.Result),
			slog.Bool("short_circuited", event.MacroStep.ShortCircuited),
		)
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_context", event.Error.Context),
			slog.String("error_msg", event.Error.Message),
		)
	}

	a.logger.LogAttrs(context.Background(), slog.LevelDebug, "protocol", attrs...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*SlogAdapter)(nil)
