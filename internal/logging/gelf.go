package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/Graylog2/go-gelf/gelf"
)

// GelfHandler ships slog records to a Graylog server as GELF messages.
type GelfHandler struct {
	writer *gelf.Writer
	level  slog.Level
	host   string
	attrs  []slog.Attr
	group  string
}

// NewGelfHandler dials the Graylog UDP endpoint. The host field of every
// message is the local hostname.
func NewGelfHandler(address string, level slog.Level) (*GelfHandler, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("gelf dial failed: %w", err)
	}
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &GelfHandler{writer: w, level: level, host: host}, nil
}

// Enabled reports whether the handler accepts records at the given level.
func (h *GelfHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle converts the record to a GELF message and writes it.
func (h *GelfHandler) Handle(_ context.Context, r slog.Record) error {
	extra := make(map[string]any, r.NumAttrs()+len(h.attrs))
	for _, a := range h.attrs {
		extra[h.extraKey(a.Key)] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		extra[h.extraKey(a.Key)] = a.Value.Any()
		return true
	})

	msg := &gelf.Message{
		Version:  "1.1",
		Host:     h.host,
		Short:    r.Message,
		TimeUnix: float64(r.Time.UnixNano()) / 1e9,
		Level:    gelfLevel(r.Level),
		Extra:    extra,
	}
	return h.writer.WriteMessage(msg)
}

// WithAttrs returns a handler that includes the given attributes in every
// message.
func (h *GelfHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

// WithGroup returns a handler that prefixes attribute keys with the group
// name.
func (h *GelfHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if h.group != "" {
		clone.group = h.group + "." + name
	} else {
		clone.group = name
	}
	return &clone
}

// extraKey builds a Graylog additional-field key. GELF requires the
// underscore prefix.
func (h *GelfHandler) extraKey(key string) string {
	if h.group != "" {
		return "_" + h.group + "." + key
	}
	return "_" + key
}

// gelfLevel maps slog levels to syslog severities.
func gelfLevel(level slog.Level) int32 {
	switch {
	case level >= slog.LevelError:
		return gelf.LOG_ERR
	case level >= slog.LevelWarn:
		return gelf.LOG_WARNING
	case level >= slog.LevelInfo:
		return gelf.LOG_INFO
	default:
		return gelf.LOG_DEBUG
	}
}
