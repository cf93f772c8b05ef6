// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"

	"github.com/mpataki/crudflow/internal/config"
)

const timeFormat = "2006-01-02 15:04:05.000Z07:00"

// New returns a JSON logger for format "json" and a colourised text logger
// otherwise. Error attributes are highlighted in text output.
func New(output io.Writer, level slog.Level, format string) *slog.Logger {
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	}

	handler := tint.NewHandler(output, &tint.Options{
		Level:      level,
		TimeFormat: timeFormat,
		NoColor:    !isTerminal(output),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Value.Kind() == slog.KindAny {
				if _, ok := a.Value.Any().(error); ok {
					return tint.Attr(9, a)
				}
			}
			return a
		},
	})
	return slog.New(handler)
}

type fdWriter interface {
	Fd() uintptr
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(fdWriter)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
