package generator

import (
	_ "embed"
	"log/slog"
)

//go:embed scripts/demo.lua
var demoScript string

// NewDemo returns the bundled offline script, which answers questions about
// the seeded shop database without a hosted model.
func NewDemo(logger *slog.Logger) (*Lua, error) {
	return NewLua(demoScript, logger)
}
