package generator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// Lua answers prompts from a script that defines generate(prompt). The
// function may return a string or a table with a content field. Scripts run
// sandboxed: no io, os, load* or randomness.
type Lua struct {
	mu     sync.Mutex
	state  *lua.LState
	logger *slog.Logger
	logs   []string
}

var _ Source = (*Lua)(nil)

// LoadLua reads a script from path.
func LoadLua(path string, logger *slog.Logger) (*Lua, error) {
	script, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return NewLua(string(script), logger)
}

func NewLua(script string, logger *slog.Logger) (*Lua, error) {
	if logger == nil {
		logger = slog.Default()
	}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	r := &Lua{state: L, logger: logger}
	r.openSafeLibs(L)
	r.registerAPI(L)

	if err := L.DoString(script); err != nil {
		L.Close()
		return nil, fmt.Errorf("failed to load script: %w", err)
	}
	if L.GetGlobal("generate").Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("script must define a 'generate' function")
	}
	return r, nil
}

// Complete calls generate(prompt). Calls are serialised; an LState is not
// safe for concurrent use.
func (r *Lua) Complete(ctx context.Context, prompt string) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	L := r.state
	L.SetContext(ctx)
	defer L.RemoveContext()

	if err := L.CallByParam(lua.P{
		Fn:      L.GetGlobal("generate"),
		NRet:    1,
		Protect: true,
	}, lua.LString(prompt)); err != nil {
		return nil, fmt.Errorf("lua generate: %w", err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return luaToGo(ret), nil
}

func (r *Lua) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.Close()
}

// Logs returns messages the script passed to log().
func (r *Lua) Logs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.logs...)
}

func (r *Lua) openSafeLibs(L *lua.LState) {
	lua.OpenBase(L)

	L.SetGlobal("loadfile", lua.LNil)
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("load", lua.LNil)
	L.SetGlobal("loadstring", lua.LNil)
	L.SetGlobal("print", lua.LNil) // use log()

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Replies must be reproducible for the same prompt.
	if tbl, ok := L.GetGlobal("math").(*lua.LTable); ok {
		L.SetField(tbl, "random", lua.LNil)
		L.SetField(tbl, "randomseed", lua.LNil)
	}
}

func (r *Lua) registerAPI(L *lua.LState) {
	L.SetGlobal("log", L.NewFunction(r.luaLog))
	L.SetGlobal("contains", L.NewFunction(luaContains))
}

// luaLog implements log(message). Called with r.mu held.
func (r *Lua) luaLog(L *lua.LState) int {
	message := L.CheckString(1)
	r.logs = append(r.logs, message)
	r.logger.Debug("lua generator log", "message", message)
	return 0
}

// luaContains implements contains(haystack, needle), case-insensitive.
func luaContains(L *lua.LState) int {
	haystack := L.CheckString(1)
	needle := L.CheckString(2)
	L.Push(lua.LBool(strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))))
	return 1
}

func luaToGo(v lua.LValue) any {
	switch val := v.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(val)
	case lua.LNumber:
		return float64(val)
	case lua.LString:
		return string(val)
	case *lua.LTable:
		out := make(map[string]any)
		val.ForEach(func(k, item lua.LValue) {
			out[k.String()] = luaToGo(item)
		})
		return out
	default:
		return val.String()
	}
}
