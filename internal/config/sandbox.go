package config

import (
	lua "github.com/yuin/gopher-lua"
)

// blockedGlobals are removed before a configuration script runs. An entry
// list is plain data built from tables, strings and the platform table, so
// a script has no business touching files, loading code or inspecting the
// VM.
var blockedGlobals = []string{
	"os", "io", "debug",
	"require", "module", "dofile", "loadfile", "load", "loadstring",
}

// sandboxLuaVM strips blockedGlobals from L.
func sandboxLuaVM(L *lua.LState) {
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
}

// newSandboxedVM returns a fresh state ready to evaluate an artifacts script.
func newSandboxedVM() *lua.LState {
	L := lua.NewState()
	sandboxLuaVM(L)
	return L
}
