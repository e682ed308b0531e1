package config

import (
	"context"
	"encoding/json"
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/artifetch/internal/platform"
)

// luaGlobal is the global a Lua configuration assigns its entry list to.
const luaGlobal = "artifacts"

// luaToJSON runs a Lua configuration in a sandbox and re-encodes the
// resulting "artifacts" list as JSON.
func (l *Loader) luaToJSON(ctx context.Context, code string) ([]byte, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if l.detector != nil {
		info, err := l.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		platform.InjectPlatformTable(L, info)
	}

	if err := L.DoString(code); err != nil {
		return nil, &ParseError{Message: "Lua error", Detail: err.Error()}
	}

	list, ok := L.GetGlobal(luaGlobal).(*lua.LTable)
	if !ok {
		return nil, &ParseError{
			Message: fmt.Sprintf("missing or invalid '%s' table", luaGlobal),
			Detail:  fmt.Sprintf("expected table, got %s", L.GetGlobal(luaGlobal).Type()),
		}
	}

	// Nil holes (from platform.when) are dropped so entries stay in order.
	entries := make([]interface{}, 0, list.MaxN())
	for i := 1; i <= list.MaxN(); i++ {
		v := list.RawGetInt(i)
		if v == lua.LNil {
			continue
		}
		entries = append(entries, luaToGo(v))
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return nil, &ParseError{Message: "unsupported Lua value", Detail: err.Error()}
	}
	return data, nil
}

// luaToGo converts a Lua value into plain Go values that encoding/json
// understands. Tables with only positive integer keys become slices;
// everything else becomes a string-keyed map.
func luaToGo(v lua.LValue) interface{} {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		if n := val.MaxN(); n > 0 || isEmptyTable(val) {
			arr := make([]interface{}, 0, n)
			for i := 1; i <= n; i++ {
				if item := val.RawGetInt(i); item != lua.LNil {
					arr = append(arr, luaToGo(item))
				}
			}
			return arr
		}
		obj := make(map[string]interface{})
		val.ForEach(func(key, value lua.LValue) {
			obj[key.String()] = luaToGo(value)
		})
		return obj
	default:
		// functions, userdata and nil have no configuration meaning
		return nil
	}
}

func isEmptyTable(t *lua.LTable) bool {
	k, _ := t.Next(lua.LNil)
	return k == lua.LNil
}
