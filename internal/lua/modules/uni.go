package modules

import (
	"os"

	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/unictl/internal/manifest"
)

// UniModule collects resource declarations from a Lua manifest.
//
//	local uni = require("uni")
//	uni.symm_id("000197900123")
//	uni.host{ name = "host01", initiators = { "1000000C900ABCDE" }, state = "present" }
//	uni.storage_group{ name = "app_sg", srp = "SRP_1", emulation = "FBA", state = "present" }
//	local env = uni.env("APP_ENV", "dev")
type UniModule struct {
	manifest *manifest.Manifest
}

// NewUniModule creates a module that appends into m.
func NewUniModule(m *manifest.Manifest) *UniModule {
	return &UniModule{manifest: m}
}

// Loader is the module loader for Lua
func (m *UniModule) Loader(L *lua.LState) int {
	mod := L.NewTable()

	L.SetField(mod, "host", L.NewFunction(m.host))
	L.SetField(mod, "storage_group", L.NewFunction(m.storageGroup))
	L.SetField(mod, "symm_id", L.NewFunction(m.symmID))
	L.SetField(mod, "env", L.NewFunction(m.env))

	L.Push(mod)
	return 1
}

// host{name, initiators, state}
func (m *UniModule) host(L *lua.LState) int {
	tbl := L.CheckTable(1)
	m.manifest.Hosts = append(m.manifest.Hosts, manifest.HostParams{
		Name:       stringField(L, tbl, "name"),
		Initiators: stringList(L, tbl, "initiators"),
		State:      stringField(L, tbl, "state"),
	})
	return 0
}

// storage_group{name, srp, emulation, state}
func (m *UniModule) storageGroup(L *lua.LState) int {
	tbl := L.CheckTable(1)
	m.manifest.StorageGroups = append(m.manifest.StorageGroups, manifest.StorageGroupParams{
		Name:      stringField(L, tbl, "name"),
		SRP:       stringField(L, tbl, "srp"),
		Emulation: stringField(L, tbl, "emulation"),
		State:     stringField(L, tbl, "state"),
	})
	return 0
}

// symm_id(id) overrides the configured array for this manifest.
func (m *UniModule) symmID(L *lua.LState) int {
	m.manifest.SymmID = L.CheckString(1)
	return 0
}

// env(name, default?) -> string
func (m *UniModule) env(L *lua.LState) int {
	name := L.CheckString(1)
	def := L.OptString(2, "")
	if v, ok := os.LookupEnv(name); ok {
		L.Push(lua.LString(v))
		return 1
	}
	L.Push(lua.LString(def))
	return 1
}
