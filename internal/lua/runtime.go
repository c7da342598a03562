// Package lua evaluates manifests written in Lua.
package lua

import (
	"fmt"

	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"

	"github.com/dokzlo13/unictl/internal/lua/modules"
	"github.com/dokzlo13/unictl/internal/manifest"
)

// Runtime wraps a Lua VM with the manifest modules preloaded.
// A Runtime evaluates one script and is not safe for concurrent use.
type Runtime struct {
	L        *lua.LState
	manifest *manifest.Manifest
	script   string
}

// NewRuntime creates a runtime for the given script path.
func NewRuntime(script string) *Runtime {
	r := &Runtime{
		L:        lua.NewState(),
		manifest: &manifest.Manifest{},
		script:   script,
	}
	r.registerModules()
	return r
}

// Close releases the Lua state.
func (r *Runtime) Close() {
	r.L.Close()
}

func (r *Runtime) registerModules() {
	r.L.PreloadModule("log", modules.NewLogModule(r.script).Loader)
	r.L.PreloadModule("uni", modules.NewUniModule(r.manifest).Loader)
}

// Eval executes the script and returns the validated manifest it declared.
func (r *Runtime) Eval() (m *manifest.Manifest, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("lua manifest %s panicked: %v", r.script, rec)
		}
	}()

	log.Debug().Str("path", r.script).Msg("Evaluating Lua manifest")

	if err := r.L.DoFile(r.script); err != nil {
		return nil, fmt.Errorf("failed to execute Lua manifest: %w", err)
	}
	if err := r.manifest.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", r.script, err)
	}

	log.Debug().Int("resources", r.manifest.Len()).Msg("Lua manifest evaluated")
	return r.manifest, nil
}

// LoadManifest evaluates a Lua manifest file in a fresh runtime.
func LoadManifest(path string) (*manifest.Manifest, error) {
	r := NewRuntime(path)
	defer r.Close()
	return r.Eval()
}
