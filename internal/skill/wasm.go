package skill

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	extism "github.com/extism/go-sdk"
)

// wasmInstance adapts a single Extism plugin to the Instance interface:
// every function the manifest provides is dispatched by calling the
// WASM export of the same name with JSON-encoded args, decoding its
// JSON return value. This generalizes the teacher's WasmTool adapter
// (which targets a single eino tool.InvokableRun call) to a named
// dispatch table with no LLM tool-calling boundary involved.
type wasmInstance struct {
	manifest *Manifest
	plugin   *extism.Plugin
}

func buildWasmInstance(m *Manifest) (Instance, error) {
	if m.dir == "" {
		return nil, fmt.Errorf("skill %q: cannot build wasm instance without a discovered directory", m.Name)
	}
	wasmPath := filepath.Join(m.dir, "skill.wasm")

	manifest := extism.Manifest{
		Wasm: []extism.Wasm{extism.WasmFile{Path: wasmPath}},
	}
	config := extism.PluginConfig{EnableWasi: true}

	plugin, err := extism.NewPlugin(context.Background(), manifest, config, nil)
	if err != nil {
		return nil, fmt.Errorf("load wasm skill %q: %w", m.Name, err)
	}

	for _, fn := range m.Provides {
		if !plugin.FunctionExists(fn) {
			plugin.Close(context.Background())
			return nil, fmt.Errorf("wasm skill %q missing export %q declared in provides", m.Name, fn)
		}
	}

	return &wasmInstance{manifest: m, plugin: plugin}, nil
}

func (w *wasmInstance) Name() string        { return w.manifest.Name }
func (w *wasmInstance) Manifest() *Manifest { return w.manifest }

func (w *wasmInstance) Functions() map[string]Function {
	fns := make(map[string]Function, len(w.manifest.Provides))
	for _, name := range w.manifest.Provides {
		exportName := name
		fns[name] = func(ctx context.Context, env *Env, args map[string]any) (any, error) {
			payload, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("marshal args for %s.%s: %w", w.manifest.Name, exportName, err)
			}
			_, output, err := w.plugin.Call(exportName, payload)
			if err != nil {
				return nil, fmt.Errorf("wasm call %s.%s: %w", w.manifest.Name, exportName, err)
			}
			var result any
			if len(output) > 0 {
				if err := json.Unmarshal(output, &result); err != nil {
					return nil, fmt.Errorf("decode result of %s.%s: %w", w.manifest.Name, exportName, err)
				}
			}
			return result, nil
		}
	}
	return fns
}
