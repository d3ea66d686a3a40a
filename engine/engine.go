// Package engine binds this module's guest contract (spec.md §6) to a
// concrete WASM engine: github.com/tetratelabs/wazero. It compiles and
// instantiates plain core WASM modules — never the Component Model, which
// AssemblyScript's toolchain does not emit — and exposes the three
// capabilities spec.md §1 lists as the binding layer's only collaborators:
// typed memory views, export calls by name, and export enumeration plus
// global reads by name.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/wasmerr"
)

// Config configures Engine creation.
type Config struct {
	// MemoryLimitPages caps linear memory per instance (64KiB pages). 0
	// means wazero's default (65536 pages = 4GiB).
	MemoryLimitPages uint32
}

// Engine owns one wazero.Runtime and compiles/instantiates guest modules
// against it.
type Engine struct {
	runtime wazero.Runtime
	instSeq atomic.Uint64
}

// New creates an Engine with default configuration.
func New(ctx context.Context) (*Engine, error) {
	return NewWithConfig(ctx, Config{})
}

// NewWithConfig creates an Engine with explicit configuration.
func NewWithConfig(ctx context.Context, cfg Config) (*Engine, error) {
	rc := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rc = rc.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, rc)}, nil
}

// Close releases every resource owned by the engine, including all
// modules compiled against it. Instances must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// LoadModule compiles wasmBytes as a core WASM module.
func (e *Engine) LoadModule(ctx context.Context, wasmBytes []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		Logger().Sugar().Debugw("compile failed", "error", err)
		return nil, wasmerr.Wrap(wasmerr.PhaseEngine, wasmerr.KindInvalidData, err, "compile module")
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// Module is a compiled guest module, ready to be instantiated any number
// of times.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// ExportNames returns every exported function name, sorted, mirroring what
// wasmbind's JS/wasmer hosts get from stringifying instance.exports
// (spec.md §6).
func (m *Module) ExportNames() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Instantiate creates a fresh, independently addressable Instance. Each
// call gets a unique internal module name so the same Module can be
// instantiated repeatedly without name collisions in the runtime's
// namespace.
func (m *Module) Instantiate(ctx context.Context) (*Instance, error) {
	seq := m.engine.instSeq.Add(1)
	cfg := wazero.NewModuleConfig().WithName(fmt.Sprintf("ascbind-instance-%d", seq))

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, cfg)
	if err != nil {
		Logger().Sugar().Debugw("instantiate failed", "error", err)
		return nil, wasmerr.Instantiation(err)
	}

	return &Instance{module: mod, funcCache: make(map[string]api.Function)}, nil
}

// Instance is a running guest module. It is NOT safe for concurrent use by
// multiple goroutines (spec.md §5) — give each goroutine its own Instance,
// or synchronize externally.
type Instance struct {
	module    api.Module
	funcCache map[string]api.Function
}

// Memory adapts the instance's linear memory to ascbind.Memory. Fetch this
// again after any guest call that might grow memory rather than caching it
// (spec.md §5).
func (i *Instance) Memory() ascbind.Memory {
	mem := i.module.Memory()
	if mem == nil {
		return nil
	}
	return &wasmMemory{mem: mem}
}

// Function looks up an exported function by name, caching the lookup. The
// return type is the Caller interface, not the concrete Func struct, so
// that callers needing to substitute a closure-backed fake (module package
// tests, for instance) can depend on Caller instead of wazero's api.Module.
func (i *Instance) Function(name string) (Caller, bool) {
	if fn, ok := i.funcCache[name]; ok {
		return Func{fn: fn}, true
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, false
	}
	i.funcCache[name] = fn
	return Func{fn: fn}, true
}

// Global reads an exported global's raw bit pattern.
func (i *Instance) Global(name string) (value uint64, ok bool) {
	g := i.module.ExportedGlobal(name)
	if g == nil {
		return 0, false
	}
	return g.Get(), true
}

// Close tears down the instance.
func (i *Instance) Close(ctx context.Context) error {
	return i.module.Close(ctx)
}

// Caller is the narrow surface module.Module needs to invoke an export:
// just the argument/result word exchange, nothing wazero-specific. Func
// satisfies it; tests substitute a plain closure.
type Caller interface {
	Call(ctx context.Context, args ...uint64) ([]uint64, error)
}

// Func is a callable exported guest function.
type Func struct {
	fn api.Function
}

// Call invokes the function. Arguments and results are raw WASM value bit
// patterns (i32/i64 results are zero- or sign-extended into uint64 by
// wazero per the function's declared signature).
func (f Func) Call(ctx context.Context, args ...uint64) ([]uint64, error) {
	return f.fn.Call(ctx, args...)
}
