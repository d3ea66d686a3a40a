// Package module assembles the host-facing façade over one guest
// instance: the engine, heap, RTTI, view, array, opaque, and bind
// packages all meet here (spec.md §4.8).
package module

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/array"
	"github.com/wasmkit/ascbind/bind"
	"github.com/wasmkit/ascbind/engine"
	"github.com/wasmkit/ascbind/guest"
	"github.com/wasmkit/ascbind/heap"
	"github.com/wasmkit/ascbind/opaque"
	"github.com/wasmkit/ascbind/rtti"
	"github.com/wasmkit/ascbind/wasmerr"
)

// GuestInstance is the subset of *engine.Instance's surface a Module needs:
// export lookup, global reads, and memory access. *engine.Instance
// satisfies it; tests substitute a closure-backed fake so the
// wrapper-synthesis path can be exercised without a real wazero module.
type GuestInstance interface {
	Function(name string) (engine.Caller, bool)
	Global(name string) (value uint64, ok bool)
	Memory() ascbind.Memory
}

// closer is implemented by *engine.Instance; Module.Close uses it
// optionally so a GuestInstance test fake need not provide one.
type closer interface {
	Close(ctx context.Context) error
}

// Options configures Module construction (SPEC_FULL.md's AMBIENT STACK
// configuration surface). The zero value selects rtti.SchemaCurrent, the
// process-wide engine.Logger(), an auto-detected __new/__alloc allocator
// export, and the default __retain/__release export names.
type Options struct {
	// Schema selects the RTTI flag-bit layout to decode with. The zero
	// value (FlagSchema{}) is treated as rtti.SchemaCurrent.
	Schema rtti.FlagSchema
	// Logger, if non-nil, is installed as the process-wide engine logger
	// via engine.SetLogger before this Module does any engine-level work.
	Logger *zap.Logger
	// AllocExport overrides the guest allocator export name instead of the
	// default __new/__alloc auto-detection.
	AllocExport string
	// RetainExport and ReleaseExport override the default __retain/
	// __release export names.
	RetainExport  string
	ReleaseExport string
}

// Module is the single object spec.md §4.8 describes: instance access,
// allocator shortcuts, resolution, array operations, the opaque registry,
// and synthesized class/function lookups, with global values as a
// fallback for any other name.
type Module struct {
	inst  GuestInstance
	codec *heap.Codec
	rttiR *rtti.Resolver

	arrays *array.Binding
	opq    *opaque.Registry
	bp     *bind.Blueprint

	allocExport   string
	retainExport  string
	releaseExport string
	classes       map[string]*Class
	functions     map[string]*Function
}

// New builds a Module façade over a running instance. exportNames is the
// compiled module's export list (engine.Module.ExportNames), needed here
// because GuestInstance does not itself enumerate exports. opts.Schema
// selects which RTTI flag-bit layout to decode with; see rtti.SchemaCurrent
// / rtti.SchemaStaticArray and SPEC_FULL.md §4.11.
func New(ctx context.Context, inst GuestInstance, exportNames []string, opts Options) (*Module, error) {
	if opts.Logger != nil {
		engine.SetLogger(opts.Logger)
	}
	if opts.Schema == (rtti.FlagSchema{}) {
		opts.Schema = rtti.SchemaCurrent
	}
	retainExport := opts.RetainExport
	if retainExport == "" {
		retainExport = "__retain"
	}
	releaseExport := opts.ReleaseExport
	if releaseExport == "" {
		releaseExport = "__release"
	}

	mem := inst.Memory()
	if mem == nil {
		return nil, wasmerr.InvalidData(wasmerr.PhaseEngine, "instance exposes no linear memory")
	}

	allocExport, err := resolveAllocExport(inst, opts.AllocExport)
	if err != nil {
		return nil, err
	}

	m := &Module{
		inst:          inst,
		codec:         heap.New(mem),
		rttiR:         rtti.New(mem, opts.Schema),
		opq:           opaque.NewRegistry(),
		bp:            bind.Partition(exportNames),
		allocExport:   allocExport,
		retainExport:  retainExport,
		releaseExport: releaseExport,
	}

	base, hasBase := inst.Global("__rtti_base")
	if err := m.rttiR.Init(uint32(base), hasBase); err != nil {
		engine.Logger().Sugar().Debugw("rtti table unavailable", "error", err)
	}

	m.arrays = array.New(mem, m.rttiR, m.allocFn, m.Retain, m.Release, m)

	m.classes = make(map[string]*Class, len(m.bp.Classes))
	for name, cb := range m.bp.Classes {
		m.classes[name] = &Class{m: m, bp: cb}
	}
	m.functions = make(map[string]*Function, len(m.bp.Functions))
	for _, name := range m.bp.Functions {
		m.functions[name] = &Function{m: m, name: name}
	}

	return m, nil
}

// Close tears down the underlying instance if it supports Close
// (*engine.Instance does); a test fake that implements no such method is
// left to the caller to dispose of however it likes.
func (m *Module) Close(ctx context.Context) error {
	if c, ok := m.inst.(closer); ok {
		return c.Close(ctx)
	}
	return nil
}

// resolveAllocExport tries override, then __new, then __alloc — the older
// equivalent — and caches whichever is found (spec.md §6, SPEC_FULL §6).
func resolveAllocExport(inst GuestInstance, override string) (string, error) {
	if override != "" {
		if _, ok := inst.Function(override); ok {
			return override, nil
		}
		return "", wasmerr.NotFound(wasmerr.PhaseEngine, "export", override)
	}
	if _, ok := inst.Function("__new"); ok {
		return "__new", nil
	}
	if _, ok := inst.Function("__alloc"); ok {
		return "__alloc", nil
	}
	return "", wasmerr.NotFound(wasmerr.PhaseEngine, "export", "__new/__alloc")
}

// allocFn adapts the guest allocator export to heap.AllocFunc. It uses
// context.Background() rather than a caller context: spec.md §5 states
// plainly that there is "no timeout, retry, or cancellation protocol" for
// guest operations, so a single scalar-returning allocation call has
// nothing to cancel.
func (m *Module) allocFn(byteLen, typeID uint32) (uint32, error) {
	fn, ok := m.inst.Function(m.allocExport)
	if !ok {
		return 0, wasmerr.NotFound(wasmerr.PhaseEngine, "export", m.allocExport)
	}
	results, err := fn.Call(context.Background(), uint64(byteLen), uint64(typeID))
	if err != nil {
		return 0, wasmerr.Wrap(wasmerr.PhaseEngine, wasmerr.KindInvalidData, err, "guest allocator call failed")
	}
	if len(results) == 0 {
		return 0, wasmerr.InvalidData(wasmerr.PhaseEngine, "guest allocator returned no value")
	}
	return uint32(results[0]), nil
}

// Alloc is the façade shortcut onto the guest allocator export.
func (m *Module) Alloc(ctx context.Context, byteLen, typeID uint32) (uint32, error) {
	return m.allocFn(byteLen, typeID)
}

// Retain calls the guest's retain export. It satisfies guest.Owner.
func (m *Module) Retain(ctx context.Context, ptr uint32) error {
	fn, ok := m.inst.Function(m.retainExport)
	if !ok {
		return wasmerr.NotFound(wasmerr.PhaseEngine, "export", m.retainExport)
	}
	if _, err := fn.Call(ctx, uint64(ptr)); err != nil {
		return wasmerr.Wrap(wasmerr.PhaseEngine, wasmerr.KindInvalidData, err, "retain call failed")
	}
	return nil
}

// Release calls the guest's release export. It satisfies guest.Owner.
func (m *Module) Release(ctx context.Context, ptr uint32) error {
	fn, ok := m.inst.Function(m.releaseExport)
	if !ok {
		return wasmerr.NotFound(wasmerr.PhaseEngine, "export", m.releaseExport)
	}
	if _, err := fn.Call(ctx, uint64(ptr)); err != nil {
		return wasmerr.Wrap(wasmerr.PhaseEngine, wasmerr.KindInvalidData, err, "release call failed")
	}
	return nil
}

// GetPointer returns a handle's stable guest pointer.
func (m *Module) GetPointer(h *guest.Handle) uint32 {
	return h.Pointer()
}

// GetTypeOf classifies ptr against the RTTI table.
func (m *Module) GetTypeOf(ptr uint32) (rtti.RTTIType, error) {
	return m.rttiR.TypeOf(ptr)
}

// GetRefcountOf reads the live refcount from ptr's header.
func (m *Module) GetRefcountOf(ptr uint32) (uint32, error) {
	refcount, _, _, err := m.codec.Header(ptr)
	return refcount, err
}

// LoadType loads one RTTI entry directly by id.
func (m *Module) LoadType(id uint32) (rtti.RTTIType, error) {
	return m.rttiR.LoadType(id)
}

// ResolveArray builds an Array view over ptr.
func (m *Module) ResolveArray(ctx context.Context, ptr uint32) (*array.Array, error) {
	return m.arrays.Resolve(ptr)
}

// AllocArray allocates a new guest array of typeID populated with values.
func (m *Module) AllocArray(ctx context.Context, typeID uint32, values []any) (*array.Array, error) {
	return m.arrays.Alloc(ctx, typeID, values)
}

// RegisterOpaqueValue stores v strongly in the opaque registry and returns
// its token.
func (m *Module) RegisterOpaqueValue(v any) uint32 {
	return m.opq.Register(v)
}

// RegisterOpaqueValueWeak stores v weakly in the opaque registry. A free
// function rather than a method because Go methods cannot be generic.
func RegisterOpaqueValueWeak[T any](m *Module, v *T) uint32 {
	return opaque.RegisterWeak(m.opq, v)
}

// AllocGuestString allocates s as a fresh guest string. Implements
// bind.StringAllocator.
func (m *Module) AllocGuestString(s string) (uint32, error) {
	return m.codec.AllocString(m.allocFn, s)
}

// Class looks up a synthesized wrapper class by name. A class with no
// constructor export still appears here (HasConstructor is false); New
// fails with MissingConstructor for it, which is this binding's rendering
// of spec.md §4.7 point 6's "unconstructable" sentinel.
func (m *Module) Class(name string) (*Class, bool) {
	c, ok := m.classes[name]
	return c, ok
}

// Function looks up a synthesized top-level function by name.
func (m *Module) Function(name string) (*Function, bool) {
	f, ok := m.functions[name]
	return f, ok
}

// Global is the fallback attribute access spec.md §4.8 requires: any name
// that is neither a class nor a function resolves as a module global.
func (m *Module) Global(name string) (uint64, bool) {
	return m.inst.Global(name)
}

// ResolveElement implements array.ElementResolver: classHint is either nil
// (auto-detect) or a class name string.
func (m *Module) ResolveElement(ctx context.Context, ptr uint32, classHint any) (any, error) {
	if name, ok := classHint.(string); ok {
		return m.Resolve(ctx, ptr, bind.Class(name))
	}
	return m.Resolve(ctx, ptr, bind.Target{})
}

// Resolve implements the resolve(P, target) contract of spec.md §4.8.
// target is typically a bind.Target; any other value (including nil) is
// treated as bind.TargetAuto. Note the contract's "if P is already a
// handle, return it unchanged" clause does not need code here: a caller
// holding a *guest.Handle already has its pointer and should call
// handle.As instead of re-resolving a raw pointer.
func (m *Module) Resolve(ctx context.Context, ptr uint32, target any) (any, error) {
	t, _ := target.(bind.Target)

	if t.IsOpaque() {
		return m.opq.Resolve(ptr)
	}

	if t.IsAuto() {
		rt, err := m.rttiR.TypeOf(ptr)
		switch {
		case err == nil && rt.IsArrayLike():
			t = bind.List(bind.Target{})
		default:
			typeID, terr := m.codec.TypeID(ptr)
			if terr == nil && typeID == heap.StringID {
				t = bind.String()
			} else {
				return nil, wasmerr.UnsupportedTarget("no target hint and pointer is neither array nor string")
			}
		}
	}

	switch t.Kind() {
	case bind.TargetList:
		return m.arrays.Resolve(ptr)
	case bind.TargetClass:
		cls, ok := m.classes[t.ClassName()]
		if !ok {
			return nil, wasmerr.NotFound(wasmerr.PhaseBind, "class", t.ClassName())
		}
		return cls.wrap(ctx, ptr)
	case bind.TargetString:
		return m.codec.LoadString(ptr)
	case bind.TargetBytes:
		return m.codec.LoadBytes(ptr)
	case bind.TargetScalar:
		return ptr, nil
	default:
		return nil, wasmerr.UnsupportedTarget(fmt.Sprintf("unrecognized target kind %v", t.Kind()))
	}
}
