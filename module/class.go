package module

import (
	"context"

	"github.com/wasmkit/ascbind/bind"
	"github.com/wasmkit/ascbind/guest"
	"github.com/wasmkit/ascbind/wasmerr"
)

// Class is a synthesized host wrapper over one guest class's exports
// (spec.md §4.7).
type Class struct {
	m  *Module
	bp *bind.ClassBlueprint
}

// HasConstructor reports whether this class exposes a constructor export.
func (c *Class) HasConstructor() bool {
	return c.bp.HasConstructor
}

// New calls the class's constructor with a `this` of 0 (spec.md §4.7
// point 4: "0 indicates no preallocated this"). The returned pointer
// already carries refcount 1 from the guest runtime's constructor
// auto-retain rule, so the handle adopts it rather than retaining again.
func (c *Class) New(ctx context.Context, args ...any) (*guest.Handle, error) {
	if !c.bp.HasConstructor {
		return nil, wasmerr.MissingConstructor(c.bp.Name)
	}
	fn, ok := c.m.inst.Function(c.bp.Constructor)
	if !ok {
		return nil, wasmerr.NotFound(wasmerr.PhaseBind, "export", c.bp.Constructor)
	}

	wargs := make([]uint64, 0, len(args)+1)
	wargs = append(wargs, 0)
	for _, a := range args {
		v, err := bind.MarshalArg(c.m, a)
		if err != nil {
			return nil, err
		}
		wargs = append(wargs, v)
	}

	results, err := fn.Call(ctx, wargs...)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseBind, wasmerr.KindInvalidData, err, "constructor call failed")
	}
	if len(results) == 0 {
		return nil, wasmerr.InvalidData(wasmerr.PhaseBind, "constructor returned no pointer")
	}

	return guest.Adopt(uint32(results[0]), guest.KindClass, c.m), nil
}

// wrap produces a fresh handle over an already-live pointer, retaining it
// — used when resolve(P, target=Class) hands back an existing instance
// rather than one this call just constructed.
func (c *Class) wrap(ctx context.Context, ptr uint32) (*guest.Handle, error) {
	return guest.Create(ctx, ptr, guest.KindClass, c.m)
}

// Call invokes method on h, unwrapping self to its pointer per spec.md
// §4.7 point 4's "one callable per method".
func (c *Class) Call(ctx context.Context, h *guest.Handle, method string, args []any, target any) (any, error) {
	exportName, ok := c.bp.Methods[method]
	if !ok {
		return nil, wasmerr.NotFound(wasmerr.PhaseBind, "method", method)
	}
	fn, ok := c.m.inst.Function(exportName)
	if !ok {
		return nil, wasmerr.NotFound(wasmerr.PhaseBind, "export", exportName)
	}

	wargs := make([]uint64, 0, len(args)+1)
	wargs = append(wargs, uint64(h.Pointer()))
	for _, a := range args {
		v, err := bind.MarshalArg(c.m, a)
		if err != nil {
			return nil, err
		}
		wargs = append(wargs, v)
	}

	results, err := fn.Call(ctx, wargs...)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseBind, wasmerr.KindInvalidData, err, "method call failed")
	}
	if len(results) == 0 {
		return nil, nil
	}
	if target == nil {
		return results[0], nil
	}
	return c.m.Resolve(ctx, uint32(results[0]), target)
}

// Get reads a property via its synthesized getter.
func (c *Class) Get(ctx context.Context, h *guest.Handle, prop string) (uint64, error) {
	exportName, ok := c.bp.Getters[prop]
	if !ok {
		return 0, wasmerr.NotFound(wasmerr.PhaseBind, "getter", prop)
	}
	fn, ok := c.m.inst.Function(exportName)
	if !ok {
		return 0, wasmerr.NotFound(wasmerr.PhaseBind, "export", exportName)
	}
	results, err := fn.Call(ctx, uint64(h.Pointer()))
	if err != nil {
		return 0, wasmerr.Wrap(wasmerr.PhaseBind, wasmerr.KindInvalidData, err, "getter call failed")
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0], nil
}

// Set writes a property via its synthesized setter.
func (c *Class) Set(ctx context.Context, h *guest.Handle, prop string, value any) error {
	exportName, ok := c.bp.Setters[prop]
	if !ok {
		return wasmerr.NotFound(wasmerr.PhaseBind, "setter", prop)
	}
	fn, ok := c.m.inst.Function(exportName)
	if !ok {
		return wasmerr.NotFound(wasmerr.PhaseBind, "export", exportName)
	}
	v, err := bind.MarshalArg(c.m, value)
	if err != nil {
		return err
	}
	if _, err := fn.Call(ctx, uint64(h.Pointer()), v); err != nil {
		return wasmerr.Wrap(wasmerr.PhaseBind, wasmerr.KindInvalidData, err, "setter call failed")
	}
	return nil
}
