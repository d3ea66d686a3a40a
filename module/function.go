package module

import (
	"context"

	"github.com/wasmkit/ascbind/bind"
	"github.com/wasmkit/ascbind/wasmerr"
)

// Function is a synthesized top-level callable (spec.md §4.7 point 5).
type Function struct {
	m    *Module
	name string
}

// Call marshals args per spec.md §4.7's argument rules, invokes the
// export, and marshals the single result. target is a bind.Target; nil
// means "return the raw scalar" per §4.7's return-marshalling rule, and
// any other non-Target value is resolved as bind.TargetAuto.
func (f *Function) Call(ctx context.Context, args []any, target any) (any, error) {
	fn, ok := f.m.inst.Function(f.name)
	if !ok {
		return nil, wasmerr.NotFound(wasmerr.PhaseBind, "export", f.name)
	}

	wargs := make([]uint64, len(args))
	for i, a := range args {
		v, err := bind.MarshalArg(f.m, a)
		if err != nil {
			return nil, err
		}
		wargs[i] = v
	}

	results, err := fn.Call(ctx, wargs...)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseBind, wasmerr.KindInvalidData, err, "guest call failed")
	}
	if len(results) == 0 {
		return nil, nil
	}
	if target == nil {
		return results[0], nil
	}
	return f.m.Resolve(ctx, uint32(results[0]), target)
}
