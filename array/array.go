// Package array allocates, resolves, indexes, and mutates guest arrays —
// both typed views over scalar element storage and general arrays of
// managed (pointer) elements (spec.md §4.5).
package array

import (
	"context"
	"fmt"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/guest"
	"github.com/wasmkit/ascbind/heap"
	"github.com/wasmkit/ascbind/rtti"
	"github.com/wasmkit/ascbind/view"
	"github.com/wasmkit/ascbind/wasmerr"
)

const (
	datastartOffset = 4
	lengthOffset    = 12 // ARRAY_LENGTH_OFFSET
)

// RetainFunc and ReleaseFunc call the guest __retain/__release exports.
type RetainFunc func(ctx context.Context, ptr uint32) error
type ReleaseFunc func(ctx context.Context, ptr uint32) error

// ElementResolver resolves a managed element's guest pointer into a host
// value, honoring an optional target-class hint, per spec.md §4.5.2. The
// module façade implements this (it alone knows how to build wrapper class
// instances); array does not import bind/module to avoid a cycle.
type ElementResolver interface {
	ResolveElement(ctx context.Context, ptr uint32, classHint any) (any, error)
}

// Binding is the shared context every Array is resolved or allocated
// through: the memory it reads/writes, the RTTI table that classifies
// pointers, and the guest allocator/retain/release exports.
type Binding struct {
	mem     ascbind.Memory
	codec   *heap.Codec
	rttiR   *rtti.Resolver
	newFn   heap.AllocFunc
	retain  RetainFunc
	release ReleaseFunc
	elems   ElementResolver
}

// New returns a Binding.
func New(mem ascbind.Memory, rttiR *rtti.Resolver, newFn heap.AllocFunc, retain RetainFunc, release ReleaseFunc, elems ElementResolver) *Binding {
	return &Binding{
		mem:     mem,
		codec:   heap.New(mem),
		rttiR:   rttiR,
		newFn:   newFn,
		retain:  retain,
		release: release,
		elems:   elems,
	}
}

// Array is a resolved typed or general guest array.
type Array struct {
	binding *Binding
	view    view.View
	ptr     uint32
	length  int
	managed bool
}

// Pointer returns the array object's own guest pointer.
func (a *Array) Pointer() uint32 {
	return a.ptr
}

// Len returns the array's logical element count.
func (a *Array) Len() int {
	return a.length
}

// Managed reports whether elements are pointers to guest objects (VAL_MANAGED).
func (a *Array) Managed() bool {
	return a.managed
}

// Resolve classifies ptr and builds an Array over it, per spec.md §4.5.1.
func (b *Binding) Resolve(ptr uint32) (*Array, error) {
	t, err := b.rttiR.TypeOf(ptr)
	if err != nil {
		return nil, err
	}
	if !t.IsArrayLike() {
		return nil, wasmerr.InvalidData(wasmerr.PhaseArray, "pointer is not an array type").WithPointer(ptr).WithType(t.ID)
	}

	bufPtr, err := b.mem.ReadU32(ptr + datastartOffset)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "read buffer pointer")
	}

	align := t.ValAlign()
	if align < 0 {
		return nil, wasmerr.UnsupportedLayout(fmt.Sprintf("alignment %d", align))
	}

	var length uint32
	if t.Has(rtti.FlagArray) {
		length, err = b.mem.ReadU32(ptr + lengthOffset)
		if err != nil {
			return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "read logical length")
		}
	} else {
		bufSize, err := b.mem.ReadU32(bufPtr - 4) // buffer's own size field, at bufPtr-4
		if err != nil {
			return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "read buffer size")
		}
		length = bufSize >> uint(align)
	}

	elemView, err := view.New(b.mem, bufPtr, t.Has(rtti.FlagValFloat), align, t.Has(rtti.FlagValSigned))
	if err != nil {
		return nil, err
	}

	return &Array{
		binding: b,
		view:    elemView,
		ptr:     ptr,
		length:  int(length),
		managed: t.Has(rtti.FlagValManaged),
	}, nil
}

// Get reads element i. For a managed array the raw pointer is resolved
// through ElementResolver (optionally coerced via classHint); otherwise
// the raw scalar is returned as int64 (spec.md §4.5.2).
func (a *Array) Get(ctx context.Context, i int, classHint any) (any, error) {
	if i < 0 || i >= a.length {
		return nil, wasmerr.OutOfBounds(i, a.length)
	}
	raw, err := a.view.Get(i)
	if err != nil {
		return nil, err
	}
	if !a.managed {
		return raw, nil
	}

	ptr := uint32(raw)
	if ptr == 0 {
		return nil, nil
	}
	return a.binding.elems.ResolveElement(ctx, ptr, classHint)
}

// Slice returns values in [i, j) with the given step, clamping j to the
// array length (spec.md §4.5.2 "arr[i:j]").
func (a *Array) Slice(ctx context.Context, i, j, step int, classHint any) ([]any, error) {
	if step == 0 {
		step = 1
	}
	if j > a.length {
		j = a.length
	}
	if i < 0 {
		i = 0
	}
	if i > j {
		i = j
	}

	out := make([]any, 0, (j-i+step-1)/step)
	for k := i; k < j; k += step {
		v, err := a.Get(ctx, k, classHint)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Set writes element i. Scalars are written directly. Managed slots retain
// the new pointer, write it, then release the previous occupant — the
// conservative fix spec.md §9 calls for ("A conservative rewrite should
// retain-then-release around the slot write and document the change"),
// replacing the source's unretained assignment.
func (a *Array) Set(ctx context.Context, i int, v any) error {
	if i < 0 || i >= a.length {
		return wasmerr.OutOfBounds(i, a.length)
	}

	if !a.managed {
		scalar, err := toInt64(v)
		if err != nil {
			return err
		}
		return a.view.Set(i, scalar)
	}

	oldRaw, err := a.view.Get(i)
	if err != nil {
		return err
	}
	oldPtr := uint32(oldRaw)

	newPtr, err := a.binding.pointerOf(ctx, v)
	if err != nil {
		return err
	}
	if newPtr != 0 {
		if err := a.binding.retain(ctx, newPtr); err != nil {
			return err
		}
	}
	if err := a.view.Set(i, int64(newPtr)); err != nil {
		return err
	}
	if oldPtr != 0 {
		_ = a.binding.release(ctx, oldPtr)
	}
	return nil
}

// SetSlice assigns values to [i, i+len(values)), per spec.md S6's
// `arr[1:3] = [8, 5]`.
func (a *Array) SetSlice(ctx context.Context, i int, values []any) error {
	for k, v := range values {
		if err := a.Set(ctx, i+k, v); err != nil {
			return err
		}
	}
	return nil
}

// Alloc allocates a new array of typeID with the given initial elements,
// per spec.md §4.5.3.
func (b *Binding) Alloc(ctx context.Context, typeID uint32, values []any) (*Array, error) {
	t, err := b.rttiR.LoadType(typeID)
	if err != nil {
		return nil, err
	}
	if !t.IsArrayLike() {
		return nil, wasmerr.InvalidArrayType(typeID)
	}

	align := t.ValAlign()
	if t.Has(rtti.FlagValFloat) {
		return nil, wasmerr.UnsupportedLayout("float")
	}
	if align < 0 || align == 3 {
		return nil, wasmerr.UnsupportedLayout(fmt.Sprintf("alignment %d", align))
	}

	length := len(values)
	byteLen := uint32(length) << uint(align)

	bufPtr, err := b.codec.AllocTypedBytes(b.newFn, make([]byte, byteLen), heap.ArrayBufferID)
	if err != nil {
		return nil, err
	}

	arrSize := uint32(12)
	if t.Has(rtti.FlagArray) {
		arrSize = 16
	}
	arrPtr, err := b.newFn(arrSize, typeID)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "allocate array header")
	}

	if err := b.retain(ctx, bufPtr); err != nil {
		return nil, err
	}
	if err := b.mem.WriteU32(arrPtr+0, bufPtr); err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "write buffer pointer field")
	}
	if err := b.mem.WriteU32(arrPtr+datastartOffset, bufPtr); err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "write data start field")
	}
	if err := b.mem.WriteU32(arrPtr+8, byteLen); err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "write data length field")
	}
	if t.Has(rtti.FlagArray) {
		if err := b.mem.WriteU32(arrPtr+lengthOffset, uint32(length)); err != nil {
			return nil, wasmerr.Wrap(wasmerr.PhaseArray, wasmerr.KindInvalidData, err, "write logical length field")
		}
	}

	elemView, err := view.New(b.mem, bufPtr, false, align, t.Has(rtti.FlagValSigned))
	if err != nil {
		return nil, err
	}

	managed := t.Has(rtti.FlagValManaged)
	for i, v := range values {
		if managed {
			ptr, err := b.pointerOf(ctx, v)
			if err != nil {
				return nil, err
			}
			if ptr != 0 {
				if err := b.retain(ctx, ptr); err != nil {
					return nil, err
				}
			}
			if err := elemView.Set(i, int64(ptr)); err != nil {
				return nil, err
			}
		} else {
			scalar, err := toInt64(v)
			if err != nil {
				return nil, err
			}
			if err := elemView.Set(i, scalar); err != nil {
				return nil, err
			}
		}
	}

	return &Array{binding: b, view: elemView, ptr: arrPtr, length: length, managed: managed}, nil
}

// pointerOf determines the guest pointer to store for a managed-array
// element: strings are allocated fresh, guest handles contribute their
// stored pointer, a uint32 is taken as a raw guest pointer as is, and
// anything else is a WrongElementType error (spec.md §4.5.3 step 6).
func (b *Binding) pointerOf(ctx context.Context, v any) (uint32, error) {
	switch val := v.(type) {
	case *guest.Handle:
		return val.Pointer(), nil
	case string:
		return b.codec.AllocString(b.newFn, val)
	case uint32:
		return val, nil
	default:
		return 0, wasmerr.WrongElementType(fmt.Sprintf("%T", v))
	}
}

func toInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int64:
		return val, nil
	case int32:
		return int64(val), nil
	case int16:
		return int64(val), nil
	case int8:
		return int64(val), nil
	case int:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case uint32:
		return int64(val), nil
	case uint16:
		return int64(val), nil
	case uint8:
		return int64(val), nil
	case uint:
		return int64(val), nil
	default:
		return 0, wasmerr.InvalidData(wasmerr.PhaseArray, fmt.Sprintf("cannot store Go value of type %T as a scalar array element", v))
	}
}
