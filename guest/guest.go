// Package guest implements the host-side owning handle over one retained
// guest heap pointer (spec.md §4.4).
package guest

import "context"

// Kind distinguishes the three shapes a Handle can wrap.
type Kind int

const (
	// KindObject is a generic managed guest object with no further
	// structure known to the binding layer.
	KindObject Kind = iota
	// KindClass is an instance of a synthesized host wrapper class.
	KindClass
	// KindArray is a typed or general guest array.
	KindArray
)

// Owner is the subset of the module façade a Handle needs: the ability to
// retain/release a pointer and to resolve it against a target type. The
// module façade implements this; guest does not import module to avoid a
// dependency cycle.
type Owner interface {
	Retain(ctx context.Context, ptr uint32) error
	Release(ctx context.Context, ptr uint32) error
	Resolve(ctx context.Context, ptr uint32, target any) (any, error)
}

// Handle is an opaque, owning reference to one guest heap pointer. The
// zero value is not useful; Handles are only produced by Create or Adopt
// (module's Class.New and Resolve call these on the caller's behalf) —
// never construct one directly (spec.md §4.4).
type Handle struct {
	ptr      uint32
	kind     Kind
	owner    Owner
	released bool
}

// Create retains ptr and returns a Handle owning that retain. The caller
// must eventually call Release exactly once.
func Create(ctx context.Context, ptr uint32, kind Kind, owner Owner) (*Handle, error) {
	if err := owner.Retain(ctx, ptr); err != nil {
		return nil, err
	}
	return &Handle{ptr: ptr, kind: kind, owner: owner}, nil
}

// Adopt wraps ptr without retaining it, for a caller that has already
// established the handle's one retain by some other means — the guest
// runtime's "constructors auto-retain" rule (spec.md §4.7 point 4): a
// freshly constructed object already carries refcount 1, so wrapping it
// via Create would retain a second time.
func Adopt(ptr uint32, kind Kind, owner Owner) *Handle {
	return &Handle{ptr: ptr, kind: kind, owner: owner}
}

// Pointer returns the guest pointer this handle owns. It is stable for the
// handle's entire lifetime (spec.md §8 property 5).
func (h *Handle) Pointer() uint32 {
	return h.ptr
}

// Kind reports which shape this handle was created as.
func (h *Handle) Kind() Kind {
	return h.kind
}

// As resolves this handle's pointer against target via the owning module,
// per spec.md §4.4 ("delegates to module.resolve(P, target_type)").
func (h *Handle) As(ctx context.Context, target any) (any, error) {
	return h.owner.Resolve(ctx, h.ptr, target)
}

// Release drops this handle's retain. Safe to call more than once; only
// the first call reaches the guest.
func (h *Handle) Release(ctx context.Context) error {
	if h.released {
		return nil
	}
	h.released = true
	return h.owner.Release(ctx, h.ptr)
}

// Equal reports whether two handles wrap the same guest pointer (spec.md
// §4.4 "Equality").
func (h *Handle) Equal(other *Handle) bool {
	if h == nil || other == nil {
		return h == other
	}
	return h.ptr == other.ptr
}
