package wasmerr

import (
	"fmt"
	"strings"
)

// Phase indicates which layer of the binding raised the error.
type Phase string

const (
	PhaseMemory Phase = "memory" // heap header/string/bytes decoding
	PhaseRTTI   Phase = "rtti"   // RTTI table parsing and classification
	PhaseArray  Phase = "array"  // array resolution, indexing, allocation
	PhaseBind   Phase = "bind"   // wrapper class / function synthesis
	PhaseOpaque Phase = "opaque" // opaque token registry
	PhaseEngine Phase = "engine" // wazero compile/instantiate/call
)

// Kind categorizes the error within its phase. The first eight correspond
// 1:1 to the error taxonomy in spec.md §7; KindInvalidData,
// KindInstantiation and KindNotFound are additional kinds of this module.
type Kind string

const (
	KindRTTIUnavailable    Kind = "rtti_unavailable"
	KindUnsupportedLayout  Kind = "unsupported_layout"
	KindInvalidArrayType   Kind = "invalid_array_type"
	KindWrongElementType   Kind = "wrong_element_type"
	KindOutOfBounds        Kind = "out_of_bounds"
	KindOpaqueExpired      Kind = "opaque_expired"
	KindUnsupportedTarget  Kind = "unsupported_target"
	KindMissingConstructor Kind = "missing_constructor"
	KindInvalidData        Kind = "invalid_data"
	KindInstantiation      Kind = "instantiation"
	KindNotFound           Kind = "not_found"
)

// Error is the structured error type used throughout this module.
type Error struct {
	Cause   error
	Phase   Phase
	Kind    Kind
	Detail  string
	TypeID  uint32
	Pointer uint32
	hasPtr  bool
	hasType bool
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.hasPtr {
		fmt.Fprintf(&b, " at 0x%x", e.Pointer)
	}
	if e.hasType {
		fmt.Fprintf(&b, " (type %d)", e.TypeID)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *Error with the same phase and kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// WithPointer attaches the guest pointer under inspection, for diagnostics.
func (e *Error) WithPointer(p uint32) *Error {
	e.Pointer = p
	e.hasPtr = true
	return e
}

// WithType attaches the guest type id under inspection, for diagnostics.
func (e *Error) WithType(id uint32) *Error {
	e.TypeID = id
	e.hasType = true
	return e
}

func new(phase Phase, kind Kind, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Detail: detail}
}

// RTTIUnavailable reports a missing or malformed RTTI base global.
func RTTIUnavailable(detail string) *Error {
	return new(PhaseRTTI, KindRTTIUnavailable, detail)
}

// UnsupportedLayout reports a typed-view request the ViewFactory cannot
// satisfy (64-bit or floating point facets, per spec.md §4.3).
func UnsupportedLayout(facet string) *Error {
	return new(PhaseArray, KindUnsupportedLayout, facet+" views are not supported")
}

// InvalidArrayType reports alloc_array called against a non-array type id.
func InvalidArrayType(typeID uint32) *Error {
	return new(PhaseArray, KindInvalidArrayType, "type id is not an allocatable array type").WithType(typeID)
}

// WrongElementType reports a managed-array element that is neither a string,
// a guest handle, nor a raw uint32 pointer.
func WrongElementType(goType string) *Error {
	return new(PhaseArray, KindWrongElementType, "element of Go type "+goType+" cannot be stored as a managed reference")
}

// OutOfBounds reports an array index at or beyond the logical length.
func OutOfBounds(index, length int) *Error {
	return new(PhaseArray, KindOutOfBounds, fmt.Sprintf("index %d >= length %d", index, length))
}

// OpaqueExpired reports a weakly-held opaque token whose value has been
// collected by the host's garbage collector.
func OpaqueExpired(token uint32) *Error {
	return new(PhaseOpaque, KindOpaqueExpired, fmt.Sprintf("token %d has expired", token))
}

// UnsupportedTarget reports a resolve() target hint that is not recognized.
func UnsupportedTarget(detail string) *Error {
	return new(PhaseBind, KindUnsupportedTarget, detail)
}

// MissingConstructor reports a class referenced that has no constructor
// export, per spec.md §4.7 point 6.
func MissingConstructor(class string) *Error {
	return new(PhaseBind, KindMissingConstructor, "class "+class+" has no constructor export")
}

// NotFound reports a missing export, global, or type id lookup.
func NotFound(phase Phase, what, name string) *Error {
	return new(phase, KindNotFound, what+" "+name+" not found")
}

// InvalidData reports malformed memory contents (bad header, truncated
// payload, wrong type id at a pointer).
func InvalidData(phase Phase, detail string) *Error {
	return new(phase, KindInvalidData, detail)
}

// Instantiation wraps a wazero compile/instantiate failure.
func Instantiation(cause error) *Error {
	return &Error{Phase: PhaseEngine, Kind: KindInstantiation, Cause: cause}
}

// Wrap attaches a phase/kind/detail to an underlying cause.
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{Phase: phase, Kind: kind, Cause: cause, Detail: detail}
}
