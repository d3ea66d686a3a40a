// Package bind implements the export-synthesis rules described in
// spec.md §4.7: partitioning a module's export names into top-level
// functions and class members, and marshalling host arguments into the
// guest calling convention. It holds no running state of its own — the
// module façade owns the instance and calls through here.
package bind

import (
	"fmt"
	"math"
	"strings"

	"github.com/wasmkit/ascbind/wasmerr"
)

// ClassBlueprint is one guest class's synthesized shape: its constructor
// (if any), methods, and accessor pairs, each keyed by member name and
// valued by the full export name to call.
type ClassBlueprint struct {
	Name           string
	Constructor    string
	HasConstructor bool
	Methods        map[string]string
	Getters        map[string]string
	Setters        map[string]string
}

// Blueprint is the result of partitioning a module's export list.
type Blueprint struct {
	Functions []string
	Classes   map[string]*ClassBlueprint
}

func (bp *Blueprint) classOf(name string) *ClassBlueprint {
	if cb, ok := bp.Classes[name]; ok {
		return cb
	}
	cb := &ClassBlueprint{
		Name:    name,
		Methods: make(map[string]string),
		Getters: make(map[string]string),
		Setters: make(map[string]string),
	}
	bp.Classes[name] = cb
	return cb
}

// Partition splits export names per spec.md §4.7 steps 2-3: `__`-prefixed
// names are runtime helpers and are dropped, `Class#member` names are
// grouped by class and further split into constructor/getter/setter/method,
// everything else is a top-level function.
func Partition(names []string) *Blueprint {
	bp := &Blueprint{Classes: make(map[string]*ClassBlueprint)}

	for _, name := range names {
		if strings.HasPrefix(name, "__") {
			continue
		}

		idx := strings.IndexByte(name, '#')
		if idx < 0 {
			bp.Functions = append(bp.Functions, name)
			continue
		}

		className, member := name[:idx], name[idx+1:]
		cb := bp.classOf(className)

		switch {
		case member == "constructor":
			cb.Constructor = name
			cb.HasConstructor = true
		case strings.HasPrefix(member, "get:"):
			cb.Getters[member[4:]] = name
		case strings.HasPrefix(member, "set:"):
			cb.Setters[member[4:]] = name
		default:
			cb.Methods[member] = name
		}
	}

	return bp
}

// TargetKind tags the decoding strategy a resolve() call should apply, the
// tagged variant spec.md §9 asks for in place of open-ended runtime type
// inspection ("Target = {Scalar, String, Bytes, Class(id), List(Element),
// Opaque}"). The zero value, TargetAuto, means "infer from type_of(P)".
type TargetKind int

const (
	TargetAuto TargetKind = iota
	TargetScalar
	TargetString
	TargetBytes
	TargetClass
	TargetList
	TargetOpaque
)

// Target is an immutable description of how to decode a resolved pointer.
type Target struct {
	kind    TargetKind
	class   string
	element *Target
}

func (t Target) Kind() TargetKind { return t.kind }
func (t Target) ClassName() string { return t.class }
func (t Target) Element() Target {
	if t.element == nil {
		return Target{}
	}
	return *t.element
}
func (t Target) IsAuto() bool   { return t.kind == TargetAuto }
func (t Target) IsOpaque() bool { return t.kind == TargetOpaque }

// Scalar targets a raw numeric value — no decoding.
func Scalar() Target { return Target{kind: TargetScalar} }

// String targets a guest string payload.
func String() Target { return Target{kind: TargetString} }

// Bytes targets a raw ArrayBuffer payload.
func Bytes() Target { return Target{kind: TargetBytes} }

// Class targets a synthesized wrapper class by name.
func Class(name string) Target { return Target{kind: TargetClass, class: name} }

// List targets a guest array whose managed elements (if any) decode via elem.
func List(elem Target) Target { return Target{kind: TargetList, element: &elem} }

// Opaque targets the opaque-value registry.
func Opaque() Target { return Target{kind: TargetOpaque} }

// StringAllocator allocates a fresh guest string, the collaborator
// MarshalArg needs for the String case. The module façade implements this.
type StringAllocator interface {
	AllocGuestString(s string) (uint32, error)
}

// pointerHolder is satisfied by any host value that already carries a
// guest pointer — GuestHandle and resolved arrays both qualify.
type pointerHolder interface {
	Pointer() uint32
}

// MarshalArg converts one host argument into the raw i32/i64/f32/f64 bit
// pattern the guest calling convention expects, per spec.md §4.7's
// "Argument marshalling" table: a pointer-holder contributes its stored
// pointer, a string is allocated fresh (the callee adopts ownership — see
// DESIGN.md's resolution of the §9 string-retain-policy question),
// everything else passes through as a scalar.
func MarshalArg(sa StringAllocator, v any) (uint64, error) {
	switch val := v.(type) {
	case pointerHolder:
		return uint64(val.Pointer()), nil
	case string:
		ptr, err := sa.AllocGuestString(val)
		if err != nil {
			return 0, err
		}
		return uint64(ptr), nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case float64:
		return math.Float64bits(val), nil
	case float32:
		return uint64(math.Float32bits(val)), nil
	case int:
		return uint64(int64(val)), nil
	case int8:
		return uint64(int64(val)), nil
	case int16:
		return uint64(int64(val)), nil
	case int32:
		return uint64(int64(val)), nil
	case int64:
		return uint64(val), nil
	case uint:
		return uint64(val), nil
	case uint8:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint32:
		return uint64(val), nil
	case uint64:
		return val, nil
	default:
		return 0, wasmerr.UnsupportedTarget(fmt.Sprintf("cannot marshal argument of Go type %T", v))
	}
}
