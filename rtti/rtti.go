// Package rtti parses the guest Runtime Type Information table and
// classifies pointers by it (spec.md §3, §4.2).
package rtti

import (
	"fmt"
	"math/bits"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/heap"
	"github.com/wasmkit/ascbind/wasmerr"
)

// Flag names a single RTTI predicate bit, independent of which FlagSchema
// maps it to a concrete bit position.
type Flag int

const (
	FlagArrayBufferView Flag = iota
	FlagArray
	FlagStaticArray
	FlagSet
	FlagMap
	FlagValSigned
	FlagValFloat
	FlagValNullable
	FlagValManaged
	FlagKeySigned
	FlagKeyFloat
	FlagKeyNullable
	FlagKeyManaged
)

// RTTIType is one decoded entry of the RTTI table.
type RTTIType struct {
	ID     uint32
	BaseID uint32
	Flags  uint32
	schema FlagSchema
}

func bitSet(flags uint32, pos uint) bool {
	return flags&(1<<pos) != 0
}

// Has reports whether the given predicate flag is set, per this type's
// schema. FlagStaticArray is always false under a schema that does not
// define the bit (spec.md §6).
func (t RTTIType) Has(f Flag) bool {
	s := t.schema
	switch f {
	case FlagArrayBufferView:
		return bitSet(t.Flags, s.ArrayBufferView)
	case FlagArray:
		return bitSet(t.Flags, s.Array)
	case FlagStaticArray:
		return s.HasStaticArray && bitSet(t.Flags, s.StaticArray)
	case FlagSet:
		return bitSet(t.Flags, s.Set)
	case FlagMap:
		return bitSet(t.Flags, s.Map)
	case FlagValSigned:
		return bitSet(t.Flags, s.ValSigned)
	case FlagValFloat:
		return bitSet(t.Flags, s.ValFloat)
	case FlagValNullable:
		return bitSet(t.Flags, s.ValNullable)
	case FlagValManaged:
		return bitSet(t.Flags, s.ValManaged)
	case FlagKeySigned:
		return bitSet(t.Flags, s.KeySigned)
	case FlagKeyFloat:
		return bitSet(t.Flags, s.KeyFloat)
	case FlagKeyNullable:
		return bitSet(t.Flags, s.KeyNullable)
	case FlagKeyManaged:
		return bitSet(t.Flags, s.KeyManaged)
	}
	return false
}

// IsArrayLike reports whether t satisfies ARRAYBUFFERVIEW | ARRAY, the
// condition spec.md §3 invariant 4 requires for allocate/resolve targets.
func (t RTTIType) IsArrayLike() bool {
	return t.Has(FlagArrayBufferView) || t.Has(FlagArray)
}

func alignFromMask(mask uint32) int {
	if mask == 0 {
		return -1
	}
	return bits.Len32(mask) - 1
}

// ValAlign is 31 − clz32((flags >> VAL_ALIGN_OFFSET) & 31): the log2 byte
// size of an array's element scalar, or -1 if unset (spec.md §4.2).
func (t RTTIType) ValAlign() int {
	mask := (t.Flags >> t.schema.ValAlignOffset) & 31
	return alignFromMask(mask)
}

// KeyAlign is the equivalent alignment for a Map's key scalar.
func (t RTTIType) KeyAlign() int {
	mask := (t.Flags >> t.schema.KeyAlignOffset) & 31
	return alignFromMask(mask)
}

// Resolver parses the RTTI table lazily and memoizes decoded entries.
type Resolver struct {
	mem       ascbind.Memory
	codec     *heap.Codec
	schema    FlagSchema
	base      uint32
	count     uint32
	cache     map[uint32]RTTIType
	available bool
}

// New returns a Resolver that has not yet been initialized with an RTTI
// base address. Call Init before any lookup.
func New(mem ascbind.Memory, schema FlagSchema) *Resolver {
	return &Resolver{mem: mem, codec: heap.New(mem), schema: schema}
}

// Init binds the resolver to the RTTI table at base and reads its entry
// count. hasBase should reflect whether the guest exposed an __rtti_base
// global at all; when false, every RTTI-dependent operation fails with
// KindRTTIUnavailable (spec.md §4.2).
func (r *Resolver) Init(base uint32, hasBase bool) error {
	if !hasBase {
		return wasmerr.RTTIUnavailable("module has no __rtti_base global")
	}

	count, err := r.mem.ReadU32(base)
	if err != nil {
		return wasmerr.RTTIUnavailable("RTTI table base is not readable: " + err.Error())
	}

	r.base = base
	r.count = count
	r.cache = make(map[uint32]RTTIType, count)
	r.available = true
	return nil
}

func (r *Resolver) requireAvailable() error {
	if !r.available {
		return wasmerr.RTTIUnavailable("RTTI resolver not initialized")
	}
	return nil
}

// LoadType returns the bounds-checked, memoized RTTI entry for id.
func (r *Resolver) LoadType(id uint32) (RTTIType, error) {
	if err := r.requireAvailable(); err != nil {
		return RTTIType{}, err
	}
	if t, ok := r.cache[id]; ok {
		return t, nil
	}
	if id >= r.count {
		return RTTIType{}, wasmerr.NotFound(wasmerr.PhaseRTTI, "rtti entry", fmt.Sprintf("%d", id))
	}

	entryOffset := r.base + 4 + id*8
	flags, err := r.mem.ReadU32(entryOffset)
	if err != nil {
		return RTTIType{}, wasmerr.Wrap(wasmerr.PhaseRTTI, wasmerr.KindInvalidData, err, "read RTTI flags")
	}
	baseID, err := r.mem.ReadU32(entryOffset + 4)
	if err != nil {
		return RTTIType{}, wasmerr.Wrap(wasmerr.PhaseRTTI, wasmerr.KindInvalidData, err, "read RTTI base id")
	}

	t := RTTIType{ID: id, BaseID: baseID, Flags: flags, schema: r.schema}
	r.cache[id] = t
	return t, nil
}

// TypeOf classifies the pointer ptr by reading its header type id and
// looking up the corresponding RTTI entry.
func (r *Resolver) TypeOf(ptr uint32) (RTTIType, error) {
	if err := r.requireAvailable(); err != nil {
		return RTTIType{}, err
	}
	typeID, err := r.codec.TypeID(ptr)
	if err != nil {
		return RTTIType{}, err
	}
	return r.LoadType(typeID)
}

// Count returns the number of entries in the RTTI table.
func (r *Resolver) Count() uint32 {
	return r.count
}

// Available reports whether Init has successfully bound a table.
func (r *Resolver) Available() bool {
	return r.available
}
