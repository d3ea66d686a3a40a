package rtti

// FlagSchema describes the bit layout of one RTTI flags word. The guest
// toolchain has shifted these bits across releases (spec.md §3, §6); the
// caller must declare which layout a given module was compiled with rather
// than have the binding guess (spec.md §9).
type FlagSchema struct {
	ArrayBufferView uint
	Array           uint
	Set             uint
	Map             uint
	HasStaticArray  bool
	StaticArray     uint
	ValAlignOffset  uint
	ValSigned       uint
	ValFloat        uint
	ValNullable     uint
	ValManaged      uint
	KeyAlignOffset  uint
	KeySigned       uint
	KeyFloat        uint
	KeyNullable     uint
	KeyManaged      uint
}

// SchemaCurrent is the canonical layout described in spec.md §3: no
// STATICARRAY flag, VAL_ALIGN starting at bit 5.
var SchemaCurrent = FlagSchema{
	ArrayBufferView: 0,
	Array:           1,
	Set:             2,
	Map:             3,
	HasStaticArray:  false,
	ValAlignOffset:  5,
	ValSigned:       10,
	ValFloat:        11,
	ValNullable:     12,
	ValManaged:      13,
	KeyAlignOffset:  14,
	KeySigned:       19,
	KeyFloat:        20,
	KeyNullable:     21,
	KeyManaged:      22,
}

// SchemaStaticArray is the newer layout spec.md §6 describes: everything
// shifted up by one bit, with STATICARRAY inserted at bit 2.
var SchemaStaticArray = FlagSchema{
	ArrayBufferView: 0,
	Array:           1,
	HasStaticArray:  true,
	StaticArray:     2,
	Set:             3,
	Map:             4,
	ValAlignOffset:  6,
	ValSigned:       11,
	ValFloat:        12,
	ValNullable:     13,
	ValManaged:      14,
	KeyAlignOffset:  15,
	KeySigned:       20,
	KeyFloat:        21,
	KeyNullable:     22,
	KeyManaged:      23,
}
