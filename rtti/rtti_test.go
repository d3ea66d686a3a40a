package rtti

import (
	"encoding/binary"
	"testing"
)

type mockMemory struct{ data []byte }

func newMockMemory(size int) *mockMemory { return &mockMemory{data: make([]byte, size)} }

func (m *mockMemory) Read(offset, length uint32) ([]byte, error) {
	return m.data[offset : offset+length], nil
}
func (m *mockMemory) Write(offset uint32, data []byte) error { copy(m.data[offset:], data); return nil }
func (m *mockMemory) ReadU8(offset uint32) (uint8, error)    { return m.data[offset], nil }
func (m *mockMemory) ReadU16(offset uint32) (uint16, error) {
	return binary.LittleEndian.Uint16(m.data[offset:]), nil
}
func (m *mockMemory) ReadU32(offset uint32) (uint32, error) {
	return binary.LittleEndian.Uint32(m.data[offset:]), nil
}
func (m *mockMemory) ReadU64(offset uint32) (uint64, error) {
	return binary.LittleEndian.Uint64(m.data[offset:]), nil
}
func (m *mockMemory) WriteU8(offset uint32, v uint8) error { m.data[offset] = v; return nil }
func (m *mockMemory) WriteU16(offset uint32, v uint16) error {
	binary.LittleEndian.PutUint16(m.data[offset:], v)
	return nil
}
func (m *mockMemory) WriteU32(offset uint32, v uint32) error {
	binary.LittleEndian.PutUint32(m.data[offset:], v)
	return nil
}
func (m *mockMemory) WriteU64(offset uint32, v uint64) error {
	binary.LittleEndian.PutUint64(m.data[offset:], v)
	return nil
}
func (m *mockMemory) Size() uint32 { return uint32(len(m.data)) }

// writeRTTITable lays out a table at base: count, then flags/baseID pairs.
func writeRTTITable(mem *mockMemory, base uint32, entries []struct{ flags, baseID uint32 }) {
	_ = mem.WriteU32(base, uint32(len(entries)))
	for i, e := range entries {
		off := base + 4 + uint32(i)*8
		_ = mem.WriteU32(off, e.flags)
		_ = mem.WriteU32(off+4, e.baseID)
	}
}

func TestResolverRequiresInit(t *testing.T) {
	mem := newMockMemory(256)
	r := New(mem, SchemaCurrent)
	if _, err := r.LoadType(0); err == nil {
		t.Fatal("expected RTTIUnavailable before Init")
	}
	if err := r.Init(0, false); err == nil {
		t.Fatal("expected error when hasBase is false")
	}
}

func TestLoadTypeAndBaseIDRelationship(t *testing.T) {
	mem := newMockMemory(256)
	const base = 16
	// id 0: Foo, no base. id 1: Bar extends Foo (base_id = 0).
	writeRTTITable(mem, base, []struct{ flags, baseID uint32 }{
		{flags: 0, baseID: 0},
		{flags: 0, baseID: 0},
	})

	r := New(mem, SchemaCurrent)
	if err := r.Init(base, true); err != nil {
		t.Fatalf("Init: %v", err)
	}

	bar, err := r.LoadType(1)
	if err != nil {
		t.Fatalf("LoadType(1): %v", err)
	}
	foo, err := r.LoadType(0)
	if err != nil {
		t.Fatalf("LoadType(0): %v", err)
	}
	if bar.BaseID != foo.ID {
		t.Errorf("invariant 8 violated: bar.BaseID=%d, foo.ID=%d", bar.BaseID, foo.ID)
	}
}

func TestLoadTypeOutOfRange(t *testing.T) {
	mem := newMockMemory(256)
	const base = 16
	writeRTTITable(mem, base, []struct{ flags, baseID uint32 }{{flags: 0, baseID: 0}})
	r := New(mem, SchemaCurrent)
	if err := r.Init(base, true); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := r.LoadType(5); err == nil {
		t.Fatal("expected NotFound for an id beyond the table")
	}
}

func TestHasUnderBothSchemas(t *testing.T) {
	// bit 1 means ARRAY under both schemas, but bit 2 means SET under
	// SchemaCurrent and STATICARRAY under SchemaStaticArray because the
	// bit positions shift — this is exactly why schema must be explicit.
	tCurrent := RTTIType{Flags: 1 << 1, schema: SchemaCurrent}
	if !tCurrent.Has(FlagArray) {
		t.Error("SchemaCurrent: expected ARRAY flag set")
	}

	tStatic := RTTIType{Flags: 1 << 2, schema: SchemaStaticArray}
	if !tStatic.Has(FlagStaticArray) {
		t.Error("SchemaStaticArray: expected STATICARRAY flag set")
	}
	if FlagStaticArray == FlagArray {
		t.Fatal("sanity: flags must be distinct")
	}

	tNoStatic := RTTIType{Flags: 1 << 2, schema: SchemaCurrent}
	if tNoStatic.Has(FlagStaticArray) {
		t.Error("SchemaCurrent has no STATICARRAY bit and must report false")
	}
}

func TestValAlign(t *testing.T) {
	// Under SchemaCurrent, VAL_ALIGN_OFFSET is 5; a mask of 0b10 (align=1,
	// i.e. 16-bit elements) at bits [5,9].
	flags := uint32(0b10) << 5
	typ := RTTIType{Flags: flags, schema: SchemaCurrent}
	if got := typ.ValAlign(); got != 1 {
		t.Errorf("ValAlign() = %d, want 1", got)
	}
}

func TestValAlignUnset(t *testing.T) {
	typ := RTTIType{Flags: 0, schema: SchemaCurrent}
	if got := typ.ValAlign(); got != -1 {
		t.Errorf("ValAlign() with no bits set = %d, want -1", got)
	}
}

func TestTypeOfUsesHeapHeader(t *testing.T) {
	mem := newMockMemory(256)
	const base = 16
	writeRTTITable(mem, base, []struct{ flags, baseID uint32 }{
		{flags: 1 << 0, baseID: 0}, // id 0: ARRAYBUFFERVIEW
	})
	r := New(mem, SchemaCurrent)
	if err := r.Init(base, true); err != nil {
		t.Fatalf("Init: %v", err)
	}

	const ptr = 128
	_ = mem.WriteU32(ptr-8, 0) // type id field -> 0
	_ = mem.WriteU32(ptr-12, 1)
	_ = mem.WriteU32(ptr-4, 0)

	typ, err := r.TypeOf(ptr)
	if err != nil {
		t.Fatalf("TypeOf: %v", err)
	}
	if !typ.Has(FlagArrayBufferView) {
		t.Error("expected ARRAYBUFFERVIEW flag")
	}
	if !typ.IsArrayLike() {
		t.Error("expected IsArrayLike() true")
	}
}
