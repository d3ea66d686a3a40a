package view

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

func TestViewScalarRoundTrip(t *testing.T) {
	cases := []struct {
		name      string
		alignment int
		elemSize  uint32
		signed    bool
	}{
		{"u8", 0, 1, false},
		{"i8", 0, 1, true},
		{"u16", 1, 2, false},
		{"i16", 1, 2, true},
		{"u32", 2, 4, false},
		{"i32", 2, 4, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mem := newMockMemory(64)
			v, err := New(mem, 8, false, c.alignment, c.signed)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if v.ElementSize() != c.elemSize {
				t.Errorf("ElementSize() = %d, want %d", v.ElementSize(), c.elemSize)
			}
			for i := 0; i < 3; i++ {
				if err := v.Set(i, int64(i+1)); err != nil {
					t.Fatalf("Set(%d): %v", i, err)
				}
			}
			for i := 0; i < 3; i++ {
				got, err := v.Get(i)
				if err != nil {
					t.Fatalf("Get(%d): %v", i, err)
				}
				if got != int64(i+1) {
					t.Errorf("Get(%d) = %d, want %d", i, got, i+1)
				}
			}
		})
	}
}

func TestViewSignedNegative(t *testing.T) {
	mem := newMockMemory(64)
	v, err := New(mem, 0, false, 0, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Set(0, -1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get(0)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != -1 {
		t.Errorf("Get(0) = %d, want -1", got)
	}
}

func TestViewUnsupportedFacets(t *testing.T) {
	mem := newMockMemory(64)
	if _, err := New(mem, 0, true, 2, false); err == nil {
		t.Error("expected error for float view")
	}
	if _, err := New(mem, 0, false, 3, false); err == nil {
		t.Error("expected error for 64-bit view")
	}
	if _, err := New(mem, 0, false, 7, false); err == nil {
		t.Error("expected error for unrecognized alignment")
	}
}
