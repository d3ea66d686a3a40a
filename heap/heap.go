// Package heap decodes and encodes the guest runtime's managed-object
// layout: the 12-byte header that precedes every managed value, UTF-16LE
// strings, and raw array-buffer payloads (spec.md §3, §4.1).
package heap

import (
	"unicode/utf16"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/wasmerr"
)

// Well-known type ids (spec.md §3).
const (
	ArrayBufferID     = 0
	StringID          = 1
	ArrayBufferViewID = 2
)

// HeaderSize is the byte size of the header preceding every managed pointer.
const HeaderSize = 12

const (
	refcountOffset = 12 // P - 12
	typeIDOffset   = 8  // P - 8
	sizeOffset     = 4  // P - 4
)

// AllocFunc calls the guest's __new/__alloc export, returning the payload
// pointer for a freshly allocated object of typeID with byteLen bytes of
// payload. Refcount on return is whatever the guest constructor establishes
// (typically 1, per spec.md §4.1).
type AllocFunc func(byteLen, typeID uint32) (uint32, error)

// Codec reads and writes guest heap objects over a single Memory.
type Codec struct {
	mem ascbind.Memory
}

// New returns a Codec bound to mem.
func New(mem ascbind.Memory) *Codec {
	return &Codec{mem: mem}
}

// Header reads the 3-field header immediately preceding ptr.
func (c *Codec) Header(ptr uint32) (refcount, typeID, size uint32, err error) {
	if ptr < HeaderSize {
		return 0, 0, 0, wasmerr.InvalidData(wasmerr.PhaseMemory, "pointer too small to have a header").WithPointer(ptr)
	}

	refcount, err = c.mem.ReadU32(ptr - refcountOffset)
	if err != nil {
		return 0, 0, 0, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "read refcount field")
	}
	typeID, err = c.mem.ReadU32(ptr - typeIDOffset)
	if err != nil {
		return 0, 0, 0, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "read type id field")
	}
	size, err = c.mem.ReadU32(ptr - sizeOffset)
	if err != nil {
		return 0, 0, 0, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "read size field")
	}
	return refcount, typeID, size, nil
}

// TypeID is a convenience accessor that reads only the type id field.
func (c *Codec) TypeID(ptr uint32) (uint32, error) {
	_, typeID, _, err := c.Header(ptr)
	return typeID, err
}

// SetSize overwrites the size field of the header preceding ptr. Every codec
// write that changes an object's byte length must call this (spec.md §4.1
// invariant).
func (c *Codec) SetSize(ptr uint32, size uint32) error {
	if ptr < HeaderSize {
		return wasmerr.InvalidData(wasmerr.PhaseMemory, "pointer too small to have a header").WithPointer(ptr)
	}
	if err := c.mem.WriteU32(ptr-sizeOffset, size); err != nil {
		return wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "write size field")
	}
	return nil
}

// LoadString decodes the UTF-16LE payload at ptr as a Go string. Asserts the
// type id is StringID. A zero-length payload decodes to the empty string
// without indexing into an empty byte slice (spec.md §9 "Empty strings").
func (c *Codec) LoadString(ptr uint32) (string, error) {
	raw, err := c.loadTypedBytes(ptr, StringID)
	if err != nil {
		return "", err
	}
	if len(raw) == 0 {
		return "", nil
	}
	if len(raw)%2 != 0 {
		return "", wasmerr.InvalidData(wasmerr.PhaseMemory, "string payload has odd byte length").WithPointer(ptr)
	}

	units := make([]uint16, len(raw)/2)
	for i := range units {
		units[i] = uint16(raw[2*i]) | uint16(raw[2*i+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

// LoadBytes returns the exact raw payload at ptr. Asserts the type id is
// ArrayBufferID.
func (c *Codec) LoadBytes(ptr uint32) ([]byte, error) {
	return c.loadTypedBytes(ptr, ArrayBufferID)
}

func (c *Codec) loadTypedBytes(ptr uint32, wantType uint32) ([]byte, error) {
	_, typeID, size, err := c.Header(ptr)
	if err != nil {
		return nil, err
	}
	if typeID != wantType {
		return nil, wasmerr.InvalidData(wasmerr.PhaseMemory, "unexpected type id").WithPointer(ptr).WithType(typeID)
	}
	if size == 0 {
		return []byte{}, nil
	}

	data, err := c.mem.Read(ptr, size)
	if err != nil {
		return nil, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "read payload")
	}
	return data, nil
}

// AllocString encodes s as UTF-16LE and allocates it as a guest string.
func (c *Codec) AllocString(alloc AllocFunc, s string) (uint32, error) {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		buf[2*i] = byte(u)
		buf[2*i+1] = byte(u >> 8)
	}
	return c.AllocTypedBytes(alloc, buf, StringID)
}

// AllocBytes allocates data as a guest ArrayBuffer.
func (c *Codec) AllocBytes(alloc AllocFunc, data []byte) (uint32, error) {
	return c.AllocTypedBytes(alloc, data, ArrayBufferID)
}

// AllocTypedBytes calls the guest allocator, writes the size field, and
// copies data into the payload (spec.md §4.1).
func (c *Codec) AllocTypedBytes(alloc AllocFunc, data []byte, typeID uint32) (uint32, error) {
	ptr, err := alloc(uint32(len(data)), typeID)
	if err != nil {
		return 0, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "guest allocation failed")
	}

	if err := c.SetSize(ptr, uint32(len(data))); err != nil {
		return 0, err
	}

	if len(data) > 0 {
		if err := c.mem.Write(ptr, data); err != nil {
			return 0, wasmerr.Wrap(wasmerr.PhaseMemory, wasmerr.KindInvalidData, err, "write payload")
		}
	}
	return ptr, nil
}
