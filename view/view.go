// Package view provides typed scalar views over a region of guest linear
// memory, the element-access primitive array.Binding builds on (spec.md
// §4.3).
package view

import (
	"fmt"

	"github.com/wasmkit/ascbind"
	"github.com/wasmkit/ascbind/wasmerr"
)

// View reads and writes fixed-width integer elements at a base offset in
// linear memory. Values are always carried as int64 so a single interface
// covers every supported width; callers narrow as needed.
type View interface {
	Get(index int) (int64, error)
	Set(index int, value int64) error
	ElementSize() uint32
}

// New returns a View over mem starting at base, per the mapping table in
// spec.md §4.3:
//
//	alignment  signed   unsigned
//	0          i8       u8
//	1          i16      u16
//	2          i32      u32
//	3          unsupported
//
// Floating point elements are always unsupported. Unsupported requests fail
// with KindUnsupportedLayout, naming the missing facet.
func New(mem ascbind.Memory, base uint32, isFloat bool, alignment int, isSigned bool) (View, error) {
	if isFloat {
		return nil, wasmerr.UnsupportedLayout("float")
	}

	switch alignment {
	case 0:
		return &scalarView{mem: mem, base: base, elemSize: 1, signed: isSigned}, nil
	case 1:
		return &scalarView{mem: mem, base: base, elemSize: 2, signed: isSigned}, nil
	case 2:
		return &scalarView{mem: mem, base: base, elemSize: 4, signed: isSigned}, nil
	case 3:
		return nil, wasmerr.UnsupportedLayout("64-bit")
	default:
		return nil, wasmerr.UnsupportedLayout(fmt.Sprintf("alignment %d", alignment))
	}
}

type scalarView struct {
	mem      ascbind.Memory
	base     uint32
	elemSize uint32
	signed   bool
}

func (v *scalarView) ElementSize() uint32 {
	return v.elemSize
}

func (v *scalarView) offset(index int) uint32 {
	return v.base + uint32(index)*v.elemSize
}

func (v *scalarView) Get(index int) (int64, error) {
	off := v.offset(index)
	switch v.elemSize {
	case 1:
		b, err := v.mem.ReadU8(off)
		if err != nil {
			return 0, err
		}
		if v.signed {
			return int64(int8(b)), nil
		}
		return int64(b), nil
	case 2:
		b, err := v.mem.ReadU16(off)
		if err != nil {
			return 0, err
		}
		if v.signed {
			return int64(int16(b)), nil
		}
		return int64(b), nil
	default: // 4
		b, err := v.mem.ReadU32(off)
		if err != nil {
			return 0, err
		}
		if v.signed {
			return int64(int32(b)), nil
		}
		return int64(b), nil
	}
}

func (v *scalarView) Set(index int, value int64) error {
	off := v.offset(index)
	switch v.elemSize {
	case 1:
		return v.mem.WriteU8(off, uint8(value))
	case 2:
		return v.mem.WriteU16(off, uint16(value))
	default: // 4
		return v.mem.WriteU32(off, uint32(value))
	}
}
