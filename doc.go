// Package ascbind provides a host-side binding layer for working
// idiomatically with objects, strings, and arrays that live inside a
// WebAssembly module compiled from a reference-counted, garbage-collected
// managed language — concretely, AssemblyScript's heap runtime.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	ascbind/        Root package: Memory/MemorySizer interfaces shared by every layer
//	├── engine/     wazero integration: compile, instantiate, call, read globals
//	├── heap/       Header decode/encode, string and array-buffer payloads
//	├── rtti/       RTTI table parsing, type classification, flag schemas
//	├── view/       Typed scalar views over a linear memory region
//	├── guest/      Host-side owning handle for one retained guest pointer
//	├── array/      Typed and general array allocation, resolution, indexing
//	├── opaque/     Integer-token round-trip for opaque host values
//	├── bind/       Export introspection; synthesizes host classes/functions
//	├── module/     Single entry point tying every layer together
//	└── wasmerr/    Structured error type shared by all packages
//
// # Quick Start
//
//	eng, err := engine.New(ctx)
//	compiled, err := eng.LoadModule(ctx, wasmBytes)
//	inst, err := compiled.Instantiate(ctx)
//
//	mod, err := module.New(ctx, inst, compiled.ExportNames(), module.Options{
//		Schema: rtti.SchemaCurrent,
//	})
//	defer mod.Close(ctx)
//
//	sum, _ := mod.Function("sum")
//	result, err := sum.Call(ctx, []any{int32(1), int32(2)}, nil)
//
// # Memory Model
//
// Guest linear memory only grows, never shrinks — a WebAssembly
// specification limitation. Any view obtained from engine.Instance is only
// valid until the next guest call that may grow memory; callers should
// re-fetch rather than cache views across calls (spec.md §5).
//
// # Thread Safety
//
// module.Module and engine.Instance are not safe for concurrent use by
// multiple goroutines; each goroutine needing guest access should use its
// own Instance, or synchronize externally.
package ascbind

// Memory represents the guest's linear memory as a byte-addressable,
// little-endian scalar-view surface. Every component above heap.Codec is
// built against this interface, not against a specific WASM engine.
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU8(offset uint32) (uint8, error)
	ReadU16(offset uint32) (uint16, error)
	ReadU32(offset uint32) (uint32, error)
	ReadU64(offset uint32) (uint64, error)
	WriteU8(offset uint32, value uint8) error
	WriteU16(offset uint32, value uint16) error
	WriteU32(offset uint32, value uint32) error
	WriteU64(offset uint32, value uint64) error
}

// MemorySizer reports the current size of guest linear memory in bytes.
type MemorySizer interface {
	Size() uint32
}
