package types

import "bytes"

// EntryPointKind groups a class's entry points by call kind.
type EntryPointKind uint8

const (
	EntryPointExternal EntryPointKind = iota
	EntryPointL1Handler
	EntryPointConstructor
)

// EntryPoint is one callable offset within a class's program.
type EntryPoint struct {
	Selector [32]byte
	Offset uint64
	// FunctionIdx is only meaningful for Sierra classes.
	FunctionIdx uint64
}

// DeprecatedClass is a Cairo 0 contract class body.
type DeprecatedClass struct {
	Program []byte // the raw Cairo 0 program, opaque to the store
	ABI []byte
	EntryPoints map[EntryPointKind][]EntryPoint
}

// SierraClass is a Cairo 1+ contract class body.
type SierraClass struct {
	SierraProgram []uint64 // felts, stored as limbs; opaque to the store
	ABI []byte
	EntryPoints map[EntryPointKind][]EntryPoint
	ContractClassVersion string
}

// ContractClass is either a Deprecated (Cairo 0) or Sierra class body.
// Exactly one of the two is non-nil.
type ContractClass struct {
	Deprecated *DeprecatedClass
	Sierra *SierraClass
}

// Equal reports whether both classes are of the same kind and carry the
// same program and ABI bytes. Entry points and the Sierra contract class
// version are not compared.
func (c *ContractClass) Equal(other *ContractClass) bool {
	if (c.Deprecated == nil) != (other.Deprecated == nil) {
		return false
	}
	if (c.Sierra == nil) != (other.Sierra == nil) {
		return false
	}
	if c.Deprecated != nil {
		return bytes.Equal(c.Deprecated.Program, other.Deprecated.Program) &&
			bytes.Equal(c.Deprecated.ABI, other.Deprecated.ABI)
	}
	if len(c.Sierra.SierraProgram) != len(other.Sierra.SierraProgram) {
		return false
	}
	for i := range c.Sierra.SierraProgram {
		if c.Sierra.SierraProgram[i] != other.Sierra.SierraProgram[i] {
			return false
		}
	}
	return bytes.Equal(c.Sierra.ABI, other.Sierra.ABI)
}

// CasmClass is the compiled-for-execution counterpart to a SierraClass.
type CasmClass struct {
	Bytecode []uint64
	EntryPoints map[EntryPointKind][]EntryPoint
}
