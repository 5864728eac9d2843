package common

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// FeltBytes is the fixed wire width of a FieldElement: 32 bytes, big-endian.
const FeltBytes = 32

// fieldModulus is the Starknet prime: 2**251 + 17*2**192 + 1.
var fieldModulus = func() *uint256.Int {
	m, err := uint256.FromHex("0x800000000000011000000000000000000000000000000000000000000000001")
	if err != nil {
		panic("common: field modulus literal overflows uint256")
	}
	return m
}()

// ErrOutOfRange is returned by FeltFromBytes when the encoded value is not
// a canonical residue, i.e. >= the field modulus.
var ErrOutOfRange = errors.New("common: value out of field range")

// FieldElement is a 252-bit unsigned integer reduced modulo the Starknet
// field prime. The zero value is the additive identity.
type FieldElement struct {
	inner uint256.Int
}

// FeltFromUint64 builds a FieldElement from a small unsigned integer.
func FeltFromUint64(v uint64) FieldElement {
	var f FieldElement
	f.inner.SetUint64(v)
	return f
}

// FeltFromBytes decodes a big-endian, 32-byte FieldElement. It rejects
// values at or above the field modulus with ErrOutOfRange.
func FeltFromBytes(b []byte) (FieldElement, error) {
	if len(b) != FeltBytes {
		return FieldElement{}, fmt.Errorf("common: felt must be %d bytes, got %d", FeltBytes, len(b))
	}
	var f FieldElement
	f.inner.SetBytes(b)
	if f.inner.Cmp(fieldModulus) >= 0 {
		return FieldElement{}, ErrOutOfRange
	}
	return f, nil
}

// Bytes returns the canonical 32-byte big-endian encoding.
func (f FieldElement) Bytes() [FeltBytes]byte {
	return f.inner.Bytes32()
}

// Cmp orders two field elements numerically.
func (f FieldElement) Cmp(other FieldElement) int {
	return f.inner.Cmp(&other.inner)
}

// IsZero reports whether f is the additive identity.
func (f FieldElement) IsZero() bool {
	return f.inner.IsZero()
}

// String renders f as a 0x-prefixed hex string.
func (f FieldElement) String() string {
	return f.inner.Hex()
}

// FeltZero is the additive identity, returned by storage/nonce reads that
// find no preceding entry.
var FeltZero = FieldElement{}

// newtypes over FieldElement, one per domain role.
type (
	Hash FieldElement
	Address FieldElement
	StorageKey FieldElement
	ClassHash FieldElement
	CompiledClassHash FieldElement
	EntryPointSelector FieldElement
	Nonce FieldElement
	TransactionHash FieldElement
)

func (h Hash) Bytes() [FeltBytes]byte { return FieldElement(h).Bytes() }
func (a Address) Bytes() [FeltBytes]byte { return FieldElement(a).Bytes() }
func (k StorageKey) Bytes() [FeltBytes]byte { return FieldElement(k).Bytes() }
func (c ClassHash) Bytes() [FeltBytes]byte { return FieldElement(c).Bytes() }
func (c CompiledClassHash) Bytes() [FeltBytes]byte { return FieldElement(c).Bytes() }
func (s EntryPointSelector) Bytes() [FeltBytes]byte { return FieldElement(s).Bytes() }
func (n Nonce) Bytes() [FeltBytes]byte { return FieldElement(n).Bytes() }
func (t TransactionHash) Bytes() [FeltBytes]byte { return FieldElement(t).Bytes() }

func (h Hash) String() string { return FieldElement(h).String() }
func (a Address) String() string { return FieldElement(a).String() }
func (k StorageKey) String() string { return FieldElement(k).String() }
func (c ClassHash) String() string { return FieldElement(c).String() }
func (n Nonce) String() string { return FieldElement(n).String() }
func (t TransactionHash) String() string { return FieldElement(t).String() }

// NonceZero is the nonce value returned for never-written accounts.
var NonceZero = Nonce(FeltZero)
