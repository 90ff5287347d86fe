// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handle

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Byte offsets inside a 32-byte handle.
const (
	indexOffset   = 21
	chainIDOffset = 22
	typeOffset    = 30
	versionOffset = 31

	// Version is the handle format version written by Compose.
	Version uint8 = 0
)

var (
	ErrInvalidHandle   = errors.New("handle is not initialized")
	ErrMalformedHandle = errors.New("handle is not a bytes32")
	ErrTypeMismatch    = errors.New("wrong encrypted type for the handle")
	ErrUnknownType     = errors.New("unknown encrypted type")
	ErrValueOverflow   = errors.New("value does not fit the encrypted type")
)

// TypeMismatchError is returned when a handle's tag differs from the
// requested type.
type TypeMismatchError struct {
	Want Type
	Got  Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: want %s, got %s", ErrTypeMismatch, e.Want, e.Got)
}

func (e *TypeMismatchError) Unwrap() error {
	return ErrTypeMismatch
}

// toUint256 converts h after the zero and width checks.
func toUint256(h *big.Int) (*uint256.Int, error) {
	if h == nil || h.Sign() == 0 {
		return nil, ErrInvalidHandle
	}
	if h.Sign() < 0 {
		return nil, ErrMalformedHandle
	}
	v, overflow := uint256.FromBig(h)
	if overflow {
		return nil, ErrMalformedHandle
	}
	return v, nil
}

// TagOf extracts the raw type tag, (h >> 8) mod 256.
func TagOf(h *big.Int) (uint8, error) {
	v, err := toUint256(h)
	if err != nil {
		return 0, err
	}
	b := v.Bytes32()
	return b[typeOffset], nil
}

// Verify checks that h is initialized, fits in 256 bits and carries the
// tag want.
func Verify(h *big.Int, want Type) error {
	tag, err := TagOf(h)
	if err != nil {
		return err
	}
	if Type(tag) != want {
		return &TypeMismatchError{Want: want, Got: Type(tag)}
	}
	return nil
}

// Bytes32 returns the big-endian 32-byte form of h.
func Bytes32(h *big.Int) ([32]byte, error) {
	v, err := toUint256(h)
	if err != nil {
		return [32]byte{}, err
	}
	return v.Bytes32(), nil
}

// FromBytes32 is the inverse of Bytes32.
func FromBytes32(b [32]byte) *big.Int {
	return new(uint256.Int).SetBytes32(b[:]).ToBig()
}

// Compose lays out a handle the way the coprocessor does: a 21-byte digest
// prefix, the output index, the chain id, the type tag and the version.
func Compose(digest [32]byte, chainID uint64, t Type) *big.Int {
	var b [32]byte
	copy(b[:indexOffset], digest[:indexOffset])
	b[indexOffset] = 0
	binary.BigEndian.PutUint64(b[chainIDOffset:typeOffset], chainID)
	b[typeOffset] = uint8(t)
	b[versionOffset] = Version
	return FromBytes32(b)
}

// ChainIDOf returns the chain id embedded in h.
func ChainIDOf(h *big.Int) (uint64, error) {
	b, err := Bytes32(h)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[chainIDOffset:typeOffset]), nil
}

// FitsValue reports whether v is a valid plaintext for t.
func FitsValue(t Type, v *big.Int) error {
	if !t.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(t))
	}
	if v == nil || v.Sign() < 0 || v.BitLen() > t.Bits() {
		return fmt.Errorf("%w: %s holds %d bits", ErrValueOverflow, t, t.Bits())
	}
	return nil
}
