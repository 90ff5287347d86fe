// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package handle describes the layout of fhEVM ciphertext handles and the
// encrypted types they can carry.
package handle

import (
	"fmt"
	"strings"
)

// Type is the encrypted type tag stored in byte 30 of a handle.
type Type uint8

// Encrypted type tags - must match the coprocessor's FheType values
const (
	TypeEbool      Type = iota // 1 bit
	TypeEuint4                 // 4 bits
	TypeEuint8                 // 8 bits
	TypeEuint16                // 16 bits
	TypeEuint32                // 32 bits
	TypeEuint64                // 64 bits
	TypeEuint128               // 128 bits
	TypeEuint160               // 160 bits (Ethereum addresses)
	TypeEuint256               // 256 bits
	TypeEbytes64               // 64 bytes
	TypeEbytes128              // 128 bytes
	TypeEbytes256              // 256 bytes

	numTypes
)

// TypeEaddress is an alias for TypeEuint160
const TypeEaddress = TypeEuint160

// Kind is the shape a decrypted value is returned in.
type Kind uint8

const (
	KindUint Kind = iota
	KindBool
	KindAddress
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindAddress:
		return "address"
	default:
		return "uint"
	}
}

type typeInfo struct {
	name string
	bits int
	kind Kind
}

// typeTable is indexed by Type; its length is fixed by numTypes so a new tag
// without a row does not compile.
var typeTable = [numTypes]typeInfo{
	TypeEbool:     {"ebool", 1, KindBool},
	TypeEuint4:    {"euint4", 4, KindUint},
	TypeEuint8:    {"euint8", 8, KindUint},
	TypeEuint16:   {"euint16", 16, KindUint},
	TypeEuint32:   {"euint32", 32, KindUint},
	TypeEuint64:   {"euint64", 64, KindUint},
	TypeEuint128:  {"euint128", 128, KindUint},
	TypeEuint160:  {"eaddress", 160, KindAddress},
	TypeEuint256:  {"euint256", 256, KindUint},
	TypeEbytes64:  {"ebytes64", 512, KindUint},
	TypeEbytes128: {"ebytes128", 1024, KindUint},
	TypeEbytes256: {"ebytes256", 2048, KindUint},
}

// Types returns every supported tag in ascending order.
func Types() []Type {
	out := make([]Type, 0, numTypes)
	for t := Type(0); t < numTypes; t++ {
		out = append(out, t)
	}
	return out
}

// Valid reports whether t is one of the supported tags.
func (t Type) Valid() bool {
	return t < numTypes
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
	return typeTable[t].name
}

// Bits returns the plaintext width of t, or 0 for an unknown tag.
func (t Type) Bits() int {
	if !t.Valid() {
		return 0
	}
	return typeTable[t].bits
}

// Kind returns how a decrypted value of type t is shaped.
func (t Type) Kind() Kind {
	if !t.Valid() {
		return KindUint
	}
	return typeTable[t].kind
}

// ParseType resolves a type name such as "euint8" or "eaddress".
// "euint160" is accepted as the numeric spelling of eaddress.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "euint160" {
		return TypeEuint160, nil
	}
	for t := Type(0); t < numTypes; t++ {
		if typeTable[t].name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, name)
}
