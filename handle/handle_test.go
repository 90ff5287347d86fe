// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handle

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func handleWithTag(tag uint8) *big.Int {
	var digest [32]byte
	for i := range digest {
		digest[i] = 0xab
	}
	h := Compose(digest, 9000, Type(tag))
	return h
}

func TestTypeTable(t *testing.T) {
	tests := []struct {
		typ  Type
		tag  uint8
		name string
		bits int
		kind Kind
	}{
		{TypeEbool, 0, "ebool", 1, KindBool},
		{TypeEuint4, 1, "euint4", 4, KindUint},
		{TypeEuint8, 2, "euint8", 8, KindUint},
		{TypeEuint16, 3, "euint16", 16, KindUint},
		{TypeEuint32, 4, "euint32", 32, KindUint},
		{TypeEuint64, 5, "euint64", 64, KindUint},
		{TypeEuint128, 6, "euint128", 128, KindUint},
		{TypeEaddress, 7, "eaddress", 160, KindAddress},
		{TypeEuint256, 8, "euint256", 256, KindUint},
		{TypeEbytes64, 9, "ebytes64", 512, KindUint},
		{TypeEbytes128, 10, "ebytes128", 1024, KindUint},
		{TypeEbytes256, 11, "ebytes256", 2048, KindUint},
	}

	require.Len(t, Types(), len(tests))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.tag, uint8(tt.typ))
			require.True(t, tt.typ.Valid())
			require.Equal(t, tt.name, tt.typ.String())
			require.Equal(t, tt.bits, tt.typ.Bits())
			require.Equal(t, tt.kind, tt.typ.Kind())

			parsed, err := ParseType(tt.name)
			require.NoError(t, err)
			require.Equal(t, tt.typ, parsed)
		})
	}

	require.False(t, Type(12).Valid())
	require.Equal(t, "unknown(12)", Type(12).String())
	require.Zero(t, Type(200).Bits())
}

func TestParseType(t *testing.T) {
	typ, err := ParseType(" EUINT160 ")
	require.NoError(t, err)
	require.Equal(t, TypeEaddress, typ)

	_, err = ParseType("euint512")
	require.ErrorIs(t, err, ErrUnknownType)
}

func TestVerify(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		for _, typ := range Types() {
			require.ErrorIs(t, Verify(big.NewInt(0), typ), ErrInvalidHandle)
		}
		require.ErrorIs(t, Verify(nil, TypeEbool), ErrInvalidHandle)
	})

	t.Run("wider than 256 bits", func(t *testing.T) {
		h := new(big.Int).Lsh(big.NewInt(1), 256)
		require.Equal(t, 257, h.BitLen())
		for _, typ := range Types() {
			require.ErrorIs(t, Verify(h, typ), ErrMalformedHandle)
		}
	})

	t.Run("exactly 256 bits", func(t *testing.T) {
		h := new(big.Int).Lsh(big.NewInt(1), 255)
		h.Or(h, big.NewInt(int64(TypeEuint64)<<8))
		require.NoError(t, Verify(h, TypeEuint64))
	})

	t.Run("negative", func(t *testing.T) {
		require.ErrorIs(t, Verify(big.NewInt(-512), TypeEuint8), ErrMalformedHandle)
	})

	t.Run("tag grid", func(t *testing.T) {
		for _, want := range Types() {
			for _, got := range Types() {
				err := Verify(handleWithTag(uint8(got)), want)
				if want == got {
					require.NoError(t, err)
					continue
				}
				require.ErrorIs(t, err, ErrTypeMismatch)
				var mismatch *TypeMismatchError
				require.True(t, errors.As(err, &mismatch))
				require.Equal(t, want, mismatch.Want)
				require.Equal(t, got, mismatch.Got)
			}
		}
	})

	t.Run("unknown tag", func(t *testing.T) {
		err := Verify(handleWithTag(42), TypeEuint8)
		require.ErrorIs(t, err, ErrTypeMismatch)
		require.Contains(t, err.Error(), "unknown(42)")
	})

	t.Run("tag from low bytes only", func(t *testing.T) {
		// (h >> 8) % 256 ignores everything above byte 30
		h := big.NewInt(0x0300)
		require.NoError(t, Verify(h, TypeEuint16))
	})
}

func TestCompose(t *testing.T) {
	var digest [32]byte
	for i := range digest {
		digest[i] = byte(i + 1)
	}
	h := Compose(digest, 12345, TypeEbytes128)

	tag, err := TagOf(h)
	require.NoError(t, err)
	require.Equal(t, uint8(TypeEbytes128), tag)

	chainID, err := ChainIDOf(h)
	require.NoError(t, err)
	require.Equal(t, uint64(12345), chainID)

	b, err := Bytes32(h)
	require.NoError(t, err)
	require.Equal(t, digest[:21], b[:21])
	require.Zero(t, b[21])
	require.Equal(t, Version, b[31])
	require.Zero(t, FromBytes32(b).Cmp(h))
}

func TestFitsValue(t *testing.T) {
	require.NoError(t, FitsValue(TypeEbool, big.NewInt(1)))
	require.ErrorIs(t, FitsValue(TypeEbool, big.NewInt(2)), ErrValueOverflow)
	require.NoError(t, FitsValue(TypeEuint4, big.NewInt(15)))
	require.ErrorIs(t, FitsValue(TypeEuint4, big.NewInt(16)), ErrValueOverflow)
	require.ErrorIs(t, FitsValue(TypeEuint8, big.NewInt(-1)), ErrValueOverflow)
	require.ErrorIs(t, FitsValue(Type(99), big.NewInt(1)), ErrUnknownType)

	max2048 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 2048), big.NewInt(1))
	require.NoError(t, FitsValue(TypeEbytes256, max2048))
}

func TestDecode(t *testing.T) {
	require.True(t, DecodeBool(big.NewInt(1)))
	require.False(t, DecodeBool(big.NewInt(0)))
	require.False(t, DecodeBool(big.NewInt(2)))
	require.False(t, DecodeBool(nil))

	addr := FormatAddress(big.NewInt(255))
	require.Equal(t, "0x00000000000000000000000000000000000000ff", addr)
	require.Len(t, addr, 42)

	full, ok := new(big.Int).SetString("f39fd6e51aad88f6f4ce6ab8827279cfffb92266", 16)
	require.True(t, ok)
	require.Equal(t, "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266", FormatAddress(full))
	require.Equal(t, "0x0000000000000000000000000000000000000000", FormatAddress(big.NewInt(0)))
}
