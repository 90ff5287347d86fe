// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reencrypt decrypts encrypted handles on behalf of a test account.
//
// Every function checks the handle's type tag before any key generation,
// signing or network exchange, so a handle of the wrong type fails fast
// instead of decoding into a plausible but meaningless value. Each call uses
// a fresh keypair; nothing is cached between calls and calls may run in
// parallel.
package reencrypt

import (
	"context"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"

	"github.com/luxfi/fhevm-harness/handle"
	"github.com/luxfi/fhevm-harness/signers"
)

// Keypair is a reencryption keypair in hex.
type Keypair struct {
	PublicKey  string
	PrivateKey string
}

// Instance is an FHE client able to run the reencryption exchange.
type Instance interface {
	GenerateKeypair() (Keypair, error)
	CreateEIP712(publicKey string, contract common.Address) (apitypes.TypedData, error)
	Reencrypt(
		ctx context.Context,
		h *big.Int,
		privateKey string,
		publicKey string,
		signature []byte,
		contract common.Address,
		user common.Address,
	) (*big.Int, error)
}

// reencryptHandle runs the exchange for a handle of type t and returns the
// raw plaintext integer.
func reencryptHandle(
	ctx context.Context,
	set signers.Set,
	instance Instance,
	name signers.AccountName,
	h *big.Int,
	t handle.Type,
	contract common.Address,
) (*big.Int, error) {
	if err := handle.Verify(h, t); err != nil {
		return nil, err
	}
	signer, err := set.Lookup(name)
	if err != nil {
		return nil, err
	}

	keypair, err := instance.GenerateKeypair()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	data, err := instance.CreateEIP712(keypair.PublicKey, contract)
	if err != nil {
		return nil, fmt.Errorf("create eip712: %w", err)
	}
	signature, err := signer.SignTypedData(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("sign reencryption as %s: %w", name, err)
	}

	value, err := instance.Reencrypt(ctx, h, keypair.PrivateKey, keypair.PublicKey, signature, contract, signer.Address())
	if err != nil {
		return nil, fmt.Errorf("reencrypt %s: %w", t, err)
	}
	return value, nil
}

// Ebool decrypts an ebool handle.
func Ebool(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (bool, error) {
	v, err := reencryptHandle(ctx, set, instance, name, h, handle.TypeEbool, contract)
	if err != nil {
		return false, err
	}
	return handle.DecodeBool(v), nil
}

// Euint4 decrypts an euint4 handle.
func Euint4(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint4, contract)
}

// Euint8 decrypts an euint8 handle.
func Euint8(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint8, contract)
}

// Euint16 decrypts an euint16 handle.
func Euint16(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint16, contract)
}

// Euint32 decrypts an euint32 handle.
func Euint32(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint32, contract)
}

// Euint64 decrypts an euint64 handle.
func Euint64(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint64, contract)
}

// Euint128 decrypts an euint128 handle.
func Euint128(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint128, contract)
}

// Euint256 decrypts an euint256 handle.
func Euint256(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEuint256, contract)
}

// Eaddress decrypts an eaddress handle into a 0x-prefixed, 40 digit
// lowercase hex string.
func Eaddress(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (string, error) {
	v, err := reencryptHandle(ctx, set, instance, name, h, handle.TypeEaddress, contract)
	if err != nil {
		return "", err
	}
	return handle.FormatAddress(v), nil
}

// Ebytes64 decrypts an ebytes64 handle.
func Ebytes64(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEbytes64, contract)
}

// Ebytes128 decrypts an ebytes128 handle.
func Ebytes128(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEbytes128, contract)
}

// Ebytes256 decrypts an ebytes256 handle.
func Ebytes256(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, contract common.Address) (*big.Int, error) {
	return reencryptHandle(ctx, set, instance, name, h, handle.TypeEbytes256, contract)
}

// Decode decrypts h as type t and shapes the result: bool for ebool, string
// for eaddress and *big.Int otherwise.
func Decode(ctx context.Context, set signers.Set, instance Instance, name signers.AccountName, h *big.Int, t handle.Type, contract common.Address) (any, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", handle.ErrUnknownType, uint8(t))
	}
	v, err := reencryptHandle(ctx, set, instance, name, h, t, contract)
	if err != nil {
		return nil, err
	}
	switch t.Kind() {
	case handle.KindBool:
		return handle.DecodeBool(v), nil
	case handle.KindAddress:
		return handle.FormatAddress(v), nil
	default:
		return v, nil
	}
}
