// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package gateway implements the reencryption exchange between a client and
// the KMS gateway: the EIP-712 authorization, HPKE sealing of plaintext
// shares, the JSON wire format, and an HTTP client and server.
package gateway

import (
	"fmt"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/common/hexutil"
	"github.com/luxfi/geth/signer/core/apitypes"
	"github.com/luxfi/math"

	"github.com/luxfi/fhevm-harness/signers"
)

// EIP-712 domain of a reencryption authorization
const (
	DomainName    = "Authorization token"
	DomainVersion = "1"
	PrimaryType   = "Reencrypt"
)

// ReencryptTypedData builds the authorization a user signs to let publicKey
// receive plaintexts of handles held by contract.
func ReencryptTypedData(chainID uint64, publicKey []byte, contract common.Address) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			PrimaryType: {
				{Name: "publicKey", Type: "bytes"},
			},
		},
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           math.NewHexOrDecimal256(int64(chainID)),
			VerifyingContract: contract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"publicKey": hexutil.Encode(publicKey),
		},
	}
}

// RecoverSigner returns the account that signed data.
func RecoverSigner(data apitypes.TypedData, sig []byte) (common.Address, error) {
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return common.Address{}, fmt.Errorf("hash typed data: %w", err)
	}
	return signers.RecoverHash(hash, sig)
}
