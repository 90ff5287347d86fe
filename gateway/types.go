// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/geth/common"
)

// Response status values
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	ErrBadRequest          = errors.New("bad reencryption request")
	ErrUnauthorized        = errors.New("reencryption not authorized")
	ErrNotFound            = errors.New("ciphertext not found")
	ErrGatewayStatus       = errors.New("unexpected gateway status")
	ErrGatewayRejected     = errors.New("gateway rejected request")
	ErrInvalidPublicKey    = errors.New("invalid reencryption public key")
	ErrInvalidPrivateKey   = errors.New("invalid reencryption private key")
	ErrDecryptionFailed    = errors.New("share decryption failed")
	ErrNoShares            = errors.New("gateway returned no shares")
	ErrInvalidShare        = errors.New("invalid share")
	ErrUnknownKMSSigner    = errors.New("share signed by unknown KMS signer")
	ErrDuplicateShare      = errors.New("duplicate share from KMS signer")
	ErrThresholdNotReached = errors.New("not enough matching shares")
)

// ReencryptRequest is the body of POST /reencrypt. Binary fields are hex
// without 0x prefix.
type ReencryptRequest struct {
	Signature         string `json:"signature"`
	ClientAddress     string `json:"client_address"`
	EncKey            string `json:"enc_key"`
	CiphertextHandle  string `json:"ciphertext_handle"`
	VerifyingContract string `json:"eip712_verifying_contract"`
	ChainID           uint64 `json:"chain_id,omitempty"`
}

// ReencryptResponse carries one share per responding KMS signer.
type ReencryptResponse struct {
	Status   string  `json:"status"`
	Response []Share `json:"response,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// Share is a plaintext sealed to the requester's key and signed by one KMS
// signer. Both fields are hex.
type Share struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
}

// NewReencryptRequest encodes a request for the wire.
func NewReencryptRequest(
	handle [32]byte,
	user common.Address,
	contract common.Address,
	chainID uint64,
	publicKey []byte,
	signature []byte,
) *ReencryptRequest {
	return &ReencryptRequest{
		Signature:         hex.EncodeToString(signature),
		ClientAddress:     user.Hex(),
		EncKey:            hex.EncodeToString(publicKey),
		CiphertextHandle:  hex.EncodeToString(handle[:]),
		VerifyingContract: contract.Hex(),
		ChainID:           chainID,
	}
}

// ParsedRequest is a decoded ReencryptRequest.
type ParsedRequest struct {
	Handle    [32]byte
	User      common.Address
	Contract  common.Address
	ChainID   uint64
	PublicKey []byte
	Signature []byte
}

// Parse validates and decodes the request fields.
func (r *ReencryptRequest) Parse() (*ParsedRequest, error) {
	sig, err := decodeHex(r.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature: %v", ErrBadRequest, err)
	}
	encKey, err := decodeHex(r.EncKey)
	if err != nil || len(encKey) == 0 {
		return nil, fmt.Errorf("%w: enc_key", ErrBadRequest)
	}
	h, err := decodeHex(r.CiphertextHandle)
	if err != nil || len(h) != 32 {
		return nil, fmt.Errorf("%w: ciphertext_handle must be 32 bytes", ErrBadRequest)
	}
	if !common.IsHexAddress(r.ClientAddress) {
		return nil, fmt.Errorf("%w: client_address", ErrBadRequest)
	}
	if !common.IsHexAddress(r.VerifyingContract) {
		return nil, fmt.Errorf("%w: eip712_verifying_contract", ErrBadRequest)
	}

	parsed := &ParsedRequest{
		User:      common.HexToAddress(r.ClientAddress),
		Contract:  common.HexToAddress(r.VerifyingContract),
		ChainID:   r.ChainID,
		PublicKey: encKey,
		Signature: sig,
	}
	copy(parsed.Handle[:], h)
	return parsed, nil
}

func decodeHex(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}
