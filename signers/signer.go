// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package signers provides the named test accounts used to authorize
// reencryption requests.
package signers

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"
)

// AccountName is a role name bound to one test account.
type AccountName string

// Role names, in account index order
const (
	Alice AccountName = "alice"
	Bob   AccountName = "bob"
	Carol AccountName = "carol"
	Dave  AccountName = "dave"
	Eve   AccountName = "eve"
	Fred  AccountName = "fred"
)

// AccountNames lists every role; account i of a derived wallet is bound to
// AccountNames[i].
var AccountNames = []AccountName{Alice, Bob, Carol, Dave, Eve, Fred}

var (
	ErrUnknownSigner    = errors.New("unknown signer")
	ErrUnknownAccount   = errors.New("unknown account name")
	ErrNoAccounts       = errors.New("no accounts")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Valid reports whether n is one of AccountNames.
func (n AccountName) Valid() bool {
	for _, name := range AccountNames {
		if name == n {
			return true
		}
	}
	return false
}

// ParseAccountName resolves a role name case-insensitively.
func ParseAccountName(s string) (AccountName, error) {
	n := AccountName(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownAccount, s)
	}
	return n, nil
}

// TypedDataSigner can identify itself and produce EIP-712 signatures.
type TypedDataSigner interface {
	Address() common.Address
	SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error)
}

// Set maps role names to signers.
type Set map[AccountName]TypedDataSigner

// Lookup returns the signer bound to name.
func (s Set) Lookup(name AccountName) (TypedDataSigner, error) {
	signer, ok := s[name]
	if !ok || signer == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigner, name)
	}
	return signer, nil
}

// NewSet binds accounts to role names in order. Accounts beyond the last
// role are ignored.
func NewSet(accounts []*Signer) (Set, error) {
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	set := make(Set, len(AccountNames))
	for i, name := range AccountNames {
		if i >= len(accounts) {
			break
		}
		set[name] = accounts[i]
	}
	return set, nil
}

// Signer is a local secp256k1 account.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

var _ TypedDataSigner = (*Signer)(nil)

// NewSigner wraps a private key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{
		key:     key,
		address: common.Address(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// HexToSigner parses a hex private key, with or without 0x prefix.
func HexToSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewSigner(key), nil
}

// Address returns the account address.
func (s *Signer) Address() common.Address {
	return s.address
}

// PrivateKey returns the underlying key.
func (s *Signer) PrivateKey() *ecdsa.PrivateKey {
	return s.key
}

// SignTypedData signs the EIP-712 hash of data. The returned signature is
// r || s || v with v in {27, 28}.
func (s *Signer) SignTypedData(ctx context.Context, data apitypes.TypedData) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hash, _, err := apitypes.TypedDataAndHash(data)
	if err != nil {
		return nil, fmt.Errorf("hash typed data: %w", err)
	}
	return s.SignHash(hash)
}

// SignHash signs a 32-byte digest.
func (s *Signer) SignHash(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// RecoverHash returns the address that produced sig over hash. It accepts v
// in either {0, 1} or {27, 28}.
func RecoverHash(hash, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(hash, normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return common.Address(crypto.PubkeyToAddress(*pub)), nil
}
