// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/fhevm-harness/signers"
)

// DefaultThreshold is 2/3 + 1 of n signers, and 1 when no signer set is
// configured.
func DefaultThreshold(n int) int {
	if n == 0 {
		return 1
	}
	return n*2/3 + 1
}

// ShareDigest is the message a KMS signer signs for one share.
func ShareDigest(handle [32]byte, user common.Address, encKey, payload []byte) []byte {
	return crypto.Keccak256(handle[:], user.Bytes(), encKey, payload)
}

// NewShare seals plaintext to encKey and signs it with key.
func NewShare(key *ecdsa.PrivateKey, handle [32]byte, user common.Address, encKey, plaintext []byte) (Share, error) {
	payload, err := Seal(encKey, handle[:], plaintext)
	if err != nil {
		return Share{}, err
	}
	sig, err := crypto.Sign(ShareDigest(handle, user, encKey, payload), key)
	if err != nil {
		return Share{}, err
	}
	sig[crypto.RecoveryIDOffset] += 27
	return Share{
		Payload:   hex.EncodeToString(payload),
		Signature: hex.EncodeToString(sig),
	}, nil
}

// Combine authenticates and opens shares and returns the plaintext agreed on
// by at least threshold distinct KMS signers. Shares that fail to decode,
// verify or open, come from a signer outside kmsSigners, or repeat a signer
// are skipped; their errors are reported only when the threshold is not
// reached. An empty kmsSigners accepts any signer. A non-positive threshold
// uses DefaultThreshold.
func Combine(
	shares []Share,
	handle [32]byte,
	user common.Address,
	publicKey []byte,
	privateKey []byte,
	kmsSigners []common.Address,
	threshold int,
) ([]byte, error) {
	if len(shares) == 0 {
		return nil, ErrNoShares
	}
	if threshold <= 0 {
		threshold = DefaultThreshold(len(kmsSigners))
	}
	allowed := make(map[common.Address]struct{}, len(kmsSigners))
	for _, addr := range kmsSigners {
		allowed[addr] = struct{}{}
	}

	seen := make(map[common.Address]struct{}, len(shares))
	votes := make(map[string]int)
	var rejected []error
	for i, share := range shares {
		plaintext, signer, err := openShare(share, handle, user, publicKey, privateKey, allowed)
		if err == nil {
			if _, dup := seen[signer]; dup {
				err = fmt.Errorf("%w: %s", ErrDuplicateShare, signer.Hex())
			}
		}
		if err != nil {
			rejected = append(rejected, fmt.Errorf("share %d: %w", i, err))
			continue
		}
		seen[signer] = struct{}{}
		votes[string(plaintext)]++
	}

	var (
		best      string
		bestVotes int
	)
	for value, n := range votes {
		if n > bestVotes {
			best, bestVotes = value, n
		}
	}
	if bestVotes < threshold {
		err := fmt.Errorf("%w: %d of %d required", ErrThresholdNotReached, bestVotes, threshold)
		return nil, errors.Join(append([]error{err}, rejected...)...)
	}
	return []byte(best), nil
}

// openShare verifies one share and returns its plaintext and signer.
func openShare(
	share Share,
	handle [32]byte,
	user common.Address,
	publicKey []byte,
	privateKey []byte,
	allowed map[common.Address]struct{},
) ([]byte, common.Address, error) {
	payload, err := decodeHex(share.Payload)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: payload: %v", ErrInvalidShare, err)
	}
	sig, err := decodeHex(share.Signature)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: signature: %v", ErrInvalidShare, err)
	}
	signer, err := signers.RecoverHash(ShareDigest(handle, user, publicKey, payload), sig)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: %v", ErrInvalidShare, err)
	}
	if len(allowed) > 0 {
		if _, ok := allowed[signer]; !ok {
			return nil, common.Address{}, fmt.Errorf("%w: %s", ErrUnknownKMSSigner, signer.Hex())
		}
	}
	plaintext, err := Open(privateKey, handle[:], payload)
	if err != nil {
		return nil, common.Address{}, fmt.Errorf("%w: from %s: %v", ErrInvalidShare, signer.Hex(), err)
	}
	return plaintext, signer, nil
}
