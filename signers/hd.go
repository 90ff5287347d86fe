// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signers

import (
	"crypto/sha512"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/accounts"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultPath is the BIP-44 Ethereum account prefix; the account index
	// is appended to it.
	DefaultPath = "m/44'/60'/0'/0"

	// DefaultCount is the number of accounts derived for a network.
	DefaultCount = 10

	seedIterations = 2048
	seedLength     = 64
)

var ErrEmptyMnemonic = errors.New("empty mnemonic")

// Seed computes the BIP-39 seed of mnemonic.
func Seed(mnemonic, passphrase string) []byte {
	words := strings.Join(strings.Fields(mnemonic), " ")
	password := norm.NFKD.String(words)
	salt := norm.NFKD.String("mnemonic" + passphrase)
	return pbkdf2.Key([]byte(password), []byte(salt), seedIterations, seedLength, sha512.New)
}

// DeriveKey derives the account at path from seed.
func DeriveKey(seed []byte, path accounts.DerivationPath) (*Signer, error) {
	// The network only selects the xprv version bytes, which are unused.
	k, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, err
	}
	for _, index := range path {
		if k, err = k.Derive(index); err != nil {
			return nil, fmt.Errorf("index %d: %w", index, err)
		}
	}
	priv, err := k.ECPrivKey()
	if err != nil {
		return nil, err
	}
	key, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return nil, err
	}
	return NewSigner(key), nil
}

// Derive returns count accounts at basePath/0 .. basePath/count-1.
func Derive(mnemonic, passphrase, basePath string, count int) ([]*Signer, error) {
	if strings.TrimSpace(mnemonic) == "" {
		return nil, ErrEmptyMnemonic
	}
	if basePath == "" {
		basePath = DefaultPath
	}
	if count <= 0 {
		count = DefaultCount
	}
	base, err := accounts.ParseDerivationPath(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid derivation path %q: %w", basePath, err)
	}

	seed := Seed(mnemonic, passphrase)
	out := make([]*Signer, 0, count)
	for i := 0; i < count; i++ {
		path := make(accounts.DerivationPath, len(base), len(base)+1)
		copy(path, base)
		path = append(path, uint32(i))

		signer, err := DeriveKey(seed, path)
		if err != nil {
			return nil, fmt.Errorf("derive %s: %w", path, err)
		}
		out = append(out, signer)
	}
	return out, nil
}
