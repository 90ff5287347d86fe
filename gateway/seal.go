// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gateway

import (
	"fmt"

	"github.com/cloudflare/circl/hpke"
)

// Reencryption shares are sealed with RFC 9180 HPKE in base mode.
var (
	sealKEM   = hpke.KEM_X25519_HKDF_SHA256
	sealSuite = hpke.NewSuite(sealKEM, hpke.KDF_HKDF_SHA256, hpke.AEAD_ChaCha20Poly1305)
	sealInfo  = []byte("fhevm reencrypt v0")
)

// GenerateKeypair returns a fresh HPKE keypair in its binary encoding.
func GenerateKeypair() (publicKey, privateKey []byte, err error) {
	pk, sk, err := sealKEM.Scheme().GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	if publicKey, err = pk.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	if privateKey, err = sk.MarshalBinary(); err != nil {
		return nil, nil, err
	}
	return publicKey, privateKey, nil
}

// Seal encrypts plaintext to publicKey, binding aad. The result is
// enc || ciphertext.
func Seal(publicKey, aad, plaintext []byte) ([]byte, error) {
	pk, err := sealKEM.Scheme().UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}

	sender, err := sealSuite.NewSender(pk, sealInfo)
	if err != nil {
		return nil, err
	}
	enc, sealer, err := sender.Setup(nil)
	if err != nil {
		return nil, err
	}
	ciphertext, err := sealer.Seal(plaintext, aad)
	if err != nil {
		return nil, err
	}

	result := make([]byte, len(enc)+len(ciphertext))
	copy(result, enc)
	copy(result[len(enc):], ciphertext)
	return result, nil
}

// Open reverses Seal with the matching private key.
func Open(privateKey, aad, sealed []byte) ([]byte, error) {
	scheme := sealKEM.Scheme()
	sk, err := scheme.UnmarshalBinaryPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPrivateKey, err)
	}

	encLen := scheme.CiphertextSize()
	if len(sealed) < encLen {
		return nil, ErrDecryptionFailed
	}

	receiver, err := sealSuite.NewReceiver(sk, sealInfo)
	if err != nil {
		return nil, err
	}
	opener, err := receiver.Setup(sealed[:encLen])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	plaintext, err := opener.Open(sealed[encLen:], aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
