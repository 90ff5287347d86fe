// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package kms is an in-process stand-in for the coprocessor and the
// threshold key management service. It keeps plaintexts in a database keyed
// by handle, enforces the ACL, and answers reencryption requests with one
// sealed and signed share per KMS signer.
package kms

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	luxcrypto "github.com/luxfi/crypto"
	"github.com/luxfi/database"
	"github.com/luxfi/database/memdb"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/fhevm-harness/gateway"
	"github.com/luxfi/fhevm-harness/handle"
)

const (
	// DefaultNumSigners is the size of the KMS signer set when none is given.
	DefaultNumSigners = 4

	signerKeyContext = "fhevm-harness 2025 kms signer key"
)

// Database key prefixes
var (
	ciphertextPrefix = []byte("c")
	aclPrefix        = []byte("a")
	noncePrefix      = []byte("n")
)

var (
	ErrNoSeed          = errors.New("kms seed is empty")
	ErrInvalidSigners  = errors.New("number of kms signers must be positive")
	ErrChainIDMismatch = errors.New("handle belongs to another chain")
)

var _ gateway.Backend = (*KMS)(nil)

// Config configures a KMS.
type Config struct {
	ChainID uint64
	Seed    []byte
	// NumSigners is the size of the signer set; zero means
	// DefaultNumSigners.
	NumSigners int
}

// Option configures optional KMS dependencies.
type Option func(*KMS)

// WithDatabase stores ciphertexts and ACL entries in db instead of memory.
func WithDatabase(db database.Database) Option {
	return func(k *KMS) { k.db = db }
}

// WithLogger sets the KMS logger.
func WithLogger(l log.Logger) Option {
	return func(k *KMS) { k.log = l }
}

// KMS holds plaintexts by handle and serves reencryption shares.
type KMS struct {
	chainID uint64
	keys    []*ecdsa.PrivateKey
	signers []common.Address
	db      database.Database
	log     log.Logger

	// mu serializes nonce allocation.
	mu sync.Mutex
}

// New creates a KMS whose signer keys are derived from cfg.Seed.
func New(cfg Config, opts ...Option) (*KMS, error) {
	if len(cfg.Seed) == 0 {
		return nil, ErrNoSeed
	}
	n := cfg.NumSigners
	if n == 0 {
		n = DefaultNumSigners
	}
	if n < 0 {
		return nil, ErrInvalidSigners
	}

	k := &KMS{
		chainID: cfg.ChainID,
		keys:    make([]*ecdsa.PrivateKey, n),
		signers: make([]common.Address, n),
		db:      memdb.New(),
		log:     log.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(k)
	}

	for i := range k.keys {
		key, err := deriveSignerKey(cfg.Seed, i)
		if err != nil {
			return nil, fmt.Errorf("derive kms signer %d: %w", i, err)
		}
		k.keys[i] = key
		k.signers[i] = common.Address(luxcrypto.PubkeyToAddress(key.PublicKey))
	}
	k.log.Info("kms ready", "chainID", k.chainID, "signers", n)
	return k, nil
}

// deriveSignerKey expands seed into the i-th signer key. A derived scalar
// outside the curve order is retried with the next counter.
func deriveSignerKey(seed []byte, i int) (*ecdsa.PrivateKey, error) {
	material := make([]byte, len(seed)+8)
	copy(material, seed)
	for attempt := uint32(0); attempt < 16; attempt++ {
		binary.BigEndian.PutUint32(material[len(seed):], uint32(i))
		binary.BigEndian.PutUint32(material[len(seed)+4:], attempt)

		var out [32]byte
		blake3.DeriveKey(signerKeyContext, material, out[:])
		key, err := luxcrypto.ToECDSA(out[:])
		if err == nil {
			return key, nil
		}
	}
	return nil, errors.New("no valid key")
}

// ChainID returns the chain the KMS mints handles for.
func (k *KMS) ChainID() uint64 {
	return k.chainID
}

// SignerAddresses returns the KMS signer set in order.
func (k *KMS) SignerAddresses() []common.Address {
	out := make([]common.Address, len(k.signers))
	copy(out, k.signers)
	return out
}

// Encrypt stores value as a ciphertext of type t and grants user and
// contract access to it. It returns the new handle.
func (k *KMS) Encrypt(ctx context.Context, value *big.Int, t handle.Type, contract, user common.Address) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := handle.FitsValue(t, value); err != nil {
		return nil, err
	}

	nonce, err := k.nextNonce()
	if err != nil {
		return nil, err
	}
	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)

	var digest [32]byte
	copy(digest[:], luxcrypto.Keccak256(nonceBytes[:], contract.Bytes(), user.Bytes(), []byte{uint8(t)}))
	h := handle.Compose(digest, k.chainID, t)
	key, err := handle.Bytes32(h)
	if err != nil {
		return nil, err
	}

	batch := k.db.NewBatch()
	if err := batch.Put(ciphertextKey(key), value.Bytes()); err != nil {
		return nil, err
	}
	for _, account := range []common.Address{user, contract} {
		if err := batch.Put(aclKey(key, account), []byte{1}); err != nil {
			return nil, err
		}
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}

	k.log.Debug("encrypted value",
		"handle", common.Hash(key).Hex(),
		"type", t,
		"contract", contract,
		"user", user,
	)
	return h, nil
}

func (k *KMS) nextNonce() (uint64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	var nonce uint64
	raw, err := k.db.Get(noncePrefix)
	switch {
	case err == nil:
		nonce = binary.BigEndian.Uint64(raw)
	case errors.Is(err, database.ErrNotFound):
	default:
		return 0, err
	}

	var next [8]byte
	binary.BigEndian.PutUint64(next[:], nonce+1)
	if err := k.db.Put(noncePrefix, next[:]); err != nil {
		return 0, err
	}
	return nonce, nil
}

// Allow grants account access to the ciphertext behind h.
func (k *KMS) Allow(h *big.Int, account common.Address) error {
	key, err := handle.Bytes32(h)
	if err != nil {
		return err
	}
	ok, err := k.db.Has(ciphertextKey(key))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", gateway.ErrNotFound, common.Hash(key).Hex())
	}
	return k.db.Put(aclKey(key, account), []byte{1})
}

// IsAllowed reports whether account may read the ciphertext behind key.
func (k *KMS) IsAllowed(key [32]byte, account common.Address) (bool, error) {
	return k.db.Has(aclKey(key, account))
}

func (k *KMS) plaintext(key [32]byte) ([]byte, error) {
	value, err := k.db.Get(ciphertextKey(key))
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", gateway.ErrNotFound, common.Hash(key).Hex())
	}
	return value, err
}

// Reencrypt checks the EIP-712 authorization and the ACL, then returns one
// share of the plaintext per KMS signer.
func (k *KMS) Reencrypt(ctx context.Context, req *gateway.ReencryptRequest) ([]gateway.Share, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	parsed, err := req.Parse()
	if err != nil {
		return nil, err
	}
	if parsed.ChainID != 0 && parsed.ChainID != k.chainID {
		return nil, fmt.Errorf("%w: chain %d", gateway.ErrBadRequest, parsed.ChainID)
	}

	h := handle.FromBytes32(parsed.Handle)
	if chainID, err := handle.ChainIDOf(h); err != nil || chainID != k.chainID {
		return nil, fmt.Errorf("%w: %w", gateway.ErrNotFound, ErrChainIDMismatch)
	}
	plaintext, err := k.plaintext(parsed.Handle)
	if err != nil {
		return nil, err
	}

	data := gateway.ReencryptTypedData(k.chainID, parsed.PublicKey, parsed.Contract)
	signer, err := gateway.RecoverSigner(data, parsed.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrUnauthorized, err)
	}
	if signer != parsed.User {
		return nil, fmt.Errorf("%w: signed by %s, not %s", gateway.ErrUnauthorized, signer.Hex(), parsed.User.Hex())
	}

	for _, account := range []common.Address{parsed.User, parsed.Contract} {
		ok, err := k.IsAllowed(parsed.Handle, account)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s may not read %s", gateway.ErrUnauthorized, account.Hex(), common.Hash(parsed.Handle).Hex())
		}
	}

	shares := make([]gateway.Share, len(k.keys))
	for i, key := range k.keys {
		share, err := gateway.NewShare(key, parsed.Handle, parsed.User, parsed.PublicKey, plaintext)
		if err != nil {
			if errors.Is(err, gateway.ErrInvalidPublicKey) {
				return nil, fmt.Errorf("%w: %w", gateway.ErrBadRequest, err)
			}
			return nil, err
		}
		shares[i] = share
	}

	k.log.Debug("reencrypted",
		"handle", common.Hash(parsed.Handle).Hex(),
		"user", parsed.User,
		"contract", parsed.Contract,
	)
	return shares, nil
}

func ciphertextKey(h [32]byte) []byte {
	return append(append([]byte{}, ciphertextPrefix...), h[:]...)
}

func aclKey(h [32]byte, account common.Address) []byte {
	key := make([]byte, 0, len(aclPrefix)+len(h)+common.AddressLength)
	key = append(key, aclPrefix...)
	key = append(key, h[:]...)
	return append(key, account.Bytes()...)
}
