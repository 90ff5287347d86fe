// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package instance is an FHE client that runs the reencryption exchange
// against a KMS gateway.
package instance

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"
	log "github.com/luxfi/log"

	"github.com/luxfi/fhevm-harness/gateway"
	"github.com/luxfi/fhevm-harness/handle"
	"github.com/luxfi/fhevm-harness/reencrypt"
)

var ErrNoGateway = errors.New("gateway url is required")

var _ reencrypt.Instance = (*Instance)(nil)

// Config configures an Instance.
type Config struct {
	ChainID    uint64
	GatewayURL string
	// KMSSigners restricts which signers' shares are accepted. Empty accepts
	// any signer.
	KMSSigners []common.Address
	// Threshold is the number of agreeing shares required. Zero uses
	// gateway.DefaultThreshold.
	Threshold int
	Timeout   time.Duration
	// HTTPClient replaces the default gateway transport when set.
	HTTPClient *http.Client
}

// Instance implements reencrypt.Instance over a gateway client.
type Instance struct {
	chainID    uint64
	kmsSigners []common.Address
	threshold  int
	client     *gateway.Client
	log        log.Logger
}

// New creates an Instance. logger may be nil.
func New(cfg Config, logger log.Logger) (*Instance, error) {
	if cfg.GatewayURL == "" {
		return nil, ErrNoGateway
	}
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	opts := []gateway.ClientOption{
		gateway.WithLogger(logger),
		gateway.WithHTTPClient(cfg.HTTPClient),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gateway.WithTimeout(cfg.Timeout))
	}
	client, err := gateway.NewClient(cfg.GatewayURL, opts...)
	if err != nil {
		return nil, err
	}
	return &Instance{
		chainID:    cfg.ChainID,
		kmsSigners: append([]common.Address(nil), cfg.KMSSigners...),
		threshold:  cfg.Threshold,
		client:     client,
		log:        logger,
	}, nil
}

// ChainID returns the chain the instance authorizes reencryptions for.
func (i *Instance) ChainID() uint64 {
	return i.chainID
}

// GenerateKeypair returns a fresh HPKE keypair as hex.
func (i *Instance) GenerateKeypair() (reencrypt.Keypair, error) {
	pub, priv, err := gateway.GenerateKeypair()
	if err != nil {
		return reencrypt.Keypair{}, err
	}
	return reencrypt.Keypair{
		PublicKey:  hex.EncodeToString(pub),
		PrivateKey: hex.EncodeToString(priv),
	}, nil
}

// CreateEIP712 builds the authorization letting publicKey receive
// plaintexts of handles held by contract.
func (i *Instance) CreateEIP712(publicKey string, contract common.Address) (apitypes.TypedData, error) {
	pub, err := decodeKey(publicKey)
	if err != nil {
		return apitypes.TypedData{}, fmt.Errorf("%w: %v", gateway.ErrInvalidPublicKey, err)
	}
	return gateway.ReencryptTypedData(i.chainID, pub, contract), nil
}

// Reencrypt asks the gateway for shares of h, checks them against the KMS
// signer set, and returns the plaintext.
func (i *Instance) Reencrypt(
	ctx context.Context,
	h *big.Int,
	privateKey string,
	publicKey string,
	signature []byte,
	contract common.Address,
	user common.Address,
) (*big.Int, error) {
	b, err := handle.Bytes32(h)
	if err != nil {
		return nil, err
	}
	pub, err := decodeKey(publicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidPublicKey, err)
	}
	priv, err := decodeKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gateway.ErrInvalidPrivateKey, err)
	}

	req := gateway.NewReencryptRequest(b, user, contract, i.chainID, pub, signature)
	shares, err := i.client.Reencrypt(ctx, req)
	if err != nil {
		return nil, err
	}
	plaintext, err := gateway.Combine(shares, b, user, pub, priv, i.kmsSigners, i.threshold)
	if err != nil {
		return nil, err
	}

	i.log.Debug("reencrypted handle",
		"handle", common.Hash(b).Hex(),
		"user", user,
		"shares", len(shares),
	)
	return new(big.Int).SetBytes(plaintext), nil
}

func decodeKey(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(s, "0x"))
}
