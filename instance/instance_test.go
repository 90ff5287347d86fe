// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package instance

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm-harness/gateway"
	"github.com/luxfi/fhevm-harness/handle"
	"github.com/luxfi/fhevm-harness/kms"
	"github.com/luxfi/fhevm-harness/signers"
)

const (
	chainID  = 9000
	aliceKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

var contract = common.HexToAddress("0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")

func newGateway(t *testing.T) (*kms.KMS, string) {
	t.Helper()
	k, err := kms.New(kms.Config{ChainID: chainID, Seed: []byte("instance test")})
	require.NoError(t, err)
	srv, err := gateway.NewServer(k, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return k, ts.URL
}

type countingTransport struct {
	calls atomic.Int32
}

func (c *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.calls.Add(1)
	return http.DefaultTransport.RoundTrip(req)
}

func TestNew(t *testing.T) {
	_, err := New(Config{ChainID: chainID}, nil)
	require.ErrorIs(t, err, ErrNoGateway)

	_, err = New(Config{ChainID: chainID, GatewayURL: "::"}, nil)
	require.Error(t, err)

	inst, err := New(Config{ChainID: chainID, GatewayURL: "http://localhost:7077", Timeout: time.Second}, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(chainID), inst.ChainID())
}

func TestCreateEIP712(t *testing.T) {
	require := require.New(t)

	inst, err := New(Config{ChainID: chainID, GatewayURL: "http://localhost:7077"}, nil)
	require.NoError(err)

	kp, err := inst.GenerateKeypair()
	require.NoError(err)
	require.NotEmpty(kp.PublicKey)
	require.NotEmpty(kp.PrivateKey)

	data, err := inst.CreateEIP712(kp.PublicKey, contract)
	require.NoError(err)
	require.Equal(gateway.PrimaryType, data.PrimaryType)
	require.Equal(contract.Hex(), data.Domain.VerifyingContract)

	_, err = inst.CreateEIP712("not hex", contract)
	require.ErrorIs(err, gateway.ErrInvalidPublicKey)
}

func TestReencrypt(t *testing.T) {
	require := require.New(t)
	k, url := newGateway(t)

	alice, err := signers.HexToSigner(aliceKey)
	require.NoError(err)

	h, err := k.Encrypt(context.Background(), big.NewInt(99), handle.TypeEuint32, contract, alice.Address())
	require.NoError(err)

	inst, err := New(Config{
		ChainID:    chainID,
		GatewayURL: url,
		KMSSigners: k.SignerAddresses(),
	}, nil)
	require.NoError(err)

	kp, err := inst.GenerateKeypair()
	require.NoError(err)
	data, err := inst.CreateEIP712(kp.PublicKey, contract)
	require.NoError(err)
	sig, err := alice.SignTypedData(context.Background(), data)
	require.NoError(err)

	v, err := inst.Reencrypt(context.Background(), h, kp.PrivateKey, kp.PublicKey, sig, contract, alice.Address())
	require.NoError(err)
	require.Equal(int64(99), v.Int64())

	// The gateway refuses a signature over another key.
	other, err := inst.GenerateKeypair()
	require.NoError(err)
	_, err = inst.Reencrypt(context.Background(), h, other.PrivateKey, other.PublicKey, sig, contract, alice.Address())
	require.ErrorIs(err, gateway.ErrGatewayRejected)

	_, err = inst.Reencrypt(context.Background(), h, "zz", kp.PublicKey, sig, contract, alice.Address())
	require.ErrorIs(err, gateway.ErrInvalidPrivateKey)
}

func TestReencryptRejectsForeignKMS(t *testing.T) {
	require := require.New(t)
	k, url := newGateway(t)

	alice, err := signers.HexToSigner(aliceKey)
	require.NoError(err)
	h, err := k.Encrypt(context.Background(), big.NewInt(1), handle.TypeEbool, contract, alice.Address())
	require.NoError(err)

	inst, err := New(Config{
		ChainID:    chainID,
		GatewayURL: url,
		KMSSigners: []common.Address{common.HexToAddress("0x1111111111111111111111111111111111111111")},
	}, nil)
	require.NoError(err)

	kp, err := inst.GenerateKeypair()
	require.NoError(err)
	data, err := inst.CreateEIP712(kp.PublicKey, contract)
	require.NoError(err)
	sig, err := alice.SignTypedData(context.Background(), data)
	require.NoError(err)

	_, err = inst.Reencrypt(context.Background(), h, kp.PrivateKey, kp.PublicKey, sig, contract, alice.Address())
	require.ErrorIs(err, gateway.ErrUnknownKMSSigner)
}

func TestReencryptUsesConfiguredHTTPClient(t *testing.T) {
	require := require.New(t)
	k, url := newGateway(t)

	alice, err := signers.HexToSigner(aliceKey)
	require.NoError(err)
	h, err := k.Encrypt(context.Background(), big.NewInt(7), handle.TypeEuint8, contract, alice.Address())
	require.NoError(err)

	transport := &countingTransport{}
	inst, err := New(Config{
		ChainID:    chainID,
		GatewayURL: url,
		HTTPClient: &http.Client{Transport: transport},
	}, nil)
	require.NoError(err)

	kp, err := inst.GenerateKeypair()
	require.NoError(err)
	data, err := inst.CreateEIP712(kp.PublicKey, contract)
	require.NoError(err)
	sig, err := alice.SignTypedData(context.Background(), data)
	require.NoError(err)

	v, err := inst.Reencrypt(context.Background(), h, kp.PrivateKey, kp.PublicKey, sig, contract, alice.Address())
	require.NoError(err)
	require.Equal(int64(7), v.Int64())
	require.Equal(int32(1), transport.calls.Load())
}
