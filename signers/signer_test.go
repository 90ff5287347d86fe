// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package signers

import (
	"context"
	"testing"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
	"github.com/luxfi/geth/signer/core/apitypes"
	"github.com/luxfi/math"
	"github.com/stretchr/testify/require"
)

const hardhatMnemonic = "test test test test test test test test test test test junk"

func testTypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
				{Name: "verifyingContract", Type: "address"},
			},
			"Reencrypt": {
				{Name: "publicKey", Type: "bytes"},
			},
		},
		PrimaryType: "Reencrypt",
		Domain: apitypes.TypedDataDomain{
			Name:              "Authorization token",
			Version:           "1",
			ChainId:           math.NewHexOrDecimal256(9000),
			VerifyingContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		},
		Message: apitypes.TypedDataMessage{
			"publicKey": "0x0102030405",
		},
	}
}

func TestDeriveHardhatAccounts(t *testing.T) {
	accounts, err := Derive(hardhatMnemonic, "", DefaultPath, 3)
	require.NoError(t, err)
	require.Len(t, accounts, 3)

	require.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), accounts[0].Address())
	require.Equal(t, common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"), accounts[1].Address())
	require.Equal(t, common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC"), accounts[2].Address())
	require.Equal(t,
		"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
		common.Bytes2Hex(crypto.FromECDSA(accounts[0].PrivateKey())),
	)
}

func TestDeriveDefaults(t *testing.T) {
	accounts, err := Derive(hardhatMnemonic, "", "", 0)
	require.NoError(t, err)
	require.Len(t, accounts, DefaultCount)

	_, err = Derive("  ", "", DefaultPath, 1)
	require.ErrorIs(t, err, ErrEmptyMnemonic)

	_, err = Derive(hardhatMnemonic, "", "m/not/a/path", 1)
	require.Error(t, err)
}

func TestDerivePassphraseChangesAccounts(t *testing.T) {
	plain, err := Derive(hardhatMnemonic, "", DefaultPath, 1)
	require.NoError(t, err)
	salted, err := Derive(hardhatMnemonic, "salt", DefaultPath, 1)
	require.NoError(t, err)
	require.NotEqual(t, plain[0].Address(), salted[0].Address())
}

func TestSetLookup(t *testing.T) {
	accounts, err := Derive(hardhatMnemonic, "", DefaultPath, 2)
	require.NoError(t, err)

	set, err := NewSet(accounts)
	require.NoError(t, err)
	require.Len(t, set, 2)

	alice, err := set.Lookup(Alice)
	require.NoError(t, err)
	require.Equal(t, accounts[0].Address(), alice.Address())

	bob, err := set.Lookup(Bob)
	require.NoError(t, err)
	require.Equal(t, accounts[1].Address(), bob.Address())

	_, err = set.Lookup(Carol)
	require.ErrorIs(t, err, ErrUnknownSigner)
	require.Contains(t, err.Error(), "carol")

	_, err = NewSet(nil)
	require.ErrorIs(t, err, ErrNoAccounts)
}

func TestNewSetIgnoresExtraAccounts(t *testing.T) {
	accounts, err := Derive(hardhatMnemonic, "", DefaultPath, DefaultCount)
	require.NoError(t, err)

	set, err := NewSet(accounts)
	require.NoError(t, err)
	require.Len(t, set, len(AccountNames))

	fred, err := set.Lookup(Fred)
	require.NoError(t, err)
	require.Equal(t, accounts[5].Address(), fred.Address())
}

func TestParseAccountName(t *testing.T) {
	name, err := ParseAccountName(" Alice ")
	require.NoError(t, err)
	require.Equal(t, Alice, name)

	_, err = ParseAccountName("mallory")
	require.ErrorIs(t, err, ErrUnknownAccount)
}

func TestSignTypedData(t *testing.T) {
	signer, err := HexToSigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	data := testTypedData()
	sig, err := signer.SignTypedData(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	require.Contains(t, []byte{27, 28}, sig[crypto.RecoveryIDOffset])

	hash, _, err := apitypes.TypedDataAndHash(data)
	require.NoError(t, err)
	recovered, err := RecoverHash(hash, sig)
	require.NoError(t, err)
	require.Equal(t, signer.Address(), recovered)

	// a different message recovers to a different address
	data.Message["publicKey"] = "0x0607"
	other, _, err := apitypes.TypedDataAndHash(data)
	require.NoError(t, err)
	recovered, err = RecoverHash(other, sig)
	require.NoError(t, err)
	require.NotEqual(t, signer.Address(), recovered)
}

func TestSignTypedDataCanceled(t *testing.T) {
	signer, err := HexToSigner("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = signer.SignTypedData(ctx, testTypedData())
	require.ErrorIs(t, err, context.Canceled)
}

func TestRecoverHashRejectsShortSignature(t *testing.T) {
	_, err := RecoverHash(make([]byte, 32), make([]byte, 10))
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestHexToSignerInvalid(t *testing.T) {
	_, err := HexToSigner("0xzz")
	require.Error(t, err)
}
