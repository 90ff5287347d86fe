// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/fhevm-harness/config"
	"github.com/luxfi/fhevm-harness/deploy"
	"github.com/luxfi/fhevm-harness/kms"
	"github.com/luxfi/fhevm-harness/logging"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	alice        = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	contract     = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

func setEnv(t *testing.T) {
	t.Helper()
	t.Setenv(config.EnvDotenvPath, filepath.Join(t.TempDir(), "none.env"))
	t.Setenv(config.EnvMnemonic, testMnemonic)
	t.Setenv(config.EnvFHEVMDeployerKey, "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv(config.EnvGatewayDeployerKey, "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out, io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAccountsCmd(t *testing.T) {
	setEnv(t)

	out, err := run(t, "accounts")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, config.DefaultAccountCount)
	require.Equal(t, alice, lines[0])

	out, err = run(t, "accounts", "--named")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "alice  "+alice+"\n"))
	require.Contains(t, out, "bob    0x70997970C51812dc3A010C7d01b50e0d17dc79C8\n")
}

func TestAccountsCmdRequiresMnemonic(t *testing.T) {
	t.Setenv(config.EnvDotenvPath, filepath.Join(t.TempDir(), "none.env"))
	t.Setenv(config.EnvMnemonic, "")

	_, err := run(t, "accounts")
	require.ErrorIs(t, err, config.ErrMissingEnv)
}

func TestAddressesCmd(t *testing.T) {
	setEnv(t)
	dir := t.TempDir()

	out, err := run(t, "addresses", "--out", dir)
	require.NoError(t, err)
	require.Contains(t, out, "ACL address "+contract)

	addr, err := deploy.ReadAddress(dir, deploy.FHEPayment)
	require.NoError(t, err)
	require.Equal(t, "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9", addr.Hex())

	out, err = run(t, "addresses", "--task", "task:computeKMSVerifierAddress")
	require.NoError(t, err)
	require.Equal(t, "KMSVerifier address 0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0 written successfully!\n", out)
}

func TestAddressCmd(t *testing.T) {
	out, err := run(t, "address", "--private-key", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	require.NoError(t, err)
	require.Equal(t, alice+"\n", out)

	_, err = run(t, "address")
	require.Error(t, err)
}

func TestConfigCmd(t *testing.T) {
	setEnv(t)

	out, err := run(t, "config")
	require.NoError(t, err)
	require.Contains(t, out, "blockGasLimit: 30000000\n")
	require.Contains(t, out, "allowUnlimitedContractSize: false\n")
	require.NotContains(t, out, "junk")

	out, err = run(t, "config", "--coverage")
	require.NoError(t, err)
	require.Contains(t, out, "blockGasLimit: 1099511627775\n")
	require.Contains(t, out, "allowUnlimitedContractSize: true\n")

	path := filepath.Join(t.TempDir(), "coverage.yaml")
	require.NoError(t, os.WriteFile(path, []byte(out), 0o600))
	out, err = run(t, "--config", path, "config")
	require.NoError(t, err)
	require.Contains(t, out, "blockGasLimit: 1099511627775\n")
}

func TestGatewayAndReencrypt(t *testing.T) {
	setEnv(t)

	logger, err := logging.Init("test", "error", false, io.Discard)
	require.NoError(t, err)
	a := &app{out: io.Discard, logger: logger}
	handler, k, err := a.newGatewayHandler(gatewayFlags{
		seed:       "cli test",
		numSigners: 3,
		chainID:    config.ChainHardhat,
	})
	require.NoError(t, err)
	require.Len(t, k.SignerAddresses(), 3)
	require.Equal(t, config.ChainHardhat, k.ChainID())

	ts := httptest.NewServer(handler)
	defer ts.Close()

	encrypt := func(value, typ string) string {
		body, err := json.Marshal(kms.EncryptRequest{Value: value, Type: typ, Contract: contract, User: alice})
		require.NoError(t, err)
		resp, err := http.Post(ts.URL+"/encrypt", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out kms.EncryptResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out.Handle
	}

	signerList := make([]string, 0, 3)
	for _, addr := range k.SignerAddresses() {
		signerList = append(signerList, addr.Hex())
	}

	tests := []struct {
		typ   string
		value string
		want  string
	}{
		{"ebool", "1", "true"},
		{"euint64", "18446744073709551615", "18446744073709551615"},
		{"eaddress", "255", "0x00000000000000000000000000000000000000ff"},
	}
	for _, tt := range tests {
		t.Run(tt.typ, func(t *testing.T) {
			h := encrypt(tt.value, tt.typ)
			out, err := run(t, "reencrypt",
				"--type", tt.typ,
				"--handle", h,
				"--contract", contract,
				"--gateway", ts.URL,
				"--kms-signers", strings.Join(signerList, ","),
			)
			require.NoError(t, err)
			require.Equal(t, tt.want+"\n", out)
		})
	}

	t.Run("wrong type", func(t *testing.T) {
		h := encrypt("7", "euint8")
		_, err := run(t, "reencrypt", "--type", "euint16", "--handle", h, "--contract", contract, "--gateway", ts.URL)
		require.ErrorContains(t, err, "wrong encrypted type")
	})

	t.Run("unknown user", func(t *testing.T) {
		_, err := run(t, "reencrypt", "--type", "euint8", "--user", "mallory", "--handle", "1", "--contract", contract)
		require.Error(t, err)
	})

	metrics, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer metrics.Body.Close()
	raw, err := io.ReadAll(metrics.Body)
	require.NoError(t, err)
	require.Contains(t, string(raw), `fhevm_gateway_reencrypt_requests_total{outcome="success"} 3`)
}
