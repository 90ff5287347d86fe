// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/luxfi/geth/common"
	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm-harness/handle"
	"github.com/luxfi/fhevm-harness/instance"
	"github.com/luxfi/fhevm-harness/reencrypt"
	"github.com/luxfi/fhevm-harness/signers"
)

type reencryptFlags struct {
	typ        string
	user       string
	handle     string
	contract   string
	gatewayURL string
	kmsSigners []string
	threshold  int
	timeout    time.Duration
}

func (a *app) reencryptCmd() *cobra.Command {
	var f reencryptFlags
	cmd := &cobra.Command{
		Use:   "reencrypt",
		Short: "Decrypt an encrypted handle as one of the test accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := handle.ParseType(f.typ)
			if err != nil {
				return err
			}
			name, err := signers.ParseAccountName(f.user)
			if err != nil {
				return err
			}
			h, ok := new(big.Int).SetString(f.handle, 0)
			if !ok {
				return fmt.Errorf("invalid handle %q", f.handle)
			}
			if !common.IsHexAddress(f.contract) {
				return fmt.Errorf("invalid contract address %q", f.contract)
			}
			kmsSigners := make([]common.Address, len(f.kmsSigners))
			for i, s := range f.kmsSigners {
				if !common.IsHexAddress(s) {
					return fmt.Errorf("invalid kms signer %q", s)
				}
				kmsSigners[i] = common.HexToAddress(s)
			}

			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			n, err := a.network(cfg)
			if err != nil {
				return err
			}
			accounts, err := a.accounts(n)
			if err != nil {
				return err
			}
			set, err := signers.NewSet(accounts)
			if err != nil {
				return err
			}
			if f.gatewayURL == "" {
				f.gatewayURL = cfg.GatewayURL
			}

			inst, err := instance.New(instance.Config{
				ChainID:    n.ChainID,
				GatewayURL: f.gatewayURL,
				KMSSigners: kmsSigners,
				Threshold:  f.threshold,
				Timeout:    f.timeout,
			}, a.logger)
			if err != nil {
				return err
			}

			value, err := reencrypt.Decode(cmd.Context(), set, inst, name, h, t, common.HexToAddress(f.contract))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, value)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&f.typ, "type", "", "encrypted type (ebool, euint4 ... euint256, eaddress, ebytes64 ... ebytes256)")
	fs.StringVar(&f.user, "user", string(signers.Alice), "test account decrypting the handle")
	fs.StringVar(&f.handle, "handle", "", "handle as 0x-prefixed hex or decimal")
	fs.StringVar(&f.contract, "contract", "", "contract holding the handle")
	fs.StringVar(&f.gatewayURL, "gateway", "", "gateway url (default GATEWAY_URL)")
	fs.StringSliceVar(&f.kmsSigners, "kms-signers", nil, "accepted KMS signer addresses (default any)")
	fs.IntVar(&f.threshold, "threshold", 0, "agreeing shares required (default 2/3 of kms-signers + 1)")
	fs.DurationVar(&f.timeout, "timeout", 0, "gateway request timeout")
	for _, name := range []string{"type", "handle", "contract"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}
