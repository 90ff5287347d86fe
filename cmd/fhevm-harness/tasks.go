// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm-harness/deploy"
	"github.com/luxfi/fhevm-harness/signers"
)

func (a *app) runner() (*deploy.Runner, error) {
	return deploy.NewRunner(deploy.DefaultRegistry(), a.logger)
}

func (a *app) accountsCmd() *cobra.Command {
	var named bool
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Print the addresses of the test accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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
			if !named {
				runner, err := a.runner()
				if err != nil {
					return err
				}
				return runner.Run(cmd.Context(), &deploy.Params{Accounts: accounts, Out: a.out}, deploy.TaskAccounts)
			}
			for i, name := range signers.AccountNames {
				if i >= len(accounts) {
					break
				}
				if _, err := fmt.Fprintf(a.out, "%-6s %s\n", name, accounts[i].Address().Hex()); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&named, "named", false, "print role names next to addresses")
	return cmd
}

func (a *app) addressesCmd() *cobra.Command {
	var (
		outDir string
		only   []string
	)
	cmd := &cobra.Command{
		Use:   "addresses",
		Short: "Compute the predeploy addresses and write their .env and .sol files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			params := &deploy.Params{
				FHEVMDeployerKey:   cfg.FHEVMDeployerKey,
				GatewayDeployerKey: cfg.GatewayDeployerKey,
				OutDir:             outDir,
				Out:                a.out,
			}
			runner, err := a.runner()
			if err != nil {
				return err
			}
			if len(only) == 0 {
				return runner.PrepareTest(cmd.Context(), params)
			}
			return runner.Run(cmd.Context(), params, only...)
		},
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory receiving the generated files (empty prints only)")
	cmd.Flags().StringSliceVar(&only, "task", nil, "run only these tasks, in order")
	return cmd
}

func (a *app) addressCmd() *cobra.Command {
	var privateKey string
	cmd := &cobra.Command{
		Use:   "address",
		Short: "Print the Ethereum address of a private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := a.runner()
			if err != nil {
				return err
			}
			return runner.Run(cmd.Context(), &deploy.Params{PrivateKey: privateKey, Out: a.out}, deploy.TaskGetEthereumAddress)
		},
	}
	cmd.Flags().StringVar(&privateKey, "private-key", "", "hex private key")
	_ = cmd.MarkFlagRequired("private-key")
	return cmd
}
