// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/luxfi/fhevm-harness/config"
	"github.com/luxfi/fhevm-harness/logging"
	"github.com/luxfi/fhevm-harness/signers"
)

// Version is set at link time.
var Version = "dev"

type rootFlags struct {
	logLevel   string
	logJSON    bool
	configFile string
	network    string
}

type app struct {
	flags  rootFlags
	out    io.Writer
	logger *logging.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(out, logOut io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "fhevm-harness",
		Short:         "Development harness for fhEVM contracts",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			logger, err := logging.Init("fhevm-harness", a.flags.logLevel, a.flags.logJSON, logOut)
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}
	root.SetOut(out)

	fs := root.PersistentFlags()
	fs.StringVar(&a.flags.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	fs.BoolVar(&a.flags.logJSON, "log-json", false, "log in JSON")
	fs.StringVar(&a.flags.configFile, "config", "", "YAML file overriding networks and gateway settings")
	fs.StringVar(&a.flags.network, "network", "", "network to use (default from config)")

	root.AddCommand(
		a.accountsCmd(),
		a.addressesCmd(),
		a.addressCmd(),
		a.configCmd(),
		a.gatewayCmd(),
		a.reencryptCmd(),
	)
	return root
}

// loadConfig reads the environment and the optional YAML overlay.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if a.flags.configFile != "" {
		if err := cfg.LoadFile(a.flags.configFile); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// network returns the selected network of cfg.
func (a *app) network(cfg *config.Config) (config.Network, error) {
	return cfg.Network(a.flags.network)
}

// accounts derives the HD accounts of n.
func (a *app) accounts(n config.Network) ([]*signers.Signer, error) {
	return signers.Derive(n.Accounts.Mnemonic, "", n.Accounts.Path, n.Accounts.Count)
}
