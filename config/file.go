// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the YAML overlay accepted by LoadFile. Zero fields are ignored.
type File struct {
	DefaultNetwork string             `yaml:"defaultNetwork"`
	GatewayURL     string             `yaml:"gatewayUrl"`
	NumKMSSigners  *int               `yaml:"numKmsSigners"`
	Compiler       *Compiler          `yaml:"compiler"`
	Chain          *Chain             `yaml:"chain"`
	Networks       map[string]Network `yaml:"networks"`
}

// LoadFile applies the YAML overlay at path.
func (c *Config) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return c.Apply(&f)
}

// Apply merges f into c. Networks in f replace or extend the configured
// ones; an overlay network keeps the configured accounts unless it sets its
// own count or path.
func (c *Config) Apply(f *File) error {
	if f.GatewayURL != "" {
		c.GatewayURL = f.GatewayURL
	}
	if f.NumKMSSigners != nil {
		if *f.NumKMSSigners < 1 {
			return fmt.Errorf("%w: numKmsSigners %d", ErrInvalidEnv, *f.NumKMSSigners)
		}
		c.NumKMSSigners = *f.NumKMSSigners
	}
	if f.Compiler != nil {
		c.Compiler = *f.Compiler
	}
	if f.Chain != nil {
		c.Chain = *f.Chain
	}

	base := c.Networks[Hardhat].Accounts
	for name, n := range f.Networks {
		current, ok := c.Networks[name]
		if !ok {
			current = Network{Name: name, Accounts: base}
		}
		if n.ChainID != 0 {
			current.ChainID = n.ChainID
		}
		if n.URL != "" {
			current.URL = n.URL
		}
		if n.Accounts.Count != 0 {
			current.Accounts.Count = n.Accounts.Count
		}
		if n.Accounts.Path != "" {
			current.Accounts.Path = n.Accounts.Path
		}
		if current.ChainID == 0 {
			return fmt.Errorf("network %s has no chain id", name)
		}
		c.Networks[name] = current
	}

	if f.DefaultNetwork != "" {
		if _, ok := c.Networks[f.DefaultNetwork]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownNetwork, f.DefaultNetwork)
		}
		c.DefaultNetwork = f.DefaultNetwork
	}
	return nil
}

// File returns the overlay that reproduces the non-secret settings of c.
func (c *Config) File() *File {
	numSigners := c.NumKMSSigners
	compiler := c.Compiler
	chain := c.Chain
	networks := make(map[string]Network, len(c.Networks))
	for name, n := range c.Networks {
		networks[name] = n
	}
	return &File{
		DefaultNetwork: c.DefaultNetwork,
		GatewayURL:     c.GatewayURL,
		NumKMSSigners:  &numSigners,
		Compiler:       &compiler,
		Chain:          &chain,
		Networks:       networks,
	}
}
