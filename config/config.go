// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the network, compiler and environment settings of the
// harness.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables
const (
	EnvDotenvPath         = "DOTENV_CONFIG_PATH"
	EnvMnemonic           = "MNEMONIC"
	EnvSepoliaRPCURL      = "SEPOLIA_RPC_URL"
	EnvGatewayURL         = "GATEWAY_URL"
	EnvFHEVMDeployerKey   = "PRIVATE_KEY_FHEVM_DEPLOYER"
	EnvGatewayDeployerKey = "PRIVATE_KEY_GATEWAY_DEPLOYER"
	EnvNumKMSSigners      = "NUM_KMS_SIGNERS"
	EnvEtherscanAPIKey    = "ETHERSCAN_API_KEY"
	EnvReportGas          = "REPORT_GAS"
)

// Network names
const (
	Hardhat          = "hardhat"
	Sepolia          = "sepolia"
	Zama             = "zama"
	LocalDev         = "localDev"
	Local            = "local"
	LocalCoprocessor = "localCoprocessor"
)

// Chain IDs
const (
	ChainHardhat          uint64 = 31337
	ChainZama             uint64 = 8009
	ChainLocal            uint64 = 9000
	ChainLocalCoprocessor uint64 = 12345
	ChainSepolia          uint64 = 11155111
)

const (
	DefaultDotenvPath    = "./.env"
	DefaultGatewayURL    = "http://localhost:7077"
	DefaultAccountCount  = 10
	DefaultAccountPath   = "m/44'/60'/0'/0"
	DefaultNumKMSSigners = 1
	DefaultTestTimeout   = 500 * time.Second

	defaultBlockGasLimit  uint64 = 30_000_000
	coverageBlockGasLimit uint64 = 1099511627775
)

var (
	ErrMissingEnv     = errors.New("missing environment variable")
	ErrUnknownNetwork = errors.New("unknown network")
	ErrInvalidEnv     = errors.New("invalid environment variable")
)

// Accounts describes the HD wallet of a network.
type Accounts struct {
	Count    int    `yaml:"count"`
	Mnemonic string `yaml:"-"`
	Path     string `yaml:"path"`
}

// Network is a chain the harness can target. An empty URL means the
// in-process chain.
type Network struct {
	Name     string   `yaml:"name"`
	ChainID  uint64   `yaml:"chainId"`
	URL      string   `yaml:"url"`
	Accounts Accounts `yaml:"accounts"`
}

// Compiler holds solc settings.
type Compiler struct {
	Version       string `yaml:"version"`
	Optimizer     bool   `yaml:"optimizer"`
	OptimizerRuns int    `yaml:"optimizerRuns"`
	EVMVersion    string `yaml:"evmVersion"`
	BytecodeHash  string `yaml:"bytecodeHash"`
}

// Paths are the project directories.
type Paths struct {
	Artifacts string `yaml:"artifacts"`
	Cache     string `yaml:"cache"`
	Sources   string `yaml:"sources"`
	Tests     string `yaml:"tests"`
}

// Chain holds in-process chain limits.
type Chain struct {
	AllowUnlimitedContractSize bool   `yaml:"allowUnlimitedContractSize"`
	BlockGasLimit              uint64 `yaml:"blockGasLimit"`
}

// Config is the full harness configuration.
type Config struct {
	DefaultNetwork     string
	Networks           map[string]Network
	Compiler           Compiler
	Paths              Paths
	Chain              Chain
	TestTimeout        time.Duration
	GatewayURL         string
	FHEVMDeployerKey   string
	GatewayDeployerKey string
	NumKMSSigners      int
	EtherscanAPIKey    string
	ReportGas          bool
}

// Load reads the dotenv file named by DOTENV_CONFIG_PATH, or ./.env, and
// builds the configuration from it and the process environment. Process
// variables take precedence. A missing dotenv file is not an error.
func Load() (*Config, error) {
	path := os.Getenv(EnvDotenvPath)
	if path == "" {
		path = DefaultDotenvPath
	}
	file, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		file = map[string]string{}
	}
	return FromEnv(func(key string) string {
		if v, ok := os.LookupEnv(key); ok {
			return v
		}
		return file[key]
	})
}

// FromEnv builds the configuration from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	mnemonic := strings.TrimSpace(getenv(EnvMnemonic))
	if mnemonic == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingEnv, EnvMnemonic)
	}

	numSigners := DefaultNumKMSSigners
	if raw := getenv(EnvNumKMSSigners); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: %s=%q", ErrInvalidEnv, EnvNumKMSSigners, raw)
		}
		numSigners = n
	}

	gatewayURL := getenv(EnvGatewayURL)
	if gatewayURL == "" {
		gatewayURL = DefaultGatewayURL
	}

	accounts := Accounts{
		Count:    DefaultAccountCount,
		Mnemonic: mnemonic,
		Path:     DefaultAccountPath,
	}
	network := func(name string, chainID uint64, url string) Network {
		return Network{Name: name, ChainID: chainID, URL: url, Accounts: accounts}
	}

	return &Config{
		DefaultNetwork: Hardhat,
		Networks: map[string]Network{
			Hardhat:          network(Hardhat, ChainHardhat, ""),
			Sepolia:          network(Sepolia, ChainSepolia, getenv(EnvSepoliaRPCURL)),
			Zama:             network(Zama, ChainZama, "https://devnet.zama.ai"),
			LocalDev:         network(LocalDev, ChainLocal, "http://localhost:8545"),
			Local:            network(Local, ChainLocal, "http://localhost:8545"),
			LocalCoprocessor: network(LocalCoprocessor, ChainLocalCoprocessor, "http://localhost:8745"),
		},
		Compiler: Compiler{
			Version:       "0.8.24",
			Optimizer:     true,
			OptimizerRuns: 800,
			EVMVersion:    "cancun",
			BytecodeHash:  "none",
		},
		Paths: Paths{
			Artifacts: "./artifacts",
			Cache:     "./cache",
			Sources:   "./contracts",
			Tests:     "./test",
		},
		Chain: Chain{
			BlockGasLimit: defaultBlockGasLimit,
		},
		TestTimeout:        DefaultTestTimeout,
		GatewayURL:         gatewayURL,
		FHEVMDeployerKey:   getenv(EnvFHEVMDeployerKey),
		GatewayDeployerKey: getenv(EnvGatewayDeployerKey),
		NumKMSSigners:      numSigners,
		EtherscanAPIKey:    getenv(EnvEtherscanAPIKey),
		ReportGas:          getenv(EnvReportGas) != "",
	}, nil
}

// Network returns the named network. Remote networks without a URL are
// rejected.
func (c *Config) Network(name string) (Network, error) {
	if name == "" {
		name = c.DefaultNetwork
	}
	n, ok := c.Networks[name]
	if !ok {
		return Network{}, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	if n.URL == "" && name != Hardhat {
		return Network{}, fmt.Errorf("%w: url of network %s", ErrMissingEnv, name)
	}
	return n, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Coverage returns a copy configured for coverage runs, which need contracts
// above the size limit and a very large block gas limit.
func (c *Config) Coverage() *Config {
	out := c.clone()
	out.Chain.AllowUnlimitedContractSize = true
	out.Chain.BlockGasLimit = coverageBlockGasLimit
	return out
}

func (c *Config) clone() *Config {
	out := *c
	out.Networks = make(map[string]Network, len(c.Networks))
	for name, n := range c.Networks {
		out.Networks[name] = n
	}
	return &out
}
