// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package deploy computes the addresses of the fhEVM predeploys and runs the
// tasks that publish them before a test run.
package deploy

import (
	"fmt"
	"sort"

	"github.com/luxfi/crypto"
	cryptocommon "github.com/luxfi/crypto/common"
	"github.com/luxfi/geth/common"
)

// Role identifies which deployer account creates a predeploy.
type Role uint8

const (
	RoleFHEVM Role = iota
	RoleGateway
)

func (r Role) String() string {
	switch r {
	case RoleFHEVM:
		return "fhevm"
	case RoleGateway:
		return "gateway"
	default:
		return fmt.Sprintf("role(%d)", uint8(r))
	}
}

// Predeploy is a contract deployed at a fixed nonce of its deployer, so its
// address is known before deployment.
type Predeploy struct {
	Name     string
	Role     Role
	Nonce    uint64
	EnvFile  string
	EnvKey   string
	SolIdent string
}

// Address is the CREATE address of the predeploy for deployer.
func (p Predeploy) Address(deployer common.Address) common.Address {
	return common.Address(crypto.CreateAddress(cryptocommon.Address(deployer), p.Nonce))
}

// SolFile is the Solidity file exposing the address as a constant.
func (p Predeploy) SolFile() string {
	return p.Name + "Address.sol"
}

// TaskName is the task computing this predeploy's address.
func (p Predeploy) TaskName() string {
	return "task:compute" + p.Name + "Address"
}

// Predeploys of a standard fhEVM deployment
var (
	ACL = Predeploy{
		Name:     "ACL",
		Role:     RoleFHEVM,
		Nonce:    0,
		EnvFile:  ".env.acl",
		EnvKey:   "ACL_CONTRACT_ADDRESS",
		SolIdent: "aclAdd",
	}
	TFHEExecutor = Predeploy{
		Name:     "TFHEExecutor",
		Role:     RoleFHEVM,
		Nonce:    1,
		EnvFile:  ".env.exec",
		EnvKey:   "TFHE_EXECUTOR_CONTRACT_ADDRESS",
		SolIdent: "tfheExecutorAdd",
	}
	KMSVerifier = Predeploy{
		Name:     "KMSVerifier",
		Role:     RoleFHEVM,
		Nonce:    2,
		EnvFile:  ".env.kmsverifier",
		EnvKey:   "KMS_VERIFIER_CONTRACT_ADDRESS",
		SolIdent: "kmsVerifierAdd",
	}
	InputVerifier = Predeploy{
		Name:     "InputVerifier",
		Role:     RoleFHEVM,
		Nonce:    3,
		EnvFile:  ".env.inputverifier",
		EnvKey:   "INPUT_VERIFIER_CONTRACT_ADDRESS",
		SolIdent: "inputVerifierAdd",
	}
	FHEPayment = Predeploy{
		Name:     "FHEPayment",
		Role:     RoleFHEVM,
		Nonce:    4,
		EnvFile:  ".env.fhepayment",
		EnvKey:   "FHE_PAYMENT_CONTRACT_ADDRESS",
		SolIdent: "fhePaymentAdd",
	}
	Gateway = Predeploy{
		Name:     "Gateway",
		Role:     RoleGateway,
		Nonce:    0,
		EnvFile:  ".env.gateway",
		EnvKey:   "GATEWAY_CONTRACT_PREDEPLOY_ADDRESS",
		SolIdent: "GATEWAY_CONTRACT_PREDEPLOY_ADDRESS",
	}
)

// Registry is an ordered set of predeploys. Iteration order is by role, then
// nonce.
type Registry struct {
	predeploys []Predeploy
}

// NewRegistry registers ps in order.
func NewRegistry(ps ...Predeploy) (*Registry, error) {
	r := &Registry{}
	for _, p := range ps {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// DefaultRegistry holds the standard predeploys.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(ACL, TFHEExecutor, KMSVerifier, InputVerifier, FHEPayment, Gateway)
	if err != nil {
		panic(err)
	}
	return r
}

// Register adds p, rejecting a duplicate name or a nonce already taken by
// the same deployer.
func (r *Registry) Register(p Predeploy) error {
	if p.Name == "" {
		return fmt.Errorf("predeploy has no name")
	}
	for _, existing := range r.predeploys {
		if existing.Name == p.Name {
			return fmt.Errorf("name %s already used by a predeploy", p.Name)
		}
		if existing.Role == p.Role && existing.Nonce == p.Nonce {
			return fmt.Errorf("%s nonce %d already used by %s", p.Role, p.Nonce, existing.Name)
		}
	}
	r.predeploys = append(r.predeploys, p)
	sort.Sort(predeployArray(r.predeploys))
	return nil
}

// Get returns the predeploy called name.
func (r *Registry) Get(name string) (Predeploy, bool) {
	for _, p := range r.predeploys {
		if p.Name == name {
			return p, true
		}
	}
	return Predeploy{}, false
}

// All returns the registered predeploys in order.
func (r *Registry) All() []Predeploy {
	out := make([]Predeploy, len(r.predeploys))
	copy(out, r.predeploys)
	return out
}

// Addresses computes every predeploy address for the given deployers.
func (r *Registry) Addresses(deployers map[Role]common.Address) (map[string]common.Address, error) {
	out := make(map[string]common.Address, len(r.predeploys))
	for _, p := range r.predeploys {
		deployer, ok := deployers[p.Role]
		if !ok {
			return nil, fmt.Errorf("no %s deployer for %s", p.Role, p.Name)
		}
		out[p.Name] = p.Address(deployer)
	}
	return out, nil
}

type predeployArray []Predeploy

func (a predeployArray) Len() int      { return len(a) }
func (a predeployArray) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a predeployArray) Less(i, j int) bool {
	if a[i].Role != a[j].Role {
		return a[i].Role < a[j].Role
	}
	return a[i].Nonce < a[j].Nonce
}
