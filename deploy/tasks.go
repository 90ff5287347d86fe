// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/fhevm-harness/signers"
)

// Task names that are not predeploy computations
const (
	TaskAccounts           = "task:accounts"
	TaskGetEthereumAddress = "task:getEthereumAddress"
)

var (
	ErrUnknownTask   = errors.New("unknown task")
	ErrDuplicateTask = errors.New("task already registered")
	ErrMissingKey    = errors.New("missing deployer private key")
)

const solTemplate = `// SPDX-License-Identifier: BSD-3-Clause-Clear

pragma solidity ^0.8.24;

address constant %s = %s;
`

// Params are the inputs shared by all tasks.
type Params struct {
	FHEVMDeployerKey   string
	GatewayDeployerKey string
	// PrivateKey is the key task:getEthereumAddress reports on.
	PrivateKey string
	// OutDir receives .env and .sol files. Empty skips writing files.
	OutDir   string
	Accounts []*signers.Signer
	Out      io.Writer
}

func (p *Params) out() io.Writer {
	if p.Out == nil {
		return io.Discard
	}
	return p.Out
}

// TaskFunc runs one task.
type TaskFunc func(ctx context.Context, p *Params) error

type task struct {
	name string
	fn   TaskFunc
}

// Runner runs named tasks in registration order.
type Runner struct {
	registry *Registry
	tasks    []task
	log      log.Logger
}

// NewRunner registers a compute task per predeploy in reg plus the account
// tasks. logger may be nil.
func NewRunner(reg *Registry, logger log.Logger) (*Runner, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	r := &Runner{registry: reg, log: logger}
	for _, p := range reg.All() {
		if err := r.Register(p.TaskName(), r.computeTask(p)); err != nil {
			return nil, err
		}
	}
	if err := r.Register(TaskGetEthereumAddress, getEthereumAddress); err != nil {
		return nil, err
	}
	if err := r.Register(TaskAccounts, listAccounts); err != nil {
		return nil, err
	}
	return r, nil
}

// Register adds a task.
func (r *Runner) Register(name string, fn TaskFunc) error {
	for _, t := range r.tasks {
		if t.name == name {
			return fmt.Errorf("%w: %s", ErrDuplicateTask, name)
		}
	}
	r.tasks = append(r.tasks, task{name: name, fn: fn})
	return nil
}

// Tasks lists the registered task names in order.
func (r *Runner) Tasks() []string {
	names := make([]string, len(r.tasks))
	for i, t := range r.tasks {
		names[i] = t.name
	}
	return names
}

// Run runs the named tasks in the given order and stops at the first error.
func (r *Runner) Run(ctx context.Context, p *Params, names ...string) error {
	for _, name := range names {
		fn, ok := r.lookup(name)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownTask, name)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		r.log.Debug("running task", "task", name)
		if err := fn(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// PrepareTest computes every predeploy address the way a test run does: the
// gateway first, then the fhEVM predeploys in nonce order.
func (r *Runner) PrepareTest(ctx context.Context, p *Params) error {
	var names []string
	for _, pd := range r.registry.All() {
		if pd.Role == RoleGateway {
			names = append(names, pd.TaskName())
		}
	}
	for _, pd := range r.registry.All() {
		if pd.Role != RoleGateway {
			names = append(names, pd.TaskName())
		}
	}
	return r.Run(ctx, p, names...)
}

func (r *Runner) lookup(name string) (TaskFunc, bool) {
	for _, t := range r.tasks {
		if t.name == name {
			return t.fn, true
		}
	}
	return nil, false
}

func (r *Runner) computeTask(pd Predeploy) TaskFunc {
	return func(_ context.Context, p *Params) error {
		key := p.FHEVMDeployerKey
		if pd.Role == RoleGateway {
			key = p.GatewayDeployerKey
		}
		if key == "" {
			return fmt.Errorf("%w: %s", ErrMissingKey, pd.Role)
		}
		deployer, err := signers.HexToSigner(key)
		if err != nil {
			return err
		}

		addr := pd.Address(deployer.Address())
		if p.OutDir != "" {
			if err := WriteAddress(p.OutDir, pd, addr); err != nil {
				return err
			}
		}
		r.log.Info("computed predeploy address",
			"name", pd.Name,
			"deployer", deployer.Address(),
			"nonce", pd.Nonce,
			"address", addr,
		)
		_, err = fmt.Fprintf(p.out(), "%s address %s written successfully!\n", pd.Name, addr.Hex())
		return err
	}
}

// WriteAddress writes the env file and the Solidity constant for pd into dir.
func WriteAddress(dir string, pd Predeploy, addr common.Address) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	env := map[string]string{pd.EnvKey: addr.Hex()}
	if err := godotenv.Write(env, filepath.Join(dir, pd.EnvFile)); err != nil {
		return fmt.Errorf("write %s: %w", pd.EnvFile, err)
	}
	sol := fmt.Sprintf(solTemplate, pd.SolIdent, addr.Hex())
	if err := os.WriteFile(filepath.Join(dir, pd.SolFile()), []byte(sol), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", pd.SolFile(), err)
	}
	return nil
}

// ReadAddress reads back the address written by WriteAddress.
func ReadAddress(dir string, pd Predeploy) (common.Address, error) {
	env, err := godotenv.Read(filepath.Join(dir, pd.EnvFile))
	if err != nil {
		return common.Address{}, err
	}
	raw, ok := env[pd.EnvKey]
	if !ok || !common.IsHexAddress(raw) {
		return common.Address{}, fmt.Errorf("%s: no address under %s", pd.EnvFile, pd.EnvKey)
	}
	return common.HexToAddress(raw), nil
}

func getEthereumAddress(_ context.Context, p *Params) error {
	if p.PrivateKey == "" {
		return ErrMissingKey
	}
	s, err := signers.HexToSigner(p.PrivateKey)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(p.out(), s.Address().Hex())
	return err
}

func listAccounts(_ context.Context, p *Params) error {
	if len(p.Accounts) == 0 {
		return signers.ErrNoAccounts
	}
	for _, a := range p.Accounts {
		if _, err := fmt.Fprintln(p.out(), a.Address().Hex()); err != nil {
			return err
		}
	}
	return nil
}
