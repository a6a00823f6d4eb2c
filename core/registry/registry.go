// Copyright 2021 The go-sentinet Authors
// This file is part of the go-sentinet library.
//
// The go-sentinet library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-sentinet library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-sentinet library. If not, see <http://www.gnu.org/licenses/>.

// Package registry implements the Sentinet agent registry: ownable agent
// identities, stake escrow with slashing, an append only reputation ledger
// and a validator attestation registry, all journaled through a common
// state layer so that each operation applies atomically.
package registry

import (
	"fmt"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/rawdb"
	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/core/types"

	log "github.com/inconshreveable/log15"
)

// Registry couples the agent identity records with stake escrow, the
// reputation ledger and the validation registry. Mutations run under a
// state snapshot and either apply in full or leave no trace, token
// transfers are sequenced last so a failed settlement aborts the whole
// operation.
type Registry struct {
	config *Config
	state  *state.StateDB
	ledger ValueLedger

	verifier *WalletVerifier
	locker   stakeLocker
	slasher  slashEvaluator

	inExec bool
	log    log.Logger
}

// New wires a registry over the given state. A nil ledger falls back to the
// in-state development ledger, a nil validator restricts wallet binding
// checks to plain key recovery.
func New(config *Config, statedb *state.StateDB, ledger ValueLedger, validator SignatureValidator) *Registry {
	conf := config.sanitize()
	if ledger == nil {
		ledger = NewDevLedger(statedb)
	}
	staking := newStakingManager(conf, statedb, ledger)
	return &Registry{
		config:   conf,
		state:    statedb,
		ledger:   ledger,
		verifier: newWalletVerifier(conf, validator),
		locker:   staking,
		slasher:  staking,
		log:      log.New("module", "registry"),
	}
}

// Config returns the effective configuration the registry runs under.
func (r *Registry) Config() *Config {
	return r.config
}

// State exposes the underlying journaled state, mainly for the dev ledger
// and test setup.
func (r *Registry) State() *state.StateDB {
	return r.state
}

// Ledger returns the value ledger settling stake movements.
func (r *Registry) Ledger() ValueLedger {
	return r.ledger
}

// Verifier returns the wallet binding verifier for this deployment.
func (r *Registry) Verifier() *WalletVerifier {
	return r.verifier
}

// checkCtx rejects calls without an originating account.
func (r *Registry) checkCtx(ctx CallContext) error {
	if ctx.Caller == (common.Address{}) {
		return fmt.Errorf("%w: missing caller", ErrZeroAddress)
	}
	return nil
}

// isAuthorizedOrOwner is the shared control predicate: the owner, a blanket
// operator of the owner, or the single approved spender of the identity.
func (r *Registry) isAuthorizedOrOwner(caller common.Address, agent *types.Agent) bool {
	if caller == (common.Address{}) {
		return false
	}
	if caller == agent.Owner {
		return true
	}
	if r.state.IsOperator(agent.Owner, caller) {
		return true
	}
	return agent.Approved != (common.Address{}) && caller == agent.Approved
}

// getAgent resolves a live identity or fails with ErrAgentNotFound.
func (r *Registry) getAgent(id types.AgentID) (*types.Agent, error) {
	agent := r.state.GetAgent(id)
	if agent == nil {
		return nil, fmt.Errorf("%w: agent %d", ErrAgentNotFound, id)
	}
	return agent, nil
}

// execute runs fn under a state snapshot, rolling every journaled change
// back if fn fails. Nested invocations are rejected so a ledger callback
// cannot reenter the registry mid operation.
func (r *Registry) execute(fn func() error) error {
	if r.inExec {
		return ErrReentrantCall
	}
	r.inExec = true
	defer func() { r.inExec = false }()

	snap := r.state.Snapshot()
	if err := fn(); err != nil {
		r.state.RevertToSnapshot(snap)
		return err
	}
	return nil
}

// Commit flushes the accumulated state changes and returns the events that
// became durable, with their final sequence numbers assigned.
func (r *Registry) Commit() ([]*types.Event, error) {
	return r.state.Commit()
}

// EventHead returns the sequence number of the last committed event.
func (r *Registry) EventHead() uint64 {
	return rawdb.ReadEventHead(r.state.Database())
}

// Events returns up to count committed events starting at sequence from.
func (r *Registry) Events(from, count uint64) []*types.Event {
	return rawdb.ReadEvents(r.state.Database(), from, count)
}
