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

package registry

import (
	"fmt"
	"math/big"

	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"

	"github.com/sentinet/go-sentinet/common"
)

// stakeLocker is the face of the staking manager seen by the identity
// lifecycle: deposits on registration, refunds on deregistration.
type stakeLocker interface {
	lock(from common.Address, id types.AgentID, value *big.Int, time uint64) error
	refund(recipient common.Address, id types.AgentID, time uint64) (*big.Int, error)
}

// slashEvaluator is the face seen by the reputation ledger. It is handed the
// aggregate score after every feedback mutation and decides whether the
// agent's stake gets cut.
type slashEvaluator interface {
	checkAndSlash(id types.AgentID, meanWad *big.Int, count int, time uint64) error
}

// stakingManager holds and releases registration stakes. Token movement is
// always the last step of an operation, so a transfer failure aborts the
// whole thing with no bookkeeping left behind.
type stakingManager struct {
	config *Config
	state  *state.StateDB
	ledger ValueLedger
}

func newStakingManager(config *Config, statedb *state.StateDB, ledger ValueLedger) *stakingManager {
	return &stakingManager{config: config, state: statedb, ledger: ledger}
}

// lock escrows the registration stake for a newly created identity. The
// attached value must match the required stake exactly.
func (m *stakingManager) lock(from common.Address, id types.AgentID, value *big.Int, time uint64) error {
	if stake := m.state.GetStake(id); stake != nil {
		return fmt.Errorf("%w: agent %d", ErrAlreadyStaked, id)
	}
	if value.Cmp(m.config.RequiredStake) != 0 {
		return fmt.Errorf("%w: have %v, want %v", ErrInsufficientValue, value, m.config.RequiredStake)
	}
	if !CanTransfer(m.ledger, from, value) {
		return fmt.Errorf("%w: address %v", ErrInsufficientFunds, from)
	}
	m.state.CreateStake(id, value)
	if err := m.state.AddEvent(types.EventStakeLocked, time, &types.StakeLockedPayload{
		Agent:  id,
		Amount: value,
	}); err != nil {
		return err
	}
	return m.ledger.Transfer(from, m.config.Address, value)
}

// refund releases whatever stake remains, slashed or not, back to the
// recipient and removes the stake record.
func (m *stakingManager) refund(recipient common.Address, id types.AgentID, time uint64) (*big.Int, error) {
	stake := m.state.GetStake(id)
	if stake == nil {
		return nil, fmt.Errorf("%w: agent %d", ErrNotStaked, id)
	}
	amount := new(big.Int).Set(stake.Amount)
	m.state.DeleteStake(id)
	if err := m.state.AddEvent(types.EventStakeRefunded, time, &types.StakeRefundedPayload{
		Agent:     id,
		Recipient: recipient,
		Amount:    amount,
	}); err != nil {
		return nil, err
	}
	if err := m.ledger.Transfer(m.config.Address, recipient, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

// checkAndSlash cuts the stake in half when the aggregate score has sunk
// below the slashing threshold with quorum. A stake is slashed at most once,
// repeat triggers are silent no-ops so feedback mutations after the fact
// never fail on their account.
func (m *stakingManager) checkAndSlash(id types.AgentID, meanWad *big.Int, count int, time uint64) error {
	stake := m.state.GetStake(id)
	if stake == nil || stake.Slashed {
		return nil
	}
	if count < m.config.SlashQuorum {
		return nil
	}
	if meanWad.Cmp(m.config.SlashThreshold) >= 0 {
		return nil
	}
	removed := new(big.Int).Quo(stake.Amount, big.NewInt(params.SlashDivisor))
	remaining := new(big.Int).Sub(stake.Amount, removed)

	m.state.SetStakeAmount(id, remaining)
	m.state.SetSlashed(id, true)
	if err := m.state.AddEvent(types.EventStakeSlashed, time, &types.StakeSlashedPayload{
		Agent:     id,
		Removed:   removed,
		Remaining: remaining,
		Treasury:  m.config.Treasury,
	}); err != nil {
		return err
	}
	return m.ledger.Transfer(m.config.Address, m.config.Treasury, removed)
}
