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
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/state"
)

// ValueLedger settles the token side of registry operations: stake deposits,
// refunds and slash forwards. Implementations must either complete a
// transfer in full or fail it without effect, a failed transfer aborts the
// surrounding registry operation.
type ValueLedger interface {
	// Transfer moves amount from one account to the other.
	Transfer(from, to common.Address, amount *big.Int) error

	// BalanceOf returns the spendable balance of an account.
	BalanceOf(addr common.Address) *big.Int
}

// CanTransfer checks whether there are enough funds in the address' account
// to make a transfer.
func CanTransfer(l ValueLedger, addr common.Address, amount *big.Int) bool {
	return l.BalanceOf(addr).Cmp(amount) >= 0
}

// DevLedger is the in-process staking asset used by tests and the single
// node development setup. Balances live inside the registry state itself, so
// ledger movements revert together with the bookkeeping that caused them.
type DevLedger struct {
	state *state.StateDB
}

// NewDevLedger creates a development ledger over the given registry state.
func NewDevLedger(statedb *state.StateDB) *DevLedger {
	return &DevLedger{state: statedb}
}

// Transfer moves amount between accounts, rejecting overdrafts.
func (l *DevLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	if l.state.GetBalance(from).Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	l.state.SubBalance(from, amount)
	l.state.AddBalance(to, amount)
	return nil
}

// BalanceOf returns the current balance of an account.
func (l *DevLedger) BalanceOf(addr common.Address) *big.Int {
	return l.state.GetBalance(addr)
}

// Mint credits an account out of thin air. Development deployments use it to
// seed the genesis balances.
func (l *DevLedger) Mint(addr common.Address, amount *big.Int) {
	l.state.AddBalance(addr, amount)
}
