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
	"errors"
	"math/big"
	"testing"

	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/sentdb/memorydb"
)

func TestDevLedgerTransfer(t *testing.T) {
	statedb := state.New(state.NewDatabase(memorydb.New()))
	ledger := NewDevLedger(statedb)

	ledger.Mint(alice, big.NewInt(100))
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if have := ledger.BalanceOf(alice); have.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice: have %v, want 60", have)
	}
	if have := ledger.BalanceOf(bob); have.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob: have %v, want 40", have)
	}
	if err := ledger.Transfer(alice, bob, big.NewInt(61)); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("overdraft: have %v, want ErrInsufficientFunds", err)
	}
	if err := ledger.Transfer(carol, bob, new(big.Int)); err != nil {
		t.Fatalf("zero transfer: %v", err)
	}
}

func TestDevLedgerRevertsWithState(t *testing.T) {
	statedb := state.New(state.NewDatabase(memorydb.New()))
	ledger := NewDevLedger(statedb)
	ledger.Mint(alice, big.NewInt(100))

	// Ledger movements ride the same journal as the registry bookkeeping.
	snap := statedb.Snapshot()
	if err := ledger.Transfer(alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	statedb.RevertToSnapshot(snap)

	if have := ledger.BalanceOf(alice); have.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("alice: have %v, want 100", have)
	}
	if have := ledger.BalanceOf(bob); have.Sign() != 0 {
		t.Fatalf("bob: have %v, want 0", have)
	}
}
