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
	"reflect"
	"testing"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"
	"github.com/sentinet/go-sentinet/sentdb/memorydb"
)

var (
	alice = common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	bob   = common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	carol = common.HexToAddress("0xcccc000000000000000000000000000000000003")
	dave  = common.HexToAddress("0xdddd000000000000000000000000000000000004")
)

type testRegistry struct {
	t        *testing.T
	registry *Registry
	ledger   *DevLedger
	now      uint64
}

func newTestRegistry(t *testing.T) *testRegistry {
	statedb := state.New(state.NewDatabase(memorydb.New()))
	ledger := NewDevLedger(statedb)
	reg := New(&Config{}, statedb, ledger, nil)

	funds := new(big.Int).Mul(reg.config.RequiredStake, big.NewInt(10))
	for _, addr := range []common.Address{alice, bob, carol, dave} {
		ledger.Mint(addr, funds)
	}
	if _, err := reg.Commit(); err != nil {
		t.Fatalf("fund accounts: %v", err)
	}
	return &testRegistry{t: t, registry: reg, ledger: ledger, now: 1700000000}
}

func (h *testRegistry) call(caller common.Address, value *big.Int) CallContext {
	return CallContext{Caller: caller, Value: value, Time: h.now}
}

func (h *testRegistry) register(owner common.Address) types.AgentID {
	h.t.Helper()
	id, err := h.registry.Register(h.call(owner, h.registry.config.RequiredStake), "https://agent.invalid/card.json", nil)
	if err != nil {
		h.t.Fatalf("register: %v", err)
	}
	return id
}

func TestRegisterSequentialIDs(t *testing.T) {
	h := newTestRegistry(t)

	if id := h.register(alice); id != 1 {
		t.Fatalf("first id: have %d, want 1", id)
	}
	if id := h.register(bob); id != 2 {
		t.Fatalf("second id: have %d, want 2", id)
	}
	if err := h.registry.Deregister(h.call(alice, nil), 1); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	// Retired ids are never handed out again.
	if id := h.register(alice); id != 3 {
		t.Fatalf("post-deregister id: have %d, want 3", id)
	}
	if have, want := h.registry.AgentCount(), 2; have != want {
		t.Fatalf("agent count: have %d, want %d", have, want)
	}
}

func TestRegisterExactStake(t *testing.T) {
	h := newTestRegistry(t)
	stake := h.registry.config.RequiredStake
	before := h.ledger.BalanceOf(alice)

	for _, value := range []*big.Int{
		nil,
		new(big.Int).Sub(stake, big.NewInt(1)),
		new(big.Int).Add(stake, big.NewInt(1)),
	} {
		_, err := h.registry.Register(h.call(alice, value), "", nil)
		if !errors.Is(err, ErrInsufficientValue) {
			t.Fatalf("value %v: have %v, want ErrInsufficientValue", value, err)
		}
	}
	if h.registry.AgentCount() != 0 {
		t.Fatalf("failed registrations left agents behind")
	}
	if have := h.ledger.BalanceOf(alice); have.Cmp(before) != 0 {
		t.Fatalf("failed registrations moved funds: have %v, want %v", have, before)
	}
	// The id counter did not advance either.
	if id := h.register(alice); id != 1 {
		t.Fatalf("first successful id: have %d, want 1", id)
	}
}

func TestRegisterInsufficientFunds(t *testing.T) {
	h := newTestRegistry(t)
	pauper := common.HexToAddress("0xeeee000000000000000000000000000000000005")

	_, err := h.registry.Register(h.call(pauper, h.registry.config.RequiredStake), "", nil)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("have %v, want ErrInsufficientFunds", err)
	}
	// The funds check fires before any bookkeeping, the registration leaves
	// nothing behind.
	if h.registry.AgentCount() != 0 {
		t.Fatalf("underfunded registration left an agent behind")
	}
	if id := h.register(alice); id != 1 {
		t.Fatalf("first id: have %d, want 1", id)
	}
}

func TestRegisterEscrowsStake(t *testing.T) {
	h := newTestRegistry(t)
	stake := h.registry.config.RequiredStake
	before := h.ledger.BalanceOf(alice)

	id := h.register(alice)

	record, err := h.registry.StakeOf(id)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if record.Amount.Cmp(stake) != 0 {
		t.Fatalf("stake amount: have %v, want %v", record.Amount, stake)
	}
	if record.Slashed {
		t.Fatalf("fresh stake marked slashed")
	}
	wantOwner := new(big.Int).Sub(before, stake)
	if have := h.ledger.BalanceOf(alice); have.Cmp(wantOwner) != 0 {
		t.Fatalf("owner balance: have %v, want %v", have, wantOwner)
	}
	if have := h.ledger.BalanceOf(h.registry.config.Address); have.Cmp(stake) != 0 {
		t.Fatalf("escrow balance: have %v, want %v", have, stake)
	}
}

func TestRegisterBindsWallet(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	wallet, err := h.registry.AgentWallet(id)
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if wallet != alice {
		t.Fatalf("wallet: have %s, want %s", wallet, alice)
	}
}

func TestRegisterReservedKey(t *testing.T) {
	h := newTestRegistry(t)

	_, err := h.registry.Register(h.call(alice, h.registry.config.RequiredStake), "", []types.MetadataEntry{
		{Key: params.AgentWalletKey, Value: bob.Bytes()},
	})
	if !errors.Is(err, ErrReservedKey) {
		t.Fatalf("have %v, want ErrReservedKey", err)
	}
}

func TestDeregisterOwnerOnly(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	// Neither a blanket operator nor an approved spender may retire the
	// identity, that stays with the owner.
	if err := h.registry.SetApprovalForAll(h.call(alice, nil), bob, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	if err := h.registry.Approve(h.call(alice, nil), id, carol); err != nil {
		t.Fatalf("approve: %v", err)
	}
	for _, caller := range []common.Address{bob, carol, dave} {
		if err := h.registry.Deregister(h.call(caller, nil), id); !errors.Is(err, ErrNotAuthorized) {
			t.Fatalf("caller %s: have %v, want ErrNotAuthorized", caller, err)
		}
	}
	if err := h.registry.Deregister(h.call(alice, nil), id); err != nil {
		t.Fatalf("owner deregister: %v", err)
	}
	if _, err := h.registry.Agent(id); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("have %v, want ErrAgentNotFound", err)
	}
}

func TestDeregisterRefundsStake(t *testing.T) {
	h := newTestRegistry(t)
	before := h.ledger.BalanceOf(alice)
	id := h.register(alice)

	if err := h.registry.Deregister(h.call(alice, nil), id); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if have := h.ledger.BalanceOf(alice); have.Cmp(before) != 0 {
		t.Fatalf("owner balance: have %v, want %v", have, before)
	}
	if have := h.ledger.BalanceOf(h.registry.config.Address); have.Sign() != 0 {
		t.Fatalf("escrow balance: have %v, want 0", have)
	}
	if _, err := h.registry.StakeOf(id); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("have %v, want ErrAgentNotFound", err)
	}
}

func TestTransferAuthorization(t *testing.T) {
	h := newTestRegistry(t)

	// Owner transfers directly.
	id := h.register(alice)
	if err := h.registry.Transfer(h.call(alice, nil), id, bob); err != nil {
		t.Fatalf("owner transfer: %v", err)
	}
	if owner, _ := h.registry.OwnerOf(id); owner != bob {
		t.Fatalf("owner: have %s, want %s", owner, bob)
	}

	// A blanket operator moves any of the owner's identities.
	id2 := h.register(alice)
	if err := h.registry.SetApprovalForAll(h.call(alice, nil), carol, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	if err := h.registry.Transfer(h.call(carol, nil), id2, bob); err != nil {
		t.Fatalf("operator transfer: %v", err)
	}

	// A single approved spender moves just the one identity.
	id3 := h.register(alice)
	if err := h.registry.Approve(h.call(alice, nil), id3, dave); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.registry.Transfer(h.call(dave, nil), id3, bob); err != nil {
		t.Fatalf("spender transfer: %v", err)
	}

	// Strangers may not.
	id4 := h.register(alice)
	if err := h.registry.Transfer(h.call(dave, nil), id4, bob); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger transfer: have %v, want ErrNotAuthorized", err)
	}
	if err := h.registry.Transfer(h.call(alice, nil), id4, common.Address{}); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero target: have %v, want ErrZeroAddress", err)
	}
}

func TestTransferClearsApproval(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	if err := h.registry.Approve(h.call(alice, nil), id, carol); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.registry.Transfer(h.call(carol, nil), id, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	// The approval was consumed by the transfer, carol has no standing with
	// the new owner.
	if err := h.registry.SetURI(h.call(carol, nil), id, "https://x.invalid"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("have %v, want ErrNotAuthorized", err)
	}
	if approved, _ := h.registry.Approved(id); approved != (common.Address{}) {
		t.Fatalf("approval survived transfer: %s", approved)
	}
}

func TestTransferUnbindsWallet(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	if wallet, _ := h.registry.AgentWallet(id); wallet != alice {
		t.Fatalf("wallet: have %s, want %s", wallet, alice)
	}
	if err := h.registry.Transfer(h.call(alice, nil), id, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	if wallet, _ := h.registry.AgentWallet(id); wallet != (common.Address{}) {
		t.Fatalf("wallet survived transfer: %s", wallet)
	}
}

func TestApproveOwnerOrOperator(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	// An approved spender cannot hand the approval on.
	if err := h.registry.Approve(h.call(alice, nil), id, bob); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := h.registry.Approve(h.call(bob, nil), id, carol); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("spender approve: have %v, want ErrNotAuthorized", err)
	}
	// An operator can, and the slot holds a single spender.
	if err := h.registry.SetApprovalForAll(h.call(alice, nil), carol, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	if err := h.registry.Approve(h.call(carol, nil), id, dave); err != nil {
		t.Fatalf("operator approve: %v", err)
	}
	if approved, _ := h.registry.Approved(id); approved != dave {
		t.Fatalf("approved: have %s, want %s", approved, dave)
	}
}

func TestOperatorCoversFutureAgents(t *testing.T) {
	h := newTestRegistry(t)

	if err := h.registry.SetApprovalForAll(h.call(alice, nil), bob, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	// The grant is per owner, it covers identities registered afterwards.
	id := h.register(alice)
	if err := h.registry.SetURI(h.call(bob, nil), id, "https://new.invalid"); err != nil {
		t.Fatalf("operator set uri: %v", err)
	}
	if uri, _ := h.registry.AgentURI(id); uri != "https://new.invalid" {
		t.Fatalf("uri: have %q, want %q", uri, "https://new.invalid")
	}
	if err := h.registry.SetApprovalForAll(h.call(alice, nil), bob, false); err != nil {
		t.Fatalf("revoke operator: %v", err)
	}
	if err := h.registry.SetURI(h.call(bob, nil), id, "https://x.invalid"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("have %v, want ErrNotAuthorized", err)
	}
}

func TestSetApprovalForAllZeroOperator(t *testing.T) {
	h := newTestRegistry(t)

	err := h.registry.SetApprovalForAll(h.call(alice, nil), common.Address{}, true)
	if !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("have %v, want ErrZeroAddress", err)
	}
}

func TestMetadataLifecycle(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	err := h.registry.SetMetadata(h.call(alice, nil), id, []types.MetadataEntry{
		{Key: "model", Value: []byte("sentinet-7b")},
		{Key: "endpoint", Value: []byte("https://api.invalid")},
	})
	if err != nil {
		t.Fatalf("set metadata: %v", err)
	}
	agent, _ := h.registry.Agent(id)
	if string(agent.Metadata["model"]) != "sentinet-7b" {
		t.Fatalf("model: have %q", agent.Metadata["model"])
	}
	keys, err := h.registry.MetadataKeys(id)
	if err != nil {
		t.Fatalf("metadata keys: %v", err)
	}
	if want := []string{params.AgentWalletKey, "endpoint", "model"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("keys: have %v, want %v", keys, want)
	}
	if value, _ := h.registry.Metadata(id, "endpoint"); string(value) != "https://api.invalid" {
		t.Fatalf("endpoint: have %q", value)
	}

	// Empty value deletes the key.
	if err := h.registry.SetMetadata(h.call(alice, nil), id, []types.MetadataEntry{{Key: "model"}}); err != nil {
		t.Fatalf("delete metadata: %v", err)
	}
	agent, _ = h.registry.Agent(id)
	if _, ok := agent.Metadata["model"]; ok {
		t.Fatalf("model key survived deletion")
	}

	// The wallet key is off limits here, even for the owner.
	err = h.registry.SetMetadata(h.call(alice, nil), id, []types.MetadataEntry{
		{Key: params.AgentWalletKey, Value: bob.Bytes()},
	})
	if !errors.Is(err, ErrReservedKey) {
		t.Fatalf("have %v, want ErrReservedKey", err)
	}
	if err := h.registry.SetMetadata(h.call(dave, nil), id, []types.MetadataEntry{{Key: "x", Value: []byte("y")}}); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("have %v, want ErrNotAuthorized", err)
	}
}

func TestEnumeration(t *testing.T) {
	h := newTestRegistry(t)
	h.register(alice)
	h.register(bob)
	h.register(alice)

	if have, want := h.registry.AgentCount(), 3; have != want {
		t.Fatalf("count: have %d, want %d", have, want)
	}
	if have := h.registry.AgentsOf(alice); len(have) != 2 || have[0] != 1 || have[1] != 3 {
		t.Fatalf("alice agents: have %v, want [1 3]", have)
	}
	if have, want := h.registry.OwnedCount(bob), 1; have != want {
		t.Fatalf("bob count: have %d, want %d", have, want)
	}
	agent, err := h.registry.AgentByIndex(2)
	if err != nil {
		t.Fatalf("by index: %v", err)
	}
	if agent.ID != 3 {
		t.Fatalf("index 2: have id %d, want 3", agent.ID)
	}
	if _, err := h.registry.AgentByIndex(3); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("have %v, want ErrIndexOutOfRange", err)
	}
}

func TestTotalLockedTracksLifecycle(t *testing.T) {
	h := newTestRegistry(t)
	stake := h.registry.config.RequiredStake

	id := h.register(alice)
	h.register(bob)
	if have, want := h.registry.TotalLocked(), new(big.Int).Mul(stake, big.NewInt(2)); have.Cmp(want) != 0 {
		t.Fatalf("total locked: have %v, want %v", have, want)
	}
	if !h.registry.Exists(id) {
		t.Fatalf("registered agent reported missing")
	}
	if err := h.registry.Deregister(h.call(alice, nil), id); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if h.registry.Exists(id) {
		t.Fatalf("deregistered agent reported live")
	}
	if have := h.registry.TotalLocked(); have.Cmp(stake) != 0 {
		t.Fatalf("total locked: have %v, want %v", have, stake)
	}
}

func TestZeroCallerRejected(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	ctx := h.call(common.Address{}, nil)
	if _, err := h.registry.Register(ctx, "", nil); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("register: have %v, want ErrZeroAddress", err)
	}
	if err := h.registry.Transfer(ctx, id, bob); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("transfer: have %v, want ErrZeroAddress", err)
	}
	if ok, _ := h.registry.IsAuthorizedOrOwner(common.Address{}, id); ok {
		t.Fatalf("zero caller passed the predicate")
	}
}

func TestEventContinuity(t *testing.T) {
	h := newTestRegistry(t)

	id := h.register(alice)
	if err := h.registry.SetURI(h.call(alice, nil), id, "https://new.invalid"); err != nil {
		t.Fatalf("set uri: %v", err)
	}
	events, err := h.registry.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Register emits AgentRegistered, AgentWalletSet and StakeLocked, the
	// uri update adds one more.
	if len(events) != 4 {
		t.Fatalf("event count: have %d, want 4", len(events))
	}
	for i, event := range events {
		if event.Seq != uint64(i+1) {
			t.Fatalf("event %d: have seq %d, want %d", i, event.Seq, i+1)
		}
	}
	if events[0].Type != types.EventAgentRegistered {
		t.Fatalf("first event: have %s", events[0].Type)
	}
	var reg types.AgentRegisteredPayload
	if err := events[0].DecodePayload(&reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.Agent != id || reg.Owner != alice {
		t.Fatalf("payload: have agent %d owner %s", reg.Agent, reg.Owner)
	}

	// The next commit continues the sequence without gaps.
	if err := h.registry.Transfer(h.call(alice, nil), id, bob); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	events, err = h.registry.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if events[0].Seq != 5 {
		t.Fatalf("continuation seq: have %d, want 5", events[0].Seq)
	}
	if have := h.registry.EventHead(); have != uint64(4+len(events)) {
		t.Fatalf("event head: have %d, want %d", have, 4+len(events))
	}
	if stored := h.registry.Events(1, 100); len(stored) != 4+len(events) {
		t.Fatalf("stored events: have %d, want %d", len(stored), 4+len(events))
	}
}

func TestFailedOpEmitsNothing(t *testing.T) {
	h := newTestRegistry(t)

	if _, err := h.registry.Register(h.call(alice, big.NewInt(1)), "", nil); !errors.Is(err, ErrInsufficientValue) {
		t.Fatalf("have %v, want ErrInsufficientValue", err)
	}
	events, err := h.registry.Commit()
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("failed op leaked %d events", len(events))
	}
	if have := h.registry.EventHead(); have != 0 {
		t.Fatalf("event head: have %d, want 0", have)
	}
}

// reentrantLedger calls back into the registry mid transfer, standing in
// for a token with hooks.
type reentrantLedger struct {
	registry *Registry
	inner    *DevLedger
	calls    int
	lastErr  error
}

func (l *reentrantLedger) Transfer(from, to common.Address, amount *big.Int) error {
	l.calls++
	_, l.lastErr = l.registry.Register(CallContext{Caller: from, Value: l.registry.config.RequiredStake, Time: 1}, "", nil)
	if l.lastErr != nil {
		return l.lastErr
	}
	return l.inner.Transfer(from, to, amount)
}

func (l *reentrantLedger) BalanceOf(addr common.Address) *big.Int {
	return l.inner.BalanceOf(addr)
}

func TestReentrancyGuard(t *testing.T) {
	statedb := state.New(state.NewDatabase(memorydb.New()))
	ledger := &reentrantLedger{inner: NewDevLedger(statedb)}
	reg := New(&Config{}, statedb, ledger, nil)
	ledger.registry = reg
	ledger.inner.Mint(alice, new(big.Int).Mul(reg.config.RequiredStake, big.NewInt(10)))

	_, err := reg.Register(CallContext{Caller: alice, Value: reg.config.RequiredStake, Time: 1}, "", nil)
	if !errors.Is(err, ErrReentrantCall) {
		t.Fatalf("have %v, want ErrReentrantCall", err)
	}
	if ledger.calls != 1 {
		t.Fatalf("transfer calls: have %d, want 1", ledger.calls)
	}
	// The aborted operation left nothing behind.
	if reg.AgentCount() != 0 {
		t.Fatalf("reentrant registration left agents behind")
	}
}
