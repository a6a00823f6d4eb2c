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

package state

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/sentdb"
	"github.com/sentinet/go-sentinet/sentdb/memorydb"
)

type stateTest struct {
	db    sentdb.KeyValueStore
	state *StateDB
}

func newStateTest() *stateTest {
	db := memorydb.New()
	return &stateTest{db: db, state: New(NewDatabase(db))}
}

var (
	alice = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	bob   = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	carol = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

func TestCreateAgent(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "https://agents.example/alpha.json", 1700000000)
	if id != 1 {
		t.Fatalf("first identity mismatch: have %d, want 1", id)
	}
	if next := s.state.NextAgentID(); next != 2 {
		t.Fatalf("next identity mismatch: have %d, want 2", next)
	}
	agent := s.state.GetAgent(id)
	if agent == nil {
		t.Fatalf("created agent not found")
	}
	if agent.Owner != alice || agent.URI != "https://agents.example/alpha.json" {
		t.Fatalf("agent record mismatch: %+v", agent)
	}
	if !reflect.DeepEqual(s.state.AgentIDs(), []types.AgentID{1}) {
		t.Fatalf("registration index mismatch: %v", s.state.AgentIDs())
	}
	if !reflect.DeepEqual(s.state.OwnedAgents(alice), []types.AgentID{1}) {
		t.Fatalf("owner index mismatch: %v", s.state.OwnedAgents(alice))
	}
	if s.state.Exist(2) {
		t.Fatalf("phantom agent reported registered")
	}
}

func TestDestroyAgent(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	other := s.state.CreateAgent(alice, "uri2", 0)
	s.state.DestroyAgent(id)

	if s.state.Exist(id) {
		t.Fatalf("destroyed agent still registered")
	}
	if !reflect.DeepEqual(s.state.AgentIDs(), []types.AgentID{other}) {
		t.Fatalf("registration index mismatch: %v", s.state.AgentIDs())
	}
	if !reflect.DeepEqual(s.state.OwnedAgents(alice), []types.AgentID{other}) {
		t.Fatalf("owner index mismatch: %v", s.state.OwnedAgents(alice))
	}
	// Identity numbers are never reused.
	if next := s.state.NextAgentID(); next != 3 {
		t.Fatalf("next identity mismatch: have %d, want 3", next)
	}
}

func TestOwnershipTransfer(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	s.state.SetOwner(id, bob)

	if owner := s.state.GetAgent(id).Owner; owner != bob {
		t.Fatalf("owner mismatch: have %x, want %x", owner, bob)
	}
	if owned := s.state.OwnedAgents(alice); owned != nil {
		t.Fatalf("previous owner still indexed: %v", owned)
	}
	if !reflect.DeepEqual(s.state.OwnedAgents(bob), []types.AgentID{id}) {
		t.Fatalf("new owner index mismatch: %v", s.state.OwnedAgents(bob))
	}
}

func TestSnapshotRevert(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	s.state.CreateStake(id, big.NewInt(1000))

	rev := s.state.Snapshot()

	s.state.SetOwner(id, bob)
	s.state.SetURI(id, "changed")
	s.state.SetMetadata(id, "model", []byte("m1"))
	s.state.SetStakeAmount(id, big.NewInt(500))
	s.state.SetSlashed(id, true)
	s.state.AppendFeedback(id, carol, &types.Feedback{Value: big.NewInt(9), Decimals: 0})

	s.state.RevertToSnapshot(rev)

	agent := s.state.GetAgent(id)
	if agent.Owner != alice || agent.URI != "uri" {
		t.Fatalf("agent revert incomplete: %+v", agent)
	}
	if _, ok := agent.Metadata["model"]; ok {
		t.Fatalf("metadata revert incomplete: %v", agent.Metadata)
	}
	stake := s.state.GetStake(id)
	if stake.Amount.Cmp(big.NewInt(1000)) != 0 || stake.Slashed {
		t.Fatalf("stake revert incomplete: %+v", stake)
	}
	if n := s.state.FeedbackCount(id, carol); n != 0 {
		t.Fatalf("feedback revert incomplete: %d entries", n)
	}
	if clients := s.state.Clients(id); clients != nil {
		t.Fatalf("client index revert incomplete: %v", clients)
	}
	if !reflect.DeepEqual(s.state.OwnedAgents(alice), []types.AgentID{id}) {
		t.Fatalf("owner index revert incomplete: %v", s.state.OwnedAgents(alice))
	}
}

func TestRevertCreation(t *testing.T) {
	s := newStateTest()

	rev := s.state.Snapshot()
	id := s.state.CreateAgent(alice, "uri", 0)
	s.state.RevertToSnapshot(rev)

	if s.state.Exist(id) {
		t.Fatalf("reverted creation still registered")
	}
	if s.state.AgentCount() != 0 {
		t.Fatalf("registration index not reverted: %v", s.state.AgentIDs())
	}
	if next := s.state.NextAgentID(); next != 1 {
		t.Fatalf("identity numbering not reverted: have %d, want 1", next)
	}
	// Nothing should hit the database on commit.
	if _, err := s.state.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if has, _ := s.db.Has([]byte("NextAgentID")); has {
		t.Fatalf("reverted numbering leaked to disk")
	}
}

func TestFeedbackArena(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	seq1 := s.state.AppendFeedback(id, bob, &types.Feedback{Value: big.NewInt(80), Decimals: 0})
	seq2 := s.state.AppendFeedback(id, bob, &types.Feedback{Value: big.NewInt(-20), Decimals: 1})
	seq3 := s.state.AppendFeedback(id, carol, &types.Feedback{Value: big.NewInt(50), Decimals: 0})

	if seq1 != 1 || seq2 != 2 {
		t.Fatalf("sequence numbering mismatch: have %d, %d", seq1, seq2)
	}
	if seq3 != 1 {
		t.Fatalf("per client numbering mismatch: have %d, want 1", seq3)
	}
	if !reflect.DeepEqual(s.state.Clients(id), []common.Address{bob, carol}) {
		t.Fatalf("client index mismatch: %v", s.state.Clients(id))
	}
	s.state.RevokeFeedback(id, bob, 1)
	if !s.state.GetFeedback(id, bob, 1).Revoked {
		t.Fatalf("revocation not recorded")
	}
	if s.state.GetFeedback(id, bob, 2).Revoked {
		t.Fatalf("revocation leaked to wrong entry")
	}
	s.state.AddResponder(id, bob, 2, carol)
	if fb := s.state.GetFeedback(id, bob, 2); !fb.HasResponder(carol) {
		t.Fatalf("responder not recorded")
	}
	if fb := s.state.GetFeedback(id, bob, 4); fb != nil {
		t.Fatalf("out of range feedback returned: %+v", fb)
	}
}

func TestValidationLifecycle(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	request := common.HexToHash("0xdeadbeef")
	s.state.CreateValidation(&types.Validation{
		Request:     request,
		Validator:   bob,
		Agent:       id,
		CriteriaURI: "ipfs://criteria",
	})
	if !reflect.DeepEqual(s.state.AgentValidations(id), []common.Hash{request}) {
		t.Fatalf("agent validation index mismatch: %v", s.state.AgentValidations(id))
	}
	if !reflect.DeepEqual(s.state.ValidatorRequests(bob), []common.Hash{request}) {
		t.Fatalf("validator request index mismatch: %v", s.state.ValidatorRequests(bob))
	}
	s.state.RespondValidation(request, 88, "load-test", "ipfs://report", 1700000100)
	v := s.state.GetValidation(request)
	if v.Score != 88 || !v.Responded || v.Tag != "load-test" {
		t.Fatalf("response not recorded: %+v", v)
	}
	rev := s.state.Snapshot()
	s.state.RespondValidation(request, 10, "", "", 1700000200)
	s.state.RevertToSnapshot(rev)
	v = s.state.GetValidation(request)
	if v.Score != 88 || v.LastUpdate != 1700000100 {
		t.Fatalf("response revert incomplete: %+v", v)
	}
}

func TestCommitPersists(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 1700000000)
	s.state.CreateStake(id, big.NewInt(1000))
	s.state.AppendFeedback(id, bob, &types.Feedback{Value: big.NewInt(77), Decimals: 0})
	s.state.SetOperator(alice, carol, true)
	s.state.AddBalance(alice, big.NewInt(5))

	if _, err := s.state.Commit(); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	// A fresh state over the same database must observe everything.
	reopened := New(NewDatabase(s.db))
	if !reopened.Exist(id) {
		t.Fatalf("agent not persisted")
	}
	if stake := reopened.GetStake(id); stake == nil || stake.Amount.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("stake not persisted: %+v", stake)
	}
	if n := reopened.FeedbackCount(id, bob); n != 1 {
		t.Fatalf("feedback not persisted: %d entries", n)
	}
	if !reopened.IsOperator(alice, carol) {
		t.Fatalf("operator approval not persisted")
	}
	if bal := reopened.GetBalance(alice); bal.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("balance not persisted: %v", bal)
	}
	if next := reopened.NextAgentID(); next != 2 {
		t.Fatalf("identity numbering not persisted: have %d, want 2", next)
	}
}

func TestEventSequencing(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	payload := &types.AgentRegisteredPayload{Agent: id, Owner: alice}
	if err := s.state.AddEvent(types.EventAgentRegistered, 1700000000, payload); err != nil {
		t.Fatalf("failed to queue event: %v", err)
	}
	committed, err := s.state.Commit()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(committed) != 1 || committed[0].Seq != 1 {
		t.Fatalf("first commit sequencing mismatch: %+v", committed)
	}
	// A later commit continues the sequence without gaps.
	if err := s.state.AddEvent(types.EventAgentTransferred, 1700000100, &types.AgentTransferredPayload{Agent: id, From: alice, To: bob}); err != nil {
		t.Fatalf("failed to queue event: %v", err)
	}
	if err := s.state.AddEvent(types.EventURIUpdated, 1700000100, &types.URIUpdatedPayload{Agent: id, URI: "u"}); err != nil {
		t.Fatalf("failed to queue event: %v", err)
	}
	committed, err = s.state.Commit()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(committed) != 2 || committed[0].Seq != 2 || committed[1].Seq != 3 {
		t.Fatalf("second commit sequencing mismatch: %+v", committed)
	}
}

func TestEventRevert(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	rev := s.state.Snapshot()
	if err := s.state.AddEvent(types.EventURIUpdated, 0, &types.URIUpdatedPayload{Agent: id}); err != nil {
		t.Fatalf("failed to queue event: %v", err)
	}
	s.state.RevertToSnapshot(rev)

	committed, err := s.state.Commit()
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if len(committed) != 0 {
		t.Fatalf("reverted event still emitted: %+v", committed)
	}
}

func TestBalanceJournal(t *testing.T) {
	s := newStateTest()

	s.state.AddBalance(alice, big.NewInt(100))
	rev := s.state.Snapshot()
	s.state.SubBalance(alice, big.NewInt(40))
	s.state.AddBalance(bob, big.NewInt(40))

	if bal := s.state.GetBalance(alice); bal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("balance mismatch: have %v, want 60", bal)
	}
	s.state.RevertToSnapshot(rev)
	if bal := s.state.GetBalance(alice); bal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("balance revert incomplete: have %v, want 100", bal)
	}
	if bal := s.state.GetBalance(bob); bal.Sign() != 0 {
		t.Fatalf("balance revert incomplete: have %v, want 0", bal)
	}
}

func TestNestedSnapshots(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "v0", 0)
	outer := s.state.Snapshot()
	s.state.SetURI(id, "v1")
	inner := s.state.Snapshot()
	s.state.SetURI(id, "v2")

	s.state.RevertToSnapshot(inner)
	if uri := s.state.GetAgent(id).URI; uri != "v1" {
		t.Fatalf("inner revert mismatch: have %q, want %q", uri, "v1")
	}
	s.state.RevertToSnapshot(outer)
	if uri := s.state.GetAgent(id).URI; uri != "v0" {
		t.Fatalf("outer revert mismatch: have %q, want %q", uri, "v0")
	}
}

func TestReadsAreCopies(t *testing.T) {
	s := newStateTest()

	id := s.state.CreateAgent(alice, "uri", 0)
	s.state.SetMetadata(id, "model", []byte("m1"))

	agent := s.state.GetAgent(id)
	agent.Owner = bob
	agent.Metadata["model"] = []byte("tampered")

	fresh := s.state.GetAgent(id)
	if fresh.Owner != alice {
		t.Fatalf("read copy leaked owner mutation")
	}
	if string(fresh.Metadata["model"]) != "m1" {
		t.Fatalf("read copy leaked metadata mutation")
	}
}
