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

package rawdb

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/sentdb/memorydb"
)

func TestAgentStorage(t *testing.T) {
	db := memorydb.New()

	if agent := ReadAgent(db, 1); agent != nil {
		t.Fatalf("non existent agent returned: %v", agent)
	}
	agent := &types.Agent{
		ID:    1,
		Owner: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		URI:   "https://agents.example/translator.json",
		Metadata: map[string]hexutil.Bytes{
			"model": hexutil.Bytes("sentinet-7b"),
		},
		CreatedAt: 1700000000,
	}
	if err := WriteAgent(db, agent); err != nil {
		t.Fatalf("failed to write agent: %v", err)
	}
	stored := ReadAgent(db, 1)
	if stored == nil {
		t.Fatalf("stored agent not found")
	}
	if !reflect.DeepEqual(stored, agent) {
		t.Fatalf("agent mismatch: have %v, want %v", spew.Sdump(stored), spew.Sdump(agent))
	}
	if err := DeleteAgent(db, 1); err != nil {
		t.Fatalf("failed to delete agent: %v", err)
	}
	if agent := ReadAgent(db, 1); agent != nil {
		t.Fatalf("deleted agent returned: %v", agent)
	}
}

func TestNextAgentIDDefault(t *testing.T) {
	db := memorydb.New()

	if id := ReadNextAgentID(db); id != 1 {
		t.Fatalf("fresh database next id mismatch: have %d, want 1", id)
	}
	if err := WriteNextAgentID(db, 42); err != nil {
		t.Fatalf("failed to write next id: %v", err)
	}
	if id := ReadNextAgentID(db); id != 42 {
		t.Fatalf("next id mismatch: have %d, want 42", id)
	}
}

func TestStakeStorage(t *testing.T) {
	db := memorydb.New()

	stake := &types.Stake{Amount: big.NewInt(1000), Slashed: true}
	if err := WriteStake(db, 7, stake); err != nil {
		t.Fatalf("failed to write stake: %v", err)
	}
	stored := ReadStake(db, 7)
	if stored == nil {
		t.Fatalf("stored stake not found")
	}
	if stored.Amount.Cmp(stake.Amount) != 0 || stored.Slashed != stake.Slashed {
		t.Fatalf("stake mismatch: have %v, want %v", stored, stake)
	}
	if err := DeleteStake(db, 7); err != nil {
		t.Fatalf("failed to delete stake: %v", err)
	}
	if stake := ReadStake(db, 7); stake != nil {
		t.Fatalf("deleted stake returned: %v", stake)
	}
}

func TestFeedbackArenaStorage(t *testing.T) {
	db := memorydb.New()

	client := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	arena := []*types.Feedback{
		{Client: client, Seq: 1, Value: big.NewInt(95), Decimals: 1, Tag1: "speed"},
		{Client: client, Seq: 2, Value: big.NewInt(-30), Decimals: 0, Revoked: true},
	}
	if err := WriteFeedbackArena(db, 3, client, arena); err != nil {
		t.Fatalf("failed to write arena: %v", err)
	}
	stored := ReadFeedbackArena(db, 3, client)
	if len(stored) != 2 {
		t.Fatalf("arena length mismatch: have %d, want 2", len(stored))
	}
	if stored[0].Value.Cmp(arena[0].Value) != 0 || stored[1].Revoked != true {
		t.Fatalf("arena mismatch: have %v, want %v", stored, arena)
	}
	// Arenas are keyed per client, a different client sees nothing.
	other := common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
	if arena := ReadFeedbackArena(db, 3, other); arena != nil {
		t.Fatalf("foreign arena returned: %v", arena)
	}
}

func TestValidationStorage(t *testing.T) {
	db := memorydb.New()

	validation := &types.Validation{
		Request:     common.HexToHash("0x01"),
		Validator:   common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd"),
		Agent:       9,
		CriteriaURI: "ipfs://criteria",
		Score:       88,
		Responded:   true,
	}
	if err := WriteValidation(db, validation); err != nil {
		t.Fatalf("failed to write validation: %v", err)
	}
	stored := ReadValidation(db, validation.Request)
	if stored == nil {
		t.Fatalf("stored validation not found")
	}
	if !reflect.DeepEqual(stored, validation) {
		t.Fatalf("validation mismatch: have %v, want %v", stored, validation)
	}
	if v := ReadValidation(db, common.HexToHash("0x02")); v != nil {
		t.Fatalf("non existent validation returned: %v", v)
	}
}

func TestOperatorApprovalStorage(t *testing.T) {
	db := memorydb.New()

	owner := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	operator := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	if ReadOperatorApproval(db, owner, operator) {
		t.Fatalf("unset approval reported true")
	}
	if err := WriteOperatorApproval(db, owner, operator, true); err != nil {
		t.Fatalf("failed to write approval: %v", err)
	}
	if !ReadOperatorApproval(db, owner, operator) {
		t.Fatalf("set approval reported false")
	}
	// Clearing deletes the entry outright.
	if err := WriteOperatorApproval(db, owner, operator, false); err != nil {
		t.Fatalf("failed to clear approval: %v", err)
	}
	if ReadOperatorApproval(db, owner, operator) {
		t.Fatalf("cleared approval reported true")
	}
	if has, _ := db.Has(operatorKey(owner, operator)); has {
		t.Fatalf("cleared approval left residue")
	}
}

func TestOwnerAgentsStorage(t *testing.T) {
	db := memorydb.New()

	owner := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	if err := WriteOwnerAgents(db, owner, []types.AgentID{2, 5, 9}); err != nil {
		t.Fatalf("failed to write owner index: %v", err)
	}
	if ids := ReadOwnerAgents(db, owner); !reflect.DeepEqual(ids, []types.AgentID{2, 5, 9}) {
		t.Fatalf("owner index mismatch: have %v", ids)
	}
	if err := WriteOwnerAgents(db, owner, nil); err != nil {
		t.Fatalf("failed to clear owner index: %v", err)
	}
	if has, _ := db.Has(ownerAgentsKey(owner)); has {
		t.Fatalf("cleared owner index left residue")
	}
}

func TestEventStorage(t *testing.T) {
	db := memorydb.New()

	if head := ReadEventHead(db); head != 0 {
		t.Fatalf("fresh database head mismatch: have %d, want 0", head)
	}
	var events []*types.Event
	for seq := uint64(1); seq <= 3; seq++ {
		event, err := types.NewEvent(1700000000+seq, types.EventAgentRegistered, &types.AgentRegisteredPayload{
			Agent: types.AgentID(seq),
			Owner: common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		})
		if err != nil {
			t.Fatalf("failed to build event: %v", err)
		}
		event.Seq = seq
		events = append(events, event)
	}
	if err := WriteEvents(db, events); err != nil {
		t.Fatalf("failed to write events: %v", err)
	}
	if head := ReadEventHead(db); head != 3 {
		t.Fatalf("head mismatch: have %d, want 3", head)
	}
	stored := ReadEvent(db, 2)
	if stored == nil {
		t.Fatalf("stored event not found")
	}
	if stored.Type != types.EventAgentRegistered || stored.Seq != 2 {
		t.Fatalf("event mismatch: have %v", stored)
	}
	var payload types.AgentRegisteredPayload
	if err := stored.DecodePayload(&payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Agent != 2 {
		t.Fatalf("payload mismatch: have %d, want 2", payload.Agent)
	}
	// Range reads stop at the first gap.
	if batch := ReadEvents(db, 2, 10); len(batch) != 2 {
		t.Fatalf("range length mismatch: have %d, want 2", len(batch))
	}
	if batch := ReadEvents(db, 5, 10); batch != nil {
		t.Fatalf("range past head returned: %v", batch)
	}
}

func TestBalanceStorage(t *testing.T) {
	db := memorydb.New()

	addr := common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	if bal := ReadBalance(db, addr); bal.Sign() != 0 {
		t.Fatalf("fresh balance mismatch: have %v, want 0", bal)
	}
	if err := WriteBalance(db, addr, big.NewInt(123456)); err != nil {
		t.Fatalf("failed to write balance: %v", err)
	}
	if bal := ReadBalance(db, addr); bal.Cmp(big.NewInt(123456)) != 0 {
		t.Fatalf("balance mismatch: have %v, want 123456", bal)
	}
	if err := WriteBalance(db, addr, new(big.Int)); err != nil {
		t.Fatalf("failed to zero balance: %v", err)
	}
	if has, _ := db.Has(balanceKey(addr)); has {
		t.Fatalf("zeroed balance left residue")
	}
}
