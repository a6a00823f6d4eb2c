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

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
	"github.com/sentinet/go-sentinet/core/types"
)

// journalEntry is a modification entry in the state change journal that can be
// reverted on demand.
type journalEntry interface {
	// revert undoes the changes introduced by this journal entry.
	revert(*StateDB)

	// dirtied returns the record reference modified by this journal entry,
	// nil if the entry touches no persistent record.
	dirtied() interface{}
}

// Record references used for dirty tracking. Each family gets its own
// comparable key type so a single map can carry them all.
type (
	agentRef       types.AgentID
	stakeRef       types.AgentID
	clientsRef     types.AgentID
	agentValidsRef types.AgentID
	arenaRef       struct {
		id     types.AgentID
		client common.Address
	}
	validationRef common.Hash
	validatorRef  common.Address
	operatorRef   struct {
		owner    common.Address
		operator common.Address
	}
	holdingRef common.Address
	balanceRef common.Address
	nextIDRef  struct{}
	indexRef   struct{}
)

// journal contains the list of state modifications applied since the last
// state commit. These are tracked to be able to be reverted in case of an
// execution exception or revertal request.
type journal struct {
	entries []journalEntry      // Current changes tracked by the journal
	dirties map[interface{}]int // Dirty records and the number of changes
}

// newJournal create a new initialized journal.
func newJournal() *journal {
	return &journal{
		dirties: make(map[interface{}]int),
	}
}

// append inserts a new modification entry to the end of the change journal.
func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
	if ref := entry.dirtied(); ref != nil {
		j.dirties[ref]++
	}
}

// revert undoes a batch of journalled modifications along with any reverted
// dirty handling too.
func (j *journal) revert(statedb *StateDB, snapshot int) {
	for i := len(j.entries) - 1; i >= snapshot; i-- {
		// Undo the changes made by the operation
		j.entries[i].revert(statedb)

		// Drop any dirty tracking induced by the change
		if ref := j.entries[i].dirtied(); ref != nil {
			if j.dirties[ref]--; j.dirties[ref] == 0 {
				delete(j.dirties, ref)
			}
		}
	}
	j.entries = j.entries[:snapshot]
}

// length returns the current number of entries in the journal.
func (j *journal) length() int {
	return len(j.entries)
}

type (
	// Changes to the identity records.
	nextIDChange struct {
		prev types.AgentID
	}
	identityCreateChange struct {
		id types.AgentID
	}
	identityDestroyChange struct {
		prev *types.Agent
	}
	indexInsertChange struct {
		id types.AgentID
	}
	indexRemoveChange struct {
		id types.AgentID
	}
	holdingInsertChange struct {
		owner common.Address
		id    types.AgentID
	}
	holdingRemoveChange struct {
		owner common.Address
		id    types.AgentID
	}
	ownerChange struct {
		id   types.AgentID
		prev common.Address
	}
	uriChange struct {
		id   types.AgentID
		prev string
	}
	metadataChange struct {
		id         types.AgentID
		key        string
		prev       hexutil.Bytes
		prevExists bool
	}
	approvalChange struct {
		id   types.AgentID
		prev common.Address
	}
	operatorChange struct {
		owner    common.Address
		operator common.Address
		prev     bool
	}

	// Changes to the stake records.
	stakeCreateChange struct {
		id types.AgentID
	}
	stakeDeleteChange struct {
		id   types.AgentID
		prev *types.Stake
	}
	stakeAmountChange struct {
		id   types.AgentID
		prev *big.Int
	}
	slashedChange struct {
		id   types.AgentID
		prev bool
	}

	// Changes to the feedback records.
	feedbackAppendChange struct {
		id     types.AgentID
		client common.Address
	}
	feedbackRevokeChange struct {
		id     types.AgentID
		client common.Address
		seq    uint64
	}
	responderAddChange struct {
		id     types.AgentID
		client common.Address
		seq    uint64
	}
	clientAddChange struct {
		id     types.AgentID
		client common.Address
	}

	// Changes to the validation records.
	validationCreateChange struct {
		request common.Hash
	}
	validationRespondChange struct {
		request       common.Hash
		prevScore     uint8
		prevResponded bool
		prevTag       string
		prevReportURI string
		prevUpdate    uint64
	}
	agentValidsInsertChange struct {
		id types.AgentID
	}
	validatorReqInsertChange struct {
		validator common.Address
	}

	// Changes to other state values.
	balanceChange struct {
		account common.Address
		prev    *big.Int
	}
	addEventChange struct {
	}
)

func (ch nextIDChange) revert(s *StateDB) {
	s.nextAgentID = ch.prev
}

func (ch nextIDChange) dirtied() interface{} {
	return nextIDRef{}
}

func (ch identityCreateChange) revert(s *StateDB) {
	s.agents[ch.id] = nil
}

func (ch identityCreateChange) dirtied() interface{} {
	return agentRef(ch.id)
}

func (ch identityDestroyChange) revert(s *StateDB) {
	s.agents[ch.prev.ID] = ch.prev
}

func (ch identityDestroyChange) dirtied() interface{} {
	return agentRef(ch.prev.ID)
}

func (ch indexInsertChange) revert(s *StateDB) {
	s.index = s.index.remove(ch.id)
}

func (ch indexInsertChange) dirtied() interface{} {
	return indexRef{}
}

func (ch indexRemoveChange) revert(s *StateDB) {
	s.index = s.index.insert(ch.id)
}

func (ch indexRemoveChange) dirtied() interface{} {
	return indexRef{}
}

func (ch holdingInsertChange) revert(s *StateDB) {
	s.holdings[ch.owner] = s.holdings[ch.owner].remove(ch.id)
}

func (ch holdingInsertChange) dirtied() interface{} {
	return holdingRef(ch.owner)
}

func (ch holdingRemoveChange) revert(s *StateDB) {
	s.holdings[ch.owner] = s.holdings[ch.owner].insert(ch.id)
}

func (ch holdingRemoveChange) dirtied() interface{} {
	return holdingRef(ch.owner)
}

func (ch ownerChange) revert(s *StateDB) {
	s.getAgent(ch.id).Owner = ch.prev
}

func (ch ownerChange) dirtied() interface{} {
	return agentRef(ch.id)
}

func (ch uriChange) revert(s *StateDB) {
	s.getAgent(ch.id).URI = ch.prev
}

func (ch uriChange) dirtied() interface{} {
	return agentRef(ch.id)
}

func (ch metadataChange) revert(s *StateDB) {
	agent := s.getAgent(ch.id)
	if ch.prevExists {
		agent.Metadata[ch.key] = ch.prev
	} else {
		delete(agent.Metadata, ch.key)
	}
}

func (ch metadataChange) dirtied() interface{} {
	return agentRef(ch.id)
}

func (ch approvalChange) revert(s *StateDB) {
	s.getAgent(ch.id).Approved = ch.prev
}

func (ch approvalChange) dirtied() interface{} {
	return agentRef(ch.id)
}

func (ch operatorChange) revert(s *StateDB) {
	s.operators[operatorRef{ch.owner, ch.operator}] = ch.prev
}

func (ch operatorChange) dirtied() interface{} {
	return operatorRef{ch.owner, ch.operator}
}

func (ch stakeCreateChange) revert(s *StateDB) {
	s.stakes[ch.id] = nil
}

func (ch stakeCreateChange) dirtied() interface{} {
	return stakeRef(ch.id)
}

func (ch stakeDeleteChange) revert(s *StateDB) {
	s.stakes[ch.id] = ch.prev
}

func (ch stakeDeleteChange) dirtied() interface{} {
	return stakeRef(ch.id)
}

func (ch stakeAmountChange) revert(s *StateDB) {
	s.getStake(ch.id).Amount = ch.prev
}

func (ch stakeAmountChange) dirtied() interface{} {
	return stakeRef(ch.id)
}

func (ch slashedChange) revert(s *StateDB) {
	s.getStake(ch.id).Slashed = ch.prev
}

func (ch slashedChange) dirtied() interface{} {
	return stakeRef(ch.id)
}

func (ch feedbackAppendChange) revert(s *StateDB) {
	key := arenaRef{ch.id, ch.client}
	arena := s.arenas[key]
	s.arenas[key] = arena[:len(arena)-1]
}

func (ch feedbackAppendChange) dirtied() interface{} {
	return arenaRef{ch.id, ch.client}
}

func (ch feedbackRevokeChange) revert(s *StateDB) {
	s.getFeedback(ch.id, ch.client, ch.seq).Revoked = false
}

func (ch feedbackRevokeChange) dirtied() interface{} {
	return arenaRef{ch.id, ch.client}
}

func (ch responderAddChange) revert(s *StateDB) {
	fb := s.getFeedback(ch.id, ch.client, ch.seq)
	fb.Responders = fb.Responders[:len(fb.Responders)-1]
}

func (ch responderAddChange) dirtied() interface{} {
	return arenaRef{ch.id, ch.client}
}

func (ch clientAddChange) revert(s *StateDB) {
	cs := s.clients[ch.id]
	cs.list = cs.list[:len(cs.list)-1]
	cs.members.Remove(ch.client)
}

func (ch clientAddChange) dirtied() interface{} {
	return clientsRef(ch.id)
}

func (ch validationCreateChange) revert(s *StateDB) {
	s.validations[ch.request] = nil
}

func (ch validationCreateChange) dirtied() interface{} {
	return validationRef(ch.request)
}

func (ch validationRespondChange) revert(s *StateDB) {
	v := s.getValidation(ch.request)
	v.Score = ch.prevScore
	v.Responded = ch.prevResponded
	v.Tag = ch.prevTag
	v.ReportURI = ch.prevReportURI
	v.LastUpdate = ch.prevUpdate
}

func (ch validationRespondChange) dirtied() interface{} {
	return validationRef(ch.request)
}

func (ch agentValidsInsertChange) revert(s *StateDB) {
	list := s.agentValidations[ch.id]
	s.agentValidations[ch.id] = list[:len(list)-1]
}

func (ch agentValidsInsertChange) dirtied() interface{} {
	return agentValidsRef(ch.id)
}

func (ch validatorReqInsertChange) revert(s *StateDB) {
	list := s.validatorRequests[ch.validator]
	s.validatorRequests[ch.validator] = list[:len(list)-1]
}

func (ch validatorReqInsertChange) dirtied() interface{} {
	return validatorRef(ch.validator)
}

func (ch balanceChange) revert(s *StateDB) {
	s.balances[ch.account] = ch.prev
}

func (ch balanceChange) dirtied() interface{} {
	return balanceRef(ch.account)
}

func (ch addEventChange) revert(s *StateDB) {
	s.events = s.events[:len(s.events)-1]
}

func (ch addEventChange) dirtied() interface{} {
	return nil
}
