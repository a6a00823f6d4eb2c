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
	"encoding/binary"
	"encoding/json"
	"math/big"

	log "github.com/inconshreveable/log15"
	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/sentdb"
)

// ReadGenesis retrieves the genesis record of the registry deployment.
func ReadGenesis(db sentdb.KeyValueReader) *types.Genesis {
	data, _ := db.Get(genesisKey)
	if len(data) == 0 {
		return nil
	}
	genesis := new(types.Genesis)
	if err := json.Unmarshal(data, genesis); err != nil {
		log.Error("Invalid genesis record", "err", err)
		return nil
	}
	return genesis
}

// WriteGenesis stores the genesis record of the registry deployment.
func WriteGenesis(db sentdb.KeyValueWriter, genesis *types.Genesis) error {
	data, err := json.Marshal(genesis)
	if err != nil {
		return err
	}
	return db.Put(genesisKey, data)
}

// ReadNextAgentID retrieves the identity number handed to the next
// registration. A fresh database starts numbering at 1.
func ReadNextAgentID(db sentdb.KeyValueReader) types.AgentID {
	data, _ := db.Get(nextAgentIDKey)
	if len(data) != 8 {
		return 1
	}
	return types.AgentID(binary.BigEndian.Uint64(data))
}

// WriteNextAgentID stores the identity number handed to the next registration.
func WriteNextAgentID(db sentdb.KeyValueWriter, id types.AgentID) error {
	return db.Put(nextAgentIDKey, encodeAgentID(id))
}

// ReadAgent retrieves the record of a registered agent, nil if unknown.
func ReadAgent(db sentdb.KeyValueReader, id types.AgentID) *types.Agent {
	data, _ := db.Get(agentKey(id))
	if len(data) == 0 {
		return nil
	}
	agent := new(types.Agent)
	if err := json.Unmarshal(data, agent); err != nil {
		log.Error("Invalid agent record", "id", id, "err", err)
		return nil
	}
	return agent
}

// WriteAgent stores an agent record.
func WriteAgent(db sentdb.KeyValueWriter, agent *types.Agent) error {
	data, err := json.Marshal(agent)
	if err != nil {
		return err
	}
	return db.Put(agentKey(agent.ID), data)
}

// DeleteAgent removes an agent record.
func DeleteAgent(db sentdb.KeyValueWriter, id types.AgentID) error {
	return db.Delete(agentKey(id))
}

// ReadStake retrieves the stake record of an agent, nil if not staked.
func ReadStake(db sentdb.KeyValueReader, id types.AgentID) *types.Stake {
	data, _ := db.Get(stakeKey(id))
	if len(data) == 0 {
		return nil
	}
	stake := new(types.Stake)
	if err := json.Unmarshal(data, stake); err != nil {
		log.Error("Invalid stake record", "id", id, "err", err)
		return nil
	}
	return stake
}

// WriteStake stores the stake record of an agent.
func WriteStake(db sentdb.KeyValueWriter, id types.AgentID, stake *types.Stake) error {
	data, err := json.Marshal(stake)
	if err != nil {
		return err
	}
	return db.Put(stakeKey(id), data)
}

// DeleteStake removes the stake record of an agent.
func DeleteStake(db sentdb.KeyValueWriter, id types.AgentID) error {
	return db.Delete(stakeKey(id))
}

// ReadFeedbackArena retrieves all feedback one client gave one agent, in
// sequence order.
func ReadFeedbackArena(db sentdb.KeyValueReader, id types.AgentID, client common.Address) []*types.Feedback {
	data, _ := db.Get(feedbackKey(id, client))
	if len(data) == 0 {
		return nil
	}
	var arena []*types.Feedback
	if err := json.Unmarshal(data, &arena); err != nil {
		log.Error("Invalid feedback arena", "id", id, "client", client, "err", err)
		return nil
	}
	return arena
}

// WriteFeedbackArena stores the feedback a client gave an agent.
func WriteFeedbackArena(db sentdb.KeyValueWriter, id types.AgentID, client common.Address, arena []*types.Feedback) error {
	data, err := json.Marshal(arena)
	if err != nil {
		return err
	}
	return db.Put(feedbackKey(id, client), data)
}

// ReadClients retrieves the list of clients who ever gave feedback for an
// agent, in first-feedback order.
func ReadClients(db sentdb.KeyValueReader, id types.AgentID) []common.Address {
	data, _ := db.Get(clientsKey(id))
	if len(data) == 0 {
		return nil
	}
	var clients []common.Address
	if err := json.Unmarshal(data, &clients); err != nil {
		log.Error("Invalid client list", "id", id, "err", err)
		return nil
	}
	return clients
}

// WriteClients stores the feedback client list of an agent.
func WriteClients(db sentdb.KeyValueWriter, id types.AgentID, clients []common.Address) error {
	data, err := json.Marshal(clients)
	if err != nil {
		return err
	}
	return db.Put(clientsKey(id), data)
}

// ReadValidation retrieves a validation record, nil if unknown.
func ReadValidation(db sentdb.KeyValueReader, request common.Hash) *types.Validation {
	data, _ := db.Get(validationKey(request))
	if len(data) == 0 {
		return nil
	}
	validation := new(types.Validation)
	if err := json.Unmarshal(data, validation); err != nil {
		log.Error("Invalid validation record", "request", request, "err", err)
		return nil
	}
	return validation
}

// WriteValidation stores a validation record.
func WriteValidation(db sentdb.KeyValueWriter, validation *types.Validation) error {
	data, err := json.Marshal(validation)
	if err != nil {
		return err
	}
	return db.Put(validationKey(validation.Request), data)
}

// ReadAgentValidations retrieves the validation requests recorded against an
// agent, in request order.
func ReadAgentValidations(db sentdb.KeyValueReader, id types.AgentID) []common.Hash {
	data, _ := db.Get(agentValidationsKey(id))
	if len(data) == 0 {
		return nil
	}
	var requests []common.Hash
	if err := json.Unmarshal(data, &requests); err != nil {
		log.Error("Invalid agent validation index", "id", id, "err", err)
		return nil
	}
	return requests
}

// WriteAgentValidations stores the validation request index of an agent.
func WriteAgentValidations(db sentdb.KeyValueWriter, id types.AgentID, requests []common.Hash) error {
	data, err := json.Marshal(requests)
	if err != nil {
		return err
	}
	return db.Put(agentValidationsKey(id), data)
}

// ReadValidatorRequests retrieves the validation requests assigned to a
// validator, in request order.
func ReadValidatorRequests(db sentdb.KeyValueReader, validator common.Address) []common.Hash {
	data, _ := db.Get(validatorRequestsKey(validator))
	if len(data) == 0 {
		return nil
	}
	var requests []common.Hash
	if err := json.Unmarshal(data, &requests); err != nil {
		log.Error("Invalid validator request index", "validator", validator, "err", err)
		return nil
	}
	return requests
}

// WriteValidatorRequests stores the validation request index of a validator.
func WriteValidatorRequests(db sentdb.KeyValueWriter, validator common.Address, requests []common.Hash) error {
	data, err := json.Marshal(requests)
	if err != nil {
		return err
	}
	return db.Put(validatorRequestsKey(validator), data)
}

// ReadOperatorApproval retrieves whether operator holds a blanket approval
// from owner.
func ReadOperatorApproval(db sentdb.KeyValueReader, owner, operator common.Address) bool {
	data, _ := db.Get(operatorKey(owner, operator))
	return len(data) == 1 && data[0] == 1
}

// WriteOperatorApproval stores or clears a blanket operator approval.
func WriteOperatorApproval(db sentdb.KeyValueWriter, owner, operator common.Address, approved bool) error {
	if !approved {
		return db.Delete(operatorKey(owner, operator))
	}
	return db.Put(operatorKey(owner, operator), []byte{1})
}

// ReadOwnerAgents retrieves the identities owned by an address, in
// acquisition order.
func ReadOwnerAgents(db sentdb.KeyValueReader, owner common.Address) []types.AgentID {
	data, _ := db.Get(ownerAgentsKey(owner))
	if len(data) == 0 {
		return nil
	}
	var ids []types.AgentID
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Error("Invalid owner agent index", "owner", owner, "err", err)
		return nil
	}
	return ids
}

// WriteOwnerAgents stores the identity index of an owner. An empty list
// removes the index entry.
func WriteOwnerAgents(db sentdb.KeyValueWriter, owner common.Address, ids []types.AgentID) error {
	if len(ids) == 0 {
		return db.Delete(ownerAgentsKey(owner))
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return db.Put(ownerAgentsKey(owner), data)
}

// ReadAgentIndex retrieves the global registration-ordered identity index.
func ReadAgentIndex(db sentdb.KeyValueReader) []types.AgentID {
	data, _ := db.Get(agentIndexKey)
	if len(data) == 0 {
		return nil
	}
	var ids []types.AgentID
	if err := json.Unmarshal(data, &ids); err != nil {
		log.Error("Invalid agent index", "err", err)
		return nil
	}
	return ids
}

// WriteAgentIndex stores the global registration-ordered identity index.
func WriteAgentIndex(db sentdb.KeyValueWriter, ids []types.AgentID) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return db.Put(agentIndexKey, data)
}

// ReadBalance retrieves a development ledger balance, zero if absent.
func ReadBalance(db sentdb.KeyValueReader, addr common.Address) *big.Int {
	data, _ := db.Get(balanceKey(addr))
	if len(data) == 0 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(data)
}

// WriteBalance stores a development ledger balance. Zero balances are
// removed.
func WriteBalance(db sentdb.KeyValueWriter, addr common.Address, balance *big.Int) error {
	if balance.Sign() == 0 {
		return db.Delete(balanceKey(addr))
	}
	return db.Put(balanceKey(addr), balance.Bytes())
}

// ReadAllBalances walks the balance table, mainly for status dumps.
func ReadAllBalances(db sentdb.Iteratee) map[common.Address]*big.Int {
	balances := make(map[common.Address]*big.Int)
	it := db.NewIterator(balancePrefix, nil)
	defer it.Release()
	for it.Next() {
		if len(it.Key()) != len(balancePrefix)+common.AddressLength {
			continue
		}
		addr := common.BytesToAddress(it.Key()[len(balancePrefix):])
		balances[addr] = new(big.Int).SetBytes(it.Value())
	}
	return balances
}
