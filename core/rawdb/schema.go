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

// Package rawdb contains a collection of low level database accessors.
package rawdb

import (
	"encoding/binary"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
)

// The fields below define the low level database schema of the registry.
var (
	// genesisKey tracks the genesis record of the registry deployment.
	genesisKey = []byte("RegistryGenesis")

	// nextAgentIDKey tracks the identity number handed to the next registration.
	nextAgentIDKey = []byte("NextAgentID")

	// agentIndexKey tracks the global registration-ordered agent index.
	agentIndexKey = []byte("AgentIndex")

	// eventHeadKey tracks the sequence number of the next journal event.
	eventHeadKey = []byte("EventHead")

	agentPrefix         = []byte("a") // agentPrefix + id -> agent record
	stakePrefix         = []byte("s") // stakePrefix + id -> stake record
	feedbackPrefix      = []byte("f") // feedbackPrefix + id + client -> feedback arena
	clientsPrefix       = []byte("c") // clientsPrefix + id -> feedback client list
	validationPrefix    = []byte("v") // validationPrefix + request -> validation record
	agentValidsPrefix   = []byte("V") // agentValidsPrefix + id -> request list
	validatorReqsPrefix = []byte("W") // validatorReqsPrefix + validator -> request list
	operatorPrefix      = []byte("o") // operatorPrefix + owner + operator -> approval flag
	ownerAgentsPrefix   = []byte("w") // ownerAgentsPrefix + owner -> owned agent list
	eventPrefix         = []byte("e") // eventPrefix + seq -> journal event
	balancePrefix       = []byte("b") // balancePrefix + address -> dev ledger balance
)

// encodeAgentID encodes an agent number as big endian uint64.
func encodeAgentID(id types.AgentID) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, uint64(id))
	return enc
}

// encodeSeq encodes an event sequence number as big endian uint64.
func encodeSeq(seq uint64) []byte {
	enc := make([]byte, 8)
	binary.BigEndian.PutUint64(enc, seq)
	return enc
}

// agentKey = agentPrefix + id
func agentKey(id types.AgentID) []byte {
	return append(agentPrefix, encodeAgentID(id)...)
}

// stakeKey = stakePrefix + id
func stakeKey(id types.AgentID) []byte {
	return append(stakePrefix, encodeAgentID(id)...)
}

// feedbackKey = feedbackPrefix + id + client
func feedbackKey(id types.AgentID, client common.Address) []byte {
	return append(append(feedbackPrefix, encodeAgentID(id)...), client.Bytes()...)
}

// clientsKey = clientsPrefix + id
func clientsKey(id types.AgentID) []byte {
	return append(clientsPrefix, encodeAgentID(id)...)
}

// validationKey = validationPrefix + request
func validationKey(request common.Hash) []byte {
	return append(validationPrefix, request.Bytes()...)
}

// agentValidationsKey = agentValidsPrefix + id
func agentValidationsKey(id types.AgentID) []byte {
	return append(agentValidsPrefix, encodeAgentID(id)...)
}

// validatorRequestsKey = validatorReqsPrefix + validator
func validatorRequestsKey(validator common.Address) []byte {
	return append(validatorReqsPrefix, validator.Bytes()...)
}

// operatorKey = operatorPrefix + owner + operator
func operatorKey(owner, operator common.Address) []byte {
	return append(append(operatorPrefix, owner.Bytes()...), operator.Bytes()...)
}

// ownerAgentsKey = ownerAgentsPrefix + owner
func ownerAgentsKey(owner common.Address) []byte {
	return append(ownerAgentsPrefix, owner.Bytes()...)
}

// eventKey = eventPrefix + seq
func eventKey(seq uint64) []byte {
	return append(eventPrefix, encodeSeq(seq)...)
}

// balanceKey = balancePrefix + address
func balanceKey(addr common.Address) []byte {
	return append(balancePrefix, addr.Bytes()...)
}
