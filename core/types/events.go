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

package types

import (
	"encoding/json"
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
)

// EventType names one kind of registry notification.
type EventType string

// Registry event kinds.
const (
	EventAgentRegistered     EventType = "AgentRegistered"
	EventAgentDeregistered   EventType = "AgentDeregistered"
	EventAgentTransferred    EventType = "AgentTransferred"
	EventURIUpdated          EventType = "URIUpdated"
	EventMetadataSet         EventType = "MetadataSet"
	EventApprovalSet         EventType = "ApprovalSet"
	EventOperatorSet         EventType = "OperatorSet"
	EventAgentWalletSet      EventType = "AgentWalletSet"
	EventAgentWalletUnset    EventType = "AgentWalletUnset"
	EventStakeLocked         EventType = "StakeLocked"
	EventStakeRefunded       EventType = "StakeRefunded"
	EventStakeSlashed        EventType = "StakeSlashed"
	EventFeedbackGiven       EventType = "FeedbackGiven"
	EventFeedbackRevoked     EventType = "FeedbackRevoked"
	EventResponseAppended    EventType = "ResponseAppended"
	EventValidationRequested EventType = "ValidationRequested"
	EventValidationResponded EventType = "ValidationResponded"
)

// Event is one entry of the registry's append-only notification journal.
// Every state-changing operation seals at least one event. Seq is assigned
// when the surrounding operation commits.
type Event struct {
	Seq     uint64          `json:"seq"`
	Time    uint64          `json:"time"`
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent wraps a typed payload into an event envelope.
func NewEvent(time uint64, typ EventType, payload interface{}) (*Event, error) {
	enc, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Time: time, Type: typ, Payload: enc}, nil
}

// DecodePayload unmarshals the event payload into v.
func (e *Event) DecodePayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// Event payloads, one struct per EventType.

type AgentRegisteredPayload struct {
	Agent AgentID        `json:"agent"`
	Owner common.Address `json:"owner"`
	URI   string         `json:"uri,omitempty"`
	Stake *big.Int       `json:"stake"`
}

type AgentDeregisteredPayload struct {
	Agent  AgentID        `json:"agent"`
	Owner  common.Address `json:"owner"`
	Refund *big.Int       `json:"refund"`
}

type AgentTransferredPayload struct {
	Agent AgentID        `json:"agent"`
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
}

type URIUpdatedPayload struct {
	Agent AgentID `json:"agent"`
	URI   string  `json:"uri,omitempty"`
}

type MetadataSetPayload struct {
	Agent AgentID       `json:"agent"`
	Key   string        `json:"key"`
	Value hexutil.Bytes `json:"value,omitempty"`
}

type ApprovalSetPayload struct {
	Agent   AgentID        `json:"agent"`
	Spender common.Address `json:"spender"`
}

type OperatorSetPayload struct {
	Owner    common.Address `json:"owner"`
	Operator common.Address `json:"operator"`
	Approved bool           `json:"approved"`
}

type AgentWalletSetPayload struct {
	Agent  AgentID        `json:"agent"`
	Wallet common.Address `json:"wallet"`
}

type AgentWalletUnsetPayload struct {
	Agent AgentID `json:"agent"`
}

type StakeLockedPayload struct {
	Agent  AgentID  `json:"agent"`
	Amount *big.Int `json:"amount"`
}

type StakeRefundedPayload struct {
	Agent     AgentID        `json:"agent"`
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
}

type StakeSlashedPayload struct {
	Agent     AgentID        `json:"agent"`
	Removed   *big.Int       `json:"removed"`
	Remaining *big.Int       `json:"remaining"`
	Treasury  common.Address `json:"treasury"`
}

type FeedbackGivenPayload struct {
	Agent    AgentID        `json:"agent"`
	Client   common.Address `json:"client"`
	Seq      uint64         `json:"seq"`
	Value    *big.Int       `json:"value"`
	Decimals uint8          `json:"decimals"`
	Tag1     string         `json:"tag1,omitempty"`
	Tag2     string         `json:"tag2,omitempty"`
	FileURI  string         `json:"fileUri,omitempty"`
	FileHash common.Hash    `json:"fileHash"`
}

type FeedbackRevokedPayload struct {
	Agent  AgentID        `json:"agent"`
	Client common.Address `json:"client"`
	Seq    uint64         `json:"seq"`
}

type ResponseAppendedPayload struct {
	Agent        AgentID        `json:"agent"`
	Client       common.Address `json:"client"`
	Seq          uint64         `json:"seq"`
	Responder    common.Address `json:"responder"`
	ResponseURI  string         `json:"responseUri,omitempty"`
	ResponseHash common.Hash    `json:"responseHash"`
}

type ValidationRequestedPayload struct {
	Request     common.Hash    `json:"request"`
	Agent       AgentID        `json:"agent"`
	Validator   common.Address `json:"validator"`
	CriteriaURI string         `json:"criteriaUri,omitempty"`
}

type ValidationRespondedPayload struct {
	Request   common.Hash    `json:"request"`
	Agent     AgentID        `json:"agent"`
	Validator common.Address `json:"validator"`
	Score     uint8          `json:"score"`
	Tag       string         `json:"tag,omitempty"`
	ReportURI string         `json:"reportUri,omitempty"`
}
