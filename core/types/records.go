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

// Package types contains the data records of the Sentinet agent registry.
package types

import (
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
)

// AgentID numbers a registered agent identity. IDs are assigned sequentially
// starting at 1; zero is never a valid identity.
type AgentID uint64

// Agent is the canonical record of one registered identity.
type Agent struct {
	ID        AgentID                  `json:"id"`
	Owner     common.Address           `json:"owner"`
	URI       string                   `json:"uri,omitempty"`
	Approved  common.Address           `json:"approved,omitempty"` // single approved spender, zero when unset
	Metadata  map[string]hexutil.Bytes `json:"metadata,omitempty"`
	CreatedAt uint64                   `json:"createdAt"`
}

// Copy returns a deep copy of the agent record.
func (a *Agent) Copy() *Agent {
	if a == nil {
		return nil
	}
	cpy := *a
	if a.Metadata != nil {
		cpy.Metadata = make(map[string]hexutil.Bytes, len(a.Metadata))
		for k, v := range a.Metadata {
			cpy.Metadata[k] = common.CopyBytes(v)
		}
	}
	return &cpy
}

// Stake is the economic value locked against an agent identity. Slashed is
// monotonic, it never resets while the record exists.
type Stake struct {
	Amount  *big.Int `json:"amount"`
	Slashed bool     `json:"slashed"`
}

// Copy returns a deep copy of the stake record.
func (s *Stake) Copy() *Stake {
	if s == nil {
		return nil
	}
	cpy := *s
	if s.Amount != nil {
		cpy.Amount = new(big.Int).Set(s.Amount)
	}
	return &cpy
}

// Feedback is one client rating of an agent. Entries are created in dense
// sequence order per (agent, client) and are never removed, only revoked.
type Feedback struct {
	Client     common.Address   `json:"client"`
	Seq        uint64           `json:"seq"`
	Value      *big.Int         `json:"value"`
	Decimals   uint8            `json:"decimals"`
	Tag1       string           `json:"tag1,omitempty"`
	Tag2       string           `json:"tag2,omitempty"`
	FileURI    string           `json:"fileUri,omitempty"`
	FileHash   common.Hash      `json:"fileHash"`
	Revoked    bool             `json:"revoked"`
	Responders []common.Address `json:"responders,omitempty"` // unique responders in arrival order
}

// Copy returns a deep copy of the feedback entry.
func (f *Feedback) Copy() *Feedback {
	if f == nil {
		return nil
	}
	cpy := *f
	if f.Value != nil {
		cpy.Value = new(big.Int).Set(f.Value)
	}
	if f.Responders != nil {
		cpy.Responders = make([]common.Address, len(f.Responders))
		copy(cpy.Responders, f.Responders)
	}
	return &cpy
}

// HasResponder reports whether addr already appended a response to this entry.
func (f *Feedback) HasResponder(addr common.Address) bool {
	for _, r := range f.Responders {
		if r == addr {
			return true
		}
	}
	return false
}

// MatchesTags reports whether the entry matches the given tag filters. An
// empty filter matches everything; when both are non-empty, both must match.
func (f *Feedback) MatchesTags(tag1, tag2 string) bool {
	if tag1 != "" && f.Tag1 != tag1 {
		return false
	}
	if tag2 != "" && f.Tag2 != tag2 {
		return false
	}
	return true
}

// Validation is a third-party attestation record, keyed by a caller-chosen
// request identifier. Responded distinguishes a zero score from an
// unanswered request.
type Validation struct {
	Request     common.Hash    `json:"request"`
	Validator   common.Address `json:"validator"`
	Agent       AgentID        `json:"agent"`
	CriteriaURI string         `json:"criteriaUri,omitempty"`
	Score       uint8          `json:"score"`
	Responded   bool           `json:"responded"`
	Tag         string         `json:"tag,omitempty"`
	ReportURI   string         `json:"reportUri,omitempty"`
	LastUpdate  uint64         `json:"lastUpdate"`
}

// Copy returns a copy of the validation record.
func (v *Validation) Copy() *Validation {
	if v == nil {
		return nil
	}
	cpy := *v
	return &cpy
}

// MetadataEntry is a key-value pair supplied at registration time.
type MetadataEntry struct {
	Key   string        `json:"key"`
	Value hexutil.Bytes `json:"value"`
}
