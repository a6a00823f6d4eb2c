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
	"context"
	"encoding/json"
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
	"github.com/sentinet/go-sentinet/core/types"
)

// PublicRegistryAPI provides the public read API over the agent identities.
type PublicRegistryAPI struct {
	registry *Registry
}

// NewPublicRegistryAPI creates a new identity registry API.
func NewPublicRegistryAPI(registry *Registry) *PublicRegistryAPI {
	return &PublicRegistryAPI{registry: registry}
}

// AgentResult is the JSON response for GetAgent.
type AgentResult struct {
	ID        types.AgentID            `json:"id"`
	Owner     common.Address           `json:"owner"`
	URI       string                   `json:"uri,omitempty"`
	Wallet    *common.Address          `json:"wallet,omitempty"`
	Approved  *common.Address          `json:"approved,omitempty"`
	Metadata  map[string]hexutil.Bytes `json:"metadata,omitempty"`
	CreatedAt uint64                   `json:"createdAt"`
	Stake     *StakeResult             `json:"stake,omitempty"`
}

// StakeResult is the JSON shape of an escrowed stake.
type StakeResult struct {
	Amount  *big.Int `json:"amount"`
	Slashed bool     `json:"slashed"`
}

func (api *PublicRegistryAPI) agentResult(agent *types.Agent) *AgentResult {
	result := &AgentResult{
		ID:        agent.ID,
		Owner:     agent.Owner,
		URI:       agent.URI,
		Metadata:  agent.Metadata,
		CreatedAt: agent.CreatedAt,
	}
	if agent.Approved != (common.Address{}) {
		approved := agent.Approved
		result.Approved = &approved
	}
	if wallet, err := api.registry.AgentWallet(agent.ID); err == nil && wallet != (common.Address{}) {
		result.Wallet = &wallet
	}
	if stake := api.registry.state.GetStake(agent.ID); stake != nil {
		result.Stake = &StakeResult{Amount: stake.Amount, Slashed: stake.Slashed}
	}
	return result
}

// GetAgent returns the full identity record, wallet binding and stake
// included.
func (api *PublicRegistryAPI) GetAgent(_ context.Context, id types.AgentID) (*AgentResult, error) {
	agent, err := api.registry.Agent(id)
	if err != nil {
		return nil, err
	}
	return api.agentResult(agent), nil
}

// GetAgentCount returns the number of live identities.
func (api *PublicRegistryAPI) GetAgentCount(_ context.Context) (int, error) {
	return api.registry.AgentCount(), nil
}

// GetAgentByIndex returns the identity at the given position in ascending
// id order.
func (api *PublicRegistryAPI) GetAgentByIndex(_ context.Context, index int) (*AgentResult, error) {
	agent, err := api.registry.AgentByIndex(index)
	if err != nil {
		return nil, err
	}
	return api.agentResult(agent), nil
}

// GetAgentsByOwner returns the identity ids held by an account.
func (api *PublicRegistryAPI) GetAgentsByOwner(_ context.Context, owner common.Address) ([]types.AgentID, error) {
	return api.registry.AgentsOf(owner), nil
}

// GetOwner returns the current owner of an identity.
func (api *PublicRegistryAPI) GetOwner(_ context.Context, id types.AgentID) (common.Address, error) {
	return api.registry.OwnerOf(id)
}

// AgentExists reports whether an identity is live.
func (api *PublicRegistryAPI) AgentExists(_ context.Context, id types.AgentID) (bool, error) {
	return api.registry.Exists(id), nil
}

// GetAgentURI returns the service descriptor of an identity.
func (api *PublicRegistryAPI) GetAgentURI(_ context.Context, id types.AgentID) (string, error) {
	return api.registry.AgentURI(id)
}

// GetMetadata returns one metadata value of an identity.
func (api *PublicRegistryAPI) GetMetadata(_ context.Context, id types.AgentID, key string) (hexutil.Bytes, error) {
	return api.registry.Metadata(id, key)
}

// GetMetadataKeys returns the metadata keys of an identity in sorted order.
func (api *PublicRegistryAPI) GetMetadataKeys(_ context.Context, id types.AgentID) ([]string, error) {
	return api.registry.MetadataKeys(id)
}

// GetApproved returns the approved spender of an identity, or the zero
// address when none is set.
func (api *PublicRegistryAPI) GetApproved(_ context.Context, id types.AgentID) (common.Address, error) {
	return api.registry.Approved(id)
}

// IsAuthorized reports whether the account passes the control predicate of
// the identity.
func (api *PublicRegistryAPI) IsAuthorized(_ context.Context, caller common.Address, id types.AgentID) (bool, error) {
	return api.registry.IsAuthorizedOrOwner(caller, id)
}

// IsOperator reports whether operator holds blanket approval from owner.
func (api *PublicRegistryAPI) IsOperator(_ context.Context, owner, operator common.Address) (bool, error) {
	return api.registry.IsOperator(owner, operator), nil
}

// GetRequiredStake returns the stake a registration must attach.
func (api *PublicRegistryAPI) GetRequiredStake(_ context.Context) (*big.Int, error) {
	return api.registry.RequiredStake(), nil
}

// GetTotalLocked returns the sum of all currently escrowed stakes.
func (api *PublicRegistryAPI) GetTotalLocked(_ context.Context) (*big.Int, error) {
	return api.registry.TotalLocked(), nil
}

// GetBalance returns the ledger balance of an account.
func (api *PublicRegistryAPI) GetBalance(_ context.Context, addr common.Address) (*big.Int, error) {
	return api.registry.ledger.BalanceOf(addr), nil
}

// EventResult is the JSON shape of a committed registry event.
type EventResult struct {
	Seq     uint64          `json:"seq"`
	Time    uint64          `json:"time"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// GetEvents returns up to count committed events starting at sequence from.
func (api *PublicRegistryAPI) GetEvents(_ context.Context, from, count uint64) ([]EventResult, error) {
	events := api.registry.Events(from, count)
	results := make([]EventResult, len(events))
	for i, event := range events {
		results[i] = EventResult{
			Seq:     event.Seq,
			Time:    event.Time,
			Type:    string(event.Type),
			Payload: event.Payload,
		}
	}
	return results, nil
}

// GetEventHead returns the sequence number of the newest committed event.
func (api *PublicRegistryAPI) GetEventHead(_ context.Context) (uint64, error) {
	return api.registry.EventHead(), nil
}

// PublicReputationAPI provides the public read API over the feedback ledger.
type PublicReputationAPI struct {
	registry *Registry
}

// NewPublicReputationAPI creates a new reputation ledger API.
func NewPublicReputationAPI(registry *Registry) *PublicReputationAPI {
	return &PublicReputationAPI{registry: registry}
}

// FeedbackResult is the JSON shape of a feedback entry.
type FeedbackResult struct {
	Client     common.Address   `json:"client"`
	Seq        uint64           `json:"seq"`
	Value      *big.Int         `json:"value"`
	Decimals   uint8            `json:"decimals"`
	Tag1       string           `json:"tag1,omitempty"`
	Tag2       string           `json:"tag2,omitempty"`
	FileURI    string           `json:"fileUri,omitempty"`
	FileHash   common.Hash      `json:"fileHash"`
	Revoked    bool             `json:"revoked"`
	Responders []common.Address `json:"responders,omitempty"`
}

func feedbackResult(fb *types.Feedback) FeedbackResult {
	return FeedbackResult{
		Client:     fb.Client,
		Seq:        fb.Seq,
		Value:      fb.Value,
		Decimals:   fb.Decimals,
		Tag1:       fb.Tag1,
		Tag2:       fb.Tag2,
		FileURI:    fb.FileURI,
		FileHash:   fb.FileHash,
		Revoked:    fb.Revoked,
		Responders: fb.Responders,
	}
}

// SummaryResult is the JSON response for GetSummary.
type SummaryResult struct {
	Count    uint64   `json:"count"`
	Value    *big.Int `json:"value"`
	Decimals uint8    `json:"decimals"`
}

// GetSummary aggregates the live feedback matching the client and tag
// filters at the dominant decimal scale.
func (api *PublicReputationAPI) GetSummary(_ context.Context, id types.AgentID, clients []common.Address, tag1, tag2 string) (*SummaryResult, error) {
	count, value, decimals, err := api.registry.FeedbackSummary(id, clients, tag1, tag2)
	if err != nil {
		return nil, err
	}
	return &SummaryResult{Count: count, Value: value, Decimals: decimals}, nil
}

// ReadFeedback returns a single feedback entry.
func (api *PublicReputationAPI) ReadFeedback(_ context.Context, id types.AgentID, client common.Address, seq uint64) (*FeedbackResult, error) {
	fb, err := api.registry.ReadFeedback(id, client, seq)
	if err != nil {
		return nil, err
	}
	result := feedbackResult(fb)
	return &result, nil
}

// ReadAllFeedback returns the entries matching the filters, including
// revoked entries on request.
func (api *PublicReputationAPI) ReadAllFeedback(_ context.Context, id types.AgentID, clients []common.Address, tag1, tag2 string, includeRevoked bool) ([]FeedbackResult, error) {
	entries := api.registry.ReadAllFeedback(id, clients, tag1, tag2, includeRevoked)
	results := make([]FeedbackResult, len(entries))
	for i, fb := range entries {
		results[i] = feedbackResult(fb)
	}
	return results, nil
}

// GetClients returns every account that ever left feedback for the agent.
func (api *PublicReputationAPI) GetClients(_ context.Context, id types.AgentID) ([]common.Address, error) {
	return api.registry.Clients(id), nil
}

// GetLastIndex returns the highest sequence number the client has used for
// the agent.
func (api *PublicReputationAPI) GetLastIndex(_ context.Context, id types.AgentID, client common.Address) (uint64, error) {
	return api.registry.LastIndex(id, client), nil
}

// GetResponseCount counts the distinct responders on an entry, restricted
// to the filter set when one is given.
func (api *PublicReputationAPI) GetResponseCount(_ context.Context, id types.AgentID, client common.Address, seq uint64, filter []common.Address) (uint64, error) {
	return api.registry.ResponseCount(id, client, seq, filter), nil
}

// PublicValidationAPI provides the public read API over the attestation
// registry.
type PublicValidationAPI struct {
	registry *Registry
}

// NewPublicValidationAPI creates a new validation registry API.
func NewPublicValidationAPI(registry *Registry) *PublicValidationAPI {
	return &PublicValidationAPI{registry: registry}
}

// ValidationResult is the JSON shape of an attestation record.
type ValidationResult struct {
	Request     common.Hash    `json:"request"`
	Agent       types.AgentID  `json:"agent"`
	Validator   common.Address `json:"validator"`
	CriteriaURI string         `json:"criteriaUri,omitempty"`
	Score       uint8          `json:"score"`
	Responded   bool           `json:"responded"`
	Tag         string         `json:"tag,omitempty"`
	ReportURI   string         `json:"reportUri,omitempty"`
	LastUpdate  uint64         `json:"lastUpdate"`
}

// GetValidation returns the attestation record behind a request identifier.
func (api *PublicValidationAPI) GetValidation(_ context.Context, request common.Hash) (*ValidationResult, error) {
	v, err := api.registry.Validation(request)
	if err != nil {
		return nil, err
	}
	return &ValidationResult{
		Request:     v.Request,
		Agent:       v.Agent,
		Validator:   v.Validator,
		CriteriaURI: v.CriteriaURI,
		Score:       v.Score,
		Responded:   v.Responded,
		Tag:         v.Tag,
		ReportURI:   v.ReportURI,
		LastUpdate:  v.LastUpdate,
	}, nil
}

// ValidationExists reports whether a request identifier is taken.
func (api *PublicValidationAPI) ValidationExists(_ context.Context, request common.Hash) (bool, error) {
	return api.registry.ValidationExists(request), nil
}

// GetAgentValidations returns every request identifier opened on the agent.
func (api *PublicValidationAPI) GetAgentValidations(_ context.Context, id types.AgentID) ([]common.Hash, error) {
	return api.registry.AgentValidations(id), nil
}

// GetValidatorRequests returns every request identifier addressed to the
// validator.
func (api *PublicValidationAPI) GetValidatorRequests(_ context.Context, validator common.Address) ([]common.Hash, error) {
	return api.registry.ValidatorRequests(validator), nil
}

// ValidationSummaryResult is the JSON response for GetSummary.
type ValidationSummaryResult struct {
	Count uint64 `json:"count"`
	Score uint8  `json:"score"`
}

// GetSummary averages the responded attestations matching the validator and
// tag filters.
func (api *PublicValidationAPI) GetSummary(_ context.Context, id types.AgentID, validators []common.Address, tag string) (*ValidationSummaryResult, error) {
	count, score := api.registry.ValidationSummary(id, validators, tag)
	return &ValidationSummaryResult{Count: count, Score: score}, nil
}
