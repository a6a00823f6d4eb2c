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
	"fmt"
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/math"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"

	mapset "github.com/deckarep/golang-set"
)

// GiveFeedback appends a signed score from the caller to the agent's
// reputation ledger and returns the entry's sequence number within the
// caller's arena. Accounts that control the identity cannot rate it. Every
// append retriggers the slashing check over the aggregate score.
func (r *Registry) GiveFeedback(ctx CallContext, id types.AgentID, value *big.Int, decimals uint8, tag1, tag2, fileURI string, fileHash common.Hash) (uint64, error) {
	if err := r.checkCtx(ctx); err != nil {
		return 0, err
	}
	if value == nil {
		return 0, fmt.Errorf("%w: nil value", ErrValueOutOfRange)
	}
	if decimals > params.MaxFeedbackDecimals {
		return 0, fmt.Errorf("%w: %d", ErrDecimalsOutOfRange, decimals)
	}
	if new(big.Int).Abs(value).Cmp(params.MaxFeedbackValue) > 0 {
		return 0, fmt.Errorf("%w: %v", ErrValueOutOfRange, value)
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return 0, err
	}
	if r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return 0, fmt.Errorf("%w: %s controls agent %d", ErrSelfFeedback, ctx.Caller, id)
	}
	var seq uint64
	err = r.execute(func() error {
		fb := &types.Feedback{
			Value:    new(big.Int).Set(value),
			Decimals: decimals,
			Tag1:     tag1,
			Tag2:     tag2,
			FileURI:  fileURI,
			FileHash: fileHash,
		}
		seq = r.state.AppendFeedback(id, ctx.Caller, fb)
		if err := r.state.AddEvent(types.EventFeedbackGiven, ctx.Time, &types.FeedbackGivenPayload{
			Agent:    id,
			Client:   ctx.Caller,
			Seq:      seq,
			Value:    value,
			Decimals: decimals,
			Tag1:     tag1,
			Tag2:     tag2,
			FileURI:  fileURI,
			FileHash: fileHash,
		}); err != nil {
			return err
		}
		return r.recheckSlash(id, ctx.Time)
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// RevokeFeedback withdraws one of the caller's own entries. The entry stays
// in the ledger, marked revoked, and drops out of every aggregate from now
// on. Revocation works even after the agent deregistered, but a stake that
// was already slashed stays slashed.
func (r *Registry) RevokeFeedback(ctx CallContext, id types.AgentID, seq uint64) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	entry := r.state.GetFeedback(id, ctx.Caller, seq)
	if entry == nil {
		return fmt.Errorf("%w: agent %d, client %s, seq %d", ErrFeedbackNotFound, id, ctx.Caller, seq)
	}
	if entry.Revoked {
		return fmt.Errorf("%w: agent %d, seq %d", ErrAlreadyRevoked, id, seq)
	}
	return r.execute(func() error {
		r.state.RevokeFeedback(id, ctx.Caller, seq)
		if err := r.state.AddEvent(types.EventFeedbackRevoked, ctx.Time, &types.FeedbackRevokedPayload{
			Agent:  id,
			Client: ctx.Caller,
			Seq:    seq,
		}); err != nil {
			return err
		}
		return r.recheckSlash(id, ctx.Time)
	})
}

// AppendResponse records the caller as a responder on a feedback entry. Any
// account may respond, the agent answering criticism as much as a bystander
// adding context. The responder set is deduplicated, the emitted event is
// not.
func (r *Registry) AppendResponse(ctx CallContext, id types.AgentID, client common.Address, seq uint64, responseURI string, responseHash common.Hash) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	entry := r.state.GetFeedback(id, client, seq)
	if entry == nil {
		return fmt.Errorf("%w: agent %d, client %s, seq %d", ErrFeedbackNotFound, id, client, seq)
	}
	return r.execute(func() error {
		if !entry.HasResponder(ctx.Caller) {
			r.state.AddResponder(id, client, seq, ctx.Caller)
		}
		return r.state.AddEvent(types.EventResponseAppended, ctx.Time, &types.ResponseAppendedPayload{
			Agent:        id,
			Client:       client,
			Seq:          seq,
			Responder:    ctx.Caller,
			ResponseURI:  responseURI,
			ResponseHash: responseHash,
		})
	})
}

// recheckSlash recomputes the plain mean over every live feedback value and
// hands it to the slashing evaluator. Decimals are ignored here, the
// slashing scale is fixed at raw token units.
func (r *Registry) recheckSlash(id types.AgentID, time uint64) error {
	sum := new(big.Int)
	count := 0
	for _, client := range r.state.Clients(id) {
		for _, fb := range r.state.Feedbacks(id, client) {
			if fb.Revoked {
				continue
			}
			sum.Add(sum, fb.Value)
			count++
		}
	}
	if count == 0 {
		return nil
	}
	meanWad := new(big.Int).Quo(new(big.Int).Mul(sum, params.Wad), big.NewInt(int64(count)))
	return r.slasher.checkAndSlash(id, meanWad, count, time)
}

// FeedbackSummary aggregates the non-revoked entries matching the client and
// tag filters. Values are normalized to the dominant decimal scale of the
// matched set before averaging: the count, the average at that scale and
// the scale itself are returned. An empty client filter means every client.
func (r *Registry) FeedbackSummary(id types.AgentID, clients []common.Address, tag1, tag2 string) (uint64, *big.Int, uint8, error) {
	matched := r.collectFeedback(id, clients, tag1, tag2, false)
	if len(matched) == 0 {
		return 0, new(big.Int), 0, nil
	}

	// The answer's scale is the most common decimals value of the matched
	// set, ties resolving to the smaller scale.
	var counts [params.MaxFeedbackDecimals + 1]int
	for _, fb := range matched {
		counts[fb.Decimals]++
	}
	mode := uint8(0)
	for d := 1; d <= params.MaxFeedbackDecimals; d++ {
		if counts[d] > counts[mode] {
			mode = uint8(d)
		}
	}

	sum := new(big.Int)
	for _, fb := range matched {
		scaled := new(big.Int).Mul(fb.Value, math.BigPow(10, int64(params.MaxFeedbackDecimals-fb.Decimals)))
		sum.Add(sum, scaled)
	}
	avg := new(big.Int).Quo(sum, big.NewInt(int64(len(matched))))
	avg.Quo(avg, math.BigPow(10, int64(params.MaxFeedbackDecimals-mode)))
	return uint64(len(matched)), avg, mode, nil
}

// ReadFeedback returns a single feedback entry.
func (r *Registry) ReadFeedback(id types.AgentID, client common.Address, seq uint64) (*types.Feedback, error) {
	entry := r.state.GetFeedback(id, client, seq)
	if entry == nil {
		return nil, fmt.Errorf("%w: agent %d, client %s, seq %d", ErrFeedbackNotFound, id, client, seq)
	}
	return entry, nil
}

// ReadAllFeedback returns the entries matching the client and tag filters,
// including revoked ones on request.
func (r *Registry) ReadAllFeedback(id types.AgentID, clients []common.Address, tag1, tag2 string, includeRevoked bool) []*types.Feedback {
	return r.collectFeedback(id, clients, tag1, tag2, includeRevoked)
}

// collectFeedback walks the filtered arenas in client order, each arena in
// sequence order.
func (r *Registry) collectFeedback(id types.AgentID, clients []common.Address, tag1, tag2 string, includeRevoked bool) []*types.Feedback {
	if len(clients) == 0 {
		clients = r.state.Clients(id)
	}
	var matched []*types.Feedback
	for _, client := range clients {
		for _, fb := range r.state.Feedbacks(id, client) {
			if fb.Revoked && !includeRevoked {
				continue
			}
			if !fb.MatchesTags(tag1, tag2) {
				continue
			}
			matched = append(matched, fb)
		}
	}
	return matched
}

// Clients returns every account that ever left feedback for the agent.
func (r *Registry) Clients(id types.AgentID) []common.Address {
	return r.state.Clients(id)
}

// LastIndex returns the highest sequence number the client has used for the
// agent, zero when the arena is empty. Revoked entries keep their slot.
func (r *Registry) LastIndex(id types.AgentID, client common.Address) uint64 {
	return r.state.FeedbackCount(id, client)
}

// ResponseCount counts the distinct responders on an entry, restricted to
// the filter set when one is given. Missing entries count zero.
func (r *Registry) ResponseCount(id types.AgentID, client common.Address, seq uint64, filter []common.Address) uint64 {
	entry := r.state.GetFeedback(id, client, seq)
	if entry == nil {
		return 0
	}
	if len(filter) == 0 {
		return uint64(len(entry.Responders))
	}
	wanted := mapset.NewSet()
	for _, addr := range filter {
		wanted.Add(addr)
	}
	count := uint64(0)
	for _, responder := range entry.Responders {
		if wanted.Contains(responder) {
			count++
		}
	}
	return count
}
