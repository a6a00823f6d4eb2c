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
	"sort"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"
)

// Register mints the next agent identity for the caller, applies the given
// metadata, binds the caller as the agent wallet and escrows the attached
// value as the registration stake. The attached value must match the
// required stake exactly.
func (r *Registry) Register(ctx CallContext, uri string, metadata []types.MetadataEntry) (types.AgentID, error) {
	if err := r.checkCtx(ctx); err != nil {
		return 0, err
	}
	for _, entry := range metadata {
		if entry.Key == params.AgentWalletKey {
			return 0, fmt.Errorf("%w: %q", ErrReservedKey, entry.Key)
		}
	}
	var id types.AgentID
	err := r.execute(func() error {
		id = r.state.CreateAgent(ctx.Caller, uri, ctx.Time)
		if err := r.state.AddEvent(types.EventAgentRegistered, ctx.Time, &types.AgentRegisteredPayload{
			Agent: id,
			Owner: ctx.Caller,
			URI:   uri,
			Stake: ctx.value(),
		}); err != nil {
			return err
		}
		for _, entry := range metadata {
			r.state.SetMetadata(id, entry.Key, entry.Value)
			if err := r.state.AddEvent(types.EventMetadataSet, ctx.Time, &types.MetadataSetPayload{
				Agent: id,
				Key:   entry.Key,
				Value: entry.Value,
			}); err != nil {
				return err
			}
		}
		r.state.SetMetadata(id, params.AgentWalletKey, ctx.Caller.Bytes())
		if err := r.state.AddEvent(types.EventAgentWalletSet, ctx.Time, &types.AgentWalletSetPayload{
			Agent:  id,
			Wallet: ctx.Caller,
		}); err != nil {
			return err
		}
		return r.locker.lock(ctx.Caller, id, ctx.value(), ctx.Time)
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("Agent registered", "id", id, "owner", ctx.Caller, "stake", ctx.value())
	return id, nil
}

// Deregister retires an identity and refunds whatever stake remains to the
// owner. Only the owner may deregister, delegated controllers cannot.
func (r *Registry) Deregister(ctx CallContext, id types.AgentID) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if ctx.Caller != agent.Owner {
		return fmt.Errorf("%w: only the owner may deregister agent %d", ErrNotAuthorized, id)
	}
	stake := r.state.GetStake(id)
	if stake == nil {
		return fmt.Errorf("%w: agent %d", ErrNotStaked, id)
	}
	err = r.execute(func() error {
		r.state.DestroyAgent(id)
		if err := r.state.AddEvent(types.EventAgentDeregistered, ctx.Time, &types.AgentDeregisteredPayload{
			Agent:  id,
			Owner:  agent.Owner,
			Refund: stake.Amount,
		}); err != nil {
			return err
		}
		_, err := r.locker.refund(agent.Owner, id, ctx.Time)
		return err
	})
	if err != nil {
		return err
	}
	r.log.Info("Agent deregistered", "id", id, "owner", agent.Owner, "refund", stake.Amount)
	return nil
}

// Transfer hands an identity to a new owner. Single use approvals and the
// agent wallet binding do not survive the change, the wallet must be bound
// again with the new owner's consent.
func (r *Registry) Transfer(ctx CallContext, id types.AgentID, to common.Address) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	if to == (common.Address{}) {
		return fmt.Errorf("%w: transfer to the zero address", ErrZeroAddress)
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not transfer agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	return r.execute(func() error {
		if agent.Approved != (common.Address{}) {
			r.state.SetApproved(id, common.Address{})
		}
		if len(agent.Metadata[params.AgentWalletKey]) > 0 {
			r.state.SetMetadata(id, params.AgentWalletKey, nil)
			if err := r.state.AddEvent(types.EventAgentWalletUnset, ctx.Time, &types.AgentWalletUnsetPayload{
				Agent: id,
			}); err != nil {
				return err
			}
		}
		r.state.SetOwner(id, to)
		return r.state.AddEvent(types.EventAgentTransferred, ctx.Time, &types.AgentTransferredPayload{
			Agent: id,
			From:  agent.Owner,
			To:    to,
		})
	})
}

// Approve grants spender single use control over the identity, replacing any
// previous approval. Only the owner or a blanket operator may approve, and
// the zero address clears the slot.
func (r *Registry) Approve(ctx CallContext, id types.AgentID, spender common.Address) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if ctx.Caller != agent.Owner && !r.state.IsOperator(agent.Owner, ctx.Caller) {
		return fmt.Errorf("%w: caller %s may not approve for agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	return r.execute(func() error {
		r.state.SetApproved(id, spender)
		return r.state.AddEvent(types.EventApprovalSet, ctx.Time, &types.ApprovalSetPayload{
			Agent:   id,
			Spender: spender,
		})
	})
}

// SetApprovalForAll grants or revokes operator control over every identity
// the caller owns, current and future.
func (r *Registry) SetApprovalForAll(ctx CallContext, operator common.Address, approved bool) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	if operator == (common.Address{}) {
		return fmt.Errorf("%w: operator", ErrZeroAddress)
	}
	return r.execute(func() error {
		r.state.SetOperator(ctx.Caller, operator, approved)
		return r.state.AddEvent(types.EventOperatorSet, ctx.Time, &types.OperatorSetPayload{
			Owner:    ctx.Caller,
			Operator: operator,
			Approved: approved,
		})
	})
}

// SetURI points the identity at a new service descriptor.
func (r *Registry) SetURI(ctx CallContext, id types.AgentID, uri string) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not update agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	return r.execute(func() error {
		r.state.SetURI(id, uri)
		return r.state.AddEvent(types.EventURIUpdated, ctx.Time, &types.URIUpdatedPayload{
			Agent: id,
			URI:   uri,
		})
	})
}

// SetMetadata applies a batch of metadata entries to the identity. An empty
// value deletes the key. The agent wallet key is managed through its own
// signed flow and cannot be touched here.
func (r *Registry) SetMetadata(ctx CallContext, id types.AgentID, entries []types.MetadataEntry) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not update agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	for _, entry := range entries {
		if entry.Key == params.AgentWalletKey {
			return fmt.Errorf("%w: %q", ErrReservedKey, entry.Key)
		}
	}
	return r.execute(func() error {
		for _, entry := range entries {
			r.state.SetMetadata(id, entry.Key, entry.Value)
			if err := r.state.AddEvent(types.EventMetadataSet, ctx.Time, &types.MetadataSetPayload{
				Agent: id,
				Key:   entry.Key,
				Value: entry.Value,
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetAgentWallet binds a wallet account to the identity. The wallet consents
// through a typed data signature over (agent, wallet, owner, deadline), the
// deadline may reach at most WalletWindow seconds past the current time.
func (r *Registry) SetAgentWallet(ctx CallContext, id types.AgentID, newWallet common.Address, deadline uint64, sig []byte) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	if newWallet == (common.Address{}) {
		return fmt.Errorf("%w: wallet", ErrZeroAddress)
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not bind a wallet for agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	if deadline < ctx.Time || deadline > ctx.Time+r.config.WalletWindow {
		return fmt.Errorf("%w: deadline %d, now %d", ErrSignatureDeadline, deadline, ctx.Time)
	}
	digest := r.verifier.BindingDigest(id, newWallet, agent.Owner, deadline)
	if !r.verifier.Verify(newWallet, digest, sig) {
		return fmt.Errorf("%w: wallet %s", ErrInvalidSignature, newWallet)
	}
	return r.execute(func() error {
		r.state.SetMetadata(id, params.AgentWalletKey, newWallet.Bytes())
		return r.state.AddEvent(types.EventAgentWalletSet, ctx.Time, &types.AgentWalletSetPayload{
			Agent:  id,
			Wallet: newWallet,
		})
	})
}

// UnsetAgentWallet clears the agent wallet binding.
func (r *Registry) UnsetAgentWallet(ctx CallContext, id types.AgentID) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not unbind the wallet of agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	return r.execute(func() error {
		r.state.SetMetadata(id, params.AgentWalletKey, nil)
		return r.state.AddEvent(types.EventAgentWalletUnset, ctx.Time, &types.AgentWalletUnsetPayload{
			Agent: id,
		})
	})
}

// Agent returns a copy of the identity record.
func (r *Registry) Agent(id types.AgentID) (*types.Agent, error) {
	return r.getAgent(id)
}

// OwnerOf returns the current owner of an identity.
func (r *Registry) OwnerOf(id types.AgentID) (common.Address, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return common.Address{}, err
	}
	return agent.Owner, nil
}

// AgentWallet returns the bound wallet of an identity, or the zero address
// when no wallet is bound.
func (r *Registry) AgentWallet(id types.AgentID) (common.Address, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return common.Address{}, err
	}
	value := agent.Metadata[params.AgentWalletKey]
	if len(value) != common.AddressLength {
		return common.Address{}, nil
	}
	return common.BytesToAddress(value), nil
}

// IsAuthorizedOrOwner reports whether caller passes the control predicate
// for the identity.
func (r *Registry) IsAuthorizedOrOwner(caller common.Address, id types.AgentID) (bool, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return false, err
	}
	return r.isAuthorizedOrOwner(caller, agent), nil
}

// IsOperator reports whether operator holds blanket approval from owner.
func (r *Registry) IsOperator(owner, operator common.Address) bool {
	return r.state.IsOperator(owner, operator)
}

// AgentCount returns the number of live identities.
func (r *Registry) AgentCount() int {
	return r.state.AgentCount()
}

// AgentByIndex returns the identity at position i in ascending id order
// over the live identities.
func (r *Registry) AgentByIndex(i int) (*types.Agent, error) {
	ids := r.state.AgentIDs()
	if i < 0 || i >= len(ids) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrIndexOutOfRange, i, len(ids))
	}
	return r.getAgent(ids[i])
}

// AgentIDs returns the ids of all live identities in ascending order.
func (r *Registry) AgentIDs() []types.AgentID {
	return r.state.AgentIDs()
}

// AgentsOf returns the ids of the identities owned by the given account.
func (r *Registry) AgentsOf(owner common.Address) []types.AgentID {
	return r.state.OwnedAgents(owner)
}

// OwnedCount returns how many identities the given account owns.
func (r *Registry) OwnedCount(owner common.Address) int {
	return r.state.OwnedCount(owner)
}

// RequiredStake returns the stake a registration must attach.
func (r *Registry) RequiredStake() *big.Int {
	return new(big.Int).Set(r.config.RequiredStake)
}

// StakeOf returns the escrowed stake of an identity.
func (r *Registry) StakeOf(id types.AgentID) (*types.Stake, error) {
	if _, err := r.getAgent(id); err != nil {
		return nil, err
	}
	stake := r.state.GetStake(id)
	if stake == nil {
		return nil, fmt.Errorf("%w: agent %d", ErrNotStaked, id)
	}
	return stake, nil
}

// TotalLocked returns the sum of all currently escrowed stakes.
func (r *Registry) TotalLocked() *big.Int {
	total := new(big.Int)
	for _, id := range r.state.AgentIDs() {
		if stake := r.state.GetStake(id); stake != nil {
			total.Add(total, stake.Amount)
		}
	}
	return total
}

// Exists reports whether an identity is live.
func (r *Registry) Exists(id types.AgentID) bool {
	return r.state.Exist(id)
}

// AgentURI returns the service descriptor of an identity.
func (r *Registry) AgentURI(id types.AgentID) (string, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return "", err
	}
	return agent.URI, nil
}

// Metadata returns one metadata value of an identity. Missing keys yield a
// nil value, not an error.
func (r *Registry) Metadata(id types.AgentID, key string) (hexutil.Bytes, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return nil, err
	}
	return agent.Metadata[key], nil
}

// MetadataKeys returns the metadata keys of an identity in sorted order.
func (r *Registry) MetadataKeys(id types.AgentID) ([]string, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(agent.Metadata))
	for key := range agent.Metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Approved returns the single approved spender of an identity, or the zero
// address when none is set.
func (r *Registry) Approved(id types.AgentID) (common.Address, error) {
	agent, err := r.getAgent(id)
	if err != nil {
		return common.Address{}, err
	}
	return agent.Approved, nil
}
