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

// Package state provides a journaled record layer atop the registry database.
package state

import (
	"fmt"
	"math/big"
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/hexutil"
	"github.com/sentinet/go-sentinet/core/rawdb"
	"github.com/sentinet/go-sentinet/core/types"
)

type revision struct {
	id           int
	journalIndex int
}

// clientSet tracks the feedback clients of one agent, keeping the first-seen
// ordering for enumeration next to a set for cheap membership checks.
type clientSet struct {
	list    []common.Address
	members mapset.Set
}

// StateDB holds the working copy of the registry records. Records are loaded
// lazily, mutated in memory through journaled setters and flushed to the
// backing database in a single batch on Commit. It is the general query
// interface to retrieve:
// * Agent identities
// * Stakes and balances
// * Feedback and validation records
//
// A StateDB is not safe for concurrent use, callers are expected to serialize
// access the same way a single transition processor owns its state.
type StateDB struct {
	db *Database

	// Identity numbering and the global index, loaded on demand.
	nextAgentID  types.AgentID
	nextIDLoaded bool
	index        agentList
	indexLoaded  bool

	// These maps hold 'live' records, which will get modified while
	// processing a registry mutation. A nil value marks a record known to
	// be absent from the database.
	agents            map[types.AgentID]*types.Agent
	stakes            map[types.AgentID]*types.Stake
	arenas            map[arenaRef][]*types.Feedback
	clients           map[types.AgentID]*clientSet
	validations       map[common.Hash]*types.Validation
	agentValidations  map[types.AgentID][]common.Hash
	validatorRequests map[common.Address][]common.Hash
	operators         map[operatorRef]bool
	holdings          map[common.Address]agentList
	balances          map[common.Address]*big.Int

	// Events produced by the current execution. Sequence numbers are
	// assigned when the batch is committed.
	events []*types.Event

	// Journal of state modifications. This is the backbone of
	// Snapshot and RevertToSnapshot.
	journal        *journal
	validRevisions []revision
	nextRevisionId int
}

// New creates a registry state backed by the given record database.
func New(db *Database) *StateDB {
	return &StateDB{
		db:                db,
		agents:            make(map[types.AgentID]*types.Agent),
		stakes:            make(map[types.AgentID]*types.Stake),
		arenas:            make(map[arenaRef][]*types.Feedback),
		clients:           make(map[types.AgentID]*clientSet),
		validations:       make(map[common.Hash]*types.Validation),
		agentValidations:  make(map[types.AgentID][]common.Hash),
		validatorRequests: make(map[common.Address][]common.Hash),
		operators:         make(map[operatorRef]bool),
		holdings:          make(map[common.Address]agentList),
		balances:          make(map[common.Address]*big.Int),
		journal:           newJournal(),
	}
}

// Database retrieves the low level database supporting the state.
func (s *StateDB) Database() *Database {
	return s.db
}

//
// Lazy loaders. Loaded records stay live in the maps, absence is cached as
// an explicit nil so repeated misses stop hitting the database.
//

func (s *StateDB) getAgent(id types.AgentID) *types.Agent {
	if agent, ok := s.agents[id]; ok {
		return agent
	}
	agent := rawdb.ReadAgent(s.db, id)
	s.agents[id] = agent
	return agent
}

func (s *StateDB) getStake(id types.AgentID) *types.Stake {
	if stake, ok := s.stakes[id]; ok {
		return stake
	}
	stake := rawdb.ReadStake(s.db, id)
	s.stakes[id] = stake
	return stake
}

func (s *StateDB) getArena(id types.AgentID, client common.Address) []*types.Feedback {
	key := arenaRef{id, client}
	if arena, ok := s.arenas[key]; ok {
		return arena
	}
	arena := rawdb.ReadFeedbackArena(s.db, id, client)
	s.arenas[key] = arena
	return arena
}

func (s *StateDB) getFeedback(id types.AgentID, client common.Address, seq uint64) *types.Feedback {
	arena := s.getArena(id, client)
	if seq == 0 || seq > uint64(len(arena)) {
		return nil
	}
	return arena[seq-1]
}

func (s *StateDB) getClientSet(id types.AgentID) *clientSet {
	if cs, ok := s.clients[id]; ok {
		return cs
	}
	cs := &clientSet{
		list:    rawdb.ReadClients(s.db, id),
		members: mapset.NewSet(),
	}
	for _, client := range cs.list {
		cs.members.Add(client)
	}
	s.clients[id] = cs
	return cs
}

func (s *StateDB) getValidation(request common.Hash) *types.Validation {
	if v, ok := s.validations[request]; ok {
		return v
	}
	v := rawdb.ReadValidation(s.db, request)
	s.validations[request] = v
	return v
}

func (s *StateDB) getAgentValidations(id types.AgentID) []common.Hash {
	if list, ok := s.agentValidations[id]; ok {
		return list
	}
	list := rawdb.ReadAgentValidations(s.db, id)
	s.agentValidations[id] = list
	return list
}

func (s *StateDB) getValidatorRequests(validator common.Address) []common.Hash {
	if list, ok := s.validatorRequests[validator]; ok {
		return list
	}
	list := rawdb.ReadValidatorRequests(s.db, validator)
	s.validatorRequests[validator] = list
	return list
}

func (s *StateDB) getHoldings(owner common.Address) agentList {
	if list, ok := s.holdings[owner]; ok {
		return list
	}
	list := agentList(rawdb.ReadOwnerAgents(s.db, owner))
	s.holdings[owner] = list
	return list
}

func (s *StateDB) getBalance(addr common.Address) *big.Int {
	if balance, ok := s.balances[addr]; ok {
		return balance
	}
	balance := rawdb.ReadBalance(s.db, addr)
	s.balances[addr] = balance
	return balance
}

func (s *StateDB) loadIndex() agentList {
	if !s.indexLoaded {
		s.index = agentList(rawdb.ReadAgentIndex(s.db))
		s.indexLoaded = true
	}
	return s.index
}

//
// Read accessors. These hand out copies, live records are only ever touched
// through the journaled setters below.
//

// NextAgentID returns the identity number the next registration will receive.
func (s *StateDB) NextAgentID() types.AgentID {
	if !s.nextIDLoaded {
		s.nextAgentID = rawdb.ReadNextAgentID(s.db)
		s.nextIDLoaded = true
	}
	return s.nextAgentID
}

// Exist reports whether an agent identity is registered.
func (s *StateDB) Exist(id types.AgentID) bool {
	return s.getAgent(id) != nil
}

// GetAgent retrieves a copy of an agent record, nil if unknown.
func (s *StateDB) GetAgent(id types.AgentID) *types.Agent {
	return s.getAgent(id).Copy()
}

// GetStake retrieves a copy of an agent's stake record, nil if not staked.
func (s *StateDB) GetStake(id types.AgentID) *types.Stake {
	return s.getStake(id).Copy()
}

// GetFeedback retrieves a copy of a single feedback entry, nil if the
// sequence number is out of range.
func (s *StateDB) GetFeedback(id types.AgentID, client common.Address, seq uint64) *types.Feedback {
	return s.getFeedback(id, client, seq).Copy()
}

// Feedbacks retrieves copies of every feedback entry a client gave an agent,
// in sequence order.
func (s *StateDB) Feedbacks(id types.AgentID, client common.Address) []*types.Feedback {
	arena := s.getArena(id, client)
	if len(arena) == 0 {
		return nil
	}
	cpy := make([]*types.Feedback, len(arena))
	for i, fb := range arena {
		cpy[i] = fb.Copy()
	}
	return cpy
}

// FeedbackCount returns the number of feedback entries a client gave an
// agent, which doubles as the last assigned sequence number.
func (s *StateDB) FeedbackCount(id types.AgentID, client common.Address) uint64 {
	return uint64(len(s.getArena(id, client)))
}

// Clients retrieves the addresses that gave an agent feedback, in first-seen
// order.
func (s *StateDB) Clients(id types.AgentID) []common.Address {
	cs := s.getClientSet(id)
	if len(cs.list) == 0 {
		return nil
	}
	cpy := make([]common.Address, len(cs.list))
	copy(cpy, cs.list)
	return cpy
}

// GetValidation retrieves a copy of a validation record, nil if unknown.
func (s *StateDB) GetValidation(request common.Hash) *types.Validation {
	return s.getValidation(request).Copy()
}

// AgentValidations retrieves the validation requests recorded against an
// agent.
func (s *StateDB) AgentValidations(id types.AgentID) []common.Hash {
	list := s.getAgentValidations(id)
	if len(list) == 0 {
		return nil
	}
	cpy := make([]common.Hash, len(list))
	copy(cpy, list)
	return cpy
}

// ValidatorRequests retrieves the validation requests assigned to a
// validator.
func (s *StateDB) ValidatorRequests(validator common.Address) []common.Hash {
	list := s.getValidatorRequests(validator)
	if len(list) == 0 {
		return nil
	}
	cpy := make([]common.Hash, len(list))
	copy(cpy, list)
	return cpy
}

// IsOperator reports whether operator holds a blanket approval from owner.
func (s *StateDB) IsOperator(owner, operator common.Address) bool {
	key := operatorRef{owner, operator}
	if approved, ok := s.operators[key]; ok {
		return approved
	}
	approved := rawdb.ReadOperatorApproval(s.db, owner, operator)
	s.operators[key] = approved
	return approved
}

// OwnedAgents retrieves the identities owned by an address, ascending.
func (s *StateDB) OwnedAgents(owner common.Address) []types.AgentID {
	return s.getHoldings(owner).copyList()
}

// OwnedCount returns the number of identities owned by an address.
func (s *StateDB) OwnedCount(owner common.Address) int {
	return len(s.getHoldings(owner))
}

// AgentIDs retrieves the full registration index, ascending.
func (s *StateDB) AgentIDs() []types.AgentID {
	return s.loadIndex().copyList()
}

// AgentCount returns the number of registered identities.
func (s *StateDB) AgentCount() int {
	return len(s.loadIndex())
}

// GetBalance retrieves the ledger balance of an address.
func (s *StateDB) GetBalance(addr common.Address) *big.Int {
	return new(big.Int).Set(s.getBalance(addr))
}

//
// Journaled mutators.
//

// CreateAgent mints the next identity for owner and indexes it. The assigned
// identity number is returned.
func (s *StateDB) CreateAgent(owner common.Address, uri string, createdAt uint64) types.AgentID {
	id := s.NextAgentID()
	s.journal.append(nextIDChange{prev: id})
	s.nextAgentID = id + 1

	s.journal.append(identityCreateChange{id: id})
	s.agents[id] = &types.Agent{
		ID:        id,
		Owner:     owner,
		URI:       uri,
		Metadata:  make(map[string]hexutil.Bytes),
		CreatedAt: createdAt,
	}
	s.loadIndex()
	s.journal.append(indexInsertChange{id: id})
	s.index = s.index.insert(id)

	list := s.getHoldings(owner)
	s.journal.append(holdingInsertChange{owner: owner, id: id})
	s.holdings[owner] = list.insert(id)
	return id
}

// DestroyAgent removes an identity record and drops it from the indexes.
// The caller must ensure the identity exists.
func (s *StateDB) DestroyAgent(id types.AgentID) {
	agent := s.getAgent(id)
	s.journal.append(identityDestroyChange{prev: agent})
	s.agents[id] = nil

	s.loadIndex()
	s.journal.append(indexRemoveChange{id: id})
	s.index = s.index.remove(id)

	list := s.getHoldings(agent.Owner)
	s.journal.append(holdingRemoveChange{owner: agent.Owner, id: id})
	s.holdings[agent.Owner] = list.remove(id)
}

// SetOwner hands an identity to a new owner, moving it between the per-owner
// indexes. The caller must ensure the identity exists.
func (s *StateDB) SetOwner(id types.AgentID, owner common.Address) {
	agent := s.getAgent(id)
	prev := agent.Owner

	s.journal.append(ownerChange{id: id, prev: prev})
	agent.Owner = owner

	prevList := s.getHoldings(prev)
	s.journal.append(holdingRemoveChange{owner: prev, id: id})
	s.holdings[prev] = prevList.remove(id)

	nextList := s.getHoldings(owner)
	s.journal.append(holdingInsertChange{owner: owner, id: id})
	s.holdings[owner] = nextList.insert(id)
}

// SetURI updates the service endpoint document of an identity.
func (s *StateDB) SetURI(id types.AgentID, uri string) {
	agent := s.getAgent(id)
	s.journal.append(uriChange{id: id, prev: agent.URI})
	agent.URI = uri
}

// SetMetadata stores one metadata entry of an identity. An empty value
// removes the entry.
func (s *StateDB) SetMetadata(id types.AgentID, key string, value []byte) {
	agent := s.getAgent(id)
	prev, ok := agent.Metadata[key]
	s.journal.append(metadataChange{id: id, key: key, prev: prev, prevExists: ok})
	if len(value) == 0 {
		delete(agent.Metadata, key)
		return
	}
	cpy := make(hexutil.Bytes, len(value))
	copy(cpy, value)
	agent.Metadata[key] = cpy
}

// SetApproved designates the single third-party spender of an identity. The
// zero address clears the approval.
func (s *StateDB) SetApproved(id types.AgentID, spender common.Address) {
	agent := s.getAgent(id)
	s.journal.append(approvalChange{id: id, prev: agent.Approved})
	agent.Approved = spender
}

// SetOperator grants or revokes a blanket approval over all identities of
// owner.
func (s *StateDB) SetOperator(owner, operator common.Address, approved bool) {
	prev := s.IsOperator(owner, operator)
	s.journal.append(operatorChange{owner: owner, operator: operator, prev: prev})
	s.operators[operatorRef{owner, operator}] = approved
}

// CreateStake opens a stake record for an identity.
func (s *StateDB) CreateStake(id types.AgentID, amount *big.Int) {
	s.getStake(id)
	s.journal.append(stakeCreateChange{id: id})
	s.stakes[id] = &types.Stake{Amount: new(big.Int).Set(amount)}
}

// SetStakeAmount rewrites the locked amount of a stake record.
func (s *StateDB) SetStakeAmount(id types.AgentID, amount *big.Int) {
	stake := s.getStake(id)
	s.journal.append(stakeAmountChange{id: id, prev: stake.Amount})
	stake.Amount = new(big.Int).Set(amount)
}

// SetSlashed flips the slashing marker of a stake record.
func (s *StateDB) SetSlashed(id types.AgentID, slashed bool) {
	stake := s.getStake(id)
	s.journal.append(slashedChange{id: id, prev: stake.Slashed})
	stake.Slashed = slashed
}

// DeleteStake removes the stake record of an identity. The caller must
// ensure the stake exists.
func (s *StateDB) DeleteStake(id types.AgentID) {
	stake := s.getStake(id)
	s.journal.append(stakeDeleteChange{id: id, prev: stake})
	s.stakes[id] = nil
}

// AppendFeedback adds a feedback entry to the client's arena for an agent,
// assigning the next dense sequence number. The client is also folded into
// the agent's client index on first contact.
func (s *StateDB) AppendFeedback(id types.AgentID, client common.Address, fb *types.Feedback) uint64 {
	arena := s.getArena(id, client)
	fb.Client = client
	fb.Seq = uint64(len(arena)) + 1

	key := arenaRef{id, client}
	s.journal.append(feedbackAppendChange{id: id, client: client})
	s.arenas[key] = append(arena, fb)

	cs := s.getClientSet(id)
	if !cs.members.Contains(client) {
		s.journal.append(clientAddChange{id: id, client: client})
		cs.members.Add(client)
		cs.list = append(cs.list, client)
	}
	return fb.Seq
}

// RevokeFeedback marks a feedback entry revoked. The caller must ensure the
// entry exists.
func (s *StateDB) RevokeFeedback(id types.AgentID, client common.Address, seq uint64) {
	fb := s.getFeedback(id, client, seq)
	s.journal.append(feedbackRevokeChange{id: id, client: client, seq: seq})
	fb.Revoked = true
}

// AddResponder appends a responder to a feedback entry. The caller must
// ensure the entry exists and handles responder dedup itself.
func (s *StateDB) AddResponder(id types.AgentID, client common.Address, seq uint64, responder common.Address) {
	fb := s.getFeedback(id, client, seq)
	s.journal.append(responderAddChange{id: id, client: client, seq: seq})
	fb.Responders = append(fb.Responders, responder)
}

// CreateValidation stores a fresh validation request and indexes it for both
// the agent and the assigned validator. The caller must ensure the request
// identifier is unused.
func (s *StateDB) CreateValidation(v *types.Validation) {
	s.getValidation(v.Request)
	s.journal.append(validationCreateChange{request: v.Request})
	s.validations[v.Request] = v

	agentList := s.getAgentValidations(v.Agent)
	s.journal.append(agentValidsInsertChange{id: v.Agent})
	s.agentValidations[v.Agent] = append(agentList, v.Request)

	validatorList := s.getValidatorRequests(v.Validator)
	s.journal.append(validatorReqInsertChange{validator: v.Validator})
	s.validatorRequests[v.Validator] = append(validatorList, v.Request)
}

// RespondValidation records, or overwrites, the validator's verdict on a
// request. The caller must ensure the request exists.
func (s *StateDB) RespondValidation(request common.Hash, score uint8, tag, reportURI string, update uint64) {
	v := s.getValidation(request)
	s.journal.append(validationRespondChange{
		request:       request,
		prevScore:     v.Score,
		prevResponded: v.Responded,
		prevTag:       v.Tag,
		prevReportURI: v.ReportURI,
		prevUpdate:    v.LastUpdate,
	})
	v.Score = score
	v.Responded = true
	v.Tag = tag
	v.ReportURI = reportURI
	v.LastUpdate = update
}

// SetBalance rewrites the ledger balance of an address.
func (s *StateDB) SetBalance(addr common.Address, amount *big.Int) {
	prev := s.getBalance(addr)
	s.journal.append(balanceChange{account: addr, prev: prev})
	s.balances[addr] = new(big.Int).Set(amount)
}

// AddBalance adds amount to the ledger balance of an address.
func (s *StateDB) AddBalance(addr common.Address, amount *big.Int) {
	prev := s.getBalance(addr)
	s.journal.append(balanceChange{account: addr, prev: prev})
	s.balances[addr] = new(big.Int).Add(prev, amount)
}

// SubBalance subtracts amount from the ledger balance of an address.
func (s *StateDB) SubBalance(addr common.Address, amount *big.Int) {
	prev := s.getBalance(addr)
	s.journal.append(balanceChange{account: addr, prev: prev})
	s.balances[addr] = new(big.Int).Sub(prev, amount)
}

// AddEvent queues an event for emission. Events revert with the mutations
// that produced them and receive their sequence numbers at commit time.
func (s *StateDB) AddEvent(typ types.EventType, time uint64, payload interface{}) error {
	event, err := types.NewEvent(time, typ, payload)
	if err != nil {
		return err
	}
	s.journal.append(addEventChange{})
	s.events = append(s.events, event)
	return nil
}

// Snapshot returns an identifier for the current revision of the state.
func (s *StateDB) Snapshot() int {
	id := s.nextRevisionId
	s.nextRevisionId++
	s.validRevisions = append(s.validRevisions, revision{id, s.journal.length()})
	return id
}

// RevertToSnapshot reverts all state changes made since the given revision.
func (s *StateDB) RevertToSnapshot(revid int) {
	// Find the snapshot in the stack of valid snapshots.
	idx := sort.Search(len(s.validRevisions), func(i int) bool {
		return s.validRevisions[i].id >= revid
	})
	if idx == len(s.validRevisions) || s.validRevisions[idx].id != revid {
		panic(fmt.Errorf("revision id %v cannot be reverted", revid))
	}
	snapshot := s.validRevisions[idx].journalIndex

	// Replay the journal to undo changes and remove invalidated snapshots
	s.journal.revert(s, snapshot)
	s.validRevisions = s.validRevisions[:idx]
}

// Commit flushes every dirty record and queued event to the database in one
// batch and resets the journal. The committed events are returned with their
// permanent sequence numbers filled in.
func (s *StateDB) Commit() ([]*types.Event, error) {
	batch := s.db.NewBatch()
	for ref := range s.journal.dirties {
		var err error
		switch key := ref.(type) {
		case agentRef:
			if agent := s.agents[types.AgentID(key)]; agent != nil {
				err = rawdb.WriteAgent(batch, agent)
			} else {
				err = rawdb.DeleteAgent(batch, types.AgentID(key))
			}
		case stakeRef:
			if stake := s.stakes[types.AgentID(key)]; stake != nil {
				err = rawdb.WriteStake(batch, types.AgentID(key), stake)
			} else {
				err = rawdb.DeleteStake(batch, types.AgentID(key))
			}
		case arenaRef:
			err = rawdb.WriteFeedbackArena(batch, key.id, key.client, s.arenas[key])
		case clientsRef:
			err = rawdb.WriteClients(batch, types.AgentID(key), s.clients[types.AgentID(key)].list)
		case validationRef:
			err = rawdb.WriteValidation(batch, s.validations[common.Hash(key)])
		case agentValidsRef:
			err = rawdb.WriteAgentValidations(batch, types.AgentID(key), s.agentValidations[types.AgentID(key)])
		case validatorRef:
			err = rawdb.WriteValidatorRequests(batch, common.Address(key), s.validatorRequests[common.Address(key)])
		case operatorRef:
			err = rawdb.WriteOperatorApproval(batch, key.owner, key.operator, s.operators[key])
		case holdingRef:
			err = rawdb.WriteOwnerAgents(batch, common.Address(key), s.holdings[common.Address(key)])
		case balanceRef:
			err = rawdb.WriteBalance(batch, common.Address(key), s.balances[common.Address(key)])
		case nextIDRef:
			err = rawdb.WriteNextAgentID(batch, s.nextAgentID)
		case indexRef:
			err = rawdb.WriteAgentIndex(batch, s.index)
		}
		if err != nil {
			return nil, err
		}
	}
	var committed []*types.Event
	if len(s.events) > 0 {
		head := rawdb.ReadEventHead(s.db)
		for i, event := range s.events {
			event.Seq = head + uint64(i) + 1
		}
		if err := rawdb.WriteEvents(batch, s.events); err != nil {
			return nil, err
		}
		committed = s.events
	}
	if err := batch.Write(); err != nil {
		return nil, err
	}
	// The batch is on disk, replay it into the record cache so cached and
	// persistent state stay aligned.
	if err := batch.Replay(cacheWriter{cleans: s.db.cleans}); err != nil {
		return nil, err
	}
	s.events = nil
	s.journal = newJournal()
	s.validRevisions = s.validRevisions[:0]
	s.nextRevisionId = 0
	return committed, nil
}
