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
	"errors"
	"testing"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/stretchr/testify/assert"
)

func (h *testRegistry) request(caller common.Address, id types.AgentID, validator common.Address, request common.Hash) {
	h.t.Helper()
	if err := h.registry.RequestValidation(h.call(caller, nil), id, validator, "ipfs://criteria", request); err != nil {
		h.t.Fatalf("request validation: %v", err)
	}
}

func TestValidationRequest(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)
	req := common.HexToHash("0x01")

	h.request(alice, id, carol, req)

	v, err := h.registry.Validation(req)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	assert.Equal(t, id, v.Agent)
	assert.Equal(t, carol, v.Validator)
	assert.Equal(t, false, v.Responded)
	assert.Equal(t, true, h.registry.ValidationExists(req))
	assert.Equal(t, false, h.registry.ValidationExists(common.HexToHash("0xff")))
	assert.Equal(t, []common.Hash{req}, h.registry.AgentValidations(id))
	assert.Equal(t, []common.Hash{req}, h.registry.ValidatorRequests(carol))

	// Request ids are single use, across agents too.
	if err := h.registry.RequestValidation(h.call(alice, nil), id, dave, "", req); !errors.Is(err, ErrRequestExists) {
		t.Fatalf("duplicate: have %v, want ErrRequestExists", err)
	}
	id2 := h.register(bob)
	if err := h.registry.RequestValidation(h.call(bob, nil), id2, dave, "", req); !errors.Is(err, ErrRequestExists) {
		t.Fatalf("cross-agent duplicate: have %v, want ErrRequestExists", err)
	}
}

func TestValidationRequestGuards(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	if err := h.registry.RequestValidation(h.call(alice, nil), id, carol, "", common.Hash{}); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("zero request: have %v, want ErrEmptyRequest", err)
	}
	if err := h.registry.RequestValidation(h.call(alice, nil), id, common.Address{}, "", common.HexToHash("0x01")); !errors.Is(err, ErrZeroAddress) {
		t.Fatalf("zero validator: have %v, want ErrZeroAddress", err)
	}
	if err := h.registry.RequestValidation(h.call(bob, nil), id, carol, "", common.HexToHash("0x01")); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger: have %v, want ErrNotAuthorized", err)
	}
	if err := h.registry.RequestValidation(h.call(alice, nil), 99, carol, "", common.HexToHash("0x01")); !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("unknown agent: have %v, want ErrAgentNotFound", err)
	}
}

func TestValidationRespond(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)
	req := common.HexToHash("0x01")
	h.request(alice, id, carol, req)

	// Only the assigned validator answers.
	if err := h.registry.RespondValidation(h.call(dave, nil), req, 80, "", ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign respond: have %v, want ErrNotAuthorized", err)
	}
	if err := h.registry.RespondValidation(h.call(carol, nil), req, 101, "", ""); !errors.Is(err, ErrScoreOutOfRange) {
		t.Fatalf("score: have %v, want ErrScoreOutOfRange", err)
	}
	if err := h.registry.RespondValidation(h.call(carol, nil), common.HexToHash("0x02"), 80, "", ""); !errors.Is(err, ErrValidationNotFound) {
		t.Fatalf("unknown request: have %v, want ErrValidationNotFound", err)
	}

	h.now += 10
	if err := h.registry.RespondValidation(h.call(carol, nil), req, 80, "security", "ipfs://report"); err != nil {
		t.Fatalf("respond: %v", err)
	}
	v, _ := h.registry.Validation(req)
	assert.Equal(t, uint8(80), v.Score)
	assert.Equal(t, true, v.Responded)
	assert.Equal(t, "security", v.Tag)
	assert.Equal(t, h.now, v.LastUpdate)

	// A second answer overwrites the first.
	h.now += 10
	if err := h.registry.RespondValidation(h.call(carol, nil), req, 60, "security", ""); err != nil {
		t.Fatalf("re-respond: %v", err)
	}
	v, _ = h.registry.Validation(req)
	assert.Equal(t, uint8(60), v.Score)
	assert.Equal(t, h.now, v.LastUpdate)
}

func TestValidationZeroScoreCounts(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	// One answered zero and one pending request. The zero is a real score,
	// the pending request is invisible to the summary.
	h.request(alice, id, carol, common.HexToHash("0x01"))
	h.request(alice, id, carol, common.HexToHash("0x02"))
	if err := h.registry.RespondValidation(h.call(carol, nil), common.HexToHash("0x01"), 0, "", ""); err != nil {
		t.Fatalf("respond: %v", err)
	}
	count, score := h.registry.ValidationSummary(id, nil, "")
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, uint8(0), score)

	v, _ := h.registry.Validation(common.HexToHash("0x02"))
	assert.Equal(t, false, v.Responded)
}

func TestValidationSummaryFilters(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	respond := func(req common.Hash, validator common.Address, score uint8, tag string) {
		t.Helper()
		h.request(alice, id, validator, req)
		if err := h.registry.RespondValidation(h.call(validator, nil), req, score, tag, ""); err != nil {
			t.Fatalf("respond: %v", err)
		}
	}
	respond(common.HexToHash("0x01"), carol, 90, "security")
	respond(common.HexToHash("0x02"), carol, 70, "uptime")
	respond(common.HexToHash("0x03"), dave, 50, "security")

	count, score := h.registry.ValidationSummary(id, nil, "")
	assert.Equal(t, uint64(3), count)
	assert.Equal(t, uint8(70), score)

	count, score = h.registry.ValidationSummary(id, []common.Address{carol}, "")
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint8(80), score)

	count, score = h.registry.ValidationSummary(id, nil, "security")
	assert.Equal(t, uint64(2), count)
	assert.Equal(t, uint8(70), score)

	// The average truncates.
	respond(common.HexToHash("0x04"), dave, 95, "uptime")
	count, score = h.registry.ValidationSummary(id, nil, "")
	assert.Equal(t, uint64(4), count)
	assert.Equal(t, uint8(76), score)

	count, score = h.registry.ValidationSummary(99, nil, "")
	assert.Equal(t, uint64(0), count)
	assert.Equal(t, uint8(0), score)
}

func TestValidationDelegatedRequest(t *testing.T) {
	h := newTestRegistry(t)
	id := h.register(alice)

	// Operators and approved spenders may open requests on the identity.
	if err := h.registry.SetApprovalForAll(h.call(alice, nil), bob, true); err != nil {
		t.Fatalf("set operator: %v", err)
	}
	h.request(bob, id, carol, common.HexToHash("0x01"))

	if err := h.registry.Approve(h.call(alice, nil), id, dave); err != nil {
		t.Fatalf("approve: %v", err)
	}
	h.request(dave, id, carol, common.HexToHash("0x02"))

	assert.Equal(t, 2, len(h.registry.AgentValidations(id)))
}
