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

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"

	mapset "github.com/deckarep/golang-set"
)

// RequestValidation opens an attestation request on the agent, addressed to
// the given validator. The request identifier is chosen by the caller and
// must be unique across the registry for all time.
func (r *Registry) RequestValidation(ctx CallContext, id types.AgentID, validator common.Address, criteriaURI string, request common.Hash) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	if request == (common.Hash{}) {
		return fmt.Errorf("%w: request id", ErrEmptyRequest)
	}
	if validator == (common.Address{}) {
		return fmt.Errorf("%w: validator", ErrZeroAddress)
	}
	agent, err := r.getAgent(id)
	if err != nil {
		return err
	}
	if !r.isAuthorizedOrOwner(ctx.Caller, agent) {
		return fmt.Errorf("%w: caller %s may not request validation for agent %d", ErrNotAuthorized, ctx.Caller, id)
	}
	if r.state.GetValidation(request) != nil {
		return fmt.Errorf("%w: %s", ErrRequestExists, request)
	}
	return r.execute(func() error {
		r.state.CreateValidation(&types.Validation{
			Request:     request,
			Validator:   validator,
			Agent:       id,
			CriteriaURI: criteriaURI,
			LastUpdate:  ctx.Time,
		})
		return r.state.AddEvent(types.EventValidationRequested, ctx.Time, &types.ValidationRequestedPayload{
			Request:     request,
			Agent:       id,
			Validator:   validator,
			CriteriaURI: criteriaURI,
		})
	})
}

// RespondValidation records the assigned validator's score for a request.
// Responding again overwrites the previous answer, every response bumps the
// record's update time.
func (r *Registry) RespondValidation(ctx CallContext, request common.Hash, score uint8, tag, reportURI string) error {
	if err := r.checkCtx(ctx); err != nil {
		return err
	}
	if score > params.MaxValidationScore {
		return fmt.Errorf("%w: %d", ErrScoreOutOfRange, score)
	}
	v := r.state.GetValidation(request)
	if v == nil {
		return fmt.Errorf("%w: %s", ErrValidationNotFound, request)
	}
	if ctx.Caller != v.Validator {
		return fmt.Errorf("%w: request %s is assigned to %s", ErrNotAuthorized, request, v.Validator)
	}
	return r.execute(func() error {
		r.state.RespondValidation(request, score, tag, reportURI, ctx.Time)
		return r.state.AddEvent(types.EventValidationResponded, ctx.Time, &types.ValidationRespondedPayload{
			Request:   request,
			Agent:     v.Agent,
			Validator: v.Validator,
			Score:     score,
			Tag:       tag,
			ReportURI: reportURI,
		})
	})
}

// ValidationSummary averages the responded attestations matching the
// validator and tag filters, truncating toward zero. Pending requests do
// not count, a responded zero score does.
func (r *Registry) ValidationSummary(id types.AgentID, validators []common.Address, tag string) (uint64, uint8) {
	var wanted mapset.Set
	if len(validators) > 0 {
		wanted = mapset.NewSet()
		for _, addr := range validators {
			wanted.Add(addr)
		}
	}
	count := uint64(0)
	sum := uint64(0)
	for _, request := range r.state.AgentValidations(id) {
		v := r.state.GetValidation(request)
		if v == nil || !v.Responded {
			continue
		}
		if wanted != nil && !wanted.Contains(v.Validator) {
			continue
		}
		if tag != "" && v.Tag != tag {
			continue
		}
		sum += uint64(v.Score)
		count++
	}
	if count == 0 {
		return 0, 0
	}
	return count, uint8(sum / count)
}

// Validation returns the attestation record behind a request identifier.
func (r *Registry) Validation(request common.Hash) (*types.Validation, error) {
	v := r.state.GetValidation(request)
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrValidationNotFound, request)
	}
	return v, nil
}

// ValidationExists reports whether a request identifier is taken.
func (r *Registry) ValidationExists(request common.Hash) bool {
	return r.state.GetValidation(request) != nil
}

// AgentValidations returns every request identifier ever opened on the
// agent, in creation order.
func (r *Registry) AgentValidations(id types.AgentID) []common.Hash {
	return r.state.AgentValidations(id)
}

// ValidatorRequests returns every request identifier ever addressed to the
// validator, in creation order.
func (r *Registry) ValidatorRequests(validator common.Address) []common.Hash {
	return r.state.ValidatorRequests(validator)
}
