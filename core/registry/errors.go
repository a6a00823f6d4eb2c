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

import "errors"

// All registry operations fail with one of the sentinel errors below,
// wrapped with call specific detail where useful. An operation that returns
// an error has left no state behind.
var (
	// ErrAgentNotFound is returned when an operation names an identity
	// number that was never registered or has been deregistered.
	ErrAgentNotFound = errors.New("agent identity not found")

	// ErrFeedbackNotFound is returned when a feedback sequence number is
	// outside the arena of the addressed (identity, client) pair.
	ErrFeedbackNotFound = errors.New("feedback entry not found")

	// ErrValidationNotFound is returned when a validation request id is
	// unknown.
	ErrValidationNotFound = errors.New("validation request not found")

	// ErrIndexOutOfRange is returned by the enumeration accessors when the
	// requested position is past the end.
	ErrIndexOutOfRange = errors.New("enumeration index out of range")

	// ErrNotAuthorized is returned when the caller is neither the owner,
	// an approved operator of the owner, nor the identity's single
	// approved spender.
	ErrNotAuthorized = errors.New("caller is neither owner nor authorized")

	// ErrSelfFeedback is returned when an identity's own controller tries
	// to rate it.
	ErrSelfFeedback = errors.New("feedback from an authorized controller")

	// ErrRequestExists is returned when a validation request reuses an
	// already known request id.
	ErrRequestExists = errors.New("validation request id already known")

	// ErrAlreadyRevoked is returned on a second revocation of the same
	// feedback entry.
	ErrAlreadyRevoked = errors.New("feedback entry already revoked")

	// ErrAlreadyStaked is returned when a stake record already exists for
	// the identity being staked.
	ErrAlreadyStaked = errors.New("identity already staked")

	// ErrNotStaked is returned when a refund finds no stake record.
	ErrNotStaked = errors.New("identity not staked")

	// ErrDecimalsOutOfRange is returned for a feedback decimal scale above
	// the supported maximum.
	ErrDecimalsOutOfRange = errors.New("decimal scale exceeds maximum")

	// ErrValueOutOfRange is returned for a feedback value beyond the
	// sentinel magnitude bound.
	ErrValueOutOfRange = errors.New("feedback value exceeds sentinel bound")

	// ErrScoreOutOfRange is returned for a validation score above 100.
	ErrScoreOutOfRange = errors.New("validation score exceeds maximum")

	// ErrInvalidSignature is returned when neither the direct recovery nor
	// the delegated validation path vouches for a wallet binding.
	ErrInvalidSignature = errors.New("invalid agent wallet signature")

	// ErrSignatureDeadline is returned when a wallet binding deadline is
	// already past or further out than the allowed window.
	ErrSignatureDeadline = errors.New("binding deadline outside allowed window")

	// ErrReservedKey is returned when the generic metadata path touches
	// the protected agent wallet key.
	ErrReservedKey = errors.New("reserved metadata key")

	// ErrInsufficientValue is returned when the value attached to a
	// registration differs from the required stake.
	ErrInsufficientValue = errors.New("attached value does not match required stake")

	// ErrInsufficientFunds is returned by the development ledger when the
	// paying account cannot cover a transfer.
	ErrInsufficientFunds = errors.New("insufficient funds for transfer")

	// ErrZeroAddress is returned when an operation names the zero address
	// where a real account is required.
	ErrZeroAddress = errors.New("zero address not allowed")

	// ErrEmptyRequest is returned when a validation request id is the zero
	// hash.
	ErrEmptyRequest = errors.New("empty validation request id")

	// ErrReentrantCall is returned when a value transfer recipient calls
	// back into a mutating operation before the outer one finalized.
	ErrReentrantCall = errors.New("reentrant registry invocation")
)
