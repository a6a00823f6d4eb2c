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

package params

import "math/big"

// Registry protocol constants.
const (
	// AgentWalletKey is the reserved metadata key that binds an agent to its
	// operational wallet. It is written only through the signature-verified
	// wallet binding flow and is rejected by the generic metadata path.
	AgentWalletKey = "agent.wallet"

	// MaxFeedbackDecimals caps the decimal scale of a feedback value.
	MaxFeedbackDecimals = 18

	// MaxValidationScore caps a validator response score.
	MaxValidationScore = 100

	// SlashQuorum is the minimum number of non-revoked feedback entries an
	// agent must have before the stake of that agent can be slashed.
	SlashQuorum = 5

	// SlashDivisor divides the staked amount on a slash. Slashing removes
	// amount/SlashDivisor and is applied at most once per registration.
	SlashDivisor = 2

	// WalletBindingWindow bounds how far in the future, in seconds, a wallet
	// binding signature deadline may lie.
	WalletBindingWindow = 5 * 60

	// SigningDomainName and SigningDomainVersion identify the wallet binding
	// signature domain of this protocol release.
	SigningDomainName    = "Sentinet Agent Registry"
	SigningDomainVersion = "1"
)

var (
	// Wad is the common high precision scale feedback values are normalized
	// to before averaging, 18 decimal places.
	Wad = big.NewInt(Sent)

	// RegistrationStake is the exact value that must accompany an agent
	// registration. It is locked for the lifetime of the identity.
	RegistrationStake = new(big.Int).Mul(big.NewInt(1000), big.NewInt(Sent))

	// SlashThreshold is the Wad scaled feedback average strictly below which
	// a quorum of feedback slashes the stake. An average exactly at the
	// threshold does not slash.
	SlashThreshold = new(big.Int).Mul(big.NewInt(-50), big.NewInt(Sent))

	// MaxFeedbackValue bounds the magnitude of a single feedback value. The
	// bound is a sentinel against absurd inputs, not a currency precision.
	MaxFeedbackValue = new(big.Int).Exp(big.NewInt(10), big.NewInt(38), nil)
)
