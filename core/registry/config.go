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
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/params"
)

// Config collects the deployment parameters of one registry instance. The
// zero value is not usable, start from Defaults and override.
type Config struct {
	// ChainID binds signatures to one network.
	ChainID *big.Int

	// Address is the registry's own account, holding locked stakes and
	// anchoring the signing domain.
	Address common.Address

	// Treasury receives the removed portion of slashed stakes.
	Treasury common.Address

	// RequiredStake is the exact value a registration must attach.
	RequiredStake *big.Int

	// SlashThreshold is the reputation mean, at WAD scale, strictly below
	// which a quorum of feedback triggers slashing.
	SlashThreshold *big.Int

	// SlashQuorum is the minimum number of live feedback entries before
	// the threshold rule applies.
	SlashQuorum int

	// WalletWindow bounds, in seconds, how far in the future a wallet
	// binding deadline may lie.
	WalletWindow uint64

	// DomainName and DomainVersion feed the structured signing domain.
	DomainName    string
	DomainVersion string
}

// Defaults contains the registry parameters of the main deployment.
var Defaults = Config{
	ChainID:        big.NewInt(1329),
	Address:        common.HexToAddress("0x5e9e64a907082a6a332c46e3cb8be1c0d8fb95d0"),
	Treasury:       common.HexToAddress("0x000000000000000000000000000000000000dEaD"),
	RequiredStake:  params.RegistrationStake,
	SlashThreshold: params.SlashThreshold,
	SlashQuorum:    params.SlashQuorum,
	WalletWindow:   params.WalletBindingWindow,
	DomainName:     params.SigningDomainName,
	DomainVersion:  params.SigningDomainVersion,
}

// sanitize fills the holes of a partially specified configuration from the
// defaults and returns an independent copy.
func (c *Config) sanitize() *Config {
	cfg := Defaults
	if c != nil {
		cfg = *c
	}
	if cfg.ChainID == nil {
		cfg.ChainID = new(big.Int).Set(Defaults.ChainID)
	}
	if cfg.RequiredStake == nil {
		cfg.RequiredStake = new(big.Int).Set(Defaults.RequiredStake)
	}
	if cfg.SlashThreshold == nil {
		cfg.SlashThreshold = new(big.Int).Set(Defaults.SlashThreshold)
	}
	if cfg.SlashQuorum == 0 {
		cfg.SlashQuorum = Defaults.SlashQuorum
	}
	if cfg.WalletWindow == 0 {
		cfg.WalletWindow = Defaults.WalletWindow
	}
	if cfg.DomainName == "" {
		cfg.DomainName = Defaults.DomainName
	}
	if cfg.DomainVersion == "" {
		cfg.DomainVersion = Defaults.DomainVersion
	}
	return &cfg
}

// CallContext carries the ambient parameters of one registry invocation: who
// is calling, how much value rides along and the ledger time the call is
// ordered at.
type CallContext struct {
	Caller common.Address
	Value  *big.Int
	Time   uint64
}

// value returns the attached amount, treating nil as zero.
func (ctx *CallContext) value() *big.Int {
	if ctx.Value == nil {
		return new(big.Int)
	}
	return ctx.Value
}
