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

package types

import (
	"encoding/json"
	"math/big"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/math"
)

// Genesis seeds a fresh registry database: the deployment identity the
// signing domain binds to, the treasury receiving slash proceeds, and the
// initial balances of the development value ledger.
type Genesis struct {
	ChainID  *big.Int                    `json:"chainId"`
	Registry common.Address              `json:"registry"`
	Treasury common.Address              `json:"treasury"`
	Time     uint64                      `json:"time"`
	Balances map[common.Address]*big.Int `json:"balances,omitempty"`
}

// UnmarshalJSON decodes a genesis file. Numbers may be written in decimal or
// hex, balance keys with or without the 0x prefix.
func (g *Genesis) UnmarshalJSON(input []byte) error {
	var dec struct {
		ChainID  *math.HexOrDecimal256                              `json:"chainId"`
		Registry common.Address                                     `json:"registry"`
		Treasury common.Address                                     `json:"treasury"`
		Time     uint64                                             `json:"time"`
		Balances map[common.UnprefixedAddress]*math.HexOrDecimal256 `json:"balances,omitempty"`
	}
	if err := json.Unmarshal(input, &dec); err != nil {
		return err
	}
	g.ChainID = (*big.Int)(dec.ChainID)
	g.Registry = dec.Registry
	g.Treasury = dec.Treasury
	g.Time = dec.Time
	g.Balances = nil
	if dec.Balances != nil {
		g.Balances = make(map[common.Address]*big.Int, len(dec.Balances))
		for addr, balance := range dec.Balances {
			g.Balances[common.Address(addr)] = (*big.Int)(balance)
		}
	}
	return nil
}

// Copy returns a deep copy of the genesis record.
func (g *Genesis) Copy() *Genesis {
	cpy := *g
	if g.ChainID != nil {
		cpy.ChainID = new(big.Int).Set(g.ChainID)
	}
	if g.Balances != nil {
		cpy.Balances = make(map[common.Address]*big.Int, len(g.Balances))
		for addr, bal := range g.Balances {
			cpy.Balances[addr] = new(big.Int).Set(bal)
		}
	}
	return &cpy
}
