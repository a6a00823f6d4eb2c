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

// These are the multipliers for SENT token denominations.
// Example: To get the sen value of an amount in 'gsen', use
//
//	new(big.Int).Mul(value, big.NewInt(params.GSen))
const (
	Sen  = 1
	GSen = 1_000_000_000
	Sent = 1_000_000_000_000_000_000 // 1e18 = 1 SENT
)

// SENT token metadata.
const (
	TokenName     = "SENT"
	TokenSymbol   = "SENT"
	TokenDecimals = 18
)
