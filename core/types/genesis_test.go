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
	"testing"

	"github.com/sentinet/go-sentinet/common"
)

func TestGenesisDecodeLenient(t *testing.T) {
	blob := `{
		"chainId": "0x539",
		"registry": "0x0000000000000000000000000000000000001001",
		"treasury": "0x0000000000000000000000000000000000001002",
		"time": 1700000000,
		"balances": {
			"aaaa000000000000000000000000000000000001": "0xde0b6b3a7640000",
			"0xbbbb000000000000000000000000000000000002": "2000000000000000000"
		}
	}`
	genesis := new(Genesis)
	if err := json.Unmarshal([]byte(blob), genesis); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if genesis.ChainID.Cmp(big.NewInt(1337)) != 0 {
		t.Fatalf("chain id: have %v, want 1337", genesis.ChainID)
	}
	one := common.HexToAddress("0xaaaa000000000000000000000000000000000001")
	if have, want := genesis.Balances[one], big.NewInt(1000000000000000000); have.Cmp(want) != 0 {
		t.Fatalf("hex balance: have %v, want %v", have, want)
	}
	two := common.HexToAddress("0xbbbb000000000000000000000000000000000002")
	if have, want := genesis.Balances[two], big.NewInt(2000000000000000000); have.Cmp(want) != 0 {
		t.Fatalf("decimal balance: have %v, want %v", have, want)
	}
}

func TestGenesisRoundTrip(t *testing.T) {
	genesis := &Genesis{
		ChainID:  big.NewInt(1329),
		Registry: common.HexToAddress("0x0000000000000000000000000000000000001001"),
		Treasury: common.HexToAddress("0x0000000000000000000000000000000000001002"),
		Time:     1700000000,
		Balances: map[common.Address]*big.Int{
			common.HexToAddress("0xaaaa000000000000000000000000000000000001"): big.NewInt(42),
		},
	}
	blob, err := json.Marshal(genesis)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded := new(Genesis)
	if err := json.Unmarshal(blob, decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ChainID.Cmp(genesis.ChainID) != 0 || decoded.Registry != genesis.Registry || decoded.Time != genesis.Time {
		t.Fatalf("round trip mismatch: have %+v, want %+v", decoded, genesis)
	}
	for addr, want := range genesis.Balances {
		if have := decoded.Balances[addr]; have == nil || have.Cmp(want) != 0 {
			t.Fatalf("balance %s: have %v, want %v", addr, have, want)
		}
	}
}
