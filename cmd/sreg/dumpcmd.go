// Copyright 2021 The go-sentinet Authors
// This file is part of go-sentinet.
//
// go-sentinet is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// go-sentinet is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with go-sentinet. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/rawdb"
	"github.com/sentinet/go-sentinet/core/registry"
	"github.com/sentinet/go-sentinet/core/types"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	eventsCommand = cli.Command{
		Action:   migrateFlags(doListEvents),
		Name:     "events",
		Usage:    "List committed registry events",
		Flags:    []cli.Flag{dataDirFlag, fromSeqFlag, countFlag},
		Category: "MISCELLANEOUS COMMANDS",
		Description: `
Walks the append-only event journal from --from-seq onwards. Sequence
numbers start at one and are gapless.`,
	}
	dumpCommand = cli.Command{
		Action:   migrateFlags(doDump),
		Name:     "dump",
		Usage:    "Dump all agents and ledger balances",
		Flags:    []cli.Flag{dataDirFlag},
		Category: "MISCELLANEOUS COMMANDS",
	}
)

var (
	fromSeqFlag = cli.Uint64Flag{
		Name:  "from-seq",
		Usage: "First event sequence number to list",
		Value: 1,
	}
	countFlag = cli.Uint64Flag{
		Name:  "count",
		Usage: "Maximum number of events to list",
		Value: 50,
	}
)

func doListEvents(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	events := reg.Events(ctx.Uint64(fromSeqFlag.Name), ctx.Uint64(countFlag.Name))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Seq", "Time", "Type", "Payload"})
	for _, event := range events {
		table.Append([]string{
			formatUint(event.Seq),
			formatUint(event.Time),
			string(event.Type),
			string(event.Payload),
		})
	}
	table.Render()
	fmt.Printf("head: %s\n", formatUint(reg.EventHead()))
	return nil
}

func doDump(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	fmt.Println("Agents:")
	printAgentTable(reg, reg.AgentIDs())

	balances := rawdb.ReadAllBalances(reg.State().Database().DiskDB())
	addrs := make([]common.Address, 0, len(balances))
	for addr := range balances {
		addrs = append(addrs, addr)
	}
	sort.Slice(addrs, func(i, j int) bool { return bytes.Compare(addrs[i][:], addrs[j][:]) < 0 })

	fmt.Println("Balances:")
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Account", "Balance"})
	for _, addr := range addrs {
		table.Append([]string{addr.Hex(), formatSent(balances[addr])})
	}
	table.Render()
	return nil
}

// printAgentTable renders the identity, stake and slashing status of the
// given agents.
func printAgentTable(reg *registry.Registry, ids []types.AgentID) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Agent", "Owner", "URI", "Stake", "Status"})
	for _, id := range ids {
		agent, err := reg.Agent(id)
		if err != nil {
			continue
		}
		stakeCol, status := "-", "active"
		if stake, err := reg.StakeOf(id); err == nil {
			stakeCol = formatSent(stake.Amount)
			if stake.Slashed {
				status = color.RedString("slashed")
			}
		}
		table.Append([]string{
			formatUint(uint64(id)),
			agent.Owner.Hex(),
			agent.URI,
			stakeCol,
			status,
		})
	}
	table.Render()
}
