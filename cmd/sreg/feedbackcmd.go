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
	"fmt"
	"os"
	"strconv"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/params"

	"github.com/fatih/color"
	log "github.com/inconshreveable/log15"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"
)

var (
	feedbackCommand = cli.Command{
		Name:     "feedback",
		Usage:    "Manage reputation feedback for agent identities",
		Category: "REPUTATION COMMANDS",
		Subcommands: []cli.Command{
			{
				Action: migrateFlags(doGiveFeedback),
				Name:   "give",
				Usage:  "Record a feedback entry for an agent",
				Flags: []cli.Flag{
					dataDirFlag, fromFlag, agentFlag,
					feedbackValueFlag, decimalsFlag, tag1Flag, tag2Flag, fileURIFlag, fileHashFlag,
				},
				Description: `
Records one feedback entry. The value is a scaled integer, so a value of 850
with two decimals reads as 8.50. Owners, operators and approved spenders of
the identity cannot rate it.`,
			},
			{
				Action: migrateFlags(doRevokeFeedback),
				Name:   "revoke",
				Usage:  "Revoke a feedback entry you recorded earlier",
				Flags:  []cli.Flag{dataDirFlag, fromFlag, agentFlag, seqFlag},
			},
			{
				Action: migrateFlags(doRespondFeedback),
				Name:   "respond",
				Usage:  "Attach a response to a feedback entry",
				Flags:  []cli.Flag{dataDirFlag, fromFlag, agentFlag, clientFlag, seqFlag, fileURIFlag, fileHashFlag},
			},
			{
				Action: migrateFlags(doListFeedback),
				Name:   "list",
				Usage:  "List feedback entries of an agent",
				Flags:  []cli.Flag{dataDirFlag, agentFlag, clientsFlag, tag1Flag, tag2Flag, revokedFlag},
			},
		},
	}
	summaryCommand = cli.Command{
		Action:   migrateFlags(doFeedbackSummary),
		Name:     "summary",
		Usage:    "Aggregate the reputation feedback of one agent",
		Flags:    []cli.Flag{dataDirFlag, agentFlag, clientsFlag, tag1Flag, tag2Flag},
		Category: "REPUTATION COMMANDS",
		Description: `
Averages the non-revoked feedback entries matching the given client and tag
filters. The result is reported at the scale most entries used.`,
	}
)

var (
	feedbackValueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "Feedback value as a scaled integer",
	}
	decimalsFlag = cli.UintFlag{
		Name:  "decimals",
		Usage: "Decimal scale of the feedback value (0-18)",
	}
	tag1Flag = cli.StringFlag{
		Name:  "tag1",
		Usage: "First free-form tag",
	}
	tag2Flag = cli.StringFlag{
		Name:  "tag2",
		Usage: "Second free-form tag",
	}
	fileURIFlag = cli.StringFlag{
		Name:  "file-uri",
		Usage: "Off-chain evidence URI",
	}
	fileHashFlag = cli.StringFlag{
		Name:  "file-hash",
		Usage: "Hash of the off-chain evidence",
	}
	clientFlag = cli.StringFlag{
		Name:  "client",
		Usage: "Account that recorded the feedback",
	}
	seqFlag = cli.Uint64Flag{
		Name:  "seq",
		Usage: "Sequence number of the feedback entry",
	}
	clientsFlag = cli.StringSliceFlag{
		Name:  "clients",
		Usage: "Restrict to feedback from these accounts (repeatable)",
	}
	revokedFlag = cli.BoolFlag{
		Name:  "revoked",
		Usage: "Include revoked entries",
	}
)

func doGiveFeedback(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	value := parseBig(ctx.String(feedbackValueFlag.Name), "--value")
	decimals := ctx.Uint(decimalsFlag.Name)
	if decimals > params.MaxFeedbackDecimals {
		Fatalf("--decimals out of range: have %d, max %d", decimals, params.MaxFeedbackDecimals)
	}
	seq, err := reg.GiveFeedback(makeCallContext(ctx, nil), id, value, uint8(decimals),
		ctx.String(tag1Flag.Name), ctx.String(tag2Flag.Name), ctx.String(fileURIFlag.Name), parseHash(ctx.String(fileHashFlag.Name)))
	if err != nil {
		Fatalf("Failed to give feedback: %v", err)
	}
	commitAndReport(reg)
	log.Info("Feedback recorded", "agent", id, "seq", seq)
	return nil
}

func doRevokeFeedback(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	seq := ctx.Uint64(seqFlag.Name)
	if err := reg.RevokeFeedback(makeCallContext(ctx, nil), id, seq); err != nil {
		Fatalf("Failed to revoke feedback: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doRespondFeedback(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	client := parseAddress(ctx, ctx.String(clientFlag.Name), "--client")
	seq := ctx.Uint64(seqFlag.Name)
	err := reg.AppendResponse(makeCallContext(ctx, nil), id, client, seq,
		ctx.String(fileURIFlag.Name), parseHash(ctx.String(fileHashFlag.Name)))
	if err != nil {
		Fatalf("Failed to respond: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doListFeedback(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	clients := parseAddressList(ctx, ctx.StringSlice(clientsFlag.Name), "--clients")
	entries := reg.ReadAllFeedback(id, clients, ctx.String(tag1Flag.Name), ctx.String(tag2Flag.Name), ctx.Bool(revokedFlag.Name))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Client", "Seq", "Value", "Decimals", "Tags", "Status"})
	for _, entry := range entries {
		status := "active"
		if entry.Revoked {
			status = color.RedString("revoked")
		}
		tags := entry.Tag1
		if entry.Tag2 != "" {
			tags += "," + entry.Tag2
		}
		table.Append([]string{
			entry.Client.Hex(),
			formatUint(entry.Seq),
			entry.Value.String(),
			strconv.Itoa(int(entry.Decimals)),
			tags,
			status,
		})
	}
	table.Render()
	return nil
}

func doFeedbackSummary(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	clients := parseAddressList(ctx, ctx.StringSlice(clientsFlag.Name), "--clients")
	count, value, decimals, err := reg.FeedbackSummary(id, clients, ctx.String(tag1Flag.Name), ctx.String(tag2Flag.Name))
	if err != nil {
		Fatalf("Failed to summarize feedback: %v", err)
	}
	fmt.Printf("count:    %s\nvalue:    %s\ndecimals: %d\n", formatUint(count), value, decimals)
	return nil
}

// parseHash decodes an optional 32 byte hex hash, accepting the empty string
// as the zero hash.
func parseHash(s string) common.Hash {
	if s == "" {
		return common.Hash{}
	}
	return common.HexToHash(s)
}
