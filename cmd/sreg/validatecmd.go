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
	"encoding/json"
	"fmt"
	"os"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/crypto"
	"github.com/sentinet/go-sentinet/params"

	"github.com/google/uuid"
	log "github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"
)

var validateCommand = cli.Command{
	Name:     "validate",
	Usage:    "Request and answer independent agent validations",
	Category: "VALIDATION COMMANDS",
	Subcommands: []cli.Command{
		{
			Action: migrateFlags(doRequestValidation),
			Name:   "request",
			Usage:  "Ask a validator to assess an agent",
			Flags:  []cli.Flag{dataDirFlag, fromFlag, agentFlag, validatorFlag, criteriaFlag, requestFlag},
			Description: `
Files a validation request against the agent. The request hash must be
unique across the registry and is derived from a random UUID when --request
is omitted.`,
		},
		{
			Action: migrateFlags(doRespondValidation),
			Name:   "respond",
			Usage:  "Answer a validation request assigned to you",
			Flags:  []cli.Flag{dataDirFlag, fromFlag, requestFlag, scoreFlag, tagFlag, reportFlag},
		},
		{
			Action: migrateFlags(doShowValidation),
			Name:   "show",
			Usage:  "Print one validation record as JSON",
			Flags:  []cli.Flag{dataDirFlag, requestFlag},
		},
		{
			Action: migrateFlags(doValidationSummary),
			Name:   "summary",
			Usage:  "Average the answered validation scores of an agent",
			Flags:  []cli.Flag{dataDirFlag, agentFlag, validatorsFlag, tagFlag},
		},
	},
}

var (
	validatorFlag = cli.StringFlag{
		Name:  "validator",
		Usage: "Account asked to perform the validation",
	}
	validatorsFlag = cli.StringSliceFlag{
		Name:  "validators",
		Usage: "Restrict to validations by these accounts (repeatable)",
	}
	requestFlag = cli.StringFlag{
		Name:  "request",
		Usage: "Request hash identifying the validation",
	}
	criteriaFlag = cli.StringFlag{
		Name:  "criteria",
		Usage: "URI of the validation criteria document",
	}
	scoreFlag = cli.UintFlag{
		Name:  "score",
		Usage: "Validation score (0-100)",
	}
	tagFlag = cli.StringFlag{
		Name:  "tag",
		Usage: "Free-form tag",
	}
	reportFlag = cli.StringFlag{
		Name:  "report",
		Usage: "URI of the validation report",
	}
)

func doRequestValidation(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	validator := parseAddress(ctx, ctx.String(validatorFlag.Name), "--validator")
	request := parseHash(ctx.String(requestFlag.Name))
	if request == (common.Hash{}) {
		u := uuid.New()
		request = crypto.Keccak256Hash(u[:])
	}
	if err := reg.RequestValidation(makeCallContext(ctx, nil), id, validator, ctx.String(criteriaFlag.Name), request); err != nil {
		Fatalf("Failed to request validation: %v", err)
	}
	commitAndReport(reg)
	log.Info("Validation requested", "agent", id, "validator", validator, "request", request)
	return nil
}

func doRespondValidation(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	request := parseHash(ctx.String(requestFlag.Name))
	score := ctx.Uint(scoreFlag.Name)
	if score > params.MaxValidationScore {
		Fatalf("--score out of range: have %d, max %d", score, params.MaxValidationScore)
	}
	err := reg.RespondValidation(makeCallContext(ctx, nil), request, uint8(score), ctx.String(tagFlag.Name), ctx.String(reportFlag.Name))
	if err != nil {
		Fatalf("Failed to respond: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doShowValidation(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	record, err := reg.Validation(parseHash(ctx.String(requestFlag.Name)))
	if err != nil {
		Fatalf("Failed to load validation: %v", err)
	}
	enc, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		Fatalf("Failed to encode validation: %v", err)
	}
	os.Stdout.Write(append(enc, '\n'))
	return nil
}

func doValidationSummary(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	validators := parseAddressList(ctx, ctx.StringSlice(validatorsFlag.Name), "--validators")
	count, score := reg.ValidationSummary(id, validators, ctx.String(tagFlag.Name))
	fmt.Printf("count: %s\nscore: %d\n", formatUint(count), score)
	return nil
}
