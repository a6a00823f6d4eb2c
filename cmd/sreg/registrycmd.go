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
	"context"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/core/rawdb"
	"github.com/sentinet/go-sentinet/core/registry"
	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/crypto"
	"github.com/sentinet/go-sentinet/params"
	"github.com/sentinet/go-sentinet/sentdb/leveldb"

	log "github.com/inconshreveable/log15"
	"github.com/prometheus/tsdb/fileutil"
	"gopkg.in/urfave/cli.v1"
)

var (
	initCommand = cli.Command{
		Action:    migrateFlags(initRegistry),
		Name:      "init",
		Usage:     "Bootstrap a new registry database",
		ArgsUsage: "<genesis.json>",
		Flags:     []cli.Flag{dataDirFlag, devFlag},
		Category:  "REGISTRY COMMANDS",
		Description: `
The init command seeds a fresh registry database from a genesis file holding
the chain id, the registry and treasury addresses and the initial ledger
balances. With --dev a built-in development genesis with three funded
accounts is used instead.`,
	}
	registerCommand = cli.Command{
		Action:   migrateFlags(doRegister),
		Name:     "register",
		Usage:    "Register a new agent identity",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, uriFlag, metaFlag, valueFlag},
		Category: "REGISTRY COMMANDS",
		Description: `
Registers a new agent identity owned by --from, escrowing the registration
stake. The attached --value must match the required stake exactly and
defaults to it when omitted.`,
	}
	deregisterCommand = cli.Command{
		Action:   migrateFlags(doDeregister),
		Name:     "deregister",
		Usage:    "Retire an agent identity and refund its stake",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, agentFlag},
		Category: "REGISTRY COMMANDS",
	}
	transferCommand = cli.Command{
		Action:   migrateFlags(doTransfer),
		Name:     "transfer",
		Usage:    "Transfer an agent identity to a new owner",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, agentFlag, toFlag},
		Category: "REGISTRY COMMANDS",
	}
	approveCommand = cli.Command{
		Action:   migrateFlags(doApprove),
		Name:     "approve",
		Usage:    "Grant one account control over one agent identity",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, agentFlag, spenderFlag},
		Category: "REGISTRY COMMANDS",
		Description: `
Approves a single spender for the identity, replacing any previous approval.
Passing the zero address clears the slot.`,
	}
	operatorCommand = cli.Command{
		Action:   migrateFlags(doSetOperator),
		Name:     "operator",
		Usage:    "Grant or revoke blanket control over all owned identities",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, operatorFlag, approvedFlag},
		Category: "REGISTRY COMMANDS",
	}
	setURICommand = cli.Command{
		Action:   migrateFlags(doSetURI),
		Name:     "seturi",
		Usage:    "Update the service descriptor of an agent identity",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, agentFlag, uriFlag},
		Category: "REGISTRY COMMANDS",
	}
	metadataCommand = cli.Command{
		Action:   migrateFlags(doSetMetadata),
		Name:     "metadata",
		Usage:    "Set or delete metadata entries of an agent identity",
		Flags:    []cli.Flag{dataDirFlag, fromFlag, agentFlag, metaFlag},
		Category: "REGISTRY COMMANDS",
		Description: `
Applies --meta key=value entries to the identity. A key with an empty value
is deleted. The reserved wallet binding key is rejected.`,
	}
	walletCommand = cli.Command{
		Name:     "wallet",
		Usage:    "Manage the operational wallet binding of an identity",
		Category: "REGISTRY COMMANDS",
		Subcommands: []cli.Command{
			{
				Action: migrateFlags(doBindWallet),
				Name:   "bind",
				Usage:  "Bind a consenting wallet to an agent identity",
				Flags:  []cli.Flag{dataDirFlag, fromFlag, agentFlag, keyFlag, deadlineFlag},
				Description: `
Signs a wallet binding consent with the private key given via --key and
submits it. The wallet address is derived from the key.`,
			},
			{
				Action: migrateFlags(doUnbindWallet),
				Name:   "unbind",
				Usage:  "Clear the wallet binding of an agent identity",
				Flags:  []cli.Flag{dataDirFlag, fromFlag, agentFlag},
			},
		},
	}
	agentCommand = cli.Command{
		Name:     "agent",
		Usage:    "Inspect registered agent identities",
		Category: "REGISTRY COMMANDS",
		Subcommands: []cli.Command{
			{
				Action: migrateFlags(doShowAgent),
				Name:   "show",
				Usage:  "Print one agent identity as JSON",
				Flags:  []cli.Flag{dataDirFlag, agentFlag},
			},
			{
				Action: migrateFlags(doListAgents),
				Name:   "list",
				Usage:  "List agent identities",
				Flags:  []cli.Flag{dataDirFlag, ownerFlag},
			},
		},
	}
)

var (
	devFlag = cli.BoolFlag{
		Name:  "dev",
		Usage: "Use the built-in development genesis",
	}
	uriFlag = cli.StringFlag{
		Name:  "uri",
		Usage: "Service descriptor URI of the agent",
	}
	metaFlag = cli.StringSliceFlag{
		Name:  "meta",
		Usage: "Metadata entry as key=value (repeatable)",
	}
	valueFlag = cli.StringFlag{
		Name:  "value",
		Usage: "Attached value in sen",
	}
	toFlag = cli.StringFlag{
		Name:  "to",
		Usage: "Receiving account",
	}
	spenderFlag = cli.StringFlag{
		Name:  "spender",
		Usage: "Account to approve for the identity",
	}
	operatorFlag = cli.StringFlag{
		Name:  "operator",
		Usage: "Account to grant blanket control to",
	}
	approvedFlag = cli.BoolTFlag{
		Name:  "approved",
		Usage: "Grant (true) or revoke (false) the operator",
	}
	keyFlag = cli.StringFlag{
		Name:  "key",
		Usage: "Hex private key of the consenting wallet",
	}
	deadlineFlag = cli.Uint64Flag{
		Name:  "deadline",
		Usage: "Unix deadline of the binding signature (default: now + 120s)",
	}
	ownerFlag = cli.StringFlag{
		Name:  "owner",
		Usage: "Restrict the listing to one owner",
	}
)

// developmentGenesis funds three well-known accounts whose keys double as
// wallet binding keys in examples.
var devKeys = []string{
	"0c17bd1ee6ab5603dd8e5ba465fd4ec41238e4a2ab6ea081ac2e591bca9ac1e0",
	"6f1e8a5c94a5d6e22f5ba3530bdbd3724f4fe2c4dbc8c37f5d60ba1d0be228b4",
	"b8f3f6e2a9c5d7e1437a66edb0eea9fb2f1e8b1b5d3f9a81c2640bd5d51c0d27",
}

func developmentGenesis() *types.Genesis {
	genesis := &types.Genesis{
		ChainID:  big.NewInt(1337),
		Registry: registry.Defaults.Address,
		Treasury: registry.Defaults.Treasury,
		Balances: make(map[common.Address]*big.Int),
	}
	funds := new(big.Int).Mul(params.RegistrationStake, big.NewInt(100))
	for _, hexkey := range devKeys {
		key, err := crypto.HexToECDSA(hexkey)
		if err != nil {
			Fatalf("Invalid development key: %v", err)
		}
		genesis.Balances[crypto.PubkeyToAddress(key.PublicKey)] = funds
	}
	return genesis
}

func initRegistry(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	var genesis *types.Genesis
	if ctx.Bool(devFlag.Name) {
		genesis = developmentGenesis()
	} else {
		if ctx.NArg() != 1 {
			Fatalf("Need a genesis file or --dev")
		}
		file, err := os.Open(ctx.Args().First())
		if err != nil {
			Fatalf("Failed to read genesis file: %v", err)
		}
		defer file.Close()
		genesis = new(types.Genesis)
		if err := json.NewDecoder(file).Decode(genesis); err != nil {
			Fatalf("Invalid genesis file: %v", err)
		}
	}
	if genesis.ChainID == nil || genesis.ChainID.Sign() <= 0 {
		Fatalf("Genesis must carry a positive chain id")
	}
	if genesis.Registry == (common.Address{}) {
		genesis.Registry = registry.Defaults.Address
	}
	if genesis.Treasury == (common.Address{}) {
		genesis.Treasury = registry.Defaults.Treasury
	}
	if genesis.Time == 0 {
		genesis.Time = opTime()
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		Fatalf("Failed to create data directory: %v", err)
	}
	release, _, err := fileutil.Flock(filepath.Join(cfg.DataDir, "LOCK"))
	if err != nil {
		Fatalf("Failed to lock data directory: %v", err)
	}
	defer release.Release()

	db, err := leveldb.New(filepath.Join(cfg.DataDir, "registry"), 128, 1024, false)
	if err != nil {
		Fatalf("Failed to open registry database: %v", err)
	}
	defer db.Close()

	if rawdb.ReadGenesis(db) != nil {
		Fatalf("Registry database already initialized")
	}
	if err := rawdb.WriteGenesis(db, genesis); err != nil {
		Fatalf("Failed to write genesis: %v", err)
	}
	statedb := state.New(state.NewDatabase(db))
	for addr, balance := range genesis.Balances {
		statedb.SetBalance(addr, balance)
	}
	if _, err := statedb.Commit(); err != nil {
		Fatalf("Failed to seed balances: %v", err)
	}
	log.Info("Initialized registry database", "datadir", cfg.DataDir, "chainid", genesis.ChainID, "accounts", len(genesis.Balances))
	return nil
}

func doRegister(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	value := reg.RequiredStake()
	if s := ctx.String(valueFlag.Name); s != "" {
		value = parseBig(s, "--value")
	}
	id, err := reg.Register(makeCallContext(ctx, value), ctx.String(uriFlag.Name), parseMetadata(ctx.StringSlice(metaFlag.Name)))
	if err != nil {
		Fatalf("Failed to register: %v", err)
	}
	commitAndReport(reg)
	log.Info("Agent registered", "agent", id, "stake", formatSent(value))
	return nil
}

func doDeregister(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	if err := reg.Deregister(makeCallContext(ctx, nil), id); err != nil {
		Fatalf("Failed to deregister: %v", err)
	}
	commitAndReport(reg)
	log.Info("Agent deregistered", "agent", id)
	return nil
}

func doTransfer(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	to := parseAddress(ctx, ctx.String(toFlag.Name), "--to")
	if err := reg.Transfer(makeCallContext(ctx, nil), id, to); err != nil {
		Fatalf("Failed to transfer: %v", err)
	}
	commitAndReport(reg)
	log.Info("Agent transferred", "agent", id, "to", to)
	return nil
}

func doApprove(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	// The zero address is legal here, it clears the approval slot.
	var spender common.Address
	if s := ctx.String(spenderFlag.Name); s != "" {
		spender = parseAddress(ctx, s, "--spender")
	}
	if err := reg.Approve(makeCallContext(ctx, nil), id, spender); err != nil {
		Fatalf("Failed to approve: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doSetOperator(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	operator := parseAddress(ctx, ctx.String(operatorFlag.Name), "--operator")
	approved := ctx.BoolT(approvedFlag.Name)
	if err := reg.SetApprovalForAll(makeCallContext(ctx, nil), operator, approved); err != nil {
		Fatalf("Failed to update operator: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doSetURI(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	if err := reg.SetURI(makeCallContext(ctx, nil), id, ctx.String(uriFlag.Name)); err != nil {
		Fatalf("Failed to update uri: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doSetMetadata(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	entries := parseMetadata(ctx.StringSlice(metaFlag.Name))
	if len(entries) == 0 {
		Fatalf("No --meta entries given")
	}
	if err := reg.SetMetadata(makeCallContext(ctx, nil), id, entries); err != nil {
		Fatalf("Failed to update metadata: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doBindWallet(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	key, err := crypto.HexToECDSA(strings.TrimPrefix(ctx.String(keyFlag.Name), "0x"))
	if err != nil {
		Fatalf("Invalid --key: %v", err)
	}
	wallet := crypto.PubkeyToAddress(key.PublicKey)
	owner, err := reg.OwnerOf(id)
	if err != nil {
		Fatalf("Failed to resolve agent: %v", err)
	}
	deadline := ctx.Uint64(deadlineFlag.Name)
	if deadline == 0 {
		deadline = opTime() + 120
	}
	digest := reg.Verifier().BindingDigest(id, wallet, owner, deadline)
	sig, err := crypto.Sign(digest.Bytes(), key)
	if err != nil {
		Fatalf("Failed to sign binding: %v", err)
	}
	if err := reg.SetAgentWallet(makeCallContext(ctx, nil), id, wallet, deadline, sig); err != nil {
		Fatalf("Failed to bind wallet: %v", err)
	}
	commitAndReport(reg)
	log.Info("Wallet bound", "agent", id, "wallet", wallet)
	return nil
}

func doUnbindWallet(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	id := parseAgentID(ctx)
	if err := reg.UnsetAgentWallet(makeCallContext(ctx, nil), id); err != nil {
		Fatalf("Failed to unbind wallet: %v", err)
	}
	commitAndReport(reg)
	return nil
}

func doShowAgent(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	api := registry.NewPublicRegistryAPI(reg)
	result, err := api.GetAgent(context.Background(), parseAgentID(ctx))
	if err != nil {
		Fatalf("Failed to load agent: %v", err)
	}
	enc, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		Fatalf("Failed to encode agent: %v", err)
	}
	os.Stdout.Write(append(enc, '\n'))
	return nil
}

func doListAgents(ctx *cli.Context) error {
	reg, closer := openRegistry(ctx)
	defer closer()

	var ids []types.AgentID
	if s := ctx.String(ownerFlag.Name); s != "" {
		ids = reg.AgentsOf(parseAddress(ctx, s, "--owner"))
	} else {
		ids = reg.AgentIDs()
	}
	printAgentTable(reg, ids)
	return nil
}
