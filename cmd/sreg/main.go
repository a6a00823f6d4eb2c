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

// sreg is the command line tool of the Sentinet agent registry.
package main

import (
	"fmt"
	"math/big"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sentinet/go-sentinet/common"
	"github.com/sentinet/go-sentinet/common/math"
	"github.com/sentinet/go-sentinet/core/registry"
	"github.com/sentinet/go-sentinet/core/types"
	"github.com/sentinet/go-sentinet/params"

	log "github.com/inconshreveable/log15"
	"gopkg.in/urfave/cli.v1"
)

const clientIdentifier = "sreg"

var (
	// Git SHA1 commit hash and date of the release, set via linker flags.
	gitCommit = ""
	gitDate   = ""

	app = cli.NewApp()
)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the registry database",
		Value: defaultDataDir(),
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Logging verbosity: 0=crit, 1=error, 2=warn, 3=info, 4=debug",
		Value: 3,
	}
	fromFlag = cli.StringFlag{
		Name:  "from",
		Usage: "Account the operation originates from",
	}
	agentFlag = cli.Uint64Flag{
		Name:  "agent",
		Usage: "Agent identity number",
	}
)

func init() {
	app.Name = clientIdentifier
	app.Usage = "the Sentinet agent registry tool"
	app.Version = params.VersionWithCommit(gitCommit, gitDate)
	app.Flags = []cli.Flag{
		dataDirFlag,
		configFileFlag,
		verbosityFlag,
	}
	app.Commands = []cli.Command{
		initCommand,
		registerCommand,
		deregisterCommand,
		transferCommand,
		approveCommand,
		operatorCommand,
		setURICommand,
		metadataCommand,
		walletCommand,
		agentCommand,
		feedbackCommand,
		summaryCommand,
		validateCommand,
		eventsCommand,
		dumpCommand,
		dumpConfigCommand,
	}
	sort.Sort(cli.CommandsByName(app.Commands))

	app.Before = func(ctx *cli.Context) error {
		verbosity := ctx.GlobalInt(verbosityFlag.Name)
		if verbosity < 0 || verbosity > int(log.LvlDebug) {
			verbosity = int(log.LvlInfo)
		}
		log.Root().SetHandler(log.LvlFilterHandler(log.Lvl(verbosity), log.StreamHandler(os.Stderr, log.TerminalFormat())))
		return nil
	}
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// migrateFlags makes flags set after the subcommand name visible to the
// global configuration readers, so both flag orders work.
func migrateFlags(action func(ctx *cli.Context) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		for _, name := range ctx.FlagNames() {
			if ctx.IsSet(name) {
				ctx.GlobalSet(name, ctx.String(name))
			}
		}
		return action(ctx)
	}
}

// Fatalf formats a message to standard error and exits the program.
func Fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Fatal: "+format+"\n", args...)
	os.Exit(1)
}

// defaultDataDir is the default registry database location.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home + "/.sentinet"
}

// opTime is the wall clock timestamp stamped onto operations and events.
func opTime() uint64 {
	return uint64(time.Now().Unix())
}

// makeCallContext assembles the operation envelope from the --from flag.
func makeCallContext(ctx *cli.Context, value *big.Int) registry.CallContext {
	return registry.CallContext{
		Caller: parseAddress(ctx, ctx.String(fromFlag.Name), "--from"),
		Value:  value,
		Time:   opTime(),
	}
}

func parseAddress(_ *cli.Context, s, what string) common.Address {
	if !common.IsHexAddress(s) {
		Fatalf("Invalid address for %s: %q", what, s)
	}
	return common.HexToAddress(s)
}

func parseAddressList(ctx *cli.Context, values []string, what string) []common.Address {
	addrs := make([]common.Address, 0, len(values))
	for _, s := range values {
		addrs = append(addrs, parseAddress(ctx, s, what))
	}
	return addrs
}

func parseAgentID(ctx *cli.Context) types.AgentID {
	id := ctx.Uint64(agentFlag.Name)
	if id == 0 {
		Fatalf("Missing or zero --agent")
	}
	return types.AgentID(id)
}

func parseBig(s, what string) *big.Int {
	value, ok := math.ParseBig256(s)
	if !ok {
		Fatalf("Invalid number for %s: %q", what, s)
	}
	return value
}

// parseMetadata splits repeated key=value flags into metadata entries. A bare
// key with no value marks the key for deletion.
func parseMetadata(pairs []string) []types.MetadataEntry {
	entries := make([]types.MetadataEntry, 0, len(pairs))
	for _, pair := range pairs {
		key, value := pair, ""
		if i := strings.IndexByte(pair, '='); i >= 0 {
			key, value = pair[:i], pair[i+1:]
		}
		if key == "" {
			Fatalf("Empty metadata key in %q", pair)
		}
		entries = append(entries, types.MetadataEntry{Key: key, Value: []byte(value)})
	}
	return entries
}

// commitAndReport flushes the pending operation and prints the events it
// produced.
func commitAndReport(reg *registry.Registry) {
	events, err := reg.Commit()
	if err != nil {
		Fatalf("Failed to commit: %v", err)
	}
	for _, event := range events {
		fmt.Printf("#%d %s %s\n", event.Seq, event.Type, string(event.Payload))
	}
}

func formatSent(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	unit := big.NewInt(params.Sent)
	whole := new(big.Int).Quo(amount, unit)
	frac := new(big.Int).Rem(new(big.Int).Abs(amount), unit)
	if frac.Sign() == 0 {
		return whole.String() + " " + params.TokenSymbol
	}
	return whole.String() + "." + strings.TrimRight(fmt.Sprintf("%018s", frac.String()), "0") + " " + params.TokenSymbol
}

func formatUint(v uint64) string {
	return strconv.FormatUint(v, 10)
}
