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
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"unicode"

	"github.com/sentinet/go-sentinet/core/rawdb"
	"github.com/sentinet/go-sentinet/core/registry"
	"github.com/sentinet/go-sentinet/core/state"
	"github.com/sentinet/go-sentinet/sentdb/leveldb"

	log "github.com/inconshreveable/log15"
	"github.com/naoina/toml"
	"github.com/prometheus/tsdb/fileutil"
	"gopkg.in/urfave/cli.v1"
)

var (
	dumpConfigCommand = cli.Command{
		Action:      migrateFlags(dumpConfig),
		Name:        "dumpconfig",
		Usage:       "Show configuration values",
		ArgsUsage:   "",
		Category:    "MISCELLANEOUS COMMANDS",
		Description: `The dumpconfig command shows configuration values.`,
	}

	configFileFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		id := fmt.Sprintf("%s.%s", rt.String(), field)
		var link string
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://godoc.org/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, id, link)
	},
}

type sregConfig struct {
	DataDir  string
	Registry registry.Config
}

func loadConfig(file string, cfg *sregConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig assembles the tool configuration from defaults, the optional
// TOML file and the command line flags, in that order.
func makeConfig(ctx *cli.Context) sregConfig {
	cfg := sregConfig{
		DataDir:  defaultDataDir(),
		Registry: registry.Defaults,
	}
	if file := ctx.GlobalString(configFileFlag.Name); file != "" {
		if err := loadConfig(file, &cfg); err != nil {
			Fatalf("%v", err)
		}
	}
	if ctx.GlobalIsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.GlobalString(dataDirFlag.Name)
	}
	if cfg.DataDir == "" {
		Fatalf("No data directory configured")
	}
	return cfg
}

// openRegistry opens the registry database under the configured data
// directory and wires a registry over it. The returned closer releases the
// directory lock and the database.
func openRegistry(ctx *cli.Context) (*registry.Registry, func()) {
	cfg := makeConfig(ctx)
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		Fatalf("Failed to create data directory: %v", err)
	}
	release, _, err := fileutil.Flock(filepath.Join(cfg.DataDir, "LOCK"))
	if err != nil {
		Fatalf("Failed to lock data directory: %v", err)
	}
	db, err := leveldb.New(filepath.Join(cfg.DataDir, "registry"), 128, 1024, false)
	if err != nil {
		release.Release()
		Fatalf("Failed to open registry database: %v", err)
	}
	genesis := rawdb.ReadGenesis(db)
	if genesis == nil {
		db.Close()
		release.Release()
		Fatalf("Registry database not initialized, run '%s init' first", clientIdentifier)
	}
	cfg.Registry.ChainID = genesis.ChainID
	cfg.Registry.Address = genesis.Registry
	cfg.Registry.Treasury = genesis.Treasury

	statedb := state.New(state.NewDatabase(db))
	reg := registry.New(&cfg.Registry, statedb, nil, nil)
	log.Debug("Opened registry", "datadir", cfg.DataDir, "chainid", genesis.ChainID)

	return reg, func() {
		db.Close()
		release.Release()
	}
}

// dumpConfig is the dumpconfig command.
func dumpConfig(ctx *cli.Context) error {
	cfg := makeConfig(ctx)

	out, err := tomlSettings.Marshal(&cfg)
	if err != nil {
		return err
	}
	dump := os.Stdout
	if ctx.NArg() > 0 {
		dump, err = os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer dump.Close()
	}
	dump.Write(out)

	return nil
}
