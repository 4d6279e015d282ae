// Command wtadmin builds, indexes and inspects wormtable tables.
//
//	wtadmin build <schema.xml> <rows.tsv> <home>
//	wtadmin add <home> <col[+col...]>...
//	wtadmin show <home>
//	wtadmin list <home>
//	wtadmin dump <home> [col...] [--index name] [--start v[,v...]] [--stop v[,v...]]
//	wtadmin counts <home> <index>
//	wtadmin drop <home> <index>
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/spf13/pflag"

	"github.com/tuannm99/wormtable/internal/config"
)

var errUsage = errors.New("usage")

type command struct {
	usage string
	flags func(fs *pflag.FlagSet)
	run   func(env *env, args []string) error
}

var commands = map[string]command{
	"build":  buildCmd,
	"add":    addCmd,
	"show":   showCmd,
	"list":   listCmd,
	"dump":   dumpCmd,
	"counts": countsCmd,
	"drop":   dropCmd,
}

// env is what every command runs with.
type env struct {
	cfg *config.Config
	fs  *pflag.FlagSet
	out io.Writer
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "wtadmin:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		printUsage(stderr)
		return errUsage
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(stderr)
		return errUsage
	}

	fs := pflag.NewFlagSet("wtadmin "+args[0], pflag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML config file")
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("log-format", "text", "text or json")
	if cmd.flags != nil {
		cmd.flags(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: wtadmin %s\n", cmd.usage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return errUsage
	}

	cfg, err := config.Load(*cfgPath, fs)
	if err != nil {
		return err
	}
	slog.SetDefault(cfg.NewLogger(stderr))

	err = cmd.run(&env{cfg: cfg, fs: fs, out: stdout}, fs.Args())
	if errors.Is(err, errUsage) {
		fs.Usage()
	}
	return err
}

func printUsage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "usage: wtadmin <command> [flags] [args]")
	for _, n := range names {
		fmt.Fprintf(w, "  %s\n", commands[n].usage)
	}
}
