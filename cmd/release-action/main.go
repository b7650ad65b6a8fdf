package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/GoCodeAlone/release-action/action"
)

var version = "dev"

var commands = map[string]func([]string) error{
	"run":   runRun,
	"check": runCheck,
}

func usage() {
	fmt.Fprintf(os.Stderr, `release-action - create Bytebase releases from SQL migration files (version %s)

Usage:
  release-action [command] [options]

Commands:
  run        Collect, check and release migration files (default)
  check      Collect and check migration files without creating a release
  version    Print the version

Options are read from the action inputs (INPUT_*), an optional YAML file
(-config) and flags, in increasing precedence.

Run 'release-action <command> -h' for command-specific help.
`, version)
}

func main() {
	cmd := "run"
	args := os.Args[1:]
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "help":
		usage()
		os.Exit(0)
	case "version":
		fmt.Println(version)
		os.Exit(0)
	}

	fn, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd) //nolint:gosec // G705: CLI error output
		usage()
		os.Exit(1)
	}

	if err := fn(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		// The runner turns ::error:: into the step failure message.
		action.NewCommands(os.Stdout).Error(err.Error())
		os.Exit(1)
	}
}
