// Command silicon runs the verifier against a JSON-encoded program
// document, following cmd/glee's own dispatch shape: main delegates to
// run(ctx, args), which switches over a bare subcommand name.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err == flag.ErrHelp {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	var cmd string
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "", "-h", "--help", "help":
		usage()
		return flag.ErrHelp
	case "verify":
		return NewVerifyCommand().Run(ctx, args)
	default:
		return fmt.Errorf(`silicon %s: unknown command`, cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `
Silicon is a symbolic-execution verifier for permission-based program
specifications.

Usage:

	silicon <command> [arguments]

The commands are:

	verify      verify every method in a program document
	help        this screen
`[1:])
}
