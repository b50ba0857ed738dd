package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/config"
	"github.com/WissenIstNacht/silicon/verifier"
)

// VerifyCommand represents the "verify" subcommand.
type VerifyCommand struct{}

// NewVerifyCommand returns a new instance of VerifyCommand.
func NewVerifyCommand() *VerifyCommand {
	return &VerifyCommand{}
}

// Run parses configuration flags, loads a JSON program document, and
// verifies every method in it, printing accumulated failures and
// setting the process exit code per spec.md §6's "Exit codes".
func (cmd *VerifyCommand) Run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("silicon-verify", flag.ContinueOnError)
	fs.Usage = cmd.usage
	cfg := config.Default()
	cfg.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	} else if fs.NArg() == 0 {
		return fmt.Errorf("program file required")
	} else if fs.NArg() > 1 {
		return fmt.Errorf("too many program files specified")
	}
	cfg.ApplyEnv()

	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return err
	}
	program, err := ast.DecodeProgram(data)
	if err != nil {
		return err
	}

	v := verifier.New(program, cfg)
	run, err := v.VerifySet(ctx)
	if err != nil {
		return err
	}

	for _, f := range run.Failures() {
		fmt.Fprintln(os.Stderr, f.Error())
	}
	if cfg.Debug {
		fmt.Fprintf(os.Stderr, "asserts=%d checks=%d check-time=%s pushes=%d pops=%d fresh=%d\n",
			run.Total.AssertN, run.Total.CheckN, run.Total.CheckTime, run.Total.PushN, run.Total.PopN, run.Total.FreshN)
	}
	if !run.Success() {
		os.Exit(1)
	}
	return nil
}

func (cmd *VerifyCommand) usage() {
	fmt.Fprintln(os.Stderr, `
usage: silicon verify [arguments] <program.json>

Arguments:

	-z3-exe path
	    Path to the Z3 (or compatible) SMT-LIB2 solver binary.
	-z3-args args
	    Extra space-separated arguments passed to the solver.
	-z3-timeout ms
	    Default per-assertion solver timeout.
	-z3-log path
	    Path to write the verbatim solver dialog to.
	-split-timeout ms
	    Timeout for the quantified-chunk split algorithm.
	-disable-chunk-order-heuristics
	    Accepted but unused: candidate chunks are always reordered by hints.
	-disable-isc-triggers
	    Accepted but unused: no triggers are generated for inverse/non-null axioms.
	-ide-mode-advanced
	    Fetch a model on every failed assertion.
	-enable-predicate-triggers-on-inhale
	    Accepted but unused: producing emits no predicate trigger function.
	-v
	    Print solver statistics after the run.
`[1:])
}
