// Package config loads the flat verifier configuration spec.md §6
// enumerates: solver location and arguments, timeouts, and the handful
// of feature toggles that change how the producer/consumer/qp
// components behave.
//
// Grounded on Dr-Deep-hl/conf.go's package-level Config struct
// populated from an external source and then backfilled with
// defaults for any zero-valued field, generalized here from a JSON
// config file to flag.FlagSet registration plus a single environment
// override, per spec.md §6's "path to the SMT binary (env override
// allowed)".
package config

import (
	"flag"
	"os"
	"strings"
)

// AssertionMode mirrors smt.AssertionMode without importing package
// smt, which itself imports term -- config stays a leaf package so
// cmd/silicon can construct one before anything else exists.
type AssertionMode string

const (
	PushPop         AssertionMode = "push-pop"
	SoftConstraints AssertionMode = "soft-constraints"
)

const (
	defaultZ3Exe        = "z3"
	defaultZ3Timeout    = 10000
	defaultSplitTimeout = 1000
)

// Z3ExeEnvVar is the environment variable that overrides Z3Exe, per
// spec.md §6.
const Z3ExeEnvVar = "Z3_EXE"

// Config enumerates the fields spec.md §6 lists under "Configuration",
// plus Debug, which makes the verify subcommand print solver statistics.
type Config struct {
	Z3Exe     string
	Z3Args    string
	Z3Timeout int
	Z3LogFile string

	AssertionMode AssertionMode
	SplitTimeout  int

	DisableChunkOrderHeuristics     bool
	DisableISCTriggers              bool
	IdeModeAdvanced                 bool
	EnablePredicateTriggersOnInhale bool

	Debug bool
}

// Default returns a Config with every field at its spec.md default,
// before flag parsing or the environment override are applied.
func Default() Config {
	return Config{
		Z3Exe:         defaultZ3Exe,
		Z3Timeout:     defaultZ3Timeout,
		AssertionMode: PushPop,
		SplitTimeout:  defaultSplitTimeout,
	}
}

// RegisterFlags binds fs's flags to c's fields, following
// cmd/glee/main.go's convention of registering flags directly against
// a FlagSet the caller owns rather than the package-global flag.CommandLine.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Z3Exe, "z3-exe", c.Z3Exe, "path to the Z3 (or compatible) SMT-LIB2 solver binary")
	fs.StringVar(&c.Z3Args, "z3-args", c.Z3Args, "extra space-separated arguments passed to the solver")
	fs.IntVar(&c.Z3Timeout, "z3-timeout", c.Z3Timeout, "default per-assertion solver timeout, in milliseconds")
	fs.StringVar(&c.Z3LogFile, "z3-log", c.Z3LogFile, "path to write the verbatim solver dialog to (empty disables logging)")
	fs.IntVar(&c.SplitTimeout, "split-timeout", c.SplitTimeout, "timeout for the quantified-chunk split algorithm's in-loop depleted check")
	fs.BoolVar(&c.DisableChunkOrderHeuristics, "disable-chunk-order-heuristics", c.DisableChunkOrderHeuristics, "accepted but unused: candidate chunks are always reordered by hints")
	fs.BoolVar(&c.DisableISCTriggers, "disable-isc-triggers", c.DisableISCTriggers, "accepted but unused: no triggers are generated for inverse/non-null axioms")
	fs.BoolVar(&c.IdeModeAdvanced, "ide-mode-advanced", c.IdeModeAdvanced, "fetch a model on every failed assertion")
	fs.BoolVar(&c.EnablePredicateTriggersOnInhale, "enable-predicate-triggers-on-inhale", c.EnablePredicateTriggersOnInhale, "accepted but unused: producing emits no predicate trigger function")
	fs.BoolVar(&c.Debug, "v", c.Debug, "print solver statistics after the run")
}

// ApplyEnv applies the Z3_EXE environment override spec.md §6 requires,
// taking precedence over both the default and any -z3-exe flag value.
func (c *Config) ApplyEnv() {
	if exe, ok := os.LookupEnv(Z3ExeEnvVar); ok && exe != "" {
		c.Z3Exe = exe
	}
}

// Z3Command splits Z3Exe/Z3Args into the argv slice smt.Config.Cmd
// expects: the binary followed by its space-separated extra arguments.
func (c *Config) Z3Command() []string {
	cmd := []string{c.Z3Exe}
	if c.Z3Args == "" {
		return cmd
	}
	return append(cmd, strings.Fields(c.Z3Args)...)
}
