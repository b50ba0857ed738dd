// Package smt implements the line-oriented SMT-LIB2 subprocess dialog
// (spec.md §4.B, §6): spawning the solver, exchanging commands over its
// stdio pipes, push/pop scope discipline, timeout control, and model
// retrieval.
//
// The subprocess plumbing is grounded on Dr-Deep-hl/popen.go's runCmd
// (os/exec.Command plus StdinPipe/StdoutPipe), generalized here from a
// one-shot batch script into the persistent, scoped dialog spec.md
// mandates. The public surface (Stats, Close) follows glee/z3.Solver.
package smt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/WissenIstNacht/silicon/term"
)

// CheckSatResult is the solver's answer to a `(check-sat)` query.
type CheckSatResult int

const (
	Sat CheckSatResult = iota
	Unsat
	Unknown
)

func (r CheckSatResult) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// AssertionMode selects how Driver.Assert discharges a goal, per
// spec.md §4.B.
type AssertionMode int

const (
	// PushPop wraps every assertion in its own push/pop scope.
	PushPop AssertionMode = iota
	// SoftConstraints mints one fresh guard per goal and reuses
	// `check-sat <guard>` instead of push/pop churn.
	SoftConstraints
)

// ErrProverInteractionFailed is returned when the solver's output
// deviates from the expected protocol (spec.md §7).
type ErrProverInteractionFailed struct {
	Command  string
	Got      string
	Expected string
}

func (e *ErrProverInteractionFailed) Error() string {
	return fmt.Sprintf("smt: prover interaction failed after %q: got %q, want %q", e.Command, e.Got, e.Expected)
}

// ErrDependency is returned when the solver binary cannot be spawned.
type ErrDependency struct{ Err error }

func (e *ErrDependency) Error() string { return fmt.Sprintf("smt: solver dependency error: %v", e.Err) }
func (e *ErrDependency) Unwrap() error { return e.Err }

// Stats mirrors glee/z3.Solver's statistics accessor, generalized to
// the operations this driver performs.
type Stats struct {
	AssertN    int
	CheckN     int
	CheckTime  time.Duration
	PushN      int
	PopN       int
	FreshN     int
}

// Driver owns one solver child process for the exclusive use of a
// single Decider (spec.md §5: "The SMT subprocess is owned exclusively
// by one Decider").
type Driver struct {
	cmd  []string
	mode AssertionMode

	proc   *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	log       io.WriteCloser
	logPrefix string

	mu              sync.Mutex
	state           driverState
	pushPopDepth    int
	lastTimeout     int // -1 means "never set"
	freshSeq        int
	guardSeq        int
	lastModel       string
	stats           Stats
}

// Config configures a Driver instance (spec.md §6).
type Config struct {
	// Cmd is the solver binary and any extra arguments, e.g.
	// {"z3", "-in", "-smt2"}.
	Cmd []string
	// Mode selects push-pop or soft-constraint assertion discharge.
	Mode AssertionMode
	// LogWriter, if non-nil, receives a verbatim copy of every
	// outgoing command, prefixed by any comment.
	LogWriter io.WriteCloser
}

// NewDriver constructs a Driver in the Created state. The subprocess is
// not spawned until Start is called.
func NewDriver(cfg Config) *Driver {
	return &Driver{
		cmd:         cfg.Cmd,
		mode:        cfg.Mode,
		log:         cfg.LogWriter,
		state:       stateCreated,
		lastTimeout: -1,
	}
}

// Start spawns the solver subprocess and configures the required
// options (spec.md §6: print-success, global-declarations,
// smtlib2_compliant). Moves Created -> Initialised -> Running, or
// Created -> Erroneous if the binary cannot be started.
func (d *Driver) Start() error {
	d.transition(stateInitialised)

	proc := exec.Command(d.cmd[0], d.cmd[1:]...)
	stdin, err := proc.StdinPipe()
	if err != nil {
		d.transition(stateErroneous)
		return &ErrDependency{Err: err}
	}
	stdout, err := proc.StdoutPipe()
	if err != nil {
		d.transition(stateErroneous)
		return &ErrDependency{Err: err}
	}
	proc.Stderr = os.Stderr

	if err := proc.Start(); err != nil {
		d.transition(stateErroneous)
		return &ErrDependency{Err: err}
	}

	d.proc = proc
	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.transition(stateRunning)

	for _, opt := range requiredOptions {
		if err := d.sendExpectingSuccess(cmdSetOption(opt.Key, opt.Value)); err != nil {
			d.stdin.Close()
			d.proc.Process.Kill()
			d.proc.Wait()
			d.transition(stateErroneous)
			return err
		}
	}
	return nil
}

// Stop terminates the subprocess, closing stdin first and force-killing
// the child if it does not exit within 10 seconds, per spec.md §4.B.
func (d *Driver) Stop() error {
	if d.state != stateRunning {
		return nil
	}
	if d.stdin != nil {
		d.stdin.Close()
	}
	done := make(chan error, 1)
	go func() { done <- d.proc.Wait() }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		d.proc.Process.Kill()
		<-done
	}
	if d.log != nil {
		d.log.Close()
	}
	d.transition(stateStopped)
	return nil
}

// Reset restarts the underlying solver process from scratch, dropping
// all declarations and assertions.
func (d *Driver) Reset() error {
	if err := d.Stop(); err != nil {
		return err
	}
	d.state = stateCreated
	d.pushPopDepth = 0
	d.lastTimeout = -1
	return d.Start()
}

// Push opens n nested scopes.
func (d *Driver) Push(n int) error {
	d.mu.Lock()
	d.pushPopDepth += n
	d.stats.PushN++
	d.mu.Unlock()
	return d.sendExpectingSuccess(cmdPush(n))
}

// Pop closes n nested scopes.
func (d *Driver) Pop(n int) error {
	d.mu.Lock()
	d.pushPopDepth -= n
	d.stats.PopN++
	d.mu.Unlock()
	return d.sendExpectingSuccess(cmdPop(n))
}

// PushPopDepth returns the current push/pop nesting, used by callers in
// debug builds to check invariant 1 of spec.md §8: path-condition depth
// equals SMT push depth.
func (d *Driver) PushPopDepth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pushPopDepth
}

// Declare emits a declare-fun/declare-const for an uninterpreted symbol.
func (d *Driver) Declare(name string, args []term.Sort, result term.Sort) error {
	return d.sendExpectingSuccess(declareFun(name, args, result))
}

// Assume emits an unconditional assertion, i.e. spec.md's "cheap"
// assumption: no satisfiability check is performed.
func (d *Driver) Assume(t term.Term) error {
	d.mu.Lock()
	d.stats.AssertN++
	d.mu.Unlock()
	return d.sendExpectingSuccess(cmdAssert(t))
}

// Fresh mints a new uninterpreted function/constant symbol of the given
// sort and declares it to the solver, returning the resulting term.
func (d *Driver) Fresh(prefix string, args []term.Sort, result term.Sort) (term.Term, error) {
	d.mu.Lock()
	d.freshSeq++
	name := fmt.Sprintf("%s@%d", prefix, d.freshSeq)
	d.stats.FreshN++
	d.mu.Unlock()

	if err := d.Declare(name, args, result); err != nil {
		return nil, err
	}
	if len(args) == 0 {
		return term.NewVar(name, result), nil
	}
	return term.NewFuncApp(name, result), nil
}

// SetTimeout emits `(set-option :timeout n)` only if n differs from the
// last configured timeout, per spec.md §4.B/§5 ("repeated emission
// degrades performance").
func (d *Driver) SetTimeout(ms int) error {
	d.mu.Lock()
	if d.lastTimeout == ms {
		d.mu.Unlock()
		return nil
	}
	d.lastTimeout = ms
	d.mu.Unlock()
	return d.sendExpectingSuccess(cmdSetOption("timeout", fmt.Sprintf("%d", ms)))
}

// Check runs `(check-sat)`, optionally with a timeout, and returns the
// result. An `unknown` answer is surfaced verbatim; callers decide
// whether to treat it as "not proved" (spec.md §5).
func (d *Driver) Check(timeoutMS int) (CheckSatResult, error) {
	if timeoutMS > 0 {
		if err := d.SetTimeout(timeoutMS); err != nil {
			return Unknown, err
		}
	}
	d.mu.Lock()
	d.stats.CheckN++
	d.mu.Unlock()

	start := time.Now()
	line, err := d.sendExpectingOneOf(cmdCheckSat(), "sat", "unsat", "unknown")
	d.mu.Lock()
	d.stats.CheckTime += time.Since(start)
	d.mu.Unlock()
	if err != nil {
		return Unknown, err
	}
	switch line {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	default:
		return Unknown, nil
	}
}

// Assert discharges a goal: it asks whether NOT goal is unsatisfiable.
// Returns true (proved) iff the check comes back unsat. Implements both
// the push-pop and soft-constraint assertion modes of spec.md §4.B.
func (d *Driver) Assert(goal term.Term, timeoutMS int, ideModeAdvanced bool) (proved bool, err error) {
	d.mu.Lock()
	d.stats.AssertN++
	d.mu.Unlock()

	switch d.mode {
	case PushPop:
		if err := d.Push(1); err != nil {
			return false, err
		}
		defer d.Pop(1)

		if err := d.sendExpectingSuccess(cmdAssert(term.NewNot(goal))); err != nil {
			return false, err
		}
		result, err := d.Check(timeoutMS)
		if err != nil {
			return false, err
		}
		if result != Unsat && ideModeAdvanced {
			d.fetchModel()
		}
		return result == Unsat, nil

	case SoftConstraints:
		d.mu.Lock()
		d.guardSeq++
		guardName := fmt.Sprintf("$guard@%d", d.guardSeq)
		d.mu.Unlock()

		guard := term.NewVar(guardName, term.Bool)
		if err := d.Declare(guardName, nil, term.Bool); err != nil {
			return false, err
		}
		implication := term.NewImplies(guard, term.NewNot(goal))
		if err := d.sendExpectingSuccess(cmdAssert(implication)); err != nil {
			return false, err
		}
		result, err := d.checkWithAssumption(guardName, timeoutMS)
		if err != nil {
			return false, err
		}
		if result != Unsat && ideModeAdvanced {
			d.fetchModel()
		}
		return result == Unsat, nil

	default:
		panic("smt: unknown assertion mode")
	}
}

func (d *Driver) checkWithAssumption(guardName string, timeoutMS int) (CheckSatResult, error) {
	if timeoutMS > 0 {
		if err := d.SetTimeout(timeoutMS); err != nil {
			return Unknown, err
		}
	}
	d.mu.Lock()
	d.stats.CheckN++
	d.mu.Unlock()
	line, err := d.sendExpectingOneOf(cmdCheckSat(guardName), "sat", "unsat", "unknown")
	if err != nil {
		return Unknown, err
	}
	switch line {
	case "sat":
		return Sat, nil
	case "unsat":
		return Unsat, nil
	default:
		return Unknown, nil
	}
}

func (d *Driver) fetchModel() {
	if err := d.write(cmdGetModel); err != nil {
		return
	}
	model, err := d.readSExpr()
	if err != nil {
		return
	}
	d.mu.Lock()
	d.lastModel = model
	d.mu.Unlock()
}

// LastModel returns the raw s-expression text of the last model
// fetched via Assert(..., ideModeAdvanced=true), or "" if none.
func (d *Driver) LastModel() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastModel
}

// Statistics returns a snapshot of the driver's usage counters, per
// spec.md §4.B `statistics()`.
func (d *Driver) Statistics() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Comment writes a verbatim comment line to the log only; it is never
// sent to the solver.
func (d *Driver) Comment(s string) {
	d.writeLog(cmdComment(s))
}

// ---- Low-level dialog plumbing ------------------------------------------

func (d *Driver) write(line string) error {
	d.writeLog(line)
	if _, err := io.WriteString(d.stdin, line+"\n"); err != nil {
		return &ErrProverInteractionFailed{Command: line, Got: err.Error(), Expected: "write succeeded"}
	}
	return nil
}

func (d *Driver) writeLog(line string) {
	if d.log == nil {
		return
	}
	io.WriteString(d.log, line+"\n")
}

// readLine reads one line from the solver, silently tolerating and
// re-reading past interleaved `WARNING ...` lines, per spec.md §6.
func (d *Driver) readLine() (string, error) {
	for {
		line, err := d.stdout.ReadString('\n')
		if err != nil {
			return "", &ErrProverInteractionFailed{Got: err.Error(), Expected: "a line of output"}
		}
		line = strings.TrimRight(line, "\r\n")
		if strings.HasPrefix(line, "WARNING") {
			continue
		}
		if line == "" {
			continue
		}
		return line, nil
	}
}

// sendExpectingSuccess writes a command and consumes exactly the
// `success` token, per spec.md §4.B.
func (d *Driver) sendExpectingSuccess(cmd string) error {
	if err := d.write(cmd); err != nil {
		return err
	}
	line, err := d.readLine()
	if err != nil {
		return err
	}
	if line != "success" {
		return &ErrProverInteractionFailed{Command: cmd, Got: line, Expected: "success"}
	}
	return nil
}

func (d *Driver) sendExpectingOneOf(cmd string, want ...string) (string, error) {
	if err := d.write(cmd); err != nil {
		return "", err
	}
	line, err := d.readLine()
	if err != nil {
		return "", err
	}
	for _, w := range want {
		if line == w {
			return line, nil
		}
	}
	return "", &ErrProverInteractionFailed{Command: cmd, Got: line, Expected: strings.Join(want, "|")}
}

// readSExpr reads a single, possibly multi-line, parenthesised
// s-expression response (used for get-model / get-info).
func (d *Driver) readSExpr() (string, error) {
	var sb strings.Builder
	depth := 0
	started := false
	for {
		line, err := d.readLine()
		if err != nil {
			return "", err
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		for _, r := range line {
			switch r {
			case '(':
				depth++
				started = true
			case ')':
				depth--
			}
		}
		if started && depth <= 0 {
			return sb.String(), nil
		}
	}
}
