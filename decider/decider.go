// Package decider implements the layered abstraction over the SMT
// driver (spec.md §4.C): a path-condition stack, scoped assumption,
// fresh-symbol minting, a cheap local assert cache, and the
// tryOrFail/withChunk retry machinery the consumer relies on.
//
// Grounded on glee/executor.go's Executor (owns the Solver, mediates
// every solver call) and execution_state.go's Fork/branch-restore
// discipline for tryOrFail's snapshot/retry/restore contract.
package decider

import (
	"log"

	"github.com/WissenIstNacht/silicon/smt"
	"github.com/WissenIstNacht/silicon/term"
)

// PathConditions is the minimal contract the decider needs from the
// symbolic state's path-condition stack. The concrete implementation
// lives in package state; decider is defined against the interface so
// that it does not import package state.
type PathConditions interface {
	PushScope()
	PopScope()
	Assume(t term.Term)
	Contains(t term.Term) bool
	Depth() int
}

// Decider mediates every interaction between the producer/consumer and
// the SMT solver.
type Decider struct {
	driver *smt.Driver
	pcs    PathConditions

	SplitTimeoutMS  int
	IdeModeAdvanced bool

	freshSeq int
	arpSeq   int
}

// New returns a Decider layered over driver and pcs. The caller is
// responsible for having already called driver.Start().
func New(driver *smt.Driver, pcs PathConditions) *Decider {
	return &Decider{driver: driver, pcs: pcs}
}

// Driver exposes the underlying SMT driver, e.g. for Statistics().
func (d *Decider) Driver() *smt.Driver { return d.driver }

// Assume adds a set of terms to the path condition and forwards the
// non-trivial ones to the solver, per spec.md §4.C: "Assume filters out
// terms trivially true before forwarding to the solver."
func (d *Decider) Assume(ts ...term.Term) error {
	for _, t := range ts {
		if term.IsTrue(t) {
			continue
		}
		d.pcs.Assume(t)
		if err := d.driver.Assume(t); err != nil {
			return err
		}
	}
	return nil
}

// Assert checks whether t is implied by the current path condition,
// using the triviality cache first (spec.md §4.C, §8 invariant 6):
// "assert(t) returns true without calling the SMT solver when t = True,
// or t is a member of any path-condition scope."
func (d *Decider) Assert(t term.Term, timeoutMS int) (bool, error) {
	if term.IsTrue(t) || d.pcs.Contains(t) {
		return true, nil
	}
	return d.driver.Assert(t, timeoutMS, d.IdeModeAdvanced)
}

// Check is like Assert but never mutates path conditions or caches; it
// is a pure query used by the split algorithm's in-loop depleted check.
func (d *Decider) Check(t term.Term, timeoutMS int) (bool, error) {
	if term.IsTrue(t) || d.pcs.Contains(t) {
		return true, nil
	}
	proved, err := d.driver.Assert(t, timeoutMS, false)
	return proved, err
}

// IsSat reports whether t is satisfiable together with the current path
// condition -- the question branch and loop-guard feasibility actually
// need, as distinct from Assert/Check's "is t provable" (spec.md §5's
// symbolic-execution branching: "each arm runs only if its guard is
// satisfiable in the current path condition"). A trivially true t is
// always satisfiable; otherwise t is assumed in a pushed scope and the
// solver is asked directly, with no negation.
func (d *Decider) IsSat(t term.Term, timeoutMS int) (bool, error) {
	if term.IsTrue(t) {
		return true, nil
	}
	if term.IsFalse(t) {
		return false, nil
	}
	sat := false
	err := d.InScope(func() error {
		if err := d.driver.Assume(t); err != nil {
			return err
		}
		result, err := d.driver.Check(timeoutMS)
		if err != nil {
			return err
		}
		sat = result != smt.Unsat
		return nil
	})
	if err != nil {
		return false, err
	}
	return sat, nil
}

// PushScope opens a new path-condition scope in lock-step with the
// solver's own push, per spec.md §5's invariant that path-condition
// depth always equals SMT push depth.
func (d *Decider) PushScope() error {
	d.pcs.PushScope()
	return d.driver.Push(1)
}

// PopScope closes the innermost scope.
func (d *Decider) PopScope() error {
	d.pcs.PopScope()
	return d.driver.Pop(1)
}

// InScope runs fn within a freshly pushed scope, guaranteeing PopScope
// runs on every exit path (including panics), per spec.md §5.
func (d *Decider) InScope(fn func() error) (err error) {
	if err := d.PushScope(); err != nil {
		return err
	}
	defer func() {
		if popErr := d.PopScope(); popErr != nil && err == nil {
			err = popErr
		}
	}()
	return fn()
}

// Fresh mints an uninterpreted symbol of the given sort.
func (d *Decider) Fresh(prefix string, s term.Sort) (term.Term, error) {
	d.freshSeq++
	return d.driver.Fresh(prefix, nil, s)
}

// FreshFunc mints an uninterpreted function symbol, e.g. an inverse
// function or an FVF.
func (d *Decider) FreshFunc(prefix string, args []term.Sort, result term.Sort) (term.Term, error) {
	return d.driver.Fresh(prefix, args, result)
}

// FreshARP mints an "abstract read permission" variable: a fresh
// positive permission symbol, additionally constrained to be less than
// upperBound when upperBound is non-nil. Returns the variable and the
// constraint the caller must Assume.
func (d *Decider) FreshARP(id string, upperBound term.Term) (v term.Term, constraint term.Term, err error) {
	d.arpSeq++
	v, err = d.driver.Fresh("$k$"+id, nil, term.Perm)
	if err != nil {
		return nil, nil, err
	}
	positive := term.NewIsPositive(v)
	if upperBound == nil {
		return v, positive, nil
	}
	less := term.NewPermLess(v, upperBound)
	return v, term.NewAnd(positive, less), nil
}

// Statistics returns the underlying driver's statistics.
func (d *Decider) Statistics() smt.Stats { return d.driver.Statistics() }

// LogBranch mirrors glee/executor.go's `log.Printf("[fork] ...")`
// tracing at every branch point.
func LogBranch(format string, args ...interface{}) {
	log.Printf("[branch] "+format, args...)
}
