package verifier

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunResult is one run's outcome across every method in the program.
type RunResult struct {
	Methods []*MethodResult
	Total   Statistics
}

// VerifySet verifies every method in v.Program concurrently, each on
// its own solver subprocess, decider, and symbolic state, per spec.md
// §5's "The SMT subprocess is owned exclusively by one Decider" -- no
// state is shared across methods, so there is nothing to serialize.
// The first fatal (Dependency/Prover-interaction/programmer) error is
// returned once every method has finished; methods already running are
// not cancelled. Non-fatal per-method failures are all collected into
// the result instead.
func (v *Verifier) VerifySet(ctx context.Context) (*RunResult, error) {
	results := make([]*MethodResult, len(v.Program.Methods))

	g, _ := errgroup.WithContext(ctx)
	for i := range v.Program.Methods {
		i := i
		m := &v.Program.Methods[i]
		g.Go(func() error {
			res, err := v.VerifyMethod(m)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := Statistics{}
	for _, r := range results {
		total.Add(r.Stats)
	}
	return &RunResult{Methods: results, Total: total}, nil
}

// Failures flattens every non-fatal failure a run produced, in method
// declaration order, for the CLI to report per spec.md §7's "Each
// failure is formatted with source position and reason."
func (r *RunResult) Failures() []*Failure {
	var out []*Failure
	for _, m := range r.Methods {
		out = append(out, m.Result.Failures...)
	}
	return out
}

// Success reports whether every method in the run verified cleanly.
func (r *RunResult) Success() bool {
	for _, m := range r.Methods {
		if m.Result.Kind == ResultFailure {
			return false
		}
	}
	return true
}
