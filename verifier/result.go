package verifier

import "github.com/WissenIstNacht/silicon/ast"

// ResultKind distinguishes the three shapes spec.md §7 assigns a
// verification outcome.
type ResultKind int

const (
	// ResultSuccess means every branch discharged without failure.
	ResultSuccess ResultKind = iota
	// ResultUnreachable means the code path itself is infeasible under
	// the current path condition -- vacuously successful.
	ResultUnreachable
	// ResultFailure carries one or more accumulated Failures.
	ResultFailure
)

// VerificationResult is the sum type spec.md §7 returns from every
// verification unit smaller than "the whole run": Success,
// Unreachable, or Failure with its accumulated Failures.
type VerificationResult struct {
	Kind     ResultKind
	Failures []*Failure
}

// Success returns the trivial successful result.
func Success() VerificationResult { return VerificationResult{Kind: ResultSuccess} }

// Unreachable returns the vacuous-success result used when a branch
// guard is infeasible.
func Unreachable() VerificationResult { return VerificationResult{Kind: ResultUnreachable} }

// And combines the results of two sibling continuations (e.g. the two
// arms of an if-statement, each independently verified against the
// same suffix): Unreachable is the identity, and Failures from both
// sides are linked together rather than the first one short-circuiting
// the other, per spec.md §7 -- fatal errors already leave this
// combinator on a distinct (error) return path and never reach here.
func (r VerificationResult) And(other VerificationResult) VerificationResult {
	switch {
	case r.Kind == ResultUnreachable:
		return other
	case other.Kind == ResultUnreachable:
		return r
	case r.Kind == ResultFailure || other.Kind == ResultFailure:
		failures := make([]*Failure, 0, len(r.Failures)+len(other.Failures))
		failures = append(failures, r.Failures...)
		failures = append(failures, other.Failures...)
		return VerificationResult{Kind: ResultFailure, Failures: failures}
	default:
		return Success()
	}
}

func failureResult(method string, kind FailureKind, node ast.Assertion, reason, model string) VerificationResult {
	return VerificationResult{
		Kind: ResultFailure,
		Failures: []*Failure{{
			Kind:   kind,
			Method: method,
			Node:   node,
			Reason: reason,
			Model:  model,
		}},
	}
}
