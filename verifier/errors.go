package verifier

import (
	"errors"
	"fmt"

	"github.com/WissenIstNacht/silicon/ast"
)

// Dependency and prover-interaction errors abort verification of the
// current method outright (spec.md §7): they are returned as plain
// errors, not folded into a VerificationResult.
var (
	// ErrProverNotFound is returned when the configured solver binary
	// cannot be started.
	ErrProverNotFound = errors.New("verifier: prover binary not found")
	// ErrProverInteractionFailed is returned when the solver's output
	// deviates from the expected SMT-LIB2 dialog.
	ErrProverInteractionFailed = errors.New("verifier: prover interaction failed")
)

// FailureKind enumerates the non-fatal, per-method verification
// failures spec.md §7 names.
type FailureKind int

const (
	AssertionFalse FailureKind = iota
	InsufficientPermission
	NegativePermission
	ReceiverNotInjective
	MagicWandChunkNotFound
	NamedMagicWandChunkNotFound
)

func (k FailureKind) String() string {
	switch k {
	case AssertionFalse:
		return "AssertionFalse"
	case InsufficientPermission:
		return "InsufficientPermission"
	case NegativePermission:
		return "NegativePermission"
	case ReceiverNotInjective:
		return "ReceiverNotInjective"
	case MagicWandChunkNotFound:
		return "MagicWandChunkNotFound"
	case NamedMagicWandChunkNotFound:
		return "NamedMagicWandChunkNotFound"
	default:
		return "UnknownFailure"
	}
}

// Failure is one non-fatal verification failure, carrying the offending
// AST node and a caller-supplied reason, per spec.md §7: "Each failure
// is formatted with source position and reason."
type Failure struct {
	Kind   FailureKind
	Method string
	Node   ast.Assertion
	Reason string
	// Model holds the raw (get-model) output when config.IdeModeAdvanced
	// requested one for this failure, per SPEC_FULL.md §12.
	Model string
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %s", f.Method, f.Kind, f.Reason)
}
