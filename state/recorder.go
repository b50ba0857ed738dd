package state

import "github.com/WissenIstNacht/silicon/term"

// RecordedAxiom is one inverse-function or FVF/PSF definitional axiom
// captured for later consultation by the function-axiomatisation
// subsystem (out of scope, spec.md §1). Kept as plain data rather than
// a Term so the recorder doesn't need to know how the consumer will use
// it -- only that it was produced.
type RecordedAxiom struct {
	Kind string // "inverse", "fvf-domain", "fvf-value", "non-null", "injectivity"
	Term term.Term
}

// FunctionRecorder is an append-only log of axioms minted while
// producing/consuming quantified permissions, per spec.md §9: "hoist it
// into a dedicated component with an append API."
type FunctionRecorder struct {
	axioms []RecordedAxiom
}

// NewFunctionRecorder returns an empty recorder.
func NewFunctionRecorder() *FunctionRecorder { return &FunctionRecorder{} }

// Record appends a single axiom. Returns a new recorder, keeping
// FunctionRecorder consistent with the rest of state's copy-on-write
// discipline.
func (r *FunctionRecorder) Record(kind string, t term.Term) *FunctionRecorder {
	next := make([]RecordedAxiom, len(r.axioms)+1)
	copy(next, r.axioms)
	next[len(next)-1] = RecordedAxiom{Kind: kind, Term: t}
	return &FunctionRecorder{axioms: next}
}

// Axioms returns every recorded axiom, in recording order.
func (r *FunctionRecorder) Axioms() []RecordedAxiom {
	if r == nil {
		return nil
	}
	return r.axioms
}
