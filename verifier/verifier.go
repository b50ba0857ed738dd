// Package verifier drives one method's symbolic execution from
// precondition to postcondition, dispatching to the producer/consumer
// pair for every assertion and interpreting the imperative statement
// grammar (spec.md §4.I/§7) between them. It owns the sum-typed
// VerificationResult and the mapping from consumer/producer errors to
// the fatal/non-fatal split spec.md §7 requires.
//
// Grounded on glee/executor.go's ExecuteNextState dispatch loop for the
// statement-level switch, and on its Fork-based branch handling
// (generalized here to run the *entire* statement suffix under each
// branch rather than merge heaps back, matching spec.md §9's "every
// continuation is invoked at most once per path").
package verifier

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/WissenIstNacht/silicon/ast"
	"github.com/WissenIstNacht/silicon/config"
	"github.com/WissenIstNacht/silicon/consumer"
	"github.com/WissenIstNacht/silicon/decider"
	"github.com/WissenIstNacht/silicon/producer"
	"github.com/WissenIstNacht/silicon/qp"
	"github.com/WissenIstNacht/silicon/smt"
	"github.com/WissenIstNacht/silicon/state"
	"github.com/WissenIstNacht/silicon/term"
	"github.com/WissenIstNacht/silicon/translate"
)

// Verifier holds everything shared across a run's methods: the parsed
// program, field/predicate sort tables derived from it, and the
// resolved configuration.
type Verifier struct {
	Program *ast.Program
	Config  config.Config

	fieldSorts       map[string]term.Sort
	predicateSorts   map[string]term.Sort
	quantifiedFields map[string]bool
	methodsByName    map[string]*ast.Method
	triggers         qp.TriggerGenerator
}

// New indexes program's declarations for repeated lookup during
// execution: field sorts, an (approximate) predicate snapshot sort, and
// which fields ever appear under a quantified permission, per spec.md
// §4.G's "if f has ever been quantified, add a singleton quantified
// chunk instead."
func New(program *ast.Program, cfg config.Config) *Verifier {
	v := &Verifier{
		Program:          program,
		Config:           cfg,
		fieldSorts:       make(map[string]term.Sort),
		predicateSorts:   make(map[string]term.Sort),
		quantifiedFields: make(map[string]bool),
		methodsByName:    make(map[string]*ast.Method),
		// qp has no trigger generator of its own yet; -disable-isc-triggers
		// is a no-op until one exists to disable.
		triggers: qp.NoTriggers,
	}
	for _, f := range program.Fields {
		v.fieldSorts[f.Name] = translate.Sort(f.Type)
	}
	for _, p := range program.Predicates {
		// The predicate's optimal snapshot sort would come from
		// analyzing its body; term.Snap is always a safe supersort for
		// any predicate body's combined field/nested-predicate snapshots.
		v.predicateSorts[p.Name] = term.Snap
	}
	for i := range program.Methods {
		m := &program.Methods[i]
		v.methodsByName[m.Name] = m
		markQuantifiedFields(m.Preconds, v.quantifiedFields)
		markQuantifiedFields(m.Postconds, v.quantifiedFields)
		markQuantifiedFieldsStmts(m.Body, v.quantifiedFields)
	}
	return v
}

func markQuantifiedFields(assertions []ast.Assertion, fields map[string]bool) {
	for _, a := range assertions {
		markQuantifiedFieldsOne(a, fields)
	}
}

func markQuantifiedFieldsOne(a ast.Assertion, fields map[string]bool) {
	switch a := a.(type) {
	case *ast.And:
		markQuantifiedFieldsOne(a.Left, fields)
		markQuantifiedFieldsOne(a.Right, fields)
	case *ast.Implies:
		markQuantifiedFieldsOne(a.Then, fields)
	case *ast.CondAssertion:
		markQuantifiedFieldsOne(a.Then, fields)
		markQuantifiedFieldsOne(a.Else, fields)
	case *ast.LetAssertion:
		markQuantifiedFieldsOne(a.Body, fields)
	case *ast.QuantifiedPermissionAssertion:
		if a.Field != "" {
			fields[a.Field] = true
		}
	case *ast.MagicWand:
		markQuantifiedFieldsOne(a.Left, fields)
		markQuantifiedFieldsOne(a.Right, fields)
	case *ast.InhaleExhaleAssertion:
		markQuantifiedFieldsOne(a.Inhale, fields)
		markQuantifiedFieldsOne(a.Exhale, fields)
	}
}

func markQuantifiedFieldsStmts(stmts []ast.Stmt, fields map[string]bool) {
	for _, st := range stmts {
		switch st := st.(type) {
		case *ast.Inhale:
			markQuantifiedFieldsOne(st.A, fields)
		case *ast.Exhale:
			markQuantifiedFieldsOne(st.A, fields)
		case *ast.Assert:
			markQuantifiedFieldsOne(st.A, fields)
		case *ast.Assume:
			markQuantifiedFieldsOne(st.A, fields)
		case *ast.If:
			markQuantifiedFieldsStmts(st.Then, fields)
			markQuantifiedFieldsStmts(st.Else, fields)
		case *ast.While:
			markQuantifiedFields(st.Invariants, fields)
			markQuantifiedFieldsStmts(st.Body, fields)
		}
	}
}

// MethodResult is one method's verification outcome plus the solver
// usage it incurred.
type MethodResult struct {
	Method string
	Result VerificationResult
	Stats  Statistics
}

// VerifyMethod symbolically executes m's body from a state produced by
// m's preconditions to one consumed by its postconditions, mediated by
// a Decider layered over a freshly started solver subprocess. Returns a
// plain error only for the fatal Dependency/Prover-interaction/
// programmer-error cases spec.md §7 names; everything else is folded
// into the returned VerificationResult.
func (v *Verifier) VerifyMethod(m *ast.Method) (*MethodResult, error) {
	driver, err := v.startDriver()
	if err != nil {
		return nil, err
	}
	defer driver.Stop()
	return v.verifyMethodWith(driver, m)
}

func (v *Verifier) verifyMethodWith(driver *smt.Driver, m *ast.Method) (*MethodResult, error) {
	s := state.New()
	dec := decider.New(driver, s.PathConditions)
	dec.SplitTimeoutMS = v.Config.SplitTimeout
	dec.IdeModeAdvanced = v.Config.IdeModeAdvanced

	mv := &methodVerifier{v: v, dec: dec, method: m}

	for _, p := range m.Params {
		sort := translate.Sort(p.Type)
		x, err := dec.Fresh(p.Name, sort)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProverInteractionFailed, err)
		}
		s.Store = s.Store.Extend(p.Name, x)
		mv.varSorts(p.Name, sort)
	}

	for _, pre := range m.Preconds {
		if _, err := mv.producer().Produce(s, mv.snapshot, pre); err != nil {
			return nil, mv.fatal(err)
		}
	}

	result, err := mv.execStmts(s, m.Body)
	if err != nil {
		return nil, mv.fatal(err)
	}

	if result.Kind == ResultSuccess {
		if m.Result != nil {
			// translate.Expr resolves *ast.Result via the fixed store key
			// "result", regardless of the declared BoundVar's own name.
			sort := translate.Sort(m.Result.Type)
			resVar, err := dec.Fresh("result", sort)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrProverInteractionFailed, err)
			}
			s.Store = s.Store.Extend("result", resVar)
			mv.varSorts("result", sort)
		}
		for _, post := range m.Postconds {
			if _, err := mv.consumer().Consume(s, post); err != nil {
				fr, classifyErr := mv.classifyConsumeFailure(post, err)
				if classifyErr != nil {
					return nil, mv.fatal(classifyErr)
				}
				result = fr
				break
			}
		}
	}

	stats := Statistics{}
	stats.Observe(dec.Statistics())
	return &MethodResult{Method: m.Name, Result: result, Stats: stats}, nil
}

// startDriver spawns the solver subprocess per v.Config, translating
// smt's dependency/protocol errors into verifier's own fatal sentinels
// per spec.md §7.
func (v *Verifier) startDriver() (*smt.Driver, error) {
	var logWriter io.WriteCloser
	if v.Config.Z3LogFile != "" {
		f, err := os.Create(v.Config.Z3LogFile)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProverNotFound, err)
		}
		logWriter = f
	}
	mode := smt.PushPop
	if v.Config.AssertionMode == config.SoftConstraints {
		mode = smt.SoftConstraints
	}
	driver := smt.NewDriver(smt.Config{Cmd: v.Config.Z3Command(), Mode: mode, LogWriter: logWriter})
	if err := driver.Start(); err != nil {
		var depErr *smt.ErrDependency
		if errors.As(err, &depErr) {
			return nil, fmt.Errorf("%w: %v", ErrProverNotFound, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrProverInteractionFailed, err)
	}
	return driver, nil
}

func (mv *methodVerifier) varSorts(name string, sort term.Sort) {
	if mv.varSortsMap == nil {
		mv.varSortsMap = make(map[string]term.Sort)
	}
	mv.varSortsMap[name] = sort
}

func (mv *methodVerifier) fatal(err error) error {
	if errors.Is(err, ErrProverInteractionFailed) || errors.Is(err, ErrProverNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", mv.method.Name, err)
}

// methodVerifier threads a Decider and this method's variable-sort
// table through the statement walk, minting producer/consumer values
// scoped to the current call since both carry mutable per-call state
// (QuantifiedFields, sort tables) that must not leak across methods run
// concurrently by VerifySet.
type methodVerifier struct {
	v           *Verifier
	dec         *decider.Decider
	method      *ast.Method
	varSortsMap map[string]term.Sort
}

func (mv *methodVerifier) producer() *producer.Producer {
	return &producer.Producer{
		Solver:           mv.dec,
		Predicates:       mv.v.predicateSort,
		Triggers:         mv.v.triggers,
		TimeoutMS:        mv.v.Config.Z3Timeout,
		QuantifiedFields: mv.v.quantifiedFields,
		VarSorts:         mv.varSortsMap,
		FieldSorts:       mv.v.fieldSorts,
	}
}

func (mv *methodVerifier) consumer() *consumer.Consumer {
	return &consumer.Consumer{
		Solver:           mv.dec,
		Predicates:       mv.v.predicateSort,
		Triggers:         mv.v.triggers,
		TimeoutMS:        mv.v.Config.Z3Timeout,
		QuantifiedFields: mv.v.quantifiedFields,
		VarSorts:         mv.varSortsMap,
		FieldSorts:       mv.v.fieldSorts,
	}
}

func (v *Verifier) predicateSort(name string) term.Sort {
	if s, ok := v.predicateSorts[name]; ok {
		return s
	}
	return term.Snap
}

// snapshot mints a fresh symbol of sort s, used as the snapshotFn every
// Produce call at the statement level supplies.
func (mv *methodVerifier) snapshot(s term.Sort) term.Term {
	t, err := mv.dec.Fresh("s", s)
	if err != nil {
		// Fresh only fails on a broken solver pipe, already surfaced
		// through the immediately preceding Assert/Assume in the same
		// call; there is no sane snapshot to synthesize here.
		return term.Unit
	}
	return t
}

func (mv *methodVerifier) env(s *state.State) translate.Env {
	return translate.Env{
		Lookup: s.Store.Get,
		Sort: func(name string) term.Sort {
			if sort, ok := mv.varSortsMap[name]; ok {
				return sort
			}
			return term.Ref
		},
		FuncResultSort: func(string) term.Sort { return term.Int },
	}
}

func sortedNames(names map[string]bool) []string {
	out := make([]string, 0, len(names))
	for n := range names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
