package verifier

import (
	"time"

	"github.com/WissenIstNacht/silicon/smt"
)

// Statistics aggregates per-method solver usage, reported on
// completion per spec.md §7 ("Statistics ... are emitted on
// completion"). Grounded on glee/z3.Solver's Stats struct (SolveN,
// SolveTime), generalized to the assert/check/push/pop/fresh counts
// that smt.Driver keeps.
type Statistics struct {
	AssertN   int
	CheckN    int
	CheckTime time.Duration
	PushN     int
	PopN      int
	FreshN    int
}

// Observe folds a smt.Stats snapshot into s.
func (s *Statistics) Observe(driver smt.Stats) {
	s.AssertN += driver.AssertN
	s.CheckN += driver.CheckN
	s.CheckTime += driver.CheckTime
	s.PushN += driver.PushN
	s.PopN += driver.PopN
	s.FreshN += driver.FreshN
}

// Add merges other into s, used when combining per-method statistics
// into a run-wide total.
func (s *Statistics) Add(other Statistics) {
	s.AssertN += other.AssertN
	s.CheckN += other.CheckN
	s.CheckTime += other.CheckTime
	s.PushN += other.PushN
	s.PopN += other.PopN
	s.FreshN += other.FreshN
}
