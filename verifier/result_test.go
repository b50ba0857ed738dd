package verifier

import "testing"

func TestVerificationResult_AndUnreachableIsIdentity(t *testing.T) {
	s := Success()
	if got := Unreachable().And(s); got.Kind != ResultSuccess {
		t.Fatalf("Unreachable().And(Success()) = %v, want ResultSuccess", got.Kind)
	}
	if got := s.And(Unreachable()); got.Kind != ResultSuccess {
		t.Fatalf("Success().And(Unreachable()) = %v, want ResultSuccess", got.Kind)
	}
}

func TestVerificationResult_AndLinksFailuresFromBothSides(t *testing.T) {
	left := failureResult("m", AssertionFalse, nil, "left", "")
	right := failureResult("m", NegativePermission, nil, "right", "")

	got := left.And(right)
	if got.Kind != ResultFailure {
		t.Fatalf("got %v, want ResultFailure", got.Kind)
	}
	if len(got.Failures) != 2 {
		t.Fatalf("got %d failures, want 2 (both sides linked, not short-circuited)", len(got.Failures))
	}
	if got.Failures[0].Reason != "left" || got.Failures[1].Reason != "right" {
		t.Fatalf("failures out of order: %+v", got.Failures)
	}
}

func TestVerificationResult_AndFailurePlusSuccessIsFailure(t *testing.T) {
	f := failureResult("m", AssertionFalse, nil, "boom", "")
	if got := f.And(Success()); got.Kind != ResultFailure || len(got.Failures) != 1 {
		t.Fatalf("got %v/%d failures, want ResultFailure/1", got.Kind, len(got.Failures))
	}
	if got := Success().And(f); got.Kind != ResultFailure || len(got.Failures) != 1 {
		t.Fatalf("got %v/%d failures, want ResultFailure/1", got.Kind, len(got.Failures))
	}
}

func TestVerificationResult_AndTwoSuccessesIsSuccess(t *testing.T) {
	if got := Success().And(Success()); got.Kind != ResultSuccess {
		t.Fatalf("got %v, want ResultSuccess", got.Kind)
	}
}
