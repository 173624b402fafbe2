package reconcile

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestApportionDistributesLargestRemaindersFirst(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	plan := Apportion(day, []Share{
		{Key: "A", Hours: 1.1},
		{Key: "B", Hours: 1.3},
		{Key: "C", Hours: 0.6},
	})

	// Raw quarter units {4.4, 5.2, 2.4} floor to 11 against a true total of
	// 12, so the single leftover unit goes to A (largest remainder 0.4).
	want := map[string]float64{"A": 1.25, "B": 1.25, "C": 0.5}
	for _, allocation := range plan.Allocations {
		if got := want[allocation.Key]; allocation.Hours != got {
			t.Fatalf("account %s: expected %v, got %v", allocation.Key, got, allocation.Hours)
		}
	}
	if got := plan.Total(); math.Abs(got-3.0) > 1e-9 {
		t.Fatalf("expected total 3.0, got %v", got)
	}
}

func TestApportionPreservesRoundedTotal(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)

	for run := 0; run < 200; run++ {
		count := 1 + rng.Intn(8)
		shares := make([]Share, count)
		rawTotal := 0.0
		for i := range shares {
			hours := rng.Float64() * 4
			shares[i] = Share{Key: string(rune('A' + i)), Hours: hours}
			rawTotal += hours * 4
		}

		plan := Apportion(day, shares)

		wantUnits := int(math.RoundToEven(rawTotal))
		gotUnits := 0
		for _, allocation := range plan.Allocations {
			gotUnits += allocation.Units
		}
		if gotUnits != wantUnits {
			t.Fatalf("run %d: allocated %d quarter units, want %d (shares %+v)", run, gotUnits, wantUnits, shares)
		}
	}
}

func TestApportionDeviationFromFloorIsAtMostOneUnit(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	shares := []Share{
		{Key: "A", Hours: 0.9},
		{Key: "B", Hours: 2.35},
		{Key: "C", Hours: 0.31},
		{Key: "D", Hours: 1.87},
	}

	plan := Apportion(day, shares)
	for i, allocation := range plan.Allocations {
		floored := int(math.Floor(shares[i].Hours * 4))
		if allocation.Units != floored && allocation.Units != floored+1 {
			t.Fatalf("account %s: units %d deviates from floor %d by more than 1", allocation.Key, allocation.Units, floored)
		}
	}
}

func TestApportionTieBreaksByInputOrder(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	// Both shares have remainder 0.5; one leftover unit exists and must go to
	// the share listed first.
	plan := Apportion(day, []Share{
		{Key: "first", Hours: 0.125},
		{Key: "second", Hours: 0.125},
	})

	if plan.Allocations[0].Units != 1 || plan.Allocations[1].Units != 0 {
		t.Fatalf("expected the first listed share to win the tie, got %+v", plan.Allocations)
	}
}

func TestApportionEmptyInput(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	plan := Apportion(day, nil)
	if len(plan.Allocations) != 0 || plan.Total() != 0 {
		t.Fatalf("expected empty plan, got %+v", plan)
	}
}

func TestPlanOverrideSkipsRenormalization(t *testing.T) {
	t.Parallel()

	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.Local)
	plan := Apportion(day, []Share{
		{Key: "A", Hours: 1.0},
		{Key: "B", Hours: 2.0},
	})

	if !plan.Override("A", 5.0) {
		t.Fatalf("expected override of existing key to succeed")
	}
	if plan.Override("missing", 1.0) {
		t.Fatalf("expected override of unknown key to fail")
	}

	if got := plan.Total(); math.Abs(got-7.0) > 1e-9 {
		t.Fatalf("expected overridden total 7.0, got %v", got)
	}
}
