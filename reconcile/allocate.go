package reconcile

import (
	"math"
	"sort"
	"time"
)

// Share is one account's raw hour sum going into an apportionment, with
// display metadata carried through unmodified.
type Share struct {
	Key         string
	Hours       float64
	Title       string
	Description string
}

// Allocation is one account's quarter-hour-quantized result.
type Allocation struct {
	Key         string
	Units       int
	Hours       float64
	Title       string
	Description string
}

// Plan is a single day's allocation, in the input order of its shares.
type Plan struct {
	Day         time.Time
	Allocations []Allocation
}

// Apportion converts raw per-account hour sums into quarter-hour units using
// the largest-remainder method: every account starts at its floored unit
// count, and the units still missing from the half-even-rounded true total go
// to the accounts with the largest fractional remainders. The grand total is
// preserved exactly by construction; per-account independent rounding is not
// used because it biases totals. Remainder ties keep input order, so callers
// must feed shares in a fixed order for reproducible plans.
func Apportion(day time.Time, shares []Share) Plan {
	type scored struct {
		index    int
		units    float64
		floored  int
		fraction float64
	}

	flooredTotal := 0
	unitsTotal := 0.0
	scoredShares := make([]scored, len(shares))
	for i, share := range shares {
		units := share.Hours * 4
		floored := int(math.Floor(units))
		unitsTotal += units
		flooredTotal += floored
		scoredShares[i] = scored{
			index:    i,
			units:    units,
			floored:  floored,
			fraction: units - math.Floor(units),
		}
	}

	trueTotal := int(math.RoundToEven(unitsTotal))
	deficit := trueTotal - flooredTotal

	sort.SliceStable(scoredShares, func(i, j int) bool {
		return scoredShares[i].fraction > scoredShares[j].fraction
	})

	allocations := make([]Allocation, len(shares))
	for rank, entry := range scoredShares {
		units := entry.floored
		if rank < deficit {
			units = int(math.Ceil(entry.units))
		}
		share := shares[entry.index]
		allocations[entry.index] = Allocation{
			Key:         share.Key,
			Units:       units,
			Hours:       float64(units) / 4,
			Title:       share.Title,
			Description: share.Description,
		}
	}

	return Plan{Day: day, Allocations: allocations}
}

// Total sums the allocated hours of the plan.
func (p Plan) Total() float64 {
	total := 0.0
	for _, allocation := range p.Allocations {
		total += allocation.Hours
	}
	return total
}

// Override replaces the allocated hours for a key with an operator-supplied
// value. Overrides are not re-normalized against the day total; once a human
// edits a value the total-preservation invariant is relaxed for the run.
func (p *Plan) Override(key string, hours float64) bool {
	for i := range p.Allocations {
		if p.Allocations[i].Key == key {
			p.Allocations[i].Hours = hours
			p.Allocations[i].Units = int(math.Round(hours * 4))
			return true
		}
	}
	return false
}
