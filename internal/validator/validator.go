// Package validator implements a pure diagnosis function: given the
// numbers a column's markers detected and the set of numbers expected
// there, classify the column's status.
package validator

import "sort"

// Status is the coarse outcome of a column's diagnosis.
type Status string

const (
	StatusOK        Status = "ok"
	StatusMissing   Status = "missing"
	StatusDuplicate Status = "duplicate"
	StatusMixed     Status = "mixed"
)

// Diagnosis is the result of comparing detected numbers against the
// expected set.
type Diagnosis struct {
	Status     Status
	Missing    []int
	Duplicates []int
	OutOfOrder bool
}

// Diagnose computes a Diagnosis.
//
// detected holds every number a column's markers carried, in the same
// order the boundary solver walked them (ascending column-y order);
// duplicates appear once per extra occurrence. expected is the full set
// of numbers the caller believes should be present in this column.
func Diagnose(detected []int, expected []int) Diagnosis {
	missing := missingFrom(detected, expected)
	duplicates := duplicatesIn(detected)
	outOfOrder := !isAscending(detected)

	status := StatusOK
	switch {
	case len(missing) > 0 && (len(duplicates) > 0 || outOfOrder):
		status = StatusMixed
	case len(missing) > 0:
		status = StatusMissing
	case len(duplicates) > 0:
		status = StatusDuplicate
	case outOfOrder:
		status = StatusMixed
	}

	return Diagnosis{
		Status:     status,
		Missing:    missing,
		Duplicates: duplicates,
		OutOfOrder: outOfOrder,
	}
}

// missingFrom returns expected numbers absent from detected, ascending.
func missingFrom(detected, expected []int) []int {
	present := make(map[int]bool, len(detected))
	for _, n := range detected {
		present[n] = true
	}
	var missing []int
	for _, n := range expected {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	sort.Ints(missing)
	return dedupInts(missing)
}

// duplicatesIn returns numbers that occur more than once in detected,
// ascending, each listed once regardless of how many extra occurrences.
func duplicatesIn(detected []int) []int {
	counts := make(map[int]int, len(detected))
	for _, n := range detected {
		counts[n]++
	}
	var dups []int
	for n, c := range counts {
		if c > 1 {
			dups = append(dups, n)
		}
	}
	sort.Ints(dups)
	return dups
}

// isAscending reports whether detected is strictly increasing.
func isAscending(detected []int) bool {
	for i := 1; i < len(detected); i++ {
		if detected[i] <= detected[i-1] {
			return false
		}
	}
	return true
}

func dedupInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	out := sorted[:1]
	for _, n := range sorted[1:] {
		if n != out[len(out)-1] {
			out = append(out, n)
		}
	}
	return out
}

// ExpectedRange builds the expected set {1, ..., max}, used when a job
// carries a configured expected_problem_count.
func ExpectedRange(max int) []int {
	if max <= 0 {
		return nil
	}
	expected := make([]int, max)
	for i := range expected {
		expected[i] = i + 1
	}
	return expected
}

// ExpectedSpan builds {min(detected), ..., max(detected)}: the inferred
// per-column expectation when no count is configured. Exam columns
// rarely start at problem 1 (a right-hand column typically runs 5..8),
// so the span starts at the smallest detected number, clamped to >= 1.
func ExpectedSpan(detected []int) []int {
	if len(detected) == 0 {
		return nil
	}
	lo, hi := detected[0], detected[0]
	for _, n := range detected[1:] {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	if lo < 1 {
		lo = 1
	}
	if hi < lo {
		return nil
	}
	expected := make([]int, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		expected = append(expected, n)
	}
	return expected
}
