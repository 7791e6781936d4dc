package validator_test

import (
	"testing"

	"github.com/kpark/examsplit/internal/validator"
	"github.com/stretchr/testify/assert"
)

func TestDiagnoseOK(t *testing.T) {
	d := validator.Diagnose([]int{1, 2, 3, 4}, []int{1, 2, 3, 4})
	assert.Equal(t, validator.StatusOK, d.Status)
	assert.Empty(t, d.Missing)
	assert.Empty(t, d.Duplicates)
	assert.False(t, d.OutOfOrder)
}

func TestDiagnoseMissing(t *testing.T) {
	d := validator.Diagnose([]int{1, 2, 4}, []int{1, 2, 3, 4})
	assert.Equal(t, validator.StatusMissing, d.Status)
	assert.Equal(t, []int{3}, d.Missing)
}

func TestDiagnoseDuplicate(t *testing.T) {
	d := validator.Diagnose([]int{1, 2, 2, 3}, []int{1, 2, 3})
	assert.Equal(t, validator.StatusDuplicate, d.Status)
	assert.Equal(t, []int{2}, d.Duplicates)
	assert.Empty(t, d.Missing)
}

func TestDiagnoseOutOfOrderIsMixed(t *testing.T) {
	d := validator.Diagnose([]int{2, 1, 3}, []int{1, 2, 3})
	assert.Equal(t, validator.StatusMixed, d.Status)
	assert.True(t, d.OutOfOrder)
}

func TestDiagnoseMissingAndDuplicateIsMixed(t *testing.T) {
	d := validator.Diagnose([]int{1, 1, 4}, []int{1, 2, 3, 4})
	assert.Equal(t, validator.StatusMixed, d.Status)
	assert.Equal(t, []int{2, 3}, d.Missing)
	assert.Equal(t, []int{1}, d.Duplicates)
}

func TestDiagnoseZeroMarkersReportsFullExpectedSetMissing(t *testing.T) {
	d := validator.Diagnose(nil, validator.ExpectedRange(4))
	assert.Equal(t, validator.StatusMissing, d.Status)
	assert.Equal(t, []int{1, 2, 3, 4}, d.Missing)
}

func TestExpectedRange(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, validator.ExpectedRange(3))
	assert.Nil(t, validator.ExpectedRange(0))
}

func TestExpectedSpan(t *testing.T) {
	// A right-hand column detecting 5..8 expects exactly 5..8, not 1..8.
	assert.Equal(t, []int{5, 6, 7, 8}, validator.ExpectedSpan([]int{5, 6, 7, 8}))
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, validator.ExpectedSpan([]int{1, 2, 5, 6}))
	assert.Nil(t, validator.ExpectedSpan(nil))
}
