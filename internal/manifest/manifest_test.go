package manifest

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetColumnOrdersPagesAndColumns(t *testing.T) {
	m := New("job-1")
	m.SetColumn(1, Column{Column: 1, Problems: []Problem{{Number: 5, File: "p2c1.png", Source: SourceLocal}}})
	m.SetColumn(0, Column{Column: 1, Problems: []Problem{{Number: 3, File: "p1c1.png", Source: SourceLocal}}})
	m.SetColumn(0, Column{Column: 0, Problems: []Problem{{Number: 1, File: "p1c0.png", Source: SourceLocal}}})

	require.Len(t, m.Pages, 2)
	assert.Equal(t, 0, m.Pages[0].Page)
	assert.Equal(t, 1, m.Pages[1].Page)
	require.Len(t, m.Pages[0].Columns, 2)
	assert.Equal(t, 0, m.Pages[0].Columns[0].Column)
	assert.Equal(t, 1, m.Pages[0].Columns[1].Column)
}

func TestFinalizeStatus(t *testing.T) {
	m := New("job-1")
	m.SetColumn(0, Column{Column: 0, Problems: []Problem{{Number: 1, File: "a.png", Source: SourceLocal}}})
	m.Finalize()
	assert.Equal(t, StatusOK, m.Status)

	m.SetColumn(0, Column{Column: 1, Missing: []int{4}})
	m.Finalize()
	assert.Equal(t, StatusPartial, m.Status)
}

func TestSetFailedOverridesFinalize(t *testing.T) {
	m := New("job-1")
	m.SetFailed("deadline_exceeded", errors.New("ran out of time"))
	m.Finalize()
	assert.Equal(t, StatusFailed, m.Status)
	require.Len(t, m.Errors, 1)
	assert.Equal(t, "deadline_exceeded", m.Errors[0].Kind)
}

func TestMarshalNeverEmitsNullSlices(t *testing.T) {
	m := New("job-1")
	b, err := Marshal(m)
	require.NoError(t, err)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &raw))
	assert.JSONEq(t, "[]", string(raw["pages"]))
	assert.JSONEq(t, "[]", string(raw["errors"]))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, StatusOK.ExitCode())
	assert.Equal(t, 10, StatusPartial.ExitCode())
	assert.Equal(t, 20, StatusFailed.ExitCode())
}
