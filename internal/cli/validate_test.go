package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runValidateCmd(t *testing.T, format string, path string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{path})
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_TextGolden(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/show.yaml")
	require.NoError(t, err)

	g := goldie.New(t, goldie.WithFixtureDir("testdata"), goldie.WithNameSuffix(".golden"))
	g.Assert(t, "validate_text", []byte(out))
}

func TestValidate_JSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", "testdata/show.yaml")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   RundownSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Cues)
	assert.Equal(t, 1, resp.Data.Delays)
	assert.Equal(t, "00:32:00", resp.Data.TotalDuration)
	require.Len(t, resp.Data.Order, 3)
	assert.Equal(t, CueSummary{
		Position: 2, ID: "b", Cue: "2", Title: "Interview",
		Start: "10:07:00", End: "10:22:00",
	}, resp.Data.Order[1])
}

func TestValidate_NotFound(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E002]: rundown not found")
}

func TestValidate_Invalid(t *testing.T) {
	out, err := runValidateCmd(t, "text", "testdata/duplicate.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `duplicate id "a"`)
	assert.Contains(t, out, "✗ Validation failed")
}

func TestValidate_InvalidJSON(t *testing.T) {
	out, err := runValidateCmd(t, "json", "testdata/duplicate.yaml")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00"},
		{999, "00:00:00"},
		{36_000_000, "10:00:00"},
		{36_061_000, "10:01:01"},
		{-90_000, "-00:01:30"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatClock(tt.ms))
	}
}
