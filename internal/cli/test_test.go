package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runTestCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommand_AllPass(t *testing.T) {
	out, err := runTestCmd(t, "text", "testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ roll_follows_clock")
	assert.Contains(t, out, "✓ rejected_commands")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := runTestCmd(t, "json", "testdata/scenarios", "--filter", "roll*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "roll_follows_clock", resp.Data.Scenarios[0].Name)
}

// copyScenario puts roll.yaml and its rundown in a fresh directory.
func copyScenario(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for src, dst := range map[string]string{
		"testdata/rundown.yaml":        filepath.Join(root, "rundown.yaml"),
		"testdata/scenarios/roll.yaml": filepath.Join(dir, "roll.yaml"),
	} {
		data, err := os.ReadFile(src)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(dst, data, 0644))
	}
	return dir
}

func TestTestCommand_UpdateThenCompare(t *testing.T) {
	dir := copyScenario(t)

	_, err := runTestCmd(t, "text", dir, "--update")
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "golden", "roll_follows_clock.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile("testdata/scenarios/golden/roll_follows_clock.golden")
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	_, err = runTestCmd(t, "text", dir)
	require.NoError(t, err)
}

func TestTestCommand_GoldenMismatchFails(t *testing.T) {
	dir := copyScenario(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "roll_follows_clock.golden"), []byte("{}\n"), 0644))

	out, err := runTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_BadScenarioFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: x\n"), 0644))

	out, err := runTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := runTestCmd(t, "text", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
