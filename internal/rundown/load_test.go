package rundown

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMillis(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"1500", 1500},
		{"90s", 90 * second},
		{"1h30m", 90 * minute},
		{"05:00", 5 * minute},
		{"10:30:00", 10*hour + 30*minute},
		{"00:00:01.5", 1500},
	}
	for _, tt := range tests {
		got, err := ParseMillis(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"abc", "1:2:3:4", "10:61", "-1:00"} {
		_, err := ParseMillis(bad)
		assert.Error(t, err, bad)
	}
}

func TestParse_Document(t *testing.T) {
	doc := []byte(`
entries:
  - id: blk
    type: block
    title: Act 1
  - id: a
    cue: "1"
    title: Opening
    timeStart: "10:00:00"
    duration: 5m
    isPublic: true
    endAction: load-next
    custom:
      cam: "1"
  - id: b
    cue: "2"
    timeStart: "10:05:00"
    timeEnd: "10:15:00"
`)
	r, err := Parse(doc)
	require.NoError(t, err)
	require.Len(t, r.Entries, 3)

	a := r.Entries[1]
	assert.Equal(t, TypeEvent, a.Type)
	assert.Equal(t, 10*hour, a.TimeStart)
	assert.Equal(t, 5*minute, a.Duration)
	assert.Equal(t, EndActionLoadNext, a.EndAction)
	assert.True(t, a.IsPublic)
	assert.Equal(t, "1", a.Custom["cam"])

	ix, err := NewIndex(r)
	require.NoError(t, err)
	b, ok := ix.ByID("b")
	require.True(t, ok)
	assert.Equal(t, 10*minute, b.Duration)
}

func TestParse_InvalidEndAction(t *testing.T) {
	_, err := Parse([]byte("entries:\n  - id: a\n    endAction: explode\n"))
	assert.ErrorContains(t, err, "invalid endAction")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "show.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entries:\n  - id: a\n    duration: 60000\n"), 0o644))

	r, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), r.Entries[0].Duration)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
