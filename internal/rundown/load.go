package rundown

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Millis is a millisecond value that decodes from YAML as an integer
// (milliseconds), a clock string ("10:30:00", "05:00") or a Go duration ("90s").
type Millis int64

// UnmarshalYAML implements yaml.Unmarshaler.
func (m *Millis) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a time value", node.Line)
	}
	v, err := ParseMillis(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*m = Millis(v)
	return nil
}

// ParseMillis parses an integer millisecond count, an [hh:]mm:ss clock
// string or a Go duration string.
func ParseMillis(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return d.Milliseconds(), nil
}

func parseClock(s string) (int64, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	var minutes int64
	for _, p := range parts[:len(parts)-1] {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid clock time %q", s)
		}
		minutes = minutes*60 + n
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 || sec >= 60 {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return minutes*60*1000 + int64(math.Round(sec*1000)), nil
}

type document struct {
	Entries []documentEntry `yaml:"entries"`
}

type documentEntry struct {
	ID        string            `yaml:"id"`
	Type      EntryType         `yaml:"type"`
	Cue       string            `yaml:"cue"`
	Title     string            `yaml:"title"`
	Note      string            `yaml:"note"`
	Colour    string            `yaml:"colour"`
	TimeStart Millis            `yaml:"timeStart"`
	TimeEnd   Millis            `yaml:"timeEnd"`
	Duration  Millis            `yaml:"duration"`
	LinkStart bool              `yaml:"linkStart"`
	IsPublic  bool              `yaml:"isPublic"`
	Skip      bool              `yaml:"skip"`
	EndAction string            `yaml:"endAction"`
	Custom    map[string]string `yaml:"custom"`
}

// Parse decodes a YAML rundown document.
func Parse(data []byte) (Rundown, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Rundown{}, fmt.Errorf("parse rundown: %w", err)
	}

	r := Rundown{Entries: make([]Entry, 0, len(doc.Entries))}
	for i, de := range doc.Entries {
		action, ok := ParseEndAction(de.EndAction)
		if !ok {
			return Rundown{}, fmt.Errorf("entry %d: invalid endAction %q", i, de.EndAction)
		}
		typ := de.Type
		if typ == "" {
			typ = TypeEvent
		}
		r.Entries = append(r.Entries, Entry{
			ID:        de.ID,
			Type:      typ,
			Cue:       de.Cue,
			Title:     de.Title,
			Note:      de.Note,
			Colour:    de.Colour,
			TimeStart: int64(de.TimeStart),
			TimeEnd:   int64(de.TimeEnd),
			Duration:  int64(de.Duration),
			LinkStart: de.LinkStart,
			IsPublic:  de.IsPublic,
			Skip:      de.Skip,
			EndAction: action,
			Custom:    de.Custom,
		})
	}
	return r, nil
}

// LoadFile reads and parses a YAML rundown document.
func LoadFile(path string) (Rundown, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rundown{}, fmt.Errorf("read rundown: %w", err)
	}
	return Parse(data)
}
