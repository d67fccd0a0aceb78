package dispatch

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/showrunner/internal/fault"
)

// normalize turns JSON-looking strings into decoded values. Some transports
// can only carry strings.
func normalize(payload any) any {
	s, ok := payload.(string)
	if !ok {
		return payload
	}
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") && !strings.HasPrefix(trimmed, "[") {
		return payload
	}
	var decoded any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err != nil {
		return payload
	}
	return decoded
}

func asObject(payload any) (map[string]any, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fault.Validation("Payload must be an object")
	}
	return obj, nil
}

// numberOrError coerces v to a number. Numeric strings are accepted.
func numberOrError(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, errNotNumber()
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, errNotNumber()
		}
		f = parsed
	default:
		return 0, errNotNumber()
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errNotNumber()
	}
	return f, nil
}

func errNotNumber() error {
	return fault.Validation("Payload is not a valid number")
}

// secondsToMs converts a wire value in seconds.
func secondsToMs(seconds float64) int64 {
	return int64(math.Round(seconds * 1000))
}

// formatNumber renders n without a trailing ".0" for whole numbers.
func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func stringOrNumber(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return formatNumber(s), true
	case int:
		return strconv.Itoa(s), true
	}
	return "", false
}

// target is the decoded selector payload of start and load. Exactly one of
// the variant types below implements it.
type target interface{ isTarget() }

type (
	// targetCurrent is an absent payload: act on the loaded cue.
	targetCurrent struct{}
	// targetIndex carries the 1-based index exactly as received.
	targetIndex struct{ oneBased float64 }
	targetID    struct{ id string }
	targetCue   struct{ label string }
	targetNext  struct{}
	targetPrev  struct{}
)

func (targetCurrent) isTarget() {}
func (targetIndex) isTarget()   {}
func (targetID) isTarget()      {}
func (targetCue) isTarget()     {}
func (targetNext) isTarget()    {}
func (targetPrev) isTarget()    {}

// errNoMatch is returned by decodeTarget when the payload has no known shape.
// Callers replace it with their own message.
var errNoMatch = fault.Validation("No matching method provided")

func decodeTarget(payload any) (target, error) {
	switch p := payload.(type) {
	case nil:
		return targetCurrent{}, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(p)) {
		case "next":
			return targetNext{}, nil
		case "previous":
			return targetPrev{}, nil
		}
	case map[string]any:
		if raw, ok := p["index"]; ok {
			n, err := numberOrError(raw)
			if err != nil {
				return nil, err
			}
			return targetIndex{oneBased: n}, nil
		}
		if raw, ok := p["id"]; ok {
			id, ok := raw.(string)
			if !ok {
				return nil, fault.Validation("Event ID must be a string")
			}
			return targetID{id: id}, nil
		}
		if raw, ok := p["cue"]; ok {
			label, ok := stringOrNumber(raw)
			if !ok {
				return nil, fault.Validation("Payload is not a valid string or number")
			}
			return targetCue{label: label}, nil
		}
	}
	return nil, errNoMatch
}

// decodeAddTime reads a bare number, {add} or {remove} in seconds. A payload
// with neither key is zero.
func decodeAddTime(payload any) (float64, error) {
	obj, ok := payload.(map[string]any)
	if !ok {
		return numberOrError(payload)
	}
	if raw, ok := obj["add"]; ok {
		return numberOrError(raw)
	}
	if raw, ok := obj["remove"]; ok {
		n, err := numberOrError(raw)
		return -n, err
	}
	return 0, nil
}
