// Package message holds the operator message overlay.
package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/showrunner/internal/fault"
)

// Message is a text overlay with a visibility toggle.
type Message struct {
	Text    string `json:"text"`
	Visible bool   `json:"visible"`
}

// TimerMessage is the overlay shown on the timer view.
type TimerMessage struct {
	Message
	Blink    bool `json:"blink"`
	Blackout bool `json:"blackout"`
}

// State is the published message overlay.
type State struct {
	Timer    TimerMessage `json:"timer"`
	External Message      `json:"external"`
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Timer    *TimerPatch
	External *MessagePatch
}

// MessagePatch patches a Message.
type MessagePatch struct {
	Text    *string
	Visible *bool
}

// TimerPatch patches a TimerMessage.
type TimerPatch struct {
	MessagePatch
	Blink    *bool
	Blackout *bool
}

// Apply returns s with p merged in.
func (s State) Apply(p Patch) State {
	if p.Timer != nil {
		s.Timer.Message = p.Timer.MessagePatch.apply(s.Timer.Message)
		if p.Timer.Blink != nil {
			s.Timer.Blink = *p.Timer.Blink
		}
		if p.Timer.Blackout != nil {
			s.Timer.Blackout = *p.Timer.Blackout
		}
	}
	if p.External != nil {
		s.External = p.External.apply(s.External)
	}
	return s
}

func (p MessagePatch) apply(m Message) Message {
	if p.Text != nil {
		m.Text = *p.Text
	}
	if p.Visible != nil {
		m.Visible = *p.Visible
	}
	return m
}

// ParsePatch validates a decoded wire payload of the form
// {"timer": {...}, "external": {...}}. Booleans may arrive as strings.
func ParsePatch(payload map[string]any) (Patch, error) {
	var p Patch
	if raw, ok := payload["timer"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok {
			return Patch{}, fault.Validation("Timer message payload must be an object")
		}
		tp := &TimerPatch{}
		var err error
		if tp.MessagePatch, err = parseMessage(obj); err != nil {
			return Patch{}, err
		}
		if tp.Blink, err = optionalBool(obj, "blink"); err != nil {
			return Patch{}, err
		}
		if tp.Blackout, err = optionalBool(obj, "blackout"); err != nil {
			return Patch{}, err
		}
		p.Timer = tp
	}
	if raw, ok := payload["external"]; ok {
		obj, ok := raw.(map[string]any)
		if !ok {
			return Patch{}, fault.Validation("External message payload must be an object")
		}
		mp, err := parseMessage(obj)
		if err != nil {
			return Patch{}, err
		}
		p.External = &mp
	}
	return p, nil
}

func parseMessage(obj map[string]any) (MessagePatch, error) {
	var mp MessagePatch
	if raw, ok := obj["text"]; ok {
		text, err := coerceString(raw)
		if err != nil {
			return MessagePatch{}, err
		}
		mp.Text = &text
	}
	visible, err := optionalBool(obj, "visible")
	if err != nil {
		return MessagePatch{}, err
	}
	mp.Visible = visible
	return mp, nil
}

func optionalBool(obj map[string]any, key string) (*bool, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, nil
	}
	b, err := CoerceBool(raw)
	if err != nil {
		return nil, fault.Validation("Invalid value for %s: %v", key, raw)
	}
	return &b, nil
}

// CoerceBool accepts a JSON boolean or its string spelling.
func CoerceBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(b))
	}
	return false, fmt.Errorf("not a boolean: %T", v)
}

func coerceString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(s), nil
	}
	return "", fault.Validation("Message text must be a string")
}
