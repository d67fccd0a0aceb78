package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/roach88/showrunner/internal/auxtimer"
	"github.com/roach88/showrunner/internal/message"
	"github.com/roach88/showrunner/internal/playback"
)

func testRestorePoint() RestorePoint {
	return RestorePoint{
		Playback: playback.Checkpoint{
			Phase:       playback.PhasePlay,
			CueID:       "cue-2",
			AddedTime:   30_000,
			Accumulated: 12_000,
			RunStart:    1_710_496_800_000,
			StartedAt:   1_710_496_790_000,
			ActualStart: 1_710_496_000_000,
			OffsetMode:  playback.OffsetRelative,
		},
		Aux: []auxtimer.Checkpoint{
			{ID: 1, Direction: auxtimer.CountDown, Playback: auxtimer.Start, Duration: 300_000, RunStart: 1_710_496_800_000},
			{ID: 2, Direction: auxtimer.CountUp, Playback: auxtimer.Pause, Duration: 60_000, Accumulated: 4_000},
		},
		Message: message.State{
			Timer: message.TimerMessage{Message: message.Message{Text: "Wrap up", Visible: true}, Blink: true},
		},
		SavedAt: time.UnixMilli(1_710_496_812_000),
	}
}

func TestLoad_Empty(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if ok {
		t.Error("Load() on empty store reported a restore point")
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	want := testRestorePoint()

	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if !ok {
		t.Fatal("Load() found no restore point")
	}
	if !reflect.DeepEqual(got.Playback, want.Playback) {
		t.Errorf("playback = %+v, want %+v", got.Playback, want.Playback)
	}
	if !reflect.DeepEqual(got.Aux, want.Aux) {
		t.Errorf("aux = %+v, want %+v", got.Aux, want.Aux)
	}
	if got.Message != want.Message {
		t.Errorf("message = %+v, want %+v", got.Message, want.Message)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("saved_at = %v, want %v", got.SavedAt, want.SavedAt)
	}
}

func TestSave_Overwrites(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := testRestorePoint()
	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("first Save() failed: %v", err)
	}

	second := RestorePoint{
		Playback: playback.Checkpoint{Phase: playback.PhaseStop, OffsetMode: playback.OffsetAbsolute},
		Aux:      first.Aux[:1],
		SavedAt:  time.UnixMilli(1_710_500_000_000),
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("second Save() failed: %v", err)
	}

	got, _, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if got.Playback.Phase != playback.PhaseStop || got.Playback.CueID != "" {
		t.Errorf("playback not overwritten: %+v", got.Playback)
	}
	if len(got.Aux) != 1 {
		t.Errorf("aux rows = %d, want 1", len(got.Aux))
	}
	if got.Message != (message.State{}) {
		t.Errorf("message not overwritten: %+v", got.Message)
	}
}

func TestClear(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, testRestorePoint()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear() failed: %v", err)
	}

	_, ok, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if ok {
		t.Error("restore point survived Clear()")
	}
}

func TestSave_CancelledContext(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Save(ctx, testRestorePoint()); err == nil {
		t.Error("Save() with cancelled context should fail")
	}
}
