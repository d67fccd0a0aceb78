package engine

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/roach88/showrunner/internal/store"
)

// restorePoint captures the owned state. SavedAt is left to the saver.
func (e *Engine) restorePoint() store.RestorePoint {
	return store.RestorePoint{
		Playback: e.machine.Checkpoint(),
		Aux:      e.bank.Checkpoint(),
		Message:  e.events.Poll().Message,
	}
}

// startSaver launches the goroutine that writes restore points. The returned
// channel closes once the saver has drained.
func (e *Engine) startSaver() <-chan struct{} {
	done := make(chan struct{})
	if e.restore == nil {
		close(done)
		return done
	}
	e.persist = make(chan store.RestorePoint, 1)
	go func() {
		defer close(done)
		for rp := range e.persist {
			e.save(rp)
		}
	}()
	return done
}

func (e *Engine) save(rp store.RestorePoint) {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	rp.SavedAt = e.clock.Now()
	if err := e.restore.Save(ctx, rp); err != nil {
		slog.Error("restore point save failed",
			"cue_id", rp.Playback.CueID,
			"error", err,
		)
	}
}

// maybePersist hands the restore point to the saver when the interval has
// elapsed and something changed. A pending unsaved point is replaced.
func (e *Engine) maybePersist(now time.Time) {
	if e.persist == nil || now.Sub(e.lastPersist) < e.restoreInterval {
		return
	}
	e.lastPersist = now
	rp := e.restorePoint()
	if e.lastSaved != nil && reflect.DeepEqual(*e.lastSaved, rp) {
		return
	}
	e.offer(rp)
	e.lastSaved = &rp
}

func (e *Engine) offer(rp store.RestorePoint) {
	select {
	case e.persist <- rp:
		return
	default:
	}
	// Saver is busy with an older point; drop the queued one.
	select {
	case <-e.persist:
	default:
	}
	select {
	case e.persist <- rp:
	default:
		slog.Warn("restore point dropped", "cue_id", rp.Playback.CueID)
	}
}

// shutdown flushes the final restore point and waits for the saver.
func (e *Engine) shutdown(saverDone <-chan struct{}) {
	if e.persist != nil {
		rp := e.restorePoint()
		if e.lastSaved == nil || !reflect.DeepEqual(*e.lastSaved, rp) {
			e.offer(rp)
			e.lastSaved = &rp
		}
		close(e.persist)
	}
	<-saverDone
	slog.Info("engine stopped")
}
