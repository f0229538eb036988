package nodemap

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
)

// Scheduler persists the canvas, either immediately or after a trailing
// debounce. A deferred save snapshots the canvas when the timer fires, not
// when it was scheduled.
type Scheduler struct {
	ctx       context.Context
	store     *Store
	canvas    *Canvas
	selection *Selection
	feedback  *Feedback
	opts      options

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	pending bool
}

// NewScheduler creates a Scheduler. Deferred saves run with ctx.
func NewScheduler(ctx context.Context, store *Store, canvas *Canvas, selection *Selection, opts ...Option) *Scheduler {
	return &Scheduler{
		ctx:       ctx,
		store:     store,
		canvas:    canvas,
		selection: selection,
		feedback:  NewFeedback(opts...),
		opts:      buildOptions(opts),
	}
}

// SaveNow persists the current canvas. It does nothing and returns nil when
// no graph is selected, the canvas is not ready, or the canvas is bound to a
// different graph than the selected one. Success or failure is shown through
// Feedback only while the saved graph is still selected.
func (s *Scheduler) SaveNow(ctx context.Context) error {
	snap, reason := s.snapshot()
	if reason != nil {
		observability.LogSaveSkipped(s.opts.logger, reason.Error())
		return nil
	}

	s.feedback.Begin()
	err := s.store.Save(ctx, snap.GraphID, snap.Payload)

	if !s.selection.IsCurrent(snap.Token) {
		s.opts.logger.Debug("save finished after selection changed",
			zap.String("graph_id", snap.GraphID.String()),
		)
		return err
	}
	if err != nil {
		s.feedback.Fail(failureMessage(err))
		return err
	}
	s.feedback.Succeed()
	return nil
}

// ScheduleSave arms the debounce timer, replacing any pending one.
func (s *Scheduler) ScheduleSave() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.opts.metrics.RecordSaveCoalesced(s.ctx)
	}
	s.gen++
	gen := s.gen
	s.pending = true
	s.timer = s.opts.clock.AfterFunc(s.opts.autosaveDelay, func() { s.fire(gen) })
}

// Cancel drops a pending deferred save.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	s.pending = false
}

// Pending reports whether a deferred save is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// SaveInFlight reports whether a save call is outstanding.
func (s *Scheduler) SaveInFlight() bool {
	return s.store.Status(OpSave).Loading()
}

// Feedback returns the save indicator.
func (s *Scheduler) Feedback() *Feedback {
	return s.feedback
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.pending = false
	s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if err := s.SaveNow(s.ctx); err != nil {
		s.opts.logger.Warn("deferred save failed", zap.Error(err))
	}
}

var errSkipMismatch = errors.New("canvas bound to another graph")

func (s *Scheduler) snapshot() (Snapshot, error) {
	selected, ok := s.selection.Selected()
	if !ok {
		return Snapshot{}, ErrNoSelection
	}
	snap, ready := s.canvas.Snapshot()
	if !ready {
		return Snapshot{}, ErrCanvasNotReady
	}
	if snap.GraphID != selected {
		return Snapshot{}, errSkipMismatch
	}
	return snap, nil
}

func failureMessage(err error) string {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Message()
	}
	return err.Error()
}
