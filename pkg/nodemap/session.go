package nodemap

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Session wires together the selection, store, canvas, save scheduler and
// drop handling for one signed-in user. All selection changes should go
// through the Session so that switching graphs tears down the old canvas and
// loads the new one.
type Session struct {
	remote    Remote
	opts      options
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	selection *Selection
	store     *Store
	canvas    *Canvas
	scheduler *Scheduler
	dropper   *Instantiator
}

// NewSession creates a Session on top of remote. Deferred saves run with a
// context derived from ctx that is cancelled by Close.
func NewSession(ctx context.Context, remote Remote, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		remote: remote,
		opts:   buildOptions(opts),
		ctx:    ctx,
		cancel: cancel,
	}
	s.selection = NewSelection(opts...)
	s.store = NewStore(remote, s.selection, opts...)
	s.canvas = NewCanvas(s.selection, opts...)
	s.scheduler = NewScheduler(ctx, s.store, s.canvas, s.selection, opts...)
	s.dropper = NewInstantiator(s.canvas, s.scheduler, opts...)
	s.selection.Observe(s.teardown)
	return s
}

// teardown runs on every selection change, before any fetch for the new
// selection starts.
func (s *Session) teardown(tok Token) {
	s.scheduler.Cancel()
	s.scheduler.Feedback().Hide()
	s.canvas.Reset(tok)
	s.store.ClearPayload(tok)
}

// Selection returns the selection coordinator.
func (s *Session) Selection() *Selection { return s.selection }

// Store returns the entity store.
func (s *Session) Store() *Store { return s.store }

// Canvas returns the canvas runtime.
func (s *Session) Canvas() *Canvas { return s.canvas }

// Scheduler returns the save scheduler.
func (s *Session) Scheduler() *Scheduler { return s.scheduler }

// Start loads the graph list. Without a credential the session routes to the
// authentication view and returns nil. After a successful load an
// authentication view gives way to the creation view.
func (s *Session) Start(ctx context.Context) error {
	_, err := s.store.FetchAll(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		s.opts.logger.Info("no session, routing to authentication")
		s.selection.SetView(ViewAuthentication)
		return nil
	case err != nil:
		return err
	}
	if s.selection.View() == ViewAuthentication {
		s.selection.SetView(ViewCreation)
	}
	return nil
}

// Refresh reloads the graph list without changing the view.
func (s *Session) Refresh(ctx context.Context) ([]Graph, error) {
	return s.store.FetchAll(ctx)
}

// AutoSelect selects the initial graph of a freshly loaded list and switches
// to the map view. It does nothing, reporting false, when the list has not
// loaded successfully or is empty.
func (s *Session) AutoSelect(ctx context.Context) (ID, bool, error) {
	if s.store.Status(OpFetchAll).Status != StatusSucceeded {
		return "", false, nil
	}
	id, ok := InitialSelection(s.store.Sorted())
	if !ok {
		return "", false, nil
	}
	s.selection.SetView(ViewMap)
	return id, true, s.SelectGraph(ctx, id)
}

// SelectGraph selects id, tears down the current canvas and loads the new
// payload into it. Re-selecting the selected graph does nothing. The call
// returns ErrStaleResponse if another selection replaced this one before the
// payload arrived; callers may ignore it. Without a credential the view
// returns to authentication and an error wrapping ErrNoSession is returned.
func (s *Session) SelectGraph(ctx context.Context, id ID) error {
	tok, changed := s.selection.SelectGraph(id)
	if !changed || id.IsZero() {
		return nil
	}
	doc, err := s.store.FetchOne(ctx, tok)
	if errors.Is(err, ErrNoSession) {
		s.opts.logger.Info("no session, routing to authentication")
		s.selection.SetView(ViewAuthentication)
		return err
	}
	if err != nil {
		return err
	}
	return s.canvas.Load(tok, doc.Payload)
}

// ClearSelection deselects the current graph and tears down the canvas.
func (s *Session) ClearSelection() {
	s.selection.ClearSelection()
}

// SetView switches the active view.
func (s *Session) SetView(v View) {
	s.selection.SetView(v)
}

// Connect adds an edge and schedules a save.
func (s *Session) Connect(source, target string) (Edge, error) {
	e, err := s.canvas.Connect(source, target)
	if err != nil {
		return Edge{}, err
	}
	s.scheduler.ScheduleSave()
	return e, nil
}

// DragNode moves a node while a drag is in progress. It does not save.
func (s *Session) DragNode(id string, pos Position) error {
	return s.canvas.ApplyNodeChanges([]NodeChange{PositionChange(id, pos, true)})
}

// DragStop sets the final position of a dragged node and schedules a save.
func (s *Session) DragStop(id string, pos Position) error {
	if err := s.canvas.MoveNode(id, pos); err != nil {
		return err
	}
	s.scheduler.ScheduleSave()
	return nil
}

// ApplyNodeChanges forwards incremental node changes to the canvas. It does
// not save.
func (s *Session) ApplyNodeChanges(changes []NodeChange) error {
	return s.canvas.ApplyNodeChanges(changes)
}

// ApplyEdgeChanges forwards incremental edge changes to the canvas. It does
// not save.
func (s *Session) ApplyEdgeChanges(changes []EdgeChange) error {
	return s.canvas.ApplyEdgeChanges(changes)
}

// Drop handles a drop onto the canvas surface.
func (s *Session) Drop(data DataTransfer, client Point, bounds Rect) (Node, bool) {
	return s.dropper.Drop(data, client, bounds)
}

// SaveNow persists the canvas immediately. A pending deferred save stays
// armed.
func (s *Session) SaveNow(ctx context.Context) error {
	return s.scheduler.SaveNow(ctx)
}

// ToggleFavorite flips the favorite flag of graph id.
func (s *Session) ToggleFavorite(ctx context.Context, id ID) (bool, error) {
	return s.store.ToggleFavorite(ctx, id)
}

// CreateGraph creates a graph. The new graph is not selected.
func (s *Session) CreateGraph(ctx context.Context, draft GraphDraft) (Graph, error) {
	return s.store.Create(ctx, draft)
}

// CreateAgent creates an agent definition.
func (s *Session) CreateAgent(ctx context.Context, draft AgentDraft) (Agent, error) {
	return s.store.CreateAgent(ctx, draft)
}

// Logout discards the credential, drops every cached entity and returns to
// the authentication view. Local state is reset even if the remote logout
// fails.
func (s *Session) Logout(ctx context.Context) error {
	var err error
	if ender, ok := s.remote.(SessionEnder); ok {
		err = ender.Logout(ctx)
		if err != nil {
			s.opts.logger.Warn("remote logout failed", zap.Error(err))
		}
	}
	s.reset()
	s.opts.publish(EventSessionEnded, nil)
	return err
}

func (s *Session) reset() {
	s.scheduler.Cancel()
	s.scheduler.Feedback().Hide()
	s.store.Reset()
	s.selection.Reset()
}

// Close cancels pending saves and stops deferred work. The session must not
// be used afterwards.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.scheduler.Cancel()
		s.scheduler.Feedback().Hide()
		s.cancel()
	})
	return nil
}
