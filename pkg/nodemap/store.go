package nodemap

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
)

// Store caches graph summaries, the payload of the selected graph and the
// status of every remote operation. It never issues remote calls on its own
// and never holds its lock across one.
type Store struct {
	remote    Remote
	selection *Selection
	opts      options

	mu          sync.RWMutex
	graphs      []Graph
	agents      []Agent
	doc         *GraphDocument
	status      statusBoard
	favPending  map[ID]int
	listVersion uint64
}

// NewStore creates a Store on top of remote. Fetch-one results are checked
// against selection before they are applied.
func NewStore(remote Remote, selection *Selection, opts ...Option) *Store {
	return &Store{
		remote:     remote,
		selection:  selection,
		opts:       buildOptions(opts),
		graphs:     []Graph{},
		status:     newStatusBoard(),
		favPending: make(map[ID]int),
	}
}

// FetchAll replaces the cached summary list with the remote one. On failure
// the list is cleared. Without a credential the list is cleared, the status
// returns to idle and an error wrapping ErrNoSession is returned.
func (s *Store) FetchAll(ctx context.Context) ([]Graph, error) {
	s.mu.Lock()
	s.listVersion++
	version := s.listVersion
	s.status.begin(OpFetchAll)
	s.mu.Unlock()

	done := s.track(OpFetchAll, "")
	graphs, err := s.remote.ListGraphs(ctx)
	done(ctx, err)

	s.mu.Lock()
	if version != s.listVersion {
		s.mu.Unlock()
		s.discardStale(ctx, OpFetchAll, "")
		return nil, ErrStaleResponse
	}
	switch {
	case errors.Is(err, ErrNoSession):
		s.graphs = []Graph{}
		s.status.idle(OpFetchAll)
	case err != nil:
		s.graphs = []Graph{}
		s.status.fail(OpFetchAll, err)
	default:
		s.graphs = cloneGraphs(graphs)
		s.status.succeed(OpFetchAll)
	}
	out := cloneGraphs(s.graphs)
	s.mu.Unlock()

	if err != nil {
		return nil, opError(OpFetchAll, "", err)
	}
	s.opts.publish(EventGraphsLoaded, out)
	return out, nil
}

// FetchOne loads the payload of the graph identified by tok. The resident
// payload is cleared and the save status reset as soon as the call begins.
// A result that arrives after the selection moved on is discarded and
// ErrStaleResponse is returned without touching any status. Without a
// credential the status returns to idle and an error wrapping ErrNoSession
// is returned.
func (s *Store) FetchOne(ctx context.Context, tok Token) (GraphDocument, error) {
	if tok.GraphID.IsZero() {
		return GraphDocument{}, opError(OpFetchOne, "", ErrNoSelection)
	}

	s.mu.Lock()
	if !s.selection.IsCurrent(tok) {
		s.mu.Unlock()
		return GraphDocument{}, ErrStaleResponse
	}
	s.doc = nil
	s.status.begin(OpFetchOne)
	s.status.idle(OpSave)
	s.mu.Unlock()

	done := s.track(OpFetchOne, tok.GraphID)
	doc, err := s.remote.FetchGraph(ctx, tok.GraphID)
	done(ctx, err)

	s.mu.Lock()
	if !s.selection.IsCurrent(tok) {
		s.mu.Unlock()
		s.discardStale(ctx, OpFetchOne, tok.GraphID)
		return GraphDocument{}, ErrStaleResponse
	}
	if err != nil {
		s.doc = nil
		if errors.Is(err, ErrNoSession) {
			s.status.idle(OpFetchOne)
		} else {
			s.status.fail(OpFetchOne, err)
		}
		s.mu.Unlock()
		return GraphDocument{}, opError(OpFetchOne, tok.GraphID, err)
	}
	doc.Payload = doc.Payload.Clone()
	if doc.ID.IsZero() {
		doc.ID = tok.GraphID
	}
	stored := doc
	stored.Payload = doc.Payload.Clone()
	s.doc = &stored
	s.status.succeed(OpFetchOne)
	s.mu.Unlock()

	s.opts.publish(EventPayloadLoaded, doc.ID)
	return doc, nil
}

// Create persists a new graph and appends its summary to the list.
func (s *Store) Create(ctx context.Context, draft GraphDraft) (Graph, error) {
	s.mu.Lock()
	s.status.begin(OpCreate)
	s.mu.Unlock()

	done := s.track(OpCreate, "")
	g, err := s.remote.CreateGraph(ctx, draft)
	done(ctx, err)

	s.mu.Lock()
	if err != nil {
		s.status.fail(OpCreate, err)
		s.mu.Unlock()
		return Graph{}, opError(OpCreate, "", err)
	}
	s.graphs = append(s.graphs, g)
	s.status.succeed(OpCreate)
	s.mu.Unlock()

	s.opts.publish(EventGraphCreated, g)
	return g, nil
}

// Save persists payload for graph id. It only changes the save status.
func (s *Store) Save(ctx context.Context, id ID, payload Payload) error {
	if id.IsZero() {
		return opError(OpSave, "", ErrNoSelection)
	}
	s.mu.Lock()
	s.status.begin(OpSave)
	s.mu.Unlock()

	done := s.track(OpSave, id)
	err := s.remote.SaveGraph(ctx, id, payload.Clone())
	done(ctx, err)

	s.mu.Lock()
	if err != nil {
		s.status.fail(OpSave, err)
	} else {
		s.status.succeed(OpSave)
	}
	s.mu.Unlock()

	if err != nil {
		s.opts.publish(EventSaveFailed, id)
		return opError(OpSave, id, err)
	}
	s.opts.publish(EventGraphSaved, id)
	return nil
}

// CreateAgent persists a new agent definition.
func (s *Store) CreateAgent(ctx context.Context, draft AgentDraft) (Agent, error) {
	s.mu.Lock()
	s.status.begin(OpCreateAgent)
	s.mu.Unlock()

	done := s.track(OpCreateAgent, "")
	a, err := s.remote.CreateAgent(ctx, draft)
	done(ctx, err)

	s.mu.Lock()
	if err != nil {
		s.status.fail(OpCreateAgent, err)
		s.mu.Unlock()
		return Agent{}, opError(OpCreateAgent, "", err)
	}
	s.agents = append(s.agents, a)
	s.status.succeed(OpCreateAgent)
	s.mu.Unlock()

	s.opts.publish(EventAgentCreated, a)
	return a, nil
}

// Graphs returns the cached summaries in remote order.
func (s *Store) Graphs() []Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneGraphs(s.graphs)
}

// Sorted returns the cached summaries ordered for display.
func (s *Store) Sorted() []Graph {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SortGraphs(s.graphs)
}

// Graph returns the cached summary for id.
func (s *Store) Graph(id ID) (Graph, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, g := range s.graphs {
		if g.ID == id {
			return g, true
		}
	}
	return Graph{}, false
}

// Agents returns the agents created during this session.
func (s *Store) Agents() []Agent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Agent, len(s.agents))
	copy(out, s.agents)
	return out
}

// Payload returns the resident payload document, if one is loaded.
func (s *Store) Payload() (GraphDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return GraphDocument{}, false
	}
	doc := *s.doc
	doc.Payload = doc.Payload.Clone()
	return doc, true
}

// Status returns the status of op.
func (s *Store) Status(op Operation) OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status[op]
}

// Statuses returns a copy of every operation status.
func (s *Store) Statuses() map[Operation]OperationStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[Operation]OperationStatus, len(s.status))
	for op, st := range s.status {
		out[op] = st
	}
	return out
}

// ClearPayload drops the resident payload if tok is still current.
func (s *Store) ClearPayload(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selection.IsCurrent(tok) {
		s.doc = nil
	}
}

// Reset returns the store to its initial state.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.graphs = []Graph{}
	s.agents = nil
	s.doc = nil
	s.status = newStatusBoard()
	s.favPending = make(map[ID]int)
	s.listVersion++
}

// track logs the start of op and returns a func that records its outcome.
func (s *Store) track(op Operation, id ID) func(context.Context, error) {
	observability.LogOperationStart(s.opts.logger, string(op), id.String())
	start := time.Now()
	return func(ctx context.Context, err error) {
		elapsed := time.Since(start)
		s.opts.metrics.RecordOperation(ctx, string(op), elapsed, err)
		ms := float64(elapsed.Microseconds()) / 1000
		if err != nil && !errors.Is(err, ErrNoSession) {
			observability.LogOperationError(s.opts.logger, string(op), id.String(), err, ms)
			return
		}
		if err != nil {
			s.opts.logger.Info("no session", zap.String("op", string(op)))
			return
		}
		observability.LogOperationComplete(s.opts.logger, string(op), id.String(), ms)
	}
}

func (s *Store) discardStale(ctx context.Context, op Operation, id ID) {
	s.opts.metrics.RecordStaleDiscard(ctx, string(op))
	observability.LogStaleDiscard(s.opts.logger, string(op), id.String())
}
