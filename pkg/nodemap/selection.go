package nodemap

import (
	"sync"

	"go.uber.org/zap"
)

// View is the active top-level screen.
type View string

// Views. ViewAuthentication is the entry view.
const (
	ViewAuthentication View = "Authentication"
	ViewCreation       View = "Creation"
	ViewMap            View = "map"
	ViewChat           View = "chat"
)

// Token identifies one selection epoch. Remote results carry the token they
// were issued under and are applied only while it is still current.
type Token struct {
	GraphID ID
	epoch   uint64
}

// SelectionState is a snapshot of the selection.
type SelectionState struct {
	SelectedGraphID ID   `json:"selected_graph_id"`
	CurrentView     View `json:"current_view"`
}

// Selection is the single source of truth for the selected graph and the
// active view. Every change of the selected id starts a new epoch.
type Selection struct {
	opts options

	mu        sync.RWMutex
	selected  ID
	view      View
	epoch     uint64
	observers []func(Token)
}

// NewSelection creates a Selection in the initial state: nothing selected,
// authentication view.
func NewSelection(opts ...Option) *Selection {
	return &Selection{
		opts: buildOptions(opts),
		view: ViewAuthentication,
	}
}

// SelectGraph makes id the selected graph. Selecting the graph that is
// already selected changes nothing and reports changed=false. An empty id
// clears the selection.
func (s *Selection) SelectGraph(id ID) (tok Token, changed bool) {
	s.mu.Lock()
	if s.selected == id {
		tok = Token{GraphID: s.selected, epoch: s.epoch}
		s.mu.Unlock()
		return tok, false
	}
	prev := s.selected
	s.selected = id
	s.epoch++
	tok = Token{GraphID: id, epoch: s.epoch}
	observers := s.observers
	s.mu.Unlock()

	s.opts.logger.Debug("selection changed",
		zap.String("previous", prev.String()),
		zap.String("graph_id", id.String()),
	)
	for _, fn := range observers {
		fn(tok)
	}
	s.opts.publish(EventSelectionChanged, SelectionChange{Previous: prev, Current: id})
	return tok, true
}

// ClearSelection deselects the current graph.
func (s *Selection) ClearSelection() Token {
	tok, _ := s.SelectGraph("")
	return tok
}

// SetView switches the active view. It never touches the selected id.
func (s *Selection) SetView(v View) {
	s.mu.Lock()
	if s.view == v {
		s.mu.Unlock()
		return
	}
	s.view = v
	s.mu.Unlock()
	s.opts.publish(EventViewChanged, v)
}

// Selected returns the selected graph id.
func (s *Selection) Selected() (ID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected, !s.selected.IsZero()
}

// View returns the active view.
func (s *Selection) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// State returns a snapshot of the selection.
func (s *Selection) State() SelectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SelectionState{SelectedGraphID: s.selected, CurrentView: s.view}
}

// Current returns the token of the current epoch.
func (s *Selection) Current() Token {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Token{GraphID: s.selected, epoch: s.epoch}
}

// IsCurrent reports whether tok belongs to the current epoch.
func (s *Selection) IsCurrent(tok Token) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tok.epoch == s.epoch && tok.GraphID == s.selected
}

// Observe registers fn to run synchronously after every change of the
// selected id, with the token of the new epoch. Observers must not call back
// into SelectGraph.
func (s *Selection) Observe(fn func(Token)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers[:len(s.observers):len(s.observers)], fn)
}

// Reset returns to the initial state and starts a new epoch, so every
// in-flight result is discarded.
func (s *Selection) Reset() Token {
	s.mu.Lock()
	prev := s.selected
	s.selected = ""
	s.view = ViewAuthentication
	s.epoch++
	tok := Token{epoch: s.epoch}
	observers := s.observers
	s.mu.Unlock()

	for _, fn := range observers {
		fn(tok)
	}
	if !prev.IsZero() {
		s.opts.publish(EventSelectionChanged, SelectionChange{Previous: prev})
	}
	return tok
}
