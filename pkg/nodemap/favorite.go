package nodemap

import "context"

// ToggleFavorite asks the remote to flip the favorite flag of graph id and
// writes the value the remote returns into the matching summary. The local
// flag is never flipped optimistically, so a failed toggle leaves the list
// exactly as it was.
func (s *Store) ToggleFavorite(ctx context.Context, id ID) (bool, error) {
	if id.IsZero() {
		return false, opError(OpToggleFavorite, "", ErrNoSelection)
	}

	s.mu.Lock()
	s.favPending[id]++
	s.status.begin(OpToggleFavorite)
	s.mu.Unlock()

	done := s.track(OpToggleFavorite, id)
	res, err := s.remote.ToggleFavorite(ctx, id)
	done(ctx, err)

	s.mu.Lock()
	if s.favPending[id] <= 1 {
		delete(s.favPending, id)
	} else {
		s.favPending[id]--
	}
	if err != nil {
		s.status.fail(OpToggleFavorite, err)
		s.mu.Unlock()
		return false, opError(OpToggleFavorite, id, err)
	}
	target := res.GraphID
	if target.IsZero() {
		target = id
	}
	for i := range s.graphs {
		if s.graphs[i].ID == target {
			s.graphs[i].IsFavorite = res.IsFavorite
			break
		}
	}
	if s.doc != nil && s.doc.ID == target {
		s.doc.IsFavorite = res.IsFavorite
	}
	s.status.succeed(OpToggleFavorite)
	s.mu.Unlock()

	s.opts.publish(EventFavoriteToggled, FavoriteResult{GraphID: target, IsFavorite: res.IsFavorite})
	return res.IsFavorite, nil
}

// FavoritePending reports whether a toggle for id is in flight. Callers use
// it to disable the control for that graph.
func (s *Store) FavoritePending(id ID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favPending[id] > 0
}
