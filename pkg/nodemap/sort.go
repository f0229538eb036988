package nodemap

import "slices"

// SortGraphs returns a copy of graphs ordered for display: favorites first,
// then by creation time, newest first. Ties keep their input order.
func SortGraphs(graphs []Graph) []Graph {
	out := cloneGraphs(graphs)
	slices.SortStableFunc(out, func(a, b Graph) int {
		if a.IsFavorite != b.IsFavorite {
			if a.IsFavorite {
				return -1
			}
			return 1
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}

// InitialSelection picks the graph to select when a list first loads: the
// first favorite in sorted order, else the first graph. It reports false for
// an empty list.
func InitialSelection(sorted []Graph) (ID, bool) {
	for _, g := range sorted {
		if g.IsFavorite {
			return g.ID, true
		}
	}
	if len(sorted) == 0 {
		return "", false
	}
	return sorted[0].ID, true
}
