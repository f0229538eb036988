package nodemap

import "context"

// Remote is the persistence boundary. Implementations must be safe for
// concurrent use and must return errors wrapping ErrNoSession when no
// credential is available.
//
// The HTTP implementation lives in the remote subpackage.
type Remote interface {
	ListGraphs(ctx context.Context) ([]Graph, error)
	FetchGraph(ctx context.Context, id ID) (GraphDocument, error)
	CreateGraph(ctx context.Context, draft GraphDraft) (Graph, error)
	SaveGraph(ctx context.Context, id ID, payload Payload) error
	ToggleFavorite(ctx context.Context, id ID) (FavoriteResult, error)
	CreateAgent(ctx context.Context, draft AgentDraft) (Agent, error)
}

// SessionEnder is implemented by remotes that hold a credential which
// should be discarded on logout.
type SessionEnder interface {
	Logout(ctx context.Context) error
}
