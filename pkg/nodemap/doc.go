// Package nodemap provides the client-side state engine for a node-graph
// editor backed by a remote persistence service.
//
// A Session ties together five components:
//
//   - Selection tracks which graph is selected and which view is active.
//   - Store caches graph summaries and the payload of the selected graph,
//     with a per-operation status for every remote call.
//   - Canvas holds the live node and edge collections bound to one graph.
//   - Scheduler debounces saves and drives transient save feedback.
//   - Instantiator turns drag-and-drop agent descriptors into canvas nodes.
//
// Basic usage:
//
//	client := remote.New("http://127.0.0.1:5001", remote.WithCredentials(creds))
//	sess := nodemap.NewSession(ctx, client, nodemap.WithLogger(logger))
//	defer sess.Close()
//
//	if err := sess.Start(ctx); err != nil {
//	    return err
//	}
//	if _, _, err := sess.AutoSelect(ctx); err != nil {
//	    return err
//	}
//	sess.Connect("dndnode_0", "dndnode_1") // schedules a debounced save
//
// # Concurrency
//
// Every component is safe for concurrent use. Remote calls are made outside
// of any lock and block the calling goroutine; callers choose their own
// concurrency. A response that arrives after the selection changed is
// discarded and reported as ErrStaleResponse.
//
// # Persistence
//
// Graph edits never persist on their own. Connecting nodes, finishing a drag
// and dropping an agent schedule a trailing-edge debounced save; SaveNow
// persists immediately and cancels nothing. A save always captures the canvas
// as it is when the save runs.
package nodemap
