package nodemap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(remote Remote) (*Store, *Selection) {
	sel := NewSelection()
	return NewStore(remote, sel), sel
}

func TestStore_InitialStatuses(t *testing.T) {
	store, _ := newTestStore(newFakeRemote())

	statuses := store.Statuses()
	require.Len(t, statuses, len(Operations))
	for _, op := range Operations {
		assert.Equal(t, StatusIdle, statuses[op].Status, op)
	}
	assert.Empty(t, store.Graphs())
	_, ok := store.Payload()
	assert.False(t, ok)
}

func TestStore_FetchAll(t *testing.T) {
	store, _ := newTestStore(newFakeRemote(sampleGraphs()...))

	graphs, err := store.FetchAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ID{"1", "2", "3"}, ids(graphs))
	assert.Equal(t, []ID{"3", "2", "1"}, ids(store.Sorted()))
	assert.Equal(t, StatusSucceeded, store.Status(OpFetchAll).Status)

	g, ok := store.Graph("2")
	require.True(t, ok)
	assert.Equal(t, "Newest", g.Name)
}

func TestStore_FetchAllFailureClearsList(t *testing.T) {
	remote := newFakeRemote(sampleGraphs()...)
	store, _ := newTestStore(remote)
	_, err := store.FetchAll(context.Background())
	require.NoError(t, err)

	remote.listErr = errors.New("Fetching nodemaps failed. Status: 500")
	_, err = store.FetchAll(context.Background())
	require.Error(t, err)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, OpFetchAll, opErr.Op)
	assert.Empty(t, store.Graphs())
	assert.Equal(t, OperationStatus{Status: StatusFailed, Err: "Fetching nodemaps failed. Status: 500"}, store.Status(OpFetchAll))
}

func TestStore_FetchAllNoSession(t *testing.T) {
	remote := newFakeRemote(sampleGraphs()...)
	remote.listErr = ErrNoSession
	store, _ := newTestStore(remote)

	_, err := store.FetchAll(context.Background())
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, StatusIdle, store.Status(OpFetchAll).Status)
	assert.Empty(t, store.Graphs())
}

func TestStore_FetchOneNoSession(t *testing.T) {
	remote := newFakeRemote(sampleGraphs()...)
	remote.fetchErr = ErrNoSession
	store, sel := newTestStore(remote)
	tok, _ := sel.SelectGraph("1")

	_, err := store.FetchOne(context.Background(), tok)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Equal(t, OperationStatus{Status: StatusIdle}, store.Status(OpFetchOne))
	_, ok := store.Payload()
	assert.False(t, ok)
}

func TestStore_FetchAllDiscardsOlderResponse(t *testing.T) {
	first := newGate()
	remote := newFakeRemote()
	remote.listHook = func(call int) ([]Graph, error) {
		if call == 1 {
			first.wait()
			return []Graph{{ID: "old"}}, nil
		}
		return []Graph{{ID: "new"}}, nil
	}
	store, _ := newTestStore(remote)

	errCh := make(chan error, 1)
	go func() {
		_, err := store.FetchAll(context.Background())
		errCh <- err
	}()
	first.awaitEntered(t)

	graphs, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ID{"new"}, ids(graphs))

	first.open()
	assert.ErrorIs(t, <-errCh, ErrStaleResponse)
	assert.Equal(t, []ID{"new"}, ids(store.Graphs()))
	assert.Equal(t, StatusSucceeded, store.Status(OpFetchAll).Status)
}

func TestStore_FetchOne(t *testing.T) {
	remote := newFakeRemote(sampleGraphs()...)
	remote.setPayload("2", samplePayload())
	store, sel := newTestStore(remote)

	tok, _ := sel.SelectGraph("2")
	doc, err := store.FetchOne(context.Background(), tok)
	require.NoError(t, err)

	assert.Equal(t, ID("2"), doc.ID)
	assert.Len(t, doc.Payload.Nodes, 2)
	assert.Equal(t, StatusSucceeded, store.Status(OpFetchOne).Status)

	resident, ok := store.Payload()
	require.True(t, ok)
	assert.Equal(t, doc, resident)

	// Mutating the returned document must not reach the store.
	doc.Payload.Nodes[0].ID = "changed"
	resident, _ = store.Payload()
	assert.Equal(t, "dndnode_0", resident.Payload.Nodes[0].ID)
}

func TestStore_FetchOneEmptyPayload(t *testing.T) {
	store, sel := newTestStore(newFakeRemote())
	tok, _ := sel.SelectGraph("9")

	doc, err := store.FetchOne(context.Background(), tok)
	require.NoError(t, err)
	assert.NotNil(t, doc.Payload.Nodes)
	assert.NotNil(t, doc.Payload.Edges)
}

func TestStore_FetchOneResetsSaveStatus(t *testing.T) {
	remote := newFakeRemote()
	remote.saveErr = errBoom
	store, sel := newTestStore(remote)

	require.Error(t, store.Save(context.Background(), "1", Payload{}))
	require.Equal(t, StatusFailed, store.Status(OpSave).Status)

	tok, _ := sel.SelectGraph("1")
	_, err := store.FetchOne(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, store.Status(OpSave).Status)
}

func TestStore_FetchOneFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.fetchErr = errBoom
	store, sel := newTestStore(remote)

	tok, _ := sel.SelectGraph("1")
	_, err := store.FetchOne(context.Background(), tok)
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, OperationStatus{Status: StatusFailed, Err: "boom"}, store.Status(OpFetchOne))
	_, ok := store.Payload()
	assert.False(t, ok)
}

func TestStore_FetchOneNoSelection(t *testing.T) {
	store, sel := newTestStore(newFakeRemote())
	_, err := store.FetchOne(context.Background(), sel.Current())
	assert.ErrorIs(t, err, ErrNoSelection)
}

func TestStore_FetchOneDiscardsStale(t *testing.T) {
	g := newGate()
	remote := newFakeRemote()
	remote.setPayload("a", samplePayload())
	remote.fetchHook = func(id ID) (GraphDocument, error) {
		if id == "a" {
			g.wait()
			return GraphDocument{Graph: Graph{ID: "a"}, Payload: samplePayload()}, nil
		}
		return GraphDocument{Graph: Graph{ID: id}, Payload: Payload{Nodes: []Node{agentNode("dndnode_9", 0, 0)}}}, nil
	}
	store, sel := newTestStore(remote)

	tokA, _ := sel.SelectGraph("a")
	errCh := make(chan error, 1)
	go func() {
		_, err := store.FetchOne(context.Background(), tokA)
		errCh <- err
	}()
	g.awaitEntered(t)

	tokB, _ := sel.SelectGraph("b")
	docB, err := store.FetchOne(context.Background(), tokB)
	require.NoError(t, err)

	g.open()
	assert.ErrorIs(t, <-errCh, ErrStaleResponse)

	resident, ok := store.Payload()
	require.True(t, ok)
	assert.Equal(t, docB, resident)
	assert.Equal(t, StatusSucceeded, store.Status(OpFetchOne).Status)
}

func TestStore_FetchOneRejectsStaleToken(t *testing.T) {
	remote := newFakeRemote()
	store, sel := newTestStore(remote)

	tok, _ := sel.SelectGraph("a")
	sel.SelectGraph("b")

	_, err := store.FetchOne(context.Background(), tok)
	assert.ErrorIs(t, err, ErrStaleResponse)
	assert.Empty(t, remote.fetched())
	assert.Equal(t, StatusIdle, store.Status(OpFetchOne).Status)
}

func TestStore_Create(t *testing.T) {
	store, _ := newTestStore(newFakeRemote(sampleGraphs()...))
	_, err := store.FetchAll(context.Background())
	require.NoError(t, err)

	g, err := store.Create(context.Background(), GraphDraft{Name: "New", Goal: "g", Description: "d"})
	require.NoError(t, err)

	assert.False(t, g.ID.IsZero())
	assert.Len(t, store.Graphs(), 4)
	assert.Equal(t, StatusSucceeded, store.Status(OpCreate).Status)
}

func TestStore_CreateFailure(t *testing.T) {
	remote := newFakeRemote()
	remote.createErr = errors.New("Nodemap with this name already exists")
	store, _ := newTestStore(remote)

	_, err := store.Create(context.Background(), GraphDraft{Name: "dup", Goal: "g", Description: "d"})
	require.Error(t, err)
	assert.Empty(t, store.Graphs())
	assert.Equal(t, "Nodemap with this name already exists", store.Status(OpCreate).Err)
}

func TestStore_SaveOnlyTouchesSaveStatus(t *testing.T) {
	remote := newFakeRemote(sampleGraphs()...)
	store, _ := newTestStore(remote)
	_, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	before := store.Graphs()

	require.NoError(t, store.Save(context.Background(), "1", samplePayload()))

	assert.Equal(t, before, store.Graphs())
	assert.Equal(t, StatusSucceeded, store.Status(OpSave).Status)
	assert.Equal(t, StatusIdle, store.Status(OpFetchOne).Status)
	saves := remote.savedPayloads()
	require.Len(t, saves, 1)
	assert.Equal(t, ID("1"), saves[0].ID)
	assert.Equal(t, samplePayload(), saves[0].Payload)
}

func TestStore_SaveWithoutID(t *testing.T) {
	store, _ := newTestStore(newFakeRemote())
	assert.ErrorIs(t, store.Save(context.Background(), "", Payload{}), ErrNoSelection)
}

func TestStore_CreateAgent(t *testing.T) {
	store, _ := newTestStore(newFakeRemote())

	a, err := store.CreateAgent(context.Background(), AgentDraft{Name: "Critic", Type: "reviewer", Model: "m", SystemPrompt: "p"})
	require.NoError(t, err)

	assert.Equal(t, "Critic", a.Name)
	assert.Equal(t, []Agent{a}, store.Agents())
	assert.Equal(t, StatusSucceeded, store.Status(OpCreateAgent).Status)
}

func TestStore_ClearPayloadIgnoresStaleToken(t *testing.T) {
	remote := newFakeRemote()
	store, sel := newTestStore(remote)

	old, _ := sel.SelectGraph("a")
	tok, _ := sel.SelectGraph("b")
	_, err := store.FetchOne(context.Background(), tok)
	require.NoError(t, err)

	store.ClearPayload(old)
	_, ok := store.Payload()
	assert.True(t, ok)

	store.ClearPayload(tok)
	_, ok = store.Payload()
	assert.False(t, ok)
}

func TestStore_Reset(t *testing.T) {
	store, sel := newTestStore(newFakeRemote(sampleGraphs()...))
	_, err := store.FetchAll(context.Background())
	require.NoError(t, err)
	tok, _ := sel.SelectGraph("1")
	_, err = store.FetchOne(context.Background(), tok)
	require.NoError(t, err)

	store.Reset()

	assert.Empty(t, store.Graphs())
	_, ok := store.Payload()
	assert.False(t, ok)
	assert.Equal(t, StatusIdle, store.Status(OpFetchAll).Status)
}
