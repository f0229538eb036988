// Package storage persists users, graphs and agents for the nodemap server.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Repository persists server-side entities. Graph and agent access is always
// scoped to the owning user. Implementations must be safe for concurrent use.
type Repository interface {
	// CreateUser stores u and assigns its ID and CreatedAt.
	// Returns ErrConflict if the username or email is taken.
	CreateUser(ctx context.Context, u *User) error

	// FindUser looks a user up by username or email.
	// Returns ErrNotFound if no user matches.
	FindUser(ctx context.Context, login string) (*User, error)

	// CreateGraph stores g and assigns its ID and CreatedAt. Empty payloads
	// are stored as empty lists. Returns ErrConflict if the owner already
	// has a graph with the same name.
	CreateGraph(ctx context.Context, g *GraphRecord) error

	// ListGraphs returns the user's graphs in creation order, without
	// payloads.
	ListGraphs(ctx context.Context, userID int64) ([]GraphRecord, error)

	// GetGraph returns one of the user's graphs with its payload.
	// Returns ErrNotFound if the graph does not exist or belongs to
	// someone else.
	GetGraph(ctx context.Context, userID, graphID int64) (*GraphRecord, error)

	// SavePayload replaces the nodes and edges of one of the user's graphs.
	SavePayload(ctx context.Context, userID, graphID int64, nodes, edges json.RawMessage) error

	// ToggleFavorite flips the favorite flag and returns the new value.
	ToggleFavorite(ctx context.Context, userID, graphID int64) (bool, error)

	// CreateAgent stores a and assigns its ID and CreatedAt.
	// Returns ErrConflict if the owner already has an agent with that name.
	CreateAgent(ctx context.Context, a *AgentRecord) error

	// ListAgents returns the user's agents in creation order.
	ListAgents(ctx context.Context, userID int64) ([]AgentRecord, error)

	// Close releases any resources.
	Close() error
}

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// GraphRecord is a persisted graph. Nodes and Edges hold JSON arrays.
type GraphRecord struct {
	ID          int64
	UserID      int64
	Name        string
	Goal        string
	Description string
	IsFavorite  bool
	CreatedAt   time.Time
	Nodes       json.RawMessage
	Edges       json.RawMessage
}

// AgentRecord is a persisted agent definition.
type AgentRecord struct {
	ID           int64
	UserID       int64
	Name         string
	Type         string
	Model        string
	SystemPrompt string
	CreatedAt    time.Time
}

// Sentinel errors for repository operations.
var (
	// ErrNotFound indicates the entity doesn't exist for this user.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness constraint was violated.
	ErrConflict = errors.New("already exists")

	// ErrStoreClosed indicates the repository has been closed.
	ErrStoreClosed = errors.New("store closed")
)

var emptyList = json.RawMessage("[]")

func listOrEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || string(raw) == "null" {
		return emptyList
	}
	out := make(json.RawMessage, len(raw))
	copy(out, raw)
	return out
}
