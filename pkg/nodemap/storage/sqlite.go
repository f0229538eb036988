package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists entities to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE COLLATE NOCASE,
	password_hash TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS nodemaps (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	goal TEXT NOT NULL,
	description TEXT NOT NULL,
	is_favorite INTEGER NOT NULL DEFAULT 0,
	nodes_data TEXT NOT NULL DEFAULT '[]',
	edges_data TEXT NOT NULL DEFAULT '[]',
	created_at TEXT NOT NULL,
	UNIQUE (user_id, name)
);
CREATE TABLE IF NOT EXISTS agents (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL REFERENCES users(id),
	name TEXT NOT NULL,
	type TEXT NOT NULL,
	model TEXT NOT NULL,
	system_prompt TEXT NOT NULL,
	created_at TEXT NOT NULL,
	UNIQUE (user_id, name)
);
CREATE INDEX IF NOT EXISTS idx_nodemaps_user_id ON nodemaps(user_id);
CREATE INDEX IF NOT EXISTS idx_agents_user_id ON agents(user_id);
`

// NewSQLiteStore opens or creates the database at path.
// The path should be a file path (e.g., "./nodemap.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Every :memory: connection is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser implements Repository.
func (s *SQLiteStore) CreateUser(ctx context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	created := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`, u.Username, u.Email, u.PasswordHash, created)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if u.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return nil
}

// FindUser implements Repository.
func (s *SQLiteStore) FindUser(ctx context.Context, login string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	var u User
	var created string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, email, password_hash, created_at
		FROM users
		WHERE username = ? OR email = ?
		LIMIT 1
	`, login, login).Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	u.CreatedAt = parseTime(created)
	return &u, nil
}

// CreateGraph implements Repository.
func (s *SQLiteStore) CreateGraph(ctx context.Context, g *GraphRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	created := now()
	g.Nodes = listOrEmpty(g.Nodes)
	g.Edges = listOrEmpty(g.Edges)
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO nodemaps (user_id, name, goal, description, is_favorite, nodes_data, edges_data, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, g.UserID, g.Name, g.Goal, g.Description, g.IsFavorite, string(g.Nodes), string(g.Edges), created)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create graph: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create graph: %w", err)
	}
	g.CreatedAt = parseTime(created)
	return nil
}

// ListGraphs implements Repository.
func (s *SQLiteStore) ListGraphs(ctx context.Context, userID int64) ([]GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, goal, description, is_favorite, created_at
		FROM nodemaps
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	defer rows.Close()

	out := []GraphRecord{}
	for rows.Next() {
		g := GraphRecord{UserID: userID}
		var created string
		if err := rows.Scan(&g.ID, &g.Name, &g.Goal, &g.Description, &g.IsFavorite, &created); err != nil {
			return nil, fmt.Errorf("scan graph: %w", err)
		}
		g.CreatedAt = parseTime(created)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate graphs: %w", err)
	}
	return out, nil
}

// GetGraph implements Repository.
func (s *SQLiteStore) GetGraph(ctx context.Context, userID, graphID int64) (*GraphRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	g := GraphRecord{UserID: userID}
	var created, nodes, edges string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, goal, description, is_favorite, nodes_data, edges_data, created_at
		FROM nodemaps
		WHERE id = ? AND user_id = ?
	`, graphID, userID).Scan(&g.ID, &g.Name, &g.Goal, &g.Description, &g.IsFavorite, &nodes, &edges, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get graph: %w", err)
	}
	g.Nodes = listOrEmpty(json.RawMessage(nodes))
	g.Edges = listOrEmpty(json.RawMessage(edges))
	g.CreatedAt = parseTime(created)
	return &g, nil
}

// SavePayload implements Repository.
func (s *SQLiteStore) SavePayload(ctx context.Context, userID, graphID int64, nodes, edges json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE nodemaps SET nodes_data = ?, edges_data = ?
		WHERE id = ? AND user_id = ?
	`, string(listOrEmpty(nodes)), string(listOrEmpty(edges)), graphID, userID)
	if err != nil {
		return fmt.Errorf("save payload: %w", err)
	}
	return requireRow(res)
}

// ToggleFavorite implements Repository.
func (s *SQLiteStore) ToggleFavorite(ctx context.Context, userID, graphID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrStoreClosed
	}

	var fav bool
	err := s.db.QueryRowContext(ctx, `
		UPDATE nodemaps SET is_favorite = NOT is_favorite
		WHERE id = ? AND user_id = ?
		RETURNING is_favorite
	`, graphID, userID).Scan(&fav)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("toggle favorite: %w", err)
	}
	return fav, nil
}

// CreateAgent implements Repository.
func (s *SQLiteStore) CreateAgent(ctx context.Context, a *AgentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	created := now()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO agents (user_id, name, type, model, system_prompt, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.UserID, a.Name, a.Type, a.Model, a.SystemPrompt, created)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("create agent: %w", err)
	}
	a.CreatedAt = parseTime(created)
	return nil
}

// ListAgents implements Repository.
func (s *SQLiteStore) ListAgents(ctx context.Context, userID int64) ([]AgentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, type, model, system_prompt, created_at
		FROM agents
		WHERE user_id = ?
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()

	out := []AgentRecord{}
	for rows.Next() {
		a := AgentRecord{UserID: userID}
		var created string
		if err := rows.Scan(&a.ID, &a.Name, &a.Type, &a.Model, &a.SystemPrompt, &created); err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		a.CreatedAt = parseTime(created)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return out, nil
}

// Close implements Repository.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
