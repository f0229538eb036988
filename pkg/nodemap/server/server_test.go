package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := New(storage.NewMemoryStore(), Config{JWTSecret: "test-secret"})
	require.NoError(t, err)
	return s
}

// call sends one request through the app and decodes the JSON response.
func call(t *testing.T, s *Server, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// signIn registers a user and returns an access token.
func signIn(t *testing.T, s *Server, username string) string {
	t.Helper()
	code, _ := call(t, s, http.MethodPost, "/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "hunter2",
	})
	require.Equal(t, http.StatusCreated, code)
	code, body := call(t, s, http.MethodPost, "/auth/login", "", map[string]string{
		"emailOrUsername": username,
		"password":        "hunter2",
	})
	require.Equal(t, http.StatusOK, code)
	token, _ := body["access_token"].(string)
	require.NotEmpty(t, token)
	return token
}

func createGraph(t *testing.T, s *Server, token, name string) float64 {
	t.Helper()
	code, body := call(t, s, http.MethodPost, "/creation/createmap", token, map[string]string{
		"name": name, "goal": "g", "description": "d",
	})
	require.Equal(t, http.StatusCreated, code, body)
	id, ok := body["id"].(float64)
	require.True(t, ok)
	return id
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(storage.NewMemoryStore(), Config{})
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestStatus(t *testing.T) {
	s := newTestServer(t)
	code, body := call(t, s, http.MethodGet, "/api/status", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestRegisterAndLogin(t *testing.T) {
	s := newTestServer(t)
	signIn(t, s, "ada")

	t.Run("duplicate user", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/auth/register", "", map[string]string{
			"username": "ada", "email": "other@example.com", "password": "x",
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "Username or email already exists", body["error"])
	})

	t.Run("login by email", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/auth/login", "", map[string]string{
			"emailOrUsername": "ADA@example.com", "password": "hunter2",
		})
		assert.Equal(t, http.StatusOK, code)
		user, _ := body["user"].(map[string]any)
		assert.Equal(t, "ada", user["username"])
	})

	t.Run("wrong password", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/auth/login", "", map[string]string{
			"emailOrUsername": "ada", "password": "nope",
		})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Invalid credentials", body["error"])
	})

	t.Run("unknown user", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/auth/login", "", map[string]string{
			"emailOrUsername": "bob", "password": "hunter2",
		})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Invalid credentials", body["error"])
	})

	t.Run("missing fields", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/auth/login", "", nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Missing required fields: emailOrUsername, password", body["error"])
	})
}

func TestRequireToken(t *testing.T) {
	s := newTestServer(t)

	code, body := call(t, s, http.MethodGet, "/creation/getnodemaps", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Missing token", body["error"])

	code, body = call(t, s, http.MethodGet, "/creation/getnodemaps", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid token", body["error"])

	other, err := New(storage.NewMemoryStore(), Config{JWTSecret: "other-secret"})
	require.NoError(t, err)
	foreign := signIn(t, other, "eve")
	code, _ = call(t, s, http.MethodGet, "/creation/getnodemaps", foreign, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestLogout_RevokesToken(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, "ada")

	code, _ := call(t, s, http.MethodGet, "/creation/getnodemaps", token, nil)
	require.Equal(t, http.StatusOK, code)

	code, body := call(t, s, http.MethodPost, "/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Logged out", body["message"])

	code, body = call(t, s, http.MethodGet, "/creation/getnodemaps", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid token", body["error"])
}

func TestGraphLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, "ada")
	id := createGraph(t, s, token, "Pipeline")

	t.Run("duplicate name", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/createmap", token, map[string]string{
			"name": "Pipeline", "goal": "g", "description": "d",
		})
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "Nodemap with this name already exists", body["error"])
	})

	t.Run("list", func(t *testing.T) {
		code, body := call(t, s, http.MethodGet, "/creation/getnodemaps", token, nil)
		require.Equal(t, http.StatusOK, code)
		graphs, _ := body["graphs"].([]any)
		require.Len(t, graphs, 1)
		g := graphs[0].(map[string]any)
		assert.Equal(t, "Pipeline", g["name"])
		assert.Equal(t, false, g["is_favorite"])
		assert.NotEmpty(t, g["created_at"])
	})

	t.Run("fresh graph has empty payload", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{"id": id})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, []any{}, body["nodes"])
		assert.Equal(t, []any{}, body["edges"])
	})

	t.Run("save and reload", func(t *testing.T) {
		nodes := []map[string]any{{"id": "dndnode_0", "type": "agent", "position": map[string]any{"x": 1.5, "y": 2.0}, "data": map[string]any{"label": "A"}}}
		code, body := call(t, s, http.MethodPost, "/creation/savenodemap", token, map[string]any{
			"graph_id": id, "nodes": nodes, "edges": []any{},
		})
		require.Equal(t, http.StatusOK, code, body)
		assert.Equal(t, "Nodemap saved successfully", body["message"])

		code, body = call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{"id": id})
		require.Equal(t, http.StatusOK, code)
		got, _ := body["nodes"].([]any)
		require.Len(t, got, 1)
		assert.Equal(t, "dndnode_0", got[0].(map[string]any)["id"])
	})

	t.Run("legacy id field", func(t *testing.T) {
		code, _ := call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{"nodemap_id": id})
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("save rejects non-list payload", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/savenodemap", token, map[string]any{
			"graph_id": id, "nodes": map[string]any{}, "edges": []any{},
		})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "nodes and edges must be lists", body["error"])
	})

	t.Run("toggle favorite", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/togglenodemapfavorite", token, map[string]any{"id": id})
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, true, body["is_favorite"])
		assert.Equal(t, id, body["graph_id"])

		_, body = call(t, s, http.MethodPost, "/creation/togglenodemapfavorite", token, map[string]any{"id": id})
		assert.Equal(t, false, body["is_favorite"])
	})

	t.Run("unknown graph", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{"graph_id": 9999})
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "Nodemap not found", body["error"])
	})

	t.Run("other users cannot see it", func(t *testing.T) {
		bob := signIn(t, s, "bob")
		code, _ := call(t, s, http.MethodPost, "/creation/getnodemapdata", bob, map[string]any{"graph_id": id})
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("bad graph id", func(t *testing.T) {
		code, body := call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{"graph_id": "abc"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid graph id", body["error"])

		code, body = call(t, s, http.MethodPost, "/creation/getnodemapdata", token, map[string]any{})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Missing required fields: id", body["error"])

		code, body = call(t, s, http.MethodPost, "/creation/savenodemap", token, map[string]any{"nodes": []any{}, "edges": []any{}})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Missing required fields: graph_id", body["error"])
	})
}

func TestCreateGraph_MissingFields(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, "ada")

	code, body := call(t, s, http.MethodPost, "/creation/createmap", token, map[string]string{"name": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required fields: goal, description", body["error"])
}

func TestAgents(t *testing.T) {
	s := newTestServer(t)
	token := signIn(t, s, "ada")

	agent := map[string]string{"name": "Researcher", "type": "llm", "model": "m1", "system_prompt": "be brief"}
	code, body := call(t, s, http.MethodPost, "/creation/createagent", token, agent)
	require.Equal(t, http.StatusCreated, code, body)
	created, _ := body["agent"].(map[string]any)
	assert.Equal(t, "Researcher", created["name"])
	assert.NotZero(t, created["id"])

	code, body = call(t, s, http.MethodPost, "/creation/createagent", token, agent)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "Agent with this name already exists", body["error"])

	code, body = call(t, s, http.MethodGet, "/creation/getagents", token, nil)
	require.Equal(t, http.StatusOK, code)
	agents, _ := body["agents"].([]any)
	assert.Len(t, agents, 1)
}

func TestInvalidJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
