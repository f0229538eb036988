// Package remote is the HTTP implementation of nodemap.Remote.
//
// Every call validates its required fields before anything is sent, attaches
// the bearer credential for authenticated endpoints and classifies failures
// as ValidationError, RemoteError or NetworkError. A missing credential or a
// 401 answer is reported as nodemap.ErrNoSession.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
	"github.com/randalmurphal/nodemap/pkg/nodemap/credential"
	"github.com/randalmurphal/nodemap/pkg/nodemap/observability"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 8 << 20

// Credentials holds the bearer token used for authenticated endpoints.
// *credential.Store implements it.
type Credentials interface {
	Token() (string, bool)
	Set(token string) error
	Clear()
}

// Client talks to the graph service over HTTP. It is safe for concurrent
// use.
type Client struct {
	baseURL  string
	http     *http.Client
	creds    Credentials
	logger   *zap.Logger
	spans    observability.SpanManager
	validate *validator.Validate
}

var (
	_ nodemap.Remote       = (*Client)(nil)
	_ nodemap.SessionEnder = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithCredentials sets the credential holder.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		if creds != nil {
			c.creds = creds
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSpanManager enables tracing of remote calls.
func WithSpanManager(spans observability.SpanManager) Option {
	return func(c *Client) {
		if spans != nil {
			c.spans = spans
		}
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		creds:    credential.NewStore(),
		logger:   zap.NewNop(),
		spans:    observability.NoopSpanManager{},
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Credentials returns the credential holder.
func (c *Client) Credentials() Credentials { return c.creds }

// Login authenticates with a username or email and stores the returned
// access token.
func (c *Client) Login(ctx context.Context, login, password string) (User, error) {
	var resp loginResponse
	if err := c.do(ctx, epLogin, loginRequest{EmailOrUsername: login, Password: password}, &resp); err != nil {
		return User{}, err
	}
	if resp.AccessToken == "" {
		return User{}, fmt.Errorf("%s: missing access_token: %w", epLogin.name, nodemap.ErrMalformedResponse)
	}
	if err := c.creds.Set(resp.AccessToken); err != nil {
		return User{}, fmt.Errorf("store credential: %w", err)
	}
	return resp.User, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	return c.do(ctx, epRegister, registerRequest{Username: username, Email: email, Password: password}, nil)
}

// Logout ends the session on the server and always discards the local
// credential.
func (c *Client) Logout(ctx context.Context) error {
	defer c.creds.Clear()
	if _, ok := c.creds.Token(); !ok {
		return nil
	}
	return c.do(ctx, epLogout, nil, nil)
}

// Status checks that the service is reachable.
func (c *Client) Status(ctx context.Context) (ServiceStatus, error) {
	var st ServiceStatus
	err := c.do(ctx, epStatus, nil, &st)
	return st, err
}

// ListGraphs implements nodemap.Remote.
func (c *Client) ListGraphs(ctx context.Context) ([]nodemap.Graph, error) {
	var resp listResponse
	if err := c.do(ctx, epListGraphs, nil, &resp); err != nil {
		return nil, err
	}
	wire := resp.Graphs
	if wire == nil {
		wire = resp.Nodemaps
	}
	graphs := make([]nodemap.Graph, 0, len(wire))
	for _, w := range wire {
		graphs = append(graphs, w.graph())
	}
	return graphs, nil
}

// FetchGraph implements nodemap.Remote.
func (c *Client) FetchGraph(ctx context.Context, id nodemap.ID) (nodemap.GraphDocument, error) {
	var resp wireGraph
	if err := c.do(ctx, epFetchGraph, graphRef{ID: id}, &resp); err != nil {
		return nodemap.GraphDocument{}, err
	}
	doc, err := resp.document()
	if err != nil {
		return nodemap.GraphDocument{}, fmt.Errorf("%s: %w: %v", epFetchGraph.name, nodemap.ErrMalformedResponse, err)
	}
	if doc.ID.IsZero() {
		doc.ID = id
	}
	return doc, nil
}

// CreateGraph implements nodemap.Remote.
func (c *Client) CreateGraph(ctx context.Context, draft nodemap.GraphDraft) (nodemap.Graph, error) {
	var resp createGraphResponse
	if err := c.do(ctx, epCreateGraph, draft, &resp); err != nil {
		return nodemap.Graph{}, err
	}
	w := resp.wireGraph
	if resp.Graph != nil {
		w = *resp.Graph
	}
	g := w.graph()
	if g.ID.IsZero() {
		return nodemap.Graph{}, fmt.Errorf("%s: missing id: %w", epCreateGraph.name, nodemap.ErrMalformedResponse)
	}
	if g.Name == "" {
		g.Name, g.Goal, g.Description = draft.Name, draft.Goal, draft.Description
	}
	return g, nil
}

// SaveGraph implements nodemap.Remote.
func (c *Client) SaveGraph(ctx context.Context, id nodemap.ID, payload nodemap.Payload) error {
	p := payload.Clone()
	return c.do(ctx, epSaveGraph, saveRequest{GraphID: id, Nodes: p.Nodes, Edges: p.Edges}, nil)
}

// ToggleFavorite implements nodemap.Remote.
func (c *Client) ToggleFavorite(ctx context.Context, id nodemap.ID) (nodemap.FavoriteResult, error) {
	var resp toggleResponse
	if err := c.do(ctx, epToggleFavorite, graphRef{ID: id}, &resp); err != nil {
		return nodemap.FavoriteResult{}, err
	}
	if resp.IsFavorite == nil {
		return nodemap.FavoriteResult{}, fmt.Errorf("%s: missing is_favorite: %w", epToggleFavorite.name, nodemap.ErrMalformedResponse)
	}
	return nodemap.FavoriteResult{
		GraphID:    firstID(resp.GraphID, resp.NodemapID, id),
		IsFavorite: *resp.IsFavorite,
	}, nil
}

// CreateAgent implements nodemap.Remote.
func (c *Client) CreateAgent(ctx context.Context, draft nodemap.AgentDraft) (nodemap.Agent, error) {
	var resp createAgentResponse
	if err := c.do(ctx, epCreateAgent, draft, &resp); err != nil {
		return nodemap.Agent{}, err
	}
	w := resp.wireAgent
	if resp.Agent != nil {
		w = *resp.Agent
	}
	a := w.agent()
	if a.ID.IsZero() {
		return nodemap.Agent{}, fmt.Errorf("%s: missing id: %w", epCreateAgent.name, nodemap.ErrMalformedResponse)
	}
	if a.Name == "" {
		a.Name, a.Type, a.Model, a.SystemPrompt = draft.Name, draft.Type, draft.Model, draft.SystemPrompt
	}
	return a, nil
}

// ListAgents returns the caller's agent definitions.
func (c *Client) ListAgents(ctx context.Context) ([]nodemap.Agent, error) {
	var resp listAgentsResponse
	if err := c.do(ctx, epListAgents, nil, &resp); err != nil {
		return nil, err
	}
	agents := make([]nodemap.Agent, 0, len(resp.Agents))
	for _, w := range resp.Agents {
		agents = append(agents, w.agent())
	}
	return agents, nil
}

// do performs one request. body is validated and JSON-encoded when non-nil;
// out is decoded from a 2xx response when non-nil.
func (c *Client) do(ctx context.Context, ep endpoint, body, out any) (err error) {
	if body != nil {
		if err := c.check(ep, body); err != nil {
			return err
		}
	}

	var token string
	if ep.auth {
		var ok bool
		if token, ok = c.creds.Token(); !ok {
			return fmt.Errorf("%s: %w", ep.name, nodemap.ErrNoSession)
		}
	}

	ctx, span := c.spans.StartRemoteSpan(ctx, ep.name, ep.method, ep.path)
	defer func() { c.spans.EndSpanWithError(span, err) }()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", ep.name, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, ep.method, c.baseURL+ep.path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", ep.name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		netErr := &NetworkError{Endpoint: ep.name, Timeout: isTimeout(err), Err: err}
		c.logger.Warn("remote request failed",
			zap.String("endpoint", ep.name),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return netErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return &NetworkError{Endpoint: ep.name, Timeout: isTimeout(err), Err: err}
	}

	c.logger.Debug("remote request",
		zap.String("endpoint", ep.name),
		zap.String("request_id", reqID),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newRemoteError(ep, resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: %w: %v", ep.name, nodemap.ErrMalformedResponse, err)
	}
	return nil
}

func (c *Client) check(ep endpoint, body any) error {
	err := c.validate.Struct(body)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%s: validate request: %w", ep.name, err)
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Endpoint: ep.name, Fields: fields}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
