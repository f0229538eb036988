package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

type registerRequest struct {
	Username string `json:"username" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginRequest struct {
	EmailOrUsername string `json:"emailOrUsername" validate:"required"`
	Password        string `json:"password" validate:"required"`
}

// graphRef names a graph. Fetch and toggle send id, save sends graph_id;
// nodemap_id is accepted from older clients.
type graphRef struct {
	ID        nodemap.ID `json:"id"`
	GraphID   nodemap.ID `json:"graph_id"`
	NodemapID nodemap.ID `json:"nodemap_id"`
}

// resolve returns the first id present. missing names the field reported
// when none is.
func (r graphRef) resolve(missing string) (int64, error) {
	raw := r.ID
	if raw.IsZero() {
		raw = r.GraphID
	}
	if raw.IsZero() {
		raw = r.NodemapID
	}
	if raw.IsZero() {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Missing required fields: "+missing)
	}
	id, err := strconv.ParseInt(raw.String(), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid graph id")
	}
	return id, nil
}

type saveRequest struct {
	graphRef
	Nodes json.RawMessage `json:"nodes" validate:"required"`
	Edges json.RawMessage `json:"edges" validate:"required"`
}

type userJSON struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type graphJSON struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Goal        string `json:"goal"`
	Description string `json:"description"`
	CreatedAt   string `json:"created_at"`
	IsFavorite  bool   `json:"is_favorite"`
}

type graphDataJSON struct {
	graphJSON
	Nodes json.RawMessage `json:"nodes"`
	Edges json.RawMessage `json:"edges"`
}

type agentJSON struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	CreatedAt    string `json:"created_at"`
}

func toUser(u *storage.User) userJSON {
	return userJSON{ID: u.ID, Username: u.Username, Email: u.Email}
}

func toGraph(g *storage.GraphRecord) graphJSON {
	return graphJSON{
		ID:          g.ID,
		Name:        g.Name,
		Goal:        g.Goal,
		Description: g.Description,
		CreatedAt:   g.CreatedAt.UTC().Format(time.RFC3339Nano),
		IsFavorite:  g.IsFavorite,
	}
}

func toAgent(a *storage.AgentRecord) agentJSON {
	return agentJSON{
		ID:           a.ID,
		Name:         a.Name,
		Type:         a.Type,
		Model:        a.Model,
		SystemPrompt: a.SystemPrompt,
		CreatedAt:    a.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// bind decodes the JSON body into dst and checks its required fields. An
// empty body decodes to the zero value so the missing fields are reported.
func (s *Server) bind(c *fiber.Ctx, dst any) error {
	if body := bytes.TrimSpace(c.Body()); len(body) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid JSON body")
		}
	}
	err := s.validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	var missing, invalid []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}
	if len(missing) > 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Missing required fields: "+strings.Join(missing, ", "))
	}
	return fiber.NewError(fiber.StatusBadRequest, "Invalid fields: "+strings.Join(invalid, ", "))
}

// jsonList reports whether raw is a JSON array.
func jsonList(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '[' && json.Valid(raw)
}
