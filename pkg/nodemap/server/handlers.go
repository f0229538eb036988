package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
	"github.com/randalmurphal/nodemap/pkg/nodemap/storage"
)

var errGraphNotFound = fiber.NewError(fiber.StatusNotFound, "Nodemap not found")

func (s *Server) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "message": "nodemap server running"})
}

func (s *Server) listGraphs(c *fiber.Ctx) error {
	records, err := s.repo.ListGraphs(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	graphs := make([]graphJSON, 0, len(records))
	for i := range records {
		graphs = append(graphs, toGraph(&records[i]))
	}
	return c.JSON(fiber.Map{"graphs": graphs})
}

func (s *Server) getGraph(c *fiber.Ctx) error {
	var ref graphRef
	if err := s.bind(c, &ref); err != nil {
		return err
	}
	id, err := ref.resolve("id")
	if err != nil {
		return err
	}
	g, err := s.repo.GetGraph(c.UserContext(), userID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		return errGraphNotFound
	}
	if err != nil {
		return err
	}
	return c.JSON(graphDataJSON{graphJSON: toGraph(g), Nodes: g.Nodes, Edges: g.Edges})
}

func (s *Server) createGraph(c *fiber.Ctx) error {
	var req nodemap.GraphDraft
	if err := s.bind(c, &req); err != nil {
		return err
	}
	g := &storage.GraphRecord{
		UserID:      userID(c),
		Name:        req.Name,
		Goal:        req.Goal,
		Description: req.Description,
	}
	if err := s.repo.CreateGraph(c.UserContext(), g); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fiber.NewError(fiber.StatusConflict, "Nodemap with this name already exists")
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(toGraph(g))
}

func (s *Server) saveGraph(c *fiber.Ctx) error {
	var req saveRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}
	id, err := req.resolve("graph_id")
	if err != nil {
		return err
	}
	if !jsonList(req.Nodes) || !jsonList(req.Edges) {
		return fiber.NewError(fiber.StatusBadRequest, "nodes and edges must be lists")
	}
	err = s.repo.SavePayload(c.UserContext(), userID(c), id, req.Nodes, req.Edges)
	if errors.Is(err, storage.ErrNotFound) {
		return errGraphNotFound
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Nodemap saved successfully"})
}

func (s *Server) toggleFavorite(c *fiber.Ctx) error {
	var ref graphRef
	if err := s.bind(c, &ref); err != nil {
		return err
	}
	id, err := ref.resolve("id")
	if err != nil {
		return err
	}
	fav, err := s.repo.ToggleFavorite(c.UserContext(), userID(c), id)
	if errors.Is(err, storage.ErrNotFound) {
		return errGraphNotFound
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"graph_id": id, "is_favorite": fav})
}

func (s *Server) createAgent(c *fiber.Ctx) error {
	var req nodemap.AgentDraft
	if err := s.bind(c, &req); err != nil {
		return err
	}
	a := &storage.AgentRecord{
		UserID:       userID(c),
		Name:         req.Name,
		Type:         req.Type,
		Model:        req.Model,
		SystemPrompt: req.SystemPrompt,
	}
	if err := s.repo.CreateAgent(c.UserContext(), a); err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return fiber.NewError(fiber.StatusConflict, "Agent with this name already exists")
		}
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"agent": toAgent(a)})
}

func (s *Server) listAgents(c *fiber.Ctx) error {
	records, err := s.repo.ListAgents(c.UserContext(), userID(c))
	if err != nil {
		return err
	}
	agents := make([]agentJSON, 0, len(records))
	for i := range records {
		agents = append(agents, toAgent(&records[i]))
	}
	return c.JSON(fiber.Map{"agents": agents})
}
