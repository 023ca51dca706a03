package api

import (
	"errors"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/ryanlack616/howell-brain/pkg/brain"
	"github.com/ryanlack616/howell-brain/pkg/entity"
	"github.com/ryanlack616/howell-brain/pkg/journal"
	"github.com/ryanlack616/howell-brain/pkg/tier"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EntityRequest is the body of POST /entities.
type EntityRequest struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ObservationRequest is the body of POST /observations.
type ObservationRequest struct {
	Entity string `json:"entity"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

// RelationRequest is the body of POST and DELETE /relations.
type RelationRequest struct {
	From string `json:"from"`
	Type string `json:"type"`
	To   string `json:"to"`
}

// SessionRequest is the body of POST /sessions.
type SessionRequest struct {
	Narrative string   `json:"narrative"`
	Learned   []string `json:"learned"`
	Pin       bool     `json:"pin"`
	PinTitle  string   `json:"pin_title"`
	PinReason string   `json:"pin_reason"`
}

// PinRequest is the body of POST /pins.
type PinRequest struct {
	Title  string `json:"title"`
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

// SnapshotRequest is the body of POST /snapshot.
type SnapshotRequest struct {
	Note string `json:"note"`
}

// TierResponse is the body of GET /tiers/:tier.
type TierResponse struct {
	Tier     tier.Tier     `json:"tier"`
	Contents tier.Contents `json:"contents"`
	Markdown string        `json:"markdown,omitempty"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleBootstrap returns the agent's starting context. The last bootstrap
// is served unless refresh=true asks for a rebuild from disk.
func (s *Server) handleBootstrap(c *fiber.Ctx) error {
	if !c.QueryBool("refresh") {
		if last := s.brain.Last(); last != nil {
			return c.JSON(last)
		}
	}

	out, err := s.brain.Bootstrap(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(out)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	st, err := s.brain.Status()
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(st)
}

// handleReadTier returns one tier. format=markdown adds a rendered copy.
func (s *Server) handleReadTier(c *fiber.Ctx) error {
	t, err := tier.Parse(c.Params("tier"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	}

	contents, err := s.brain.ReadTier(t)
	if err != nil {
		return s.fail(c, err)
	}

	resp := TierResponse{Tier: t, Contents: contents}
	if c.Query("format") == "markdown" {
		resp.Markdown = tier.Render(t, contents)
	}
	return c.JSON(resp)
}

func (s *Server) handleSearch(c *fiber.Ctx) error {
	q := c.Query("q")
	if q == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "q parameter required"})
	}

	res, err := s.brain.Search(c.UserContext(), q)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleGetEntity(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid entity name"})
	}

	e, err := s.brain.Entity(name)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(e)
}

// handleListRelations lists live relations, optionally only those touching
// the entity named by the entity query parameter.
func (s *Server) handleListRelations(c *fiber.Ctx) error {
	rels, err := s.brain.Relations(c.Query("entity"))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"relations": rels, "count": len(rels)})
}

func (s *Server) handleAddEntity(c *fiber.Ctx) error {
	var req EntityRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	ref, err := s.brain.AddEntity(req.Name, req.Kind)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(ref)
}

func (s *Server) handleAddObservation(c *fiber.Ctx) error {
	var req ObservationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.brain.AddObservation(req.Entity, req.Kind, req.Text)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleAddRelation(c *fiber.Ctx) error {
	var req RelationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.brain.AddRelation(req.From, req.Type, req.To)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleRemoveRelation(c *fiber.Ctx) error {
	var req RelationRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.brain.RemoveRelation(req.From, req.Type, req.To)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleRecordSession(c *fiber.Ctx) error {
	var req SessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.brain.RecordSessionEnd(c.UserContext(), tier.SessionInput{
		Narrative: req.Narrative,
		Learned:   req.Learned,
		Pin:       req.Pin,
		PinTitle:  req.PinTitle,
		PinReason: req.PinReason,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// handlePin pins a memory. An already pinned title is reported with
// already_pinned and status 200 rather than 201.
func (s *Server) handlePin(c *fiber.Ctx) error {
	var req PinRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	res, err := s.brain.PinMemory(req.Title, req.Text, req.Reason)
	if err != nil {
		return s.fail(c, err)
	}
	if res.AlreadyPinned {
		return c.JSON(res)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

func (s *Server) handleSnapshot(c *fiber.Ctx) error {
	var req SnapshotRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
		}
	}

	snap, err := s.brain.SaveConsolidationSnapshot(req.Note)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(snap)
}

func (s *Server) handleReload(c *fiber.Ctx) error {
	out, err := s.brain.Bootstrap(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"warnings": out.Warnings, "degraded": out.Degraded})
}

// fail maps a brain error to a status code.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	var (
		notFound    *entity.NotFoundError
		wrongWriter *journal.WrongWriterError
	)
	switch {
	case errors.Is(err, brain.ErrEmptyField),
		errors.Is(err, entity.ErrEmptyName),
		errors.Is(err, tier.ErrEmptyNarrative):
		return fiber.StatusBadRequest
	case errors.As(err, &notFound):
		return fiber.StatusNotFound
	case errors.As(err, &wrongWriter):
		return fiber.StatusConflict
	case errors.Is(err, brain.ErrNotBootstrapped),
		errors.Is(err, brain.ErrJournalUnavailable):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

