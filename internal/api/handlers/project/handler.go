package project

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/api/middleware"
	"github.com/aliskhannn/nano-editor/internal/api/request"
	"github.com/aliskhannn/nano-editor/internal/api/respond"
	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/model"
	"github.com/aliskhannn/nano-editor/internal/store"
)

// service defines the project cache operations the handlers rely on.
type service interface {
	Projects(ctx context.Context, owner string) ([]model.Project, error)
	Project(ctx context.Context, id uuid.UUID) (model.Project, error)
	UpdateProject(ctx context.Context, projectID, sessionID uuid.UUID, note string) (model.Project, error)
	RenameProject(ctx context.Context, projectID uuid.UUID, name string) (model.Project, error)
	OpenProject(ctx context.Context, projectID uuid.UUID, owner string) (editor.State, error)
	RestoreRevision(ctx context.Context, projectID, revisionID uuid.UUID) (model.Project, error)
	DeleteProject(ctx context.Context, id uuid.UUID) error
}

// Handler provides HTTP handlers for saved projects.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// UpdateRequest records a session as a new revision, renames the project, or both.
type UpdateRequest struct {
	SessionID string `json:"session_id"`
	Note      string `json:"note"`
	Name      string `json:"name"`
}

// List returns the projects of the request owner.
func (h *Handler) List(c *ginext.Context) {
	projects, err := h.service.Projects(c.Request.Context(), middleware.Owner(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond.OK(c, projects)
}

// Get returns one project with its revisions.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	p, err := h.service.Project(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond.OK(c, p)
}

// Update saves a session into the project and/or renames it.
func (h *Handler) Update(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	var req UpdateRequest
	if !request.Bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		p   model.Project
		err error
	)

	if req.SessionID != "" {
		sessionID, perr := uuid.Parse(req.SessionID)
		if perr != nil {
			respond.Fail(c, http.StatusBadRequest, perr)
			return
		}
		if p, err = h.service.UpdateProject(ctx, id, sessionID, req.Note); err != nil {
			fail(c, err)
			return
		}
	}

	if req.Name != "" {
		if p, err = h.service.RenameProject(ctx, id, req.Name); err != nil {
			fail(c, err)
			return
		}
	}

	if p.ID == uuid.Nil {
		respond.Fail(c, http.StatusBadRequest, errors.New("session_id or name is required"))
		return
	}
	respond.OK(c, p)
}

// Open starts a new editing session from the project.
func (h *Handler) Open(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	st, err := h.service.OpenProject(c.Request.Context(), id, middleware.Owner(c))
	if err != nil {
		fail(c, err)
		return
	}
	respond.Created(c, st)
}

// Restore makes a past revision current.
func (h *Handler) Restore(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}
	revID, ok := request.ID(c, "rev")
	if !ok {
		return
	}

	p, err := h.service.RestoreRevision(c.Request.Context(), id, revID)
	if err != nil {
		fail(c, err)
		return
	}
	respond.OK(c, p)
}

// Delete removes a project.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteProject(c.Request.Context(), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func fail(c *ginext.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, store.ErrProjectNotFound),
		errors.Is(err, store.ErrRevisionNotFound),
		errors.Is(err, editor.ErrSessionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrNoImage):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrInvalidImage),
		errors.Is(err, editor.ErrUnknownFilter):
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	respond.Fail(c, status, err)
}
