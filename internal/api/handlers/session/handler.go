package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/adjust"
	"github.com/aliskhannn/nano-editor/internal/api/middleware"
	"github.com/aliskhannn/nano-editor/internal/api/request"
	"github.com/aliskhannn/nano-editor/internal/api/respond"
	"github.com/aliskhannn/nano-editor/internal/editor"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/model"
	editorsvc "github.com/aliskhannn/nano-editor/internal/service/editor"
)

// maxUploadBytes caps an uploaded image.
const maxUploadBytes = 32 << 20

// service defines the session operations the handlers rely on.
type service interface {
	CreateSession(owner string) editor.State
	Session(id uuid.UUID) (*editor.Session, error)
	ListSessions(owner string) []editor.State
	DeleteSession(id uuid.UUID) error
	UploadImage(ctx context.Context, sessionID uuid.UUID, name, contentType string, data []byte) (editor.State, error)
	SetImageURL(sessionID uuid.UUID, url, name string) (editor.State, error)
	AddReference(ctx context.Context, sessionID uuid.UUID, name, contentType string, data []byte) (editor.State, error)
	Generate(ctx context.Context, sessionID uuid.UUID, prompt, aspectRatio string) (editor.State, error)
	QueueExports(sessionID uuid.UUID, configs []model.ExportConfig) ([]uuid.UUID, error)
	SubmitBatch(ctx context.Context, sessionID uuid.UUID, configs []model.ExportConfig) (model.ExportBatch, error)
	SaveProject(ctx context.Context, sessionID uuid.UUID, name string) (model.Project, error)
}

// Handler provides HTTP handlers for editing sessions.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// ImageURLRequest sets the primary image from an existing URL.
type ImageURLRequest struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

// ValueRequest carries one slider value.
type ValueRequest struct {
	Value float64 `json:"value"`
}

// HSLRequest sets one component of an HSL channel.
type HSLRequest struct {
	Component string  `json:"component"`
	Value     float64 `json:"value"`
}

// FilterRequest selects a named filter.
type FilterRequest struct {
	Name string `json:"name"`
}

// VersionRequest selects a version. An empty id shows the primary image.
type VersionRequest struct {
	ID string `json:"id"`
}

// GenerateRequest asks for an AI edit of the displayed image.
type GenerateRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

// ExportRequest lists the export variants to queue.
type ExportRequest struct {
	Configs []model.ExportConfig `json:"configs"`
}

// ProjectRequest names a project saved from the session.
type ProjectRequest struct {
	Name string `json:"name"`
}

// Create starts a session for the request owner.
func (h *Handler) Create(c *ginext.Context) {
	respond.Created(c, h.service.CreateSession(middleware.Owner(c)))
}

// List returns the sessions of the request owner.
func (h *Handler) List(c *ginext.Context) {
	respond.OK(c, h.service.ListSessions(middleware.Owner(c)))
}

// Get returns the state of one session.
func (h *Handler) Get(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	respond.OK(c, sess.State())
}

// Delete drops a session.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteSession(id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetImage replaces the primary image, either from a multipart "image" file
// or from a JSON body with a URL.
func (h *Handler) SetImage(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	if c.ContentType() == "application/json" {
		var req ImageURLRequest
		if !request.Bind(c, &req) {
			return
		}
		h.result(c)(h.service.SetImageURL(id, req.URL, req.Name))
		return
	}

	name, contentType, data, ok := upload(c)
	if !ok {
		return
	}
	h.result(c)(h.service.UploadImage(c.Request.Context(), id, name, contentType, data))
}

// SetAdjustment sets one slider by its field name.
func (h *Handler) SetAdjustment(c *ginext.Context) {
	var req ValueRequest
	sess, ok := h.sessionWithBody(c, &req)
	if !ok {
		return
	}
	h.result(c)(sess.SetAdjustment(c.Param("field"), req.Value))
}

// SetAdjustments replaces every adjustment.
func (h *Handler) SetAdjustments(c *ginext.Context) {
	adj := model.DefaultAdjustments()
	sess, ok := h.sessionWithBody(c, &adj)
	if !ok {
		return
	}
	h.result(c)(sess.SetAdjustments(adj))
}

// SetHSL sets one component of an HSL channel.
func (h *Handler) SetHSL(c *ginext.Context) {
	var req HSLRequest
	sess, ok := h.sessionWithBody(c, &req)
	if !ok {
		return
	}
	h.result(c)(sess.SetHSL(c.Param("channel"), req.Component, req.Value))
}

// SetColorGrading replaces the color grading.
func (h *Handler) SetColorGrading(c *ginext.Context) {
	var req model.ColorGrading
	sess, ok := h.sessionWithBody(c, &req)
	if !ok {
		return
	}
	h.result(c)(sess.SetColorGrading(req))
}

// SetFilter selects a named filter.
func (h *Handler) SetFilter(c *ginext.Context) {
	var req FilterRequest
	sess, ok := h.sessionWithBody(c, &req)
	if !ok {
		return
	}
	h.result(c)(sess.SetFilter(req.Name))
}

// Reset restores the default adjustments.
func (h *Handler) Reset(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	h.result(c)(sess.Reset())
}

// Undo reverts the last change. Undo with an empty history is not an error.
func (h *Handler) Undo(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	st, _ := sess.Undo()
	respond.OK(c, st)
}

// Redo reapplies the last undone change.
func (h *Handler) Redo(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	st, _ := sess.Redo()
	respond.OK(c, st)
}

// ClearHistory forgets the undo history.
func (h *Handler) ClearHistory(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	respond.OK(c, sess.ClearHistory())
}

// SelectVersion shows a generated version or the primary image.
func (h *Handler) SelectVersion(c *ginext.Context) {
	var req VersionRequest
	sess, ok := h.sessionWithBody(c, &req)
	if !ok {
		return
	}
	id := uuid.Nil
	if req.ID != "" {
		var err error
		if id, err = uuid.Parse(req.ID); err != nil {
			respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid version id: %v", err))
			return
		}
	}
	h.result(c)(sess.SelectVersion(id))
}

// AddReference attaches an uploaded reference image.
func (h *Handler) AddReference(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	name, contentType, data, ok := upload(c)
	if !ok {
		return
	}
	h.result(c)(h.service.AddReference(c.Request.Context(), id, name, contentType, data))
}

// RemoveReference detaches a reference image.
func (h *Handler) RemoveReference(c *ginext.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	refID, ok := request.ID(c, "ref")
	if !ok {
		return
	}
	h.result(c)(sess.RemoveReference(refID))
}

// Generate runs an AI edit and returns the session with the new version.
func (h *Handler) Generate(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	var req GenerateRequest
	if !request.Bind(c, &req) {
		return
	}

	h.result(c)(h.service.Generate(c.Request.Context(), id, req.Prompt, req.AspectRatio))
}

// QueueExports adds export jobs for the displayed image without starting them.
func (h *Handler) QueueExports(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	var req ExportRequest
	if !request.Bind(c, &req) {
		return
	}

	ids, err := h.service.QueueExports(id, req.Configs)
	if err != nil {
		fail(c, err)
		return
	}
	respond.Created(c, map[string]interface{}{"job_ids": ids})
}

// SubmitBatch hands the export configs to the background pipeline.
func (h *Handler) SubmitBatch(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	var req ExportRequest
	if !request.Bind(c, &req) {
		return
	}

	batch, err := h.service.SubmitBatch(c.Request.Context(), id, req.Configs)
	if err != nil {
		fail(c, err)
		return
	}
	respond.Accepted(c, map[string]interface{}{"batch_id": batch.ID, "jobs": len(batch.Configs)})
}

// SaveProject stores the session as a project in the local cache.
func (h *Handler) SaveProject(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	var req ProjectRequest
	if c.Request.ContentLength != 0 && !request.Bind(c, &req) {
		return
	}

	p, err := h.service.SaveProject(c.Request.Context(), id, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	respond.Created(c, p)
}

func (h *Handler) session(c *ginext.Context) (*editor.Session, bool) {
	id, ok := request.ID(c, "id")
	if !ok {
		return nil, false
	}

	sess, err := h.service.Session(id)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return sess, true
}

func (h *Handler) sessionWithBody(c *ginext.Context, body interface{}) (*editor.Session, bool) {
	sess, ok := h.session(c)
	if !ok {
		return nil, false
	}
	if !request.Bind(c, body) {
		return nil, false
	}
	return sess, true
}

// result writes a session state or the error that replaced it.
func (h *Handler) result(c *ginext.Context) func(editor.State, error) {
	return func(st editor.State, err error) {
		if err != nil {
			fail(c, err)
			return
		}
		respond.OK(c, st)
	}
}

// upload reads the multipart "image" file.
func upload(c *ginext.Context) (string, string, []byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read the uploaded file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return "", "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to read the file: %v", err))
		return "", "", nil, false
	}
	if len(data) > maxUploadBytes {
		respond.Fail(c, http.StatusRequestEntityTooLarge, fmt.Errorf("image larger than %d bytes", maxUploadBytes))
		return "", "", nil, false
	}

	return header.Filename, header.Header.Get("Content-Type"), data, true
}

func fail(c *ginext.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, editor.ErrSessionNotFound),
		errors.Is(err, editor.ErrVersionNotFound),
		errors.Is(err, editor.ErrReferenceNotFound):
		status = http.StatusNotFound
	case errors.Is(err, editor.ErrNoImage):
		status = http.StatusConflict
	case errors.Is(err, editor.ErrTooManyReferences),
		errors.Is(err, editor.ErrUnknownFilter),
		errors.Is(err, editor.ErrInvalidImage),
		errors.Is(err, adjust.ErrUnknownField),
		errors.Is(err, adjust.ErrUnknownChannel),
		errors.Is(err, generation.ErrInvalidRequest),
		errors.Is(err, export.ErrUnsupportedFormat),
		errors.Is(err, export.ErrInvalidConfig),
		errors.Is(err, editorsvc.ErrEmptyImage),
		errors.Is(err, editorsvc.ErrEmptyBatch):
		status = http.StatusBadRequest
	case errors.Is(err, generation.ErrNoImage):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	respond.Fail(c, status, err)
}
