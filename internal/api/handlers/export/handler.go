package export

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/api/middleware"
	"github.com/aliskhannn/nano-editor/internal/api/request"
	"github.com/aliskhannn/nano-editor/internal/api/respond"
	"github.com/aliskhannn/nano-editor/internal/export"
	"github.com/aliskhannn/nano-editor/internal/model"
	editorsvc "github.com/aliskhannn/nano-editor/internal/service/editor"
)

// service defines the export queue operations the handlers rely on.
type service interface {
	StartExports() error
	ProcessingExports() bool
	Jobs(owner string) []model.ExportJob
	Job(owner string, id uuid.UUID) (model.ExportJob, error)
	RemoveJob(owner string, id uuid.UUID) error
	RetryJob(owner string, id uuid.UUID) (uuid.UUID, error)
	ClearJobs(owner string, all bool) int
	Download(ctx context.Context, owner string, id uuid.UUID) (editorsvc.Download, error)
}

// Handler provides HTTP handlers for the export queue.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// QueueStatus is the listing of the export queue.
type QueueStatus struct {
	Processing bool              `json:"processing"`
	Jobs       []model.ExportJob `json:"jobs"`
}

// List returns the caller's jobs and whether a batch is running.
func (h *Handler) List(c *ginext.Context) {
	respond.OK(c, QueueStatus{
		Processing: h.service.ProcessingExports(),
		Jobs:       h.service.Jobs(middleware.Owner(c)),
	})
}

// Start processes the pending jobs in the background.
func (h *Handler) Start(c *ginext.Context) {
	if err := h.service.StartExports(); err != nil {
		fail(c, err)
		return
	}
	respond.Accepted(c, map[string]interface{}{"processing": true})
}

// Get returns one job.
func (h *Handler) Get(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	job, err := h.service.Job(middleware.Owner(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond.OK(c, job)
}

// Download serves the file of a completed job.
func (h *Handler) Download(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.Download(c.Request.Context(), middleware.Owner(c), id)
	if err != nil {
		fail(c, err)
		return
	}

	c.Header("Cache-Control", "no-cache, no-store, must-revalidate")
	respond.Attachment(c, d.Filename, d.ContentType, d.Data)
}

// Delete removes a job that is not processing.
func (h *Handler) Delete(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	if err := h.service.RemoveJob(middleware.Owner(c), id); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Retry re-queues a failed job.
func (h *Handler) Retry(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	newID, err := h.service.RetryJob(middleware.Owner(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	respond.Created(c, map[string]interface{}{"job_id": newID})
}

// Clear removes the caller's finished jobs, or every idle one with ?all=true.
func (h *Handler) Clear(c *ginext.Context) {
	all, _ := strconv.ParseBool(c.Query("all"))
	respond.OK(c, map[string]interface{}{"removed": h.service.ClearJobs(middleware.Owner(c), all)})
}

func fail(c *ginext.Context, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, export.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, export.ErrAlreadyProcessing),
		errors.Is(err, export.ErrJobBusy),
		errors.Is(err, export.ErrJobNotFailed),
		errors.Is(err, editorsvc.ErrNoResult):
		status = http.StatusConflict
	case errors.Is(err, editorsvc.ErrServiceClosed):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	}
	respond.Fail(c, status, err)
}
