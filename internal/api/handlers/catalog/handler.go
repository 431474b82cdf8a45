package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/nano-editor/internal/adjust"
	"github.com/aliskhannn/nano-editor/internal/api/middleware"
	"github.com/aliskhannn/nano-editor/internal/api/request"
	"github.com/aliskhannn/nano-editor/internal/api/respond"
	"github.com/aliskhannn/nano-editor/internal/generation"
	"github.com/aliskhannn/nano-editor/internal/model"
	"github.com/aliskhannn/nano-editor/internal/notify"
	imagerepo "github.com/aliskhannn/nano-editor/internal/repository/image"
)

// service defines the read-mostly lookups the handlers rely on.
type service interface {
	ListImages(ctx context.Context, owner string, limit int) ([]model.StoredImage, error)
	Image(ctx context.Context, owner string, id uuid.UUID) (model.StoredImage, error)
	DeleteImage(ctx context.Context, owner string, id uuid.UUID) error
	Notifications() *notify.Center
}

// Handler serves the static catalogs, the image library and notifications.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Field describes one adjustment slider.
type Field struct {
	Name  string       `json:"name"`
	Range adjust.Range `json:"range"`
}

// Presets lists the named filters.
func (h *Handler) Presets(c *ginext.Context) {
	respond.OK(c, adjust.Presets())
}

// Fields lists the adjustment sliders and their ranges.
func (h *Handler) Fields(c *ginext.Context) {
	ranges := adjust.Fields()
	fields := make([]Field, 0, len(ranges))
	for _, name := range adjust.FieldNames() {
		fields = append(fields, Field{Name: name, Range: ranges[name]})
	}
	respond.OK(c, map[string]interface{}{
		"fields":   fields,
		"channels": model.Channels,
	})
}

// Formats lists the export encodings.
func (h *Handler) Formats(c *ginext.Context) {
	formats := make([]model.Format, 0, len(model.Formats))
	for _, f := range model.Formats {
		formats = append(formats, f)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i].Name < formats[j].Name })
	respond.OK(c, formats)
}

// AspectRatios lists the ratios a generation request accepts.
func (h *Handler) AspectRatios(c *ginext.Context) {
	respond.OK(c, generation.AspectRatios)
}

// Images lists the images recorded for the request owner.
func (h *Handler) Images(c *ginext.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	images, err := h.service.ListImages(c.Request.Context(), middleware.Owner(c), limit)
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to list images")
		respond.Fail(c, http.StatusInternalServerError, err)
		return
	}
	respond.OK(c, images)
}

// Image returns one image of the request owner.
func (h *Handler) Image(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	img, err := h.service.Image(c.Request.Context(), middleware.Owner(c), id)
	if err != nil {
		failImage(c, err)
		return
	}
	respond.OK(c, img)
}

// DeleteImage removes an image record together with its stored object.
func (h *Handler) DeleteImage(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteImage(c.Request.Context(), middleware.Owner(c), id); err != nil {
		failImage(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func failImage(c *ginext.Context, err error) {
	if errors.Is(err, imagerepo.ErrImageNotFound) {
		respond.Fail(c, http.StatusNotFound, err)
		return
	}

	zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("image request failed")
	respond.Fail(c, http.StatusInternalServerError, err)
}

// Notifications lists recent notifications, newest first.
func (h *Handler) Notifications(c *ginext.Context) {
	respond.OK(c, h.service.Notifications().List())
}

// DismissNotification removes one notification.
func (h *Handler) DismissNotification(c *ginext.Context) {
	id, ok := request.ID(c, "id")
	if !ok {
		return
	}
	if !h.service.Notifications().Dismiss(id) {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("notification %s not found", id))
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearNotifications removes every notification.
func (h *Handler) ClearNotifications(c *ginext.Context) {
	h.service.Notifications().Clear()
	c.Status(http.StatusNoContent)
}
