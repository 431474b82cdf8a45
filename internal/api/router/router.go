package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/aliskhannn/nano-editor/internal/api/handlers/catalog"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/export"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/project"
	"github.com/aliskhannn/nano-editor/internal/api/handlers/session"
	"github.com/aliskhannn/nano-editor/internal/api/middleware"
)

// Handlers groups the HTTP handlers of every resource.
type Handlers struct {
	Session *session.Handler
	Export  *export.Handler
	Project *project.Handler
	Catalog *catalog.Handler
}

// Setup builds the gin engine with the CORS, logging, recovery and owner
// middleware and registers every route under /api.
func Setup(h Handlers) *ginext.Engine {
	r := ginext.New()

	r.Use(middleware.CORSMiddleware())
	r.Use(ginext.Logger())
	r.Use(ginext.Recovery())
	r.Use(middleware.OwnerMiddleware())

	api := r.Group("/api")

	s := h.Session
	api.POST("/sessions", s.Create)                              // new editing session
	api.GET("/sessions", s.List)                                 // sessions of the owner
	api.GET("/sessions/:id", s.Get)                              // session state
	api.DELETE("/sessions/:id", s.Delete)                        // drop session
	api.PUT("/sessions/:id/image", s.SetImage)                   // upload or link the primary image
	api.PUT("/sessions/:id/adjustments", s.SetAdjustments)       // replace every adjustment
	api.PUT("/sessions/:id/adjustments/:field", s.SetAdjustment) // set one slider
	api.PUT("/sessions/:id/hsl/:channel", s.SetHSL)              // set one HSL component
	api.PUT("/sessions/:id/grading", s.SetColorGrading)          // replace color grading
	api.PUT("/sessions/:id/filter", s.SetFilter)                 // select a named filter
	api.POST("/sessions/:id/reset", s.Reset)                     // default adjustments
	api.POST("/sessions/:id/undo", s.Undo)
	api.POST("/sessions/:id/redo", s.Redo)
	api.DELETE("/sessions/:id/history", s.ClearHistory)
	api.PUT("/sessions/:id/version", s.SelectVersion)              // show a generated version
	api.POST("/sessions/:id/references", s.AddReference)           // upload a reference image
	api.DELETE("/sessions/:id/references/:ref", s.RemoveReference) // detach a reference image
	api.POST("/sessions/:id/generate", s.Generate)                 // AI edit
	api.POST("/sessions/:id/exports", s.QueueExports)              // queue export jobs
	api.POST("/sessions/:id/exports/batch", s.SubmitBatch)         // export in the background
	api.POST("/sessions/:id/projects", s.SaveProject)              // save as project

	e := h.Export
	api.GET("/exports", e.List)
	api.POST("/exports/start", e.Start)
	api.DELETE("/exports", e.Clear)
	api.GET("/exports/:id", e.Get)
	api.GET("/exports/:id/download", e.Download)
	api.DELETE("/exports/:id", e.Delete)
	api.POST("/exports/:id/retry", e.Retry)

	p := h.Project
	api.GET("/projects", p.List)
	api.GET("/projects/:id", p.Get)
	api.PUT("/projects/:id", p.Update)
	api.DELETE("/projects/:id", p.Delete)
	api.POST("/projects/:id/open", p.Open)
	api.POST("/projects/:id/revisions/:rev/restore", p.Restore)

	c := h.Catalog
	api.GET("/presets", c.Presets)
	api.GET("/adjustments", c.Fields)
	api.GET("/formats", c.Formats)
	api.GET("/aspect-ratios", c.AspectRatios)
	api.GET("/images", c.Images)
	api.GET("/images/:id", c.Image)
	api.DELETE("/images/:id", c.DeleteImage) // drop the record and the stored object
	api.GET("/notifications", c.Notifications)
	api.DELETE("/notifications", c.ClearNotifications)
	api.DELETE("/notifications/:id", c.DismissNotification)

	return r
}
