package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docflow/docflow/internal/document"
	"github.com/docflow/docflow/internal/document/repository"
	"github.com/docflow/docflow/internal/document/service"
	"github.com/docflow/docflow/internal/storage"
	"github.com/docflow/docflow/pkg/middleware"
)

// Handler exposes the workflow engine over HTTP. Attachments is optional;
// when nil the attachment endpoints respond with 503.
type Handler struct {
	svc         service.Service
	attachments *storage.MinIOStorage
}

func New(svc service.Service, attachments *storage.MinIOStorage) *Handler {
	return &Handler{svc: svc, attachments: attachments}
}

// Register mounts the document workflow routes. Every route requires an
// authenticated actor provided by the auth middleware.
func (h *Handler) Register(r *gin.Engine, auth gin.HandlerFunc) {
	g := r.Group("/api/documents", auth)
	g.GET("", h.List)
	g.POST("", h.Submit)
	g.GET("/stats", h.Stats)
	g.GET("/:id", h.Get)
	g.DELETE("/:id", h.Delete)
	g.POST("/:id/route", h.Route)
	g.POST("/:id/critique", h.Critique)
	g.POST("/:id/escalate", h.Escalate)
	g.POST("/:id/decide", h.Decide)
	g.GET("/:id/critiques", h.Critiques)
	g.GET("/:id/review-status", h.ReviewStatus)
	g.PUT("/:id/attachment", h.UploadAttachment)
	g.GET("/:id/attachment", h.AttachmentURL)
}

type submitRequest struct {
	Title         string `json:"title" binding:"required"`
	AttachmentKey string `json:"attachmentKey"`
}

func (h *Handler) Submit(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.Submit(c.Request.Context(), actor, req.Title, req.AttachmentKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

type routeRequest struct {
	Assignees []string `json:"assignees" binding:"required"`
	Comment   string   `json:"comment"`
}

func (h *Handler) Route(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	var req routeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.Route(c.Request.Context(), actor, c.Param("id"), req.Assignees, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type critiqueRequest struct {
	Verdict       document.Verdict `json:"verdict" binding:"required"`
	Score         *int             `json:"score"`
	Comment       string           `json:"comment"`
	AttachmentKey string           `json:"attachmentKey"`
}

func (h *Handler) Critique(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	var req critiqueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.Critique(c.Request.Context(), actor, c.Param("id"), req.Verdict, req.Score, req.Comment, req.AttachmentKey)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (h *Handler) Escalate(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	var req commentRequest
	_ = c.ShouldBindJSON(&req)
	doc, err := h.svc.Escalate(c.Request.Context(), actor, c.Param("id"), req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type decideRequest struct {
	Decision document.Decision `json:"decision" binding:"required"`
	Comment  string            `json:"comment"`
}

func (h *Handler) Decide(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.svc.Decide(c.Request.Context(), actor, c.Param("id"), req.Decision, req.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	if err := h.svc.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) Get(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	audit := c.Query("audit") == "true"
	doc, hist, err := h.svc.Get(c.Request.Context(), actor, c.Param("id"), audit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc, "history": hist})
}

func (h *Handler) Critiques(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	critiques, err := h.svc.Critiques(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, critiques)
}

func (h *Handler) ReviewStatus(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	status, err := h.svc.ReviewStatus(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (h *Handler) List(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	f := repository.Filter{Owner: c.Query("owner")}
	if s := c.Query("state"); s != "" {
		f.States = []document.State{document.State(s)}
	}
	docs, err := h.svc.List(c.Request.Context(), actor, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

func (h *Handler) Stats(c *gin.Context) {
	actor := middleware.ActorFromContext(c)
	stats, err := h.svc.Stats(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) UploadAttachment(c *gin.Context) {
	if h.attachments == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage not configured"})
		return
	}
	actor := middleware.ActorFromContext(c)
	id := c.Param("id")
	// visibility check doubles as existence check
	doc, _, err := h.svc.Get(c.Request.Context(), actor, id, false)
	if err != nil {
		writeError(c, err)
		return
	}
	size := c.Request.ContentLength
	// reviewers upload their critique report, everyone else the payload
	key := storage.DocumentKey(id)
	if actor.Role == document.RoleReviewer {
		key = storage.CritiqueKey(id, doc.Cycle, actor.ID)
	}
	if err := h.attachments.UploadFile(c.Request.Context(), key, c.Request.Body, size, c.ContentType()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "size": strconv.FormatInt(size, 10)})
}

func (h *Handler) AttachmentURL(c *gin.Context) {
	if h.attachments == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "attachment storage not configured"})
		return
	}
	actor := middleware.ActorFromContext(c)
	id := c.Param("id")
	if _, _, err := h.svc.Get(c.Request.Context(), actor, id, false); err != nil {
		writeError(c, err)
		return
	}
	url, err := h.attachments.GetPresignedURL(c.Request.Context(), storage.DocumentKey(id), 15*time.Minute)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attachment not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func writeError(c *gin.Context, err error) {
	kind := document.Kind(err)
	c.JSON(statusFor(kind), gin.H{"error": err.Error(), "code": kind})
}

func statusFor(kind string) int {
	switch kind {
	case "not_found":
		return http.StatusNotFound
	case "gone":
		return http.StatusGone
	case "forbidden", "not_assigned":
		return http.StatusForbidden
	case "conflict", "terminal_state", "duplicate_critique":
		return http.StatusConflict
	case "review_incomplete":
		return http.StatusUnprocessableEntity
	case "validation":
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
