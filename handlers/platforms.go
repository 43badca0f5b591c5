package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusync/platform-sync/internal/catalog"
	"github.com/edusync/platform-sync/internal/models"
)

// PlatformService is implemented by *catalog.PlatformService.
type PlatformService interface {
	Get(ctx context.Context, id int64) (*models.Platform, error)
	List(ctx context.Context, page, size int) ([]models.Platform, error)
	Create(ctx context.Context, in catalog.PlatformInput) (*models.Platform, error)
	Update(ctx context.Context, id int64, in catalog.PlatformInput) (*models.Platform, error)
	Delete(ctx context.Context, id int64) error
}

type platformRequest struct {
	Name      string  `json:"name" binding:"required"`
	CourseIDs []int64 `json:"courseIds"`
}

type PlatformHandler struct {
	svc PlatformService
}

func NewPlatformHandler(svc PlatformService) *PlatformHandler {
	return &PlatformHandler{svc: svc}
}

// Register mounts reads on public and writes on protected.
func (h *PlatformHandler) Register(public, protected *gin.RouterGroup) {
	public.GET("/platforms", h.List)
	public.GET("/platforms/:id", h.Get)
	protected.POST("/platforms", h.Create)
	protected.PUT("/platforms/:id", h.Update)
	protected.DELETE("/platforms/:id", h.Delete)
}

func (h *PlatformHandler) List(c *gin.Context) {
	page, size := pageQuery(c)
	list, err := h.svc.List(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platforms", list)
}

func (h *PlatformHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platform", p)
}

func (h *PlatformHandler) Create(c *gin.Context) {
	var req platformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.Create(c.Request.Context(), catalog.PlatformInput{Name: req.Name, CourseIDs: req.CourseIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "platform created", p)
}

func (h *PlatformHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req platformRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := h.svc.Update(c.Request.Context(), id, catalog.PlatformInput{Name: req.Name, CourseIDs: req.CourseIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platform updated", p)
}

func (h *PlatformHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platform deleted", nil)
}
