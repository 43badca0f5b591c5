package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusync/platform-sync/internal/catalog"
	"github.com/edusync/platform-sync/internal/models"
)

// CourseService is implemented by *catalog.CourseService.
type CourseService interface {
	Get(ctx context.Context, id int64) (*models.Course, error)
	List(ctx context.Context, page, size int) ([]models.Course, error)
	Create(ctx context.Context, in catalog.CourseInput) (*models.Course, error)
	Update(ctx context.Context, id int64, in catalog.CourseInput) (*models.Course, error)
	Delete(ctx context.Context, id int64) error
}

type courseRequest struct {
	Title      string `json:"title" binding:"required"`
	PlatformID *int64 `json:"platformId"`
}

type CourseHandler struct {
	svc CourseService
}

func NewCourseHandler(svc CourseService) *CourseHandler {
	return &CourseHandler{svc: svc}
}

func (h *CourseHandler) Register(public, protected *gin.RouterGroup) {
	public.GET("/courses", h.List)
	public.GET("/courses/:id", h.Get)
	protected.POST("/courses", h.Create)
	protected.PUT("/courses/:id", h.Update)
	protected.DELETE("/courses/:id", h.Delete)
}

func (h *CourseHandler) List(c *gin.Context) {
	page, size := pageQuery(c)
	list, err := h.svc.List(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "courses", list)
}

func (h *CourseHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	course, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "course", course)
}

func (h *CourseHandler) Create(c *gin.Context) {
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	course, err := h.svc.Create(c.Request.Context(), catalog.CourseInput{Title: req.Title, PlatformID: req.PlatformID})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "course created", course)
}

func (h *CourseHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req courseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	course, err := h.svc.Update(c.Request.Context(), id, catalog.CourseInput{Title: req.Title, PlatformID: req.PlatformID})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "course updated", course)
}

func (h *CourseHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "course deleted", nil)
}
