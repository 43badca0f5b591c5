package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusync/platform-sync/internal/catalog"
	"github.com/edusync/platform-sync/internal/models"
)

// UserService is implemented by *catalog.UserService.
type UserService interface {
	Get(ctx context.Context, id int64) (*models.User, error)
	List(ctx context.Context, page, size int) ([]models.User, error)
	Create(ctx context.Context, in catalog.UserInput) (*models.User, error)
	Update(ctx context.Context, id int64, in catalog.UserInput) (*models.User, error)
	ReplaceCourses(ctx context.Context, id int64, courseIDs []int64) (*models.User, error)
	Delete(ctx context.Context, id int64) error
}

type userRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
	// omitted keeps the current enrollments on update
	CourseIDs []int64 `json:"courseIds"`
}

type enrollmentRequest struct {
	CourseIDs []int64 `json:"courseIds" binding:"required"`
}

type UserHandler struct {
	svc UserService
}

func NewUserHandler(svc UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

func (h *UserHandler) Register(public, protected *gin.RouterGroup) {
	public.GET("/users", h.List)
	public.GET("/users/:id", h.Get)
	protected.POST("/users", h.Create)
	protected.PUT("/users/:id", h.Update)
	protected.PUT("/users/:id/courses", h.ReplaceCourses)
	protected.DELETE("/users/:id", h.Delete)
}

func (h *UserHandler) List(c *gin.Context) {
	page, size := pageQuery(c)
	list, err := h.svc.List(c.Request.Context(), page, size)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "users", list)
}

func (h *UserHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "user", u)
}

func (h *UserHandler) Create(c *gin.Context) {
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Create(c.Request.Context(), catalog.UserInput{Name: req.Name, Email: req.Email, CourseIDs: req.CourseIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, "user created", u)
}

func (h *UserHandler) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req userRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.Update(c.Request.Context(), id, catalog.UserInput{Name: req.Name, Email: req.Email, CourseIDs: req.CourseIDs})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "user updated", u)
}

func (h *UserHandler) ReplaceCourses(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req enrollmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	u, err := h.svc.ReplaceCourses(c.Request.Context(), id, req.CourseIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "enrollments replaced", u)
}

func (h *UserHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "user deleted", nil)
}
