package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/edusync/platform-sync/internal/projection/service"
)

// ProjectionReader is implemented by *service.Service.
type ProjectionReader interface {
	Courses(ctx context.Context, platformID int64) ([]service.CourseView, error)
	Users(ctx context.Context, platformID int64) ([]service.PlatformUser, error)
}

// ProjectionHandler serves platform reads from the document store.
type ProjectionHandler struct {
	reader ProjectionReader
}

func NewProjectionHandler(reader ProjectionReader) *ProjectionHandler {
	return &ProjectionHandler{reader: reader}
}

func (h *ProjectionHandler) Register(public *gin.RouterGroup) {
	public.GET("/platforms/:id/courses", h.Courses)
	public.GET("/platforms/:id/users", h.Users)
}

func (h *ProjectionHandler) Courses(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	courses, err := h.reader.Courses(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platform courses", courses)
}

func (h *ProjectionHandler) Users(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	users, err := h.reader.Users(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, "platform users", users)
}
