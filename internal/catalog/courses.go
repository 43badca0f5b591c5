package catalog

import (
	"context"

	"github.com/edusync/platform-sync/internal/models"
)

// CourseStore is the record store surface used by CourseService.
type CourseStore interface {
	GetCourse(ctx context.Context, id int64) (*models.Course, error)
	ListCourses(ctx context.Context, page, size int) ([]models.Course, error)
	CourseTitleExists(ctx context.Context, title string, excludeID int64) (bool, error)
	CreateCourse(ctx context.Context, c models.Course) (*models.Course, error)
	UpdateCourse(ctx context.Context, c models.Course) (*models.Course, error)
	DeleteCourse(ctx context.Context, id int64) error
}

// CourseInput is the writable shape of a course. A nil PlatformID leaves the
// course outside every platform.
type CourseInput struct {
	Title      string
	PlatformID *int64
}

type CourseService struct {
	store CourseStore
	sync  Syncer
}

func NewCourseService(store CourseStore, sync Syncer) *CourseService {
	return &CourseService{store: store, sync: sync}
}

func (s *CourseService) Get(ctx context.Context, id int64) (*models.Course, error) {
	return s.store.GetCourse(ctx, id)
}

func (s *CourseService) List(ctx context.Context, page, size int) ([]models.Course, error) {
	return s.store.ListCourses(ctx, page, size)
}

func (s *CourseService) Create(ctx context.Context, in CourseInput) (*models.Course, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	if err := s.checkTitle(ctx, in.Title, 0); err != nil {
		return nil, err
	}
	c, err := s.store.CreateCourse(ctx, models.Course{Title: in.Title, PlatformID: in.PlatformID})
	if err != nil {
		return nil, err
	}
	reportSync("course.create", s.sync.SyncAffectedByCourses(afterCommit(ctx), []models.Course{*c}))
	return c, nil
}

// Update changes title and owner. When the course moves, both the platform
// it left and the one it joined are synced.
func (s *CourseService) Update(ctx context.Context, id int64, in CourseInput) (*models.Course, error) {
	if err := required("title", in.Title); err != nil {
		return nil, err
	}
	before, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.checkTitle(ctx, in.Title, id); err != nil {
		return nil, err
	}
	c, err := s.store.UpdateCourse(ctx, models.Course{ID: id, Title: in.Title, PlatformID: in.PlatformID})
	if err != nil {
		return nil, err
	}
	reportSync("course.update", s.sync.SyncAffectedByCourses(afterCommit(ctx), []models.Course{*before, *c}))
	return c, nil
}

// Delete removes the course and resyncs the platform that owned it.
func (s *CourseService) Delete(ctx context.Context, id int64) error {
	before, err := s.store.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteCourse(ctx, id); err != nil {
		return err
	}
	reportSync("course.delete", s.sync.SyncAffectedByCourses(afterCommit(ctx), []models.Course{*before}))
	return nil
}

func (s *CourseService) checkTitle(ctx context.Context, title string, excludeID int64) error {
	taken, err := s.store.CourseTitleExists(ctx, title, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return conflict("course", "title", title)
	}
	return nil
}
