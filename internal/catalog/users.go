package catalog

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/platformsync"
	"github.com/edusync/platform-sync/internal/records"
)

// UserStore is the record store surface used by UserService.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, page, size int) ([]models.User, error)
	EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
	CreateUser(ctx context.Context, p records.UserParams, courseIDs []int64) (*models.User, error)
	UpdateUser(ctx context.Context, id int64, p records.UserParams, courseIDs []int64) (*records.UserWrite, error)
	ReplaceEnrollments(ctx context.Context, id int64, courseIDs []int64) (*records.UserWrite, error)
	DeleteUser(ctx context.Context, id int64) error
}

// UserInput is the writable shape of a user. A nil CourseIDs on update keeps
// the current enrollments.
type UserInput struct {
	Name      string
	Email     string
	CourseIDs []int64
}

type UserService struct {
	store UserStore
	sync  Syncer
}

func NewUserService(store UserStore, sync Syncer) *UserService {
	return &UserService{store: store, sync: sync}
}

func (s *UserService) Get(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUser(ctx, id)
}

func (s *UserService) List(ctx context.Context, page, size int) ([]models.User, error) {
	return s.store.ListUsers(ctx, page, size)
}

func (s *UserService) Create(ctx context.Context, in UserInput) (*models.User, error) {
	if err := validateUser(in); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, in.Email, 0); err != nil {
		return nil, err
	}
	u, err := s.store.CreateUser(ctx, records.UserParams{Name: in.Name, Email: in.Email}, in.CourseIDs)
	if err != nil {
		return nil, err
	}
	reportSync("user.create", s.sync.SyncAffectedByUser(afterCommit(ctx), u))
	return u, nil
}

// Update overwrites the user's fields. A name or email change shows in every
// platform the user is enrolled on; a course change also reaches the platforms
// the user left.
func (s *UserService) Update(ctx context.Context, id int64, in UserInput) (*models.User, error) {
	if err := validateUser(in); err != nil {
		return nil, err
	}
	if err := s.checkEmail(ctx, in.Email, id); err != nil {
		return nil, err
	}
	w, err := s.store.UpdateUser(ctx, id, records.UserParams{Name: in.Name, Email: in.Email}, in.CourseIDs)
	if err != nil {
		return nil, err
	}
	s.syncUnion(ctx, "user.update", w)
	return w.User, nil
}

// ReplaceCourses makes courseIDs exactly the user's enrollments. Platforms
// owning an old or a new course are synced.
func (s *UserService) ReplaceCourses(ctx context.Context, id int64, courseIDs []int64) (*models.User, error) {
	if courseIDs == nil {
		courseIDs = []int64{}
	}
	w, err := s.store.ReplaceEnrollments(ctx, id, courseIDs)
	if err != nil {
		return nil, err
	}
	s.syncUnion(ctx, "user.enrollments", w)
	return w.User, nil
}

// Delete removes the user. The affected platforms are captured before the
// delete, since the enrollments are gone afterwards, and synced once it commits.
func (s *UserService) Delete(ctx context.Context, id int64) error {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	affected := platformsync.AffectedPlatformIDs(u.Courses)
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	reportSync("user.delete", s.sync.SyncPlatforms(afterCommit(ctx), affected))
	return nil
}

func (s *UserService) syncUnion(ctx context.Context, trigger string, w *records.UserWrite) {
	union := make([]models.Course, 0, len(w.Previous)+len(w.User.Courses))
	union = append(union, w.Previous...)
	union = append(union, w.User.Courses...)
	reportSync(trigger, s.sync.SyncAffectedByCourses(afterCommit(ctx), union))
}

func (s *UserService) checkEmail(ctx context.Context, email string, excludeID int64) error {
	taken, err := s.store.EmailExists(ctx, email, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return conflict("user", "email", email)
	}
	return nil
}

func validateUser(in UserInput) error {
	if err := required("name", in.Name); err != nil {
		return err
	}
	if err := required("email", in.Email); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("email %q is invalid: %w", in.Email, models.ErrValidation)
	}
	return nil
}
