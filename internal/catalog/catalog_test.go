package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/platformsync"
	"github.com/edusync/platform-sync/internal/records"
	"github.com/edusync/platform-sync/pkg/metrics"
)

// fakeSyncer records which platforms each call would sync.
type fakeSyncer struct {
	synced  [][]int64
	deleted []int64
	err     error
}

func (f *fakeSyncer) Delete(ctx context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func (f *fakeSyncer) SyncAffectedByUser(ctx context.Context, u *models.User) error {
	return f.SyncPlatforms(ctx, platformsync.AffectedPlatformIDs(u.Courses))
}

func (f *fakeSyncer) SyncAffectedByCourses(ctx context.Context, courses []models.Course) error {
	return f.SyncPlatforms(ctx, platformsync.AffectedPlatformIDs(courses))
}

func (f *fakeSyncer) SyncPlatforms(ctx context.Context, ids []int64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	f.synced = append(f.synced, platformsync.AffectedPlatformIDs(coursesOwnedBy(ids)))
	return f.err
}

// coursesOwnedBy turns platform ids into courses so AffectedPlatformIDs can sort and dedupe them.
func coursesOwnedBy(ids []int64) []models.Course {
	out := make([]models.Course, 0, len(ids))
	for _, id := range ids {
		out = append(out, models.Course{PlatformID: models.Int64Ptr(id)})
	}
	return out
}

type fakePlatforms struct {
	nameTaken bool
	write     *records.PlatformWrite
	deleteErr error
	created   bool
}

func (f *fakePlatforms) LoadPlatform(ctx context.Context, id int64) (*models.Platform, error) {
	return &models.Platform{ID: id}, nil
}

func (f *fakePlatforms) ListPlatforms(ctx context.Context, page, size int) ([]models.Platform, error) {
	return nil, nil
}

func (f *fakePlatforms) PlatformNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return f.nameTaken, nil
}

func (f *fakePlatforms) CreatePlatform(ctx context.Context, name string, courseIDs []int64) (*records.PlatformWrite, error) {
	f.created = true
	return f.write, nil
}

func (f *fakePlatforms) UpdatePlatform(ctx context.Context, id int64, name string, courseIDs []int64) (*records.PlatformWrite, error) {
	return f.write, nil
}

func (f *fakePlatforms) DeletePlatform(ctx context.Context, id int64) error {
	return f.deleteErr
}

func TestPlatformCreate_SyncsNewAndPreviousOwners(t *testing.T) {
	store := &fakePlatforms{write: &records.PlatformWrite{
		Platform: &models.Platform{ID: 5, Name: "P"},
		Previous: []models.Course{
			{ID: 1, PlatformID: models.Int64Ptr(2)},
			{ID: 2},
		},
	}}
	sync := &fakeSyncer{}
	svc := NewPlatformService(store, sync)

	p, err := svc.Create(context.Background(), PlatformInput{Name: "P", CourseIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.Equal(t, int64(5), p.ID)
	require.Equal(t, [][]int64{{2, 5}}, sync.synced)
}

func TestPlatformCreate_DuplicateName(t *testing.T) {
	store := &fakePlatforms{nameTaken: true}
	sync := &fakeSyncer{}
	_, err := NewPlatformService(store, sync).Create(context.Background(), PlatformInput{Name: "P"})
	require.ErrorIs(t, err, models.ErrAlreadyExists)
	require.False(t, store.created)
	require.Empty(t, sync.synced)
}

func TestPlatformCreate_BlankName(t *testing.T) {
	_, err := NewPlatformService(&fakePlatforms{}, &fakeSyncer{}).Create(context.Background(), PlatformInput{Name: "  "})
	require.ErrorIs(t, err, models.ErrValidation)
}

func TestPlatformDelete_RemovesDocument(t *testing.T) {
	sync := &fakeSyncer{}
	require.NoError(t, NewPlatformService(&fakePlatforms{}, sync).Delete(context.Background(), 3))
	require.Equal(t, []int64{3}, sync.deleted)

	sync = &fakeSyncer{}
	err := NewPlatformService(&fakePlatforms{deleteErr: models.ErrNotFound}, sync).Delete(context.Background(), 3)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.Empty(t, sync.deleted)
}

func TestSyncFailureDoesNotFailMutation(t *testing.T) {
	store := &fakePlatforms{write: &records.PlatformWrite{Platform: &models.Platform{ID: 1}}}
	sync := &fakeSyncer{err: &platformsync.BatchError{Failures: []*platformsync.SyncError{
		{PlatformID: 1, Op: platformsync.OpUpsert, Err: errors.New("mongo down")},
	}}}
	drift := metrics.DriftDetected.WithLabelValues("platform.update")
	before := testutil.ToFloat64(drift)

	p, err := NewPlatformService(store, sync).Update(context.Background(), 1, PlatformInput{Name: "P"})
	require.NoError(t, err)
	require.NotNil(t, p)
	require.Equal(t, before+1, testutil.ToFloat64(drift))
}

func TestSyncSurvivesCanceledRequest(t *testing.T) {
	store := &fakePlatforms{write: &records.PlatformWrite{Platform: &models.Platform{ID: 1}}}
	sync := &fakeSyncer{}
	ctx, cancel := context.WithCancel(context.Background())
	svc := NewPlatformService(store, sync)
	cancel()

	// the fake store ignores ctx; the sync must still run after commit
	_, err := svc.Update(ctx, 1, PlatformInput{Name: "P"})
	require.NoError(t, err)
	require.Equal(t, [][]int64{{1}}, sync.synced)
}

type fakeCourses struct {
	courses map[int64]models.Course
	next    int64
}

func newFakeCourses(cs ...models.Course) *fakeCourses {
	f := &fakeCourses{courses: map[int64]models.Course{}, next: 100}
	for _, c := range cs {
		f.courses[c.ID] = c
	}
	return f
}

func (f *fakeCourses) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	c, ok := f.courses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCourses) ListCourses(ctx context.Context, page, size int) ([]models.Course, error) {
	return nil, nil
}

func (f *fakeCourses) CourseTitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	for _, c := range f.courses {
		if c.Title == title && c.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCourses) CreateCourse(ctx context.Context, c models.Course) (*models.Course, error) {
	f.next++
	c.ID = f.next
	f.courses[c.ID] = c
	return &c, nil
}

func (f *fakeCourses) UpdateCourse(ctx context.Context, c models.Course) (*models.Course, error) {
	f.courses[c.ID] = c
	return &c, nil
}

func (f *fakeCourses) DeleteCourse(ctx context.Context, id int64) error {
	delete(f.courses, id)
	return nil
}

func TestCourseUpdate_MoveSyncsBothPlatforms(t *testing.T) {
	store := newFakeCourses(models.Course{ID: 1, Title: "C", PlatformID: models.Int64Ptr(4)})
	sync := &fakeSyncer{}
	svc := NewCourseService(store, sync)

	c, err := svc.Update(context.Background(), 1, CourseInput{Title: "C", PlatformID: models.Int64Ptr(2)})
	require.NoError(t, err)
	require.Equal(t, int64(2), *c.PlatformID)
	require.Equal(t, [][]int64{{2, 4}}, sync.synced)
}

func TestCourseCreate_OrphanSyncsNothing(t *testing.T) {
	sync := &fakeSyncer{}
	_, err := NewCourseService(newFakeCourses(), sync).Create(context.Background(), CourseInput{Title: "Loose"})
	require.NoError(t, err)
	require.Equal(t, [][]int64{{}}, sync.synced)
}

func TestCourseCreate_DuplicateTitle(t *testing.T) {
	store := newFakeCourses(models.Course{ID: 1, Title: "C"})
	_, err := NewCourseService(store, &fakeSyncer{}).Create(context.Background(), CourseInput{Title: "C"})
	require.ErrorIs(t, err, models.ErrAlreadyExists)
}

func TestCourseDelete_SyncsFormerOwner(t *testing.T) {
	store := newFakeCourses(models.Course{ID: 1, Title: "C", PlatformID: models.Int64Ptr(9)})
	sync := &fakeSyncer{}
	require.NoError(t, NewCourseService(store, sync).Delete(context.Background(), 1))
	require.Equal(t, [][]int64{{9}}, sync.synced)
	_, err := store.GetCourse(context.Background(), 1)
	require.ErrorIs(t, err, models.ErrNotFound)
}

type fakeUsers struct {
	user       *models.User
	write      *records.UserWrite
	emailTaken bool
	deleted    bool
	loadedAt   int
	calls      int
	// updateIDs is the courseIDs argument of the last UpdateUser call.
	updateIDs []int64
}

func (f *fakeUsers) GetUser(ctx context.Context, id int64) (*models.User, error) {
	f.calls++
	f.loadedAt = f.calls
	if f.user == nil || f.deleted {
		return nil, models.ErrNotFound
	}
	u := *f.user
	return &u, nil
}

func (f *fakeUsers) ListUsers(ctx context.Context, page, size int) ([]models.User, error) {
	return nil, nil
}

func (f *fakeUsers) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	return f.emailTaken, nil
}

func (f *fakeUsers) CreateUser(ctx context.Context, p records.UserParams, courseIDs []int64) (*models.User, error) {
	return f.user, nil
}

func (f *fakeUsers) UpdateUser(ctx context.Context, id int64, p records.UserParams, courseIDs []int64) (*records.UserWrite, error) {
	f.updateIDs = courseIDs
	return f.write, nil
}

func (f *fakeUsers) ReplaceEnrollments(ctx context.Context, id int64, courseIDs []int64) (*records.UserWrite, error) {
	return f.write, nil
}

func (f *fakeUsers) DeleteUser(ctx context.Context, id int64) error {
	f.calls++
	f.deleted = true
	return nil
}

func TestUserDelete_CapturesBeforeDelete(t *testing.T) {
	store := &fakeUsers{user: &models.User{ID: 7, Courses: []models.Course{
		{ID: 1, PlatformID: models.Int64Ptr(3)},
		{ID: 2, PlatformID: models.Int64Ptr(1)},
		{ID: 3, PlatformID: models.Int64Ptr(3)},
	}}}
	sync := &fakeSyncer{}

	require.NoError(t, NewUserService(store, sync).Delete(context.Background(), 7))
	require.Equal(t, 1, store.loadedAt)
	require.True(t, store.deleted)
	require.Equal(t, [][]int64{{1, 3}}, sync.synced)
}

func TestUserReplaceCourses_SyncsUnion(t *testing.T) {
	store := &fakeUsers{write: &records.UserWrite{
		Previous: []models.Course{{ID: 1, PlatformID: models.Int64Ptr(1)}},
		User:     &models.User{ID: 7, Courses: []models.Course{{ID: 2, PlatformID: models.Int64Ptr(2)}}},
	}}
	sync := &fakeSyncer{}

	u, err := NewUserService(store, sync).ReplaceCourses(context.Background(), 7, []int64{2})
	require.NoError(t, err)
	require.Equal(t, int64(7), u.ID)
	require.Equal(t, [][]int64{{1, 2}}, sync.synced)
}

func TestUserCreate_Validation(t *testing.T) {
	svc := NewUserService(&fakeUsers{}, &fakeSyncer{})
	_, err := svc.Create(context.Background(), UserInput{Name: "U", Email: "not-an-email"})
	require.ErrorIs(t, err, models.ErrValidation)

	svc = NewUserService(&fakeUsers{emailTaken: true}, &fakeSyncer{})
	_, err = svc.Create(context.Background(), UserInput{Name: "U", Email: "u@x.io"})
	require.ErrorIs(t, err, models.ErrAlreadyExists)
}

func TestUserCreate_SyncsEnrolledPlatforms(t *testing.T) {
	store := &fakeUsers{user: &models.User{ID: 1, Courses: []models.Course{
		{ID: 1, PlatformID: models.Int64Ptr(4)},
		{ID: 2},
	}}}
	sync := &fakeSyncer{}
	_, err := NewUserService(store, sync).Create(context.Background(), UserInput{Name: "U", Email: "u@x.io", CourseIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.Equal(t, [][]int64{{4}}, sync.synced)
}

func TestUserUpdate_FieldChangeSyncsEnrolledPlatforms(t *testing.T) {
	courses := []models.Course{
		{ID: 1, PlatformID: models.Int64Ptr(5)},
		{ID: 2, PlatformID: models.Int64Ptr(3)},
		{ID: 3},
	}
	store := &fakeUsers{write: &records.UserWrite{
		Previous: courses,
		User:     &models.User{ID: 7, Name: "Renamed", Email: "new@x.io", Courses: courses},
	}}
	sync := &fakeSyncer{}

	u, err := NewUserService(store, sync).Update(context.Background(), 7, UserInput{Name: "Renamed", Email: "new@x.io"})
	require.NoError(t, err)
	require.Equal(t, "Renamed", u.Name)
	// no courseIds keeps the enrollments as they are
	require.Nil(t, store.updateIDs)
	require.Equal(t, [][]int64{{3, 5}}, sync.synced)
}

func TestUserUpdate_EmptyCoursesSyncsPlatformsLeft(t *testing.T) {
	store := &fakeUsers{write: &records.UserWrite{
		Previous: []models.Course{{ID: 1, PlatformID: models.Int64Ptr(4)}, {ID: 2, PlatformID: models.Int64Ptr(6)}},
		User:     &models.User{ID: 7, Name: "U", Email: "u@x.io", Courses: []models.Course{}},
	}}
	sync := &fakeSyncer{}

	_, err := NewUserService(store, sync).Update(context.Background(), 7, UserInput{Name: "U", Email: "u@x.io", CourseIDs: []int64{}})
	require.NoError(t, err)
	require.NotNil(t, store.updateIDs)
	require.Empty(t, store.updateIDs)
	require.Equal(t, [][]int64{{4, 6}}, sync.synced)
}

func TestUserUpdate_EmailTaken(t *testing.T) {
	store := &fakeUsers{emailTaken: true}
	sync := &fakeSyncer{}

	_, err := NewUserService(store, sync).Update(context.Background(), 7, UserInput{Name: "U", Email: "u@x.io"})
	require.ErrorIs(t, err, models.ErrAlreadyExists)
	require.Nil(t, store.updateIDs)
	require.Empty(t, sync.synced)
}
