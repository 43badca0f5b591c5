package platformsync

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/projection"
	"github.com/edusync/platform-sync/internal/projection/repository"
)

// fakeRecords is an in-memory relational store that counts calls.
type fakeRecords struct {
	mu          sync.Mutex
	platforms   map[int64]string
	courses     map[int64]models.Course
	users       map[int64]models.User
	enrollments map[int64]map[int64]struct{} // user -> courses

	loadPlatformCalls int
	loadUsersCalls    int
	loadUsersErr      error
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{
		platforms:   map[int64]string{},
		courses:     map[int64]models.Course{},
		users:       map[int64]models.User{},
		enrollments: map[int64]map[int64]struct{}{},
	}
}

func (f *fakeRecords) addPlatform(id int64, name string) { f.platforms[id] = name }

func (f *fakeRecords) addCourse(id int64, title string, platformID *int64) {
	f.courses[id] = models.Course{ID: id, Title: title, PlatformID: platformID}
}

func (f *fakeRecords) addUser(id int64, name, email string, courseIDs ...int64) {
	f.users[id] = models.User{ID: id, Name: name, Email: email}
	f.enroll(id, courseIDs...)
}

func (f *fakeRecords) enroll(userID int64, courseIDs ...int64) {
	set := map[int64]struct{}{}
	for _, c := range courseIDs {
		set[c] = struct{}{}
	}
	f.enrollments[userID] = set
}

func (f *fakeRecords) deletePlatform(id int64) {
	delete(f.platforms, id)
	for cid, c := range f.courses {
		if c.PlatformID != nil && *c.PlatformID == id {
			delete(f.courses, cid)
			for _, set := range f.enrollments {
				delete(set, cid)
			}
		}
	}
}

func (f *fakeRecords) deleteUser(id int64) {
	delete(f.users, id)
	delete(f.enrollments, id)
}

// user returns the user with its current courses, as the record store would load it.
func (f *fakeRecords) user(id int64) *models.User {
	u := f.users[id]
	u.Courses = f.coursesOf(id)
	return &u
}

func (f *fakeRecords) coursesOf(userID int64) []models.Course {
	var out []models.Course
	for cid := range f.enrollments[userID] {
		if c, ok := f.courses[cid]; ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeRecords) LoadPlatform(ctx context.Context, id int64) (*models.Platform, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadPlatformCalls++
	name, ok := f.platforms[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	p := &models.Platform{ID: id, Name: name}
	for _, c := range f.courses {
		if c.PlatformID != nil && *c.PlatformID == id {
			p.Courses = append(p.Courses, c)
		}
	}
	sort.Slice(p.Courses, func(i, j int) bool { return p.Courses[i].ID < p.Courses[j].ID })
	return p, nil
}

func (f *fakeRecords) LoadUsersByCourseIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadUsersCalls++
	if f.loadUsersErr != nil {
		return nil, f.loadUsersErr
	}
	want := map[int64]struct{}{}
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []models.User
	for uid, set := range f.enrollments {
		hit := false
		for cid := range set {
			if _, ok := want[cid]; ok {
				hit = true
				break
			}
		}
		if hit {
			out = append(out, *f.user(uid))
		}
	}
	return out, nil
}

func (f *fakeRecords) ListPlatformIDs(ctx context.Context) ([]int64, error) {
	ids := make([]int64, 0, len(f.platforms))
	for id := range f.platforms {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeRecords) calls() int {
	return f.loadPlatformCalls + f.loadUsersCalls
}

// flakyDocs wraps a document store and fails upserts for selected ids.
type flakyDocs struct {
	*repository.MemoryRepo
	failUpsert map[string]bool
	upserts    []string
}

func (d *flakyDocs) Upsert(ctx context.Context, doc *projection.PlatformDocument) error {
	d.upserts = append(d.upserts, doc.ID)
	if d.failUpsert[doc.ID] {
		return errors.New("mongo unavailable")
	}
	return d.MemoryRepo.Upsert(ctx, doc)
}
