// Package platformsync keeps the denormalized platform documents consistent
// with the relational record store.
//
// The Builder materializes one platform's document with a single batch read of
// enrolled users; the Orchestrator decides which platforms a mutation made stale
// and drives Builder plus document store for each of them.
package platformsync

import (
	"context"
	"fmt"
	"strconv"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/projection"
)

// UserLoader is the fan-out read the builder depends on: every user enrolled
// in at least one of the given courses, each with its enrolled courses.
type UserLoader interface {
	LoadUsersByCourseIDs(ctx context.Context, courseIDs []int64) ([]models.User, error)
}

// Builder computes a platform document. It performs no writes.
type Builder struct {
	users UserLoader
}

func NewBuilder(users UserLoader) *Builder {
	return &Builder{users: users}
}

// Build returns the complete document for p, whose Courses must be the courses
// it currently owns. It issues at most one UserLoader call whatever the number
// of courses or enrollments.
func (b *Builder) Build(ctx context.Context, p *models.Platform) (*projection.PlatformDocument, error) {
	owned := make(map[int64]struct{}, len(p.Courses))
	ids := make([]int64, 0, len(p.Courses))
	for _, c := range p.Courses {
		if _, dup := owned[c.ID]; dup {
			continue
		}
		owned[c.ID] = struct{}{}
		ids = append(ids, c.ID)
	}

	var byCourse map[int64][]projection.UserEmbed
	if len(ids) > 0 {
		users, err := b.users.LoadUsersByCourseIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("load enrolled users for platform %d: %w", p.ID, err)
		}
		byCourse = groupByCourse(users, owned)
	}

	courses := make([]projection.CourseEmbed, 0, len(ids))
	for _, c := range p.Courses {
		if _, ok := owned[c.ID]; !ok {
			continue
		}
		// emit each course once even if the input repeats it
		delete(owned, c.ID)
		enrolled := byCourse[c.ID]
		if enrolled == nil {
			enrolled = []projection.UserEmbed{}
		}
		courses = append(courses, projection.CourseEmbed{
			ID:            strconv.FormatInt(c.ID, 10),
			Title:         c.Title,
			EnrolledUsers: enrolled,
		})
	}

	return &projection.PlatformDocument{
		ID:      projection.DocumentID(p.ID),
		Name:    p.Name,
		Courses: courses,
	}, nil
}

// groupByCourse indexes users by the target courses they are enrolled in, in one
// pass over users and their enrollments. A user lands at most once per course.
func groupByCourse(users []models.User, target map[int64]struct{}) map[int64][]projection.UserEmbed {
	type pair struct{ course, user int64 }
	seen := make(map[pair]struct{})
	out := make(map[int64][]projection.UserEmbed, len(target))
	for _, u := range users {
		embed := projection.UserEmbed{
			ID:    strconv.FormatInt(u.ID, 10),
			Name:  u.Name,
			Email: u.Email,
		}
		for _, c := range u.Courses {
			if _, ok := target[c.ID]; !ok {
				continue
			}
			k := pair{course: c.ID, user: u.ID}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out[c.ID] = append(out[c.ID], embed)
		}
	}
	return out
}
