// Package service serves reads of platform data straight from the projection,
// so no relational join runs on the read path.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/projection"
	"github.com/edusync/platform-sync/internal/projection/repository"
	"github.com/edusync/platform-sync/pkg/logger"
)

// Reader loads one platform document.
type Reader interface {
	Get(ctx context.Context, id string) (*projection.PlatformDocument, error)
}

// CourseView is a course of a platform with its enrolled users.
type CourseView struct {
	ID    int64      `json:"id"`
	Title string     `json:"title"`
	Users []UserView `json:"users"`
}

type UserView struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PlatformUser is a distinct user of a platform and the platform courses it is enrolled in.
type PlatformUser struct {
	UserView
	CourseIDs []int64 `json:"courseIds"`
}

type Service struct {
	docs Reader
}

func New(docs Reader) *Service {
	return &Service{docs: docs}
}

func (s *Service) document(ctx context.Context, platformID int64) (*projection.PlatformDocument, error) {
	doc, err := s.docs.Get(ctx, projection.DocumentID(platformID))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("platform document %d: %w", platformID, models.ErrNotFound)
		}
		return nil, err
	}
	return doc, nil
}

// Courses lists the platform's courses as stored in its document.
func (s *Service) Courses(ctx context.Context, platformID int64) ([]CourseView, error) {
	doc, err := s.document(ctx, platformID)
	if err != nil {
		return nil, err
	}
	out := make([]CourseView, 0, len(doc.Courses))
	for _, c := range doc.Courses {
		id, ok := parseID(doc.ID, "course", c.ID)
		if !ok {
			continue
		}
		users := make([]UserView, 0, len(c.EnrolledUsers))
		for _, u := range c.EnrolledUsers {
			if v, ok := userView(doc.ID, u); ok {
				users = append(users, v)
			}
		}
		out = append(out, CourseView{ID: id, Title: c.Title, Users: users})
	}
	return out, nil
}

// Users lists each user enrolled on the platform once, in order of first
// appearance, with the ids of the platform courses it takes.
func (s *Service) Users(ctx context.Context, platformID int64) ([]PlatformUser, error) {
	doc, err := s.document(ctx, platformID)
	if err != nil {
		return nil, err
	}
	index := map[int64]int{}
	out := []PlatformUser{}
	for _, c := range doc.Courses {
		courseID, ok := parseID(doc.ID, "course", c.ID)
		if !ok {
			continue
		}
		for _, u := range c.EnrolledUsers {
			v, ok := userView(doc.ID, u)
			if !ok {
				continue
			}
			i, seen := index[v.ID]
			if !seen {
				i = len(out)
				index[v.ID] = i
				out = append(out, PlatformUser{UserView: v, CourseIDs: []int64{}})
			}
			out[i].CourseIDs = append(out[i].CourseIDs, courseID)
		}
	}
	return out, nil
}

func userView(docID string, u projection.UserEmbed) (UserView, bool) {
	id, ok := parseID(docID, "user", u.ID)
	if !ok {
		return UserView{}, false
	}
	return UserView{ID: id, Name: u.Name, Email: u.Email}, true
}

func parseID(docID, kind, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		logger.Warnf("projection: document %s has unparsable %s id %q, skipped", docID, kind, raw)
		return 0, false
	}
	return id, true
}
