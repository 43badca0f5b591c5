package records

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/edusync/platform-sync/internal/database"
	"github.com/edusync/platform-sync/internal/models"
)

var courseColumns = []string{"id", "title", "platform_id"}

// GetCourse returns a course by id or models.ErrNotFound.
func (s *Store) GetCourse(ctx context.Context, id int64) (*models.Course, error) {
	query, args, err := psql.Select(courseColumns...).From("courses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	var c models.Course
	if err := s.db.QueryRow(ctx, query, args...).Scan(&c.ID, &c.Title, &c.PlatformID); err != nil {
		return nil, mapError(err, "course", id)
	}
	return &c, nil
}

// findCoursesByIDs returns the existing courses among ids, ordered by id.
func findCoursesByIDs(ctx context.Context, q database.Querier, ids []int64) ([]models.Course, error) {
	query, args, err := psql.Select(courseColumns...).
		From("courses").
		Where("id = ANY(?)", ids).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find courses by ids: %w", err)
	}
	return scanCourses(rows)
}

// requireCourses loads ids and fails with *models.MissingIDsError when any is absent.
func requireCourses(ctx context.Context, q database.Querier, ids []int64) ([]models.Course, error) {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return []models.Course{}, nil
	}
	found, err := findCoursesByIDs(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(ids, found); len(missing) > 0 {
		return nil, &models.MissingIDsError{Entity: "course", IDs: missing}
	}
	return found, nil
}

// ListCourses returns one page of courses ordered by id.
func (s *Store) ListCourses(ctx context.Context, page, size int) ([]models.Course, error) {
	limit, offset := Page(page, size)
	query, args, err := psql.Select(courseColumns...).From("courses").OrderBy("id").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return scanCourses(rows)
}

// CourseTitleExists reports whether a course other than excludeID has title.
// Pass excludeID = 0 on create.
func (s *Store) CourseTitleExists(ctx context.Context, title string, excludeID int64) (bool, error) {
	b := psql.Select("1").From("courses").Where(squirrel.Eq{"title": title})
	if excludeID != 0 {
		b = b.Where(squirrel.NotEq{"id": excludeID})
	}
	ok, err := exists(ctx, s.db, b)
	if err != nil {
		return false, fmt.Errorf("course title exists: %w", err)
	}
	return ok, nil
}

// CreateCourse inserts c and returns it with its new id. A non-nil PlatformID
// must reference an existing platform.
func (s *Store) CreateCourse(ctx context.Context, c models.Course) (*models.Course, error) {
	query, args, err := psql.Insert("courses").
		Columns("title", "platform_id").
		Values(c.Title, c.PlatformID).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := s.db.QueryRow(ctx, query, args...).Scan(&c.ID); err != nil {
		return nil, mapError(err, "course", 0)
	}
	return &c, nil
}

// UpdateCourse overwrites title and owning platform of course c.ID.
func (s *Store) UpdateCourse(ctx context.Context, c models.Course) (*models.Course, error) {
	query, args, err := psql.Update("courses").
		Set("title", c.Title).
		Set("platform_id", c.PlatformID).
		Where(squirrel.Eq{"id": c.ID}).
		Suffix("RETURNING id, title, platform_id").
		ToSql()
	if err != nil {
		return nil, err
	}
	var out models.Course
	if err := s.db.QueryRow(ctx, query, args...).Scan(&out.ID, &out.Title, &out.PlatformID); err != nil {
		return nil, mapError(err, "course", c.ID)
	}
	return &out, nil
}

// DeleteCourse removes the course; enrollments go with it.
func (s *Store) DeleteCourse(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("courses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "course", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("course %d: %w", id, models.ErrNotFound)
	}
	return nil
}
