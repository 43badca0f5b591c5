package records

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/edusync/platform-sync/internal/database"
	"github.com/edusync/platform-sync/internal/models"
)

// PlatformWrite is the outcome of a platform create or update.
type PlatformWrite struct {
	Platform *models.Platform
	// Previous holds every course the write touched, with the owner it had
	// before the write. Their owners may need a resync as well.
	Previous []models.Course
}

// LoadPlatform returns the platform with the courses it currently owns.
func (s *Store) LoadPlatform(ctx context.Context, id int64) (*models.Platform, error) {
	return loadPlatform(ctx, s.db, id)
}

func loadPlatform(ctx context.Context, q database.Querier, id int64) (*models.Platform, error) {
	query, args, err := psql.Select("id", "name").From("platforms").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p := &models.Platform{}
	if err := q.QueryRow(ctx, query, args...).Scan(&p.ID, &p.Name); err != nil {
		return nil, mapError(err, "platform", id)
	}
	p.Courses, err = ownedCourses(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func ownedCourses(ctx context.Context, q database.Querier, platformID int64) ([]models.Course, error) {
	query, args, err := psql.Select(courseColumns...).
		From("courses").
		Where(squirrel.Eq{"platform_id": platformID}).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("courses of platform %d: %w", platformID, err)
	}
	return scanCourses(rows)
}

// ListPlatformIDs returns every platform id in ascending order.
func (s *Store) ListPlatformIDs(ctx context.Context) ([]int64, error) {
	query, args, err := psql.Select("id").From("platforms").OrderBy("id").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list platform ids: %w", err)
	}
	defer rows.Close()
	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListPlatforms returns one page of platforms with their courses, in two queries.
func (s *Store) ListPlatforms(ctx context.Context, page, size int) ([]models.Platform, error) {
	limit, offset := Page(page, size)
	query, args, err := psql.Select("id", "name").From("platforms").OrderBy("id").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list platforms: %w", err)
	}
	platforms := []models.Platform{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var p models.Platform
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			rows.Close()
			return nil, err
		}
		p.Courses = []models.Course{}
		index[p.ID] = len(platforms)
		ids = append(ids, p.ID)
		platforms = append(platforms, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return platforms, nil
	}

	query, args, err = psql.Select(courseColumns...).
		From("courses").
		Where("platform_id = ANY(?)", ids).
		OrderBy("id").
		ToSql()
	if err != nil {
		return nil, err
	}
	crows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list platform courses: %w", err)
	}
	courses, err := scanCourses(crows)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if c.PlatformID == nil {
			continue
		}
		if i, ok := index[*c.PlatformID]; ok {
			platforms[i].Courses = append(platforms[i].Courses, c)
		}
	}
	return platforms, nil
}

// PlatformNameExists reports whether a platform other than excludeID is called name.
func (s *Store) PlatformNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	b := psql.Select("1").From("platforms").Where(squirrel.Eq{"name": name})
	if excludeID != 0 {
		b = b.Where(squirrel.NotEq{"id": excludeID})
	}
	ok, err := exists(ctx, s.db, b)
	if err != nil {
		return false, fmt.Errorf("platform name exists: %w", err)
	}
	return ok, nil
}

// CreatePlatform inserts the platform and claims courseIDs for it in one
// transaction. Unknown course ids fail with *models.MissingIDsError.
func (s *Store) CreatePlatform(ctx context.Context, name string, courseIDs []int64) (*PlatformWrite, error) {
	var out PlatformWrite
	err := s.inTx(ctx, func(q database.Querier) error {
		claimed, err := requireCourses(ctx, q, courseIDs)
		if err != nil {
			return err
		}

		query, args, err := psql.Insert("platforms").Columns("name").Values(name).Suffix("RETURNING id").ToSql()
		if err != nil {
			return err
		}
		var id int64
		if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return mapError(err, "platform", 0)
		}

		if err := claimCourses(ctx, q, id, claimed); err != nil {
			return err
		}
		out.Previous = claimed
		out.Platform, err = loadPlatform(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePlatform renames the platform and makes courseIDs exactly its owned set:
// listed courses are claimed, previously owned courses not listed are detached.
func (s *Store) UpdatePlatform(ctx context.Context, id int64, name string, courseIDs []int64) (*PlatformWrite, error) {
	var out PlatformWrite
	err := s.inTx(ctx, func(q database.Querier) error {
		query, args, err := psql.Update("platforms").
			Set("name", name).
			Where(squirrel.Eq{"id": id}).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		var got int64
		if err := q.QueryRow(ctx, query, args...).Scan(&got); err != nil {
			return mapError(err, "platform", id)
		}

		before, err := ownedCourses(ctx, q, id)
		if err != nil {
			return err
		}
		claimed, err := requireCourses(ctx, q, courseIDs)
		if err != nil {
			return err
		}

		keep := make([]int64, 0, len(claimed))
		for _, c := range claimed {
			keep = append(keep, c.ID)
		}
		query, args, err = psql.Update("courses").
			Set("platform_id", nil).
			Where(squirrel.Eq{"platform_id": id}).
			Where("NOT (id = ANY(?))", keep).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return mapError(err, "platform", id)
		}

		if err := claimCourses(ctx, q, id, claimed); err != nil {
			return err
		}
		out.Previous = mergeCourses(before, claimed)
		out.Platform, err = loadPlatform(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePlatform removes the platform; its courses and their enrollments cascade.
func (s *Store) DeletePlatform(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("platforms").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "platform", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("platform %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func claimCourses(ctx context.Context, q database.Querier, platformID int64, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	query, args, err := psql.Update("courses").
		Set("platform_id", platformID).
		Where("id = ANY(?)", ids).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return mapError(err, "platform", platformID)
	}
	return nil
}

// mergeCourses returns a followed by the courses of b not already in a.
func mergeCourses(a, b []models.Course) []models.Course {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]models.Course, 0, len(a)+len(b))
	for _, list := range [][]models.Course{a, b} {
		for _, c := range list {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
