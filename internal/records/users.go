package records

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/edusync/platform-sync/internal/database"
	"github.com/edusync/platform-sync/internal/models"
)

// UserWrite is the outcome of a user update or enrollment replacement.
type UserWrite struct {
	User *models.User
	// Previous is the user's course set before the write.
	Previous []models.Course
}

// UserParams are the writable fields of a user.
type UserParams struct {
	Name  string
	Email string
}

// GetUser returns the user with its enrolled courses.
func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	return getUser(ctx, s.db, id, false)
}

func getUser(ctx context.Context, q database.Querier, id int64, lock bool) (*models.User, error) {
	b := psql.Select("id", "name", "email").From("users").Where(squirrel.Eq{"id": id})
	if lock {
		b = b.Suffix("FOR UPDATE")
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	u := &models.User{}
	if err := q.QueryRow(ctx, query, args...).Scan(&u.ID, &u.Name, &u.Email); err != nil {
		return nil, mapError(err, "user", id)
	}
	u.Courses, err = enrolledCourses(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func enrolledCourses(ctx context.Context, q database.Querier, userID int64) ([]models.Course, error) {
	query, args, err := psql.Select("c.id", "c.title", "c.platform_id").
		From("courses c").
		Join("user_course uc ON uc.course_id = c.id").
		Where(squirrel.Eq{"uc.user_id": userID}).
		OrderBy("c.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("courses of user %d: %w", userID, err)
	}
	return scanCourses(rows)
}

// ListUsers returns one page of users with their courses, in two queries.
func (s *Store) ListUsers(ctx context.Context, page, size int) ([]models.User, error) {
	limit, offset := Page(page, size)
	query, args, err := psql.Select("id", "name", "email").From("users").OrderBy("id").Limit(limit).Offset(offset).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	users := []models.User{}
	index := map[int64]int{}
	ids := []int64{}
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			rows.Close()
			return nil, err
		}
		u.Courses = []models.Course{}
		index[u.ID] = len(users)
		ids = append(ids, u.ID)
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return users, nil
	}

	query, args, err = psql.Select("uc.user_id", "c.id", "c.title", "c.platform_id").
		From("user_course uc").
		Join("courses c ON c.id = uc.course_id").
		Where("uc.user_id = ANY(?)", ids).
		OrderBy("uc.user_id", "c.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	crows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list user courses: %w", err)
	}
	defer crows.Close()
	for crows.Next() {
		var userID int64
		var c models.Course
		if err := crows.Scan(&userID, &c.ID, &c.Title, &c.PlatformID); err != nil {
			return nil, err
		}
		if i, ok := index[userID]; ok {
			users[i].Courses = append(users[i].Courses, c)
		}
	}
	return users, crows.Err()
}

// EmailExists reports whether a user other than excludeID has email.
func (s *Store) EmailExists(ctx context.Context, email string, excludeID int64) (bool, error) {
	b := psql.Select("1").From("users").Where(squirrel.Eq{"email": email})
	if excludeID != 0 {
		b = b.Where(squirrel.NotEq{"id": excludeID})
	}
	ok, err := exists(ctx, s.db, b)
	if err != nil {
		return false, fmt.Errorf("email exists: %w", err)
	}
	return ok, nil
}

// CreateUser inserts the user enrolled in courseIDs.
func (s *Store) CreateUser(ctx context.Context, p UserParams, courseIDs []int64) (*models.User, error) {
	var out *models.User
	err := s.inTx(ctx, func(q database.Querier) error {
		courses, err := requireCourses(ctx, q, courseIDs)
		if err != nil {
			return err
		}
		query, args, err := psql.Insert("users").
			Columns("name", "email").
			Values(p.Name, p.Email).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return err
		}
		var id int64
		if err := q.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			return mapError(err, "user", 0)
		}
		if err := enroll(ctx, q, id, courses); err != nil {
			return err
		}
		out = &models.User{ID: id, Name: p.Name, Email: p.Email, Courses: courses}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateUser overwrites name and email. When courseIDs is non-nil the
// enrollments are replaced as well.
func (s *Store) UpdateUser(ctx context.Context, id int64, p UserParams, courseIDs []int64) (*UserWrite, error) {
	var out UserWrite
	err := s.inTx(ctx, func(q database.Querier) error {
		before, err := getUser(ctx, q, id, true)
		if err != nil {
			return err
		}
		out.Previous = before.Courses

		query, args, err := psql.Update("users").
			Set("name", p.Name).
			Set("email", p.Email).
			Where(squirrel.Eq{"id": id}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := q.Exec(ctx, query, args...); err != nil {
			return mapError(err, "user", id)
		}

		courses := before.Courses
		if courseIDs != nil {
			if courses, err = replaceEnrollments(ctx, q, id, courseIDs); err != nil {
				return err
			}
		}
		out.User = &models.User{ID: id, Name: p.Name, Email: p.Email, Courses: courses}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceEnrollments makes courseIDs exactly the user's course set.
func (s *Store) ReplaceEnrollments(ctx context.Context, id int64, courseIDs []int64) (*UserWrite, error) {
	var out UserWrite
	err := s.inTx(ctx, func(q database.Querier) error {
		before, err := getUser(ctx, q, id, true)
		if err != nil {
			return err
		}
		out.Previous = before.Courses

		courses, err := replaceEnrollments(ctx, q, id, courseIDs)
		if err != nil {
			return err
		}
		before.Courses = courses
		out.User = before
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteUser removes the user and its enrollments.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	query, args, err := psql.Delete("users").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "user", id)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, models.ErrNotFound)
	}
	return nil
}

func replaceEnrollments(ctx context.Context, q database.Querier, userID int64, courseIDs []int64) ([]models.Course, error) {
	courses, err := requireCourses(ctx, q, courseIDs)
	if err != nil {
		return nil, err
	}
	query, args, err := psql.Delete("user_course").Where(squirrel.Eq{"user_id": userID}).ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return nil, mapError(err, "user", userID)
	}
	if err := enroll(ctx, q, userID, courses); err != nil {
		return nil, err
	}
	return courses, nil
}

func enroll(ctx context.Context, q database.Querier, userID int64, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	b := psql.Insert("user_course").Columns("user_id", "course_id")
	for _, c := range courses {
		b = b.Values(userID, c.ID)
	}
	query, args, err := b.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return mapError(err, "user", userID)
	}
	return nil
}

// LoadUsersByCourseIDs returns every user enrolled in at least one of
// courseIDs, each carrying all of its enrolled courses. It is a single
// round trip regardless of how many courses or users are involved.
func (s *Store) LoadUsersByCourseIDs(ctx context.Context, courseIDs []int64) ([]models.User, error) {
	if len(courseIDs) == 0 {
		return []models.User{}, nil
	}
	query, args, err := psql.Select("u.id", "u.name", "u.email", "c.id", "c.title", "c.platform_id").
		From("users u").
		Join("user_course uc ON uc.user_id = u.id").
		Join("courses c ON c.id = uc.course_id").
		Where("u.id IN (SELECT user_id FROM user_course WHERE course_id = ANY(?))", courseIDs).
		OrderBy("u.id", "c.id").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load users by course ids: %w", err)
	}
	return foldUsers(rows)
}

// foldUsers collapses (user, course) rows ordered by user id into users.
func foldUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()
	users := []models.User{}
	for rows.Next() {
		var u models.User
		var c models.Course
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &c.ID, &c.Title, &c.PlatformID); err != nil {
			return nil, err
		}
		if n := len(users); n > 0 && users[n-1].ID == u.ID {
			users[n-1].Courses = append(users[n-1].Courses, c)
			continue
		}
		u.Courses = []models.Course{c}
		users = append(users, u)
	}
	return users, rows.Err()
}
