package records

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v2"
	"github.com/stretchr/testify/require"

	"github.com/edusync/platform-sync/internal/models"
	"github.com/edusync/platform-sync/internal/platformsync"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return New(mock), mock
}

func courseRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "title", "platform_id"})
}

func TestPage(t *testing.T) {
	limit, offset := Page(0, 0)
	require.Equal(t, uint64(DefaultPageSize), limit)
	require.Equal(t, uint64(0), offset)

	limit, offset = Page(3, 20)
	require.Equal(t, uint64(20), limit)
	require.Equal(t, uint64(60), offset)

	limit, offset = Page(-1, 1000)
	require.Equal(t, uint64(MaxPageSize), limit)
	require.Equal(t, uint64(0), offset)
}

func TestMapError(t *testing.T) {
	require.ErrorIs(t, mapError(pgx.ErrNoRows, "course", 1), models.ErrNotFound)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23505"}, "course", 1), models.ErrAlreadyExists)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23503"}, "course", 1), models.ErrNotFound)
	require.ErrorIs(t, mapError(&pgconn.PgError{Code: "23514"}, "course", 1), models.ErrValidation)
	require.ErrorIs(t, mapError(context.DeadlineExceeded, "course", 1), context.DeadlineExceeded)
	require.NoError(t, mapError(nil, "course", 1))

	other := errors.New("boom")
	err := mapError(other, "platform", 9)
	require.ErrorIs(t, err, other)
	require.EqualError(t, err, "platform 9: boom")
}

func TestLoadUsersByCourseIDs_SingleStatementAnySize(t *testing.T) {
	for _, n := range []int{1, 100} {
		t.Run(fmt.Sprintf("courses=%d", n), func(t *testing.T) {
			s, mock := newMockStore(t)
			ids := make([]int64, 0, n)
			rows := pgxmock.NewRows([]string{"id", "name", "email", "id", "title", "platform_id"})
			for i := 1; i <= n; i++ {
				ids = append(ids, int64(i))
				// every user is enrolled in its own course plus one foreign course
				email := fmt.Sprintf("u%d@x.io", i)
				rows.AddRow(int64(i), "u", email, int64(i), "c", models.Int64Ptr(1))
				rows.AddRow(int64(i), "u", email, int64(1000+i), "foreign", models.Int64Ptr(2))
			}
			mock.ExpectQuery("SELECT u.id, u.name, u.email, c.id, c.title, c.platform_id FROM users u").
				WithArgs(ids).
				WillReturnRows(rows)

			users, err := s.LoadUsersByCourseIDs(context.Background(), ids)
			require.NoError(t, err)
			require.Len(t, users, n)
			for _, u := range users {
				require.Len(t, u.Courses, 2)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoadUsersByCourseIDs_EmptyIssuesNoQuery(t *testing.T) {
	s, mock := newMockStore(t)
	users, err := s.LoadUsersByCourseIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPlatform(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name FROM platforms").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "X"))
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE platform_id").
		WithArgs(int64(1)).
		WillReturnRows(courseRows().
			AddRow(int64(10), "Intro", models.Int64Ptr(1)).
			AddRow(int64(11), "Advanced", models.Int64Ptr(1)))

	p, err := s.LoadPlatform(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "X", p.Name)
	require.Equal(t, []int64{10, 11}, models.CourseIDs(p.Courses))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadPlatform_NotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, name FROM platforms").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	_, err := s.LoadPlatform(context.Background(), 7)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCourse_DuplicateTitle(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery("INSERT INTO courses").
		WithArgs("Intro", (*int64)(nil)).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateCourse(context.Background(), models.Course{Title: "Intro"})
	require.ErrorIs(t, err, models.ErrAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePlatform_Missing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM platforms").
		WithArgs(int64(3)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := s.DeletePlatform(context.Background(), 3)
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseTitleExists(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM courses WHERE title = \$1 AND id <> \$2\)`).
		WithArgs("Intro", int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := s.CourseTitleExists(context.Background(), "Intro", 4)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreatePlatform_MissingCoursesRollsBack(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE id = ANY").
		WithArgs([]int64{1, 2}).
		WillReturnRows(courseRows().AddRow(int64(1), "a", models.Int64Ptr(5)))
	mock.ExpectRollback()

	_, err := s.CreatePlatform(context.Background(), "P", []int64{1, 2, 2})
	require.ErrorIs(t, err, models.ErrNotFound)
	var missing *models.MissingIDsError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []int64{2}, missing.IDs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdatePlatform_DetachesAndClaims(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE platforms SET name").
		WithArgs("P2", int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE platform_id").
		WithArgs(int64(1)).
		WillReturnRows(courseRows().
			AddRow(int64(10), "a", models.Int64Ptr(1)).
			AddRow(int64(11), "b", models.Int64Ptr(1)))
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE id = ANY").
		WithArgs([]int64{11, 12}).
		WillReturnRows(courseRows().
			AddRow(int64(11), "b", models.Int64Ptr(1)).
			AddRow(int64(12), "c", models.Int64Ptr(2)))
	mock.ExpectExec(`UPDATE courses SET platform_id = \$1 WHERE platform_id = \$2 AND NOT`).
		WithArgs(nil, int64(1), []int64{11, 12}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE courses SET platform_id = \$1 WHERE id = ANY`).
		WithArgs(int64(1), []int64{11, 12}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectQuery("SELECT id, name FROM platforms").
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "P2"))
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE platform_id").
		WithArgs(int64(1)).
		WillReturnRows(courseRows().
			AddRow(int64(11), "b", models.Int64Ptr(1)).
			AddRow(int64(12), "c", models.Int64Ptr(1)))
	mock.ExpectCommit()

	w, err := s.UpdatePlatform(context.Background(), 1, "P2", []int64{11, 12})
	require.NoError(t, err)
	require.Equal(t, "P2", w.Platform.Name)
	require.Equal(t, []int64{11, 12}, models.CourseIDs(w.Platform.Courses))
	require.Equal(t, []int64{10, 11, 12}, models.CourseIDs(w.Previous))
	require.Equal(t, []int64{1, 2}, platformsync.AffectedPlatformIDs(w.Previous))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceEnrollments(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, email FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(7), "U", "u@x.io"))
	mock.ExpectQuery("SELECT c.id, c.title, c.platform_id FROM courses c JOIN user_course uc").
		WithArgs(int64(7)).
		WillReturnRows(courseRows().AddRow(int64(1), "C1", models.Int64Ptr(1)))
	mock.ExpectQuery("SELECT id, title, platform_id FROM courses WHERE id = ANY").
		WithArgs([]int64{2}).
		WillReturnRows(courseRows().AddRow(int64(2), "C2", models.Int64Ptr(2)))
	mock.ExpectExec("DELETE FROM user_course").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("INSERT INTO user_course").
		WithArgs(int64(7), int64(2)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	w, err := s.ReplaceEnrollments(context.Background(), 7, []int64{2})
	require.NoError(t, err)
	require.Equal(t, []int64{1}, models.CourseIDs(w.Previous))
	require.Equal(t, []int64{2}, models.CourseIDs(w.User.Courses))
	union := append(append([]models.Course{}, w.Previous...), w.User.Courses...)
	require.Equal(t, []int64{1, 2}, platformsync.AffectedPlatformIDs(union))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestReplaceEnrollments_UnknownUser(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, name, email FROM users").
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := s.ReplaceEnrollments(context.Background(), 7, []int64{2})
	require.ErrorIs(t, err, models.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

// expectLockedUser7 expects the locked read of user 7, enrolled in course 1 of platform 1.
func expectLockedUser7(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("SELECT id, name, email FROM users WHERE id = \\$1 FOR UPDATE").
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "email"}).AddRow(int64(7), "U", "u@x.io"))
	mock.ExpectQuery("SELECT c.id, c.title, c.platform_id FROM courses c JOIN user_course uc").
		WithArgs(int64(7)).
		WillReturnRows(courseRows().AddRow(int64(1), "C1", models.Int64Ptr(1)))
}

func TestUpdateUser_NilCoursesKeepsEnrollments(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	expectLockedUser7(mock)
	mock.ExpectExec(`UPDATE users SET name = \$1, email = \$2 WHERE id = \$3`).
		WithArgs("V", "v@x.io", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	w, err := s.UpdateUser(context.Background(), 7, UserParams{Name: "V", Email: "v@x.io"}, nil)
	require.NoError(t, err)
	require.Equal(t, "V", w.User.Name)
	require.Equal(t, []int64{1}, models.CourseIDs(w.Previous))
	require.Equal(t, []int64{1}, models.CourseIDs(w.User.Courses))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateUser_EmptyCoursesClearsEnrollments(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	expectLockedUser7(mock)
	mock.ExpectExec(`UPDATE users SET name = \$1, email = \$2 WHERE id = \$3`).
		WithArgs("V", "v@x.io", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("DELETE FROM user_course").
		WithArgs(int64(7)).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	w, err := s.UpdateUser(context.Background(), 7, UserParams{Name: "V", Email: "v@x.io"}, []int64{})
	require.NoError(t, err)
	require.Empty(t, w.User.Courses)
	require.Equal(t, []int64{1}, models.CourseIDs(w.Previous))
	require.NoError(t, mock.ExpectationsWereMet())
}
