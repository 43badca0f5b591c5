// Package records is the relational system of record for platforms, courses,
// users and enrollments, backed by PostgreSQL.
//
// Ownership is one-directional: courses.platform_id points at the owning
// platform and user_course holds enrollments. The other side of each relation
// is always resolved with an explicit id-based query.
package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/edusync/platform-sync/internal/database"
	"github.com/edusync/platform-sync/internal/models"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// Store implements the record store on a pgx pool (or any database.Querier).
type Store struct {
	db database.Querier
}

func New(db database.Querier) *Store {
	return &Store{db: db}
}

// inTx runs fn in a transaction: committed when fn returns nil, rolled back otherwise.
func (s *Store) inTx(ctx context.Context, fn func(q database.Querier) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// Page converts a zero-based page and size to limit/offset, clamping bad input.
func Page(page, size int) (limit, offset uint64) {
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	if page < 0 {
		page = 0
	}
	return uint64(size), uint64(page) * uint64(size)
}

// mapError converts pgx/pgconn errors to model errors.
// context.DeadlineExceeded and context.Canceled pass through wrapped.
func mapError(err error, entity string, id int64) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %d: %w", entity, id, err)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %d: %w", entity, id, models.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %d: %w", entity, id, models.ErrAlreadyExists)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s %d: %w", entity, id, models.ErrNotFound)
		case "23514", "23502": // check_violation, not_null_violation
			return fmt.Errorf("%s %d: %w", entity, id, models.ErrValidation)
		}
	}
	return fmt.Errorf("%s %d: %w", entity, id, err)
}

// exists runs a SELECT EXISTS(...) for the given builder.
func exists(ctx context.Context, q database.Querier, b squirrel.SelectBuilder) (bool, error) {
	inner, args, err := b.ToSql()
	if err != nil {
		return false, err
	}
	var ok bool
	if err := q.QueryRow(ctx, "SELECT EXISTS ("+inner+")", args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// scanCourses reads (id, title, platform_id) rows.
func scanCourses(rows pgx.Rows) ([]models.Course, error) {
	defer rows.Close()
	out := []models.Course{}
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Title, &c.PlatformID); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// missingIDs returns the requested ids absent from found.
func missingIDs(requested []int64, found []models.Course) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, c := range found {
		have[c.ID] = struct{}{}
	}
	var missing []int64
	seen := make(map[int64]struct{}, len(requested))
	for _, id := range requested {
		if _, ok := have[id]; ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		missing = append(missing, id)
	}
	return missing
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
