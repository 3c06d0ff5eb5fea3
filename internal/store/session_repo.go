package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// SessionRepo persists lesson sessions and their conversation history.
type SessionRepo struct {
	db  *sql.DB
	seq *sequenceCounter
}

var sessionColumns = []string{"id", "state", "status", "version", "created_at", "updated_at"}

// Load returns the session for key, or (nil, nil) when none exists.
func (r *SessionRepo) Load(ctx context.Context, key lesson.Key) (*lesson.Session, error) {
	q, args := builder().Select(sessionColumns...).
		From(entsql.Table(sessionsTable.Name)).
		Where(entsql.EQ("session_key", key.String())).
		Query()

	s, err := scanSession(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", key, err)
	}
	return s, nil
}

// Get returns the session with the given id, or ErrNotFound.
func (r *SessionRepo) Get(ctx context.Context, id int64) (*lesson.Session, error) {
	q, args := builder().Select(sessionColumns...).
		From(entsql.Table(sessionsTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()

	s, err := scanSession(r.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %d: %w", id, err)
	}
	return s, nil
}

// List returns every session of a user, most recently updated first.
func (r *SessionRepo) List(ctx context.Context, userID string) ([]lesson.Session, error) {
	q, args := builder().Select(sessionColumns...).
		From(entsql.Table(sessionsTable.Name)).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Desc("updated_at")).
		Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []lesson.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Create inserts a new session at version 1 and returns it with its id.
func (r *SessionRepo) Create(ctx context.Context, s lesson.Session) (*lesson.Session, error) {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = s.CreatedAt
	s.Version = 1

	state, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}

	q, args := builder().Insert(sessionsTable.Name).
		Columns("session_key", "user_id", "syllabus_id", "module_index", "lesson_index",
			"content_id", "status", "interaction_mode", "state", "version", "created_at", "updated_at").
		Values(s.Key.String(), s.Key.UserID, s.Key.SyllabusID, s.Key.ModuleIndex, s.Key.LessonIndex,
			s.ContentID, string(s.Status), string(s.Mode), string(state), s.Version, s.CreatedAt, s.UpdatedAt).
		Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", s.Key, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", s.Key, err)
	}
	s.ID = id
	return &s, nil
}

// Save writes s back if the stored version still equals s.Version, then
// bumps s.Version. A stale s yields ErrVersionConflict.
func (r *SessionRepo) Save(ctx context.Context, s *lesson.Session) error {
	next := *s
	next.Version = s.Version + 1
	next.UpdatedAt = time.Now().UTC()

	state, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	q, args := builder().Update(sessionsTable.Name).
		Set("state", string(state)).
		Set("status", string(next.Status)).
		Set("interaction_mode", string(next.Mode)).
		Set("content_id", next.ContentID).
		Set("updated_at", next.UpdatedAt).
		Add("version", 1).
		Where(entsql.And(
			entsql.EQ("id", s.ID),
			entsql.EQ("version", s.Version),
		)).
		Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("save session %d: %w", s.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("save session %d at version %d: %w", s.ID, s.Version, ErrVersionConflict)
	}

	*s = next
	return nil
}

// Delete removes the session for key along with its messages. It reports
// whether a session existed.
func (r *SessionRepo) Delete(ctx context.Context, key lesson.Key) (bool, error) {
	q, args := builder().Delete(sessionsTable.Name).
		Where(entsql.EQ("session_key", key.String())).
		Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete session %s: %w", key, err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSession decodes the state blob; the columns are authoritative for the
// fields the store itself maintains.
func scanSession(row rowScanner) (*lesson.Session, error) {
	var (
		id                   int64
		state, status        string
		version              int64
		createdAt, updatedAt time.Time
	)
	if err := row.Scan(&id, &state, &status, &version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var s lesson.Session
	if err := json.Unmarshal([]byte(state), &s); err != nil {
		return nil, fmt.Errorf("decode session %d: %w", id, err)
	}
	s.ID = id
	s.Status = lesson.Status(status)
	s.Version = version
	s.CreatedAt = createdAt
	s.UpdatedAt = updatedAt
	return &s, nil
}
