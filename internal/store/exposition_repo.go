package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// ExpositionRepo caches lesson expositions, one row per lesson reference.
type ExpositionRepo struct {
	db *sql.DB
}

// Get returns the cached exposition for ref, or (nil, nil) when absent.
func (r *ExpositionRepo) Get(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error) {
	q, args := builder().Select("id", "topic", "level", "module_title", "lesson_title", "body").
		From(entsql.Table(expositionsTable.Name)).
		Where(entsql.EQ("lesson_ref", ref.String())).
		Query()

	var e lesson.Exposition
	err := r.db.QueryRowContext(ctx, q, args...).
		Scan(&e.ContentID, &e.Topic, &e.Level, &e.ModuleTitle, &e.LessonTitle, &e.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get exposition %s: %w", ref, err)
	}
	return &e, nil
}

// Put stores e for ref and returns it with ContentID set to the row id.
// source records where the body came from ("catalog" or "generated").
func (r *ExpositionRepo) Put(ctx context.Context, ref lesson.Ref, e lesson.Exposition, source string) (*lesson.Exposition, error) {
	q, args := builder().Insert(expositionsTable.Name).
		Columns("lesson_ref", "topic", "level", "module_title", "lesson_title", "body", "source", "created_at").
		Values(ref.String(), e.Topic, e.Level, e.ModuleTitle, e.LessonTitle, e.Body, source, time.Now().UTC()).
		Query()

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("save exposition %s: %w", ref, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("save exposition %s: %w", ref, err)
	}
	e.ContentID = id
	return &e, nil
}
