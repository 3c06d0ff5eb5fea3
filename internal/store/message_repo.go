package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// AppendMessage adds msg to the end of a session's conversation history.
func (r *SessionRepo) AppendMessage(ctx context.Context, sessionID int64, msg lesson.Message) error {
	seqNum, err := r.seq.Next(ctx)
	if err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	meta := ""
	if len(msg.Metadata) > 0 {
		b, err := json.Marshal(msg.Metadata)
		if err != nil {
			return fmt.Errorf("encode message metadata: %w", err)
		}
		meta = string(b)
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	kind := msg.Kind
	if kind == "" {
		kind = lesson.KindChat
	}

	q, args := builder().Insert(messagesTable.Name).
		Columns("sequence", "timestamp", "session_id", "role", "kind", "content", "metadata").
		Values(seqNum, ts, sessionID, string(msg.Role), string(kind), msg.Content, meta).
		Query()

	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("append message to session %d: %w", sessionID, err)
	}
	return nil
}

// History returns a session's messages, oldest first. A positive limit keeps
// only the most recent limit messages.
func (r *SessionRepo) History(ctx context.Context, sessionID int64, limit int) ([]lesson.Message, error) {
	sel := builder().Select("role", "kind", "content", "metadata", "timestamp").
		From(entsql.Table(messagesTable.Name)).
		Where(entsql.EQ("session_id", sessionID)).
		OrderBy(entsql.Desc("sequence"))
	if limit > 0 {
		sel = sel.Limit(limit)
	}
	q, args := sel.Query()

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history for session %d: %w", sessionID, err)
	}
	defer rows.Close()

	var out []lesson.Message
	for rows.Next() {
		var (
			m          lesson.Message
			role, kind string
			meta       string
		)
		if err := rows.Scan(&role, &kind, &m.Content, &meta, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = lesson.Role(role)
		m.Kind = lesson.MessageKind(kind)
		if meta != "" {
			if err := json.Unmarshal([]byte(meta), &m.Metadata); err != nil {
				return nil, fmt.Errorf("decode message metadata: %w", err)
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Fetched newest first so the limit keeps the tail.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
