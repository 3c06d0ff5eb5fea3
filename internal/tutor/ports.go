package tutor

import (
	"context"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
)

// SessionStore persists sessions and their message history. Save must fail
// with a conflict error when s.Version is stale, and bump the version on
// success.
type SessionStore interface {
	Load(ctx context.Context, key lesson.Key) (*lesson.Session, error)
	Create(ctx context.Context, s lesson.Session) (*lesson.Session, error)
	Save(ctx context.Context, s *lesson.Session) error
	Delete(ctx context.Context, key lesson.Key) (bool, error)
	AppendMessage(ctx context.Context, sessionID int64, msg lesson.Message) error
	History(ctx context.Context, sessionID int64, limit int) ([]lesson.Message, error)
}

// ExpositionProvider supplies the static content of a lesson.
type ExpositionProvider interface {
	GetOrGenerate(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error)
}

// TurnEvent is published after every saved turn.
type TurnEvent struct {
	Key       string           `json:"key"`
	SessionID int64            `json:"session_id"`
	Action    string           `json:"action"`
	Mode      lesson.Mode      `json:"interaction_mode"`
	Status    lesson.Status    `json:"status"`
	Version   int64            `json:"version"`
	Messages  []lesson.Message `json:"messages"`
	At        time.Time        `json:"at"`
}

// Publisher announces turns to interested listeners.
type Publisher interface {
	Publish(ctx context.Context, ev TurnEvent) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, TurnEvent) error { return nil }
