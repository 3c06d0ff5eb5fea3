// Package lesson holds the conversational state of one learner working
// through one lesson, plus the messages and practice items it refers to.
package lesson

import (
	"fmt"
	"time"
)

// Ref identifies a lesson inside a syllabus.
type Ref struct {
	SyllabusID  string `json:"syllabus_id"`
	ModuleIndex int    `json:"module_index"`
	LessonIndex int    `json:"lesson_index"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%d/%d", r.SyllabusID, r.ModuleIndex, r.LessonIndex)
}

// Key identifies one learner's conversation with one lesson.
type Key struct {
	UserID string `json:"user_id"`
	Ref
}

func (k Key) String() string {
	return k.UserID + "@" + k.Ref.String()
}

// Validate reports whether the key can address a session.
func (k Key) Validate() error {
	if k.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if k.SyllabusID == "" {
		return fmt.Errorf("syllabus id is required")
	}
	if k.ModuleIndex < 0 || k.LessonIndex < 0 {
		return fmt.Errorf("module and lesson index must be non-negative")
	}
	return nil
}

// Mode is the interaction mode of a session.
type Mode string

const (
	ModeChatting       Mode = "chatting"
	ModeAwaitingAnswer Mode = "awaiting_answer"
	ModeError          Mode = "error"
)

// Status is the learner's progress through the lesson.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus validates a progress status string.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusNotStarted, StatusInProgress, StatusCompleted:
		return Status(s), true
	}
	return "", false
}

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageKind tags what a message carries.
type MessageKind string

const (
	KindChat             MessageKind = "chat"
	KindWelcome          MessageKind = "welcome"
	KindExercisePrompt   MessageKind = "exercise_prompt"
	KindAssessmentPrompt MessageKind = "assessment_prompt"
	KindFeedback         MessageKind = "feedback"
	KindError            MessageKind = "error"
)

// Message is one turn of dialogue. Messages are never mutated once created.
type Message struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Kind      MessageKind    `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// UserMessage builds a learner chat message.
func UserMessage(text string, at time.Time) Message {
	return Message{Role: RoleUser, Content: text, Kind: KindChat, Timestamp: at}
}

// AssistantMessage builds a tutor message of the given kind.
func AssistantMessage(kind MessageKind, text string, at time.Time) Message {
	return Message{Role: RoleAssistant, Content: text, Kind: kind, Timestamp: at}
}

// WithMeta returns a copy of m with the key set in its metadata.
func (m Message) WithMeta(key string, value any) Message {
	meta := make(map[string]any, len(m.Metadata)+1)
	for k, v := range m.Metadata {
		meta[k] = v
	}
	meta[key] = value
	m.Metadata = meta
	return m
}

// Exposition is the static grounding content of a lesson.
type Exposition struct {
	ContentID   int64  `json:"content_id"`
	Topic       string `json:"topic"`
	Level       string `json:"level"`
	ModuleTitle string `json:"module_title"`
	LessonTitle string `json:"lesson_title"`
	Body        string `json:"body"`
}
