package lesson

import (
	"errors"
	"slices"
	"time"
)

// Session is the conversational state for one (user, lesson) pair. It is a
// plain value: components receive a copy and hand back the updated copy in
// an Outcome, and only the orchestrator persists it.
type Session struct {
	ID        int64 `json:"id"`
	Key       Key   `json:"key"`
	ContentID int64 `json:"content_id"`

	// Copied from the exposition when the session is created.
	Topic       string `json:"topic"`
	Level       string `json:"level"`
	LessonTitle string `json:"lesson_title"`
	ModuleTitle string `json:"module_title"`
	Exposition  string `json:"exposition"`

	Mode                   Mode           `json:"interaction_mode"`
	ActiveTask             *Task          `json:"active_task,omitempty"`
	GeneratedExerciseIDs   IDSet          `json:"generated_exercise_ids"`
	GeneratedAssessmentIDs IDSet          `json:"generated_assessment_ids"`
	PendingAnswer          string         `json:"pending_answer,omitempty"`
	Responses              []UserResponse `json:"user_responses"`
	ErrorMessage           string         `json:"error_message,omitempty"`
	Status                 Status         `json:"status"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Evaluation is the verdict on one answer.
type Evaluation struct {
	Score       float64 `json:"score"`
	IsCorrect   bool    `json:"is_correct"`
	Feedback    string  `json:"feedback"`
	Explanation string  `json:"explanation,omitempty"`
}

// UserResponse records one evaluated attempt.
type UserResponse struct {
	QuestionID string     `json:"question_id"`
	Kind       TaskKind   `json:"kind"`
	Answer     string     `json:"answer"`
	Evaluation Evaluation `json:"evaluation"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Outcome is what every engine component returns: the updated session and
// the assistant messages it produced, in order.
type Outcome struct {
	Session  Session
	Messages []Message
}

// ErrModeInvariant is reported when the active task and the mode disagree.
var ErrModeInvariant = errors.New("active task and interaction mode disagree")

// NewSession builds a fresh session for key from the lesson's exposition.
func NewSession(key Key, expo Exposition, now time.Time) Session {
	return Session{
		Key:         key,
		ContentID:   expo.ContentID,
		Topic:       expo.Topic,
		Level:       expo.Level,
		LessonTitle: expo.LessonTitle,
		ModuleTitle: expo.ModuleTitle,
		Exposition:  expo.Body,
		Mode:        ModeChatting,
		Status:      StatusNotStarted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Clone returns a deep copy, so a component can mutate its copy without
// touching the caller's.
func (s Session) Clone() Session {
	out := s
	out.ActiveTask = s.ActiveTask.clone()
	out.GeneratedExerciseIDs = slices.Clone(s.GeneratedExerciseIDs)
	out.GeneratedAssessmentIDs = slices.Clone(s.GeneratedAssessmentIDs)
	out.Responses = slices.Clone(s.Responses)
	return out
}

// Present makes t the active task and waits for an answer. Any previously
// active task, of either kind, is replaced.
func (s *Session) Present(t *Task) {
	s.ActiveTask = t
	s.PendingAnswer = ""
	s.Mode = ModeAwaitingAnswer
}

// ClearTask drops the active task and pending answer and returns to chat.
func (s *Session) ClearTask() {
	s.ActiveTask = nil
	s.PendingAnswer = ""
	s.Mode = ModeChatting
}

// Record appends an evaluated attempt.
func (s *Session) Record(r UserResponse) {
	s.Responses = append(s.Responses, r)
}

// CheckInvariants reports whether ActiveTask is set exactly when the session
// awaits an answer.
func (s Session) CheckInvariants() error {
	awaiting := s.Mode == ModeAwaitingAnswer
	if awaiting != (s.ActiveTask != nil) {
		return ErrModeInvariant
	}
	return nil
}

// Repair restores the mode invariant by falling back to chat. It reports
// whether anything changed.
func (s *Session) Repair() bool {
	if s.Mode == ModeError {
		s.Mode = ModeChatting
		if s.ActiveTask != nil {
			s.Mode = ModeAwaitingAnswer
		}
		return true
	}
	if s.CheckInvariants() == nil {
		return false
	}
	s.ClearTask()
	return true
}
