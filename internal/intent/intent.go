// Package intent decides what the engine does with a learner's message.
package intent

import (
	"context"
	"strings"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
)

// Action is the component a turn is routed to.
type Action string

const (
	ActionChat       Action = "chat"
	ActionExercise   Action = "exercise"
	ActionAssessment Action = "assessment"
	ActionEvaluate   Action = "evaluate"
)

// Intent labels the classifier may return.
const (
	IntentRequestExercise   = "request_exercise"
	IntentRequestQuiz       = "request_quiz"
	IntentRequestAssessment = "request_assessment"
	IntentSubmitAnswer      = "submit_answer"
	IntentAskQuestion       = "ask_question"
	IntentOtherChat         = "other_chat"
)

// Decision is the outcome of routing one turn.
type Decision struct {
	Action Action
	// PendingAnswer is the learner's answer text when Action is ActionEvaluate.
	PendingAnswer string
	// Intent is the raw classifier label, empty when no classification ran.
	Intent string
}

// Schema is the structured output the classifier must return.
var Schema = &llm.Schema{
	Name:        "intent",
	Description: "The learner's intent label",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"intent": map[string]any{
				"type":        "string",
				"description": "One of request_exercise, request_quiz, request_assessment, submit_answer, ask_question, other_chat",
			},
		},
		"required": []any{"intent"},
	},
}

// Config controls the classifier call.
type Config struct {
	// HistoryLimit is how many recent messages the classifier sees.
	HistoryLimit int
	// MaxRetries bounds rate-limit retries for the classification call.
	MaxRetries int
}

// DefaultConfig returns the recommended router settings.
func DefaultConfig() Config {
	return Config{HistoryLimit: 8, MaxRetries: 1}
}

// Router classifies learner messages. It never fails: every problem
// degrades to ActionChat.
type Router struct {
	client  *llm.Client
	prompts *prompt.Registry
	cfg     Config
	log     *logger.Logger
}

// New creates a Router.
func New(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *Router {
	return &Router{client: client, prompts: prompts, cfg: cfg, log: logger.OrNop(log)}
}

type classification struct {
	Intent string `json:"intent"`
}

// Route picks the next action for session s given its full history, which
// ends with the learner's message.
func (r *Router) Route(ctx context.Context, s lesson.Session, history []lesson.Message) Decision {
	last, ok := lesson.TrailingUserMessage(history)

	if s.Mode == lesson.ModeAwaitingAnswer {
		// Any message while a task is open counts as an answer attempt.
		return Decision{Action: ActionEvaluate, PendingAnswer: strings.TrimSpace(last.Content)}
	}

	if !ok {
		r.log.Warn("routing without a trailing learner message", "session_id", s.ID, "history_len", len(history))
		return Decision{Action: ActionChat}
	}

	vars := map[string]any{
		"topic":        s.Topic,
		"lesson_title": s.LessonTitle,
		"level":        s.Level,
		"history":      lesson.FormatHistory(history, r.cfg.HistoryLimit),
		"user_message": last.Content,
		"active_task":  s.ActiveTask.Summary(),
	}
	text, err := r.prompts.Render(prompt.Intent, vars)
	if err != nil {
		r.log.Error("render intent prompt", "error", err)
		return Decision{Action: ActionChat}
	}
	system, _ := r.prompts.System(prompt.Intent)

	ctx = llm.WithPurpose(ctx, llm.PurposeIntent)
	out, ok := llm.Decode[classification](ctx, r.client, text, Schema,
		llm.System(system), llm.MaxRetries(r.cfg.MaxRetries), llm.Temperature(0))
	if !ok {
		return Decision{Action: ActionChat}
	}

	label := Normalize(out.Intent)
	return Decision{Action: ActionFor(label), Intent: label}
}

// Normalize lowercases a label and folds spaces and dashes to underscores.
func Normalize(label string) string {
	label = strings.ToLower(strings.TrimSpace(label))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(label)
}

// ActionFor maps a normalized intent label to an action. Unknown labels
// chat.
func ActionFor(label string) Action {
	switch label {
	case IntentRequestExercise:
		return ActionExercise
	case IntentRequestQuiz, IntentRequestAssessment:
		return ActionAssessment
	default:
		return ActionChat
	}
}
