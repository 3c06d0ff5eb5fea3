// Package evaluate grades the learner's answer to the active task.
package evaluate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
)

const (
	clarifyText   = "There's no open question to answer right now. Ask for an exercise or a quiz question when you're ready."
	askAnswerText = "Please type your answer to the open question."
	fallbackText  = "I couldn't evaluate that answer, let's move on."
)

var errEvaluationFailed = errors.New("answer evaluation failed")

// Schema is the verdict the model must return.
var Schema = &llm.Schema{
	Name:        "answer-evaluation",
	Description: "A graded verdict on the learner's answer",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"score": map[string]any{
				"type":        "number",
				"description": "0 for wrong, 1 for fully correct, partial credit in between",
			},
			"is_correct": map[string]any{"type": "boolean"},
			"feedback": map[string]any{
				"type":        "string",
				"description": "One or two encouraging sentences addressed to the learner",
			},
			"explanation": map[string]any{"type": "string"},
		},
		"required": []any{"score", "is_correct", "feedback"},
	},
}

// Config controls the evaluation call.
type Config struct {
	MaxRetries int
}

// DefaultConfig returns the recommended evaluator settings.
func DefaultConfig() Config {
	return Config{MaxRetries: 2}
}

// Evaluator grades answers.
type Evaluator struct {
	client  *llm.Client
	prompts *prompt.Registry
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

// New creates an Evaluator.
func New(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *Evaluator {
	return &Evaluator{client: client, prompts: prompts, cfg: cfg, log: logger.OrNop(log), now: time.Now}
}

// Evaluate grades s.PendingAnswer against s.ActiveTask. Every real attempt
// is recorded exactly once and closes the task, whether or not the model
// produced a verdict.
func (e *Evaluator) Evaluate(ctx context.Context, s lesson.Session) lesson.Outcome {
	s = s.Clone()
	answer := strings.TrimSpace(s.PendingAnswer)
	task := s.ActiveTask

	if task == nil {
		return e.reply(s, lesson.AssistantMessage(lesson.KindChat, clarifyText, e.now().UTC()))
	}
	if answer == "" {
		return e.reply(s, lesson.AssistantMessage(lesson.KindChat, askAnswerText, e.now().UTC()))
	}

	verdict, err := e.grade(ctx, task, answer)
	if err != nil {
		e.log.Warn("evaluation failed", "session_id", s.ID, "task_id", task.ID(), "error", err)
		s.ErrorMessage = err.Error()
	} else {
		s.ErrorMessage = ""
	}

	now := e.now().UTC()
	s.Record(lesson.UserResponse{
		QuestionID: task.ID(),
		Kind:       task.Kind,
		Answer:     answer,
		Evaluation: verdict,
		Timestamp:  now,
	})
	s.ClearTask()

	msg := lesson.AssistantMessage(lesson.KindFeedback, feedbackText(verdict), now).
		WithMeta("task_id", task.ID()).
		WithMeta("score", verdict.Score).
		WithMeta("is_correct", verdict.IsCorrect)
	return e.reply(s, msg)
}

// grade returns the fallback verdict together with the reason when no
// verdict could be obtained.
func (e *Evaluator) grade(ctx context.Context, task *lesson.Task, answer string) (lesson.Evaluation, error) {
	fallback := lesson.Evaluation{Score: 0, IsCorrect: false, Feedback: fallbackText}

	text, err := e.prompts.Render(prompt.Evaluate, promptVars(task, answer))
	if err != nil {
		return fallback, err
	}
	system, _ := e.prompts.System(prompt.Evaluate)

	ctx = llm.WithPurpose(ctx, llm.PurposeEvaluate)
	v, ok := llm.Decode[lesson.Evaluation](ctx, e.client, text, Schema,
		llm.System(system), llm.MaxRetries(e.cfg.MaxRetries), llm.Temperature(0))
	if !ok {
		return fallback, errEvaluationFailed
	}

	v.Score = clamp(v.Score)
	v.Feedback = strings.TrimSpace(v.Feedback)
	v.Explanation = strings.TrimSpace(v.Explanation)
	if v.Feedback == "" {
		if v.IsCorrect {
			v.Feedback = "Correct, well done!"
		} else {
			v.Feedback = "Not quite."
		}
	}
	return *v, nil
}

func promptVars(task *lesson.Task, answer string) map[string]any {
	var items []string
	if task.Exercise != nil {
		items = task.Exercise.Items
	}
	expected := task.ExpectedAnswer()
	if expected == "" {
		expected = "Not provided; judge from the item and the lesson."
	}
	vars := map[string]any{
		"task_kind":       string(task.Kind),
		"task_type":       task.Type(),
		"task_text":       task.Text(),
		"options":         prompt.LetteredList(task.Options()),
		"items":           "",
		"expected_answer": expected,
		"user_answer":     answer,
	}
	if len(items) > 0 {
		vars["items"] = prompt.NumberedList(items, 0)
	}
	return vars
}

func feedbackText(v lesson.Evaluation) string {
	if v.Explanation == "" {
		return v.Feedback
	}
	return v.Feedback + "\n\n" + v.Explanation
}

func clamp(score float64) float64 {
	switch {
	case score < 0:
		return 0
	case score > 1:
		return 1
	}
	return score
}

func (e *Evaluator) reply(s lesson.Session, msg lesson.Message) lesson.Outcome {
	return lesson.Outcome{Session: s, Messages: []lesson.Message{msg}}
}
