// Package chat answers free-form learner messages about the lesson.
package chat

import (
	"context"
	"time"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
)

const (
	clarifyText = "I didn't catch a question there. What would you like to know about this lesson?"
	apologyText = "Sorry, I'm having trouble answering right now. Please try again in a moment."
)

// Config controls the chat prompt and call.
type Config struct {
	HistoryLimit int
	ExcerptChars int
	MaxRetries   int
}

// DefaultConfig returns the recommended responder settings.
func DefaultConfig() Config {
	return Config{HistoryLimit: 8, ExcerptChars: 1000, MaxRetries: 3}
}

// Responder produces tutor replies.
type Responder struct {
	client  *llm.Client
	prompts *prompt.Registry
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
}

// New creates a Responder.
func New(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *Responder {
	return &Responder{client: client, prompts: prompts, cfg: cfg, log: logger.OrNop(log), now: time.Now}
}

// Respond answers the learner's last message. It always returns exactly one
// assistant message and changes nothing but ErrorMessage.
func (r *Responder) Respond(ctx context.Context, s lesson.Session, history []lesson.Message) lesson.Outcome {
	s = s.Clone()

	if _, ok := lesson.TrailingUserMessage(history); !ok {
		return r.reply(s, lesson.KindChat, clarifyText)
	}

	vars := map[string]any{
		"lesson_title": s.LessonTitle,
		"level":        s.Level,
		"exposition":   lesson.Excerpt(s.Exposition, r.cfg.ExcerptChars),
		"history":      lesson.FormatHistory(history, r.cfg.HistoryLimit),
		"active_task":  s.ActiveTask.Summary(),
	}
	text, err := r.prompts.Render(prompt.Chat, vars)
	if err != nil {
		r.log.Error("render chat prompt", "error", err)
		s.ErrorMessage = err.Error()
		return r.reply(s, lesson.KindError, apologyText)
	}
	system, _ := r.prompts.System(prompt.Chat)

	ctx = llm.WithPurpose(ctx, llm.PurposeChat)
	answer, err := r.client.GenerateText(ctx, text, llm.System(system), llm.MaxRetries(r.cfg.MaxRetries))
	if err != nil {
		r.log.Warn("chat generation failed", "session_id", s.ID, "error", err)
		s.ErrorMessage = err.Error()
		return r.reply(s, lesson.KindError, apologyText)
	}

	s.ErrorMessage = ""
	return r.reply(s, lesson.KindChat, answer)
}

func (r *Responder) reply(s lesson.Session, kind lesson.MessageKind, text string) lesson.Outcome {
	return lesson.Outcome{
		Session:  s,
		Messages: []lesson.Message{lesson.AssistantMessage(kind, text, r.now().UTC())},
	}
}
