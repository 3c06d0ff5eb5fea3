// Package tutor runs one learner turn at a time against a lesson session:
// it loads state, routes the message, runs the chosen component, and
// persists the result.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abhisek/lessonloop/internal/chat"
	"github.com/abhisek/lessonloop/internal/evaluate"
	"github.com/abhisek/lessonloop/internal/intent"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/practice"
	"github.com/abhisek/lessonloop/internal/prompt"
)

var (
	// ErrInvalidStatus is returned for a progress status outside
	// not_started, in_progress and completed.
	ErrInvalidStatus = errors.New("invalid progress status")

	// ErrNoSession is returned when an operation needs an existing session.
	ErrNoSession = errors.New("session does not exist")
)

// Config collects the settings of every component.
type Config struct {
	// HistoryLimit is how many stored messages are loaded per turn.
	HistoryLimit int

	Intent     intent.Config
	Chat       chat.Config
	Practice   practice.Config
	Evaluation evaluate.Config
}

// DefaultConfig returns the recommended engine settings.
func DefaultConfig() Config {
	return Config{
		HistoryLimit: 50,
		Intent:       intent.DefaultConfig(),
		Chat:         chat.DefaultConfig(),
		Practice:     practice.DefaultConfig(),
		Evaluation:   evaluate.DefaultConfig(),
	}
}

// Deps are the collaborators of an Engine. Publisher and Logger are
// optional.
type Deps struct {
	Store       SessionStore
	Expositions ExpositionProvider
	Publisher   Publisher
	Client      *llm.Client
	Prompts     *prompt.Registry
	Logger      *logger.Logger
}

// TurnResult is what a caller gets back from a turn.
type TurnResult struct {
	Session      lesson.Session   `json:"session"`
	Messages     []lesson.Message `json:"messages"`
	ErrorMessage string           `json:"error_message,omitempty"`
}

// SessionView is a session together with its stored history.
type SessionView struct {
	Session lesson.Session   `json:"session"`
	History []lesson.Message `json:"history"`
	// Welcome is set when the session was created by this call.
	Welcome *lesson.Message `json:"welcome,omitempty"`
}

// Engine is the session orchestrator. It is the only component that
// persists anything; turns for the same key are serialized.
type Engine struct {
	store       SessionStore
	expositions ExpositionProvider
	publisher   Publisher
	prompts     *prompt.Registry
	log         *logger.Logger
	cfg         Config

	router      *intent.Router
	chat        *chat.Responder
	exercises   *practice.ExerciseGenerator
	assessments *practice.AssessmentGenerator
	evaluator   *evaluate.Evaluator

	locks *keyedMutex
	now   func() time.Time
}

// New creates an Engine.
func New(deps Deps, cfg Config) *Engine {
	log := logger.OrNop(deps.Logger)
	pub := deps.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Engine{
		store:       deps.Store,
		expositions: deps.Expositions,
		publisher:   pub,
		prompts:     deps.Prompts,
		log:         log,
		cfg:         cfg,
		router:      intent.New(deps.Client, deps.Prompts, cfg.Intent, log.With("component", "intent")),
		chat:        chat.New(deps.Client, deps.Prompts, cfg.Chat, log.With("component", "chat")),
		exercises:   practice.NewExerciseGenerator(deps.Client, deps.Prompts, cfg.Practice, log.With("component", "exercise")),
		assessments: practice.NewAssessmentGenerator(deps.Client, deps.Prompts, cfg.Practice, log.With("component", "assessment")),
		evaluator:   evaluate.New(deps.Client, deps.Prompts, cfg.Evaluation, log.With("component", "evaluate")),
		locks:       newKeyedMutex(),
		now:         time.Now,
	}
}

// ProcessTurn handles one learner message. Model failures surface as
// assistant messages and ErrorMessage; only infrastructure failures are
// returned as errors.
func (e *Engine) ProcessTurn(ctx context.Context, key lesson.Key, text string) (*TurnResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	s, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return e.firstTurn(ctx, key, text)
	}

	if strings.TrimSpace(text) != "" {
		if err := e.store.AppendMessage(ctx, s.ID, lesson.UserMessage(text, e.now().UTC())); err != nil {
			return nil, fmt.Errorf("persist user message: %w", err)
		}
	}
	history, err := e.store.History(ctx, s.ID, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	if err := e.refreshExposition(ctx, s); err != nil {
		return nil, err
	}
	e.repair(s)
	if s.Status == lesson.StatusNotStarted {
		s.Status = lesson.StatusInProgress
	}

	decision := e.router.Route(ctx, *s, history)
	e.log.Debug("routed turn", "key", key.String(), "action", decision.Action, "intent", decision.Intent)

	var out lesson.Outcome
	switch decision.Action {
	case intent.ActionExercise:
		_, out = e.exercises.Generate(ctx, *s)
	case intent.ActionAssessment:
		_, out = e.assessments.Generate(ctx, *s)
	case intent.ActionEvaluate:
		s.PendingAnswer = decision.PendingAnswer
		out = e.evaluator.Evaluate(ctx, *s)
	default:
		out = e.chat.Respond(ctx, *s, history)
	}

	return e.commit(ctx, out, string(decision.Action))
}

// GenerateExercise presents a new exercise without routing, persisting the
// result like a turn.
func (e *Engine) GenerateExercise(ctx context.Context, key lesson.Key) (*TurnResult, error) {
	return e.generate(ctx, key, intent.ActionExercise, func(s lesson.Session) lesson.Outcome {
		_, out := e.exercises.Generate(ctx, s)
		return out
	})
}

// GenerateAssessmentQuestion presents a new quiz question without routing.
func (e *Engine) GenerateAssessmentQuestion(ctx context.Context, key lesson.Key) (*TurnResult, error) {
	return e.generate(ctx, key, intent.ActionAssessment, func(s lesson.Session) lesson.Outcome {
		_, out := e.assessments.Generate(ctx, s)
		return out
	})
}

func (e *Engine) generate(ctx context.Context, key lesson.Key, action intent.Action, run func(lesson.Session) lesson.Outcome) (*TurnResult, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	s, welcome, err := e.loadOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	if err := e.refreshExposition(ctx, s); err != nil {
		return nil, err
	}
	e.repair(s)
	if s.Status == lesson.StatusNotStarted {
		s.Status = lesson.StatusInProgress
	}

	res, err := e.commit(ctx, run(*s), string(action))
	if err != nil {
		return nil, err
	}
	if welcome != nil {
		res.Messages = append([]lesson.Message{*welcome}, res.Messages...)
	}
	return res, nil
}

// GetOrCreateSession returns the session for key with its history,
// creating it, and its welcome message, when absent.
func (e *Engine) GetOrCreateSession(ctx context.Context, key lesson.Key) (*SessionView, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	s, welcome, err := e.loadOrCreate(ctx, key)
	if err != nil {
		return nil, err
	}
	history, err := e.store.History(ctx, s.ID, e.cfg.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return &SessionView{Session: *s, History: history, Welcome: welcome}, nil
}

// History returns up to limit of the most recent messages of the session.
func (e *Engine) History(ctx context.Context, key lesson.Key, limit int) ([]lesson.Message, error) {
	s, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrNoSession)
	}
	return e.store.History(ctx, s.ID, limit)
}

// UpdateProgressStatus sets the learner's progress on the lesson.
func (e *Engine) UpdateProgressStatus(ctx context.Context, key lesson.Key, status string) (*lesson.Session, error) {
	st, ok := lesson.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	unlock := e.locks.Lock(key.String())
	defer unlock()

	s, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("%s: %w", key, ErrNoSession)
	}
	s.Status = st
	if err := e.store.Save(ctx, s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	e.log.Info("progress updated", "key", key.String(), "status", st)
	return s, nil
}

// ResetSession deletes the session and its history. It reports whether a
// session existed.
func (e *Engine) ResetSession(ctx context.Context, key lesson.Key) (bool, error) {
	unlock := e.locks.Lock(key.String())
	defer unlock()
	return e.store.Delete(ctx, key)
}

// firstTurn creates the session and greets the learner. The learner's text,
// if any, is kept in the history but not routed.
func (e *Engine) firstTurn(ctx context.Context, key lesson.Key, text string) (*TurnResult, error) {
	s, err := e.create(ctx, key)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) != "" {
		if err := e.store.AppendMessage(ctx, s.ID, lesson.UserMessage(text, e.now().UTC())); err != nil {
			return nil, fmt.Errorf("persist user message: %w", err)
		}
	}
	welcome, err := e.welcome(ctx, s)
	if err != nil {
		return nil, err
	}
	e.publish(ctx, s, "welcome", []lesson.Message{welcome})
	return &TurnResult{Session: *s, Messages: []lesson.Message{welcome}}, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, key lesson.Key) (*lesson.Session, *lesson.Message, error) {
	s, err := e.store.Load(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if s != nil {
		return s, nil, nil
	}
	if s, err = e.create(ctx, key); err != nil {
		return nil, nil, err
	}
	welcome, err := e.welcome(ctx, s)
	if err != nil {
		return nil, nil, err
	}
	return s, &welcome, nil
}

func (e *Engine) create(ctx context.Context, key lesson.Key) (*lesson.Session, error) {
	expo, err := e.expositions.GetOrGenerate(ctx, key.Ref)
	if err != nil {
		return nil, fmt.Errorf("lesson content for %s: %w", key.Ref, err)
	}
	s, err := e.store.Create(ctx, lesson.NewSession(key, *expo, e.now().UTC()))
	if err != nil {
		return nil, err
	}
	e.log.Info("session created", "key", key.String(), "session_id", s.ID)
	return s, nil
}

// refreshExposition fills in the lesson text of a session created while
// the text could not be produced. It stays empty if that still fails.
func (e *Engine) refreshExposition(ctx context.Context, s *lesson.Session) error {
	if strings.TrimSpace(s.Exposition) != "" {
		return nil
	}
	expo, err := e.expositions.GetOrGenerate(ctx, s.Key.Ref)
	if err != nil {
		return fmt.Errorf("lesson content for %s: %w", s.Key.Ref, err)
	}
	if strings.TrimSpace(expo.Body) == "" {
		return nil
	}
	s.Exposition = expo.Body
	s.ContentID = expo.ContentID
	e.log.Info("session exposition refreshed", "session_id", s.ID, "content_id", expo.ContentID)
	return nil
}

// welcome renders and stores the greeting. It needs no model call.
func (e *Engine) welcome(ctx context.Context, s *lesson.Session) (lesson.Message, error) {
	text, err := e.prompts.Render(prompt.Welcome, map[string]any{
		"lesson_title": s.LessonTitle,
		"topic":        s.Topic,
	})
	if err != nil {
		return lesson.Message{}, err
	}
	msg := lesson.AssistantMessage(lesson.KindWelcome, text, e.now().UTC())
	if err := e.store.AppendMessage(ctx, s.ID, msg); err != nil {
		return lesson.Message{}, fmt.Errorf("persist welcome: %w", err)
	}
	return msg, nil
}

func (e *Engine) repair(s *lesson.Session) {
	mode, task := s.Mode, s.ActiveTask.ID()
	if s.Repair() {
		e.log.Warn("repaired session mode", "session_id", s.ID, "mode", mode, "task_id", task, "now", s.Mode)
	}
}

// commit persists the new messages, then the state, then announces the
// turn.
func (e *Engine) commit(ctx context.Context, out lesson.Outcome, action string) (*TurnResult, error) {
	s := out.Session
	e.repair(&s)

	for _, m := range out.Messages {
		if err := e.store.AppendMessage(ctx, s.ID, m); err != nil {
			return nil, fmt.Errorf("persist assistant message: %w", err)
		}
	}
	if err := e.store.Save(ctx, &s); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	e.publish(ctx, &s, action, out.Messages)
	return &TurnResult{Session: s, Messages: out.Messages, ErrorMessage: s.ErrorMessage}, nil
}

func (e *Engine) publish(ctx context.Context, s *lesson.Session, action string, msgs []lesson.Message) {
	ev := TurnEvent{
		Key:       s.Key.String(),
		SessionID: s.ID,
		Action:    action,
		Mode:      s.Mode,
		Status:    s.Status,
		Version:   s.Version,
		Messages:  msgs,
		At:        e.now().UTC(),
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.log.Warn("publish turn event", "key", ev.Key, "error", err)
	}
}
