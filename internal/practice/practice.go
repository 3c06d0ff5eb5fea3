// Package practice generates exercises and assessment questions for a
// session, rejecting items whose id was already issued.
package practice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
)

// ErrNoExposition is recorded when a session has no lesson content to build
// practice from.
var ErrNoExposition = errors.New("lesson exposition is missing")

// Config controls both generators.
type Config struct {
	// Validators run in order on every generated item; the first failure
	// rejects it.
	Validators []Validator

	// MaxRetries bounds rate-limit retries for a generation call.
	MaxRetries int

	// ExcerptChars bounds the exposition excerpt in the prompt.
	ExcerptChars int

	// MaxIssuedIDs is how many already-issued ids the prompt lists.
	MaxIssuedIDs int
}

// DefaultConfig returns a Config with the standard validator chain.
func DefaultConfig() Config {
	return Config{
		Validators: []Validator{
			&StructuralValidator{},
			&ChoiceValidator{},
			&OrderingValidator{},
		},
		MaxRetries:   2,
		ExcerptChars: 1000,
		MaxIssuedIDs: 50,
	}
}

// kind holds what differs between the two generators.
type kind struct {
	task      lesson.TaskKind
	template  string
	purpose   string
	schema    *llm.Schema
	idPrefix  string
	msgKind   lesson.MessageKind
	noun      string
	issuedIDs func(lesson.Session) lesson.IDSet
}

type base struct {
	client  *llm.Client
	prompts *prompt.Registry
	cfg     Config
	log     *logger.Logger
	now     func() time.Time
	newID   func(prefix string) string
}

func newBase(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) base {
	return base{
		client:  client,
		prompts: prompts,
		cfg:     cfg,
		log:     logger.OrNop(log),
		now:     time.Now,
		newID:   synthesizeID,
	}
}

// synthesizeID builds an id such as "ex_1a2b3c4d".
func synthesizeID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// precheck renders the generation prompt, or returns a failure outcome.
func (b *base) precheck(s lesson.Session, k kind) (string, string, *lesson.Outcome) {
	if strings.TrimSpace(s.Exposition) == "" {
		s.ErrorMessage = ErrNoExposition.Error()
		out := b.say(s, lesson.KindError,
			fmt.Sprintf("This lesson has no content to build practice from yet, so I can't make %s right now.", article(k.noun)))
		return "", "", &out
	}

	vars := map[string]any{
		"topic":        s.Topic,
		"module_title": s.ModuleTitle,
		"lesson_title": s.LessonTitle,
		"level":        s.Level,
		"exposition":   lesson.Excerpt(s.Exposition, b.cfg.ExcerptChars),
		"issued_ids":   prompt.NumberedList(k.issuedIDs(s), b.cfg.MaxIssuedIDs),
	}
	text, err := b.prompts.Render(k.template, vars)
	if err != nil {
		b.log.Error("render generation prompt", "template", k.template, "error", err)
		s.ErrorMessage = err.Error()
		out := b.failed(s, k)
		return "", "", &out
	}
	system, _ := b.prompts.System(k.template)
	return text, system, nil
}

// validate runs the validator chain over c.
func (b *base) validate(c Candidate, k kind) *ValidationError {
	for _, v := range b.cfg.Validators {
		if verr := v.Validate(c); verr != nil {
			b.log.Warn("generated item rejected", "kind", k.task, "validator", verr.Validator, "reason", verr.Message)
			return verr
		}
	}
	return nil
}

func (b *base) failed(s lesson.Session, k kind) lesson.Outcome {
	return b.say(s, lesson.KindError,
		fmt.Sprintf("I couldn't generate %s right now. Please try again.", article(k.noun)))
}

func (b *base) duplicate(s lesson.Session, k kind) lesson.Outcome {
	return b.say(s, lesson.KindError,
		fmt.Sprintf("Sorry, I came up with %s you've already seen. Ask again and I'll make a new one.", article(k.noun)))
}

func (b *base) say(s lesson.Session, mk lesson.MessageKind, text string) lesson.Outcome {
	return lesson.Outcome{
		Session:  s,
		Messages: []lesson.Message{lesson.AssistantMessage(mk, text, b.now().UTC())},
	}
}

// present records the new item on the session and renders it.
func (b *base) present(s lesson.Session, k kind, t *lesson.Task, text string) lesson.Outcome {
	s.Present(t)
	s.ErrorMessage = ""
	msg := lesson.AssistantMessage(k.msgKind, text, b.now().UTC()).
		WithMeta("task_id", t.ID()).
		WithMeta("task_type", t.Type())
	return lesson.Outcome{Session: s, Messages: []lesson.Message{msg}}
}

func article(noun string) string {
	if noun != "" && strings.ContainsRune("aeiou", rune(noun[0])) {
		return "an " + noun
	}
	return "a " + noun
}

// ExerciseGenerator produces exercises.
type ExerciseGenerator struct {
	base
}

// NewExerciseGenerator creates an ExerciseGenerator.
func NewExerciseGenerator(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *ExerciseGenerator {
	return &ExerciseGenerator{base: newBase(client, prompts, cfg, log)}
}

var exerciseKind = kind{
	task:      lesson.TaskExercise,
	template:  prompt.Exercise,
	purpose:   llm.PurposeExercise,
	schema:    ExerciseSchema,
	idPrefix:  "ex_",
	msgKind:   lesson.KindExercisePrompt,
	noun:      "exercise",
	issuedIDs: func(s lesson.Session) lesson.IDSet { return s.GeneratedExerciseIDs },
}

// Generate asks for a new exercise. It returns the exercise and the updated
// session on success; otherwise a nil exercise and an explanatory message.
func (g *ExerciseGenerator) Generate(ctx context.Context, s lesson.Session) (*lesson.Exercise, lesson.Outcome) {
	s = s.Clone()
	k := exerciseKind

	text, system, fail := g.precheck(s, k)
	if fail != nil {
		return nil, *fail
	}

	ctx = llm.WithPurpose(ctx, k.purpose)
	ex, ok := llm.Decode[lesson.Exercise](ctx, g.client, text, k.schema,
		llm.System(system), llm.MaxRetries(g.cfg.MaxRetries))
	if !ok {
		s.ErrorMessage = "exercise generation failed"
		return nil, g.failed(s, k)
	}

	normalizeExercise(ex)
	if verr := g.validate(exerciseCandidate(ex), k); verr != nil {
		s.ErrorMessage = verr.Error()
		return nil, g.failed(s, k)
	}

	if ex.ID == "" {
		ex.ID = g.newID(k.idPrefix)
	}
	if s.GeneratedExerciseIDs.Has(ex.ID) {
		g.log.Info("discarding duplicate exercise", "session_id", s.ID, "id", ex.ID)
		return nil, g.duplicate(s, k)
	}

	s.GeneratedExerciseIDs = s.GeneratedExerciseIDs.Add(ex.ID)
	return ex, g.present(s, k, lesson.ExerciseTask(*ex), PresentExercise(*ex))
}

// AssessmentGenerator produces assessment questions.
type AssessmentGenerator struct {
	base
}

// NewAssessmentGenerator creates an AssessmentGenerator.
func NewAssessmentGenerator(client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *AssessmentGenerator {
	return &AssessmentGenerator{base: newBase(client, prompts, cfg, log)}
}

var assessmentKind = kind{
	task:      lesson.TaskAssessment,
	template:  prompt.Assessment,
	purpose:   llm.PurposeAssessment,
	schema:    AssessmentSchema,
	idPrefix:  "aq_",
	msgKind:   lesson.KindAssessmentPrompt,
	noun:      "quiz question",
	issuedIDs: func(s lesson.Session) lesson.IDSet { return s.GeneratedAssessmentIDs },
}

// Generate asks for a new assessment question, with the same contract as
// ExerciseGenerator.Generate.
func (g *AssessmentGenerator) Generate(ctx context.Context, s lesson.Session) (*lesson.AssessmentQuestion, lesson.Outcome) {
	s = s.Clone()
	k := assessmentKind

	text, system, fail := g.precheck(s, k)
	if fail != nil {
		return nil, *fail
	}

	ctx = llm.WithPurpose(ctx, k.purpose)
	q, ok := llm.Decode[lesson.AssessmentQuestion](ctx, g.client, text, k.schema,
		llm.System(system), llm.MaxRetries(g.cfg.MaxRetries))
	if !ok {
		s.ErrorMessage = "assessment generation failed"
		return nil, g.failed(s, k)
	}

	normalizeQuestion(q)
	if verr := g.validate(questionCandidate(q), k); verr != nil {
		s.ErrorMessage = verr.Error()
		return nil, g.failed(s, k)
	}

	if q.ID == "" {
		q.ID = g.newID(k.idPrefix)
	}
	if s.GeneratedAssessmentIDs.Has(q.ID) {
		g.log.Info("discarding duplicate assessment question", "session_id", s.ID, "id", q.ID)
		return nil, g.duplicate(s, k)
	}

	s.GeneratedAssessmentIDs = s.GeneratedAssessmentIDs.Add(q.ID)
	return q, g.present(s, k, lesson.AssessmentTask(*q), PresentQuestion(*q))
}
