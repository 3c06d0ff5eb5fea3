// Package lessonchat is the conversation screen for one lesson.
package lessonchat

import (
	"context"
	"fmt"
	"strings"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/screen"
	"github.com/abhisek/lessonloop/internal/tutor"
	"github.com/abhisek/lessonloop/internal/ui/components"
	"github.com/abhisek/lessonloop/internal/ui/layout"
)

// Engine is the part of tutor.Engine the screen drives.
type Engine interface {
	GetOrCreateSession(ctx context.Context, key lesson.Key) (*tutor.SessionView, error)
	ProcessTurn(ctx context.Context, key lesson.Key, text string) (*tutor.TurnResult, error)
	GenerateExercise(ctx context.Context, key lesson.Key) (*tutor.TurnResult, error)
	GenerateAssessmentQuestion(ctx context.Context, key lesson.Key) (*tutor.TurnResult, error)
}

// Screen shows the transcript of one session and sends learner input to
// the engine. At most one engine call is in flight at a time.
type Screen struct {
	engine  Engine
	key     lesson.Key
	title   string
	input   components.TextInput
	session *lesson.Session
	history []lesson.Message
	busy    bool
	errMsg  string
}

var _ screen.Screen = (*Screen)(nil)
var _ screen.KeyHintProvider = (*Screen)(nil)
var _ screen.StatusProvider = (*Screen)(nil)
var _ screen.EscapeHandler = (*Screen)(nil)

// New creates the screen for key. title is shown in the header.
func New(engine Engine, key lesson.Key, title string) *Screen {
	return &Screen{
		engine: engine,
		key:    key,
		title:  title,
		input:  components.NewTextInput("Ask a question or answer the exercise...", 2000),
		busy:   true,
	}
}

func (s *Screen) Init() tea.Cmd {
	return tea.Batch(s.load(), s.input.Init())
}

func (s *Screen) Title() string {
	if s.title == "" {
		return "Lesson"
	}
	return s.title
}

// Status shows the learner's score once something has been evaluated.
func (s *Screen) Status() string {
	if s.session == nil {
		return ""
	}
	sum := s.session.Summary()
	if sum.Attempts == 0 {
		return strings.ReplaceAll(string(s.session.Status), "_", " ")
	}
	return fmt.Sprintf("%d/%d correct · %s", sum.Correct, sum.Attempts, sum.Level)
}

// HandlesEscape keeps the screen open while a request is running.
func (s *Screen) HandlesEscape() bool {
	return s.busy
}

func (s *Screen) KeyHints() []layout.KeyHint {
	if s.busy {
		return []layout.KeyHint{
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
	return []layout.KeyHint{
		{Key: "Enter", Description: "Send"},
		{Key: "Ctrl+E", Description: "Exercise"},
		{Key: "Ctrl+T", Description: "Quiz"},
		{Key: "Esc", Description: "Back"},
	}
}

func (s *Screen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionLoadedMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		sess := msg.View.Session
		s.session = &sess
		s.history = msg.View.History
		return s, nil

	case turnDoneMsg:
		s.busy = false
		if msg.Err != nil {
			s.errMsg = msg.Err.Error()
			return s, nil
		}
		s.errMsg = ""
		sess := msg.Result.Session
		s.session = &sess
		s.history = append(s.history, msg.Result.Messages...)
		return s, nil

	case tea.KeyMsg:
		if s.busy {
			return s, nil
		}
		switch msg.String() {
		case "enter":
			text := s.input.Take()
			if text == "" {
				return s, nil
			}
			return s, s.send(text)
		case "ctrl+e":
			return s, s.run(s.engine.GenerateExercise)
		case "ctrl+t":
			return s, s.run(s.engine.GenerateAssessmentQuestion)
		}
	}

	if s.busy {
		return s, nil
	}
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *Screen) load() tea.Cmd {
	engine, key := s.engine, s.key
	return func() tea.Msg {
		view, err := engine.GetOrCreateSession(context.Background(), key)
		return sessionLoadedMsg{View: view, Err: err}
	}
}

// send shows the learner's text right away. Turn results carry only the
// tutor's replies.
func (s *Screen) send(text string) tea.Cmd {
	s.history = append(s.history, lesson.UserMessage(text, timeNow()))
	engine, key := s.engine, s.key
	s.busy = true
	return func() tea.Msg {
		res, err := engine.ProcessTurn(context.Background(), key, text)
		return turnDoneMsg{Result: res, Err: err}
	}
}

func (s *Screen) run(fn func(context.Context, lesson.Key) (*tutor.TurnResult, error)) tea.Cmd {
	key := s.key
	s.busy = true
	return func() tea.Msg {
		res, err := fn(context.Background(), key)
		return turnDoneMsg{Result: res, Err: err}
	}
}
