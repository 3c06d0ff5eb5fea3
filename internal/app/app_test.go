package app

import (
	"context"
	"testing"

	tea "charm.land/bubbletea/v2"

	"github.com/abhisek/lessonloop/internal/exposition"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/screens/lessonchat"
	"github.com/abhisek/lessonloop/internal/tutor"
)

type stubEngine struct{}

func (stubEngine) GetOrCreateSession(context.Context, lesson.Key) (*tutor.SessionView, error) {
	return &tutor.SessionView{}, nil
}
func (stubEngine) ProcessTurn(context.Context, lesson.Key, string) (*tutor.TurnResult, error) {
	return &tutor.TurnResult{}, nil
}
func (stubEngine) GenerateExercise(context.Context, lesson.Key) (*tutor.TurnResult, error) {
	return &tutor.TurnResult{}, nil
}
func (stubEngine) GenerateAssessmentQuestion(context.Context, lesson.Key) (*tutor.TurnResult, error) {
	return &tutor.TurnResult{}, nil
}

func newTestModel() AppModel {
	return newAppModel(Options{Engine: stubEngine{}, Catalog: exposition.DefaultCatalog(), UserID: "u1"})
}

func TestPickerIsRoot(t *testing.T) {
	m := newTestModel()

	if m.router.Depth() != 1 {
		t.Fatalf("expected depth 1, got %d", m.router.Depth())
	}
	if got := m.router.Active().Title(); got != "Lessons" {
		t.Errorf("expected the lesson picker, got %q", got)
	}

	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd != nil {
		t.Error("expected Esc on the root screen to do nothing")
	}
}

func TestEscapeKeptWhileBusy(t *testing.T) {
	m := newTestModel()
	key := lesson.Key{UserID: "u1", Ref: lesson.Ref{SyllabusID: "grammar"}}
	m.router.Push(lessonchat.New(stubEngine{}, key, "Nouns"))

	// A freshly pushed lesson screen is still loading.
	_, cmd := m.Update(tea.KeyPressMsg{Code: tea.KeyEscape})
	if cmd != nil {
		t.Error("expected Esc to be swallowed while the lesson is loading")
	}
	if m.router.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", m.router.Depth())
	}
}

func TestCtrlCQuits(t *testing.T) {
	m := newTestModel()

	_, cmd := m.Update(tea.KeyPressMsg{Code: 'c', Mod: tea.ModCtrl})
	if cmd == nil {
		t.Fatal("expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Errorf("expected QuitMsg, got %T", cmd())
	}
}
