package practice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/prompt"
)

func newClient(mock *llm.MockProvider) *llm.Client {
	return llm.NewClient(mock, llm.ClientConfig{
		Retry:     llm.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Timeout:   time.Second,
		MaxTokens: 512,
	}, nil)
}

func session() lesson.Session {
	return lesson.NewSession(
		lesson.Key{UserID: "u1", Ref: lesson.Ref{SyllabusID: "grammar", ModuleIndex: 0, LessonIndex: 1}},
		lesson.Exposition{
			Topic:       "Nouns",
			ModuleTitle: "Parts of speech",
			LessonTitle: "What is a noun?",
			Level:       "beginner",
			Body:        "A noun names a person, place, thing or idea.",
		},
		time.Now(),
	)
}

const exerciseJSON = `{"id":"ex_nouns_1","type":"multiple_choice","instructions":"Which word is a noun?","options":["run","table","quickly"],"correct_answer":"table"}`

func TestExerciseGenerate(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: exerciseJSON})
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	ex, out := g.Generate(context.Background(), session())
	require.NotNil(t, ex)
	assert.Equal(t, "ex_nouns_1", ex.ID)

	s := out.Session
	assert.Equal(t, lesson.ModeAwaitingAnswer, s.Mode)
	require.NotNil(t, s.ActiveTask)
	assert.Equal(t, lesson.TaskExercise, s.ActiveTask.Kind)
	assert.True(t, s.GeneratedExerciseIDs.Has("ex_nouns_1"))
	assert.NoError(t, s.CheckInvariants())

	require.Len(t, out.Messages, 1)
	msg := out.Messages[0]
	assert.Equal(t, lesson.KindExercisePrompt, msg.Kind)
	assert.Contains(t, msg.Content, "Which word is a noun?")
	assert.Contains(t, msg.Content, "B) table")
	assert.Contains(t, msg.Content, "Reply with the letter")
	assert.Equal(t, "ex_nouns_1", msg.Metadata["task_id"])

	p := mock.LastPrompt()
	assert.Contains(t, p, "Module: Parts of speech")
	assert.Contains(t, p, "A noun names a person")
}

func TestExerciseGenerateSynthesizesMissingID(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: `{"type":"short_answer","instructions":"Name three nouns in your room."}`})
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)
	g.newID = func(prefix string) string { return prefix + "fixed" }

	ex, out := g.Generate(context.Background(), session())
	require.NotNil(t, ex)
	assert.Equal(t, "ex_fixed", ex.ID)
	assert.Equal(t, lesson.IDSet{"ex_fixed"}, out.Session.GeneratedExerciseIDs)
}

func TestSynthesizeID(t *testing.T) {
	id := synthesizeID("aq_")
	assert.Len(t, id, len("aq_")+8)
	assert.NotEqual(t, id, synthesizeID("aq_"))
}

func TestExerciseGenerateDuplicateLeavesSessionUnchanged(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: exerciseJSON})
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	s := session()
	s.GeneratedExerciseIDs = lesson.IDSet{"ex_nouns_1"}

	ex, out := g.Generate(context.Background(), s)
	assert.Nil(t, ex)
	assert.Equal(t, s, out.Session)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, lesson.KindError, out.Messages[0].Kind)
	assert.Contains(t, out.Messages[0].Content, "already seen")
	assert.Contains(t, mock.LastPrompt(), "1. ex_nouns_1", "issued ids are listed in the prompt")
}

func TestExerciseGenerateInvalidJSON(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Sure! Here's an exercise: name a noun."})
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	ex, out := g.Generate(context.Background(), session())
	assert.Nil(t, ex)
	assert.Equal(t, lesson.ModeChatting, out.Session.Mode)
	assert.Nil(t, out.Session.ActiveTask)
	assert.NotEmpty(t, out.Session.ErrorMessage)
	require.Len(t, out.Messages, 1)
	assert.Equal(t, "I couldn't generate an exercise right now. Please try again.", out.Messages[0].Content)
}

func TestExerciseGenerateValidatorRejects(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Text: `{"id":"ex_1","type":"multiple_choice","instructions":"Pick one","options":["a","b"],"correct_answer":"z"}`,
	})
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	ex, out := g.Generate(context.Background(), session())
	assert.Nil(t, ex)
	assert.Contains(t, out.Session.ErrorMessage, `validator "choice"`)
	assert.Empty(t, out.Session.GeneratedExerciseIDs)
}

func TestGenerateWithoutExposition(t *testing.T) {
	mock := llm.NewMockProvider()
	g := NewAssessmentGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	s := session()
	s.Exposition = "  "
	q, out := g.Generate(context.Background(), s)
	assert.Nil(t, q)
	assert.Equal(t, ErrNoExposition.Error(), out.Session.ErrorMessage)
	assert.Equal(t, 0, mock.CallCount())
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0].Content, "a quiz question")
}

func TestAssessmentReplacesActiveExercise(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{
		Text: `{"id":"aq_1","type":"true_false","question":"'Happiness' is a noun.","correct_answer":"True"}`,
	})
	g := NewAssessmentGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	s := session()
	s.Present(lesson.ExerciseTask(lesson.Exercise{ID: "ex_1", Type: lesson.TypeShortAnswer, Instructions: "Name a noun"}))
	s.GeneratedExerciseIDs = lesson.IDSet{"ex_1"}

	q, out := g.Generate(context.Background(), s)
	require.NotNil(t, q)
	assert.Equal(t, []string{"True", "False"}, q.Options)

	got := out.Session
	require.NotNil(t, got.ActiveTask)
	assert.Equal(t, lesson.TaskAssessment, got.ActiveTask.Kind)
	assert.Nil(t, got.ActiveTask.Exercise)
	assert.Equal(t, lesson.IDSet{"ex_1"}, got.GeneratedExerciseIDs)
	assert.Equal(t, lesson.IDSet{"aq_1"}, got.GeneratedAssessmentIDs)
	assert.Equal(t, lesson.KindAssessmentPrompt, out.Messages[0].Kind)
	assert.Contains(t, out.Messages[0].Content, "Quiz question (true false)")
	assert.Contains(t, out.Messages[0].Content, "Reply with True or False.")

	// The caller's copy is untouched.
	assert.Equal(t, lesson.TaskExercise, s.ActiveTask.Kind)
}

func TestGenerateRetriesRateLimits(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Default = &llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}}
	g := NewExerciseGenerator(newClient(mock), prompt.Default(), DefaultConfig(), nil)

	ex, _ := g.Generate(context.Background(), session())
	assert.Nil(t, ex)
	assert.Equal(t, 3, mock.CallCount())
}

func TestValidators(t *testing.T) {
	tests := []struct {
		name string
		v    Validator
		c    Candidate
		ok   bool
	}{
		{"structural ok", &StructuralValidator{}, Candidate{Type: "short_answer", Text: "Name a noun"}, true},
		{"structural empty text", &StructuralValidator{}, Candidate{Type: "short_answer", Text: " "}, false},
		{"structural no type", &StructuralValidator{}, Candidate{Text: "Name a noun"}, false},
		{"choice ignores other types", &ChoiceValidator{}, Candidate{Type: "short_answer"}, true},
		{"choice by letter", &ChoiceValidator{}, Candidate{Type: "multiple_choice", Options: []string{"x", "y"}, CorrectAnswer: "B"}, true},
		{"choice too few", &ChoiceValidator{}, Candidate{Type: "multiple_choice", Options: []string{"x"}}, false},
		{"choice duplicate", &ChoiceValidator{}, Candidate{Type: "multiple_choice", Options: []string{"x", "X "}}, false},
		{"true false wrong count", &ChoiceValidator{}, Candidate{Type: "true_false", Options: []string{"True", "False", "Maybe"}}, false},
		{"ordering ok", &OrderingValidator{}, Candidate{Type: "ordering", Items: []string{"b", "a"}, CorrectOrder: []string{"a", "b"}}, true},
		{"ordering one item", &OrderingValidator{}, Candidate{Type: "ordering", Items: []string{"a"}}, false},
		{"ordering not permutation", &OrderingValidator{}, Candidate{Type: "ordering", Items: []string{"a", "b"}, CorrectOrder: []string{"a", "c"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.v.Validate(tt.c)
			if tt.ok {
				assert.Nil(t, err)
			} else {
				require.NotNil(t, err)
				assert.Equal(t, tt.v.Name(), err.Validator)
			}
		})
	}
}

func TestMatchOption(t *testing.T) {
	opts := []string{"run", "Table", "quickly"}
	assert.Equal(t, 1, MatchOption(opts, "table"))
	assert.Equal(t, 1, MatchOption(opts, "b)"))
	assert.Equal(t, 2, MatchOption(opts, "(C)"))
	assert.Equal(t, -1, MatchOption(opts, "d"))
	assert.Equal(t, -1, MatchOption(opts, "chair"))
}

func TestNormalizeType(t *testing.T) {
	assert.Equal(t, lesson.TypeMultipleChoice, normalizeType(" Multiple Choice "))
	assert.Equal(t, lesson.TypeFillBlank, normalizeType("fill-in-the-blank"))
	assert.Equal(t, lesson.TypeTrueFalse, normalizeType("True-False"))
	assert.Equal(t, "matching", normalizeType("Matching"))
}

func TestPresentExerciseOrdering(t *testing.T) {
	text := PresentExercise(lesson.Exercise{
		Type:         lesson.TypeOrdering,
		Instructions: "Put the words in order.",
		Items:        []string{"cat", "the", "sat"},
	})
	assert.Contains(t, text, "Exercise (ordering)")
	assert.Contains(t, text, "Items:\n1. cat\n2. the\n3. sat")
	assert.Contains(t, text, "for example: 2, 1, 3")
}
