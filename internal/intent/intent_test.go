package intent

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

func newRouter(mock *llm.MockProvider) *Router {
	client := llm.NewClient(mock, llm.ClientConfig{
		Retry:     llm.RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Timeout:   time.Second,
		MaxTokens: 128,
	}, nil)
	return New(client, prompt.Default(), DefaultConfig(), nil)
}

func chattingSession() lesson.Session {
	return lesson.NewSession(
		lesson.Key{UserID: "u1", Ref: lesson.Ref{SyllabusID: "s1"}},
		lesson.Exposition{Topic: "Nouns", LessonTitle: "What is a noun?", Level: "beginner", Body: "A noun names a thing."},
		time.Now(),
	)
}

func history(texts ...string) []lesson.Message {
	var out []lesson.Message
	for i, t := range texts {
		if i%2 == 0 {
			out = append(out, lesson.UserMessage(t, time.Now()))
		} else {
			out = append(out, lesson.AssistantMessage(lesson.KindChat, t, time.Now()))
		}
	}
	return out
}

func TestRouteAwaitingAnswerAlwaysEvaluates(t *testing.T) {
	mock := llm.NewMockProvider()
	r := newRouter(mock)

	s := chattingSession()
	s.Present(lesson.ExerciseTask(lesson.Exercise{ID: "ex_1", Instructions: "Name a noun."}))

	d := r.Route(context.Background(), s, history("  give me an exercise  "))
	assert.Equal(t, ActionEvaluate, d.Action)
	assert.Equal(t, "give me an exercise", d.PendingAnswer)
	assert.Equal(t, 0, mock.CallCount(), "no classification while awaiting an answer")
}

func TestRouteClassifiedIntents(t *testing.T) {
	tests := []struct {
		reply  string
		action Action
		intent string
	}{
		{`{"intent":"request_exercise"}`, ActionExercise, IntentRequestExercise},
		{`{"intent":"request_quiz"}`, ActionAssessment, IntentRequestQuiz},
		{"```json\n{\"intent\":\"Request-Assessment\"}\n```", ActionAssessment, IntentRequestAssessment},
		{`{"intent":"ask_question"}`, ActionChat, IntentAskQuestion},
		{`{"intent":"other_chat"}`, ActionChat, IntentOtherChat},
		{`{"intent":"submit_answer"}`, ActionChat, IntentSubmitAnswer},
		{`{"intent":"dance"}`, ActionChat, "dance"},
	}
	for _, tt := range tests {
		t.Run(tt.intent, func(t *testing.T) {
			mock := llm.NewMockProvider(llm.MockResponse{Text: tt.reply})
			d := newRouter(mock).Route(context.Background(), chattingSession(), history("hello"))
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.intent, d.Intent)
			assert.Empty(t, d.PendingAnswer)
		})
	}
}

func TestRouteFailuresDegradeToChat(t *testing.T) {
	tests := []struct {
		name string
		resp llm.MockResponse
	}{
		{"malformed", llm.MockResponse{Text: "I think they want an exercise"}},
		{"missing field", llm.MockResponse{Text: `{"label":"request_exercise"}`}},
		{"wrong type", llm.MockResponse{Text: `{"intent":42}`}},
		{"provider down", llm.MockResponse{Err: &llm.ErrProviderUnavailable{Err: errors.New("down")}}},
		{"timeout", llm.MockResponse{Err: context.DeadlineExceeded}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := llm.NewMockProvider(tt.resp)
			d := newRouter(mock).Route(context.Background(), chattingSession(), history("give me an exercise"))
			assert.Equal(t, ActionChat, d.Action)
		})
	}
}

func TestRouteRateLimitRetriesBounded(t *testing.T) {
	mock := llm.NewMockProvider()
	mock.Default = &llm.MockResponse{Err: &llm.ErrRateLimit{Err: errors.New("429")}}

	d := newRouter(mock).Route(context.Background(), chattingSession(), history("quiz me"))
	assert.Equal(t, ActionChat, d.Action)
	assert.Equal(t, DefaultConfig().MaxRetries+1, mock.CallCount())
}

func TestRouteWithoutTrailingUserMessage(t *testing.T) {
	mock := llm.NewMockProvider()
	r := newRouter(mock)

	for _, h := range [][]lesson.Message{nil, history("hi", "Hello! Ready?")} {
		d := r.Route(context.Background(), chattingSession(), h)
		assert.Equal(t, ActionChat, d.Action)
	}
	assert.Equal(t, 0, mock.CallCount())
}

func TestRouteErrorModeTreatedAsChatting(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: `{"intent":"request_exercise"}`})
	s := chattingSession()
	s.Mode = lesson.ModeError

	d := newRouter(mock).Route(context.Background(), s, history("exercise please"))
	assert.Equal(t, ActionExercise, d.Action)
}

func TestRoutePromptCarriesContext(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: `{"intent":"ask_question"}`})
	newRouter(mock).Route(context.Background(), chattingSession(), history("is 'run' a noun?"))

	require.Equal(t, 1, mock.CallCount())
	req := mock.Calls[0]
	assert.Contains(t, req.System, "request_exercise")
	p := mock.LastPrompt()
	assert.Contains(t, p, "What is a noun?")
	assert.Contains(t, p, "Learner: is 'run' a noun?")
	assert.Contains(t, p, "Active task: None")
	assert.NotNil(t, req.Schema)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "request_quiz", Normalize("  Request Quiz "))
	assert.Equal(t, "request_exercise", Normalize("request-exercise"))
}
