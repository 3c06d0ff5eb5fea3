package exposition

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/prompt"
)

type memCache struct {
	mu      sync.Mutex
	entries map[string]lesson.Exposition
	sources map[string]string

	// When gate is set, Get reports on entered and waits for gate to close,
	// then honors ctx like a database driver would.
	gate    chan struct{}
	entered chan struct{}
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]lesson.Exposition{}, sources: map[string]string{}}
}

func (c *memCache) Get(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error) {
	if c.gate != nil {
		select {
		case c.entered <- struct{}{}:
		default:
		}
		<-c.gate
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[ref.String()]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (c *memCache) Put(_ context.Context, ref lesson.Ref, e lesson.Exposition, source string) (*lesson.Exposition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e.ContentID = int64(len(c.entries) + 1)
	c.entries[ref.String()] = e
	c.sources[ref.String()] = source
	return &e, nil
}

const testCatalog = `
syllabi:
  - id: grammar
    title: Grammar
    topic: English grammar
    modules:
      - title: Parts of speech
        lessons:
          - title: What is a noun?
            topic: Nouns
            body: A noun names a thing.
          - title: Verbs
            level: advanced
`

func newService(t *testing.T, mock *llm.MockProvider) (*Service, *memCache) {
	t.Helper()
	cat, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)
	client := llm.NewClient(mock, llm.ClientConfig{
		Retry:     llm.RetryConfig{MaxRetries: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Timeout:   time.Second,
		MaxTokens: 256,
	}, nil)
	cache := newMemCache()
	return NewService(cat, cache, client, prompt.Default(), DefaultConfig(), nil), cache
}

func TestLookupAppliesDefaults(t *testing.T) {
	cat, err := ParseCatalog([]byte(testCatalog))
	require.NoError(t, err)

	e, err := cat.Lookup(lesson.Ref{SyllabusID: "grammar", ModuleIndex: 0, LessonIndex: 1})
	require.NoError(t, err)
	assert.Equal(t, "English grammar", e.Topic)
	assert.Equal(t, "advanced", e.Level)
	assert.Equal(t, "Parts of speech", e.ModuleTitle)

	e, err = cat.Lookup(lesson.Ref{SyllabusID: "grammar"})
	require.NoError(t, err)
	assert.Equal(t, lesson.LevelBeginner, e.Level)

	for _, ref := range []lesson.Ref{
		{SyllabusID: "maths"},
		{SyllabusID: "grammar", ModuleIndex: 1},
		{SyllabusID: "grammar", LessonIndex: 5},
	} {
		_, err := cat.Lookup(ref)
		assert.ErrorIs(t, err, ErrUnknownLesson, ref.String())
	}
}

func TestCatalogValidate(t *testing.T) {
	_, err := ParseCatalog([]byte("syllabi:\n  - id: a\n    modules: [{title: m, lessons: [{title: l}]}]\n"))
	assert.ErrorContains(t, err, "no topic")

	_, err = ParseCatalog([]byte("syllabi:\n  - id: a\n  - id: a\n"))
	assert.ErrorContains(t, err, "duplicate")
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	require.NotEmpty(t, cat.Syllabi)
	e, err := cat.Lookup(lesson.Ref{SyllabusID: "grammar"})
	require.NoError(t, err)
	assert.NotEmpty(t, e.Body)
}

func TestGetOrGenerateInlineBody(t *testing.T) {
	mock := llm.NewMockProvider()
	svc, cache := newService(t, mock)
	ref := lesson.Ref{SyllabusID: "grammar"}

	e, err := svc.GetOrGenerate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "A noun names a thing.", e.Body)
	assert.Equal(t, int64(1), e.ContentID)
	assert.Equal(t, SourceCatalog, cache.sources[ref.String()])
	assert.Equal(t, 0, mock.CallCount())
}

func TestGetOrGenerateGeneratesOnce(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "Verbs are doing words."})
	svc, cache := newService(t, mock)
	ref := lesson.Ref{SyllabusID: "grammar", LessonIndex: 1}

	e, err := svc.GetOrGenerate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "Verbs are doing words.", e.Body)
	assert.Equal(t, SourceGenerated, cache.sources[ref.String()])
	assert.Contains(t, mock.LastPrompt(), "Lesson: Verbs")

	again, err := svc.GetOrGenerate(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, e, again)
	assert.Equal(t, 1, mock.CallCount())
}

func TestGetOrGenerateFailureIsNotCached(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Err: errors.New("boom")})
	svc, cache := newService(t, mock)
	ref := lesson.Ref{SyllabusID: "grammar", LessonIndex: 1}

	e, err := svc.GetOrGenerate(context.Background(), ref)
	require.NoError(t, err)
	assert.Empty(t, e.Body)
	assert.Equal(t, "Verbs", e.LessonTitle)
	assert.Empty(t, cache.entries)
}

func TestGetOrGenerateUnknownLesson(t *testing.T) {
	svc, _ := newService(t, llm.NewMockProvider())
	_, err := svc.GetOrGenerate(context.Background(), lesson.Ref{SyllabusID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownLesson)
}

func TestGetOrGenerateOutlivesCancelledCaller(t *testing.T) {
	svc, cache := newService(t, llm.NewMockProvider())
	cache.gate = make(chan struct{})
	cache.entered = make(chan struct{}, 1)
	ref := lesson.Ref{SyllabusID: "grammar"}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.GetOrGenerate(ctx, ref)
		firstErr <- err
	}()
	<-cache.entered

	type result struct {
		e   *lesson.Exposition
		err error
	}
	second := make(chan result, 1)
	go func() {
		e, err := svc.GetOrGenerate(context.Background(), ref)
		second <- result{e, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(cache.gate)
	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, "A noun names a thing.", r.e.Body)
	assert.Equal(t, SourceCatalog, cache.sources[ref.String()])
}
