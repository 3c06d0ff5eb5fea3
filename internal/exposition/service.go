// Package exposition supplies the static text of each lesson, from the
// catalog or generated once by the model and cached.
package exposition

import (
	"context"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
)

// Sources recorded with a cached exposition.
const (
	SourceCatalog   = "catalog"
	SourceGenerated = "generated"
)

// Cache stores expositions by lesson. Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error)
	Put(ctx context.Context, ref lesson.Ref, e lesson.Exposition, source string) (*lesson.Exposition, error)
}

// Config holds exposition generation settings.
type Config struct {
	MaxTokens   int
	Temperature float64
	MaxRetries  int
}

// DefaultConfig returns sensible defaults for exposition generation.
func DefaultConfig() Config {
	return Config{
		MaxTokens:   1024,
		Temperature: 0.5,
		MaxRetries:  2,
	}
}

// Service resolves lesson content.
type Service struct {
	catalog *Catalog
	cache   Cache
	client  *llm.Client
	prompts *prompt.Registry
	cfg     Config
	log     *logger.Logger

	group singleflight.Group
}

// NewService creates an exposition service. client may be nil when every
// catalog lesson carries a body.
func NewService(catalog *Catalog, cache Cache, client *llm.Client, prompts *prompt.Registry, cfg Config, log *logger.Logger) *Service {
	return &Service{
		catalog: catalog,
		cache:   cache,
		client:  client,
		prompts: prompts,
		cfg:     cfg,
		log:     logger.OrNop(log),
	}
}

// GetOrGenerate returns the exposition for ref. A lesson whose text cannot
// be generated comes back with an empty body and is not cached, so a later
// call tries again.
//
// Concurrent callers for one lesson share a single resolution, which runs
// detached from any one caller's cancellation; each caller still stops
// waiting when its own ctx is done.
func (s *Service) GetOrGenerate(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error) {
	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(ref.String(), func() (any, error) {
		return s.resolve(shared, ref)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		e := *res.Val.(*lesson.Exposition)
		return &e, nil
	}
}

func (s *Service) resolve(ctx context.Context, ref lesson.Ref) (*lesson.Exposition, error) {
	cached, err := s.cache.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	e, err := s.catalog.Lookup(ref)
	if err != nil {
		return nil, err
	}

	source := SourceCatalog
	if e.Body == "" {
		body, err := s.generate(ctx, e)
		if err != nil {
			s.log.Warn("exposition generation failed", "lesson", ref.String(), "error", err)
			return &e, nil
		}
		e.Body = body
		source = SourceGenerated
	}

	stored, err := s.cache.Put(ctx, ref, e, source)
	if err != nil {
		return nil, err
	}
	s.log.Info("exposition cached", "lesson", ref.String(), "source", source, "content_id", stored.ContentID)
	return stored, nil
}

func (s *Service) generate(ctx context.Context, e lesson.Exposition) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("no text-generation backend configured")
	}
	text, err := s.prompts.Render(prompt.Exposition, map[string]any{
		"topic":        e.Topic,
		"module_title": e.ModuleTitle,
		"lesson_title": e.LessonTitle,
		"level":        e.Level,
	})
	if err != nil {
		return "", err
	}
	system, _ := s.prompts.System(prompt.Exposition)

	ctx = llm.WithPurpose(ctx, llm.PurposeExposition)
	return s.client.GenerateText(ctx, text,
		llm.System(system),
		llm.MaxTokens(s.cfg.MaxTokens),
		llm.Temperature(s.cfg.Temperature),
		llm.MaxRetries(s.cfg.MaxRetries),
	)
}
