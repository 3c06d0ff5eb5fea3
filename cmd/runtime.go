package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonloop/internal/config"
	"github.com/abhisek/lessonloop/internal/events"
	"github.com/abhisek/lessonloop/internal/exposition"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/llm"
	"github.com/abhisek/lessonloop/internal/logger"
	"github.com/abhisek/lessonloop/internal/prompt"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/tutor"
)

// runtime is everything a command needs to talk to the engine.
type runtime struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *store.Store
	catalog *exposition.Catalog
	engine  *tutor.Engine
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
	r.log.Sync()
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// openStore opens only the database, for commands that never call a model.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	dbPath, err := resolveDBPath(cmd, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	s, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// newRuntime wires the store, model client, prompts, catalog and event
// publisher into an engine. quiet discards logs, for the full-screen UI.
func newRuntime(cmd *cobra.Command, quiet bool) (*runtime, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	log := logger.Nop()
	if !quiet {
		if log, err = logger.New(cfg.LogMode); err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}
	rt := &runtime{cfg: cfg, log: log}

	dbPath, err := resolveDBPath(cmd, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("resolve database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	rt.store = st
	rt.closers = append(rt.closers, st.Close)

	client, err := llm.NewClientFromConfig(ctx, cfg.LLM, st.EventRepo(), log)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("LLM provider not configured: %w", err)
	}

	prompts, err := prompt.Load(cfg.Prompts.Dir)
	if err != nil {
		rt.Close()
		return nil, err
	}

	catalog, err := exposition.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.catalog = catalog

	var publisher tutor.Publisher = events.Nop{}
	if cfg.Redis.Addr != "" {
		p, err := events.NewRedisPublisher(ctx, cfg.Redis.Addr, cfg.Redis.Channel, log)
		if err != nil {
			rt.Close()
			return nil, err
		}
		publisher = p
		rt.closers = append(rt.closers, p.Close)
	}

	expositions := exposition.NewService(catalog, st.ExpositionRepo(), client, prompts, exposition.DefaultConfig(), log)
	rt.engine = tutor.New(tutor.Deps{
		Store:       st.SessionRepo(),
		Expositions: expositions,
		Publisher:   publisher,
		Client:      client,
		Prompts:     prompts,
		Logger:      log,
	}, cfg.TutorConfig())

	return rt, nil
}

// userID returns --user, falling back to $USER.
func userID(cmd *cobra.Command) (string, error) {
	id, _ := cmd.Flags().GetString("user")
	if id == "" {
		id = os.Getenv("USER")
	}
	if id == "" {
		return "", errors.New("learner id is required: pass --user")
	}
	return id, nil
}

// lessonKey builds the session key from --user and the lesson flags.
func lessonKey(cmd *cobra.Command) (lesson.Key, error) {
	id, err := userID(cmd)
	if err != nil {
		return lesson.Key{}, err
	}
	syllabus, _ := cmd.Flags().GetString("syllabus")
	module, _ := cmd.Flags().GetInt("module")
	lessonIdx, _ := cmd.Flags().GetInt("lesson")
	key := lesson.Key{
		UserID: id,
		Ref:    lesson.Ref{SyllabusID: syllabus, ModuleIndex: module, LessonIndex: lessonIdx},
	}
	return key, key.Validate()
}

// addLessonFlags registers the flags read by lessonKey.
func addLessonFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("syllabus", "s", "", "Syllabus id")
	cmd.Flags().IntP("module", "m", 0, "Module index, from 0")
	cmd.Flags().IntP("lesson", "l", 0, "Lesson index, from 0")
	_ = cmd.MarkFlagRequired("syllabus")
}
