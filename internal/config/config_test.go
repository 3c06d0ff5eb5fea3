package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every lookup at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{
		"LESSONLOOP_DB", "LESSONLOOP_LOG_MODE", "LESSONLOOP_REDIS_ADDR", "LESSONLOOP_LLM_PROVIDER",
		"LESSONLOOP_ANTHROPIC_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY", "OPENROUTER_API_KEY",
	} {
		t.Setenv(k, "")
	}
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.LogMode)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 50, cfg.Engine.HistoryLimit)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "lessonloop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /tmp/from-file.db
log_mode: dev
llm:
  provider: mock
  timeout: 5s
engine:
  generation_retries: 4
redis:
  addr: localhost:6379
`), 0o644))
	t.Setenv("LESSONLOOP_DB", "/tmp/from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-env.db", cfg.DBPath)
	assert.Equal(t, "dev", cfg.LogMode)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, "lessonloop:turns", cfg.Redis.Channel, "unset keys keep defaults")

	tc := cfg.TutorConfig()
	assert.Equal(t, 4, tc.Practice.MaxRetries)
	assert.Equal(t, cfg.Engine.ExcerptChars, tc.Chat.ExcerptChars)
	assert.NotEmpty(t, tc.Practice.Validators)
}

func TestLoadDotEnv(t *testing.T) {
	dir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LESSONLOOP_LOG_MODE=dev\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("LESSONLOOP_LOG_MODE") })
	os.Unsetenv("LESSONLOOP_LOG_MODE")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "dev", cfg.LogMode)
}

func TestLoadDiscoversProvider(t *testing.T) {
	isolate(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.OpenAI.APIKey)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	dir := isolate(t)
	_, err := Load(filepath.Join(dir, "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.LogMode = "verbose"
	assert.ErrorContains(t, cfg.Validate(), "log_mode")

	cfg = Default()
	cfg.Engine.ChatRetries = -1
	assert.ErrorContains(t, cfg.Validate(), "engine.chat_retries")
}
