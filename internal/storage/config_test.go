package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webterm/webterm/internal/core/security"
)

// isolate points HOME at a temp dir and clears API key variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("WEBTERM_AI_API_KEY", "")
	return home
}

func TestGetConfigDir(t *testing.T) {
	home := isolate(t)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, AppDirName), dir)
}

func TestInitConfig_Defaults(t *testing.T) {
	isolate(t)

	cfg, err := InitConfig("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:5000", cfg.Server.Addr)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
	assert.Empty(t, cfg.AI.APIKey)
	assert.Equal(t, 1024, cfg.Security.MaxCommandLength)
	assert.Equal(t, 2, cfg.Security.MaxParentDepth)
	assert.True(t, cfg.Security.AllowPipes)
	assert.Equal(t, 60*time.Second, cfg.Execution.Timeout)
	assert.Equal(t, 180*time.Second, cfg.Execution.MonitorTimeout)
	assert.Equal(t, int64(64), cfg.Execution.MaxProcesses)
	assert.Equal(t, 1<<20, cfg.Execution.MaxOutputBytes)
	assert.Equal(t, 5, cfg.Session.MaxHistory)
	assert.Equal(t, 30*time.Minute, cfg.Session.IdleTimeout)
	assert.Equal(t, 50, cfg.Complete.MaxSuggestions)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestInitConfig_FileAndEnv(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":8080"
ai:
  provider: openai
  timeout: 5s
security:
  allowed_commands: [git]
  restricted_paths: [/etc]
execution:
  timeout: 2m
`), 0644))

	t.Setenv("WEBTERM_SESSION_MAX_HISTORY", "7")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := InitConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 5*time.Second, cfg.AI.Timeout)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, []string{"git"}, cfg.Security.AllowedCommands)
	assert.Equal(t, []string{"/etc"}, cfg.Security.RestrictedPaths)
	assert.Equal(t, 2*time.Minute, cfg.Execution.Timeout)
	assert.Equal(t, 7, cfg.Session.MaxHistory)
}

func TestInitConfig_GoogleKey(t *testing.T) {
	isolate(t)
	t.Setenv("GOOGLE_API_KEY", "g-key")

	cfg, err := InitConfig("")
	require.NoError(t, err)
	assert.Equal(t, "g-key", cfg.AI.APIKey)
}

func TestInitConfig_MissingExplicitFile(t *testing.T) {
	home := isolate(t)

	_, err := InitConfig(filepath.Join(home, "nope.yaml"))
	assert.Error(t, err)
}

func TestInitConfig_InvalidProvider(t *testing.T) {
	isolate(t)
	t.Setenv("WEBTERM_AI_PROVIDER", "llama")

	_, err := InitConfig("")
	assert.ErrorContains(t, err, "unknown ai.provider")
}

func TestInitConfig_IdleTimeout(t *testing.T) {
	isolate(t)

	t.Setenv("WEBTERM_SESSION_IDLE_TIMEOUT", "0s")
	cfg, err := InitConfig("")
	require.NoError(t, err)
	assert.Zero(t, cfg.Session.IdleTimeout, "zero disables eviction")

	t.Setenv("WEBTERM_SESSION_IDLE_TIMEOUT", "-1m")
	_, err = InitConfig("")
	assert.ErrorContains(t, err, "session.idle_timeout")
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Server.Addr = ":9000"
	cfg.AI.Provider = "openai"
	cfg.AI.Model = "test-model"
	cfg.Execution.MonitorTimeout = 5 * time.Minute
	cfg.Security.RestrictedPaths = []string{"/root"}
	cfg.Session.IdleTimeout = 90 * time.Second

	require.NoError(t, SaveConfig(cfg, ""))

	path, err := DefaultConfigPath()
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err, "config file was not created")

	loaded, err := InitConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":9000", loaded.Server.Addr)
	assert.Equal(t, "openai", loaded.AI.Provider)
	assert.Equal(t, "test-model", loaded.AI.Model)
	assert.Equal(t, 5*time.Minute, loaded.Execution.MonitorTimeout)
	assert.Equal(t, []string{"/root"}, loaded.Security.RestrictedPaths)
	assert.Equal(t, 90*time.Second, loaded.Session.IdleTimeout)
}

func TestInitConfig_SecurityPolicyDrivesController(t *testing.T) {
	home := isolate(t)
	secret := filepath.Join(home, "secret")
	require.NoError(t, os.Mkdir(secret, 0755))
	path := filepath.Join(home, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
security:
  allowed_commands: [git]
  restricted_paths: [`+secret+`]
  allow_pipes: false
`), 0644))

	cfg, err := InitConfig(path)
	require.NoError(t, err)

	sc := security.NewSecurityController(&cfg.Security)
	assert.True(t, sc.Validate("git status").Allowed)
	assert.False(t, sc.ValidateIn("cat secret/key", home).Allowed)
	assert.False(t, sc.Validate("ls | wc -l").Allowed)
	assert.True(t, sc.Validate("ls -la").Allowed)
}
