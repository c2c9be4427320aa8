package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecurityController_Validate(t *testing.T) {
	controller := NewSecurityController(DefaultPolicy())

	tests := []struct {
		name    string
		command string
		allowed bool
		reason  string
	}{
		{"plain ls", "ls", true, ""},
		{"ls with flags", "ls -la /tmp", true, ""},
		{"cd parent", "cd ..", true, ""},
		{"cd two levels", "cd ../..", true, ""},
		{"quoted argument", `echo "hello; world"`, true, ""},
		{"single quoted dollar", `echo '$HOME'`, true, ""},
		{"allowed pipe", "ls | grep txt", true, ""},
		{"monitoring alias", "cpu", true, ""},
		{"empty", "   ", false, "Command is empty"},
		{"unknown verb", "curl http://example.com", false, "Command 'curl' is not allowed"},
		{"absolute binary", "/bin/rm -rf /tmp/x", false, "Command '/bin/rm' is not allowed"},
		{"rm root", "rm -rf /", false, "Refusing destructive operation: rm /"},
		{"rm home", "rm -rf ~", false, "Refusing destructive operation: rm ~"},
		{"rm top-level dir", "rm -r /usr", false, "recursive rm of top-level directory /usr"},
		{"rooted traversal", "cat /tmp/../etc/passwd", false, "Path traversal is not allowed"},
		{"deep relative traversal", "cat ../../../etc/passwd", false, "Path traversal is not allowed"},
		{"traversal in flag value", "ls --directory=/var/../etc", false, "Path traversal is not allowed"},
		{"chaining semicolon", "ls; rm -rf x", false, "';'"},
		{"chaining and", "ls && pwd", false, "'&&'"},
		{"chaining or", "ls || pwd", false, "'||'"},
		{"background", "ls &", false, "background"},
		{"redirection", "echo hi > file.txt", false, "redirection"},
		{"command substitution", "echo $(whoami)", false, "substitution"},
		{"backticks", "echo `whoami`", false, "substitution"},
		{"variable in double quotes", `echo "$HOME"`, false, "variable expansion"},
		{"pipe to unknown", "ls | sh", false, "Command 'sh' is not allowed in a pipeline"},
		{"unterminated quote", `echo "oops`, false, "unterminated quote"},
		{"find exec", `find . -name x -exec rm {} \;`, false, "Refusing find -exec"},
		{"find fprintf", "find . -fprintf /tmp/out x", false, "Refusing find -fprintf"},
		{"find fprint0", "find . -fprint0 /tmp/out", false, "Refusing find -fprint0"},
		{"find execdir", `find . -execdir sh \;`, false, "Refusing find -execdir"},
		{"rm dot glob", "rm -rf ./*", false, "Refusing destructive operation: rm ./*"},
		{"rm top-level glob", "rm -rf /home/*", false, "recursive rm of everything in /home"},
		{"rm nested glob", "rm -rf /tmp/build/*", true, ""},
		{"dangling pipe", "ls |", false, "empty pipeline stage"},
		{"cd in pipeline", "cd / | ls", false, "Command 'cd' cannot be used in a pipeline"},
		{"cd after pipe", "ls | cd /tmp", false, "Command 'cd' cannot be used in a pipeline"},
		{"help in pipeline", "help | grep ls", false, "Command 'help' cannot be used in a pipeline"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := controller.Validate(tt.command)
			require.NotNil(t, result)
			assert.Equal(t, tt.allowed, result.Allowed, "reason: %s", result.Reason)
			if !tt.allowed {
				assert.Contains(t, result.Reason, tt.reason)
			}
		})
	}
}

func TestSecurityController_MaxLength(t *testing.T) {
	policy := DefaultPolicy()
	policy.MaxCommandLength = 10
	controller := NewSecurityController(policy)

	assert.True(t, controller.Validate("ls -la").Allowed)

	result := controller.Validate("echo " + strings.Repeat("a", 20))
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "maximum length of 10")
}

func TestSecurityController_PipesDisabled(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowPipes = false
	controller := NewSecurityController(policy)

	result := controller.Validate("ls | grep x")
	assert.False(t, result.Allowed)
	assert.Contains(t, result.Reason, "pipes are not allowed")
}

func TestSecurityController_ExtraAllowedCommands(t *testing.T) {
	policy := DefaultPolicy()
	policy.AllowedCommands = []string{"git"}
	controller := NewSecurityController(policy)

	assert.True(t, controller.Validate("git status").Allowed)
	assert.True(t, controller.IsAllowedVerb("git"))
	assert.Contains(t, controller.Verbs(), "git")
}

func TestSecurityController_RestrictedRelativeToWorkDir(t *testing.T) {
	tmpDir := t.TempDir()
	secret := filepath.Join(tmpDir, "secret")
	require.NoError(t, os.MkdirAll(secret, 0755))

	policy := DefaultPolicy()
	policy.RestrictedPaths = []string{secret}
	controller := NewSecurityController(policy)

	assert.False(t, controller.ValidateIn("ls secret", tmpDir).Allowed)
	assert.False(t, controller.Validate("ls "+secret).Allowed)
	assert.True(t, controller.ValidateIn("ls public", tmpDir).Allowed)
	// Without a working directory a relative path cannot be resolved.
	assert.True(t, controller.Validate("ls secret").Allowed)
}

func TestSecurityController_NeverPanics(t *testing.T) {
	controller := NewSecurityController(nil)
	inputs := []string{"", "|", "||", "\\", "'", "\"", "ls |", "| ls", "\x00", "\xff\xfe", "--", "-"}

	for _, in := range inputs {
		assert.NotPanics(t, func() {
			result := controller.Validate(in)
			require.NotNil(t, result)
			if !result.Allowed {
				assert.NotEmpty(t, result.Reason)
			}
		}, "input %q", in)
	}
}
