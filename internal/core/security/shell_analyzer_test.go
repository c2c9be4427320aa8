package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellCommandAnalyzer_Lex(t *testing.T) {
	analyzer := NewShellCommandAnalyzer(&SecurityPolicy{AllowPipes: true})

	tests := []struct {
		name   string
		cmdStr string
		stages [][]string
	}{
		{"simple", "ls -la", [][]string{{"ls", "-la"}}},
		{"extra spaces", "  ls \t -la  ", [][]string{{"ls", "-la"}}},
		{"double quotes", `echo "hello world"`, [][]string{{"echo", "hello world"}}},
		{"single quotes", `echo 'a|b'`, [][]string{{"echo", "a|b"}}},
		{"escaped space", `cat my\ file`, [][]string{{"cat", "my file"}}},
		{"empty quotes", `echo ""`, [][]string{{"echo", ""}}},
		{"pipeline", "ls | grep x", [][]string{{"ls"}, {"grep", "x"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzer.Lex(tt.cmdStr)
			assert.Empty(t, a.Violation)
			assert.Equal(t, tt.stages, a.Stages)
		})
	}
}

func TestShellCommandAnalyzer_Violations(t *testing.T) {
	analyzer := NewShellCommandAnalyzer(&SecurityPolicy{AllowPipes: true})

	tests := []struct {
		name      string
		cmdStr    string
		violation string
	}{
		{"safe pipe", "ls | grep test", ""},
		{"quoted semicolon", `echo "a;b"`, ""},
		{"redirect", "echo hello > /tmp/file", "redirection"},
		{"semicolon", "ls; pwd", "';'"},
		{"newline", "ls\npwd", "multi-line"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzer.Lex(tt.cmdStr)
			if tt.violation == "" {
				assert.Empty(t, a.Violation)
				return
			}
			assert.Contains(t, a.Violation, tt.violation)
		})
	}
}

func TestShellCommandAnalyzer_PipesDisabled(t *testing.T) {
	analyzer := NewShellCommandAnalyzer(&SecurityPolicy{AllowPipes: false})

	a := analyzer.Lex("ls | grep test")
	assert.Contains(t, a.Violation, "pipes are not allowed")
}
