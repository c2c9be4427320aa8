package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webterm/webterm/internal/ai"
)

type fakeModel struct {
	reply   string
	err     error
	delay   time.Duration
	prompts []string
}

func (f *fakeModel) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func (f *fakeModel) Name() string { return "fake" }

func TestIsNaturalLanguage(t *testing.T) {
	tr := New(Options{})

	tests := []struct {
		input string
		want  bool
	}{
		{"ls -la", false},
		{"  cd /tmp", false},
		{"cpu", false},
		{"help", false},
		{"show me the biggest files", true},
		{"count them", true},
		{"lsblk", true},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.IsNaturalLanguage(tt.input))
		})
	}
}

func TestIsNaturalLanguage_CustomVerbs(t *testing.T) {
	tr := New(Options{IsKnownVerb: func(v string) bool { return v == "git" }})
	assert.False(t, tr.IsNaturalLanguage("git status"))
	assert.True(t, tr.IsNaturalLanguage("ls"))
}

func TestTranslate_IncludesHistoryInContext(t *testing.T) {
	model := &fakeModel{reply: "ls | wc -l"}
	tr := New(Options{Model: model})

	cmd, err := tr.Translate(context.Background(), "count them", History{
		Commands: []string{"ls"},
		Outputs:  []string{"a.txt\nb.txt"},
		WorkDir:  "/home/user",
	})
	require.NoError(t, err)
	assert.Equal(t, "ls | wc -l", cmd)

	require.Len(t, model.prompts, 1)
	prompt := model.prompts[0]
	assert.Contains(t, prompt, "$ ls")
	assert.Contains(t, prompt, "a.txt\nb.txt")
	assert.Contains(t, prompt, `User Request: "count them"`)
	assert.Contains(t, prompt, "Current directory: /home/user")
}

func TestTranslate_SanitizesFencedReply(t *testing.T) {
	model := &fakeModel{reply: "Here you go:\n```bash\nfind . -name '*.go'\n```\n"}
	tr := New(Options{Model: model})

	cmd, err := tr.Translate(context.Background(), "find go files", History{})
	require.NoError(t, err)
	assert.Equal(t, "find . -name '*.go'", cmd, "commentary around the block is ignored")

	model.reply = "```bash\nfind . -name '*.go'\n```"
	cmd, err = tr.Translate(context.Background(), "find go files", History{})
	require.NoError(t, err)
	assert.Equal(t, "find . -name '*.go'", cmd)
}

func TestTranslate_NotConfigured(t *testing.T) {
	tr := New(Options{})
	assert.False(t, tr.Enabled())

	_, err := tr.Translate(context.Background(), "list files", History{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(err, ai.ErrNotConfigured))
	assert.Contains(t, err.Error(), "AI features are not configured")
}

func TestTranslate_ModelError(t *testing.T) {
	tr := New(Options{Model: &fakeModel{err: errors.New("quota exceeded")}})

	_, err := tr.Translate(context.Background(), "list files", History{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestTranslate_Timeout(t *testing.T) {
	tr := New(Options{
		Model:   &fakeModel{delay: time.Second},
		Timeout: 20 * time.Millisecond,
	})

	_, err := tr.Translate(context.Background(), "list files", History{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "timed out")
}

func TestTranslate_Refusal(t *testing.T) {
	tr := New(Options{Model: &fakeModel{reply: "Error: Ambiguous or unsafe request."}})

	_, err := tr.Translate(context.Background(), "delete everything", History{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, "Error: Ambiguous or unsafe request.", err.Error())
}

func TestTranslate_EmptyReply(t *testing.T) {
	tr := New(Options{Model: &fakeModel{reply: "```\n```"}})

	_, err := tr.Translate(context.Background(), "anything", History{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestBuildContext(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "", BuildContext(History{}))
	})

	t.Run("most recent last", func(t *testing.T) {
		ctx := BuildContext(History{
			Commands: []string{"pwd", "ls"},
			Outputs:  []string{"/tmp", "x"},
		})
		assert.Less(t, strings.Index(ctx, "$ pwd"), strings.Index(ctx, "$ ls"))
	})

	t.Run("long output truncated", func(t *testing.T) {
		ctx := BuildContext(History{
			Commands: []string{"cat big"},
			Outputs:  []string{strings.Repeat("y", 500)},
		})
		assert.Contains(t, ctx, strings.Repeat("y", ContextOutputLimit-3)+"...")
		assert.NotContains(t, ctx, strings.Repeat("y", ContextOutputLimit))
	})
}
