package translate

import (
	"fmt"
	"strings"

	"github.com/webterm/webterm/internal/core/session"
)

// ContextOutputLimit bounds each history output embedded in the prompt.
const ContextOutputLimit = 100

// History is the session state a translation may refer to.
type History struct {
	Commands []string
	Outputs  []string
	WorkDir  string
}

// FromSession copies the history of s.
func FromSession(s session.Session) History {
	return History{
		Commands: s.CommandHistory,
		Outputs:  s.OutputHistory,
		WorkDir:  s.CurrentPath,
	}
}

const promptTemplate = `You are an expert system administrator inside a web-based command terminal.
Your task is to convert a natural language request into a single, executable shell command.
- Only return the shell command.
- Do not include any explanation, preamble, or markdown formatting.
- The command must be directly runnable.
- If the request is ambiguous or seems dangerous (like 'delete everything'), return "Error: Ambiguous or unsafe request."
%s
User Request: "%s"

Command:
`

// BuildContext renders the history pairs oldest first. It returns "" when
// there is nothing to show.
func BuildContext(hist History) string {
	var b strings.Builder
	if hist.WorkDir != "" {
		fmt.Fprintf(&b, "Current directory: %s\n", hist.WorkDir)
	}

	n := len(hist.Commands)
	if len(hist.Outputs) < n {
		n = len(hist.Outputs)
	}
	if n > 0 {
		b.WriteString("Recent commands and their output (most recent last):\n")
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "$ %s\n", hist.Commands[i])
			if out := strings.TrimSpace(hist.Outputs[i]); out != "" {
				fmt.Fprintf(&b, "%s\n", session.Truncate(out, ContextOutputLimit))
			}
		}
	}
	return b.String()
}

// BuildPrompt embeds input and its context in the instruction template.
func BuildPrompt(input string, hist History) string {
	ctxBlock := BuildContext(hist)
	if ctxBlock != "" {
		ctxBlock = "\n" + ctxBlock
	}
	return fmt.Sprintf(promptTemplate, ctxBlock, strings.TrimSpace(input))
}
