package security

import (
	"fmt"
	"strings"
)

// ShellCommandAnalyzer splits a command string into pipeline stages and
// records the first shell construct that could chain or inject commands.
type ShellCommandAnalyzer struct {
	allowPipes bool
}

// NewShellCommandAnalyzer creates a new shell analyzer.
func NewShellCommandAnalyzer(policy *SecurityPolicy) *ShellCommandAnalyzer {
	return &ShellCommandAnalyzer{
		allowPipes: policy.AllowPipes,
	}
}

// CheckResult represents the result of a security check.
type CheckResult struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

func accept() *CheckResult {
	return &CheckResult{Allowed: true}
}

func reject(format string, args ...any) *CheckResult {
	return &CheckResult{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// Analysis is the lexed form of a command string.
type Analysis struct {
	// Stages holds the tokens of each pipeline stage, quotes removed.
	Stages [][]string
	// Violation is the first forbidden construct found, empty if none.
	Violation string
}

// Tokens returns the tokens of the first stage.
func (a *Analysis) Tokens() []string {
	if len(a.Stages) == 0 {
		return nil
	}
	return a.Stages[0]
}

// Lex tokenizes cmdStr the way a POSIX shell would split words, without
// performing any expansion. Characters inside single quotes are literal.
func (sa *ShellCommandAnalyzer) Lex(cmdStr string) *Analysis {
	a := &Analysis{}
	var (
		stage   []string
		current strings.Builder
		inWord  bool
		single  bool
		double  bool
		escaped bool
	)

	flushWord := func() {
		if inWord {
			stage = append(stage, current.String())
			current.Reset()
			inWord = false
		}
	}
	violate := func(reason string) {
		if a.Violation == "" {
			a.Violation = reason
		}
	}

	runes := []rune(cmdStr)
	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if escaped {
			current.WriteRune(r)
			inWord = true
			escaped = false
			continue
		}

		if single {
			if r == '\'' {
				single = false
			} else {
				current.WriteRune(r)
			}
			continue
		}

		if double {
			switch r {
			case '"':
				double = false
			case '\\':
				escaped = true
			case '`':
				violate("command substitution is not allowed")
			case '$':
				violate("variable expansion and command substitution are not allowed")
			default:
				current.WriteRune(r)
			}
			continue
		}

		switch r {
		case ' ', '\t':
			flushWord()
		case '\\':
			escaped = true
			inWord = true
		case '\'':
			single = true
			inWord = true
		case '"':
			double = true
			inWord = true
		case '\n', '\r':
			violate("multi-line commands are not allowed")
		case ';':
			violate("command chaining with ';' is not allowed")
		case '&':
			if i+1 < len(runes) && runes[i+1] == '&' {
				violate("command chaining with '&&' is not allowed")
				i++
			} else {
				violate("background execution with '&' is not allowed")
			}
		case '|':
			if i+1 < len(runes) && runes[i+1] == '|' {
				violate("command chaining with '||' is not allowed")
				i++
				continue
			}
			if !sa.allowPipes {
				violate("pipes are not allowed")
			}
			flushWord()
			a.Stages = append(a.Stages, stage)
			stage = nil
		case '>', '<':
			violate("input/output redirection is not allowed")
		case '`':
			violate("command substitution is not allowed")
		case '$':
			violate("variable expansion and command substitution are not allowed")
		default:
			current.WriteRune(r)
			inWord = true
		}
	}

	if single || double {
		violate("unterminated quote")
	}
	if escaped {
		violate("trailing escape character")
	}

	flushWord()
	a.Stages = append(a.Stages, stage)
	return a
}
