package translate

import "strings"

const fence = "```"

// Sanitize reduces a raw model reply to one command line. When the reply
// contains a fenced block, the first non-empty line inside the first block
// is the command and any commentary around it is ignored. Otherwise the
// first non-empty line is used. Inline backticks and a leading "$ " prompt
// are removed.
func Sanitize(reply string) string {
	lines := strings.Split(reply, "\n")

	inBlock := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, fence) {
			if inBlock {
				if cmd := cleanLine(line); cmd != "" {
					return cmd
				}
			}
			continue
		}
		inner := strings.TrimPrefix(line, fence)
		if strings.HasSuffix(inner, fence) {
			// Single-line block.
			if cmd := cleanLine(strings.TrimSuffix(inner, fence)); cmd != "" {
				return cmd
			}
			continue
		}
		if inBlock {
			// Closing fence of an empty block.
			inBlock = false
			continue
		}
		inBlock = true
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), fence) {
			continue
		}
		if cmd := cleanLine(line); cmd != "" {
			return cmd
		}
	}
	return ""
}

func cleanLine(line string) string {
	line = strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "`"))
	return strings.TrimSpace(strings.TrimPrefix(line, "$ "))
}
