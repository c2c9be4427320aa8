// Package complete suggests command verbs and filesystem paths for
// partially typed input. It only reads the filesystem.
package complete

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultMaxSuggestions caps one suggestion list.
const DefaultMaxSuggestions = 50

// Options configures a Completer.
type Options struct {
	Verbs          []string
	MaxSuggestions int
	HomeDir        string
}

// Completer produces suggestions.
type Completer struct {
	verbs   []string
	max     int
	homeDir string
}

// New creates a Completer.
func New(opts Options) *Completer {
	if opts.MaxSuggestions <= 0 {
		opts.MaxSuggestions = DefaultMaxSuggestions
	}
	if opts.HomeDir == "" {
		opts.HomeDir, _ = os.UserHomeDir()
	}
	verbs := append([]string(nil), opts.Verbs...)
	sort.Strings(verbs)
	return &Completer{verbs: verbs, max: opts.MaxSuggestions, homeDir: opts.HomeDir}
}

// Suggest returns completions for text typed in baseDir. Without a space
// the text is a verb prefix; otherwise its last token is a path fragment.
// Directories end with "/".
func (c *Completer) Suggest(text, baseDir string) []string {
	if !strings.ContainsAny(text, " \t") {
		return c.verbsWithPrefix(text)
	}

	fragment := ""
	if fields := strings.Fields(text); len(fields) > 1 && !strings.HasSuffix(text, " ") && !strings.HasSuffix(text, "\t") {
		fragment = fields[len(fields)-1]
	}
	return c.paths(fragment, baseDir)
}

func (c *Completer) verbsWithPrefix(prefix string) []string {
	out := []string{}
	for _, v := range c.verbs {
		if strings.HasPrefix(v, prefix) {
			out = append(out, v)
			if len(out) == c.max {
				break
			}
		}
	}
	return out
}

func (c *Completer) paths(fragment, baseDir string) []string {
	out := []string{}

	dirPart, prefix := "", fragment
	if idx := strings.LastIndexAny(fragment, `/\`); idx >= 0 {
		dirPart, prefix = fragment[:idx+1], fragment[idx+1:]
	}
	if fragment == "~" {
		dirPart, prefix = "~/", ""
	}

	lookup := c.resolve(dirPart, baseDir)
	if lookup == "" {
		return out
	}

	entries, err := os.ReadDir(lookup)
	if err != nil {
		return out
	}

	shown := filepath.ToSlash(dirPart)
	showHidden := strings.HasPrefix(prefix, ".")
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if strings.HasPrefix(name, ".") && !showHidden {
			continue
		}
		suggestion := shown + name
		if isDir(lookup, entry) {
			suggestion += "/"
		}
		out = append(out, suggestion)
	}

	sort.Strings(out)
	if len(out) > c.max {
		out = out[:c.max]
	}
	return out
}

// resolve maps the directory part of a fragment to a directory to list.
func (c *Completer) resolve(dirPart, baseDir string) string {
	switch {
	case strings.HasPrefix(dirPart, "~"):
		if c.homeDir == "" {
			return ""
		}
		return filepath.Join(c.homeDir, strings.TrimPrefix(dirPart, "~"))
	case dirPart == "":
		return baseDir
	case filepath.IsAbs(dirPart) || strings.HasPrefix(dirPart, "/"):
		return filepath.FromSlash(dirPart)
	case baseDir == "":
		return ""
	default:
		return filepath.Join(baseDir, dirPart)
	}
}

func isDir(dir string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, entry.Name()))
	return err == nil && info.IsDir()
}
