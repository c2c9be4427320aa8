package security

import (
	"path"
	"strings"
)

// DangerousCommandChecker detects destructive uses of allow-listed verbs.
type DangerousCommandChecker struct {
	protectedTargets map[string]bool
	// forbiddenFlags holds flag prefixes, so -exec also covers -execdir.
	forbiddenFlags map[string][]string
}

// NewDangerousCommandChecker creates a new danger checker.
func NewDangerousCommandChecker() *DangerousCommandChecker {
	return &DangerousCommandChecker{
		protectedTargets: toSet([]string{
			"/", "/*", "/.", "~", "~/", "~/*", ".", "./", "..", "../", "*", ".*",
		}),
		forbiddenFlags: map[string][]string{
			"find": {"-exec", "-ok", "-delete", "-fprint", "-fls"},
		},
	}
}

// Check inspects one pipeline stage. It returns a rejection or nil.
func (dc *DangerousCommandChecker) Check(tokens []string) *CheckResult {
	if len(tokens) == 0 {
		return nil
	}
	verb := tokens[0]
	args := tokens[1:]

	for _, flag := range dc.forbiddenFlags[verb] {
		for _, arg := range args {
			if strings.HasPrefix(arg, flag) {
				return reject("Refusing %s %s: the flag can run, write or delete arbitrary files", verb, arg)
			}
		}
	}

	if verb != "rm" {
		return nil
	}

	recursive := false
	for _, arg := range args {
		if isRecursiveFlag(arg) {
			recursive = true
		}
	}

	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		cleaned := path.Clean(arg)
		if dc.protectedTargets[arg] || dc.protectedTargets[cleaned] {
			return reject("Refusing destructive operation: rm %s", arg)
		}
		if !strings.HasPrefix(cleaned, "/") {
			continue
		}
		if cleaned == "/" {
			return reject("Refusing destructive operation: rm %s", arg)
		}
		if !recursive {
			continue
		}
		if strings.Count(cleaned, "/") == 1 {
			return reject("Refusing destructive operation: recursive rm of top-level directory %s", cleaned)
		}
		if isGlob(path.Base(cleaned)) && strings.Count(path.Dir(cleaned), "/") == 1 {
			return reject("Refusing destructive operation: recursive rm of everything in %s", path.Dir(cleaned))
		}
	}

	return nil
}

func isRecursiveFlag(arg string) bool {
	if arg == "--recursive" {
		return true
	}
	if strings.HasPrefix(arg, "--") || !strings.HasPrefix(arg, "-") {
		return false
	}
	return strings.ContainsAny(arg[1:], "rR")
}

func isGlob(name string) bool {
	return strings.ContainsAny(name, "*?[")
}
