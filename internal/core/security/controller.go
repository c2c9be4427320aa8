package security

import (
	"strings"
	"unicode/utf8"
)

// SecurityController coordinates all security checks.
type SecurityController struct {
	policy        *SecurityPolicy
	verbs         map[string]bool
	dangerChecker *DangerousCommandChecker
	pathChecker   *PathAccessChecker
	shellAnalyzer *ShellCommandAnalyzer
}

// NewSecurityController creates a new security controller.
func NewSecurityController(policy *SecurityPolicy) *SecurityController {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxCommandLength <= 0 {
		policy.MaxCommandLength = DefaultMaxCommandLength
	}
	return &SecurityController{
		policy:        policy,
		verbs:         toSet(KnownVerbs(policy.AllowedCommands)),
		dangerChecker: NewDangerousCommandChecker(),
		pathChecker:   NewPathAccessChecker(policy),
		shellAnalyzer: NewShellCommandAnalyzer(policy),
	}
}

// Verbs returns the sorted allow-list in effect.
func (sc *SecurityController) Verbs() []string {
	return KnownVerbs(sc.policy.AllowedCommands)
}

// IsAllowedVerb reports whether verb is on the allow-list in effect.
func (sc *SecurityController) IsAllowedVerb(verb string) bool {
	return sc.verbs[verb]
}

// Validate checks a command string without a working directory; relative
// paths are then not compared against restricted paths.
func (sc *SecurityController) Validate(command string) *CheckResult {
	return sc.ValidateIn(command, "")
}

// ValidateIn checks a command string that will run in workDir.
func (sc *SecurityController) ValidateIn(command, workDir string) *CheckResult {
	trimmed := strings.TrimSpace(command)

	// Check 1: size
	if trimmed == "" {
		return reject("Command is empty")
	}
	if len(trimmed) > sc.policy.MaxCommandLength {
		return reject("Command exceeds the maximum length of %d characters", sc.policy.MaxCommandLength)
	}
	if !utf8.ValidString(trimmed) {
		return reject("Command contains invalid UTF-8")
	}

	analysis := sc.shellAnalyzer.Lex(trimmed)
	tokens := analysis.Tokens()

	// Check 2: allow-listed verb
	if len(tokens) == 0 || tokens[0] == "" {
		return reject("Command rejected: no command verb found")
	}
	if !sc.verbs[tokens[0]] {
		return reject("Command '%s' is not allowed", tokens[0])
	}

	// Check 3: path traversal, restricted paths, destructive targets
	for _, stage := range analysis.Stages {
		for _, p := range sc.pathChecker.ExtractPaths(stage) {
			if sc.pathChecker.EscapesRoot(p) {
				return reject("Path traversal is not allowed: %s", p)
			}
			if sc.pathChecker.IsRestricted(p, workDir) {
				return reject("Access denied: %s is restricted", p)
			}
		}
		if result := sc.dangerChecker.Check(stage); result != nil {
			return result
		}
	}

	// Check 4: shell metacharacters
	if analysis.Violation != "" {
		return reject("Command rejected: %s", analysis.Violation)
	}
	for _, stage := range analysis.Stages[1:] {
		if len(stage) == 0 {
			return reject("Command rejected: empty pipeline stage")
		}
		if !sc.verbs[stage[0]] {
			return reject("Command '%s' is not allowed in a pipeline", stage[0])
		}
	}
	if len(analysis.Stages) > 1 {
		for _, stage := range analysis.Stages {
			if stage[0] == "cd" || IsInternalVerb(stage[0]) {
				return reject("Command '%s' cannot be used in a pipeline", stage[0])
			}
		}
	}

	return accept()
}
