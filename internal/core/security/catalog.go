package security

import "sort"

// Builtins are the literal command verbs accepted without translation.
var Builtins = []string{
	"ls", "cd", "pwd", "mkdir", "rm", "cat", "echo", "touch", "cp", "mv",
	"head", "tail", "grep", "find", "wc", "du", "df", "date", "whoami",
	"uname", "which", "tree", "help", "clear",
}

// MonitorAliases are system-monitoring shortcuts expanded by the execution
// engine into platform commands.
var MonitorAliases = []string{"cpu", "mem", "ps", "disk", "uptime", "top"}

// InternalVerbs are answered by the engine itself without spawning a process.
var InternalVerbs = []string{"help", "clear"}

var (
	builtinSet = toSet(Builtins)
	aliasSet   = toSet(MonitorAliases)
	internals  = toSet(InternalVerbs)
)

// IsKnownVerb reports whether verb is a built-in or a monitoring alias.
func IsKnownVerb(verb string) bool {
	return builtinSet[verb] || aliasSet[verb]
}

// IsMonitorAlias reports whether verb is a monitoring alias.
func IsMonitorAlias(verb string) bool {
	return aliasSet[verb]
}

// IsInternalVerb reports whether verb is handled without a child process.
func IsInternalVerb(verb string) bool {
	return internals[verb]
}

// KnownVerbs returns the sorted, de-duplicated verb set including extra.
func KnownVerbs(extra []string) []string {
	set := toSet(Builtins)
	for _, v := range MonitorAliases {
		set[v] = true
	}
	for _, v := range extra {
		if v != "" {
			set[v] = true
		}
	}

	verbs := make([]string, 0, len(set))
	for v := range set {
		verbs = append(verbs, v)
	}
	sort.Strings(verbs)
	return verbs
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
