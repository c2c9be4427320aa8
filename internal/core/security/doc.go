// Package security validates command strings before they reach the
// execution engine.
//
// Every execution path, literal or translated, passes through the same
// SecurityController. Validation runs four checks in order:
//
//   - size: the command is non-empty and below the configured length
//   - verb: the first token is an allow-listed built-in or monitoring alias
//   - paths: no root-escaping traversal, no restricted paths, no destructive targets
//   - shell: no chaining, substitution or redirection metacharacters
//
// A check never returns an error; it always produces a CheckResult whose
// Reason is shown to the user verbatim.
package security
