package session

import (
	"time"
	"unicode/utf8"
)

const (
	// DefaultMaxHistory is the number of command/output pairs kept per session.
	DefaultMaxHistory = 5
	// MaxStoredOutput bounds each stored output entry, in runes.
	MaxStoredOutput = 200
	// TruncationMarker is appended to shortened text.
	TruncationMarker = "..."
)

// ActiveProcess describes the process occupying a session's slot.
type ActiveProcess struct {
	ID        string    `json:"id"`
	Command   string    `json:"command"`
	StartedAt time.Time `json:"started_at"`
}

// Session is the per-tab terminal state.
type Session struct {
	ID             string         `json:"id"`
	CurrentPath    string         `json:"current_path"`
	CommandHistory []string       `json:"command_history"`
	OutputHistory  []string       `json:"output_history"`
	ActiveProcess  *ActiveProcess `json:"active_process,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	LastActive     time.Time      `json:"last_active"`
}

// Snapshot is the read-only view returned by context inspection.
type Snapshot struct {
	CommandHistory []string `json:"command_history"`
	OutputHistory  []string `json:"output_history"`
	MaxHistory     int      `json:"max_history"`
	CurrentPath    string   `json:"current_path"`
}

// clone returns a deep copy safe to hand outside the store.
func (s *Session) clone() Session {
	c := *s
	c.CommandHistory = append([]string(nil), s.CommandHistory...)
	c.OutputHistory = append([]string(nil), s.OutputHistory...)
	if s.ActiveProcess != nil {
		ap := *s.ActiveProcess
		c.ActiveProcess = &ap
	}
	return c
}

// Truncate shortens s to at most max runes, ending with TruncationMarker
// when anything was cut.
func Truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	keep := max - utf8.RuneCountInString(TruncationMarker)
	if keep < 0 {
		keep = 0
	}
	return string(runes[:keep]) + TruncationMarker
}
