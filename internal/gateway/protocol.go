package gateway

import (
	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/execution"
)

// DefaultSessionID is used when a request carries no session id.
const DefaultSessionID = "default"

func sessionOrDefault(id string) string {
	if id == "" {
		return DefaultSessionID
	}
	return id
}

// commandRequest is the body of POST /api/command. Path is the client's
// idea of the working directory; the session's own path is authoritative.
type commandRequest struct {
	Command   string `json:"command"`
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
}

type commandResponse struct {
	Output    *string `json:"output"`
	Error     *string `json:"error"`
	NewPath   *string `json:"new_path"`
	Kind      string  `json:"kind,omitempty"`
	Status    string  `json:"status,omitempty"`
	ProcessID string  `json:"process_id,omitempty"`
}

type autocompleteRequest struct {
	Text      string `json:"text"`
	Path      string `json:"path"`
	SessionID string `json:"sessionId"`
}

type autocompleteResponse struct {
	Suggestions []string `json:"suggestions"`
}

type cancelRequest struct {
	ProcessID string `json:"process_id"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type closeSessionResponse struct {
	Closed bool `json:"closed"`
}

type healthResponse struct {
	Status      string `json:"status"`
	Sessions    int    `json:"sessions"`
	Running     int    `json:"running"`
	Translation bool   `json:"translation"`
}

type contextResponse struct {
	CommandHistory []string `json:"command_history"`
	OutputHistory  []string `json:"output_history"`
	MaxHistory     int      `json:"max_history"`
	CurrentPath    string   `json:"current_path"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Client to server WebSocket message types.
const (
	msgExecute      = "execute"
	msgCancel       = "cancel"
	msgCloseSession = "close_session"
)

// Server to client WebSocket message types.
const (
	msgStarted = "started"
	msgOutput  = "output"
	msgError   = "error"
)

type clientMessage struct {
	Type      string `json:"type"`
	Command   string `json:"command,omitempty"`
	Path      string `json:"path,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	ProcessID string `json:"process_id,omitempty"`
	// ProcessIDAlt accepts the camelCase spelling some clients send.
	ProcessIDAlt string `json:"processId,omitempty"`
}

func (m clientMessage) processID() string {
	if m.ProcessID != "" {
		return m.ProcessID
	}
	return m.ProcessIDAlt
}

type startedMessage struct {
	Type       string `json:"type"`
	SessionID  string `json:"session_id"`
	ProcessID  string `json:"process_id"`
	Command    string `json:"command"`
	Translated bool   `json:"translated"`
}

type outputMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	ProcessID string `json:"process_id"`
	Output    string `json:"output"`
	IsError   bool   `json:"is_error"`
	Finished  bool   `json:"finished"`
	NewPath   string `json:"new_path,omitempty"`
	Status    string `json:"status,omitempty"`
}

type errorMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
}

func newOutputMessage(ev execution.OutputEvent) outputMessage {
	return outputMessage{
		Type:      msgOutput,
		SessionID: ev.SessionID,
		ProcessID: ev.ProcessID,
		Output:    ev.Chunk,
		IsError:   ev.IsError,
		Finished:  ev.Finished,
		NewPath:   ev.NewPath,
		Status:    string(ev.Status),
	}
}

func newErrorMessage(sessionID string, err error) errorMessage {
	e := core.AsError(err)
	return errorMessage{
		Type:      msgError,
		SessionID: sessionID,
		Message:   e.Error(),
		Kind:      string(e.Kind),
	}
}

func strPtr(s string) *string {
	return &s
}
