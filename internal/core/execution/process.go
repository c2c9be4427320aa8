package execution

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Result is the outcome of a finished Process.
type Result struct {
	State    State
	ExitCode int
	Output   string
	NewPath  string
	// Err is set for spawn failures and timeouts.
	Err error
}

// Process is one running command. Callers must drain Events until it is
// closed.
type Process struct {
	ID        string
	SessionID string
	Command   string
	StartTime time.Time
	Deadline  time.Time

	mu     sync.Mutex
	state  State
	result Result

	cancelRequested atomic.Bool
	cancel          context.CancelFunc
	stopped         <-chan struct{}

	events    chan OutputEvent
	done      chan struct{}
	collected *cappedBuffer
}

// Events returns the output stream. The last event has Finished set.
func (p *Process) Events() <-chan OutputEvent {
	return p.events
}

// Done is closed once the process reached a terminal state and its events
// channel has been closed.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// State returns the current lifecycle state.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the outcome. It is only meaningful after Done.
func (p *Process) Result() Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

func (p *Process) transition(next State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.state.CanTransitionTo(next) {
		return false
	}
	p.state = next
	return true
}

// emit delivers a non-final chunk. Output produced after a cancellation
// request is dropped.
func (p *Process) emit(chunk string, isError bool) {
	if p.cancelRequested.Load() {
		return
	}
	p.collected.WriteString(chunk)
	select {
	case p.events <- OutputEvent{
		SessionID: p.SessionID,
		ProcessID: p.ID,
		Chunk:     chunk,
		IsError:   isError,
	}:
	case <-p.stopped:
	}
}

// requestCancel marks the process cancelled and stops it. It returns false
// if the process already finished.
func (p *Process) requestCancel() bool {
	if p.State().IsTerminal() {
		return false
	}
	if p.cancelRequested.CompareAndSwap(false, true) {
		p.cancel()
	}
	return true
}
