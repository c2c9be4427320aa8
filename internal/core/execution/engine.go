// Package execution runs validated commands as child processes and streams
// their output as OutputEvents.
package execution

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/webterm/webterm/internal/core/security"
	"github.com/webterm/webterm/internal/core/session"
)

const (
	DefaultTimeout        = 60 * time.Second
	DefaultMonitorTimeout = 180 * time.Second
	DefaultMaxProcesses   = 64
	DefaultMaxOutputBytes = 1 << 20
	DefaultEventBuffer    = 256

	// waitDelay bounds how long Wait keeps reading pipes after the process
	// group was killed.
	waitDelay = 2 * time.Second
	// stderrHold is how long stderr is held back before the first stdout
	// output, so a shell that cannot find the command exits before anything
	// was streamed.
	stderrHold = 250 * time.Millisecond
)

var (
	ErrBusy         = errors.New("a command is already running in this session")
	ErrServerBusy   = errors.New("too many commands are running, try again later")
	ErrShuttingDown = errors.New("execution engine is shutting down")
	ErrSpawnFailed  = errors.New("failed to start command")
	ErrTimedOut     = errors.New("command timed out")
)

// Options configures an Engine.
type Options struct {
	Sessions       *session.Store
	Timeout        time.Duration
	MonitorTimeout time.Duration
	MaxProcesses   int64
	MaxOutputBytes int
	EventBuffer    int
	// HelpText is the output of the help verb.
	HelpText string
	Logger   *zap.Logger
}

// Engine starts processes, enforces the per-session single-process rule
// and a server-wide process ceiling.
type Engine struct {
	sessions       *session.Store
	timeout        time.Duration
	monitorTimeout time.Duration
	maxOutputBytes int
	eventBuffer    int
	helpText       string
	sem            *semaphore.Weighted
	logger         *zap.Logger

	mu     sync.Mutex
	procs  map[string]*Process
	closed bool
	wg     sync.WaitGroup
}

// NewEngine creates an execution engine.
func NewEngine(opts Options) *Engine {
	if opts.Sessions == nil {
		opts.Sessions = session.NewStore(session.Options{Logger: opts.Logger})
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MonitorTimeout <= 0 {
		opts.MonitorTimeout = DefaultMonitorTimeout
	}
	if opts.MaxProcesses <= 0 {
		opts.MaxProcesses = DefaultMaxProcesses
	}
	if opts.MaxOutputBytes <= 0 {
		opts.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.HelpText == "" {
		opts.HelpText = HelpText(security.KnownVerbs(nil))
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		sessions:       opts.Sessions,
		timeout:        opts.Timeout,
		monitorTimeout: opts.MonitorTimeout,
		maxOutputBytes: opts.MaxOutputBytes,
		eventBuffer:    opts.EventBuffer,
		helpText:       opts.HelpText,
		sem:            semaphore.NewWeighted(opts.MaxProcesses),
		logger:         opts.Logger,
		procs:          make(map[string]*Process),
	}
}

// HelpText renders the help verb output for the given verbs.
func HelpText(verbs []string) string {
	return "Available commands: " + strings.Join(verbs, ", ") + "\n" +
		"Anything else is treated as a natural-language request and translated by the AI.\n"
}

// Sessions returns the store the engine records into.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Running returns the number of live processes.
func (e *Engine) Running() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.procs)
}

// plan is how a command line is run.
type plan struct {
	line       string
	timeout    time.Duration
	changesDir bool
	internal   string
}

func (e *Engine) planFor(command string) plan {
	command = strings.TrimSpace(command)
	verb := strings.Fields(command)[0]
	args := strings.TrimSpace(strings.TrimPrefix(command, verb))

	switch {
	case security.IsInternalVerb(verb):
		return plan{internal: verb}
	case verb == "cd":
		return plan{line: cdCommand(args), timeout: e.timeout, changesDir: true}
	case security.IsMonitorAlias(verb):
		line := command
		if expanded, ok := monitorCommands[verb]; ok && args == "" {
			line = expanded
		}
		return plan{line: line, timeout: e.monitorTimeout}
	default:
		return plan{line: command, timeout: e.timeout}
	}
}

// Start launches command in the session's working directory. The command
// must already be validated. The returned Process is cancelled when ctx is
// done, when Cancel is called with its ID, or on Shutdown.
func (e *Engine) Start(ctx context.Context, sessionID, command string) (*Process, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawnFailed)
	}

	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrShuttingDown
	}

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	if !e.sem.TryAcquire(1) {
		return nil, ErrServerBusy
	}

	now := time.Now()
	proc := &Process{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Command:   command,
		StartTime: now,
		state:     StatePending,
		events:    make(chan OutputEvent, e.eventBuffer),
		done:      make(chan struct{}),
		collected: newCappedBuffer(e.maxOutputBytes),
	}

	ok, err := e.sessions.TrySetActiveProcess(sessionID, session.ActiveProcess{
		ID:        proc.ID,
		Command:   command,
		StartedAt: now,
	})
	if err != nil || !ok {
		e.sem.Release(1)
		if err != nil {
			return nil, err
		}
		return nil, ErrBusy
	}

	p := e.planFor(command)
	if p.timeout > 0 {
		proc.Deadline = now.Add(p.timeout)
	}

	runCtx, cancel := context.WithCancel(ctx)
	proc.cancel = cancel
	proc.stopped = runCtx.Done()
	stop := context.AfterFunc(runCtx, func() { proc.cancelRequested.Store(true) })

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		stop()
		cancel()
		e.sessions.ClearActiveProcess(sessionID, proc.ID)
		e.sem.Release(1)
		return nil, ErrShuttingDown
	}
	e.procs[proc.ID] = proc
	e.wg.Add(1)
	e.mu.Unlock()

	e.logger.Info("process started",
		zap.String("session", sessionID),
		zap.String("process", proc.ID),
		zap.String("command", command),
		zap.String("dir", sess.CurrentPath))

	go func() {
		defer e.wg.Done()
		defer stop()
		if p.internal != "" {
			e.runInternal(proc, p)
			return
		}
		e.run(runCtx, proc, p, sess.CurrentPath)
	}()

	return proc, nil
}

func (e *Engine) runInternal(proc *Process, p plan) {
	proc.transition(StateRunning)
	if p.internal == "help" {
		proc.emit(e.helpText, false)
	}
	e.finish(proc, Result{State: StateCompleted}, "", false)
}

func (e *Engine) run(runCtx context.Context, proc *Process, p plan, workDir string) {
	execCtx, cancelTimeout := context.WithTimeout(runCtx, p.timeout)
	defer cancelTimeout()

	cmd := shellCommand(execCtx, p.line)
	cmd.Dir = workDir
	setupProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessGroup(cmd) }
	cmd.WaitDelay = waitDelay

	var dirOut strings.Builder
	stderr := &streamWriter{proc: proc, isError: true, holding: true}
	stdout := &streamWriter{proc: proc, onOutput: stderr.release}
	if p.changesDir {
		stdout.capture = &dirOut
	}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	// The AfterFunc hook may not have run yet when runCtx is already done.
	cancelled := func() bool {
		return proc.cancelRequested.Load() || runCtx.Err() != nil
	}

	proc.transition(StateRunning)

	holdTimer := time.AfterFunc(stderrHold, stderr.release)
	if err := cmd.Start(); err != nil {
		holdTimer.Stop()
		stderr.takeHeld()
		if cancelled() {
			e.finish(proc, Result{State: StateCancelled, ExitCode: -1}, "Command cancelled.", false)
			return
		}
		e.finish(proc, Result{
			State:    StateFailed,
			ExitCode: -1,
			Err:      fmt.Errorf("%w: %v", ErrSpawnFailed, err),
		}, fmt.Sprintf("Failed to start command: %v", err), true)
		return
	}

	waitErr := cmd.Wait()
	stdout.flush()
	stderr.flush()
	holdTimer.Stop()
	// Nothing is emitted from the timer once holding stopped.
	held := stderr.takeHeld()

	res := Result{ExitCode: exitCode(waitErr)}
	notFound := waitErr != nil && (res.ExitCode == 126 || res.ExitCode == 127)
	if held != "" && !notFound {
		proc.emit(held, true)
	}

	switch {
	case cancelled():
		res.State = StateCancelled
		e.finish(proc, res, "Command cancelled.", false)

	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		res.State = StateTimedOut
		res.Err = fmt.Errorf("%w after %s", ErrTimedOut, p.timeout)
		e.finish(proc, res, fmt.Sprintf("Command timed out after %s and was terminated.", p.timeout), true)

	case waitErr == nil:
		res.State = StateCompleted
		chunk := ""
		if p.changesDir {
			if newPath := lastLine(dirOut.String()); newPath != "" {
				res.NewPath = newPath
				chunk = "Changed directory to " + newPath
			}
		}
		e.finish(proc, res, chunk, false)

	case notFound:
		// The shell reports unknown or non-executable commands this way. Its
		// message becomes the single finished event when nothing was streamed.
		res.State = StateFailed
		res.Err = fmt.Errorf("%w: exit status %d", ErrSpawnFailed, res.ExitCode)
		msg := strings.TrimSpace(held)
		if msg == "" {
			msg = fmt.Sprintf("Command exited with status %d", res.ExitCode)
		}
		e.finish(proc, res, msg, true)

	default:
		res.State = StateFailed
		e.finish(proc, res, fmt.Sprintf("Command exited with status %d", res.ExitCode), true)
	}
}

// finish records the outcome, releases the session slot and the process
// ceiling, then emits the single finished event.
func (e *Engine) finish(proc *Process, res Result, chunk string, isError bool) {
	if chunk != "" {
		proc.collected.WriteString(chunk)
	}
	res.Output = proc.collected.String()

	proc.mu.Lock()
	if !proc.state.CanTransitionTo(res.State) {
		e.logger.Warn("unexpected state transition",
			zap.String("process", proc.ID),
			zap.String("from", string(proc.state)),
			zap.String("to", string(res.State)))
	}
	proc.state = res.State
	proc.result = res
	proc.mu.Unlock()

	if res.NewPath != "" {
		if err := e.sessions.SetPath(proc.SessionID, res.NewPath); err != nil {
			e.logger.Debug("session gone before path update", zap.String("session", proc.SessionID), zap.Error(err))
		}
	}
	if err := e.sessions.AppendHistory(proc.SessionID, proc.Command, res.Output); err != nil {
		e.logger.Debug("session gone before history update", zap.String("session", proc.SessionID), zap.Error(err))
	}
	e.sessions.ClearActiveProcess(proc.SessionID, proc.ID)

	e.mu.Lock()
	delete(e.procs, proc.ID)
	e.mu.Unlock()
	e.sem.Release(1)
	proc.cancel()

	fields := []zap.Field{
		zap.String("session", proc.SessionID),
		zap.String("process", proc.ID),
		zap.String("status", string(res.State)),
		zap.Int("exit_code", res.ExitCode),
		zap.Duration("elapsed", time.Since(proc.StartTime)),
	}
	if res.Err != nil {
		fields = append(fields, zap.Error(res.Err))
	}
	e.logger.Info("process finished", fields...)

	proc.events <- OutputEvent{
		SessionID: proc.SessionID,
		ProcessID: proc.ID,
		Chunk:     chunk,
		IsError:   isError,
		Finished:  true,
		NewPath:   res.NewPath,
		Status:    res.State,
	}
	close(proc.events)
	close(proc.done)
}

// Cancel stops a live process. It returns false for unknown or finished
// processes, and repeated calls have no further effect.
func (e *Engine) Cancel(processID string) bool {
	e.mu.Lock()
	proc, ok := e.procs[processID]
	e.mu.Unlock()
	if !ok {
		return false
	}
	cancelled := proc.requestCancel()
	if cancelled {
		e.logger.Debug("cancel requested", zap.String("process", processID))
	}
	return cancelled
}

// CancelSession stops every live process of a session and returns how many
// were signalled.
func (e *Engine) CancelSession(sessionID string) int {
	e.mu.Lock()
	var targets []*Process
	for _, proc := range e.procs {
		if proc.SessionID == sessionID {
			targets = append(targets, proc)
		}
	}
	e.mu.Unlock()

	n := 0
	for _, proc := range targets {
		if proc.requestCancel() {
			n++
		}
	}
	return n
}

// Shutdown refuses new processes, cancels the live ones and waits for them
// to finish or for ctx to expire.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	targets := make([]*Process, 0, len(e.procs))
	for _, proc := range e.procs {
		targets = append(targets, proc)
	}
	e.mu.Unlock()

	for _, proc := range targets {
		proc.requestCancel()
	}

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.logger.Info("execution engine stopped", zap.Int("cancelled", len(targets)))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for processes: %w", ctx.Err())
	}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// lastLine returns the last non-empty line of s.
func lastLine(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
