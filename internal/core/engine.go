// Package core wires the command pipeline: classify, translate, validate
// and execute. Every transport goes through Engine.
package core

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/webterm/webterm/internal/core/execution"
	"github.com/webterm/webterm/internal/core/security"
	"github.com/webterm/webterm/internal/core/session"
	"github.com/webterm/webterm/internal/core/translate"
)

// TranslatedPrefix announces a translated command in one-shot output.
const TranslatedPrefix = "AI translated to: "

// Options configures an Engine. Nil components get defaults.
type Options struct {
	Sessions   *session.Store
	Security   *security.SecurityController
	Translator *translate.Translator
	Executor   *execution.Engine
	Logger     *zap.Logger
}

// Engine orchestrates the command workflow
type Engine struct {
	sessions   *session.Store
	security   *security.SecurityController
	translator *translate.Translator
	executor   *execution.Engine
	logger     *zap.Logger
}

// NewEngine creates a new engine
func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Security == nil {
		opts.Security = security.NewSecurityController(nil)
	}
	if opts.Sessions == nil {
		if opts.Executor != nil {
			opts.Sessions = opts.Executor.Sessions()
		} else {
			opts.Sessions = session.NewStore(session.Options{Logger: opts.Logger})
		}
	}
	if opts.Translator == nil {
		opts.Translator = translate.New(translate.Options{
			IsKnownVerb: opts.Security.IsAllowedVerb,
			Logger:      opts.Logger,
		})
	}
	if opts.Executor == nil {
		opts.Executor = execution.NewEngine(execution.Options{
			Sessions: opts.Sessions,
			HelpText: execution.HelpText(opts.Security.Verbs()),
			Logger:   opts.Logger,
		})
	}
	return &Engine{
		sessions:   opts.Sessions,
		security:   opts.Security,
		translator: opts.Translator,
		executor:   opts.Executor,
		logger:     opts.Logger,
	}
}

// Sessions returns the session store.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// Submission is an input resolved to the command that will run.
type Submission struct {
	Input      string
	Command    string
	Translated bool
}

// Prepare classifies input, translates it when it is natural language and
// validates the resulting command. Literal and translated commands pass
// the same validation.
func (e *Engine) Prepare(ctx context.Context, sessionID, input string) (Submission, error) {
	input = strings.TrimSpace(input)
	sub := Submission{Input: input, Command: input}
	if input == "" {
		return sub, newError(KindValidationRejected, "Command is empty", nil)
	}

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return sub, AsError(err)
	}

	if e.translator.IsNaturalLanguage(input) {
		command, err := e.translator.Translate(ctx, input, translate.FromSession(sess))
		if err != nil {
			e.logger.Info("translation failed",
				zap.String("session", sessionID),
				zap.String("input", input),
				zap.Error(err))
			return sub, newError(KindTranslationUnavailable, err.Error(), err)
		}
		sub.Command = command
		sub.Translated = true
	}

	if check := e.security.ValidateIn(sub.Command, sess.CurrentPath); !check.Allowed {
		e.logger.Info("command rejected",
			zap.String("session", sessionID),
			zap.String("command", sub.Command),
			zap.String("reason", check.Reason))
		return sub, newError(KindValidationRejected, check.Reason, nil)
	}
	return sub, nil
}

// Submit prepares input and starts it. The process is cancelled when ctx
// is done.
func (e *Engine) Submit(ctx context.Context, sessionID, input string) (*execution.Process, Submission, error) {
	sub, err := e.Prepare(ctx, sessionID, input)
	if err != nil {
		return nil, sub, err
	}
	proc, err := e.Start(ctx, sessionID, sub)
	return proc, sub, err
}

// Start runs a submission returned by Prepare.
func (e *Engine) Start(ctx context.Context, sessionID string, sub Submission) (*execution.Process, error) {
	proc, err := e.executor.Start(ctx, sessionID, sub.Command)
	if err != nil {
		return nil, AsError(err)
	}
	return proc, nil
}

// Outcome is the one-shot result of Execute.
type Outcome struct {
	Submission
	ProcessID string
	Output    string
	Error     string
	NewPath   string
	Status    execution.State
	Kind      Kind
	ExitCode  int
}

// Execute runs input to completion. Failures before the process starts are
// returned as *Error; failures of the process itself are described by the
// Outcome.
func (e *Engine) Execute(ctx context.Context, sessionID, input string) (*Outcome, error) {
	proc, sub, err := e.Submit(ctx, sessionID, input)
	if err != nil {
		return nil, err
	}

	var stdout, stderr strings.Builder
	var last execution.OutputEvent
	for ev := range proc.Events() {
		if ev.Finished {
			last = ev
		}
		if ev.Chunk == "" {
			continue
		}
		if ev.IsError {
			stderr.WriteString(ev.Chunk)
		} else {
			stdout.WriteString(ev.Chunk)
		}
	}

	res := proc.Result()
	out := &Outcome{
		Submission: sub,
		ProcessID:  proc.ID,
		NewPath:    last.NewPath,
		Status:     res.State,
		Kind:       KindOfResult(res),
		ExitCode:   res.ExitCode,
	}

	output := stdout.String()
	if sub.Translated {
		output = TranslatedPrefix + sub.Command + "\n" + output
	}
	if res.State == execution.StateCompleted {
		// Warnings on stderr of a successful command are ordinary output.
		output += stderr.String()
	} else {
		out.Error = strings.TrimRight(stderr.String(), "\n")
	}
	out.Output = output
	return out, nil
}

// Cancel stops a live process.
func (e *Engine) Cancel(processID string) bool {
	return e.executor.Cancel(processID)
}

// Context returns the history of an existing session.
func (e *Engine) Context(sessionID string) (session.Snapshot, error) {
	return e.sessions.Snapshot(sessionID)
}

// CloseSession cancels the session's processes and forgets it.
func (e *Engine) CloseSession(sessionID string) {
	if n := e.executor.CancelSession(sessionID); n > 0 {
		e.logger.Debug("cancelled processes of closed session",
			zap.String("session", sessionID), zap.Int("count", n))
	}
	e.sessions.Remove(sessionID)
}

// Verbs returns the allow-listed verbs, for completion and help.
func (e *Engine) Verbs() []string {
	return e.security.Verbs()
}

// Running returns the number of live processes.
func (e *Engine) Running() int {
	return e.executor.Running()
}

// TranslationEnabled reports whether a model is configured.
func (e *Engine) TranslationEnabled() bool {
	return e.translator.Enabled()
}

// Shutdown stops every live process.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.executor.Shutdown(ctx)
}
