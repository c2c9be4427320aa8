// Package translate turns natural-language requests into single shell
// commands with a language model. Its output is never trusted: callers
// validate every translated command like a literal one.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/webterm/webterm/internal/ai"
	"github.com/webterm/webterm/internal/core/security"
)

// DefaultTimeout bounds one model call.
const DefaultTimeout = 30 * time.Second

// ErrUnavailable matches every translation failure.
var ErrUnavailable = errors.New("translation unavailable")

// UnavailableError carries the user-facing reason a translation failed.
type UnavailableError struct {
	Reason string
	Err    error
}

func (e *UnavailableError) Error() string { return e.Reason }

func (e *UnavailableError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrUnavailable) true for every UnavailableError.
func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func unavailable(err error, format string, args ...any) error {
	return &UnavailableError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// Options configures a Translator.
type Options struct {
	// Model may be nil when no API key is configured.
	Model   ai.Model
	Timeout time.Duration
	// IsKnownVerb classifies literal commands; security.IsKnownVerb if nil.
	IsKnownVerb func(verb string) bool
	Logger      *zap.Logger
}

// Translator classifies input and translates natural language.
type Translator struct {
	model       ai.Model
	timeout     time.Duration
	isKnownVerb func(string) bool
	logger      *zap.Logger
}

// New creates a Translator.
func New(opts Options) *Translator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.IsKnownVerb == nil {
		opts.IsKnownVerb = security.IsKnownVerb
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Translator{
		model:       opts.Model,
		timeout:     opts.Timeout,
		isKnownVerb: opts.IsKnownVerb,
		logger:      opts.Logger,
	}
}

// Enabled reports whether a model backend is configured.
func (t *Translator) Enabled() bool {
	return t.model != nil
}

// IsNaturalLanguage reports whether input must be translated. Input whose
// first token is a known verb is a literal command.
func (t *Translator) IsNaturalLanguage(input string) bool {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return false
	}
	return !t.isKnownVerb(fields[0])
}

// Translate asks the model for one command implementing input.
func (t *Translator) Translate(ctx context.Context, input string, hist History) (string, error) {
	if t.model == nil {
		return "", unavailable(ai.ErrNotConfigured, "%s", ai.ErrNotConfigured.Error())
	}

	prompt := BuildPrompt(input, hist)

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	start := time.Now()
	reply, err := t.model.Complete(callCtx, prompt)
	if err != nil {
		t.logger.Warn("model call failed",
			zap.String("model", t.model.Name()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", unavailable(err, "AI translation timed out after %s", t.timeout)
		}
		return "", unavailable(err, "Error contacting AI model: %v", err)
	}

	command := Sanitize(reply)
	t.logger.Debug("model reply",
		zap.String("model", t.model.Name()),
		zap.String("input", input),
		zap.String("command", command),
		zap.Duration("elapsed", time.Since(start)))

	if command == "" {
		return "", unavailable(nil, "AI model returned no command")
	}
	if strings.HasPrefix(command, "Error:") {
		return "", unavailable(nil, "%s", command)
	}
	return command, nil
}
