package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/webterm/webterm/internal/core"
)

// ErrUserExit is returned by ProcessInput when the user asked to leave.
var ErrUserExit = errors.New("user requested exit")

// Options configures a REPL.
type Options struct {
	Engine    *core.Engine
	SessionID string
	// Confirm asks before running translated commands.
	Confirm bool
	In      io.Reader
	Out     io.Writer
	ErrOut  io.Writer
}

// REPL is an interactive session on the local machine.
type REPL struct {
	engine    *core.Engine
	sessionID string
	confirm   bool
	scanner   *bufio.Scanner
	out       io.Writer
	printer   *Printer
	style     *StyleConfig
}

// NewREPL creates a REPL. Nil streams default to the process's own.
func NewREPL(opts Options) *REPL {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	if opts.SessionID == "" {
		opts.SessionID = "local"
	}
	return &REPL{
		engine:    opts.Engine,
		sessionID: opts.SessionID,
		confirm:   opts.Confirm,
		scanner:   bufio.NewScanner(opts.In),
		out:       opts.Out,
		printer:   NewPrinter(opts.Out, opts.ErrOut),
		style:     DefaultStyleConfig(),
	}
}

// Prompt renders the prompt for the session's current directory.
func (r *REPL) Prompt() string {
	dir := "?"
	if sess, err := r.engine.Sessions().Get(r.sessionID); err == nil {
		dir = filepath.Base(sess.CurrentPath)
	}
	return r.style.prompt().Render("webterm:"+dir) + "$ "
}

// ProcessInput handles one line. Command failures are printed, not
// returned; the error is ErrUserExit or a terminal I/O failure.
func (r *REPL) ProcessInput(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	if strings.HasPrefix(input, "/") && !strings.Contains(input[1:], "/") {
		shouldExit, err := r.HandleCommand(input)
		if err != nil {
			return err
		}
		if shouldExit {
			return ErrUserExit
		}
		return nil
	}

	sub, err := r.engine.Prepare(ctx, r.sessionID, input)
	if err != nil {
		r.printer.Error(err.Error())
		return nil
	}
	if sub.Translated {
		if r.confirm {
			ok, err := confirmWithScanner(sub.Command, r.scanner, r.out)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
		} else {
			r.printer.Translated(sub.Command)
		}
	}

	// Ctrl-C cancels the running command instead of the shell.
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	proc, err := r.engine.Start(runCtx, r.sessionID, sub)
	if err != nil {
		r.printer.Error(err.Error())
		return nil
	}
	if sub.Command == "clear" {
		fmt.Fprint(r.out, "\033[H\033[2J")
	}
	r.printer.Stream(proc)
	return nil
}

// HandleCommand handles a slash command. It reports whether the REPL
// should exit.
func (r *REPL) HandleCommand(cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		r.DisplayHelp()
		return false, nil

	case "/clear":
		fmt.Fprint(r.out, "\033[H\033[2J")
		return false, nil

	case "/history":
		r.DisplayHistory()
		return false, nil

	default:
		fmt.Fprintf(r.out, "Unknown command: %s\n", parts[0])
		return false, nil
	}
}

// DisplayHelp shows the REPL commands.
func (r *REPL) DisplayHelp() {
	help := `
Commands:
  /help              show this help
  /history           show recent commands of this session
  /clear             clear the screen
  /exit, /quit       leave

Type "help" to list the shell commands that run directly. Anything else is
translated into a shell command by the configured AI model.
`
	fmt.Fprintln(r.out, help)
}

// DisplayHistory lists the session's recent commands, oldest first.
func (r *REPL) DisplayHistory() {
	snap, err := r.engine.Context(r.sessionID)
	if err != nil || len(snap.CommandHistory) == 0 {
		fmt.Fprintln(r.out, r.style.subtle().Render("No commands yet"))
		return
	}
	for i, c := range snap.CommandHistory {
		fmt.Fprintf(r.out, "%3d  %s\n", i+1, c)
	}
}

// Run reads lines until end of input, /exit or ctx is done. The session
// is closed on return.
func (r *REPL) Run(ctx context.Context) error {
	defer r.engine.CloseSession(r.sessionID)

	for ctx.Err() == nil {
		fmt.Fprint(r.out, r.Prompt())
		if !r.scanner.Scan() {
			fmt.Fprintln(r.out)
			return r.scanner.Err()
		}
		if err := r.ProcessInput(ctx, r.scanner.Text()); err != nil {
			if errors.Is(err, ErrUserExit) {
				return nil
			}
			return err
		}
	}
	return nil
}
