package terminal

import (
	"fmt"
	"io"
	"strings"

	"github.com/webterm/webterm/internal/core"
	"github.com/webterm/webterm/internal/core/execution"
)

// Printer writes process output and status lines to a terminal.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	style  *StyleConfig
}

// NewPrinter creates a printer. Standard output chunks go to out, error
// chunks and failures to errOut.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut, style: DefaultStyleConfig()}
}

// Translated announces the command a natural-language input became.
func (p *Printer) Translated(command string) {
	fmt.Fprintln(p.out, p.style.warning().Render(core.TranslatedPrefix+command))
}

// Error prints a failure message.
func (p *Printer) Error(msg string) {
	fmt.Fprintln(p.errOut, p.style.err().Render("✗ "+msg))
}

// Stream copies the process output until it finishes and returns its result.
func (p *Printer) Stream(proc *execution.Process) execution.Result {
	atLineStart := true
	for ev := range proc.Events() {
		if ev.Chunk == "" {
			continue
		}
		if ev.Finished {
			if !atLineStart {
				fmt.Fprintln(p.out)
			}
			p.status(ev)
			continue
		}

		w := p.out
		if ev.IsError {
			w = p.errOut
		}
		fmt.Fprint(w, ev.Chunk)
		atLineStart = strings.HasSuffix(ev.Chunk, "\n")
	}
	<-proc.Done()
	return proc.Result()
}

func (p *Printer) status(ev execution.OutputEvent) {
	msg := strings.TrimRight(ev.Chunk, "\n")
	switch {
	case ev.IsError:
		p.Error(msg)
	case ev.NewPath != "":
		fmt.Fprintln(p.out, p.style.success().Render(msg))
	default:
		fmt.Fprintln(p.out, p.style.subtle().Render(msg))
	}
}
