package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/grimoiredev/grimoire/internal/ports"
)

// Prompter implements ConfirmationPrompter using stdin/stdout.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
	tty bool
}

// NewPrompter constructs a prompter referencing stdio.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	tty := true
	if in == nil {
		in = os.Stdin
		tty = isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}
	if out == nil {
		out = os.Stdout
	}
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
		tty: tty,
	}
}

// Enabled reports whether interactive confirmation is possible. Piped stdin
// disables prompts so scripted promotion runs unattended.
func (p *Prompter) Enabled() bool {
	return p.tty
}

// Confirm asks the user to approve a remote write before it happens.
func (p *Prompter) Confirm(action, detail string) (bool, error) {
	fmt.Fprintf(p.out, "\nAbout to %s\n", action)
	if detail != "" {
		fmt.Fprintf(p.out, "Repository: %s\n", detail)
	}
	fmt.Fprint(p.out, "Continue? [y/N]: ")

	line, err := p.in.ReadString('\n')
	if err != nil {
		return false, err
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes", nil
}

var _ ports.ConfirmationPrompter = (*Prompter)(nil)
