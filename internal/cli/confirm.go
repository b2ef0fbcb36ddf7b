package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/stefbowerman/undftd-cli/internal/pipeline"
)

// promptGate asks on out and reads y/N from in. Anything but y or yes
// declines.
type promptGate struct {
	in  *bufio.Reader
	out io.Writer
}

func newPromptGate(in io.Reader, out io.Writer) *promptGate {
	return &promptGate{in: bufio.NewReader(in), out: out}
}

func (g *promptGate) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(g.out, "%s [y/N]: ", prompt)

	response, err := g.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("read input: %w", err)
	}
	if err == io.EOF && response == "" {
		fmt.Fprintln(g.out)
		return false, nil
	}
	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

// autoGate answers without asking. It is used with --yes and when stdin is
// not a terminal, where it declines unless --yes was given.
type autoGate struct {
	answer bool
	out    io.Writer
}

func (g autoGate) Confirm(_ context.Context, prompt string) (bool, error) {
	if g.out != nil {
		verdict := "no (stdin is not a terminal, use --yes)"
		if g.answer {
			verdict = "yes"
		}
		fmt.Fprintf(g.out, "%s %s\n", prompt, verdict)
	}
	return g.answer, nil
}

// newGate picks the gate for the current terminal and flags.
func newGate(in io.Reader, out io.Writer, yes, interactive bool) pipeline.Gate {
	if yes || !interactive {
		return autoGate{answer: yes, out: out}
	}
	return newPromptGate(in, out)
}
