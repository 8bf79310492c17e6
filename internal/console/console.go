// Package console runs the interactive command loop.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/dispatch"
)

// Dispatcher runs one command. Implemented by dispatch.Dispatcher, whose
// reporter prints the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, in dispatch.Input, useAgent bool) action.Result
}

// Config configures the loop.
type Config struct {
	// UseAgent routes every utterance through the agent.
	UseAgent bool
	// AgentAvailable offers the mode prompt when UseAgent is not preset.
	AgentAvailable bool
	// AskMode prompts for the mode before the loop starts.
	AskMode bool
}

// Console reads utterances line by line and dispatches each one.
type Console struct {
	in  io.Reader
	out io.Writer
	d   Dispatcher
	cfg Config
}

// New creates a console.
func New(in io.Reader, out io.Writer, d Dispatcher, cfg Config) *Console {
	return &Console{in: in, out: out, d: d, cfg: cfg}
}

// Run loops until "exit", end of input, or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	lines := readLines(c.in, done)

	fmt.Fprintln(c.out, "🎻 Orchestra 🪄")

	useAgent := c.cfg.UseAgent
	if c.cfg.AskMode && c.cfg.AgentAvailable && !useAgent {
		fmt.Fprintln(c.out, "\nChoose your mode:")
		fmt.Fprintln(c.out, "1. Standard mode (phrase matcher)")
		fmt.Fprintln(c.out, "2. Agent mode (LLM tools)")
		fmt.Fprint(c.out, "Select mode (1 or 2): ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			useAgent = strings.TrimSpace(line) == "2"
		}
	}
	if useAgent && !c.cfg.AgentAvailable {
		fmt.Fprintln(c.out, "Agent mode is not configured, using the phrase matcher.")
		useAgent = false
	}

	if useAgent {
		fmt.Fprintln(c.out, "\n🤖 Using agent mode")
	} else {
		fmt.Fprintln(c.out, "\n🧩 Using phrase matcher")
	}
	fmt.Fprintln(c.out, "Type your command (spell) or 'exit' to quit:")
	fmt.Fprintln(c.out, "To show all available spells, say 'list spells'")

	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(c.out)
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if strings.EqualFold(text, "exit") {
				fmt.Fprintln(c.out, "Goodbye!")
				return nil
			}
			c.d.Dispatch(ctx, dispatch.Text(text), useAgent)
		}
	}
}

// readLines feeds lines from r until EOF or done is closed. A read already
// blocked on r returns only when r does.
func readLines(r io.Reader, done <-chan struct{}) <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case ch <- scanner.Text():
			case <-done:
				return
			}
		}
	}()
	return ch
}
