package routing

import (
	"context"
	"log/slog"

	"github.com/hrygo/orchestra/action"
)

// Command is a resolved routing result, created per utterance and discarded
// after dispatch. Either Action is set (to be executed by the dispatcher) or
// Result is set (already executed upstream by the agent).
type Command struct {
	Action action.ID
	Args   action.Args
	Result *action.Result
}

// Executed reports whether the command carries an agent result.
func (c *Command) Executed() bool {
	return c != nil && c.Result != nil
}

// CommandResolver resolves and executes text through an agent, returning a
// pre-executed command. Implemented by the agent resolver.
type CommandResolver interface {
	ResolveCommand(ctx context.Context, text string) *Command
}

// Parser exposes parse(text) -> Command | nil to the dispatcher's callers.
type Parser struct {
	matcher *PhraseMatcher
	agent   CommandResolver
}

// NewParser creates a parser. agent may be nil.
func NewParser(matcher *PhraseMatcher, agent CommandResolver) *Parser {
	return &Parser{matcher: matcher, agent: agent}
}

// Parse resolves text through the phrase matcher only. nil means no match.
func (p *Parser) Parse(text string) *Command {
	id, ok := p.matcher.Resolve(text)
	if !ok {
		slog.Debug("no phrase rule matched", "input", truncate(text, 50))
		return nil
	}
	return &Command{Action: id}
}

// ParseWithAgent resolves text through the agent, which also executes the
// chosen action. nil means the agent answered but chose no tool. Any failure,
// including a missing agent, is an executed command with a failed result.
func (p *Parser) ParseWithAgent(ctx context.Context, text string) *Command {
	if p.agent == nil {
		res := action.Failed("", "Error: agent mode is not available")
		return &Command{Result: &res}
	}
	return p.agent.ResolveCommand(ctx, text)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
