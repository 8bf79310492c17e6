package agent

import (
	"strings"

	"github.com/hrygo/orchestra/action"
	"github.com/hrygo/orchestra/ai/core/llm"
	"github.com/hrygo/orchestra/spell"
)

// structuredResult is the agent's final structured output.
type structuredResult struct {
	Action      string `json:"action"`
	Explanation string `json:"explanation"`
}

var resultSchema = llm.Object(map[string]*llm.JSONSchema{
	"action":      llm.String("The specific action that was performed"),
	"explanation": llm.String("Brief explanation of what was done"),
}, "action", "explanation")

var dateParameters = llm.Object(map[string]*llm.JSONSchema{
	"date": llm.String("Target date in YYYY-MM-DD format. Omit for today."),
})

func buildTools(catalog *spell.Catalog, registry *action.Registry) []llm.ToolDescriptor {
	var tools []llm.ToolDescriptor
	for _, s := range catalog.Spells() {
		if !registry.Has(s.Action) {
			continue
		}
		t := llm.ToolDescriptor{
			Name:        string(s.Action),
			Description: strings.TrimSuffix(s.Description, ".") + ". Use this when the user says something like " + strings.Join(s.Triggers, ", ") + ".",
		}
		if s.AcceptsDate {
			t.Parameters = dateParameters
		}
		tools = append(tools, t)
	}
	return tools
}

func buildSystemPrompt(catalog *spell.Catalog) string {
	var b strings.Builder
	b.WriteString("You are the Command Orchestra Manager, an assistant that understands and executes commands for the user.\n\n")
	b.WriteString("Analyze the user input and call at most one tool based on these trigger phrases:\n")
	b.WriteString(catalog.Prompt())
	b.WriteString("\nCall exactly one tool when the request matches. If nothing matches, call no tool and briefly say so.\n")
	b.WriteString("After the tool runs, respond concisely with the action performed and a short explanation.")
	return b.String()
}
