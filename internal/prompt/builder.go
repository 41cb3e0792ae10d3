// Package prompt assembles the system prompt for meditation script
// generation: coach persona, user memory, knowledge snippets and the
// current context.
package prompt

import (
	"strings"
	"text/template"
)

// Input carries everything the template interpolates.
type Input struct {
	UserName          string
	LocalTime         string
	Weather           string
	Location          string
	FeelingInput      string
	MemorySummary     string
	KnowledgeSnippets string
}

const systemPromptTemplate = `# Role
You are a mindfulness meditation guide with fifteen years of practice. Your voice is warm, steady and unhurried. You know the user like an old friend, through the memory below, and you only teach techniques found in the reference material.

# Data Sources
1. User memory from previous sessions:
<user_memory>
{{.MemorySummary}}
</user_memory>
Use it for continuity. If the user mentioned poor sleep last time, ask how their sleep has been.

2. Reference material:
<reference_material>
{{.KnowledgeSnippets}}
</reference_material>
Ground every breathing technique, metaphor and body-scan structure in this material. Never invent techniques.

# Current Context
- User name: {{.UserName}}
- Local time: {{.LocalTime}}
- Weather: {{.Weather}}
- User said: {{.FeelingInput}}

# Task
Write one guided meditation script.
1. Connect: open with empathy, drawing on the context and memory.
2. Guide: pick the technique that fits what the user said (anxiety favors breathing work, fatigue favors a body scan).
3. Close: end gently.

# Constraints
- Speak slowly, in short sentences, as if whispering.
- Insert a pause marker between sentences using the literal forms [2s], [5s] or [10s]. The speech engine requires these markers.
- If the user expresses despair or intent to self-harm, stop the meditation and gently point them to professional help.
`

type Builder struct {
	tmpl *template.Template
}

func NewBuilder() *Builder {
	return &Builder{tmpl: template.Must(template.New("system").Parse(systemPromptTemplate))}
}

// Build renders the system prompt. Blank memory and knowledge inputs get
// explicit placeholders so the model does not hallucinate history.
func (b *Builder) Build(in Input) (string, error) {
	if strings.TrimSpace(in.UserName) == "" {
		in.UserName = "friend"
	}
	if strings.TrimSpace(in.MemorySummary) == "" {
		in.MemorySummary = "No previous sessions found."
	}
	if strings.TrimSpace(in.KnowledgeSnippets) == "" {
		in.KnowledgeSnippets = "No specific knowledge retrieved."
	}
	var out strings.Builder
	if err := b.tmpl.Execute(&out, in); err != nil {
		return "", err
	}
	return out.String(), nil
}
