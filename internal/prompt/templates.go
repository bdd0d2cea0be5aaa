package prompt

import (
	"text/template"
)

const systemTemplateText = `You are {{.AssistantName}}, a personalized AI assistant. Use the following context to provide personalized responses:

{{.Context}}

Current time: {{.Now}}

Adapt your responses based on the user's preferences and past interactions. Be consistent with previous conversations. You are friendly, helpful, and remember what users tell you.`

const summaryTemplateText = `Please create a comprehensive but concise summary of this conversation between a user and {{.AssistantName}} (an AI assistant). Focus on:

1. Key topics discussed
2. Important insights or learning points
3. User's questions, interests, and preferences revealed
4. Any patterns in communication style
5. Actionable outcomes or next steps

Use third-person narration.

Conversation:
{{range .Turns}}{{if eq .Role "user"}}User{{else}}{{$.AssistantName}}{{end}}: {{.Content}}
{{end}}
Summary:`

const metadataTemplateText = `Based on this conversation and its summary, extract key metadata in JSON format:

Conversation: {{.Conversation}}...
Summary: {{.Summary}}

Please provide JSON with these fields:
- "topics": list of main topics (max 5)
- "user_interests": list of user interests revealed (max 3)
- "sentiment": overall sentiment (positive/neutral/negative)
- "complexity": conversation complexity (simple/medium/complex)
- "user_learning": what the user learned or was curious about
- "communication_style": user's communication style observations

JSON:`

const clusterTemplateText = `Analyze these memories and identify thematic clusters. Group related memories together and provide:

1. Cluster theme/topic
2. Brief description
3. List of memory numbers that belong to this cluster

Memories:
{{range $i, $m := .Memories}}Memory {{inc $i}}: {{$m}}
{{end}}
Please identify up to {{.MaxClusters}} clusters and format as JSON:
[
  {
    "theme": "cluster theme",
    "description": "what this cluster represents",
    "memory_indices": [1, 3, 5],
    "strength": "high/medium/low"
  }
]

JSON:`

var funcs = template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}

var (
	systemTemplate   = template.Must(template.New("system").Parse(systemTemplateText))
	summaryTemplate  = template.Must(template.New("summary").Parse(summaryTemplateText))
	metadataTemplate = template.Must(template.New("metadata").Parse(metadataTemplateText))
	clusterTemplate  = template.Must(template.New("clusters").Funcs(funcs).Parse(clusterTemplateText))
)
