package prompt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

// Limits on what is quoted back to the model in analysis prompts.
const (
	metadataConversationRunes = 1000
	clusterMemoryRunes        = 200
	MaxClusterMemories        = 50
)

// Builder renders the instruction prompts sent to the generator.
type Builder struct {
	assistantName string
	nowFunc       func() time.Time
}

// NewBuilder creates a prompt Builder.
func NewBuilder(assistantName string) *Builder {
	if assistantName == "" {
		assistantName = "Jobo"
	}
	return &Builder{
		assistantName: assistantName,
		nowFunc:       time.Now,
	}
}

// System wraps the assembled context in the assistant's system instruction.
func (b *Builder) System(context string) (string, error) {
	data := struct {
		AssistantName string
		Context       string
		Now           string
	}{
		AssistantName: b.assistantName,
		Context:       context,
		Now:           b.nowFunc().UTC().Format(time.RFC3339),
	}

	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build system prompt: %w", err)
	}
	return buf.String(), nil
}

// Summary asks for a third-person summary of turns, given oldest first.
func (b *Builder) Summary(turns []types.Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("no turns to summarize")
	}
	data := struct {
		AssistantName string
		Turns         []types.Turn
	}{
		AssistantName: b.assistantName,
		Turns:         turns,
	}

	var buf bytes.Buffer
	if err := summaryTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build summary prompt: %w", err)
	}
	return buf.String(), nil
}

// Metadata asks for a JSON description of a summarized conversation.
func (b *Builder) Metadata(conversation, summary string) (string, error) {
	data := struct {
		Conversation string
		Summary      string
	}{
		Conversation: utils.Truncate(conversation, metadataConversationRunes),
		Summary:      summary,
	}

	var buf bytes.Buffer
	if err := metadataTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build metadata prompt: %w", err)
	}
	return buf.String(), nil
}

// Clusters asks for thematic groups over numbered memories. At most
// MaxClusterMemories memories are quoted, each cut to 200 runes.
func (b *Builder) Clusters(memories []string, maxClusters int) (string, error) {
	if len(memories) == 0 {
		return "", fmt.Errorf("no memories to cluster")
	}
	if len(memories) > MaxClusterMemories {
		memories = memories[:MaxClusterMemories]
	}
	quoted := make([]string, 0, len(memories))
	for _, m := range memories {
		quoted = append(quoted, utils.Truncate(m, clusterMemoryRunes))
	}
	data := struct {
		Memories    []string
		MaxClusters int
	}{
		Memories:    quoted,
		MaxClusters: maxClusters,
	}

	var buf bytes.Buffer
	if err := clusterTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to build cluster prompt: %w", err)
	}
	return buf.String(), nil
}
