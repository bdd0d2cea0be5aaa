package prompt

import (
	"fmt"
	"strings"

	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

// Context assembly limits.
const (
	DefaultContextTurns    = 3
	DefaultContextMemories = 3
	snippetRunes           = 100
)

// ContextInput is the material gathered from the three memory tiers.
type ContextInput struct {
	Profile *types.Profile
	// Recent holds turns most recent first, as the recency buffer returns them.
	Recent   []types.Turn
	Memories []types.RetrievedMemory
}

// ContextBuilder renders memory tiers into one bounded context string.
type ContextBuilder struct {
	turns    int
	memories int
}

// NewContextBuilder creates a ContextBuilder; non-positive limits use defaults.
func NewContextBuilder(turns, memories int) *ContextBuilder {
	if turns <= 0 {
		turns = DefaultContextTurns
	}
	if memories <= 0 {
		memories = DefaultContextMemories
	}
	return &ContextBuilder{turns: turns, memories: memories}
}

// Build joins the non-empty sections with a blank line.
func (b *ContextBuilder) Build(in ContextInput) string {
	var sections []string
	if s := profileSection(in.Profile); s != "" {
		sections = append(sections, s)
	}
	if s := b.recentSection(in.Recent); s != "" {
		sections = append(sections, s)
	}
	if s := b.memorySection(in.Memories); s != "" {
		sections = append(sections, s)
	}
	return strings.Join(sections, "\n\n")
}

func profileSection(p *types.Profile) string {
	if p == nil {
		return ""
	}
	interests := "Not specified"
	if len(p.Interests) > 0 {
		interests = strings.Join(p.Interests, ", ")
	}
	lines := []string{
		"User Profile:",
		"- Name: " + p.Name,
		"- Interests: " + interests,
		fmt.Sprintf("- Communication Style: %s formality", p.Formality()),
	}
	return strings.Join(lines, "\n")
}

// recentSection renders the newest turns in chronological order.
func (b *ContextBuilder) recentSection(recent []types.Turn) string {
	if len(recent) == 0 {
		return ""
	}
	n := min(b.turns, len(recent))
	lines := []string{"Recent conversation:"}
	for i := n - 1; i >= 0; i-- {
		t := recent[i]
		lines = append(lines, fmt.Sprintf("- %s: %s...", t.Role, utils.Truncate(t.Content, snippetRunes)))
	}
	return strings.Join(lines, "\n")
}

func (b *ContextBuilder) memorySection(memories []types.RetrievedMemory) string {
	if len(memories) == 0 {
		return ""
	}
	n := min(b.memories, len(memories))
	lines := []string{"Relevant past interactions:"}
	for _, m := range memories[:n] {
		lines = append(lines, fmt.Sprintf("- %s: %s...", m.Topic(), utils.Truncate(m.Text, snippetRunes)))
	}
	return strings.Join(lines, "\n")
}
