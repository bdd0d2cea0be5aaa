package utils

import (
	"slices"
	"testing"
)

func TestParseConversationMetadata(t *testing.T) {
	raw := "Here you go:\n```json\n{\"topics\": [\"python\", \" \", \"ai\"], \"user_interests\": [\"ml\"], \"sentiment\": \"Positive\", \"complexity\": \"COMPLEX\", \"user_learning\": \" decorators \"}\n```"

	output, err := ParseConversationMetadata(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(output.Topics, []string{"python", "ai"}) {
		t.Fatalf("unexpected topics: %v", output.Topics)
	}
	if output.Sentiment != "positive" || output.Complexity != "complex" {
		t.Fatalf("expected normalized labels, got %+v", output)
	}
	if output.UserLearning != "decorators" {
		t.Fatalf("expected trimmed learning, got %q", output.UserLearning)
	}
}

func TestParseConversationMetadataDefaultsUnknownLabels(t *testing.T) {
	output, err := ParseConversationMetadata(`{"topics": [], "sentiment": "ecstatic", "complexity": ""}`)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !slices.Equal(output.Topics, []string{DefaultMetadataTopic}) {
		t.Fatalf("expected default topic, got %v", output.Topics)
	}
	if output.Sentiment != DefaultSentiment || output.Complexity != DefaultComplexity {
		t.Fatalf("expected default labels, got %+v", output)
	}
}

func TestParseConversationMetadataMalformed(t *testing.T) {
	for _, raw := range []string{"", "no json here", `{"topics": [`} {
		if _, err := ParseConversationMetadata(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
	def := DefaultConversationMetadata()
	if def.Topics[0] != DefaultMetadataTopic || def.Sentiment != "neutral" || def.Complexity != "medium" {
		t.Fatalf("unexpected fallback metadata: %+v", def)
	}
}

func TestParseClusters(t *testing.T) {
	raw := `JSON:
[
  {"theme": "Coding", "description": "python help", "memory_indices": [1, 3], "strength": "HIGH"},
  {"theme": "", "memory_indices": [2], "strength": "strong"}
]`
	clusters, err := ParseClusters(raw)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if clusters[0].Theme != "Coding" || clusters[0].Strength != "high" || !slices.Equal(clusters[0].MemoryIndices, []int{1, 3}) {
		t.Fatalf("unexpected first cluster: %+v", clusters[0])
	}
	if clusters[1].Theme != DefaultClusterTheme || clusters[1].Strength != DefaultStrength {
		t.Fatalf("expected defaults on second cluster, got %+v", clusters[1])
	}
}

func TestParseClustersMalformed(t *testing.T) {
	if _, err := ParseClusters(`{"theme": "not an array"}`); err == nil {
		t.Fatalf("expected error for non-array reply")
	}
	if _, err := ParseClusters("I could not find clusters."); err == nil {
		t.Fatalf("expected error for prose reply")
	}
}
