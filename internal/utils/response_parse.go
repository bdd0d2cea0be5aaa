package utils

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Metadata fallbacks used when the model reply cannot be parsed.
const (
	DefaultMetadataTopic = "general_conversation"
	DefaultSentiment     = "neutral"
	DefaultComplexity    = "medium"
	DefaultStrength      = "medium"
	DefaultClusterTheme  = "Unknown Theme"
)

// ConversationMetadata is the structured description of a summarized conversation.
type ConversationMetadata struct {
	Topics             []string `json:"topics"`
	UserInterests      []string `json:"user_interests"`
	Sentiment          string   `json:"sentiment"`
	Complexity         string   `json:"complexity"`
	UserLearning       string   `json:"user_learning"`
	CommunicationStyle string   `json:"communication_style"`
}

// DefaultConversationMetadata is the metadata recorded when extraction fails.
func DefaultConversationMetadata() ConversationMetadata {
	return ConversationMetadata{
		Topics:     []string{DefaultMetadataTopic},
		Sentiment:  DefaultSentiment,
		Complexity: DefaultComplexity,
	}
}

// ClusterOutput is one thematic group proposed by the model. Indices are 1-based.
type ClusterOutput struct {
	Theme         string `json:"theme"`
	Description   string `json:"description"`
	MemoryIndices []int  `json:"memory_indices"`
	Strength      string `json:"strength"`
}

// extractJSON cuts the outermost delimited span out of a reply
// that may carry prose or code fences around it.
func extractJSON(raw, openDelim, closeDelim string) string {
	clean := strings.TrimSpace(raw)
	start := strings.Index(clean, openDelim)
	end := strings.LastIndex(clean, closeDelim)
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	return clean
}

// ParseConversationMetadata extracts and normalizes the metadata object.
func ParseConversationMetadata(raw string) (ConversationMetadata, error) {
	var output ConversationMetadata
	if err := json.Unmarshal([]byte(extractJSON(raw, "{", "}")), &output); err != nil {
		return ConversationMetadata{}, fmt.Errorf("failed to parse conversation metadata: %w", err)
	}

	output.Topics = cleanList(output.Topics, 5)
	output.UserInterests = cleanList(output.UserInterests, 3)
	if len(output.Topics) == 0 {
		output.Topics = []string{DefaultMetadataTopic}
	}

	switch sentiment := strings.ToLower(strings.TrimSpace(output.Sentiment)); sentiment {
	case "positive", "neutral", "negative":
		output.Sentiment = sentiment
	default:
		output.Sentiment = DefaultSentiment
	}
	switch complexity := strings.ToLower(strings.TrimSpace(output.Complexity)); complexity {
	case "simple", "medium", "complex":
		output.Complexity = complexity
	default:
		output.Complexity = DefaultComplexity
	}
	output.UserLearning = strings.TrimSpace(output.UserLearning)
	output.CommunicationStyle = strings.TrimSpace(output.CommunicationStyle)
	return output, nil
}

// ParseClusters extracts the cluster array from a model reply.
func ParseClusters(raw string) ([]ClusterOutput, error) {
	var output []ClusterOutput
	if err := json.Unmarshal([]byte(extractJSON(raw, "[", "]")), &output); err != nil {
		return nil, fmt.Errorf("failed to parse memory clusters: %w", err)
	}

	for i := range output {
		output[i].Theme = strings.TrimSpace(output[i].Theme)
		if output[i].Theme == "" {
			output[i].Theme = DefaultClusterTheme
		}
		output[i].Description = strings.TrimSpace(output[i].Description)
		switch strength := strings.ToLower(strings.TrimSpace(output[i].Strength)); strength {
		case "high", "medium", "low":
			output[i].Strength = strength
		default:
			output[i].Strength = DefaultStrength
		}
	}
	return output, nil
}

func cleanList(items []string, limit int) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
		if len(out) == limit {
			break
		}
	}
	return out
}
