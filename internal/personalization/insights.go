package personalization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/easeaico/project-jobo/internal/learning"
	"github.com/easeaico/project-jobo/internal/models"
	"github.com/easeaico/project-jobo/internal/prompt"
	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

const (
	insightPatternLimit   = 10
	insightMinConfidence  = 0.5
	insightTopicWindow    = 100
	summaryTemperature    = 0.3
	summaryMaxTokens      = 300
	consolidateTurnWindow = 50
	metadataTemperature   = 0.1
	metadataMaxTokens     = 200
	clusterTemperature    = 0.2
	clusterMaxTokens      = 800
	clusterMemoryWindow   = 100
	minClusterMemories    = 3
	defaultMaxClusters    = 10
)

// SubmitFeedback attaches a satisfaction score to the interaction stored under recordID.
func (e *Engine) SubmitFeedback(ctx context.Context, identity, recordID string, satisfaction float64) error {
	if identity == "" {
		return types.ErrEmptyIdentity
	}
	if math.IsNaN(satisfaction) || math.IsInf(satisfaction, 0) {
		return ErrInvalidFeedback
	}
	if err := e.interactions.SetSatisfaction(ctx, identity, recordID, satisfaction); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("interaction %s: %w", recordID, ErrNotFound)
		}
		return fmt.Errorf("failed to record feedback: %w", err)
	}
	slog.Info("feedback recorded", "user_id", identity, "record_id", recordID, "satisfaction", satisfaction)
	return nil
}

// Insights reports the learned patterns, interaction stats and topic mix of an identity.
func (e *Engine) Insights(ctx context.Context, identity string) (*types.Insights, error) {
	profile, err := e.profiles.Get(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("profile %s: %w", identity, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	patterns, err := e.patterns.TopObservations(ctx, identity, "", insightMinConfidence, insightPatternLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load patterns: %w", err)
	}
	total, avg, err := e.interactions.Stats(ctx, identity)
	if err != nil {
		return nil, err
	}
	topics, err := e.interactions.RecentTopics(ctx, identity, insightTopicWindow)
	if err != nil {
		return nil, err
	}
	distribution := make(map[string]int, len(topics))
	for _, topic := range topics {
		distribution[topic]++
	}
	if patterns == nil {
		patterns = []types.Observation{}
	}

	return &types.Insights{
		UserID:              identity,
		TopPatterns:         patterns,
		TotalInteractions:   total,
		AverageSatisfaction: avg,
		TopicDistribution:   distribution,
		Interests:           slices.Clone(profile.Interests),
		CommunicationStyle:  profile.CommunicationStyle,
	}, nil
}

// DailyInsights summarizes the last seven days of activity.
func (e *Engine) DailyInsights(ctx context.Context, identity string) (*types.DailyInsights, error) {
	if _, err := e.profiles.Get(ctx, identity); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("profile %s: %w", identity, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	now := e.now()
	interactions, err := e.interactions.ListSince(ctx, identity, now.Add(-learning.ReportWindow))
	if err != nil {
		return nil, err
	}
	report := learning.DailyReport(identity, interactions, now)
	return &report, nil
}

// Consolidate summarizes the buffered conversation into one semantic memory
// tagged conversation_summary, along with the topics, sentiment and
// complexity the model reads out of it. It returns the record ID, or ""
// when the buffer is empty.
func (e *Engine) Consolidate(ctx context.Context, identity string) (string, error) {
	if identity == "" {
		return "", types.ErrEmptyIdentity
	}
	recent, err := e.recency.Recent(ctx, identity, consolidateTurnWindow)
	if err != nil {
		return "", fmt.Errorf("failed to read recent turns: %w", err)
	}
	if len(recent) == 0 {
		return "", nil
	}

	turns := slices.Clone(recent)
	slices.Reverse(turns)
	summaryPrompt, err := e.prompts.Summary(turns)
	if err != nil {
		return "", err
	}

	genCtx, cancel := context.WithTimeout(ctx, e.settings.GenerationTimeout)
	defer cancel()
	res := e.generator.Generate(genCtx, models.Request{
		UserMessage: summaryPrompt,
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if !res.OK() {
		return "", res.Err
	}

	vector, err := e.embedder.Embed(ctx, res.Text)
	if err != nil {
		return "", fmt.Errorf("failed to embed summary: %w", err)
	}
	tags := map[string]string{
		types.TagTimestamp: e.now().Format(time.RFC3339),
		types.TagTopic:     types.TopicConversationSummary,
	}
	for k, v := range metadataTags(e.conversationMetadata(ctx, identity, turns, res.Text)) {
		tags[k] = v
	}
	id, err := e.semantic.Insert(ctx, identity, res.Text, vector, tags)
	if err != nil {
		return "", fmt.Errorf("failed to store summary: %w", err)
	}
	slog.Info("conversation consolidated", "user_id", identity, "record_id", id, "turns", len(turns))
	return id, nil
}

// conversationMetadata never fails: any generation or parse error yields
// the default metadata.
func (e *Engine) conversationMetadata(ctx context.Context, identity string, turns []types.Turn, summary string) utils.ConversationMetadata {
	var conversation strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&conversation, "%s: %s\n", turn.Role, turn.Content)
	}
	metadataPrompt, err := e.prompts.Metadata(conversation.String(), summary)
	if err != nil {
		slog.Warn("metadata prompt failed", "user_id", identity, "error", err)
		return utils.DefaultConversationMetadata()
	}

	genCtx, cancel := context.WithTimeout(ctx, e.settings.GenerationTimeout)
	defer cancel()
	res := e.generator.Generate(genCtx, models.Request{
		UserMessage: metadataPrompt,
		MaxTokens:   metadataMaxTokens,
		Temperature: metadataTemperature,
	})
	if !res.OK() {
		slog.Warn("metadata generation failed", "user_id", identity, "error", res.Err)
		return utils.DefaultConversationMetadata()
	}
	metadata, err := utils.ParseConversationMetadata(res.Text)
	if err != nil {
		slog.Warn("metadata reply unparsable", "user_id", identity, "error", err)
		return utils.DefaultConversationMetadata()
	}
	return metadata
}

func metadataTags(metadata utils.ConversationMetadata) map[string]string {
	tags := map[string]string{
		types.TagTopics:     strings.Join(metadata.Topics, ","),
		types.TagSentiment:  metadata.Sentiment,
		types.TagComplexity: metadata.Complexity,
	}
	if len(metadata.UserInterests) > 0 {
		tags[types.TagUserInterests] = strings.Join(metadata.UserInterests, ",")
	}
	if metadata.UserLearning != "" {
		tags[types.TagUserLearning] = metadata.UserLearning
	}
	return tags
}

// Clusters groups the latest interactions of an identity into themes the
// model proposes. Fewer than three interactions, or a reply that cannot be
// parsed, yield no clusters. maxClusters <= 0 means ten.
func (e *Engine) Clusters(ctx context.Context, identity string, maxClusters int) ([]types.MemoryCluster, error) {
	if identity == "" {
		return nil, types.ErrEmptyIdentity
	}
	if maxClusters <= 0 {
		maxClusters = defaultMaxClusters
	}
	interactions, err := e.interactions.Recent(ctx, identity, clusterMemoryWindow)
	if err != nil {
		return nil, err
	}
	if len(interactions) < minClusterMemories {
		return []types.MemoryCluster{}, nil
	}
	if len(interactions) > prompt.MaxClusterMemories {
		interactions = interactions[:prompt.MaxClusterMemories]
	}

	texts := make([]string, 0, len(interactions))
	for _, in := range interactions {
		texts = append(texts, fmt.Sprintf("User: %s\nAssistant: %s", in.UserInput, in.AssistantResponse))
	}
	clusterPrompt, err := e.prompts.Clusters(texts, maxClusters)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, e.settings.GenerationTimeout)
	defer cancel()
	res := e.generator.Generate(genCtx, models.Request{
		UserMessage: clusterPrompt,
		MaxTokens:   clusterMaxTokens,
		Temperature: clusterTemperature,
	})
	if !res.OK() {
		return nil, res.Err
	}
	outputs, err := utils.ParseClusters(res.Text)
	if err != nil {
		slog.Warn("cluster reply unparsable", "user_id", identity, "error", err)
		return []types.MemoryCluster{}, nil
	}

	clusters := make([]types.MemoryCluster, 0, len(outputs))
	for _, output := range outputs {
		cluster := types.MemoryCluster{
			Theme:       output.Theme,
			Description: output.Description,
			Strength:    output.Strength,
		}
		for _, index := range output.MemoryIndices {
			if index < 1 || index > len(interactions) {
				continue
			}
			in := interactions[index-1]
			cluster.Memories = append(cluster.Memories, types.ClusterMember{
				RecordID: in.RecordID,
				Text:     texts[index-1],
			})
		}
		if len(cluster.Memories) == 0 {
			continue
		}
		cluster.MemoryCount = len(cluster.Memories)
		clusters = append(clusters, cluster)
		if len(clusters) == maxClusters {
			break
		}
	}
	slog.Info("memories clustered", "user_id", identity, "memories", len(interactions), "clusters", len(clusters))
	return clusters, nil
}
