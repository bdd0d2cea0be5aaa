package personalization

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/easeaico/project-jobo/internal/memory"
	"github.com/easeaico/project-jobo/internal/models"
	"github.com/easeaico/project-jobo/internal/storage"
	"github.com/easeaico/project-jobo/internal/types"
)

type fakeGenerator struct {
	mu       sync.Mutex
	text     string
	replies  []string
	err      error
	requests []models.Request
}

// Generate answers from replies in order, then with text.
func (g *fakeGenerator) Generate(ctx context.Context, req models.Request) models.Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return models.Result{Err: &models.GenerationError{Provider: "fake", Err: g.err}}
	}
	if len(g.replies) > 0 {
		reply := g.replies[0]
		g.replies = g.replies[1:]
		return models.Result{Text: reply}
	}
	return models.Result{Text: g.text}
}

// stalledGenerator never answers before the deadline.
type stalledGenerator struct{}

func (stalledGenerator) Generate(ctx context.Context, req models.Request) models.Result {
	<-ctx.Done()
	return models.Result{Err: &models.GenerationError{Provider: "stalled", Err: ctx.Err()}}
}

type brokenSemantic struct{}

func (brokenSemantic) Insert(ctx context.Context, identity, text string, vector []float32, tags map[string]string) (string, error) {
	return "", errors.New("vector index unreachable")
}

func (brokenSemantic) Query(ctx context.Context, identity string, vector []float32, limit int) ([]types.RetrievedMemory, error) {
	return nil, errors.New("vector index unreachable")
}

type harness struct {
	engine    *Engine
	store     *storage.Store
	semantic  memory.SemanticStore
	recency   memory.RecencyBuffer
	embedder  memory.Embedder
	generator *fakeGenerator
}

var testNow = time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)

func newHarness(t *testing.T, semantic memory.SemanticStore) *harness {
	t.Helper()
	return newHarnessWithGenerator(t, semantic, nil, time.Second)
}

// newHarnessWithGenerator swaps in generator when non-nil.
func newHarnessWithGenerator(t *testing.T, semantic memory.SemanticStore, generator models.Generator, timeout time.Duration) *harness {
	t.Helper()
	store, err := storage.NewStore(context.Background(), "sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(store.Close)

	if semantic == nil {
		semantic, err = memory.NewChromemStore("")
		if err != nil {
			t.Fatalf("failed to create semantic store: %v", err)
		}
	}
	recency, err := memory.NewCacheRecency(memory.DefaultRecencyCapacity, memory.DefaultRecencyTTL)
	if err != nil {
		t.Fatalf("failed to create recency buffer: %v", err)
	}
	t.Cleanup(recency.Close)

	h := &harness{
		store:     store,
		semantic:  semantic,
		recency:   recency,
		embedder:  memory.NewHashEmbedder(0),
		generator: &fakeGenerator{text: "Python is a great choice for AI work."},
	}
	if generator == nil {
		generator = h.generator
	}
	engine, err := New(Deps{
		Profiles:     store.Profiles,
		Patterns:     store.Patterns,
		Interactions: store.Interactions,
		Embedder:     h.embedder,
		Semantic:     h.semantic,
		Recency:      h.recency,
		Generator:    generator,
	}, Settings{AssistantName: "Jobo", MaxTokens: 500, Temperature: 0.7, GenerationTimeout: timeout})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	h.engine = engine.WithClock(func() time.Time { return testNow })
	return h
}

const pythonMessage = "I love coding in Python, it's great for AI projects"

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}, Settings{}); err == nil {
		t.Fatalf("expected error for missing collaborators")
	}
}

func TestChatFirstMessageLearnsTechnology(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	result, err := h.engine.Chat(ctx, "u1", pythonMessage)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Topic != "technology" {
		t.Fatalf("expected technology, got %q", result.Topic)
	}
	if result.Response != h.generator.text || result.Failed {
		t.Fatalf("unexpected response: %+v", result)
	}
	if result.TurnID == "" || result.InteractionID == "" {
		t.Fatalf("expected turn and interaction ids, got %+v", result)
	}
	if len(result.Degraded) != 0 {
		t.Fatalf("expected no degraded tiers, got %v", result.Degraded)
	}
	if !strings.Contains(h.generator.requests[0].SystemPrompt, strings.TrimSuffix(result.ContextUsed, "...")) {
		t.Fatalf("expected context preview from the system prompt, got %q", result.ContextUsed)
	}

	profile, err := h.store.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if len(profile.Interests) != 1 || profile.Interests[0] != "technology" {
		t.Fatalf("expected interests [technology], got %v", profile.Interests)
	}

	observations, err := h.store.Patterns.TopObservations(ctx, "u1", "", 0, 0)
	if err != nil {
		t.Fatalf("expected observations, got %v", err)
	}
	seen := make(map[string]float64)
	for _, o := range observations {
		seen[o.Category+":"+o.Value] = o.Confidence
	}
	if len(seen) != 2 {
		t.Fatalf("expected exactly two reinforced signals, got %v", seen)
	}
	if math.Abs(seen["interest:technology"]-0.1) > 1e-9 {
		t.Fatalf("expected interest:technology at 0.1, got %v", seen)
	}
	if math.Abs(seen["time_preference:morning"]-0.1) > 1e-9 {
		t.Fatalf("expected time_preference:morning at 0.1, got %v", seen)
	}

	recent, err := h.recency.Recent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("expected recent turns, got %v", err)
	}
	if len(recent) != 2 || recent[0].Role != types.RoleAssistant || recent[1].Role != types.RoleUser {
		t.Fatalf("expected assistant then user turn, got %+v", recent)
	}

	total, _, err := h.store.Interactions.Stats(ctx, "u1")
	if err != nil || total != 1 {
		t.Fatalf("expected one interaction, got %d (%v)", total, err)
	}
}

func TestChatPassesContextToGenerator(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Chat(ctx, "u1", pythonMessage); err != nil {
		t.Fatalf("first chat failed: %v", err)
	}
	if _, err := h.engine.Chat(ctx, "u1", "Any tips for a new python api?"); err != nil {
		t.Fatalf("second chat failed: %v", err)
	}

	req := h.generator.requests[1]
	if req.UserMessage != "Any tips for a new python api?" {
		t.Fatalf("unexpected user message %q", req.UserMessage)
	}
	if req.MaxTokens != 500 || req.Temperature != 0.7 {
		t.Fatalf("unexpected generation settings: %+v", req)
	}
	for _, want := range []string{"You are Jobo", "User Profile:", "- Interests: technology", "Recent conversation:", "Relevant past interactions:"} {
		if !strings.Contains(req.SystemPrompt, want) {
			t.Fatalf("expected system prompt to contain %q, got:\n%s", want, req.SystemPrompt)
		}
	}
}

func TestChatGenerationFailurePersistsNothing(t *testing.T) {
	h := newHarness(t, nil)
	h.generator.err = errors.New("quota exceeded")
	ctx := context.Background()

	result, err := h.engine.Chat(ctx, "u1", pythonMessage)
	if err != nil {
		t.Fatalf("generation failure must not surface as error, got %v", err)
	}
	if result.Response != Apology {
		t.Fatalf("expected apology, got %q", result.Response)
	}
	if result.InteractionID != "" || !result.Failed {
		t.Fatalf("expected no interaction id, got %+v", result)
	}

	total, _, err := h.store.Interactions.Stats(ctx, "u1")
	if err != nil || total != 0 {
		t.Fatalf("expected no interactions, got %d (%v)", total, err)
	}
	recent, err := h.recency.Recent(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("expected recent turns, got %v", err)
	}
	if len(recent) != 1 || recent[0].Role != types.RoleUser || recent[0].Content != pythonMessage {
		t.Fatalf("expected only the user turn to remain, got %+v", recent)
	}
	profile, err := h.store.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if len(profile.Interests) != 0 {
		t.Fatalf("expected profile untouched, got %v", profile.Interests)
	}
}

func TestChatDegradedSemanticTierStillCompletes(t *testing.T) {
	h := newHarness(t, brokenSemantic{})
	ctx := context.Background()

	result, err := h.engine.Chat(ctx, "u1", pythonMessage)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Response != h.generator.text {
		t.Fatalf("expected generated response, got %q", result.Response)
	}
	if len(result.Degraded) != 1 || result.Degraded[0] != TierSemantic {
		t.Fatalf("expected only the semantic tier degraded, got %v", result.Degraded)
	}
	if result.InteractionID == "" {
		t.Fatalf("expected the interaction to be recorded")
	}
}

func TestChatNoDuplicateInterests(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	for _, msg := range []string{pythonMessage, "my database code is slow", "I need a holiday flight"} {
		if _, err := h.engine.Chat(ctx, "u1", msg); err != nil {
			t.Fatalf("chat failed: %v", err)
		}
	}
	profile, err := h.store.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if len(profile.Interests) != 2 || profile.Interests[0] != "technology" || profile.Interests[1] != "travel" {
		t.Fatalf("expected [technology travel], got %v", profile.Interests)
	}
}

func TestChatRejectsEmptyIdentity(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.engine.Chat(context.Background(), "", "hi"); !errors.Is(err, types.ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
}

func TestBuildContextEmptyForNewIdentity(t *testing.T) {
	h := newHarness(t, nil)
	if got := h.engine.BuildContext(context.Background(), "nobody", "hello"); got != "" {
		t.Fatalf("expected empty context, got %q", got)
	}
}

func TestSubmitFeedback(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	result, err := h.engine.Chat(ctx, "u1", pythonMessage)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}

	if err := h.engine.SubmitFeedback(ctx, "u1", "missing", 0.9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := h.engine.SubmitFeedback(ctx, "u2", result.InteractionID, 0.9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for another identity, got %v", err)
	}
	if err := h.engine.SubmitFeedback(ctx, "u1", result.InteractionID, math.NaN()); !errors.Is(err, ErrInvalidFeedback) {
		t.Fatalf("expected ErrInvalidFeedback, got %v", err)
	}
	_, avg, _ := h.store.Interactions.Stats(ctx, "u1")
	if avg != nil {
		t.Fatalf("expected no satisfaction yet, got %v", *avg)
	}

	if err := h.engine.SubmitFeedback(ctx, "u1", result.InteractionID, 0.9); err != nil {
		t.Fatalf("expected feedback to be recorded, got %v", err)
	}
	_, avg, _ = h.store.Interactions.Stats(ctx, "u1")
	if avg == nil || math.Abs(*avg-0.9) > 1e-9 {
		t.Fatalf("expected average 0.9, got %v", avg)
	}
}

func TestInsights(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Insights(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := h.engine.DailyInsights(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for daily insights, got %v", err)
	}

	for i := 0; i < 6; i++ {
		if _, err := h.engine.Chat(ctx, "u1", "short ai question?"); err != nil {
			t.Fatalf("chat failed: %v", err)
		}
	}

	insights, err := h.engine.Insights(ctx, "u1")
	if err != nil {
		t.Fatalf("expected insights, got %v", err)
	}
	if insights.TotalInteractions != 6 {
		t.Fatalf("expected 6 interactions, got %d", insights.TotalInteractions)
	}
	if insights.TopicDistribution["technology"] != 6 {
		t.Fatalf("unexpected topic distribution %v", insights.TopicDistribution)
	}
	if insights.AverageSatisfaction != nil {
		t.Fatalf("expected nil average satisfaction")
	}
	for _, p := range insights.TopPatterns {
		if p.Confidence <= 0.5 {
			t.Fatalf("expected only confident patterns, got %+v", p)
		}
	}
	if len(insights.TopPatterns) != 4 {
		t.Fatalf("expected 4 patterns above 0.5, got %+v", insights.TopPatterns)
	}
	if pref := insights.CommunicationStyle[types.StylePreference]; pref != "concise" && pref != "inquisitive" {
		t.Fatalf("expected a learned style preference, got %v", insights.CommunicationStyle)
	}

	daily, err := h.engine.DailyInsights(ctx, "u1")
	if err != nil {
		t.Fatalf("expected daily insights, got %v", err)
	}
	if daily.Activity.TotalInteractions != 6 || daily.Communication.Verbosity != "concise" {
		t.Fatalf("unexpected daily insights %+v", daily)
	}
	if daily.Communication.InquiryStyle != "highly_inquisitive" {
		t.Fatalf("expected highly_inquisitive, got %q", daily.Communication.InquiryStyle)
	}
	// keywords come from both sides of each exchange
	trends := daily.TopicTrends
	if trends.TopicDiversity != 6 || len(trends.TopTopics) != 5 || trends.TopTopics[0] != "short" || trends.TopTopics[2] != "python" {
		t.Fatalf("unexpected topic trends %+v", trends)
	}
	if len(trends.FocusAreas) != 1 || trends.FocusAreas[0] != "Work & Career" {
		t.Fatalf("unexpected focus areas %v", trends.FocusAreas)
	}
	if len(daily.Suggestions) != 1 || daily.Suggestions[0].Type != "communication" {
		t.Fatalf("expected only the communication suggestion, got %+v", daily.Suggestions)
	}
}

func TestConsolidate(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	id, err := h.engine.Consolidate(ctx, "u1")
	if err != nil || id != "" {
		t.Fatalf("expected no-op for empty buffer, got %q (%v)", id, err)
	}

	if _, err := h.engine.Chat(ctx, "u1", pythonMessage); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	summary := "The user enjoys Python for AI projects."
	h.generator.replies = []string{
		summary,
		"```json\n" + `{"topics": ["python", "ai"], "user_interests": ["machine learning"], "sentiment": "Positive", "complexity": "simple", "user_learning": "python basics"}` + "\n```",
	}
	id, err = h.engine.Consolidate(ctx, "u1")
	if err != nil || id == "" {
		t.Fatalf("expected summary record, got %q (%v)", id, err)
	}

	requests := h.generator.requests
	summaryReq, metadataReq := requests[len(requests)-2], requests[len(requests)-1]
	if !strings.Contains(summaryReq.UserMessage, "User: "+pythonMessage) {
		t.Fatalf("expected transcript in summary prompt, got %q", summaryReq.UserMessage)
	}
	if !strings.Contains(metadataReq.UserMessage, "user: "+pythonMessage) || !strings.Contains(metadataReq.UserMessage, summary) {
		t.Fatalf("expected conversation and summary in metadata prompt, got %q", metadataReq.UserMessage)
	}

	record := querySummary(t, h, summary, id)
	want := map[string]string{
		types.TagTopic:         types.TopicConversationSummary,
		types.TagTopics:        "python,ai",
		types.TagUserInterests: "machine learning",
		types.TagSentiment:     "positive",
		types.TagComplexity:    "simple",
		types.TagUserLearning:  "python basics",
	}
	for k, v := range want {
		if record.Tags[k] != v {
			t.Fatalf("expected tag %s=%q, got %v", k, v, record.Tags)
		}
	}

	h.generator.err = errors.New("down")
	if _, err := h.engine.Consolidate(ctx, "u1"); err == nil {
		t.Fatalf("expected generation error")
	}
}

func querySummary(t *testing.T, h *harness, summary, id string) types.RetrievedMemory {
	t.Helper()
	vec, _ := h.embedder.Embed(context.Background(), summary)
	results, err := h.semantic.Query(context.Background(), "u1", vec, 1)
	if err != nil || len(results) != 1 {
		t.Fatalf("expected summary to be searchable, got %v (%v)", results, err)
	}
	if results[0].ID != id || results[0].Topic() != types.TopicConversationSummary {
		t.Fatalf("unexpected summary record %+v", results[0])
	}
	return results[0]
}

func TestConsolidateMalformedMetadataFallsBackToDefaults(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	if _, err := h.engine.Chat(ctx, "u1", pythonMessage); err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	summary := "The user asked about Python."
	h.generator.replies = []string{summary, `{"topics": ["python", "sentiment": `}
	id, err := h.engine.Consolidate(ctx, "u1")
	if err != nil || id == "" {
		t.Fatalf("expected summary record despite bad metadata, got %q (%v)", id, err)
	}

	record := querySummary(t, h, summary, id)
	if record.Tags[types.TagTopics] != "general_conversation" ||
		record.Tags[types.TagSentiment] != "neutral" ||
		record.Tags[types.TagComplexity] != "medium" {
		t.Fatalf("expected default metadata tags, got %v", record.Tags)
	}
	if _, ok := record.Tags[types.TagUserInterests]; ok {
		t.Fatalf("expected no user interests tag, got %v", record.Tags)
	}
}

func seedInteractions(t *testing.T, h *harness, inputs ...string) {
	t.Helper()
	for i, input := range inputs {
		err := h.store.Interactions.Create(context.Background(), &types.Interaction{
			UserID:            "u1",
			RecordID:          fmt.Sprintf("rec-%d", i+1),
			UserInput:         input,
			AssistantResponse: "ok",
			Topic:             "general",
			CreatedAt:         testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed failed: %v", err)
		}
	}
}

func TestClustersGroupsRecentInteractions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	// stored oldest first, so the prompt numbers them newest first:
	// 1 garden, 2 python, 3 tomatoes, 4 go
	seedInteractions(t, h, "learning go generics", "tomatoes need sun", "python decorators", "my garden beds")

	h.generator.replies = []string{`Here you go:
[
  {"theme": "Programming", "description": "code questions", "memory_indices": [2, 4, 9], "strength": "HIGH"},
  {"theme": "", "memory_indices": [1, 3]},
  {"theme": "Empty", "memory_indices": [0, 12]}
]`}
	clusters, err := h.engine.Clusters(ctx, "u1", 5)
	if err != nil {
		t.Fatalf("expected clusters, got %v", err)
	}
	if len(clusters) != 2 {
		t.Fatalf("expected clusters without members dropped, got %+v", clusters)
	}

	programming := clusters[0]
	if programming.Theme != "Programming" || programming.Strength != "high" || programming.MemoryCount != 2 {
		t.Fatalf("unexpected first cluster %+v", programming)
	}
	if programming.Memories[0].RecordID != "rec-3" || programming.Memories[1].RecordID != "rec-1" {
		t.Fatalf("expected 1-based indices over newest-first memories, got %+v", programming.Memories)
	}
	if programming.Memories[0].Text != "User: python decorators\nAssistant: ok" {
		t.Fatalf("unexpected member text %q", programming.Memories[0].Text)
	}
	if clusters[1].Theme != "Unknown Theme" || clusters[1].Strength != "medium" || clusters[1].MemoryCount != 2 {
		t.Fatalf("expected defaults on second cluster, got %+v", clusters[1])
	}

	req := h.generator.requests[0]
	if !strings.Contains(req.UserMessage, "Memory 1: User: my garden beds") || !strings.Contains(req.UserMessage, "Memory 4: User: learning go generics") {
		t.Fatalf("expected numbered memories in prompt, got %q", req.UserMessage)
	}
}

func TestClustersCapsAtMax(t *testing.T) {
	h := newHarness(t, nil)
	seedInteractions(t, h, "a1", "b2", "c3")
	h.generator.replies = []string{`[{"theme":"A","memory_indices":[1]},{"theme":"B","memory_indices":[2]},{"theme":"C","memory_indices":[3]}]`}

	clusters, err := h.engine.Clusters(context.Background(), "u1", 2)
	if err != nil || len(clusters) != 2 || clusters[1].Theme != "B" {
		t.Fatalf("expected first two clusters, got %+v (%v)", clusters, err)
	}
}

func TestClustersNeedsThreeMemories(t *testing.T) {
	h := newHarness(t, nil)
	seedInteractions(t, h, "only", "two")

	clusters, err := h.engine.Clusters(context.Background(), "u1", 0)
	if err != nil || clusters == nil || len(clusters) != 0 {
		t.Fatalf("expected empty clusters, got %+v (%v)", clusters, err)
	}
	if len(h.generator.requests) != 0 {
		t.Fatalf("expected no generation for too few memories")
	}
}

func TestClustersMalformedReplyYieldsNone(t *testing.T) {
	h := newHarness(t, nil)
	seedInteractions(t, h, "one", "two", "three")
	h.generator.replies = []string{`[{"theme": "Broken", "memory_indices": [1,`}

	clusters, err := h.engine.Clusters(context.Background(), "u1", 0)
	if err != nil || clusters == nil || len(clusters) != 0 {
		t.Fatalf("expected empty clusters on malformed reply, got %+v (%v)", clusters, err)
	}
	if !strings.Contains(h.generator.requests[0].UserMessage, "up to 10 clusters") {
		t.Fatalf("expected default cluster cap in prompt, got %q", h.generator.requests[0].UserMessage)
	}

	h.generator.err = errors.New("down")
	var genErr *models.GenerationError
	if _, err := h.engine.Clusters(context.Background(), "u1", 0); !errors.As(err, &genErr) {
		t.Fatalf("expected generation error, got %v", err)
	}
	if _, err := h.engine.Clusters(context.Background(), "", 0); !errors.Is(err, types.ErrEmptyIdentity) {
		t.Fatalf("expected ErrEmptyIdentity, got %v", err)
	}
}

func TestChatContextPreviewKeepsShortContextWhole(t *testing.T) {
	h := newHarness(t, nil)
	result, err := h.engine.Chat(context.Background(), "u1", "hi")
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if !strings.HasSuffix(result.ContextUsed, "- user: hi...") {
		t.Fatalf("expected the whole short context without an added ellipsis, got %q", result.ContextUsed)
	}
}

func TestChatContextPreviewTruncatesLongContext(t *testing.T) {
	h := newHarness(t, nil)
	long := strings.Repeat("tell me more about rivers ", 10)
	result, err := h.engine.Chat(context.Background(), "u1", long)
	if err != nil {
		t.Fatalf("chat failed: %v", err)
	}
	if utf8.RuneCountInString(result.ContextUsed) != 203 || !strings.HasSuffix(result.ContextUsed, "...") {
		t.Fatalf("expected a 200-rune preview plus ellipsis, got %d runes: %q",
			utf8.RuneCountInString(result.ContextUsed), result.ContextUsed)
	}
}

func TestChatGenerationTimeoutPersistsNothing(t *testing.T) {
	h := newHarnessWithGenerator(t, nil, stalledGenerator{}, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	result, err := h.engine.Chat(ctx, "u1", pythonMessage)
	if err != nil {
		t.Fatalf("timeout must not surface as error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected the deadline to cut generation short, took %v", elapsed)
	}
	if result.Response != Apology || !result.Failed || result.InteractionID != "" {
		t.Fatalf("expected apology without interaction, got %+v", result)
	}

	total, _, err := h.store.Interactions.Stats(ctx, "u1")
	if err != nil || total != 0 {
		t.Fatalf("expected no interactions, got %d (%v)", total, err)
	}
	recent, _ := h.recency.Recent(ctx, "u1", 10)
	if len(recent) != 1 || recent[0].Role != types.RoleUser {
		t.Fatalf("expected only the buffered user turn, got %+v", recent)
	}
	profile, err := h.store.Profiles.Get(ctx, "u1")
	if err != nil || len(profile.Interests) != 0 {
		t.Fatalf("expected untouched profile, got %+v (%v)", profile, err)
	}
}

func TestChatConcurrentTurnsForOneIdentity(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	const turns = 5

	var wg sync.WaitGroup
	errs := make(chan error, turns)
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := h.engine.Chat(ctx, "u1", pythonMessage)
			if err == nil && result.Failed {
				err = errors.New("turn failed")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent chat failed: %v", err)
		}
	}

	profile, err := h.store.Profiles.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("expected profile, got %v", err)
	}
	if len(profile.Interests) != 1 || profile.Interests[0] != "technology" {
		t.Fatalf("expected a single technology interest, got %v", profile.Interests)
	}

	observations, err := h.store.Patterns.TopObservations(ctx, "u1", "", 0, 0)
	if err != nil {
		t.Fatalf("expected observations, got %v", err)
	}
	for _, o := range observations {
		if math.Abs(o.Confidence-0.1*turns) > 1e-9 {
			t.Fatalf("expected confidence %.1f after %d turns, got %+v", 0.1*turns, turns, o)
		}
	}
	if len(observations) != 2 {
		t.Fatalf("expected interest and time signals only, got %+v", observations)
	}

	total, _, err := h.store.Interactions.Stats(ctx, "u1")
	if err != nil || total != turns {
		t.Fatalf("expected %d interactions, got %d (%v)", turns, total, err)
	}
	recent, _ := h.recency.Recent(ctx, "u1", 50)
	if len(recent) != 2*turns {
		t.Fatalf("expected %d buffered turns, got %d", 2*turns, len(recent))
	}
}
