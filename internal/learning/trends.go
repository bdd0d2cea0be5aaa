package learning

import (
	"slices"
	"strings"
	"unicode"

	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

const (
	maxKeywords       = 20
	maxTopTopics      = 5
	maxEmergingTopics = 3
	minKeywordRunes   = 4
)

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the a an and or but in on at to for of with by how what when
		where why this that i you we they it is are was were be been have has had do does did
		will would could should can may might`) {
		stopWords[w] = struct{}{}
	}
}

type focusArea struct {
	name  string
	words []string
}

var focusAreas = []focusArea{
	{"Technology & Programming", []string{"code", "programming", "software", "ai", "data", "algorithm", "tech"}},
	{"Learning & Education", []string{"learn", "study", "understand", "knowledge", "education"}},
	{"Work & Career", []string{"work", "job", "project", "business", "career"}},
	{"Creative & Design", []string{"creative", "design", "art", "music", "write"}},
}

// keywordCount is a word and its frequency; lists keep first-seen order on ties.
type keywordCount struct {
	word  string
	count int
}

// extractKeywords counts meaningful words and keeps the most frequent ones.
func extractKeywords(text string) []keywordCount {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	index := make(map[string]int)
	var counts []keywordCount
	for _, w := range words {
		if utils.RuneLen(w) < minKeywordRunes {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if i, ok := index[w]; ok {
			counts[i].count++
			continue
		}
		index[w] = len(counts)
		counts = append(counts, keywordCount{word: w, count: 1})
	}

	slices.SortStableFunc(counts, func(a, b keywordCount) int {
		return b.count - a.count
	})
	if len(counts) > maxKeywords {
		counts = counts[:maxKeywords]
	}
	return counts
}

func interactionText(interactions []types.Interaction) string {
	parts := make([]string, 0, len(interactions))
	for _, in := range interactions {
		parts = append(parts, in.UserInput+" "+in.AssistantResponse)
	}
	return strings.Join(parts, " ")
}

// analyzeTopicTrends compares the newer half of the window against the older half.
func analyzeTopicTrends(interactions []types.Interaction) types.TopicTrends {
	trends := types.TopicTrends{
		TopTopics:      []string{},
		EmergingTopics: []string{},
		FocusAreas:     []string{},
	}
	if len(interactions) == 0 {
		return trends
	}

	keywords := extractKeywords(interactionText(interactions))
	for _, k := range keywords {
		if len(trends.TopTopics) == maxTopTopics {
			break
		}
		trends.TopTopics = append(trends.TopTopics, k.word)
	}
	trends.TopicDiversity = len(keywords)

	// input is oldest first; the newest n/2 interactions form the recent half
	split := len(interactions) - len(interactions)/2
	older := extractKeywords(interactionText(interactions[:split]))
	recent := extractKeywords(interactionText(interactions[split:]))

	olderCounts := make(map[string]int, len(older))
	for _, k := range older {
		olderCounts[k.word] = k.count
	}
	for _, k := range recent {
		if len(trends.EmergingTopics) == maxEmergingTopics {
			break
		}
		if k.count > olderCounts[k.word] {
			trends.EmergingTopics = append(trends.EmergingTopics, k.word)
		}
	}

	present := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		present[k.word] = struct{}{}
	}
	for _, area := range focusAreas {
		for _, w := range area.words {
			if _, ok := present[w]; ok {
				trends.FocusAreas = append(trends.FocusAreas, area.name)
				break
			}
		}
	}
	return trends
}

// suggest applies the fixed suggestion rules to a report.
func suggest(activity types.ActivitySummary, trends types.TopicTrends, comm types.CommunicationSummary) []types.Suggestion {
	suggestions := []types.Suggestion{}
	if activity.ConsistencyScore < 0.5 {
		suggestions = append(suggestions, types.Suggestion{
			Type:        "activity",
			Title:       "Consider Regular Check-ins",
			Description: "Your interaction patterns suggest irregular usage. Regular conversations can help me learn your preferences better.",
			Priority:    "medium",
		})
	}
	if trends.TopicDiversity < 3 {
		suggestions = append(suggestions, types.Suggestion{
			Type:        "exploration",
			Title:       "Explore New Topics",
			Description: "You might enjoy discussing topics beyond your current focus areas. I can help with various subjects!",
			Priority:    "low",
		})
	}
	if comm.Verbosity == "concise" {
		suggestions = append(suggestions, types.Suggestion{
			Type:        "communication",
			Title:       "Detailed Insights Available",
			Description: "I can provide more detailed explanations if helpful. Feel free to ask for deeper analysis on topics of interest.",
			Priority:    "low",
		})
	}
	for _, area := range trends.FocusAreas {
		if strings.Contains(area, "Learning") {
			suggestions = append(suggestions, types.Suggestion{
				Type:        "learning",
				Title:       "Learning Path Optimization",
				Description: "I notice you're focused on learning. I can help create structured learning plans and track your progress.",
				Priority:    "high",
			})
			break
		}
	}
	return suggestions
}
