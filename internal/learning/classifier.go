// Package learning derives topics and style signals from user text and
// feeds them into the confidence-scored pattern model.
package learning

import "strings"

// Topics in declaration order; ties resolve to the earlier entry.
const (
	TopicTechnology    = "technology"
	TopicPersonal      = "personal"
	TopicWork          = "work"
	TopicLearning      = "learning"
	TopicEntertainment = "entertainment"
	TopicHealth        = "health"
	TopicTravel        = "travel"
	TopicGeneral       = "general"
)

type topicKeywords struct {
	topic    string
	keywords []string
}

// vocabulary keywords are stored lower-case and matched as substrings.
var vocabulary = []topicKeywords{
	{TopicTechnology, []string{"code", "programming", "software", "computer", "ai", "tech", "api", "database"}},
	{TopicPersonal, []string{"feel", "emotion", "life", "family", "friend", "love", "happy", "sad"}},
	{TopicWork, []string{"job", "career", "project", "deadline", "meeting", "boss", "colleague"}},
	{TopicLearning, []string{"learn", "study", "course", "tutorial", "understand", "teach", "education"}},
	{TopicEntertainment, []string{"movie", "music", "game", "book", "show", "netflix", "spotify"}},
	{TopicHealth, []string{"health", "exercise", "diet", "sleep", "doctor", "medicine", "fitness"}},
	{TopicTravel, []string{"travel", "trip", "vacation", "flight", "hotel", "destination", "explore"}},
}

// Topics returns the classifiable topics in declaration order, excluding general.
func Topics() []string {
	out := make([]string, 0, len(vocabulary))
	for _, v := range vocabulary {
		out = append(out, v.topic)
	}
	return out
}

// Classify maps text to the topic with the most keyword hits. Each keyword
// counts once no matter how often it occurs. Zero hits yields "general".
func Classify(text string) string {
	lower := strings.ToLower(text)
	best, bestScore := TopicGeneral, 0
	for _, v := range vocabulary {
		score := 0
		for _, kw := range v.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = v.topic, score
		}
	}
	return best
}
