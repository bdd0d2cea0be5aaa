package learning

import (
	"strings"
	"time"

	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

// Signal is one (category, value) sighting to reinforce.
type Signal struct {
	Category string `json:"category"`
	Value    string `json:"value"`
}

// Style thresholds in runes.
const (
	verboseThreshold = 200
	conciseThreshold = 50
)

// Style values.
const (
	StyleVerbose     = "verbose"
	StyleConcise     = "concise"
	StyleInquisitive = "inquisitive"
)

// TimeBucket maps the UTC hour of now to a part of the day.
func TimeBucket(now time.Time) string {
	switch hour := now.UTC().Hour(); {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 22:
		return "evening"
	default:
		return "night"
	}
}

// DeriveStyleSignals extracts the behavioral signals of one message.
// A time preference is always present; interest appears only for
// non-general topics.
func DeriveStyleSignals(text string, now time.Time) []Signal {
	signals := []Signal{{Category: types.CategoryTimePreference, Value: TimeBucket(now)}}

	switch n := utils.RuneLen(text); {
	case n > verboseThreshold:
		signals = append(signals, Signal{Category: types.CategoryCommunicationStyle, Value: StyleVerbose})
	case n < conciseThreshold:
		signals = append(signals, Signal{Category: types.CategoryCommunicationStyle, Value: StyleConcise})
	}
	if strings.HasSuffix(strings.TrimSpace(text), "?") {
		signals = append(signals, Signal{Category: types.CategoryCommunicationStyle, Value: StyleInquisitive})
	}

	if topic := Classify(text); topic != TopicGeneral {
		signals = append(signals, Signal{Category: types.CategoryInterest, Value: topic})
	}
	return signals
}
