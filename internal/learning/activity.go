package learning

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/easeaico/project-jobo/internal/types"
	"github.com/easeaico/project-jobo/internal/utils"
)

// ReportWindow is how far back the daily report looks.
const ReportWindow = 7 * 24 * time.Hour

// DailyReport summarizes a week of interactions as of now. Interactions
// are expected oldest first, as InteractionRepo.ListSince returns them.
func DailyReport(identity string, interactions []types.Interaction, now time.Time) types.DailyInsights {
	now = now.UTC()
	topics := make(map[string]int)
	for _, in := range interactions {
		if in.Topic != "" {
			topics[in.Topic]++
		}
	}
	report := types.DailyInsights{
		UserID:          identity,
		Date:            now.Format(time.DateOnly),
		Activity:        analyzeActivity(interactions),
		Communication:   analyzeCommunication(interactions),
		TopicCounts:     topics,
		TopicTrends:     analyzeTopicTrends(interactions),
		EngagementScore: engagementScore(interactions, now),
	}
	report.Suggestions = suggest(report.Activity, report.TopicTrends, report.Communication)
	return report
}

func analyzeActivity(interactions []types.Interaction) types.ActivitySummary {
	if len(interactions) == 0 {
		return types.ActivitySummary{PeakHours: []int{}}
	}

	hourly := make(map[int]int)
	daily := make(map[string]int)
	for _, in := range interactions {
		ts := in.CreatedAt.UTC()
		hourly[ts.Hour()]++
		daily[ts.Format(time.DateOnly)]++
	}

	hours := make([]int, 0, len(hourly))
	for h := range hourly {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool {
		if hourly[hours[i]] != hourly[hours[j]] {
			return hourly[hours[i]] > hourly[hours[j]]
		}
		return hours[i] < hours[j]
	})
	if len(hours) > 3 {
		hours = hours[:3]
	}

	counts := make([]float64, 0, len(daily))
	for _, c := range daily {
		counts = append(counts, float64(c))
	}
	mean := float64(len(interactions)) / float64(len(daily))

	return types.ActivitySummary{
		TotalInteractions: len(interactions),
		AvgDaily:          round(mean, 1),
		PeakHours:         hours,
		ConsistencyScore:  consistency(counts, mean),
	}
}

// consistency is 1 - variance/mean of the daily counts, floored at 0.
func consistency(counts []float64, mean float64) float64 {
	if len(counts) == 0 || mean == 0 {
		return 0
	}
	var variance float64
	for _, c := range counts {
		variance += (c - mean) * (c - mean)
	}
	variance /= float64(len(counts))
	return round(math.Max(0, 1-variance/mean), 2)
}

func analyzeCommunication(interactions []types.Interaction) types.CommunicationSummary {
	if len(interactions) == 0 {
		return types.CommunicationSummary{}
	}

	var totalLen, questions int
	for _, in := range interactions {
		totalLen += utils.RuneLen(in.UserInput)
		if strings.Contains(in.UserInput, "?") {
			questions++
		}
	}
	avgLen := float64(totalLen) / float64(len(interactions))
	ratio := float64(questions) / float64(len(interactions))

	summary := types.CommunicationSummary{
		AvgMessageLength: math.Round(avgLen),
		QuestionRatio:    round(ratio, 2),
	}
	switch {
	case avgLen < 50:
		summary.Verbosity = "concise"
	case avgLen < 150:
		summary.Verbosity = "moderate"
	default:
		summary.Verbosity = "detailed"
	}
	switch {
	case ratio > 0.6:
		summary.InquiryStyle = "highly_inquisitive"
	case ratio > 0.3:
		summary.InquiryStyle = "moderately_inquisitive"
	default:
		summary.InquiryStyle = "statement_focused"
	}
	return summary
}

// engagementScore weighs recency, satisfaction and message length per
// interaction, with recent interactions counting more.
func engagementScore(interactions []types.Interaction, now time.Time) float64 {
	var total, weights float64
	for _, in := range interactions {
		daysAgo := math.Floor(now.Sub(in.CreatedAt).Hours() / 24)
		recency := math.Max(0, 1-daysAgo/7)

		satisfaction := 0.5
		if in.Satisfaction != nil {
			satisfaction = math.Max(0, math.Min(1, *in.Satisfaction))
		}
		length := math.Min(1, float64(utils.RuneLen(in.UserInput))/100)

		score := (recency + satisfaction + length) / 3
		weight := 1 + recency
		total += score * weight
		weights += weight
	}
	if weights == 0 {
		return 0
	}
	return round(total/weights, 2)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
