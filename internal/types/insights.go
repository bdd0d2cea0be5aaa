package types

// Insights summarizes what has been learned about one identity.
type Insights struct {
	UserID              string            `json:"user_id"`
	TopPatterns         []Observation     `json:"top_patterns"`
	TotalInteractions   int64             `json:"total_interactions"`
	AverageSatisfaction *float64          `json:"average_satisfaction"`
	TopicDistribution   map[string]int    `json:"topic_distribution"`
	Interests           []string          `json:"interests"`
	CommunicationStyle  map[string]string `json:"communication_style"`
}

// DailyInsights is the rolling seven day activity report.
type DailyInsights struct {
	UserID          string               `json:"user_id"`
	Date            string               `json:"date"`
	Activity        ActivitySummary      `json:"activity"`
	Communication   CommunicationSummary `json:"communication"`
	TopicCounts     map[string]int       `json:"topic_counts"`
	TopicTrends     TopicTrends          `json:"topic_trends"`
	Suggestions     []Suggestion         `json:"suggestions"`
	EngagementScore float64              `json:"engagement_score"`
}

// TopicTrends describes the words the user keeps coming back to.
type TopicTrends struct {
	TopTopics      []string `json:"top_topics"`
	EmergingTopics []string `json:"emerging_topics"`
	TopicDiversity int      `json:"topic_diversity"`
	FocusAreas     []string `json:"focus_areas"`
}

// Suggestion is a rule-based nudge derived from the daily report.
type Suggestion struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// ActivitySummary describes when the user tends to talk.
type ActivitySummary struct {
	TotalInteractions int     `json:"total_interactions"`
	AvgDaily          float64 `json:"avg_daily"`
	PeakHours         []int   `json:"peak_hours"`
	ConsistencyScore  float64 `json:"consistency_score"`
}

// CommunicationSummary describes how the user tends to write.
type CommunicationSummary struct {
	AvgMessageLength float64 `json:"avg_message_length"`
	QuestionRatio    float64 `json:"question_ratio"`
	Verbosity        string  `json:"verbosity"`
	InquiryStyle     string  `json:"inquiry_style"`
}
