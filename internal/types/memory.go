package types

import "time"

// Role is the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in the short-lived conversation buffer.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Memory tag keys.
const (
	TagTimestamp = "timestamp"
	TagTopic     = "topic"
	TagUserInput = "user_input"
)

// TopicConversationSummary tags consolidated conversation summaries.
const TopicConversationSummary = "conversation_summary"

// RetrievedMemory is a semantic search hit.
type RetrievedMemory struct {
	ID       string            `json:"id"`
	Text     string            `json:"text"`
	Tags     map[string]string `json:"tags"`
	Distance float64           `json:"distance"`
}

// Topic returns the topic tag, or "general" when untagged.
func (m RetrievedMemory) Topic() string {
	if t := m.Tags[TagTopic]; t != "" {
		return t
	}
	return "general"
}

// Interaction is the relational record of one completed turn.
type Interaction struct {
	ID                string            `json:"id"`
	UserID            string            `json:"user_id"`
	RecordID          string            `json:"record_id"`
	UserInput         string            `json:"user_input"`
	AssistantResponse string            `json:"assistant_response"`
	Topic             string            `json:"topic"`
	Tags              map[string]string `json:"tags"`
	Satisfaction      *float64          `json:"satisfaction,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

// Metadata tag keys attached to consolidated summaries.
const (
	TagTopics        = "topics"
	TagUserInterests = "user_interests"
	TagSentiment     = "sentiment"
	TagComplexity    = "complexity"
	TagUserLearning  = "user_learning"
)

// ClusterMember is one interaction grouped into a MemoryCluster.
type ClusterMember struct {
	RecordID string `json:"record_id"`
	Text     string `json:"text"`
}

// MemoryCluster is a theme shared by several past interactions.
type MemoryCluster struct {
	Theme       string          `json:"theme"`
	Description string          `json:"description"`
	Strength    string          `json:"strength"`
	Memories    []ClusterMember `json:"memories"`
	MemoryCount int             `json:"memory_count"`
}
