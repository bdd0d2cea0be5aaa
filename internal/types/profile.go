package types

import (
	"errors"
	"slices"
	"time"
)

// Default profile values applied on first contact.
const (
	DefaultName      = "User"
	DefaultFormality = "balanced"
	DefaultVerbosity = "moderate"
)

// Communication style keys.
const (
	StyleFormality  = "formality"
	StyleVerbosity  = "verbosity"
	StylePreference = "preference"
)

// ErrEmptyIdentity is returned when an identity is blank.
var ErrEmptyIdentity = errors.New("identity cannot be empty")

// Profile is the durable, structured description of one identity.
type Profile struct {
	UserID             string            `json:"user_id"`
	Name               string            `json:"name"`
	Preferences        map[string]string `json:"preferences"`
	Interests          []string          `json:"interests"`
	CommunicationStyle map[string]string `json:"communication_style"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewProfile returns the default profile for identity.
func NewProfile(identity string, now time.Time) (Profile, error) {
	if identity == "" {
		return Profile{}, ErrEmptyIdentity
	}
	return Profile{
		UserID:      identity,
		Name:        DefaultName,
		Preferences: map[string]string{},
		Interests:   []string{},
		CommunicationStyle: map[string]string{
			StyleFormality: DefaultFormality,
			StyleVerbosity: DefaultVerbosity,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Formality returns the stored formality or the default.
func (p Profile) Formality() string {
	if v := p.CommunicationStyle[StyleFormality]; v != "" {
		return v
	}
	return DefaultFormality
}

// HasInterest reports whether topic is already recorded.
func (p Profile) HasInterest(topic string) bool {
	return slices.Contains(p.Interests, topic)
}

// Observation is one learned behavioral pattern with its confidence.
type Observation struct {
	UserID     string    `json:"user_id"`
	Category   string    `json:"pattern_type"`
	Value      string    `json:"pattern_data"`
	Confidence float64   `json:"confidence"`
	LastUsed   time.Time `json:"last_used"`
	CreatedAt  time.Time `json:"created_at"`
}

// Observation categories.
const (
	CategoryTimePreference     = "time_preference"
	CategoryCommunicationStyle = "communication_style"
	CategoryInterest           = "interest"
)

// Confidence bounds for observations.
const (
	ConfidenceStep = 0.1
	ConfidenceMax  = 1.0
)
