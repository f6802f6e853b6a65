package domain

import "time"

// IntentDefinition describes one recognizable user intention. Definitions are
// registered once at startup and read-only afterward.
type IntentDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// KeywordGroups are OR-ed together; within a group every keyword must be
	// present for the group to score.
	KeywordGroups [][]string `json:"keyword_groups,omitempty" yaml:"keyword_groups,omitempty"`

	// Patterns are regular expressions matched against the normalized message.
	Patterns []string `json:"patterns,omitempty" yaml:"patterns,omitempty"`

	// Examples are full phrases; an exact match earns a score bonus.
	Examples []string `json:"examples,omitempty" yaml:"examples,omitempty"`

	// WorkflowID names the workflow this intent should start, if any.
	WorkflowID string `json:"workflow_id,omitempty" yaml:"workflow_id,omitempty"`

	// Priority weights the score: final = score * (1 + priority*0.1).
	Priority int `json:"priority,omitempty" yaml:"priority,omitempty"`

	// RequiredEntities lists entity types the intent needs to be actionable.
	RequiredEntities []string `json:"required_entities,omitempty" yaml:"required_entities,omitempty"`
}

// Entity is a typed value extracted from free text.
type Entity struct {
	Type       string         `json:"type"`
	Value      string         `json:"value"`
	Confidence float64        `json:"confidence"`
	Position   int            `json:"position,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Intent is a scored classification candidate.
type Intent struct {
	Name       string  `json:"name"`
	Category   string  `json:"category,omitempty"`
	WorkflowID string  `json:"workflow_id,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Classification methods.
const (
	MethodKeyword  = "keyword"
	MethodPattern  = "pattern"
	MethodFallback = "fallback"
	MethodCache    = "cache"
)

// FallbackIntentName is returned when no registered intent matches.
const FallbackIntentName = "unknown"

// Classification is the full result of classifying one message.
type Classification struct {
	Primary        Intent        `json:"primary"`
	Alternatives   []Intent      `json:"alternatives,omitempty"`
	Entities       []Entity      `json:"entities,omitempty"`
	Confidence     float64       `json:"confidence"`
	Method         string        `json:"method"`
	ProcessingTime time.Duration `json:"processing_time"`
}
