package domain

import "time"

// Insight is a persisted record: a voice transcript, the capsule synthesized
// from it, and any follow-on drafts. Transcript and capsule are immutable once
// written; drafts are append-only.
type Insight struct {
	ID              string    `yaml:"id"`
	CreatedAt       time.Time `yaml:"created_at"`
	Title           string    `yaml:"title"`
	Tags            []string  `yaml:"tags,omitempty"`
	Transcript      string    `yaml:"transcript"`
	Capsule         string    `yaml:"capsule"`
	Drafts          []Draft   `yaml:"drafts,omitempty"`
	SourceAudioPath string    `yaml:"source_audio_path,omitempty"`
}

// Draft is one generated expansion of an insight (outline, first draft, ...).
type Draft struct {
	Kind      string    `yaml:"kind"`
	Text      string    `yaml:"text"`
	CreatedAt time.Time `yaml:"created_at"`
}

// VectorMeta is the display snapshot stored alongside an embedding.
type VectorMeta struct {
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VectorRecord associates an insight id with its summary-level embedding.
// It references the insight, it does not own it.
type VectorRecord struct {
	InsightID string     `json:"insight_id"`
	Embedding []float64  `json:"embedding"`
	Meta      VectorMeta `json:"meta"`
}

// Role selects the prompt template a generation request was built from.
type Role string

const (
	RoleCapsule      Role = "capsule"
	RoleOutline      Role = "outline"
	RoleDraft        Role = "draft"
	RoleTakeaways    Role = "takeaways"
	RoleSearchAnswer Role = "search-answer"
)

// GenerationRequest is a transient request handed to the generation gateway.
type GenerationRequest struct {
	Role        Role
	Prompt      string
	Temperature float64
	PreferLocal bool
}

// SearchResult is one retrieval hit, ordered by decreasing similarity.
type SearchResult struct {
	InsightID string
	Score     float64
	Meta      VectorMeta
}
