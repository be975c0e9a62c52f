// Package memory implements the stratified memory store: typed records
// with salience-based forgetting, spaced-repetition review scheduling,
// and episodic-to-semantic consolidation.
package memory

import "time"

// Type tags a record's payload variant.
type Type string

const (
	TypeEpisodic   Type = "episodic"
	TypeSemantic   Type = "semantic"
	TypeProcedural Type = "procedural"
	TypeReflective Type = "reflective"
)

// Episodic is an event record: what happened, optional context, and
// outcome.
type Episodic struct {
	Event   string `json:"event"`
	Context string `json:"context,omitempty"`
	Outcome string `json:"outcome,omitempty"`
}

// Semantic is a fact record: content, category, confidence, and
// verification status.
type Semantic struct {
	Fact       string  `json:"fact"`
	Category   string  `json:"category,omitempty"`
	Confidence float64 `json:"confidence"`
	Verified   bool    `json:"verified"`
}

// Procedural is a skill record: ordered steps and an observed success rate.
type Procedural struct {
	SkillName   string   `json:"skill_name"`
	Steps       []string `json:"steps"`
	SuccessRate float64  `json:"success_rate"`
}

// Reflective is an insight record produced by the reflection engine.
type Reflective struct {
	Insight    string  `json:"insight"`
	Source     string  `json:"source,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Record is one stored memory, common fields plus exactly one non-nil
// payload variant matching Type.
type Record struct {
	ID              string    `json:"id"`
	Type            Type      `json:"type"`
	CreatedAt       time.Time `json:"created_at"`
	LastAccess      time.Time `json:"last_access"`
	AccessCount     int       `json:"access_count"`
	Importance      float64   `json:"importance"`      // [0,1]
	EmotionalWeight float64   `json:"emotional_weight"` // [0,2]
	Content         string    `json:"content"`          // searchable text projection of the payload
	ContentHash     string    `json:"content_hash,omitempty"`
	Embedding       []float32 `json:"embedding,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	Tombstoned      bool      `json:"tombstoned"`

	Episodic   *Episodic   `json:"episodic,omitempty"`
	Semantic   *Semantic   `json:"semantic,omitempty"`
	Procedural *Procedural `json:"procedural,omitempty"`
	Reflective *Reflective `json:"reflective,omitempty"`
}

// ReviewCount is access_count / 2, floored, used by the salience and
// spaced-repetition functions.
func (r *Record) ReviewCount() int {
	return r.AccessCount / 2
}
