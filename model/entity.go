package model

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a resolved entity
type EntityType string

const (
	EntityTypePerson       EntityType = "PERSON"
	EntityTypeOrganization EntityType = "ORGANIZATION"
	EntityTypeLocation     EntityType = "LOCATION"
	EntityTypeConcept      EntityType = "CONCEPT"
	EntityTypeTechnology   EntityType = "TECHNOLOGY"
	EntityTypeProduct      EntityType = "PRODUCT"
	EntityTypeEvent        EntityType = "EVENT"
	EntityTypeDate         EntityType = "DATE"
	EntityTypeMoney        EntityType = "MONEY"
	EntityTypeOther        EntityType = "OTHER"
)

var (
	canonicalPunctuation = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	canonicalWhitespace  = regexp.MustCompile(`\s+`)
)

// CanonicalName normalizes an entity name into its canonical matching key:
// lowercased, punctuation stripped, whitespace collapsed.
func CanonicalName(name string) string {
	canonical := strings.ToLower(name)
	canonical = canonicalPunctuation.ReplaceAllString(canonical, "")
	canonical = canonicalWhitespace.ReplaceAllString(canonical, " ")
	return strings.TrimSpace(canonical)
}

// Entity represents a resolved node in the knowledge graph.
// CanonicalName is always derived from Name via CanonicalName().
type Entity struct {
	ID                uuid.UUID  `json:"id"`
	Name              string     `json:"name"`
	CanonicalName     string     `json:"canonical_name"`
	Type              EntityType `json:"entity_type"`
	Aliases           []string   `json:"aliases,omitempty"`
	Confidence        float64    `json:"confidence"`
	OccurrenceCount   int        `json:"occurrence_count"`
	DocumentFrequency int        `json:"document_frequency"`
	SourceFiles       []string   `json:"source_files,omitempty"`
	ExtractionMethods []string   `json:"extraction_methods,omitempty"`
	Embedding         []float32  `json:"embedding,omitempty"`
	FirstSeen         time.Time  `json:"first_seen"`
	LastUpdated       time.Time  `json:"last_updated"`
	LastOccurrence    time.Time  `json:"last_occurrence"`
	// Results
	Similarity float64 `json:"similarity,omitempty"`
}

// HasAlias reports whether the entity already carries the given alias
func (e *Entity) HasAlias(alias string) bool {
	for _, a := range e.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// EmbeddingText builds the text an embedding is generated from when the
// entity has no precomputed vector.
func (e *Entity) EmbeddingText() string {
	parts := []string{e.Name}
	parts = append(parts, e.Aliases...)
	parts = append(parts, string(e.Type))
	return strings.Join(parts, " ")
}

// MentionContext records one mention of an entity inside a chunk
type MentionContext struct {
	ID         uuid.UUID `json:"id"`
	EntityID   uuid.UUID `json:"entity_id"`
	ChunkRID   uuid.UUID `json:"chunk_rid"`
	Text       string    `json:"text"`
	StartPos   int       `json:"start_pos"`
	EndPos     int       `json:"end_pos"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// EntityCandidate is an entity observation produced by an extractor,
// not yet resolved against the graph.
type EntityCandidate struct {
	Name       string     `json:"name"`
	Type       EntityType `json:"entity_type"`
	Confidence float64    `json:"confidence"`
	StartPos   int        `json:"start_pos"`
	EndPos     int        `json:"end_pos"`
	Method     string     `json:"extraction_method,omitempty"`
	Embedding  []float32  `json:"embedding,omitempty"`
}
