package model

import (
	"time"

	"github.com/google/uuid"
)

// RelationshipType represents the type of relationship between entities
type RelationshipType string

const (
	RelationshipTypeWorksFor         RelationshipType = "WORKS_FOR"
	RelationshipTypePartOf           RelationshipType = "PART_OF"
	RelationshipTypeRelatedTo        RelationshipType = "RELATED_TO"
	RelationshipTypeMentions         RelationshipType = "MENTIONS"
	RelationshipTypeLocatedIn        RelationshipType = "LOCATED_IN"
	RelationshipTypeCreatedBy        RelationshipType = "CREATED_BY"
	RelationshipTypeUsedBy           RelationshipType = "USED_BY"
	RelationshipTypeSimilarTo        RelationshipType = "SIMILAR_TO"
	RelationshipTypeDependsOn        RelationshipType = "DEPENDS_ON"
	RelationshipTypeCollaboratesWith RelationshipType = "COLLABORATES_WITH"
	RelationshipTypeCompetesWith     RelationshipType = "COMPETES_WITH"
	RelationshipTypeInfluences       RelationshipType = "INFLUENCES"
	RelationshipTypeOther            RelationshipType = "OTHER"
)

// directionalTypes is the fixed subset of relationship types where
// source and target are not interchangeable.
var directionalTypes = map[RelationshipType]bool{
	RelationshipTypeWorksFor:   true,
	RelationshipTypeCreatedBy:  true,
	RelationshipTypeUsedBy:     true,
	RelationshipTypeDependsOn:  true,
	RelationshipTypeInfluences: true,
}

// Directional reports whether the relationship type distinguishes
// source from target.
func (t RelationshipType) Directional() bool {
	return directionalTypes[t]
}

// Relationship represents an edge between two entities in the knowledge graph.
// SourceEntityID and TargetEntityID must reference existing entities and
// must differ; the consistency validator checks both.
type Relationship struct {
	ID                uuid.UUID        `json:"id"`
	SourceEntityID    uuid.UUID        `json:"source_entity_id"`
	TargetEntityID    uuid.UUID        `json:"target_entity_id"`
	Type              RelationshipType `json:"relationship_type"`
	Confidence        float64          `json:"confidence"`
	Strength          float64          `json:"strength"`
	CooccurrenceCount int              `json:"cooccurrence_count"`
	SourceChunkRIDs   []uuid.UUID      `json:"source_chunk_rids,omitempty"`
	SupportingText    []string         `json:"supporting_text,omitempty"`
	FirstSeen         time.Time        `json:"first_seen"`
	LastUpdated       time.Time        `json:"last_updated"`
	LastObserved      time.Time        `json:"last_observed"`
}

// Directional reports whether the relationship's type is directional
func (r *Relationship) Directional() bool {
	return r.Type.Directional()
}

// RelationshipCandidate is a relationship observation produced by an
// extractor or the co-occurrence inferencer, keyed by surface names
// because the entities are not resolved yet.
type RelationshipCandidate struct {
	SourceName        string           `json:"source_name"`
	TargetName        string           `json:"target_name"`
	Type              RelationshipType `json:"relationship_type"`
	Confidence        float64          `json:"confidence"`
	Context           string           `json:"context,omitempty"`
	CooccurrenceCount int              `json:"cooccurrence_count,omitempty"`
}
