package model

import (
	"time"

	"github.com/google/uuid"
)

// MatchMethod names the strategy that produced a duplicate match
type MatchMethod string

const (
	MatchMethodExact     MatchMethod = "exact"
	MatchMethodCanonical MatchMethod = "canonical"
	MatchMethodAlias     MatchMethod = "alias"
	MatchMethodFuzzy     MatchMethod = "fuzzy"
	MatchMethodVector    MatchMethod = "vector"
)

// Precedence orders match methods by decreasing precision, used to break
// similarity ties between strategies.
func (m MatchMethod) Precedence() int {
	switch m {
	case MatchMethodExact:
		return 0
	case MatchMethodCanonical:
		return 1
	case MatchMethodAlias:
		return 2
	case MatchMethodFuzzy:
		return 3
	case MatchMethodVector:
		return 4
	default:
		return 5
	}
}

// MatchResult is one duplicate candidate found by a matching strategy
type MatchResult struct {
	EntityID   uuid.UUID   `json:"entity_id"`
	Similarity float64     `json:"similarity"`
	Method     MatchMethod `json:"method"`
}

// ResolutionAction is the decision a resolver takes for a candidate
type ResolutionAction string

const (
	ResolutionActionCreate ResolutionAction = "create"
	ResolutionActionMerge  ResolutionAction = "merge"
)

// EntityResolution is the outcome of resolving one entity candidate
type EntityResolution struct {
	Action ResolutionAction `json:"action"`
	Entity *Entity          `json:"entity"`
	Match  *MatchResult     `json:"match,omitempty"` // Set when Action is merge
}

// RelationshipResolution is the outcome of resolving one relationship candidate
type RelationshipResolution struct {
	Action       ResolutionAction `json:"action"`
	Relationship *Relationship    `json:"relationship"`
}

// MutationResult counts the graph writes of one chunk transaction
type MutationResult struct {
	EntitiesCreated      int `json:"entities_created"`
	EntitiesUpdated      int `json:"entities_updated"`
	RelationshipsCreated int `json:"relationships_created"`
	RelationshipsUpdated int `json:"relationships_updated"`
	DuplicatesFound      int `json:"duplicates_found"`
}

// Add accumulates another mutation result into this one
func (m *MutationResult) Add(other *MutationResult) {
	if other == nil {
		return
	}
	m.EntitiesCreated += other.EntitiesCreated
	m.EntitiesUpdated += other.EntitiesUpdated
	m.RelationshipsCreated += other.RelationshipsCreated
	m.RelationshipsUpdated += other.RelationshipsUpdated
	m.DuplicatesFound += other.DuplicatesFound
}

// ChunkStatus is the terminal state of one chunk in a batch
type ChunkStatus string

const (
	ChunkStatusProcessed ChunkStatus = "processed"
	ChunkStatusSkipped   ChunkStatus = "skipped"
	ChunkStatusFailed    ChunkStatus = "failed"
)

// ChunkResult is the per-chunk outcome inside a batch
type ChunkResult struct {
	ChunkRID uuid.UUID       `json:"chunk_rid"`
	Status   ChunkStatus     `json:"status"`
	Mutation *MutationResult `json:"mutation,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// BatchResult aggregates the chunk results of one batch
type BatchResult struct {
	BatchIndex      int            `json:"batch_index"`
	ProcessedChunks int            `json:"processed_chunks"`
	SkippedChunks   int            `json:"skipped_chunks"`
	FailedChunks    int            `json:"failed_chunks"`
	Mutation        MutationResult `json:"mutation"`
	Errors          []string       `json:"errors,omitempty"`
}

// PipelineProcessingResult aggregates all batches of one ProcessChunks call.
// It is always returned, even under partial failure.
type PipelineProcessingResult struct {
	TotalChunks          int           `json:"total_chunks"`
	ProcessedChunks      int           `json:"processed_chunks"`
	SkippedChunks        int           `json:"skipped_chunks"`
	FailedChunks         int           `json:"failed_chunks"`
	EntitiesCreated      int           `json:"entities_created"`
	EntitiesUpdated      int           `json:"entities_updated"`
	RelationshipsCreated int           `json:"relationships_created"`
	RelationshipsUpdated int           `json:"relationships_updated"`
	DuplicatesFound      int           `json:"duplicates_found"`
	ProcessingTime       time.Duration `json:"processing_time"`
	Errors               []string      `json:"errors,omitempty"`
}

// GraphStatistics summarizes the shape of the stored graph
type GraphStatistics struct {
	EntityCount                  int                      `json:"entity_count"`
	RelationshipCount            int                      `json:"relationship_count"`
	EntityTypeDistribution       map[EntityType]int       `json:"entity_type_distribution"`
	RelationshipTypeDistribution map[RelationshipType]int `json:"relationship_type_distribution"`
	AverageConnectivity          float64                  `json:"average_connectivity"`
	LastUpdated                  time.Time                `json:"last_updated"`
}

// ValidationLevel grades a consistency finding
type ValidationLevel string

const (
	ValidationLevelError   ValidationLevel = "error"
	ValidationLevelWarning ValidationLevel = "warning"
)

// ValidationFinding is one integrity problem found by the validator
type ValidationFinding struct {
	Level   ValidationLevel `json:"level"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	ID      *uuid.UUID      `json:"id,omitempty"` // Affected entity or relationship
}

// ValidationReport is the read-only result of a consistency check.
// IsValid is true when there are no error-level findings; warnings alone
// do not invalidate the graph.
type ValidationReport struct {
	IsValid  bool                `json:"is_valid"`
	Errors   []ValidationFinding `json:"errors,omitempty"`
	Warnings []ValidationFinding `json:"warnings,omitempty"`
}
