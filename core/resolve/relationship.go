package resolve

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// RelationshipStore is the lookup surface the relationship resolver needs.
// Implemented by database.RelationshipsDBHandler.
type RelationshipStore interface {
	SelectRelationshipByKey(ctx context.Context, sourceEntityID uuid.UUID, targetEntityID uuid.UUID, relType model.RelationshipType) (*model.Relationship, error)
}

// cooccurrenceBoostCap limits how much co-occurrence evidence can add to a
// relationship's strength, per observation and in total on create.
const cooccurrenceBoostCap = 0.3

// RelationshipResolver decides whether a candidate relationship between two
// already-resolved entities duplicates a stored one.
type RelationshipResolver struct {
	store RelationshipStore
}

func NewRelationshipResolver(store RelationshipStore) (*RelationshipResolver, error) {
	if store == nil {
		return nil, helper.NewError("relationship resolver validation", fmt.Errorf("relationship store is nil"))
	}
	return &RelationshipResolver{store: store}, nil
}

// Resolve looks the candidate up by its (source, target, type) key. For
// non-directional types the stored pair may be in either order.
func (r *RelationshipResolver) Resolve(ctx context.Context, candidate *model.RelationshipCandidate, sourceEntityID uuid.UUID, targetEntityID uuid.UUID) (*model.RelationshipResolution, error) {
	if sourceEntityID == targetEntityID {
		return nil, helper.NewError("relationship resolution", fmt.Errorf("self referencing relationship for entity %v", sourceEntityID))
	}

	existing, err := r.store.SelectRelationshipByKey(ctx, sourceEntityID, targetEntityID, candidate.Type)
	if err != nil {
		return nil, helper.NewError("relationship lookup", err)
	}

	if existing == nil {
		return &model.RelationshipResolution{
			Action:       model.ResolutionActionCreate,
			Relationship: NewRelationshipFromCandidate(candidate, sourceEntityID, targetEntityID),
		}, nil
	}

	return &model.RelationshipResolution{
		Action:       model.ResolutionActionMerge,
		Relationship: MergeRelationship(existing, candidate),
	}, nil
}

// NewRelationshipFromCandidate seeds a new relationship. Strength starts at
// the extraction confidence plus a co-occurrence boost, clamped to [0,1].
func NewRelationshipFromCandidate(candidate *model.RelationshipCandidate, sourceEntityID uuid.UUID, targetEntityID uuid.UUID) *model.Relationship {
	cooccurrence := candidate.CooccurrenceCount
	if cooccurrence < 1 {
		cooccurrence = 1
	}

	relationship := &model.Relationship{
		SourceEntityID:    sourceEntityID,
		TargetEntityID:    targetEntityID,
		Type:              candidate.Type,
		Confidence:        clamp01(candidate.Confidence),
		Strength:          clamp01(candidate.Confidence + cooccurrenceBoost(cooccurrence)),
		CooccurrenceCount: cooccurrence,
		LastObserved:      time.Now(),
	}
	if candidate.Context != "" {
		relationship.SupportingText = []string{candidate.Context}
	}
	return relationship
}

// MergeRelationship folds fresh evidence into a stored relationship:
// co-occurrence accumulates, strength grows by a capped boost, confidence is
// a running max.
func MergeRelationship(existing *model.Relationship, candidate *model.RelationshipCandidate) *model.Relationship {
	merged := *existing

	cooccurrence := candidate.CooccurrenceCount
	if cooccurrence < 1 {
		cooccurrence = 1
	}
	merged.CooccurrenceCount = existing.CooccurrenceCount + cooccurrence

	merged.Strength = clamp01(existing.Strength + cooccurrenceBoost(cooccurrence))

	if candidate.Confidence > merged.Confidence {
		merged.Confidence = clamp01(candidate.Confidence)
	}

	if candidate.Context != "" && !containsString(existing.SupportingText, candidate.Context) {
		merged.SupportingText = append(append([]string{}, existing.SupportingText...), candidate.Context)
	}
	merged.LastObserved = time.Now()

	return &merged
}

// cooccurrenceBoost converts co-occurrence evidence into a strength boost,
// 0.1 per observed co-occurrence capped at cooccurrenceBoostCap.
func cooccurrenceBoost(cooccurrenceCount int) float64 {
	boost := float64(cooccurrenceCount) * 0.1
	if boost > cooccurrenceBoostCap {
		return cooccurrenceBoostCap
	}
	return boost
}
