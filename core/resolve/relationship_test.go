package resolve

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/knograph/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRelationshipStore struct {
	relationships []*model.Relationship
}

func (f *fakeRelationshipStore) SelectRelationshipByKey(ctx context.Context, sourceEntityID uuid.UUID, targetEntityID uuid.UUID, relType model.RelationshipType) (*model.Relationship, error) {
	for _, relationship := range f.relationships {
		if relationship.Type != relType {
			continue
		}
		if relationship.SourceEntityID == sourceEntityID && relationship.TargetEntityID == targetEntityID {
			copied := *relationship
			return &copied, nil
		}
		if !relType.Directional() && relationship.SourceEntityID == targetEntityID && relationship.TargetEntityID == sourceEntityID {
			copied := *relationship
			return &copied, nil
		}
	}
	return nil, nil
}

func TestRelationshipResolverCreate(t *testing.T) {
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{})
	require.NoError(t, err)

	source := uuid.New()
	target := uuid.New()
	resolution, err := resolver.Resolve(context.Background(), &model.RelationshipCandidate{
		Type:              model.RelationshipTypeWorksFor,
		Confidence:        0.6,
		Context:           "Ada works for Analytical Engines Ltd.",
		CooccurrenceCount: 2,
	}, source, target)
	require.NoError(t, err)

	assert.Equal(t, model.ResolutionActionCreate, resolution.Action)
	assert.Equal(t, source, resolution.Relationship.SourceEntityID)
	assert.Equal(t, target, resolution.Relationship.TargetEntityID)
	assert.Equal(t, 2, resolution.Relationship.CooccurrenceCount)
	// strength = confidence + min(0.3, 2*0.1)
	assert.InDelta(t, 0.8, resolution.Relationship.Strength, 1e-9)
	assert.Equal(t, []string{"Ada works for Analytical Engines Ltd."}, resolution.Relationship.SupportingText)
}

func TestRelationshipResolverCreateClampsStrength(t *testing.T) {
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{})
	require.NoError(t, err)

	resolution, err := resolver.Resolve(context.Background(), &model.RelationshipCandidate{
		Type:              model.RelationshipTypeRelatedTo,
		Confidence:        0.9,
		CooccurrenceCount: 7,
	}, uuid.New(), uuid.New())
	require.NoError(t, err)

	// boost caps at 0.3, result caps at 1.
	assert.Equal(t, 1.0, resolution.Relationship.Strength)
	assert.Equal(t, 7, resolution.Relationship.CooccurrenceCount)
}

func TestRelationshipResolverMerge(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	existing := &model.Relationship{
		ID:                uuid.New(),
		SourceEntityID:    source,
		TargetEntityID:    target,
		Type:              model.RelationshipTypeRelatedTo,
		Confidence:        0.5,
		Strength:          0.4,
		CooccurrenceCount: 2,
		SupportingText:    []string{"first sighting"},
	}
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{relationships: []*model.Relationship{existing}})
	require.NoError(t, err)

	resolution, err := resolver.Resolve(context.Background(), &model.RelationshipCandidate{
		Type:              model.RelationshipTypeRelatedTo,
		Confidence:        0.7,
		Context:           "second sighting",
		CooccurrenceCount: 1,
	}, source, target)
	require.NoError(t, err)

	assert.Equal(t, model.ResolutionActionMerge, resolution.Action)
	assert.Equal(t, existing.ID, resolution.Relationship.ID)
	assert.Equal(t, 3, resolution.Relationship.CooccurrenceCount)
	assert.InDelta(t, 0.5, resolution.Relationship.Strength, 1e-9)
	assert.InDelta(t, 0.7, resolution.Relationship.Confidence, 1e-9)
	assert.Equal(t, []string{"first sighting", "second sighting"}, resolution.Relationship.SupportingText)
}

func TestRelationshipResolverMergeReversedNonDirectional(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	existing := &model.Relationship{
		ID:             uuid.New(),
		SourceEntityID: source,
		TargetEntityID: target,
		Type:           model.RelationshipTypeSimilarTo,
		Strength:       0.5,
	}
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{relationships: []*model.Relationship{existing}})
	require.NoError(t, err)

	// Reversed pair still resolves to the stored non-directional edge.
	resolution, err := resolver.Resolve(context.Background(), &model.RelationshipCandidate{
		Type:       model.RelationshipTypeSimilarTo,
		Confidence: 0.4,
	}, target, source)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionActionMerge, resolution.Action)
	assert.Equal(t, existing.ID, resolution.Relationship.ID)
}

func TestRelationshipResolverDirectionalReversedCreates(t *testing.T) {
	source := uuid.New()
	target := uuid.New()
	existing := &model.Relationship{
		ID:             uuid.New(),
		SourceEntityID: source,
		TargetEntityID: target,
		Type:           model.RelationshipTypeWorksFor,
	}
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{relationships: []*model.Relationship{existing}})
	require.NoError(t, err)

	// WORKS_FOR is directional, the reversed pair is a different edge.
	resolution, err := resolver.Resolve(context.Background(), &model.RelationshipCandidate{
		Type:       model.RelationshipTypeWorksFor,
		Confidence: 0.4,
	}, target, source)
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionActionCreate, resolution.Action)
}

func TestRelationshipResolverRejectsSelfReference(t *testing.T) {
	resolver, err := NewRelationshipResolver(&fakeRelationshipStore{})
	require.NoError(t, err)

	id := uuid.New()
	_, err = resolver.Resolve(context.Background(), &model.RelationshipCandidate{Type: model.RelationshipTypeRelatedTo}, id, id)
	assert.Error(t, err)
}
