package mutate

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/siherrmann/knograph/core/infer"
	"github.com/siherrmann/knograph/core/resolve"
	"github.com/siherrmann/knograph/database"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// GraphMutator applies one chunk's extraction result to the graph inside a
// single transaction. Any failure rolls the whole chunk back, leaving no
// partial graph state.
type GraphMutator struct {
	db            *helper.Database
	entities      *database.EntitiesDBHandler
	relationships *database.RelationshipsDBHandler
	mentions      *database.MentionsDBHandler
	embedder      resolve.Embedder
	inferencer    *infer.CooccurrenceInferencer
	config        *model.PipelineConfig
}

// NewGraphMutator creates a graph mutator. The embedder may be nil, which
// disables vector matching and lazy embedding generation.
func NewGraphMutator(
	db *helper.Database,
	entities *database.EntitiesDBHandler,
	relationships *database.RelationshipsDBHandler,
	mentions *database.MentionsDBHandler,
	embedder resolve.Embedder,
	config *model.PipelineConfig,
) (*GraphMutator, error) {
	if db == nil {
		return nil, helper.NewError("graph mutator validation", fmt.Errorf("database connection is nil"))
	}
	if entities == nil || relationships == nil || mentions == nil {
		return nil, helper.NewError("graph mutator validation", fmt.Errorf("database handlers must not be nil"))
	}
	if config == nil {
		config = model.DefaultPipelineConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	inferencer, err := infer.NewCooccurrenceInferencer(config.MinRelationshipConfidence)
	if err != nil {
		return nil, err
	}

	return &GraphMutator{
		db:            db,
		entities:      entities,
		relationships: relationships,
		mentions:      mentions,
		embedder:      embedder,
		inferencer:    inferencer,
		config:        config,
	}, nil
}

// Apply resolves and persists all candidates of one chunk atomically.
// On error the transaction is rolled back and no counts are returned.
func (m *GraphMutator) Apply(ctx context.Context, chunk *model.Chunk, extraction *model.ExtractionResult) (*model.MutationResult, error) {
	if chunk == nil {
		return nil, helper.NewError("apply extraction", fmt.Errorf("chunk is nil"))
	}
	if extraction == nil {
		return &model.MutationResult{}, nil
	}

	tx, err := m.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return nil, helper.NewError("begin transaction", err)
	}

	result, err := m.applyTx(ctx, tx, chunk, extraction)
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && rollbackErr != sql.ErrTxDone {
			m.db.Logger.Error("Rollback failed", "chunk", chunk.RID, "error", rollbackErr)
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, helper.NewError("commit transaction", err)
	}

	m.db.Logger.Debug(
		"Applied chunk mutation",
		"chunk", chunk.RID,
		"entitiesCreated", result.EntitiesCreated,
		"entitiesUpdated", result.EntitiesUpdated,
		"relationshipsCreated", result.RelationshipsCreated,
		"relationshipsUpdated", result.RelationshipsUpdated,
	)

	return result, nil
}

func (m *GraphMutator) applyTx(ctx context.Context, tx *sql.Tx, chunk *model.Chunk, extraction *model.ExtractionResult) (*model.MutationResult, error) {
	txEntities := m.entities.WithTx(tx)
	txRelationships := m.relationships.WithTx(tx)
	txMentions := m.mentions.WithTx(tx)

	entityResolver, err := resolve.NewEntityResolver(txEntities, m.embedder, m.config.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	relationshipResolver, err := resolve.NewRelationshipResolver(txRelationships)
	if err != nil {
		return nil, err
	}

	result := &model.MutationResult{}

	// Resolve and persist entities. The advisory lock serializes concurrent
	// resolution of the same canonical name across chunk transactions, so
	// two chunks cannot both decide CREATE for one name.
	resolved := map[string]*model.Entity{}
	var resolvedEntities []*model.Entity
	for _, candidate := range extraction.Entities {
		canonicalName := model.CanonicalName(candidate.Name)
		if canonicalName == "" {
			continue
		}
		if entity, ok := resolved[canonicalName]; ok {
			// Repeated mention of an entity already resolved in this chunk.
			if err := m.recordMention(ctx, txMentions, entity, candidate, chunk); err != nil {
				return nil, err
			}
			continue
		}

		err := txEntities.LockCanonicalName(ctx, canonicalName)
		if err != nil {
			return nil, err
		}

		resolution, err := entityResolver.Resolve(ctx, candidate)
		if err != nil {
			return nil, err
		}

		entity := resolution.Entity
		switch resolution.Action {
		case model.ResolutionActionCreate:
			if chunk.Source != "" {
				entity.SourceFiles = []string{chunk.Source}
			}
			err = txEntities.InsertEntity(ctx, entity)
			if err != nil {
				return nil, err
			}
			result.EntitiesCreated++
		case model.ResolutionActionMerge:
			if chunk.Source != "" && !containsString(entity.SourceFiles, chunk.Source) {
				entity.SourceFiles = append(entity.SourceFiles, chunk.Source)
				entity.DocumentFrequency++
			}
			err = txEntities.UpdateEntityMerge(ctx, entity)
			if err != nil {
				return nil, err
			}
			// update_entity_embedding only fills an absent embedding,
			// so merging never replaces a stored vector.
			if len(candidate.Embedding) > 0 {
				err = txEntities.UpdateEntityEmbedding(ctx, entity.ID, candidate.Embedding)
				if err != nil {
					return nil, err
				}
			}
			result.EntitiesUpdated++
			result.DuplicatesFound++
		}

		if err := m.recordMention(ctx, txMentions, entity, candidate, chunk); err != nil {
			return nil, err
		}

		resolved[canonicalName] = entity
		resolvedEntities = append(resolvedEntities, entity)
	}

	// Explicit relationship candidates from the extractor, then inferred
	// co-occurrence candidates over the freshly resolved entities.
	candidates := make([]*model.RelationshipCandidate, 0, len(extraction.Relationships))
	for _, candidate := range extraction.Relationships {
		if candidate.Confidence < m.config.MinRelationshipConfidence {
			continue
		}
		candidates = append(candidates, candidate)
	}
	candidates = append(candidates, m.inferencer.Infer(resolvedEntities, chunk.Text)...)

	for _, candidate := range candidates {
		source, sourceOk := resolved[model.CanonicalName(candidate.SourceName)]
		target, targetOk := resolved[model.CanonicalName(candidate.TargetName)]
		if !sourceOk || !targetOk || source.ID == target.ID {
			continue
		}

		resolution, err := relationshipResolver.Resolve(ctx, candidate, source.ID, target.ID)
		if err != nil {
			return nil, err
		}

		relationship := resolution.Relationship
		if !containsUUID(relationship.SourceChunkRIDs, chunk.RID) {
			relationship.SourceChunkRIDs = append(relationship.SourceChunkRIDs, chunk.RID)
		}

		switch resolution.Action {
		case model.ResolutionActionCreate:
			err = txRelationships.InsertRelationship(ctx, relationship)
			if err != nil {
				return nil, err
			}
			result.RelationshipsCreated++
		case model.ResolutionActionMerge:
			err = txRelationships.UpdateRelationshipMerge(ctx, relationship)
			if err != nil {
				return nil, err
			}
			result.RelationshipsUpdated++
		}
	}

	return result, nil
}

// recordMention writes the chunk-to-entity mapping row for one candidate
func (m *GraphMutator) recordMention(ctx context.Context, mentions *database.MentionsDBHandler, entity *model.Entity, candidate *model.EntityCandidate, chunk *model.Chunk) error {
	return mentions.InsertMention(ctx, &model.MentionContext{
		EntityID:   entity.ID,
		ChunkRID:   chunk.RID,
		Text:       mentionText(chunk.Text, candidate.StartPos, candidate.EndPos),
		StartPos:   candidate.StartPos,
		EndPos:     candidate.EndPos,
		Confidence: candidate.Confidence,
	})
}

// mentionText cuts the mention span out of the chunk text with a guard
// against spans the extractor reported past the text bounds. Offsets
// falling inside a multi byte rune are moved to the next rune start so
// the stored text stays valid UTF-8.
func mentionText(text string, start int, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	for start < len(text) && !utf8.RuneStart(text[start]) {
		start++
	}
	for end > start && end < len(text) && !utf8.RuneStart(text[end]) {
		end--
	}
	if start >= end {
		return ""
	}
	return strings.TrimSpace(text[start:end])
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func containsUUID(list []uuid.UUID, id uuid.UUID) bool {
	for _, item := range list {
		if item == id {
			return true
		}
	}
	return false
}
