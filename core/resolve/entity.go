package resolve

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// EntityStore is the lookup surface the entity resolver needs. It is
// implemented by database.EntitiesDBHandler; resolution always queries live
// store state instead of trusting an in-process cache.
type EntityStore interface {
	SelectEntityByExactName(ctx context.Context, name string) (*model.Entity, error)
	SelectEntityByCanonical(ctx context.Context, canonicalName string) (*model.Entity, error)
	SelectEntityByAlias(ctx context.Context, alias string) (*model.Entity, error)
	SelectEntitiesByFuzzy(ctx context.Context, name string, threshold float64, limit int) ([]*model.Entity, error)
	SelectEntitiesByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.Entity, error)
}

// Embedder generates a fixed-dimensionality embedding for a text
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// candidateLimit caps how many rows each similarity strategy pulls back
const candidateLimit = 5

// confidenceBoost is added to the confidence of an entity confirmed by a
// second independent observation, capped at 1.
const confidenceBoost = 0.05

// EntityResolver decides, for one extracted entity candidate, whether it
// duplicates an entity already in the graph and how to merge it if so.
type EntityResolver struct {
	store     EntityStore
	embedder  Embedder
	threshold float64
}

// NewEntityResolver creates an entity resolver. The embedder may be nil, in
// which case the vector strategy is skipped for candidates without a
// precomputed embedding.
func NewEntityResolver(store EntityStore, embedder Embedder, similarityThreshold float64) (*EntityResolver, error) {
	if store == nil {
		return nil, helper.NewError("entity resolver validation", fmt.Errorf("entity store is nil"))
	}
	if similarityThreshold < 0 || similarityThreshold > 1 {
		return nil, helper.NewError("entity resolver validation", fmt.Errorf("similarity threshold must be in [0,1], got %v", similarityThreshold))
	}

	return &EntityResolver{
		store:     store,
		embedder:  embedder,
		threshold: similarityThreshold,
	}, nil
}

// Resolve runs the full matching cascade for one candidate and returns the
// create-or-merge decision. All strategies execute even after an early hit,
// because a later strategy may surface a higher-similarity match; the best
// scoring match across all of them wins.
func (r *EntityResolver) Resolve(ctx context.Context, candidate *model.EntityCandidate) (*model.EntityResolution, error) {
	matches, err := r.findMatches(ctx, candidate)
	if err != nil {
		return nil, err
	}

	best := BestMatch(matches, r.threshold)
	if best == nil {
		return &model.EntityResolution{
			Action: model.ResolutionActionCreate,
			Entity: NewEntityFromCandidate(candidate),
		}, nil
	}

	existing, err := r.store.SelectEntityByExactName(ctx, candidate.Name)
	if err != nil {
		return nil, err
	}
	if existing == nil || existing.ID != best.EntityID {
		// The best match came from a non-exact strategy, load it by id
		// through the canonical lookup chain.
		existing, err = r.loadMatchedEntity(ctx, best, candidate)
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		// Matched row disappeared between cascade and load; treat as new.
		return &model.EntityResolution{
			Action: model.ResolutionActionCreate,
			Entity: NewEntityFromCandidate(candidate),
		}, nil
	}

	merged := MergeEntity(existing, candidate)

	return &model.EntityResolution{
		Action: model.ResolutionActionMerge,
		Entity: merged,
		Match:  best,
	}, nil
}

// findMatches runs the five matching strategies in increasing cost order and
// pools every hit into one typed result list.
func (r *EntityResolver) findMatches(ctx context.Context, candidate *model.EntityCandidate) ([]model.MatchResult, error) {
	var matches []model.MatchResult

	// Strategy 1: exact name equality
	exact, err := r.store.SelectEntityByExactName(ctx, candidate.Name)
	if err != nil {
		return nil, helper.NewError("exact match", err)
	}
	if exact != nil {
		matches = append(matches, model.MatchResult{
			EntityID:   exact.ID,
			Similarity: 1.0,
			Method:     model.MatchMethodExact,
		})
	}

	// Strategy 2: canonical name equality
	canonical, err := r.store.SelectEntityByCanonical(ctx, model.CanonicalName(candidate.Name))
	if err != nil {
		return nil, helper.NewError("canonical match", err)
	}
	if canonical != nil {
		matches = append(matches, model.MatchResult{
			EntityID:   canonical.ID,
			Similarity: 1.0,
			Method:     model.MatchMethodCanonical,
		})
	}

	// Strategy 3: candidate name recorded as an alias
	alias, err := r.store.SelectEntityByAlias(ctx, candidate.Name)
	if err != nil {
		return nil, helper.NewError("alias match", err)
	}
	if alias != nil {
		matches = append(matches, model.MatchResult{
			EntityID:   alias.ID,
			Similarity: 1.0,
			Method:     model.MatchMethodAlias,
		})
	}

	// Strategy 4: trigram similarity over names
	fuzzy, err := r.store.SelectEntitiesByFuzzy(ctx, candidate.Name, r.threshold, candidateLimit)
	if err != nil {
		return nil, helper.NewError("fuzzy match", err)
	}
	for _, entity := range fuzzy {
		matches = append(matches, model.MatchResult{
			EntityID:   entity.ID,
			Similarity: entity.Similarity,
			Method:     model.MatchMethodFuzzy,
		})
	}

	// Strategy 5: cosine similarity over embeddings, generated on demand
	embedding := candidate.Embedding
	if len(embedding) == 0 && r.embedder != nil {
		entity := NewEntityFromCandidate(candidate)
		embedding, err = r.embedder.Embed(ctx, entity.EmbeddingText())
		if err != nil {
			return nil, helper.NewError("candidate embedding", err)
		}
		candidate.Embedding = embedding
	}
	if len(embedding) > 0 {
		vector, err := r.store.SelectEntitiesByEmbedding(ctx, embedding, r.threshold, candidateLimit)
		if err != nil {
			return nil, helper.NewError("vector match", err)
		}
		for _, entity := range vector {
			matches = append(matches, model.MatchResult{
				EntityID:   entity.ID,
				Similarity: entity.Similarity,
				Method:     model.MatchMethodVector,
			})
		}
	}

	return matches, nil
}

// loadMatchedEntity reloads the matched entity through the strategy that
// found it, so merge always works on its latest stored state.
func (r *EntityResolver) loadMatchedEntity(ctx context.Context, match *model.MatchResult, candidate *model.EntityCandidate) (*model.Entity, error) {
	switch match.Method {
	case model.MatchMethodExact:
		return r.store.SelectEntityByExactName(ctx, candidate.Name)
	case model.MatchMethodCanonical:
		return r.store.SelectEntityByCanonical(ctx, model.CanonicalName(candidate.Name))
	case model.MatchMethodAlias:
		return r.store.SelectEntityByAlias(ctx, candidate.Name)
	default:
		entities, err := r.store.SelectEntitiesByFuzzy(ctx, candidate.Name, 0, candidateLimit)
		if err != nil {
			return nil, err
		}
		for _, entity := range entities {
			if entity.ID == match.EntityID {
				return entity, nil
			}
		}
		if len(candidate.Embedding) > 0 {
			entities, err = r.store.SelectEntitiesByEmbedding(ctx, candidate.Embedding, 0, candidateLimit)
			if err != nil {
				return nil, err
			}
			for _, entity := range entities {
				if entity.ID == match.EntityID {
					return entity, nil
				}
			}
		}
		return nil, nil
	}
}

// BestMatch is the pure ranking function over pooled match results: highest
// similarity wins, ties go to the more precise strategy. Returns nil when no
// match clears the threshold.
func BestMatch(matches []model.MatchResult, threshold float64) *model.MatchResult {
	var accepted []model.MatchResult
	for _, match := range matches {
		if match.Similarity >= threshold {
			accepted = append(accepted, match)
		}
	}
	if len(accepted) == 0 {
		return nil
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].Similarity != accepted[j].Similarity {
			return accepted[i].Similarity > accepted[j].Similarity
		}
		return accepted[i].Method.Precedence() < accepted[j].Method.Precedence()
	})

	best := accepted[0]
	return &best
}

// NewEntityFromCandidate builds the entity a CREATE decision will persist
func NewEntityFromCandidate(candidate *model.EntityCandidate) *model.Entity {
	entity := &model.Entity{
		Name:              candidate.Name,
		CanonicalName:     model.CanonicalName(candidate.Name),
		Type:              candidate.Type,
		Confidence:        clamp01(candidate.Confidence),
		OccurrenceCount:   1,
		DocumentFrequency: 1,
		Embedding:         candidate.Embedding,
		LastOccurrence:    time.Now(),
	}
	if candidate.Method != "" {
		entity.ExtractionMethods = []string{candidate.Method}
	}
	return entity
}

// MergeEntity folds a duplicate candidate into the existing entity: aliases
// are unioned, the existing canonical name is kept, confidence takes the
// boosted maximum, occurrence evidence accumulates.
func MergeEntity(existing *model.Entity, candidate *model.EntityCandidate) *model.Entity {
	merged := *existing

	if candidate.Name != existing.Name && !existing.HasAlias(candidate.Name) {
		merged.Aliases = append(append([]string{}, existing.Aliases...), candidate.Name)
	}

	confidence := existing.Confidence
	if candidate.Confidence > confidence {
		confidence = candidate.Confidence
	}
	merged.Confidence = clamp01(confidence + confidenceBoost)

	merged.OccurrenceCount = existing.OccurrenceCount + 1
	if candidate.Method != "" && !containsString(existing.ExtractionMethods, candidate.Method) {
		merged.ExtractionMethods = append(append([]string{}, existing.ExtractionMethods...), candidate.Method)
	}
	merged.LastOccurrence = time.Now()

	return &merged
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
