package infer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// minSharedSentences is the minimum number of sentences two entities must
// share before a relationship is inferred from co-occurrence alone.
const minSharedSentences = 2

// indicatorBonus is added once when any shared sentence contains a known
// relationship indicator phrase.
const indicatorBonus = 0.2

var sentenceDelimiters = regexp.MustCompile(`[.!?]+`)

// relationshipIndicators are phrases that make co-occurrence evidence more
// credible when they appear in a shared sentence.
var relationshipIndicators = []string{
	"works for",
	"works at",
	"employed by",
	"part of",
	"depends on",
	"built on",
	"created by",
	"developed by",
	"founded by",
	"based in",
	"located in",
	"uses",
	"similar to",
	"collaborates with",
	"competes with",
}

// typePairKey is an unordered entity type pair
type typePairKey struct {
	a model.EntityType
	b model.EntityType
}

func orderedTypePair(a, b model.EntityType) typePairKey {
	if string(a) > string(b) {
		a, b = b, a
	}
	return typePairKey{a: a, b: b}
}

// typeDecision names the inferred relationship type for an entity type pair
// and which entity type must stand on the source side when the relationship
// type is directional.
type typeDecision struct {
	relType    model.RelationshipType
	sourceType model.EntityType
}

// typeDecisionTable maps entity type pairs to the relationship type inferred
// for them. Pairs not listed fall back to RELATED_TO.
var typeDecisionTable = map[typePairKey]typeDecision{
	orderedTypePair(model.EntityTypePerson, model.EntityTypeOrganization):     {model.RelationshipTypeWorksFor, model.EntityTypePerson},
	orderedTypePair(model.EntityTypeTechnology, model.EntityTypeTechnology):   {model.RelationshipTypeSimilarTo, ""},
	orderedTypePair(model.EntityTypeProduct, model.EntityTypeOrganization):    {model.RelationshipTypeCreatedBy, model.EntityTypeProduct},
	orderedTypePair(model.EntityTypePerson, model.EntityTypeLocation):         {model.RelationshipTypeLocatedIn, ""},
	orderedTypePair(model.EntityTypeOrganization, model.EntityTypeLocation):   {model.RelationshipTypeLocatedIn, ""},
	orderedTypePair(model.EntityTypeTechnology, model.EntityTypeOrganization): {model.RelationshipTypeUsedBy, model.EntityTypeTechnology},
	orderedTypePair(model.EntityTypePerson, model.EntityTypePerson):           {model.RelationshipTypeCollaboratesWith, ""},
}

// CooccurrenceInferencer derives relationship candidates from entities that
// repeatedly appear in the same sentences of a chunk.
type CooccurrenceInferencer struct {
	minConfidence float64
}

func NewCooccurrenceInferencer(minRelationshipConfidence float64) (*CooccurrenceInferencer, error) {
	if minRelationshipConfidence < 0 || minRelationshipConfidence > 1 {
		return nil, helper.NewError("cooccurrence inferencer validation", fmt.Errorf("min relationship confidence must be in [0,1], got %v", minRelationshipConfidence))
	}
	return &CooccurrenceInferencer{minConfidence: minRelationshipConfidence}, nil
}

// Infer returns one candidate per entity pair sharing at least two sentences
// of the chunk text. All inferred relationships are non-directional evidence;
// directionality only comes from the decision table's fallback-free types.
func (i *CooccurrenceInferencer) Infer(entities []*model.Entity, chunkText string) []*model.RelationshipCandidate {
	sentences := SplitSentences(chunkText)
	if len(sentences) == 0 || len(entities) < 2 {
		return nil
	}

	lowered := make([]string, len(sentences))
	for index, sentence := range sentences {
		lowered[index] = strings.ToLower(sentence)
	}

	var candidates []*model.RelationshipCandidate
	for a := 0; a < len(entities); a++ {
		for b := a + 1; b < len(entities); b++ {
			source := entities[a]
			target := entities[b]
			if source.ID == target.ID {
				continue
			}

			shared := sharedSentences(lowered, strings.ToLower(source.Name), strings.ToLower(target.Name))
			if len(shared) < minSharedSentences {
				continue
			}

			confidence := float64(len(shared)) * 0.2
			if confidence > 0.9 {
				confidence = 0.9
			}
			if containsIndicator(shared) {
				confidence += indicatorBonus
			}
			if confidence > 1 {
				confidence = 1
			}
			if confidence < i.minConfidence {
				continue
			}

			relType, swap := inferType(source.Type, target.Type)
			if swap {
				source, target = target, source
			}
			candidates = append(candidates, &model.RelationshipCandidate{
				SourceName:        source.Name,
				TargetName:        target.Name,
				Type:              relType,
				Confidence:        confidence,
				Context:           sentences[firstSharedIndex(lowered, strings.ToLower(source.Name), strings.ToLower(target.Name))],
				CooccurrenceCount: len(shared),
			})
		}
	}

	return candidates
}

// SplitSentences splits chunk text on sentence delimiters and drops empty
// and whitespace-only segments.
func SplitSentences(text string) []string {
	segments := sentenceDelimiters.Split(text, -1)
	sentences := make([]string, 0, len(segments))
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed != "" {
			sentences = append(sentences, trimmed)
		}
	}
	return sentences
}

func sharedSentences(loweredSentences []string, sourceName string, targetName string) []string {
	var shared []string
	for _, sentence := range loweredSentences {
		if strings.Contains(sentence, sourceName) && strings.Contains(sentence, targetName) {
			shared = append(shared, sentence)
		}
	}
	return shared
}

func firstSharedIndex(loweredSentences []string, sourceName string, targetName string) int {
	for index, sentence := range loweredSentences {
		if strings.Contains(sentence, sourceName) && strings.Contains(sentence, targetName) {
			return index
		}
	}
	return 0
}

func containsIndicator(loweredSentences []string) bool {
	for _, sentence := range loweredSentences {
		for _, indicator := range relationshipIndicators {
			if strings.Contains(sentence, indicator) {
				return true
			}
		}
	}
	return false
}

// inferType returns the relationship type for an entity type pair and
// whether source and target need to swap so a directional type points the
// right way.
func inferType(a, b model.EntityType) (model.RelationshipType, bool) {
	decision, ok := typeDecisionTable[orderedTypePair(a, b)]
	if !ok {
		return model.RelationshipTypeRelatedTo, false
	}
	if decision.sourceType != "" && a != decision.sourceType && b == decision.sourceType {
		return decision.relType, true
	}
	return decision.relType, false
}
