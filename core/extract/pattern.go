package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/siherrmann/knograph/model"
)

// patternConfidence is the confidence assigned to regex-derived candidates.
// Lower than model-based extraction, the same way pattern-detected citations
// rank below model hits.
const patternConfidence = 0.7

// indicatorPattern maps an indicator phrase between two entity mentions to a
// relationship type.
type indicatorPattern struct {
	phrase  string
	relType model.RelationshipType
}

var indicatorPatterns = []indicatorPattern{
	{"works for", model.RelationshipTypeWorksFor},
	{"works at", model.RelationshipTypeWorksFor},
	{"employed by", model.RelationshipTypeWorksFor},
	{"is part of", model.RelationshipTypePartOf},
	{"part of", model.RelationshipTypePartOf},
	{"depends on", model.RelationshipTypeDependsOn},
	{"built on", model.RelationshipTypeDependsOn},
	{"created by", model.RelationshipTypeCreatedBy},
	{"developed by", model.RelationshipTypeCreatedBy},
	{"founded by", model.RelationshipTypeCreatedBy},
	{"used by", model.RelationshipTypeUsedBy},
	{"located in", model.RelationshipTypeLocatedIn},
	{"based in", model.RelationshipTypeLocatedIn},
	{"similar to", model.RelationshipTypeSimilarTo},
	{"collaborates with", model.RelationshipTypeCollaboratesWith},
	{"competes with", model.RelationshipTypeCompetesWith},
	{"influences", model.RelationshipTypeInfluences},
}

var (
	// Capitalized word sequences like "Ada Lovelace" or "Analytical Engine".
	properNamePattern = regexp.MustCompile(`\b[A-Z][a-zA-Z0-9]*(?:\s+[A-Z][a-zA-Z0-9]*)*\b`)
	datePattern       = regexp.MustCompile(`\b(?:\d{4}|\d{1,2}/\d{1,2}/\d{2,4})\b`)
	// The amount must end on a digit so trailing sentence punctuation is
	// not swallowed.
	moneyPattern = regexp.MustCompile(`[$€£]\s?\d(?:[\d,.]*\d)?(?:\s?(?:million|billion|thousand))?`)
	sentencePattern   = regexp.MustCompile(`[.!?]+`)
)

// organizationSuffixes mark a proper name as an organization
var organizationSuffixes = []string{"Inc", "Corp", "Corporation", "Ltd", "GmbH", "LLC", "Company", "University", "Institute"}

// PatternExtractor is a model-free extractor built on regular expressions
// and indicator phrases. Useful as a fallback when no ONNX models are
// available and as the relationship detector behind the NER extractor.
type PatternExtractor struct{}

func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract finds proper-name, date and money candidates in the chunk text
// and relationship candidates from indicator phrases.
func (e *PatternExtractor) Extract(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
	var entities []*model.EntityCandidate
	seen := map[string]bool{}

	for _, location := range properNamePattern.FindAllStringIndex(chunk.Text, -1) {
		name := strings.TrimSpace(chunk.Text[location[0]:location[1]])
		if len(name) < 2 || seen[name] {
			continue
		}
		seen[name] = true
		entities = append(entities, &model.EntityCandidate{
			Name:       name,
			Type:       classifyProperName(name),
			Confidence: patternConfidence,
			StartPos:   location[0],
			EndPos:     location[1],
			Method:     "pattern",
		})
	}

	for _, location := range datePattern.FindAllStringIndex(chunk.Text, -1) {
		name := chunk.Text[location[0]:location[1]]
		if seen[name] {
			continue
		}
		seen[name] = true
		entities = append(entities, &model.EntityCandidate{
			Name:       name,
			Type:       model.EntityTypeDate,
			Confidence: patternConfidence,
			StartPos:   location[0],
			EndPos:     location[1],
			Method:     "pattern",
		})
	}

	for _, location := range moneyPattern.FindAllStringIndex(chunk.Text, -1) {
		name := chunk.Text[location[0]:location[1]]
		if seen[name] {
			continue
		}
		seen[name] = true
		entities = append(entities, &model.EntityCandidate{
			Name:       name,
			Type:       model.EntityTypeMoney,
			Confidence: patternConfidence,
			StartPos:   location[0],
			EndPos:     location[1],
			Method:     "pattern",
		})
	}

	return &model.ExtractionResult{
		Entities:      entities,
		Relationships: e.ExtractRelationships(chunk.Text, entities),
	}, nil
}

// ExtractRelationships scans each sentence for two entity mentions joined by
// an indicator phrase and emits one typed candidate per pair and phrase.
func (e *PatternExtractor) ExtractRelationships(text string, entities []*model.EntityCandidate) []*model.RelationshipCandidate {
	if len(entities) < 2 {
		return nil
	}

	var candidates []*model.RelationshipCandidate
	emitted := map[string]bool{}

	for _, sentence := range sentencePattern.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		lowered := strings.ToLower(sentence)

		for a := 0; a < len(entities); a++ {
			for b := 0; b < len(entities); b++ {
				if a == b {
					continue
				}
				source := entities[a]
				target := entities[b]
				sourceIndex := strings.Index(lowered, strings.ToLower(source.Name))
				if sourceIndex < 0 {
					continue
				}
				// The target mention must start after the source mention
				// ends. Searching from there also skips target names that
				// overlap the source span, like "York" inside
				// "New York City".
				sourceEnd := sourceIndex + len(source.Name)
				targetOffset := strings.Index(lowered[sourceEnd:], strings.ToLower(target.Name))
				if targetOffset < 0 {
					continue
				}

				between := lowered[sourceEnd : sourceEnd+targetOffset]
				for _, indicator := range indicatorPatterns {
					if !strings.Contains(between, indicator.phrase) {
						continue
					}
					key := source.Name + "|" + target.Name + "|" + string(indicator.relType)
					if emitted[key] {
						continue
					}
					emitted[key] = true
					candidates = append(candidates, &model.RelationshipCandidate{
						SourceName: source.Name,
						TargetName: target.Name,
						Type:       indicator.relType,
						Confidence: patternConfidence,
						Context:    sentence,
					})
				}
			}
		}
	}

	return candidates
}

// classifyProperName applies suffix heuristics to a capitalized phrase
func classifyProperName(name string) model.EntityType {
	for _, suffix := range organizationSuffixes {
		if strings.HasSuffix(name, suffix) || strings.Contains(name, " "+suffix+" ") {
			return model.EntityTypeOrganization
		}
	}
	return model.EntityTypeOther
}
