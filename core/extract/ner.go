package extract

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// defaultNERModel is an optimized distilbert NER model detecting
// PER, ORG, LOC and MISC entities.
const defaultNERModel = "KnightsAnalytics/distilbert-NER"

// nerTypeMapping maps NER labels (after stripping BIO prefixes) to
// entity types.
var nerTypeMapping = map[string]model.EntityType{
	"PER":  model.EntityTypePerson,
	"ORG":  model.EntityTypeOrganization,
	"LOC":  model.EntityTypeLocation,
	"MISC": model.EntityTypeConcept,
}

// NERExtractor extracts entity candidates with a token classification model
// and derives relationship candidates from indicator phrases between them.
type NERExtractor struct {
	modelName string
	session   *hugot.Session
	pipeline  *pipelines.TokenClassificationPipeline
	patterns  *PatternExtractor
	initOnce  sync.Once
	initErr   error
}

// NewNERExtractor creates an extractor for the given model name; an empty
// name selects the default distilbert NER model. The model is downloaded and
// loaded on Initialize or lazily on first Extract.
func NewNERExtractor(modelName string) *NERExtractor {
	if modelName == "" {
		modelName = defaultNERModel
	}
	return &NERExtractor{
		modelName: modelName,
		patterns:  NewPatternExtractor(),
	}
}

// Initialize downloads the model if needed and builds the hugot pipeline
func (e *NERExtractor) Initialize(ctx context.Context) error {
	e.initOnce.Do(func() {
		modelPath, err := helper.PrepareModel(e.modelName, "model.onnx")
		if err != nil {
			e.initErr = err
			return
		}

		session, err := hugot.NewGoSession()
		if err != nil {
			e.initErr = helper.NewError("creating hugot session", err)
			return
		}

		config := hugot.TokenClassificationConfig{
			ModelPath: modelPath,
			Name:      "ner-pipeline",
			Options: []hugot.TokenClassificationOption{
				pipelines.WithSimpleAggregation(),
				pipelines.WithIgnoreLabels([]string{"O"}),
			},
		}
		nerPipeline, err := hugot.NewPipeline(session, config)
		if err != nil {
			if destroyErr := session.Destroy(); destroyErr != nil {
				e.initErr = helper.NewError("creating ner pipeline", fmt.Errorf("%w (cleanup error: %v)", err, destroyErr))
				return
			}
			e.initErr = helper.NewError("creating ner pipeline", err)
			return
		}

		e.session = session
		e.pipeline = nerPipeline
	})
	return e.initErr
}

// Extract runs NER over the chunk text and pairs the entity candidates with
// pattern-derived relationship candidates.
func (e *NERExtractor) Extract(ctx context.Context, chunk *model.Chunk) (*model.ExtractionResult, error) {
	if err := e.Initialize(ctx); err != nil {
		return nil, err
	}

	result, err := e.pipeline.RunPipeline([]string{chunk.Text})
	if err != nil {
		return nil, helper.NewError("running ner pipeline", err)
	}

	var entities []*model.EntityCandidate
	if len(result.Entities) > 0 {
		for _, entity := range result.Entities[0] {
			name := strings.TrimSpace(entity.Word)
			if name == "" {
				continue
			}
			entities = append(entities, &model.EntityCandidate{
				Name:       name,
				Type:       normalizeNERLabel(entity.Entity),
				Confidence: float64(entity.Score),
				StartPos:   int(entity.Start),
				EndPos:     int(entity.End),
				Method:     "ner",
			})
		}
	}

	relationships := e.patterns.ExtractRelationships(chunk.Text, entities)

	return &model.ExtractionResult{
		Entities:      entities,
		Relationships: relationships,
	}, nil
}

// Close destroys the hugot session and releases the loaded model
func (e *NERExtractor) Close() error {
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.pipeline = nil
	return err
}

// normalizeNERLabel strips BIO tagging prefixes and maps the label to an
// entity type, defaulting to OTHER for unknown labels.
func normalizeNERLabel(label string) model.EntityType {
	label = strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-")
	if entityType, ok := nerTypeMapping[label]; ok {
		return entityType
	}
	return model.EntityTypeOther
}
