package stats

import (
	"context"
	"fmt"

	"github.com/siherrmann/knograph/database"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
)

// lowConfidenceThreshold is the confidence floor below which an entity is
// flagged by the validator.
const lowConfidenceThreshold = 0.5

// Aggregator summarizes the shape of the stored graph. Read-only.
type Aggregator struct {
	store database.StatsDBHandlerFunctions
}

func NewAggregator(store database.StatsDBHandlerFunctions) (*Aggregator, error) {
	if store == nil {
		return nil, helper.NewError("aggregator validation", fmt.Errorf("stats store is nil"))
	}
	return &Aggregator{store: store}, nil
}

// Statistics returns entity and relationship counts, the per-type
// distributions and the mean number of relationships per entity.
func (a *Aggregator) Statistics(ctx context.Context) (*model.GraphStatistics, error) {
	statistics, err := a.store.SelectGraphStatistics(ctx)
	if err != nil {
		return nil, helper.NewError("selecting graph statistics", err)
	}
	return statistics, nil
}

// Validator detects integrity problems in the stored graph. Findings are
// reported, never thrown: a broken graph is a result, not an error.
type Validator struct {
	store database.StatsDBHandlerFunctions
}

func NewValidator(store database.StatsDBHandlerFunctions) (*Validator, error) {
	if store == nil {
		return nil, helper.NewError("validator validation", fmt.Errorf("stats store is nil"))
	}
	return &Validator{store: store}, nil
}

// Validate runs all consistency checks. Orphaned relationships are errors;
// low-confidence entities and duplicate canonical names are warnings, since
// the resolver is expected, but not guaranteed, to prevent them.
func (v *Validator) Validate(ctx context.Context) (*model.ValidationReport, error) {
	report := &model.ValidationReport{IsValid: true}

	orphans, err := v.store.SelectOrphanedRelationships(ctx)
	if err != nil {
		return nil, helper.NewError("checking orphaned relationships", err)
	}
	for _, orphan := range orphans {
		id := orphan.ID
		report.Errors = append(report.Errors, model.ValidationFinding{
			Level:   model.ValidationLevelError,
			Code:    "orphaned_relationship",
			Message: fmt.Sprintf("relationship %v (%v) references a missing entity", orphan.ID, orphan.Type),
			ID:      &id,
		})
	}

	lowConfidence, err := v.store.SelectLowConfidenceEntities(ctx, lowConfidenceThreshold)
	if err != nil {
		return nil, helper.NewError("checking low confidence entities", err)
	}
	for _, entity := range lowConfidence {
		id := entity.ID
		report.Warnings = append(report.Warnings, model.ValidationFinding{
			Level:   model.ValidationLevelWarning,
			Code:    "low_confidence_entity",
			Message: fmt.Sprintf("entity %v (%v) has confidence %.2f", entity.ID, entity.Name, entity.Confidence),
			ID:      &id,
		})
	}

	duplicates, err := v.store.SelectDuplicateCanonicalEntities(ctx)
	if err != nil {
		return nil, helper.NewError("checking duplicate canonical names", err)
	}
	for _, duplicate := range duplicates {
		report.Warnings = append(report.Warnings, model.ValidationFinding{
			Level:   model.ValidationLevelWarning,
			Code:    "duplicate_canonical_name",
			Message: fmt.Sprintf("%d entities share the canonical name %q", duplicate.Count, duplicate.CanonicalName),
		})
	}

	report.IsValid = len(report.Errors) == 0

	return report, nil
}
