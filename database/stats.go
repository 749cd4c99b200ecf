package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	loadSql "github.com/siherrmann/knograph/sql"
)

// OrphanedRelationship is a relationship referencing a missing entity
type OrphanedRelationship struct {
	ID             uuid.UUID
	SourceEntityID uuid.UUID
	TargetEntityID uuid.UUID
	Type           model.RelationshipType
}

// DuplicateCanonical groups entities sharing one canonical name
type DuplicateCanonical struct {
	CanonicalName string
	EntityIDs     []uuid.UUID
	Count         int
}

// LowConfidenceEntity is an entity below the confidence floor
type LowConfidenceEntity struct {
	ID         uuid.UUID
	Name       string
	Confidence float64
}

// StatsDBHandlerFunctions defines the interface for statistics and
// consistency database operations. All operations are read-only.
type StatsDBHandlerFunctions interface {
	SelectGraphStatistics(ctx context.Context) (*model.GraphStatistics, error)
	SelectEntityTypeDistribution(ctx context.Context) (map[model.EntityType]int, error)
	SelectRelationshipTypeDistribution(ctx context.Context) (map[model.RelationshipType]int, error)
	SelectOrphanedRelationships(ctx context.Context) ([]*OrphanedRelationship, error)
	SelectDuplicateCanonicalEntities(ctx context.Context) ([]*DuplicateCanonical, error)
	SelectLowConfidenceEntities(ctx context.Context, threshold float64) ([]*LowConfidenceEntity, error)
}

// StatsDBHandler handles statistics and consistency database operations
type StatsDBHandler struct {
	db *helper.Database
	q  Querier
}

// NewStatsDBHandler creates a new statistics database handler.
// If force is true, it will reload the SQL functions even if they already exist.
func NewStatsDBHandler(db *helper.Database, force bool) (*StatsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	statsDbHandler := &StatsDBHandler{
		db: db,
		q:  db.Instance,
	}

	err := loadSql.LoadStatsSql(statsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load stats sql", err)
	}

	db.Logger.Info("Initialized StatsDBHandler")

	return statsDbHandler, nil
}

// SelectGraphStatistics retrieves the graph-wide counts, connectivity and
// type distributions in one call.
func (h *StatsDBHandler) SelectGraphStatistics(ctx context.Context) (*model.GraphStatistics, error) {
	stats := &model.GraphStatistics{}
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_graph_statistics()`)

	err := row.Scan(
		&stats.EntityCount,
		&stats.RelationshipCount,
		&stats.AverageConnectivity,
		&stats.LastUpdated,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	stats.EntityTypeDistribution, err = h.SelectEntityTypeDistribution(ctx)
	if err != nil {
		return nil, err
	}

	stats.RelationshipTypeDistribution, err = h.SelectRelationshipTypeDistribution(ctx)
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// SelectEntityTypeDistribution retrieves entity counts per type
func (h *StatsDBHandler) SelectEntityTypeDistribution(ctx context.Context) (map[model.EntityType]int, error) {
	rows, err := h.q.QueryContext(ctx, `SELECT * FROM select_entity_type_distribution()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	distribution := make(map[model.EntityType]int)
	for rows.Next() {
		var entityType model.EntityType
		var count int
		err := rows.Scan(&entityType, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		distribution[entityType] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return distribution, nil
}

// SelectRelationshipTypeDistribution retrieves relationship counts per type
func (h *StatsDBHandler) SelectRelationshipTypeDistribution(ctx context.Context) (map[model.RelationshipType]int, error) {
	rows, err := h.q.QueryContext(ctx, `SELECT * FROM select_relationship_type_distribution()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	distribution := make(map[model.RelationshipType]int)
	for rows.Next() {
		var relType model.RelationshipType
		var count int
		err := rows.Scan(&relType, &count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		distribution[relType] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return distribution, nil
}

// SelectOrphanedRelationships retrieves relationships whose source or target
// entity does not exist.
func (h *StatsDBHandler) SelectOrphanedRelationships(ctx context.Context) ([]*OrphanedRelationship, error) {
	rows, err := h.q.QueryContext(ctx, `SELECT * FROM select_orphaned_relationships()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var orphans []*OrphanedRelationship
	for rows.Next() {
		orphan := &OrphanedRelationship{}
		err := rows.Scan(&orphan.ID, &orphan.SourceEntityID, &orphan.TargetEntityID, &orphan.Type)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		orphans = append(orphans, orphan)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return orphans, nil
}

// SelectDuplicateCanonicalEntities retrieves groups of entities sharing a
// canonical name.
func (h *StatsDBHandler) SelectDuplicateCanonicalEntities(ctx context.Context) ([]*DuplicateCanonical, error) {
	rows, err := h.q.QueryContext(ctx, `SELECT * FROM select_duplicate_canonical_entities()`)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var duplicates []*DuplicateCanonical
	for rows.Next() {
		duplicate := &DuplicateCanonical{}
		var ids []string
		err := rows.Scan(&duplicate.CanonicalName, pq.Array(&ids), &duplicate.Count)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		duplicate.EntityIDs, err = parseUUIDs(ids)
		if err != nil {
			return nil, helper.NewError("parse uuids", err)
		}

		duplicates = append(duplicates, duplicate)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return duplicates, nil
}

// SelectLowConfidenceEntities retrieves entities below the confidence threshold
func (h *StatsDBHandler) SelectLowConfidenceEntities(ctx context.Context, threshold float64) ([]*LowConfidenceEntity, error) {
	rows, err := h.q.QueryContext(ctx, `SELECT * FROM select_low_confidence_entities($1)`, threshold)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*LowConfidenceEntity
	for rows.Next() {
		entity := &LowConfidenceEntity{}
		err := rows.Scan(&entity.ID, &entity.Name, &entity.Confidence)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}
