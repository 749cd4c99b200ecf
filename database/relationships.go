package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	loadSql "github.com/siherrmann/knograph/sql"
)

// RelationshipsDBHandlerFunctions defines the interface for Relationships database operations.
type RelationshipsDBHandlerFunctions interface {
	InsertRelationship(ctx context.Context, relationship *model.Relationship) error
	UpdateRelationshipMerge(ctx context.Context, relationship *model.Relationship) error
	DeleteRelationship(ctx context.Context, id uuid.UUID) error
	SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error)
	SelectRelationshipByKey(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID, relType model.RelationshipType) (*model.Relationship, error)
	SelectRelationshipsByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*model.Relationship, error)
}

// RelationshipsDBHandler handles relationship-related database operations
type RelationshipsDBHandler struct {
	db *helper.Database
	q  Querier
}

// NewRelationshipsDBHandler creates a new relationships database handler.
// It loads relationship-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewRelationshipsDBHandler(db *helper.Database, force bool) (*RelationshipsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	relationshipsDbHandler := &RelationshipsDBHandler{
		db: db,
		q:  db.Instance,
	}

	err := loadSql.LoadRelationshipsSql(relationshipsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load relationships sql", err)
	}

	err = relationshipsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized RelationshipsDBHandler")

	return relationshipsDbHandler, nil
}

// WithTx returns a view of the handler whose queries run inside tx
func (h *RelationshipsDBHandler) WithTx(tx *sql.Tx) *RelationshipsDBHandler {
	return &RelationshipsDBHandler{db: h.db, q: tx}
}

// CreateTable creates the 'relationships' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *RelationshipsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_relationships();`)
	if err != nil {
		log.Panicf("error initializing relationships table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table relationships")

	return nil
}

// InsertRelationship inserts a new relationship
func (h *RelationshipsDBHandler) InsertRelationship(ctx context.Context, relationship *model.Relationship) error {
	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_graph_relationship($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		relationship.SourceEntityID,
		relationship.TargetEntityID,
		relationship.Type,
		relationship.Confidence,
		relationship.Strength,
		relationship.CooccurrenceCount,
		pq.Array(uuidStrings(relationship.SourceChunkRIDs)),
		pq.Array(relationship.SupportingText),
		nullableTime(relationship.LastObserved),
	)

	err := scanRelationship(row, relationship)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateRelationshipMerge persists a merge decision computed by the resolver
func (h *RelationshipsDBHandler) UpdateRelationshipMerge(ctx context.Context, relationship *model.Relationship) error {
	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM update_relationship_merge($1, $2, $3, $4, $5, $6, $7)`,
		relationship.ID,
		relationship.Confidence,
		relationship.Strength,
		relationship.CooccurrenceCount,
		pq.Array(uuidStrings(relationship.SourceChunkRIDs)),
		pq.Array(relationship.SupportingText),
		nullableTime(relationship.LastObserved),
	)

	err := scanRelationship(row, relationship)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// DeleteRelationship deletes a relationship by ID
func (h *RelationshipsDBHandler) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	_, err := h.q.ExecContext(
		ctx,
		`SELECT delete_graph_relationship($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectRelationship retrieves a relationship by ID. Returns nil without
// error when the relationship does not exist.
func (h *RelationshipsDBHandler) SelectRelationship(ctx context.Context, id uuid.UUID) (*model.Relationship, error) {
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_graph_relationship($1)`, id)
	return scanOptionalRelationship(row)
}

// SelectRelationshipByKey retrieves a relationship by its resolution key of
// source, target and type. For non-directional types source and target match
// in either order. Returns nil without error when no relationship matches.
func (h *RelationshipsDBHandler) SelectRelationshipByKey(ctx context.Context, sourceID uuid.UUID, targetID uuid.UUID, relType model.RelationshipType) (*model.Relationship, error) {
	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM select_relationship_by_key($1, $2, $3, $4)`,
		sourceID,
		targetID,
		relType,
		relType.Directional(),
	)
	return scanOptionalRelationship(row)
}

// SelectRelationshipsByEntity retrieves relationships touching the given
// entity, strongest first.
func (h *RelationshipsDBHandler) SelectRelationshipsByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*model.Relationship, error) {
	rows, err := h.q.QueryContext(
		ctx,
		`SELECT * FROM select_relationships_by_entity($1, $2)`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var relationships []*model.Relationship
	for rows.Next() {
		relationship := &model.Relationship{}
		err := scanRelationship(rows, relationship)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		relationships = append(relationships, relationship)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return relationships, nil
}

func scanRelationship(s scanner, relationship *model.Relationship) error {
	var chunkRIDs pq.StringArray
	err := s.Scan(
		&relationship.ID,
		&relationship.SourceEntityID,
		&relationship.TargetEntityID,
		&relationship.Type,
		&relationship.Confidence,
		&relationship.Strength,
		&relationship.CooccurrenceCount,
		&chunkRIDs,
		pq.Array(&relationship.SupportingText),
		&relationship.FirstSeen,
		&relationship.LastUpdated,
		&relationship.LastObserved,
	)
	if err != nil {
		return err
	}

	relationship.SourceChunkRIDs, err = parseUUIDs(chunkRIDs)
	return err
}

func scanOptionalRelationship(row *sql.Row) (*model.Relationship, error) {
	relationship := &model.Relationship{}
	err := scanRelationship(row, relationship)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	return relationship, nil
}

// uuidStrings converts uuids to their string form for uuid[] parameters
func uuidStrings(ids []uuid.UUID) []string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	return strs
}

func parseUUIDs(strs []string) ([]uuid.UUID, error) {
	if len(strs) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(strs))
	for i, s := range strs {
		id, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
