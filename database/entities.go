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
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	loadSql "github.com/siherrmann/knograph/sql"
)

// EntitiesDBHandlerFunctions defines the interface for Entities database operations.
type EntitiesDBHandlerFunctions interface {
	LockCanonicalName(ctx context.Context, canonicalName string) error
	InsertEntity(ctx context.Context, entity *model.Entity) error
	UpdateEntityMerge(ctx context.Context, entity *model.Entity) error
	UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error
	DeleteEntity(ctx context.Context, id uuid.UUID) error
	SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error)
	SelectEntityByExactName(ctx context.Context, name string) (*model.Entity, error)
	SelectEntityByCanonical(ctx context.Context, canonicalName string) (*model.Entity, error)
	SelectEntityByAlias(ctx context.Context, alias string) (*model.Entity, error)
	SelectEntitiesByFuzzy(ctx context.Context, name string, threshold float64, limit int) ([]*model.Entity, error)
	SelectEntitiesByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.Entity, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
	q  Querier
}

// NewEntitiesDBHandler creates a new entities database handler.
// It loads entity-related SQL functions and creates the table with the given
// embedding dimensionality. If force is true, it will reload the SQL
// functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, embeddingDim int, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", fmt.Errorf("embedding dimension must be positive"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
		q:  db.Instance,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// WithTx returns a view of the handler whose queries run inside tx
func (h *EntitiesDBHandler) WithTx(tx *sql.Tx) *EntitiesDBHandler {
	return &EntitiesDBHandler{db: h.db, q: tx}
}

// CreateTable creates the 'entities' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *EntitiesDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing entities table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entities")

	return nil
}

// LockCanonicalName takes a transaction-scoped advisory lock on the canonical
// name, serializing concurrent resolution of the same name. Outside a
// transaction the lock is released immediately, so this is only meaningful
// on a handler bound via WithTx.
func (h *EntitiesDBHandler) LockCanonicalName(ctx context.Context, canonicalName string) error {
	_, err := h.q.ExecContext(ctx, `SELECT lock_entity_canonical($1)`, canonicalName)
	if err != nil {
		return helper.NewError("lock canonical name", err)
	}
	return nil
}

// InsertEntity inserts a new entity. The canonical name is always recomputed
// from the name so the two can never diverge.
func (h *EntitiesDBHandler) InsertEntity(ctx context.Context, entity *model.Entity) error {
	entity.CanonicalName = model.CanonicalName(entity.Name)

	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_graph_entity($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		entity.Name,
		entity.CanonicalName,
		entity.Type,
		pq.Array(entity.Aliases),
		entity.Confidence,
		entity.OccurrenceCount,
		entity.DocumentFrequency,
		pq.Array(entity.SourceFiles),
		pq.Array(entity.ExtractionMethods),
		embeddingValue(entity.Embedding),
		nullableTime(entity.LastOccurrence),
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateEntityMerge persists a merge decision. The merged field values are
// computed by the resolver and written as-is.
func (h *EntitiesDBHandler) UpdateEntityMerge(ctx context.Context, entity *model.Entity) error {
	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM update_entity_merge($1, $2, $3, $4, $5, $6, $7, $8)`,
		entity.ID,
		pq.Array(entity.Aliases),
		entity.Confidence,
		entity.OccurrenceCount,
		entity.DocumentFrequency,
		pq.Array(entity.SourceFiles),
		pq.Array(entity.ExtractionMethods),
		nullableTime(entity.LastOccurrence),
	)

	err := scanEntity(row, entity)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// UpdateEntityEmbedding sets the embedding of an entity that does not
// have one yet. An already stored embedding is kept unchanged.
func (h *EntitiesDBHandler) UpdateEntityEmbedding(ctx context.Context, id uuid.UUID, embedding []float32) error {
	_, err := h.q.ExecContext(
		ctx,
		`SELECT update_entity_embedding($1, $2)`,
		id,
		pgvector.NewVector(embedding),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteEntity deletes an entity by ID
func (h *EntitiesDBHandler) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	_, err := h.q.ExecContext(
		ctx,
		`SELECT delete_graph_entity($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectEntity retrieves an entity by ID. Returns nil without error when the
// entity does not exist.
func (h *EntitiesDBHandler) SelectEntity(ctx context.Context, id uuid.UUID) (*model.Entity, error) {
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_graph_entity($1)`, id)
	return scanOptionalEntity(row)
}

// SelectEntityByExactName retrieves the entity whose name matches exactly.
// Returns nil without error when no entity matches.
func (h *EntitiesDBHandler) SelectEntityByExactName(ctx context.Context, name string) (*model.Entity, error) {
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_entity_by_exact_name($1)`, name)
	return scanOptionalEntity(row)
}

// SelectEntityByCanonical retrieves the entity with the given canonical name.
// Returns nil without error when no entity matches.
func (h *EntitiesDBHandler) SelectEntityByCanonical(ctx context.Context, canonicalName string) (*model.Entity, error) {
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_entity_by_canonical($1)`, canonicalName)
	return scanOptionalEntity(row)
}

// SelectEntityByAlias retrieves the entity carrying the given alias.
// Returns nil without error when no entity matches.
func (h *EntitiesDBHandler) SelectEntityByAlias(ctx context.Context, alias string) (*model.Entity, error) {
	row := h.q.QueryRowContext(ctx, `SELECT * FROM select_entity_by_alias($1)`, alias)
	return scanOptionalEntity(row)
}

// SelectEntitiesByFuzzy retrieves entities whose names are trigram-similar to
// the given name, with Similarity populated on each result.
func (h *EntitiesDBHandler) SelectEntitiesByFuzzy(ctx context.Context, name string, threshold float64, limit int) ([]*model.Entity, error) {
	rows, err := h.q.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_fuzzy($1, $2, $3)`,
		name,
		threshold,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanEntitiesWithSimilarity(rows)
}

// SelectEntitiesByEmbedding retrieves entities by cosine similarity of their
// embeddings, with Similarity populated on each result.
func (h *EntitiesDBHandler) SelectEntitiesByEmbedding(ctx context.Context, embedding []float32, threshold float64, limit int) ([]*model.Entity, error) {
	rows, err := h.q.QueryContext(
		ctx,
		`SELECT * FROM select_entities_by_embedding($1, $2, $3)`,
		pgvector.NewVector(embedding),
		threshold,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanEntitiesWithSimilarity(rows)
}

// scanner matches both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(s scanner, entity *model.Entity) error {
	return s.Scan(
		&entity.ID,
		&entity.Name,
		&entity.CanonicalName,
		&entity.Type,
		pq.Array(&entity.Aliases),
		&entity.Confidence,
		&entity.OccurrenceCount,
		&entity.DocumentFrequency,
		pq.Array(&entity.SourceFiles),
		pq.Array(&entity.ExtractionMethods),
		&entity.FirstSeen,
		&entity.LastUpdated,
		&entity.LastOccurrence,
	)
}

func scanOptionalEntity(row *sql.Row) (*model.Entity, error) {
	entity := &model.Entity{}
	err := scanEntity(row, entity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, helper.NewError("scan", err)
	}
	return entity, nil
}

func scanEntitiesWithSimilarity(rows *sql.Rows) ([]*model.Entity, error) {
	var entities []*model.Entity
	for rows.Next() {
		entity := &model.Entity{}
		err := rows.Scan(
			&entity.ID,
			&entity.Name,
			&entity.CanonicalName,
			&entity.Type,
			pq.Array(&entity.Aliases),
			&entity.Confidence,
			&entity.OccurrenceCount,
			&entity.DocumentFrequency,
			pq.Array(&entity.SourceFiles),
			pq.Array(&entity.ExtractionMethods),
			&entity.FirstSeen,
			&entity.LastUpdated,
			&entity.LastOccurrence,
			&entity.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return entities, nil
}

// embeddingValue converts an embedding to its database value, NULL when empty
func embeddingValue(embedding []float32) any {
	if len(embedding) == 0 {
		return nil
	}
	return pgvector.NewVector(embedding)
}

// nullableTime converts a timestamp to its database value, NULL when zero
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
