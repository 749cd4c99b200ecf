package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/knograph/helper"
	"github.com/siherrmann/knograph/model"
	loadSql "github.com/siherrmann/knograph/sql"
)

// MentionsDBHandlerFunctions defines the interface for Mentions database operations.
type MentionsDBHandlerFunctions interface {
	InsertMention(ctx context.Context, mention *model.MentionContext) error
	SelectMentionsByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*model.MentionContext, error)
	SelectMentionsByChunk(ctx context.Context, chunkRID uuid.UUID) ([]*model.MentionContext, error)
}

// MentionsDBHandler handles entity mention database operations
type MentionsDBHandler struct {
	db *helper.Database
	q  Querier
}

// NewMentionsDBHandler creates a new mentions database handler.
// It loads mention-related SQL functions and creates the table.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMentionsDBHandler(db *helper.Database, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
		q:  db.Instance,
	}

	err := loadSql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// WithTx returns a view of the handler whose queries run inside tx
func (h *MentionsDBHandler) WithTx(tx *sql.Tx) *MentionsDBHandler {
	return &MentionsDBHandler{db: h.db, q: tx}
}

// CreateTable creates the 'entity_mentions' table in the database.
// If the table already exists, it does not create it again.
func (h *MentionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions();`)
	if err != nil {
		log.Panicf("error initializing entity_mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table entity_mentions")

	return nil
}

// InsertMention inserts a new entity mention
func (h *MentionsDBHandler) InsertMention(ctx context.Context, mention *model.MentionContext) error {
	row := h.q.QueryRowContext(
		ctx,
		`SELECT * FROM insert_entity_mention($1, $2, $3, $4, $5, $6)`,
		mention.EntityID,
		mention.ChunkRID,
		mention.Text,
		mention.StartPos,
		mention.EndPos,
		mention.Confidence,
	)

	err := scanMention(row, mention)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectMentionsByEntity retrieves mentions of an entity in recording order
func (h *MentionsDBHandler) SelectMentionsByEntity(ctx context.Context, entityID uuid.UUID, limit int) ([]*model.MentionContext, error) {
	rows, err := h.q.QueryContext(
		ctx,
		`SELECT * FROM select_mentions_by_entity($1, $2)`,
		entityID,
		limit,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanMentions(rows)
}

// SelectMentionsByChunk retrieves all mentions recorded for a chunk
func (h *MentionsDBHandler) SelectMentionsByChunk(ctx context.Context, chunkRID uuid.UUID) ([]*model.MentionContext, error) {
	rows, err := h.q.QueryContext(
		ctx,
		`SELECT * FROM select_mentions_by_chunk($1)`,
		chunkRID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanMentions(rows)
}

func scanMention(s scanner, mention *model.MentionContext) error {
	return s.Scan(
		&mention.ID,
		&mention.EntityID,
		&mention.ChunkRID,
		&mention.Text,
		&mention.StartPos,
		&mention.EndPos,
		&mention.Confidence,
		&mention.CreatedAt,
	)
}

func scanMentions(rows *sql.Rows) ([]*model.MentionContext, error) {
	var mentions []*model.MentionContext
	for rows.Next() {
		mention := &model.MentionContext{}
		err := scanMention(rows, mention)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		mentions = append(mentions, mention)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}
