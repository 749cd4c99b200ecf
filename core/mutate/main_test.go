package mutate

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/knograph/database"
	"github.com/siherrmann/knograph/helper"
	loadSql "github.com/siherrmann/knograph/sql"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

const testEmbeddingDim = 4

type testHandlers struct {
	db            *helper.Database
	entities      *database.EntitiesDBHandler
	relationships *database.RelationshipsDBHandler
	mentions      *database.MentionsDBHandler
}

func initHandlers(t *testing.T) *testHandlers {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	db := helper.NewTestDatabase(dbConfig)

	err = loadSql.Init(db.Instance)
	require.NoError(t, err, "failed to initialize database extensions")

	entities, err := database.NewEntitiesDBHandler(db, testEmbeddingDim, true)
	require.NoError(t, err)
	relationships, err := database.NewRelationshipsDBHandler(db, true)
	require.NoError(t, err)
	mentions, err := database.NewMentionsDBHandler(db, true)
	require.NoError(t, err)

	return &testHandlers{
		db:            db,
		entities:      entities,
		relationships: relationships,
		mentions:      mentions,
	}
}
