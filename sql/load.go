package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed relationships.sql
var relationshipsSQL string

//go:embed mentions.sql
var mentionsSQL string

//go:embed stats.sql
var statsSQL string

// Function lists for verification
var EntitiesFunctions = []string{
	"init_entities",
	"lock_entity_canonical",
	"insert_graph_entity",
	"update_entity_merge",
	"update_entity_embedding",
	"select_graph_entity",
	"select_entity_by_exact_name",
	"select_entity_by_canonical",
	"select_entity_by_alias",
	"select_entities_by_fuzzy",
	"select_entities_by_embedding",
	"delete_graph_entity",
}

var RelationshipsFunctions = []string{
	"init_relationships",
	"insert_graph_relationship",
	"update_relationship_merge",
	"select_graph_relationship",
	"select_relationship_by_key",
	"select_relationships_by_entity",
	"delete_graph_relationship",
}

var MentionsFunctions = []string{
	"init_mentions",
	"insert_entity_mention",
	"select_mentions_by_entity",
	"select_mentions_by_chunk",
}

var StatsFunctions = []string{
	"select_graph_statistics",
	"select_entity_type_distribution",
	"select_relationship_type_distribution",
	"select_orphaned_relationships",
	"select_duplicate_canonical_entities",
	"select_low_confidence_entities",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, entitiesSQL, EntitiesFunctions, "entities", force)
}

// LoadRelationshipsSql loads relationship-related SQL functions
func LoadRelationshipsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, relationshipsSQL, RelationshipsFunctions, "relationships", force)
}

// LoadMentionsSql loads mention-related SQL functions
func LoadMentionsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, mentionsSQL, MentionsFunctions, "mentions", force)
}

// LoadStatsSql loads statistics and validation SQL functions
func LoadStatsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, statsSQL, StatsFunctions, "stats", force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadEntitiesSql(db, force); err != nil {
		return err
	}

	if err := LoadRelationshipsSql(db, force); err != nil {
		return err
	}

	if err := LoadMentionsSql(db, force); err != nil {
		return err
	}

	if err := LoadStatsSql(db, force); err != nil {
		return err
	}

	return nil
}

// loadFunctions executes the given SQL and verifies that all expected
// functions exist afterwards. If force is false and the functions already
// exist, nothing is executed.
func loadFunctions(db *sql.DB, functionsSQL string, functionNames []string, name string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functionNames)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(functionsSQL)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functionNames)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
