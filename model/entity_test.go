package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalName(t *testing.T) {
	t.Run("Lowercases the name", func(t *testing.T) {
		assert.Equal(t, "microsoft corporation", CanonicalName("Microsoft Corporation"))
	})

	t.Run("Strips punctuation", func(t *testing.T) {
		assert.Equal(t, "acme inc", CanonicalName("Acme, Inc."))
		assert.Equal(t, "oreilly", CanonicalName("O'Reilly"))
	})

	t.Run("Collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "new york city", CanonicalName("  New   York\tCity "))
	})

	t.Run("Keeps unicode letters and digits", func(t *testing.T) {
		assert.Equal(t, "café 42", CanonicalName("Café #42!"))
	})

	t.Run("Is idempotent", func(t *testing.T) {
		once := CanonicalName("Dr. Jane Smith-Jones")
		assert.Equal(t, once, CanonicalName(once), "Expected canonicalization to be a fixed point")
	})

	t.Run("Empty input stays empty", func(t *testing.T) {
		assert.Equal(t, "", CanonicalName(""))
		assert.Equal(t, "", CanonicalName("  ...  "))
	})
}

func TestEntityHasAlias(t *testing.T) {
	entity := &Entity{
		Name:    "Microsoft Corporation",
		Aliases: []string{"Microsoft", "MSFT"},
	}

	assert.True(t, entity.HasAlias("MSFT"))
	assert.False(t, entity.HasAlias("msft"), "Expected alias match to be case-sensitive")
	assert.False(t, entity.HasAlias("Apple"))
}

func TestEntityEmbeddingText(t *testing.T) {
	t.Run("Combines name, aliases and type", func(t *testing.T) {
		entity := &Entity{
			Name:    "Microsoft Corporation",
			Type:    EntityTypeOrganization,
			Aliases: []string{"Microsoft", "MSFT"},
		}
		assert.Equal(t, "Microsoft Corporation Microsoft MSFT ORGANIZATION", entity.EmbeddingText())
	})

	t.Run("Works without aliases", func(t *testing.T) {
		entity := &Entity{Name: "Go", Type: EntityTypeTechnology}
		assert.Equal(t, "Go TECHNOLOGY", entity.EmbeddingText())
	})
}
