package core

import (
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ijt/xylem/internal/types"
)

func TestDatabaseSetAndGet(t *testing.T) {
	db := NewDatabase()
	assert.False(t, db.IsLoaded("base"))

	db.SetViewData("base", map[string]types.RuleNode{"cmake": types.StringNode("cmake")}, []string{"core"}, "base.yaml")
	assert.True(t, db.IsLoaded("base"))

	entry, err := db.ViewData("base")
	require.NoError(t, err)
	assert.Equal(t, "base.yaml", entry.Origin)
	assert.Contains(t, entry.Rules, "cmake")

	deps, err := db.ViewDependencies("base")
	require.NoError(t, err)
	assert.Equal(t, []string{"core"}, deps)
}

func TestDatabaseMissingView(t *testing.T) {
	db := NewDatabase()
	_, err := db.ViewData("nope")
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))

	_, err = db.ViewDependencies("nope")
	require.Error(t, err)
}

func TestDatabaseMarkLoadedWithoutData(t *testing.T) {
	db := NewDatabase()
	db.MarkLoaded("broken")
	assert.True(t, db.IsLoaded("broken"))
	_, err := db.ViewData("broken")
	require.Error(t, err)
	assert.Empty(t, db.ViewNames())
}

func TestDatabaseViewNamesSorted(t *testing.T) {
	db := NewDatabase()
	db.Put(types.SourceEntry{Name: "b"})
	db.Put(types.SourceEntry{Name: "a"})
	assert.Equal(t, []string{"a", "b"}, db.ViewNames())
}
