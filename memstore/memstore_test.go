package memstore

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wansing/datacat/catalogtest"
	"github.com/wansing/datacat/core"
)

func newCatalog(t *testing.T) *core.CatalogDB {
	store, err := New()
	require.NoError(t, err)
	return store.Catalog()
}

func TestSchema(t *testing.T) {
	require.NoError(t, Schema().Validate())
}

func TestCatalog(t *testing.T) {
	catalogtest.Run(t, newCatalog)
}

func TestConcurrentEdits(t *testing.T) {

	var f = catalogtest.Setup(t, newCatalog(t))

	const n = 20
	var wg sync.WaitGroup
	var errs = make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.Catalog.EditGroup(f.RussianFan, "david", core.Attrs{"description": fmt.Sprintf("edit %d", i)}, nil)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	history, err := f.Catalog.History("david")
	require.NoError(t, err)
	require.Len(t, history, n+1)

	var ids = make(map[int64]bool)
	for _, rev := range history {
		assert.False(t, ids[rev.ID], "revision %d appears twice", rev.ID)
		ids[rev.ID] = true
	}

	// last commit wins
	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, history[0].ID, g.RevisionID)
}

func TestStoredObjectsAreCopies(t *testing.T) {

	var f = catalogtest.Setup(t, newCatalog(t))

	g, err := f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	g.Title = "modified"

	g, err = f.Catalog.GetGroupByRef("david")
	require.NoError(t, err)
	assert.Equal(t, "Dave's books", g.Title)
}
