package contexts

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(t *testing.T) (*Catalog, *MemoryStore) {
	t.Helper()
	db, err := OpenCatalogDB("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewMemoryStore()
	return NewCatalog(db, NewContextService(store, nil)), store
}

func TestCatalog_SaveListDelete(t *testing.T) {
	cat, store := newTestCatalog(t)
	ctx := context.Background()

	skin, err := cat.Save(ctx, skinContext(), "")
	require.NoError(t, err)
	genes := Context{Name: "Kinases", DimensionType: "gene", Expr: In{Var: "family", Values: []any{"kinase"}}}
	_, err = cat.Save(ctx, genes, "")
	require.NoError(t, err)

	all, err := cat.List("")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Kinases", all[0].Name)
	assert.Equal(t, "Skin", all[1].Name)

	models, err := cat.List("depmap_model")
	require.NoError(t, err)
	assert.Equal(t, []CatalogEntry{{Hash: skin, Name: "Skin", DimensionType: "depmap_model"}}, models)

	require.NoError(t, cat.Delete(skin))
	_, found, err := cat.Get(skin)
	require.NoError(t, err)
	assert.False(t, found)

	// Uncataloging is cosmetic: the content is still there.
	got, err := store.FetchContext(ctx, skin)
	require.NoError(t, err)
	assert.Equal(t, "Skin", got.Name)
}

func TestCatalog_SaveReplaces(t *testing.T) {
	cat, _ := newTestCatalog(t)
	ctx := context.Background()

	old, err := cat.Save(ctx, skinContext(), "")
	require.NoError(t, err)

	edited := skinContext()
	edited.Expr = In{Var: "lineage", Values: []any{"Skin", "Lung"}}
	edited.Name = "Skin and Lung"
	updated, err := cat.Save(ctx, edited, old)
	require.NoError(t, err)
	assert.NotEqual(t, old, updated)

	entries, err := cat.List("depmap_model")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, updated, entries[0].Hash)
	assert.Equal(t, "Skin and Lung", entries[0].Name)
}

func TestCatalog_ConcurrentSavesKeepAllEntries(t *testing.T) {
	cat, _ := newTestCatalog(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := Context{
				Name:          fmt.Sprintf("ctx-%02d", i),
				DimensionType: "gene",
				Expr:          Eq("family", fmt.Sprintf("f%d", i)),
			}
			_, err := cat.Save(ctx, c, "")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	entries, err := cat.List("gene")
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestCatalog_RequiresName(t *testing.T) {
	cat, _ := newTestCatalog(t)
	c := skinContext()
	c.Name = ""
	_, err := cat.Save(context.Background(), c, "")
	var ce *common.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestSQLiteStore(t *testing.T) {
	db, err := sql.Open(testSQLiteDriver, ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	store := NewSQLiteStore(db)
	require.NoError(t, store.Init())
	ctx := context.Background()

	h1, err := store.PersistContext(ctx, skinContext())
	require.NoError(t, err)
	h2, err := store.PersistContext(ctx, skinContext())
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	got, err := store.FetchContext(ctx, h1)
	require.NoError(t, err)
	assert.True(t, Equal(skinContext(), got))

	_, err = store.FetchContext(ctx, "missing")
	var nf *common.ContextNotFoundError
	assert.ErrorAs(t, err, &nf)
}
