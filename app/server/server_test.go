package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mahesh-hegde/explorer/app/config"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/datastore"
	"github.com/mahesh-hegde/explorer/app/memo"
	"github.com/mahesh-hegde/explorer/app/plot"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	client *dataservice.Client
}

// newTestServer serves the datastore fixtures from a local data service
// with an in-memory catalog.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	conf, err := config.Load("../datastore/testdata")
	require.NoError(t, err)

	db, err := sql.Open(datastore.SQLiteDriverName, ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := datastore.NewSQLiteStore(db)
	require.NoError(t, datastore.LoadInitialData(ctx, store, conf))
	index, err := datastore.BuildEntityIndex(ctx, store, conf)
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	cas := contexts.NewSQLiteStore(db)
	require.NoError(t, cas.Init())
	cs := contexts.NewContextService(cas, store)

	catalogDB, err := contexts.OpenCatalogDB("")
	require.NoError(t, err)
	t.Cleanup(func() { catalogDB.Close() })

	reg := prometheus.NewRegistry()
	require.NoError(t, memo.RegisterMetrics(reg))
	require.NoError(t, plot.RegisterMetrics(reg))

	controller := NewExplorerController(dataservice.NewLocal(store, index, cs), cs, contexts.NewCatalog(catalogDB, cs), conf)
	srv := httptest.NewServer(NewEcho(controller, conf, config.ServerRuntimeConfig{}, reg))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, client: dataservice.NewClient(srv.URL)}
}

func (s *testServer) do(t *testing.T, method, path string, body, out any) int {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else if out != nil {
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	return resp.StatusCode
}

func geneContext(label string) *contexts.Context {
	c := contexts.Context{Name: label, DimensionType: "gene", Expr: contexts.Eq(contexts.FieldEntityLabel, label)}
	return &c
}

func kinases() contexts.Context {
	return contexts.Context{Name: "Kinases", DimensionType: "gene", Expr: contexts.Eq("family", "kinase")}
}
