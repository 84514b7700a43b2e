package contexts

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves a fixed table of cell lines.
type fakeSource struct {
	calls int
}

func (f *fakeSource) EntityTable(ctx context.Context, dimensionType string, fields []string) (*EntityTable, error) {
	f.calls++
	if dimensionType != "depmap_model" {
		return nil, errors.New("unknown dimension type")
	}
	all := map[string][]any{
		"lineage": {"Skin", "Lung", "Skin", nil},
		"age":     {45.0, 60.0, 30.0, 50.0},
	}
	table := &EntityTable{
		IDs:     []string{"ACH-1", "ACH-2", "ACH-3", "ACH-4"},
		Labels:  []string{"A375", "A549", "SKMEL", "HELA"},
		Columns: make(map[string][]any),
	}
	for _, f := range fields {
		if col, ok := all[f]; ok {
			table.Columns[f] = col
		}
	}
	return table, nil
}

func skinContext() Context {
	return Context{Name: "Skin", DimensionType: "depmap_model", Expr: Eq("lineage", "Skin")}
}

func TestEvaluate(t *testing.T) {
	svc := NewContextService(NewMemoryStore(), &fakeSource{})
	ctx := context.Background()

	set, err := svc.Evaluate(ctx, skinContext())
	require.NoError(t, err)
	assert.Equal(t, []string{"ACH-1", "ACH-3"}, set.IDs)
	assert.Equal(t, []string{"A375", "SKMEL"}, set.Labels)

	set, err = svc.Evaluate(ctx, Negate(skinContext()))
	require.NoError(t, err)
	assert.Equal(t, []string{"ACH-2", "ACH-4"}, set.IDs)

	set, err = svc.Evaluate(ctx, AllOf("depmap_model"))
	require.NoError(t, err)
	assert.Equal(t, 4, set.Len())

	byLabel := Context{Name: "A549", DimensionType: "depmap_model", Expr: Eq(FieldEntityLabel, "A549")}
	set, err = svc.Evaluate(ctx, byLabel)
	require.NoError(t, err)
	assert.Equal(t, []string{"ACH-2"}, set.IDs)
}

func TestEvaluate_UnknownField(t *testing.T) {
	svc := NewContextService(NewMemoryStore(), &fakeSource{})
	c := Context{Name: "bad", DimensionType: "depmap_model", Expr: Eq("tissue", "Skin")}

	_, err := svc.Evaluate(context.Background(), c)
	var cee *common.ContextEvaluationError
	require.ErrorAs(t, err, &cee)
	assert.Equal(t, "tissue", cee.Field)
}

func TestEvaluate_IsMemoized(t *testing.T) {
	src := &fakeSource{}
	svc := NewContextService(NewMemoryStore(), src)
	for i := 0; i < 3; i++ {
		_, err := svc.Evaluate(context.Background(), skinContext())
		require.NoError(t, err)
	}
	assert.Equal(t, 1, src.calls)
}

func TestPersist_Deterministic(t *testing.T) {
	var a, b Context
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Skin or Lung",
		"dimension_type": "depmap_model",
		"expr": {"in": [{"var": "lineage"}, ["Skin", "Lung"]]}
	}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{
		"expr": {"in": [{"var": "lineage"}, ["Lung", "Skin", "Lung"]]},
		"dimension_type": "depmap_model",
		"name": "Skin or Lung"
	}`), &b))

	store := NewMemoryStore()
	svc := NewContextService(store, nil)
	ctx := context.Background()

	ha, err := svc.Persist(ctx, a)
	require.NoError(t, err)
	hb, err := svc.Persist(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	hn, err := svc.Persist(ctx, Negate(a))
	require.NoError(t, err)
	assert.Equal(t, ha, hn)
	assert.Equal(t, 1, store.Len())
}

func TestPersist_NameIsNotAddressed(t *testing.T) {
	store := NewMemoryStore()
	svc := NewContextService(store, nil)
	ctx := context.Background()

	first := Context{Name: "Skin lines", DimensionType: "depmap_model", Expr: Eq("lineage", "Skin")}
	second := Context{Name: "My skin", DimensionType: "depmap_model", Expr: And{Args: []Expr{Eq("lineage", "Skin")}}}
	assert.True(t, Equal(first, second))

	h1, err := svc.Persist(ctx, first)
	require.NoError(t, err)
	h2, err := svc.Persist(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, store.Len())

	got, err := svc.FetchByHash(ctx, h2)
	require.NoError(t, err)
	assert.Equal(t, "Skin lines", got.Name)

	other := first
	other.DimensionType = "gene"
	assert.False(t, Equal(first, other))
	h3, err := svc.Persist(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)
}

func TestFetchByHash(t *testing.T) {
	svc := NewContextService(NewMemoryStore(), nil)
	ctx := context.Background()

	hash, err := svc.Persist(ctx, skinContext())
	require.NoError(t, err)

	got, err := svc.FetchByHash(ctx, hash)
	require.NoError(t, err)
	assert.True(t, Equal(skinContext(), got))

	_, err = svc.FetchByHash(ctx, "deadbeef")
	var nf *common.ContextNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "deadbeef", nf.Hash)
}

func TestDefaultTrivial(t *testing.T) {
	testCases := []struct {
		name     string
		context  Context
		expected bool
	}{
		{"all", AllOf("depmap_model"), true},
		{"single label", Context{DimensionType: "gene", Expr: Eq(FieldEntityLabel, "SOX10")}, true},
		{"single id", Context{DimensionType: "gene", Expr: Eq(FieldEntityID, "6663")}, true},
		{"metadata equality", skinContext(), false},
		{"not equal", Context{DimensionType: "gene", Expr: Compare{Op: OpNe, Var: FieldEntityLabel, Value: "SOX10"}}, false},
		{"in", Context{DimensionType: "gene", Expr: In{Var: FieldEntityLabel, Values: []any{"A", "B"}}}, false},
		{"false", Context{DimensionType: "gene", Expr: Literal{Value: false}}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, DefaultTrivial(tc.context))
		})
	}
}

func TestDescriptor_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	svc := NewContextService(store, nil)
	ctx := context.Background()

	trivial := Context{Name: "SOX10", DimensionType: "gene", Expr: Eq(FieldEntityLabel, "SOX10")}
	d, err := svc.ToDescriptor(ctx, trivial)
	require.NoError(t, err)
	require.NotNil(t, d.Context)
	assert.Empty(t, d.Hash)
	assert.Equal(t, 0, store.Len())

	notSkin := Negate(skinContext())
	d, err = svc.ToDescriptor(ctx, notSkin)
	require.NoError(t, err)
	assert.Nil(t, d.Context)
	assert.NotEmpty(t, d.Hash)
	assert.True(t, d.Negated)

	restored, err := svc.FromDescriptor(ctx, d)
	require.NoError(t, err)
	assert.True(t, Equal(notSkin, restored))
}

func TestWithTrivialPredicate(t *testing.T) {
	store := NewMemoryStore()
	svc := NewContextService(store, nil, WithTrivialPredicate(func(Context) bool { return false }))

	d, err := svc.ToDescriptor(context.Background(), AllOf("gene"))
	require.NoError(t, err)
	assert.NotEmpty(t, d.Hash)
	assert.Equal(t, 1, store.Len())
}

func TestContextJSON(t *testing.T) {
	c := Negate(skinContext())
	data, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Skin","dimension_type":"depmap_model","expr":{"==":[{"var":"lineage"},"Skin"]},"negated":true}`, string(data))

	var back Context
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, Equal(c, back))
}
