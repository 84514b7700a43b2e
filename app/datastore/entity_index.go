package datastore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

type entityDoc struct {
	DimensionType string `json:"dimension_type"`
	ID            string `json:"id"`
	Label         string `json:"label"`
	LabelKeyword  string `json:"label_k"`
}

func (entityDoc) Type() string { return "entity" }

var _ mapping.Classifier = entityDoc{}

// SearchHit is one entity matching a label search.
type SearchHit struct {
	DimensionType string  `json:"dimension_type"`
	ID            string  `json:"id"`
	Label         string  `json:"label"`
	Score         float64 `json:"score"`
}

// EntityIndex is an in-memory full text index over entity labels.
type EntityIndex struct {
	idx bleve.Index

	mu     sync.RWMutex
	labels map[string]string // doc id -> label
}

func entityIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := mapping.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer("ascii_folding", map[string]any{
		"type":         custom.Name,
		"char_filters": []string{asciifolding.Name},
		"tokenizer":    unicode.Name,
		"token_filters": []string{
			lowercase.Name,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error when defining analyzer: %w", err)
	}

	entityMapping := mapping.NewDocumentMapping()
	entityMapping.AddFieldMappingsAt("dimension_type", mapping.NewKeywordFieldMapping())
	entityMapping.AddFieldMappingsAt("id", mapping.NewKeywordFieldMapping())

	labelField := mapping.NewTextFieldMapping()
	labelField.Analyzer = "ascii_folding"
	entityMapping.AddFieldMappingsAt("label", labelField)
	// lowercased whole label, for prefix matching across tokens
	entityMapping.AddFieldMappingsAt("label_k", mapping.NewKeywordFieldMapping())

	indexMapping.AddDocumentMapping("entity", entityMapping)
	return indexMapping, nil
}

func NewEntityIndex() (*EntityIndex, error) {
	m, err := entityIndexMapping()
	if err != nil {
		return nil, err
	}
	idx, err := bleve.NewMemOnly(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create entity index: %w", err)
	}
	return &EntityIndex{idx: idx, labels: map[string]string{}}, nil
}

func docID(dimensionType, id string) string {
	return dimensionType + ":" + id
}

func (ei *EntityIndex) Add(dimensionType string, es []Entity) error {
	batch := ei.idx.NewBatch()
	ei.mu.Lock()
	defer ei.mu.Unlock()
	for _, e := range es {
		doc := entityDoc{
			DimensionType: dimensionType,
			ID:            e.ID,
			Label:         e.Label,
			LabelKeyword:  strings.ToLower(e.Label),
		}
		if err := batch.Index(docID(dimensionType, e.ID), doc); err != nil {
			return err
		}
		ei.labels[docID(dimensionType, e.ID)] = e.Label
	}
	return ei.idx.Batch(batch)
}

// Search finds entities whose label matches q. An empty dimensionType
// searches every dimension type.
func (ei *EntityIndex) Search(ctx context.Context, dimensionType, q string, limit int) ([]SearchHit, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []SearchHit{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	match := bleve.NewMatchQuery(q)
	match.SetField("label")
	prefix := bleve.NewPrefixQuery(strings.ToLower(q))
	prefix.SetField("label_k")
	prefix.SetBoost(2)
	var content query.Query = bleve.NewDisjunctionQuery(match, prefix)

	if dimensionType != "" {
		dt := bleve.NewTermQuery(dimensionType)
		dt.SetField("dimension_type")
		content = bleve.NewConjunctionQuery(dt, content)
	}

	req := bleve.NewSearchRequest(content)
	req.Size = limit
	res, err := ei.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, err
	}

	ei.mu.RLock()
	defer ei.mu.RUnlock()
	hits := make([]SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		dt, id, _ := strings.Cut(h.ID, ":")
		hits = append(hits, SearchHit{
			DimensionType: dt,
			ID:            id,
			Label:         ei.labels[h.ID],
			Score:         h.Score,
		})
	}
	return hits, nil
}

func (ei *EntityIndex) Close() error {
	return ei.idx.Close()
}
