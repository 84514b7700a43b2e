package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DimensionTypeDefn describes one entity category, e.g. cell lines or genes.
type DimensionTypeDefn struct {
	// A name slug used in contexts and requests. Eg: depmap_model
	Name string `json:"name" yaml:"name" validate:"required"`
	// A human readable name used in axis labels. Eg: "Cell line"
	DisplayName string `json:"display_name" yaml:"display_name"`

	// File with entities encoded as JSONL, one {"id", "label", "metadata"} per line
	EntitiesFile string `json:"entities_file" yaml:"entities_file" validate:"required"`
}

type DatasetDefn struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	GivenID  string `json:"given_id" yaml:"given_id"`
	Label    string `json:"label" yaml:"label" validate:"required"`
	Units    string `json:"units" yaml:"units"`
	DataType string `json:"data_type" yaml:"data_type"`
	// Lower priorities are picked first when a default dataset is needed.
	Priority int `json:"priority" yaml:"priority"`

	IndexType string `json:"index_type" yaml:"index_type" validate:"required"`
	SliceType string `json:"slice_type" yaml:"slice_type" validate:"required"`

	// Markdown description, converted to HTML at load time.
	Description string `json:"description" yaml:"description"`

	// File with rows encoded as JSONL, one {"index", "values"} per line
	DataFile string `json:"data_file" yaml:"data_file" validate:"required"`
}

type ExplorerConfig struct {
	InstanceName   string              `json:"instance_name" yaml:"instance_name"`
	DataDir        string              `json:"-" yaml:"-"`
	DimensionTypes []DimensionTypeDefn `json:"dimension_types" yaml:"dimension_types" validate:"dive"`
	Datasets       []DatasetDefn       `json:"datasets" yaml:"datasets" validate:"dive"`

	// Contexts naming more entities than this cannot be used for a
	// correlation heatmap.
	MaxCorrelationEntities int `json:"max_correlation_entities" yaml:"max_correlation_entities" validate:"gte=0"`

	// How long memoized plots, masks and context lookups are reused.
	CacheTTLSeconds int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" validate:"gte=0"`

	Hostnames      []string `json:"hostnames" yaml:"hostnames"`
	TimeoutSeconds int      `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=0"`
	LogLatency     bool     `json:"log_latency" yaml:"log_latency"`
}

const (
	DefaultMaxCorrelationEntities = 100
	DefaultCacheTTLSeconds        = 600
)

// CacheTTL is the lifetime of memoized results, DefaultCacheTTLSeconds when
// unset.
func (c *ExplorerConfig) CacheTTL() time.Duration {
	if c == nil || c.CacheTTLSeconds == 0 {
		return DefaultCacheTTLSeconds * time.Second
	}
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func (c *ExplorerConfig) GetDimensionType(name string) *DimensionTypeDefn {
	for i := range c.DimensionTypes {
		if c.DimensionTypes[i].Name == name {
			return &c.DimensionTypes[i]
		}
	}
	return nil
}

func (c *ExplorerConfig) GetDataset(id string) *DatasetDefn {
	for i := range c.Datasets {
		if c.Datasets[i].ID == id {
			return &c.Datasets[i]
		}
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and that every dataset refers to
// declared dimension types.
func (c *ExplorerConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	seen := make(map[string]bool, len(c.Datasets))
	for _, ds := range c.Datasets {
		if seen[ds.ID] {
			return fmt.Errorf("invalid config: duplicate dataset id %q", ds.ID)
		}
		seen[ds.ID] = true
		for _, t := range []string{ds.IndexType, ds.SliceType} {
			if c.GetDimensionType(t) == nil {
				return fmt.Errorf("invalid config: dataset %q refers to unknown dimension type %q", ds.ID, t)
			}
		}
	}
	return nil
}

// Load reads config.json, or failing that config.yaml, from dataDir.
func Load(dataDir string) (*ExplorerConfig, error) {
	var conf ExplorerConfig
	var lastErr error
	for _, name := range []string{"config.json", "config.yaml", "config.yml"} {
		confPath := path.Join(dataDir, name)
		data, err := os.ReadFile(confPath)
		if errors.Is(err, os.ErrNotExist) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("error while opening %s: %w", name, err)
		}
		if strings.HasSuffix(name, ".json") {
			err = json.Unmarshal(data, &conf)
		} else {
			err = yaml.Unmarshal(data, &conf)
		}
		if err != nil {
			return nil, fmt.Errorf("error while reading %s: %w", name, err)
		}
		conf.DataDir = dataDir
		if conf.MaxCorrelationEntities == 0 {
			conf.MaxCorrelationEntities = DefaultMaxCorrelationEntities
		}
		if conf.CacheTTLSeconds == 0 {
			conf.CacheTTLSeconds = DefaultCacheTTLSeconds
		}
		if err := conf.Validate(); err != nil {
			return nil, err
		}
		return &conf, nil
	}
	return nil, fmt.Errorf("no config.json or config.yaml in %s: %w", dataDir, lastErr)
}

// ServerRuntimeConfig holds the flags of the server subcommand.
type ServerRuntimeConfig struct {
	Addr               string
	Port               int
	CertDir            string
	AcmeEnabled        bool
	RateLimit          int
	GzipLevel          int
	BehindLoadBalancer bool
	// When set, plots are resolved against a remote data service instead of
	// the local database.
	UpstreamURL string
	// Path of the badger directory for the context catalog. Empty keeps the
	// catalog in memory.
	CatalogDir string
}
