package plot

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"github.com/mahesh-hegde/explorer/app/dataservice"
	"github.com/mahesh-hegde/explorer/app/stats"
)

// maxDecodedSize bounds how much a decoded URL may inflate to.
const maxDecodedSize = 1 << 20

// DescriptorConverter turns contexts into their compact descriptors and
// back. *contexts.ContextService implements it.
type DescriptorConverter interface {
	ToDescriptor(ctx context.Context, c contexts.Context) (contexts.Descriptor, error)
	FromDescriptor(ctx context.Context, d contexts.Descriptor) (contexts.Context, error)
}

// Codec encodes plot configurations into short URL-safe strings. Non-trivial
// contexts are persisted and only their hashes travel in the URL.
type Codec struct {
	contexts DescriptorConverter
}

func NewCodec(conv DescriptorConverter) *Codec {
	return &Codec{contexts: conv}
}

type encodedDimension struct {
	AxisType    dataservice.AxisType `json:"a"`
	EntityType  string               `json:"e"`
	DatasetID   string               `json:"d"`
	Context     *contexts.Descriptor `json:"c,omitempty"`
	Aggregation stats.Aggregation    `json:"g"`
}

type encodedPlot struct {
	PlotType      PlotType                       `json:"t"`
	IndexType     string                         `json:"i"`
	Dimensions    map[string]encodedDimension    `json:"d,omitempty"`
	Filters       map[string]contexts.Descriptor `json:"f,omitempty"`
	Metadata      map[string]MetadataRef         `json:"m,omitempty"`
	ColorProperty string                         `json:"cp,omitempty"`
	UseClustering bool                           `json:"uc,omitempty"`
}

func (c *Codec) EncodePlotForURL(ctx context.Context, cfg PlotConfig) (string, error) {
	enc := encodedPlot{
		PlotType:      cfg.PlotType,
		IndexType:     cfg.IndexType,
		Metadata:      cfg.Metadata,
		ColorProperty: cfg.ColorProperty,
		UseClustering: cfg.UseClustering,
	}

	if len(cfg.Dimensions) > 0 {
		enc.Dimensions = make(map[string]encodedDimension, len(cfg.Dimensions))
	}
	for key, d := range cfg.Dimensions {
		ed := encodedDimension{
			AxisType:    d.AxisType,
			EntityType:  d.EntityType,
			DatasetID:   d.DatasetID,
			Aggregation: d.Aggregation,
		}
		if d.Context != nil {
			desc, err := c.contexts.ToDescriptor(ctx, *d.Context)
			if err != nil {
				return "", fmt.Errorf("failed to encode context of dimension %q: %w", key, err)
			}
			ed.Context = &desc
		}
		enc.Dimensions[key] = ed
	}

	if len(cfg.Filters) > 0 {
		enc.Filters = make(map[string]contexts.Descriptor, len(cfg.Filters))
	}
	for key, f := range cfg.Filters {
		desc, err := c.contexts.ToDescriptor(ctx, f)
		if err != nil {
			return "", fmt.Errorf("failed to encode filter %q: %w", key, err)
		}
		enc.Filters[key] = desc
	}

	data, err := json.Marshal(enc)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return "", err
	}
	if _, err := w.Write(data); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf.Bytes()), nil
}

var errMalformedURL = common.NewUserVisibleError(400, "malformed plot URL")

func (c *Codec) DecodePlotFromURL(ctx context.Context, s string) (PlotConfig, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return PlotConfig{}, errMalformedURL
	}

	r := flate.NewReader(bytes.NewReader(raw))
	defer r.Close()
	data, err := io.ReadAll(io.LimitReader(r, maxDecodedSize+1))
	if err != nil || len(data) > maxDecodedSize {
		return PlotConfig{}, errMalformedURL
	}

	var enc encodedPlot
	if err := json.Unmarshal(data, &enc); err != nil {
		return PlotConfig{}, errMalformedURL
	}

	cfg := PlotConfig{
		PlotType:      enc.PlotType,
		IndexType:     enc.IndexType,
		Dimensions:    make(map[string]dataservice.Dimension, len(enc.Dimensions)),
		Filters:       make(map[string]contexts.Context, len(enc.Filters)),
		Metadata:      enc.Metadata,
		ColorProperty: enc.ColorProperty,
		UseClustering: enc.UseClustering,
	}

	for key, ed := range enc.Dimensions {
		d := dataservice.Dimension{
			AxisType:    ed.AxisType,
			EntityType:  ed.EntityType,
			DatasetID:   ed.DatasetID,
			Aggregation: ed.Aggregation,
		}
		if ed.Context != nil {
			ctxt, err := c.contexts.FromDescriptor(ctx, *ed.Context)
			if err != nil {
				return PlotConfig{}, fmt.Errorf("failed to decode context of dimension %q: %w", key, err)
			}
			d.Context = &ctxt
		}
		cfg.Dimensions[key] = d
	}

	for key, desc := range enc.Filters {
		f, err := c.contexts.FromDescriptor(ctx, desc)
		if err != nil {
			return PlotConfig{}, fmt.Errorf("failed to decode filter %q: %w", key, err)
		}
		cfg.Filters[key] = f
	}

	return cfg, nil
}
