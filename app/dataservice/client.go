package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mahesh-hegde/explorer/app/common"
	"github.com/mahesh-hegde/explorer/app/contexts"
	"golang.org/x/time/rate"
)

// HTTPClient is the part of *http.Client the data service client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrorBody is the JSON error payload of the data API.
type ErrorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Client talks to a remote data service over plain JSON.
type Client struct {
	baseURL string
	http    HTTPClient
	limiter *rate.Limiter
}

var _ Service = &Client{}

type ClientOption func(*Client)

func WithHTTPClient(c HTTPClient) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) ClientOption {
	return func(cl *Client) {
		if perSecond > 0 {
			cl.limiter = rate.NewLimiter(rate.Limit(perSecond), max(burst, 1))
		}
	}
}

// DefaultTimeout bounds each upstream request unless WithHTTPClient
// replaces the client.
const DefaultTimeout = 30 * time.Second

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request to %s: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp, path)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response of %s: %w", path, err)
	}
	return nil
}

// decodeError turns an error response back into the error taxonomy, so that
// callers see the same errors as with a local service.
func decodeError(resp *http.Response, path string) error {
	var body ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(data))
	}

	switch resp.StatusCode {
	case http.StatusBadRequest:
		return &common.ConfigurationError{Message: body.Error}
	case http.StatusUnprocessableEntity:
		if body.Field != "" {
			return &common.ContextEvaluationError{Field: body.Field}
		}
	case http.StatusNotFound:
		if hash, ok := strings.CutPrefix(path, "/api/contexts/"); ok && hash != "" {
			return &common.ContextNotFoundError{Hash: hash}
		}
	}
	return common.NewUserVisibleError(resp.StatusCode, body.Error)
}

// Request and response bodies of the data API routes.

type IndexRequest struct {
	IndexType  string   `json:"index_type" validate:"required"`
	DatasetIDs []string `json:"dataset_ids"`
}

type DimensionRequest struct {
	IndexType string    `json:"index_type" validate:"required"`
	Dimension Dimension `json:"dimension"`
}

type FilterRequest struct {
	IndexType string           `json:"index_type" validate:"required"`
	Context   contexts.Context `json:"context"`
}

type MetadataRequest struct {
	IndexType string `json:"index_type" validate:"required"`
	SliceID   string `json:"slice_id" validate:"required"`
}

type PersistResponse struct {
	Hash string `json:"hash"`
}

func (c *Client) EvaluateContext(ctx context.Context, cx contexts.Context) (contexts.EntitySet, error) {
	var set contexts.EntitySet
	err := c.do(ctx, http.MethodPost, "/api/contexts/evaluate", cx, &set)
	return set, err
}

func (c *Client) GetSharedIndex(ctx context.Context, indexType string, datasetIDs []string) (*SharedIndex, error) {
	var idx SharedIndex
	if err := c.do(ctx, http.MethodPost, "/api/index", IndexRequest{indexType, datasetIDs}, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

func (c *Client) GetDimension(ctx context.Context, indexType string, d Dimension) (*DimensionResult, error) {
	var res DimensionResult
	if err := c.do(ctx, http.MethodPost, "/api/dimensions", DimensionRequest{indexType, d}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetFilter(ctx context.Context, indexType string, cx contexts.Context) (*FilterResult, error) {
	var res FilterResult
	if err := c.do(ctx, http.MethodPost, "/api/filters", FilterRequest{indexType, cx}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetMetadata(ctx context.Context, indexType string, sliceID string) (*MetadataResult, error) {
	var res MetadataResult
	if err := c.do(ctx, http.MethodPost, "/api/metadata", MetadataRequest{indexType, sliceID}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) GetSliceMatrix(ctx context.Context, req SliceMatrixRequest) (*SliceMatrix, error) {
	var res SliceMatrix
	if err := c.do(ctx, http.MethodPost, "/api/slice-matrix", req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) PersistContext(ctx context.Context, cx contexts.Context) (string, error) {
	var res PersistResponse
	if err := c.do(ctx, http.MethodPost, "/api/contexts", cx, &res); err != nil {
		return "", err
	}
	return res.Hash, nil
}

func (c *Client) FetchContext(ctx context.Context, hash string) (contexts.Context, error) {
	var cx contexts.Context
	err := c.do(ctx, http.MethodGet, "/api/contexts/"+url.PathEscape(hash), nil, &cx)
	return cx, err
}

func (c *Client) ListDatasets(ctx context.Context) ([]DatasetDescriptor, error) {
	var res []DatasetDescriptor
	if err := c.do(ctx, http.MethodGet, "/api/datasets", nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}

func (c *Client) SearchEntities(ctx context.Context, dimensionType string, q string, limit int) ([]SearchHit, error) {
	params := url.Values{}
	params.Set("q", q)
	if dimensionType != "" {
		params.Set("dimension_type", dimensionType)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	var res []SearchHit
	if err := c.do(ctx, http.MethodGet, "/api/search?"+params.Encode(), nil, &res); err != nil {
		return nil, err
	}
	return res, nil
}
