package openmemory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// GetHealth reports backend liveness and corpus counters. Read path, no
// authentication required.
func (c *Client) GetHealth(ctx context.Context) (*HealthStatus, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch health: %w", err)
	}
	var status HealthStatus
	if err := c.decode("GET /health", raw, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// GetMemories pages through the caller's memories. limit <= 0 leaves
// paging to the backend default; offset < 0 is rejected.
func (c *Client) GetMemories(ctx context.Context, limit, offset int) ([]Memory, error) {
	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must be >= 0", ErrInvalidInput)
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/memories"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	raw, err := c.dispatch(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch memories: %w", err)
	}

	// The backend serializes an empty corpus as {"memories": null}.
	var envelope struct {
		Memories []Memory `json:"memories"`
	}
	if err := c.decode("GET /memories", raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Memories == nil {
		return []Memory{}, nil
	}
	return envelope.Memories, nil
}

// GetMemory fetches one memory by ID.
func (c *Client) GetMemory(ctx context.Context, id string) (*Memory, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: memory id required", ErrInvalidInput)
	}

	raw, err := c.dispatch(ctx, http.MethodGet, "/memories/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch memory %s: %w", id, err)
	}
	var memory Memory
	if err := c.decode("GET /memories/{id}", raw, &memory); err != nil {
		return nil, err
	}
	return &memory, nil
}

// addMemoryRequest is the write-path payload for AddMemory.
type addMemoryRequest struct {
	Content  string   `json:"content"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags"`
}

// AddMemory stores a new memory and returns the canonical record. The
// backend answers in one of two shapes depending on its version: either
// the full record wrapped in a "memory" field, or a bare acknowledgement
// carrying only the assigned ID and creation time. Both are normalized to
// the same [Memory]; an unrecognized shape is a decode failure, never a
// silent partial record.
func (c *Client) AddMemory(ctx context.Context, content, category string, tags []string) (*Memory, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: memory content required", ErrInvalidInput)
	}
	if tags == nil {
		tags = []string{}
	}

	body, err := json.Marshal(addMemoryRequest{Content: content, Category: category, Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("encode memory: %w", err)
	}

	raw, err := c.dispatch(ctx, http.MethodPost, "/memories", body)
	if err != nil {
		return nil, fmt.Errorf("add memory: %w", err)
	}
	return c.normalizeAddMemory(raw, content, category, tags)
}

func (c *Client) normalizeAddMemory(raw json.RawMessage, content, category string, tags []string) (*Memory, error) {
	const op = "POST /memories"

	// Shape A: {"memory": {...full record...}}
	var wrapped struct {
		Memory *Memory `json:"memory"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Memory != nil && wrapped.Memory.ID != "" {
		m := *wrapped.Memory
		if m.Tags == nil {
			m.Tags = []string{}
		}
		return &m, nil
	}

	// Shape B: {"id": ..., "created_at": ...} acknowledgement. The record
	// is reconstructed from the request plus the acknowledged fields.
	var ack struct {
		ID        string `json:"id"`
		CreatedAt int64  `json:"created_at"`
	}
	if err := json.Unmarshal(raw, &ack); err == nil && ack.ID != "" {
		createdAt := ack.CreatedAt
		if createdAt == 0 {
			createdAt = time.Now().UnixMilli()
		}
		return &Memory{
			ID:        ack.ID,
			Content:   content,
			Timestamp: createdAt,
			Category:  category,
			Tags:      tags,
			CreatedAt: createdAt,
			UpdatedAt: createdAt,
			UserID:    c.Principal(),
		}, nil
	}

	c.metricInc(MetricDecodeFailure)
	return nil, &DecodeError{Op: op}
}

// UpdateMemory is not implemented by the backend. It fails loudly with
// [ErrNotSupported] rather than silently dropping the write.
func (c *Client) UpdateMemory(ctx context.Context, id, content string) error {
	return fmt.Errorf("update memory: %w", ErrNotSupported)
}

// DeleteMemory is not implemented by the backend. It fails loudly with
// [ErrNotSupported] rather than silently dropping the delete.
func (c *Client) DeleteMemory(ctx context.Context, id string) error {
	return fmt.Errorf("delete memory: %w", ErrNotSupported)
}

// SearchMemories runs a semantic search over the caller's memories.
func (c *Client) SearchMemories(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: search query required", ErrInvalidInput)
	}
	if req.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0", ErrInvalidInput)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode search request: %w", err)
	}
	raw, err := c.dispatch(ctx, http.MethodPost, "/memories/search", body)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}

	var resp SearchResponse
	if err := c.decode("POST /memories/search", raw, &resp); err != nil {
		return nil, err
	}
	if resp.Results == nil {
		resp.Results = []SearchResult{}
	}
	return &resp, nil
}

// GetSuggestions returns memories relevant to the given context string.
func (c *Client) GetSuggestions(ctx context.Context, contextText string, limit int) (*SuggestionResponse, error) {
	if strings.TrimSpace(contextText) == "" {
		return nil, fmt.Errorf("%w: suggestion context required", ErrInvalidInput)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be >= 0", ErrInvalidInput)
	}

	q := url.Values{"q": {contextText}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	raw, err := c.dispatch(ctx, http.MethodGet, "/suggestions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch suggestions: %w", err)
	}

	var resp SuggestionResponse
	if err := c.decode("GET /suggestions", raw, &resp); err != nil {
		return nil, err
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []MemorySuggestion{}
	}
	return &resp, nil
}

// GetClusters returns thematic groupings of the caller's memories.
// minClusterSize <= 0 leaves the threshold to the backend default.
func (c *Client) GetClusters(ctx context.Context, minClusterSize int) (*ClusterResponse, error) {
	path := "/clusters"
	if minClusterSize > 0 {
		path += "?min_cluster_size=" + strconv.Itoa(minClusterSize)
	}
	raw, err := c.dispatch(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch clusters: %w", err)
	}

	var resp ClusterResponse
	if err := c.decode("GET /clusters", raw, &resp); err != nil {
		return nil, err
	}
	if resp.Clusters == nil {
		resp.Clusters = []MemoryCluster{}
	}
	return &resp, nil
}

// GetCategories lists the category names present in the corpus.
func (c *Client) GetCategories(ctx context.Context) ([]string, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/categories", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch categories: %w", err)
	}

	var envelope struct {
		Categories []string `json:"categories"`
	}
	if err := c.decode("GET /categories", raw, &envelope); err != nil {
		return nil, err
	}
	if envelope.Categories == nil {
		return []string{}, nil
	}
	return envelope.Categories, nil
}

// SuggestCategories asks the backend to propose categories for content.
func (c *Client) SuggestCategories(ctx context.Context, content string) (*CategoryResponse, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: content required", ErrInvalidInput)
	}

	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return nil, fmt.Errorf("encode category request: %w", err)
	}
	raw, err := c.dispatch(ctx, http.MethodPost, "/categories/suggest", body)
	if err != nil {
		return nil, fmt.Errorf("suggest categories: %w", err)
	}

	var resp CategoryResponse
	if err := c.decode("POST /categories/suggest", raw, &resp); err != nil {
		return nil, err
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []CategorySuggestion{}
	}
	return &resp, nil
}

// decode unmarshals a dispatch result, converting failures into the
// decode failure kind so callers can distinguish them from status errors.
func (c *Client) decode(op string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		c.metricInc(MetricDecodeFailure)
		return &DecodeError{Op: op, Cause: err}
	}
	return nil
}
