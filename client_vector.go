package openmemory

import (
	"context"
	"fmt"
	"net/http"
)

// GetVectorStats summarizes the vector index backing semantic search.
func (c *Client) GetVectorStats(ctx context.Context) (*VectorStats, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/stats/vectors", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch vector stats: %w", err)
	}
	var stats VectorStats
	if err := c.decode("GET /stats/vectors", raw, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetVectorConfig returns the index configuration.
func (c *Client) GetVectorConfig(ctx context.Context) (*VectorConfig, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/vectordb/config", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch vector config: %w", err)
	}
	var cfg VectorConfig
	if err := c.decode("GET /vectordb/config", raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GetVectorMetrics returns index time series for dashboards.
func (c *Client) GetVectorMetrics(ctx context.Context) (*VectorMetrics, error) {
	raw, err := c.dispatch(ctx, http.MethodGet, "/vectordb/metrics", nil)
	if err != nil {
		return nil, fmt.Errorf("fetch vector metrics: %w", err)
	}
	var metrics VectorMetrics
	if err := c.decode("GET /vectordb/metrics", raw, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

// OptimizeVectorIndex compacts the index in place. Admin write path.
func (c *Client) OptimizeVectorIndex(ctx context.Context) (string, error) {
	return c.vectorAdmin(ctx, "/vectordb/optimize", "optimize vector index")
}

// RebuildVectorIndex rebuilds the index from stored memories. Admin write
// path; expensive on large corpora.
func (c *Client) RebuildVectorIndex(ctx context.Context) (string, error) {
	return c.vectorAdmin(ctx, "/vectordb/rebuild", "rebuild vector index")
}

func (c *Client) vectorAdmin(ctx context.Context, path, opName string) (string, error) {
	raw, err := c.dispatch(ctx, http.MethodPost, path, []byte("{}"))
	if err != nil {
		return "", fmt.Errorf("%s: %w", opName, err)
	}

	var resp struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	if err := c.decode("POST "+path, raw, &resp); err != nil {
		return "", err
	}
	if resp.Message != "" {
		return resp.Message, nil
	}
	return resp.Status, nil
}
