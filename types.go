package openmemory

// Memory is the canonical memory record. Every operation that returns a
// memory produces this shape regardless of which backend response variant
// was received.
type Memory struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Timestamp int64             `json:"timestamp"`
	Category  string            `json:"category,omitempty"`
	Tags      []string          `json:"tags"`
	Embedding []float64         `json:"embedding,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at"`
	UserID    string            `json:"user_id"`
}

// SearchRequest parameterizes a semantic search.
type SearchRequest struct {
	Query          string  `json:"query"`
	Limit          int     `json:"limit,omitempty"`
	CategoryFilter string  `json:"category_filter,omitempty"`
	MinScore       float64 `json:"min_score,omitempty"`
}

// SearchResult is one scored hit.
type SearchResult struct {
	Memory      Memory  `json:"memory"`
	Score       float64 `json:"score"`
	Explanation string  `json:"explanation,omitempty"`
}

// SearchResponse is the canonical search outcome.
type SearchResponse struct {
	Results          []SearchResult `json:"results"`
	TotalCount       int            `json:"total_count"`
	ProcessingTimeMS int64          `json:"processing_time_ms"`
}

// MemorySuggestion is one contextual suggestion.
type MemorySuggestion struct {
	ID             string  `json:"id"`
	Content        string  `json:"content"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason,omitempty"`
}

// SuggestionResponse is the canonical suggestions outcome.
type SuggestionResponse struct {
	Suggestions []MemorySuggestion `json:"suggestions"`
	Context     string             `json:"context"`
}

// MemoryCluster groups related memories around a theme.
type MemoryCluster struct {
	ID          string   `json:"id"`
	Theme       string   `json:"theme"`
	Description string   `json:"description,omitempty"`
	MemoryIDs   []string `json:"memory_ids"`
	CreatedAt   int64    `json:"created_at"`
}

// ClusterResponse is the canonical clustering outcome.
type ClusterResponse struct {
	Clusters            []MemoryCluster `json:"clusters"`
	TotalClusters       int             `json:"total_clusters"`
	UnclusteredMemories int             `json:"unclustered_memories"`
}

// CategorySuggestion is one proposed category for a memory.
type CategorySuggestion struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

// CategoryResponse is the canonical category-suggestion outcome.
type CategoryResponse struct {
	Suggestions []CategorySuggestion `json:"suggestions"`
	MemoryID    string               `json:"memory_id,omitempty"`
}

// HealthStatus reports backend liveness and corpus counters.
type HealthStatus struct {
	Status        string   `json:"status"`
	MemoryCount   int      `json:"memory_count"`
	Categories    []string `json:"categories"`
	Clusters      int      `json:"clusters"`
	UptimeSeconds int64    `json:"uptime_seconds"`
}

// Access-token permissions.
const (
	PermissionRead  = "Read"
	PermissionWrite = "Write"
	PermissionAdmin = "Admin"
)

// TokenInfo describes one issued access token.
type TokenInfo struct {
	Description string   `json:"description,omitempty"`
	Permissions []string `json:"permissions"`
	ExpiresAt   int64    `json:"expires_at"`
	CreatedAt   int64    `json:"created_at"`
	LastUsedAt  int64    `json:"last_used_at,omitempty"`
}

// CreateTokenResponse is returned once, at token creation; the token value
// is not retrievable afterwards.
type CreateTokenResponse struct {
	Token       string   `json:"token"`
	ExpiresAt   int64    `json:"expires_at"`
	Permissions []string `json:"permissions"`
}

// VectorStats summarizes the vector index.
type VectorStats struct {
	TotalVectors       int     `json:"total_vectors"`
	TotalUniqueVectors int     `json:"total_unique_vectors"`
	AverageVectorSize  float64 `json:"average_vector_size"`
	MemoryUsageBytes   int64   `json:"memory_usage_bytes"`
	IndexSize          int64   `json:"index_size"`
	HashCollisions     int     `json:"hash_collisions"`
	QueryPerformanceMS float64 `json:"query_performance_ms"`
}

// VectorConfig is the index configuration.
type VectorConfig struct {
	EmbeddingDimensions int    `json:"embedding_dimensions"`
	SimilarityFunction  string `json:"similarity_function"`
	IndexType           string `json:"index_type"`
	UsePreprocessing    bool   `json:"use_preprocessing"`
	MaxVectorsPerUser   int    `json:"max_vectors_per_user"`
}

// VectorMetrics carries index time series for dashboards.
type VectorMetrics struct {
	SearchLatency   []float64 `json:"search_latency"`
	IndexOperations []int64   `json:"index_operations"`
	MemoryGrowth    []int64   `json:"memory_growth"`
	Timestamps      []string  `json:"timestamps"`
}
