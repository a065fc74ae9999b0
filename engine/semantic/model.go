package semantic

// SearchResult represents a single vector search hit.
type SearchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Content string            `json:"content"`
	URL     string            `json:"url,omitempty"`
	Domain  string            `json:"domain,omitempty"`
	Meta    map[string]string `json:"meta"`
}

// VectorRecord represents a single vector to store in Qdrant.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Payload   map[string]any // content, domain, url, chunk_index
}
