package semantic

import "github.com/puxianlab/pxlex/engine/domain"

// VectorRecord is a single point to store: a stable ID, the embedding, and
// the entry's non-vector fields as payload.
type VectorRecord struct {
	ID        string
	Embedding []float32
	Entry     domain.LexiconEntry
}

// SearchParams are the approximate-search tunables forwarded to Qdrant.
// HnswEf trades recall for latency; Exact bypasses the HNSW index entirely.
type SearchParams struct {
	HnswEf uint64
	Exact  bool
}
