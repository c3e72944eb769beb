package dense

import "context"

// Point is one document written to the vector store. Vectors holds one
// embedding per named vector field.
type Point struct {
	ID      string
	Vectors map[string][]float32
	Payload map[string]any
}

// Match is one raw similarity hit from the store.
type Match struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Store is the multi-vector similarity index contract. Search compares the
// query vector against the named vector field and applies the filter inside
// the store, so documents outside the filter are never materialized.
type Store interface {
	EnsureCollection(ctx context.Context, collection string, fields []string, dimension int) error
	Upsert(ctx context.Context, collection string, points []Point) error
	Search(
		ctx context.Context,
		collection string,
		field string,
		vector []float32,
		filter map[string]string,
		topN int,
	) ([]Match, error)
	Close(ctx context.Context) error
}
