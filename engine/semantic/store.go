// Package semantic owns the lexicon's Qdrant collection: lifecycle,
// upserts, and similarity search.
package semantic

import (
	"context"
	"fmt"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/puxianlab/pxlex/engine/domain"
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
	Delete(ctx context.Context, in *pb.DeleteCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
	dim         int
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
// dim is the collection's vector size; embeddings of any other length are
// rejected before upsert.
func New(addr, collection string, dim int) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
		dim:         dim,
	}, nil
}

// NewWithClients creates a VectorStore over pre-built clients. Used in tests.
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string, dim int) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection, dim: dim}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// Dim returns the collection's declared vector size.
func (v *VectorStore) Dim() int { return v.dim }

// ResetCollection destroys the collection if it exists and recreates it
// empty with the declared size and cosine distance. It is idempotent and
// synchronous: when it returns, the collection exists and is empty. A full
// rebuild guarantees no stale entries survive a data change.
func (v *VectorStore) ResetCollection(ctx context.Context) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w: %w", domain.ErrCollectionLifecycle, err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			if _, err := v.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: v.collection}); err != nil {
				return fmt.Errorf("semantic: delete collection %s: %w: %w", v.collection, domain.ErrCollectionLifecycle, err)
			}
			break
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(v.dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w: %w", v.collection, domain.ErrCollectionLifecycle, err)
	}
	return nil
}

// Upsert stores records keyed by their IDs, waiting for durability before
// returning so that immediately-following searches see the write. A record
// whose embedding length differs from the collection size is rejected
// before anything is sent.
func (v *VectorStore) Upsert(ctx context.Context, records []VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		if len(r.Embedding) != v.dim {
			return fmt.Errorf("semantic: point %s: got %d values, collection expects %d: %w",
				r.ID, len(r.Embedding), v.dim, domain.ErrDimensionMismatch)
		}
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: r.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: entryPayload(r.Entry),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		switch status.Code(err) {
		case codes.Unavailable:
			return fmt.Errorf("semantic: upsert %d points: %w: %w", len(records), domain.ErrStoreUnavailable, err)
		case codes.NotFound:
			return fmt.Errorf("semantic: upsert into missing collection %s: %w: %w", v.collection, domain.ErrCollectionLifecycle, err)
		}
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// Search performs k-NN similarity search and returns up to limit hits in
// descending score order. A missing collection indicates a lifecycle
// ordering bug and is surfaced as fatal.
func (v *VectorStore) Search(ctx context.Context, embedding []float32, limit int, params SearchParams) ([]domain.SearchResult, error) {
	if limit <= 0 {
		return nil, nil
	}

	exact := params.Exact
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		Params:         &pb.SearchParams{Exact: &exact},
	}
	if params.HnswEf > 0 {
		ef := params.HnswEf
		req.Params.HnswEf = &ef
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound:
			return nil, fmt.Errorf("semantic: collection %s not found: %w: %w", v.collection, domain.ErrCollectionLifecycle, err)
		case codes.Unavailable:
			return nil, fmt.Errorf("semantic: search: %w: %w", domain.ErrStoreUnavailable, err)
		}
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	results := make([]domain.SearchResult, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = domain.SearchResult{
			Entry: entryFromPayload(r.GetId().GetUuid(), r.GetPayload()),
			Score: r.GetScore(),
		}
	}
	return results, nil
}

func entryPayload(e domain.LexiconEntry) map[string]*pb.Value {
	return map[string]*pb.Value{
		"word":    {Kind: &pb.Value_StringValue{StringValue: e.Word}},
		"meaning": {Kind: &pb.Value_StringValue{StringValue: e.Meaning}},
		"ipa":     {Kind: &pb.Value_StringValue{StringValue: e.IPA}},
		"px":      {Kind: &pb.Value_StringValue{StringValue: e.PX}},
	}
}

func entryFromPayload(id string, payload map[string]*pb.Value) domain.LexiconEntry {
	e := domain.LexiconEntry{ID: id}
	for k, val := range payload {
		s := val.GetStringValue()
		switch k {
		case "word":
			e.Word = s
		case "meaning":
			e.Meaning = s
		case "ipa":
			e.IPA = s
		case "px":
			e.PX = s
		}
	}
	return e
}
