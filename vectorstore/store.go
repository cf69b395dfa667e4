// Package vectorstore persists recipe embedding vectors in NATS KV and
// answers nearest-neighbor queries by brute-force cosine scan.
//
// The corpus is small enough that a linear scan per query is fine; an
// approximate index can replace the scan behind the same interface later.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/natsclient"
	"github.com/virajxp1/forkfolio/pkg/embedding"
)

// VectorBucket stores embedding records keyed by "<embeddingType>.<recipeID>"
const VectorBucket = "forkfolio_recipe_vectors"

// Record is a stored embedding vector with its provenance.
type Record struct {
	RecipeID      string    `json:"recipe_id"`
	EmbeddingType string    `json:"embedding_type"`
	ContentHash   string    `json:"content_hash"`
	Vector        []float32 `json:"vector"`
	Model         string    `json:"model"`
	Dimensions    int       `json:"dimensions"`
	CreatedAt     time.Time `json:"created_at"`
}

// Candidate is a nearest-neighbor hit with its cosine distance in [0, 1].
type Candidate struct {
	RecipeID string
	Distance float64
}

// kvAccess is the subset of natsclient.KVStore used by the store.
type kvAccess interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store persists and queries embedding records
type Store struct {
	kv kvAccess
}

// NewStore creates a vector store, creating its KV bucket if needed
func NewStore(ctx context.Context, natsClient *natsclient.Client) (*Store, error) {
	if natsClient == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "vectorstore", "NewStore", "nats client cannot be nil")
	}

	bucket, err := natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      VectorBucket,
		Description: "Recipe embedding vectors",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "vectorstore", "NewStore", "create vector bucket")
	}

	return &Store{kv: natsClient.NewKVStore(bucket)}, nil
}

// newStoreWithKV wires the store directly to a KV accessor. Used by tests.
func newStoreWithKV(kv kvAccess) *Store {
	return &Store{kv: kv}
}

func recordKey(embeddingType, recipeID string) string {
	return embeddingType + "." + recipeID
}

// Upsert stores or replaces the vector for a recipe and embedding type.
func (s *Store) Upsert(ctx context.Context, record *Record) error {
	if record == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "vectorstore", "Upsert", "record cannot be nil")
	}
	if record.RecipeID == "" || record.EmbeddingType == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "vectorstore", "Upsert",
			"recipe ID and embedding type are required")
	}
	if len(record.Vector) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "vectorstore", "Upsert", "vector cannot be empty")
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	record.Dimensions = len(record.Vector)

	data, err := json.Marshal(record)
	if err != nil {
		return errors.WrapFatal(err, "vectorstore", "Upsert", "marshal record")
	}

	if _, err := s.kv.Put(ctx, recordKey(record.EmbeddingType, record.RecipeID), data); err != nil {
		return errors.WrapTransient(err, "vectorstore", "Upsert", "put to KV")
	}
	return nil
}

// Get retrieves the vector record for a recipe and embedding type
func (s *Store) Get(ctx context.Context, embeddingType, recipeID string) (*Record, error) {
	entry, err := s.kv.Get(ctx, recordKey(embeddingType, recipeID))
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapInvalid(errors.ErrNotFound, "vectorstore", "Get",
				fmt.Sprintf("no %s vector for recipe %s", embeddingType, recipeID))
		}
		return nil, errors.WrapTransient(err, "vectorstore", "Get", "get from KV")
	}

	var record Record
	if err := json.Unmarshal(entry.Value, &record); err != nil {
		return nil, errors.WrapFatal(err, "vectorstore", "Get", "unmarshal record")
	}
	return &record, nil
}

// Delete removes the vector for a recipe and embedding type
func (s *Store) Delete(ctx context.Context, embeddingType, recipeID string) error {
	if err := s.kv.Delete(ctx, recordKey(embeddingType, recipeID)); err != nil {
		return errors.WrapTransient(err, "vectorstore", "Delete", "delete from KV")
	}
	return nil
}

// Nearest returns the closest stored vector of the given embedding type,
// or nil when the store holds no comparable vectors.
func (s *Store) Nearest(ctx context.Context, embeddingType string, vector []float32) (*Candidate, error) {
	candidates, err := s.scan(ctx, embeddingType, vector, 1, 1.0)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

// Search returns up to k candidates of the given embedding type within
// maxDistance, ordered by ascending distance.
func (s *Store) Search(ctx context.Context, embeddingType string, vector []float32, k int, maxDistance float64) ([]Candidate, error) {
	if k <= 0 {
		return []Candidate{}, nil
	}
	return s.scan(ctx, embeddingType, vector, k, maxDistance)
}

// scan walks every record of the embedding type and keeps the k closest
// within maxDistance. Records with mismatched dimensions are skipped.
func (s *Store) scan(ctx context.Context, embeddingType string, vector []float32, k int, maxDistance float64) ([]Candidate, error) {
	if embeddingType == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "vectorstore", "scan", "embedding type is required")
	}
	if len(vector) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "vectorstore", "scan", "query vector cannot be empty")
	}

	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "vectorstore", "scan", "list KV keys")
	}

	prefix := embeddingType + "."
	var candidates []Candidate
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}

		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if natsclient.IsKVNotFoundError(err) {
				continue
			}
			return nil, errors.WrapTransient(err, "vectorstore", "scan", "get from KV")
		}

		var record Record
		if err := json.Unmarshal(entry.Value, &record); err != nil {
			continue
		}
		if len(record.Vector) != len(vector) {
			continue
		}

		distance := embedding.CosineDistance(vector, record.Vector)
		if distance > maxDistance {
			continue
		}
		candidates = append(candidates, Candidate{RecipeID: record.RecipeID, Distance: distance})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Distance < candidates[j].Distance
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}
