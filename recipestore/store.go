// Package recipestore persists recipe records in a NATS JetStream KV bucket.
package recipestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/virajxp1/forkfolio/errors"
	"github.com/virajxp1/forkfolio/natsclient"
	"github.com/virajxp1/forkfolio/recipe"
)

const (
	// RecipeBucket stores recipe records keyed by recipe ID
	RecipeBucket = "forkfolio_recipes"

	// FingerprintBucket stores content-fingerprint claims keyed by the
	// fingerprint, valued with the owning recipe ID. Create-only writes on
	// this bucket serialize concurrent inserts of identical content.
	FingerprintBucket = "forkfolio_recipe_fingerprints"
)

// kvAccess is the subset of natsclient.KVStore used by the store.
// Narrowed for testability.
type kvAccess interface {
	Get(ctx context.Context, key string) (*natsclient.KVEntry, error)
	Put(ctx context.Context, key string, value []byte) (uint64, error)
	Create(ctx context.Context, key string, value []byte) (uint64, error)
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// Store provides persistence for recipe records using NATS KV
type Store struct {
	recipes      kvAccess
	fingerprints kvAccess
}

// NewStore creates a new recipe store, creating its KV buckets if needed
func NewStore(ctx context.Context, natsClient *natsclient.Client) (*Store, error) {
	if natsClient == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "recipestore", "NewStore", "nats client cannot be nil")
	}

	recipeBucket, err := natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      RecipeBucket,
		Description: "Structured recipe records",
		History:     5,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "recipestore", "NewStore", "create recipe bucket")
	}

	fingerprintBucket, err := natsClient.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      FingerprintBucket,
		Description: "Content fingerprint claims for at-most-once inserts",
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "recipestore", "NewStore", "create fingerprint bucket")
	}

	return &Store{
		recipes:      natsClient.NewKVStore(recipeBucket),
		fingerprints: natsClient.NewKVStore(fingerprintBucket),
	}, nil
}

// newStoreWithKV wires the store directly to KV accessors. Used by tests.
func newStoreWithKV(recipes, fingerprints kvAccess) *Store {
	return &Store{recipes: recipes, fingerprints: fingerprints}
}

// Create stores a new recipe. Fails if the ID already exists.
func (s *Store) Create(ctx context.Context, r *recipe.Recipe) error {
	if r == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "Create", "recipe cannot be nil")
	}
	if r.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "Create", "recipe ID cannot be empty")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	data, err := json.Marshal(r)
	if err != nil {
		return errors.WrapFatal(err, "recipestore", "Create", "marshal recipe")
	}

	if _, err := s.recipes.Create(ctx, r.ID, data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(errors.ErrAlreadyExists, "recipestore", "Create",
				fmt.Sprintf("recipe %s already exists", r.ID))
		}
		return errors.WrapTransient(err, "recipestore", "Create", "create in KV")
	}

	return nil
}

// Get retrieves a recipe by ID
func (s *Store) Get(ctx context.Context, id string) (*recipe.Recipe, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "Get", "recipe ID cannot be empty")
	}

	entry, err := s.recipes.Get(ctx, id)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, errors.WrapInvalid(errors.ErrNotFound, "recipestore", "Get",
				fmt.Sprintf("recipe %s not found", id))
		}
		return nil, errors.WrapTransient(err, "recipestore", "Get", "get from KV")
	}

	var r recipe.Recipe
	if err := json.Unmarshal(entry.Value, &r); err != nil {
		return nil, errors.WrapFatal(err, "recipestore", "Get", "unmarshal recipe")
	}

	return &r, nil
}

// GetBatch retrieves several recipes in one call. Missing IDs are skipped.
func (s *Store) GetBatch(ctx context.Context, ids []string) (map[string]*recipe.Recipe, error) {
	results := make(map[string]*recipe.Recipe, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		results[id] = r
	}
	return results, nil
}

// Update overwrites an existing recipe
func (s *Store) Update(ctx context.Context, r *recipe.Recipe) error {
	if r == nil || r.ID == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "Update", "recipe ID cannot be empty")
	}
	if err := r.Validate(); err != nil {
		return err
	}

	existing, err := s.Get(ctx, r.ID)
	if err != nil {
		return err
	}

	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now()

	data, err := json.Marshal(r)
	if err != nil {
		return errors.WrapFatal(err, "recipestore", "Update", "marshal recipe")
	}

	if _, err := s.recipes.Put(ctx, r.ID, data); err != nil {
		return errors.WrapTransient(err, "recipestore", "Update", "put to KV")
	}

	return nil
}

// Delete removes a recipe by ID
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "Delete", "recipe ID cannot be empty")
	}

	if err := s.recipes.Delete(ctx, id); err != nil {
		return errors.WrapTransient(err, "recipestore", "Delete", "delete from KV")
	}
	return nil
}

// List retrieves all recipes
func (s *Store) List(ctx context.Context) ([]*recipe.Recipe, error) {
	keys, err := s.recipes.Keys(ctx)
	if err != nil {
		return nil, errors.WrapTransient(err, "recipestore", "List", "list KV keys")
	}

	recipes := make([]*recipe.Recipe, 0, len(keys))
	for _, key := range keys {
		r, err := s.Get(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		recipes = append(recipes, r)
	}

	return recipes, nil
}

// ClaimContent claims a content fingerprint for a recipe ID with a
// create-only write. Two concurrent inserts of identical content race on
// this key; the loser observes the winner's recipe ID and reconciles as a
// duplicate instead of inserting twice.
//
// Returns the owning recipe ID: the given id when the claim won, the
// earlier claimant's id otherwise.
func (s *Store) ClaimContent(ctx context.Context, fingerprint, id string) (string, error) {
	if fingerprint == "" || id == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidData, "recipestore", "ClaimContent",
			"fingerprint and recipe ID are required")
	}

	_, err := s.fingerprints.Create(ctx, fingerprint, []byte(id))
	if err == nil {
		return id, nil
	}
	if !natsclient.IsKVConflictError(err) {
		return "", errors.WrapTransient(err, "recipestore", "ClaimContent", "create fingerprint claim")
	}

	entry, getErr := s.fingerprints.Get(ctx, fingerprint)
	if getErr != nil {
		return "", errors.WrapTransient(getErr, "recipestore", "ClaimContent", "read existing claim")
	}
	return string(entry.Value), nil
}

// ReleaseContent removes a fingerprint claim, used when an insert fails
// after the claim succeeded.
func (s *Store) ReleaseContent(ctx context.Context, fingerprint string) error {
	if fingerprint == "" {
		return nil
	}
	if err := s.fingerprints.Delete(ctx, fingerprint); err != nil {
		return errors.WrapTransient(err, "recipestore", "ReleaseContent", "delete fingerprint claim")
	}
	return nil
}
