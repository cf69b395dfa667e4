package llm

import (
	"context"
	"encoding/json"

	"github.com/virajxp1/forkfolio/errors"
)

// Validator lets a result type add semantic checks beyond JSON decoding,
// e.g. an enum field rejecting unknown values.
type Validator interface {
	Validate() error
}

// Call performs a structured completion and decodes the payload into T.
//
// Validation happens here, at the consumer boundary, whether the payload
// came from the provider or from a cache. If a payload fails to decode
// or validate and the client can invalidate (a CachedClient), the entry
// is evicted and the call retried once so a single bad cached payload
// heals itself instead of poisoning every future hit.
func Call[T any](ctx context.Context, client Client, systemPrompt, userPrompt string, schema Schema) (T, error) {
	var result T

	payload, err := client.Complete(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return result, err
	}

	if err := decode(payload, &result); err == nil {
		return result, nil
	}

	invalidator, ok := client.(Invalidator)
	if !ok {
		return result, errors.WrapTransient(errors.ErrParsingFailed, "llm", "Call", "decode completion payload")
	}

	// The bad payload may be a stale cache entry. Evict and re-fetch once.
	invalidator.Invalidate(systemPrompt, userPrompt, schema)

	result = *new(T)
	payload, err = client.Complete(ctx, systemPrompt, userPrompt, schema)
	if err != nil {
		return result, err
	}
	if err := decode(payload, &result); err != nil {
		return result, errors.WrapTransient(errors.ErrParsingFailed, "llm", "Call", "decode completion payload after refetch")
	}
	return result, nil
}

func decode[T any](payload json.RawMessage, target *T) error {
	if err := json.Unmarshal(payload, target); err != nil {
		return err
	}
	if v, ok := any(*target).(Validator); ok {
		return v.Validate()
	}
	if v, ok := any(target).(Validator); ok {
		return v.Validate()
	}
	return nil
}
