package syncer

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"library-sync/internal/projection"
)

type validatable interface {
	Validate() error
}

// decode unmarshals a payload into its typed form and validates it.
func decode[T validatable](payload []byte) (T, error) {
	var p T
	if err := json.Unmarshal(payload, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return p, nil
}

// requireID extracts the positive integer id every update and delete carries.
func requireID(payload []byte) (int64, error) {
	var envelope struct {
		ID *json.Number `json:"id"`
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if envelope.ID == nil {
		return 0, fmt.Errorf("%w: missing id", ErrMalformedPayload)
	}
	id, err := envelope.ID.Int64()
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", ErrMalformedPayload, envelope.ID.String())
	}
	return id, nil
}

// notFound tags a store NotFound with the entity-specific sentinel.
func notFound(err, sentinel error) error {
	if errors.Is(err, projection.ErrNotFound) {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}
