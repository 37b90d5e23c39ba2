package projection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
)

var fieldName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidField reports whether name is usable as a top-level document field.
// Backends interpolate field names into queries, so anything else is rejected.
func ValidField(name string) bool {
	return fieldName.MatchString(name)
}

// CheckFields rejects updates that would touch the id or use unsafe names.
func CheckFields(fields map[string]any) error {
	for name := range fields {
		if name == "id" {
			return fmt.Errorf("field %q cannot be updated", name)
		}
		if !ValidField(name) {
			return fmt.Errorf("invalid field name %q", name)
		}
	}
	return nil
}

// MergeFields applies fields to the top level of a JSON object document.
func MergeFields(raw json.RawMessage, fields map[string]any) (json.RawMessage, error) {
	doc := make(map[string]json.RawMessage)
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	for name, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode field %s: %w", name, err)
		}
		doc[name] = encoded
	}
	return json.Marshal(doc)
}

type idOnly struct {
	ID int64 `json:"id"`
}

// DocumentID reads the numeric id of a document.
func DocumentID(raw json.RawMessage) (int64, error) {
	var doc idOnly
	if err := json.Unmarshal(raw, &doc); err != nil {
		return 0, fmt.Errorf("decode document id: %w", err)
	}
	return doc.ID, nil
}

// Embeds reports whether raw embeds an entry with id through ref.Field.
func Embeds(raw json.RawMessage, ref EmbeddedRef, id int64) (bool, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("decode document: %w", err)
	}
	field, ok := doc[ref.Field]
	if !ok || bytes.Equal(field, []byte("null")) {
		return false, nil
	}

	if !ref.Many {
		var one idOnly
		if err := json.Unmarshal(field, &one); err != nil {
			return false, fmt.Errorf("decode %s: %w", ref, err)
		}
		return one.ID == id, nil
	}

	var many []idOnly
	if err := json.Unmarshal(field, &many); err != nil {
		return false, fmt.Errorf("decode %s: %w", ref, err)
	}
	for _, entry := range many {
		if entry.ID == id {
			return true, nil
		}
	}
	return false, nil
}
