package docstore

import (
	"encoding/json"
	"fmt"
)

// Decode converts a raw document into a typed struct via its json tags.
// The injected "id" key lands in whatever field is tagged `json:"id"`.
func Decode(doc Doc, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: encoding document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("docstore: decoding document: %w", err)
	}
	return nil
}

// Encode converts a typed struct into a raw document for Add.
// The "id" key, if the struct carries one, is removed; the store assigns IDs.
func Encode(v any) (Doc, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("docstore: encoding value: %w", err)
	}
	var doc Doc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("docstore: decoding value: %w", err)
	}
	delete(doc, "id")
	return doc, nil
}
