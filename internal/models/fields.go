package models

import (
	"encoding/json"
	"fmt"
)

// ToFields flattens a model into a document field map. The id is the
// document key and is never stored as a field.
func ToFields(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
	}
	delete(fields, "id")
	return fields, nil
}

// FromFields decodes a document into a model, setting its id
func FromFields[T any](id string, fields map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(fields)
	if err != nil {
		return out, fmt.Errorf("failed to marshal document %s: %w", id, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to unmarshal document %s: %w", id, err)
	}
	setID(&out, id)
	return out, nil
}

func setID(v any, id string) {
	switch m := v.(type) {
	case *Event:
		m.ID = id
	case *Guest:
		m.ID = id
	case *Poll:
		m.ID = id
	}
}
