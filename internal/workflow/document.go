// Package workflow provides the execution primitives the bootstrap
// orchestration is built from: an open input/output document threaded
// between phases, a synchronous sub-workflow runner, a named task
// invoker, and a bounded fan-out executor.
package workflow

import (
	"encoding/json"
	"fmt"
)

// Document is an open key/value document passed between workflow phases.
// Values are JSON-like: scalars, lists, or nested documents. Phases never
// mutate a document they received; they produce an extended copy via Merge.
type Document map[string]any

// Clone returns a shallow copy of the document. Nested values are shared;
// callers treat documents as read-only so sharing is safe.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Merge returns a new document containing d's fields plus the given fields.
// A phase may replace a key it owns (e.g. rewriting its own raw result with
// an aggregated one) but existing unrelated fields are never removed.
func (d Document) Merge(fields Document) Document {
	out := d.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// String returns the string value at key, or "" if absent or not a string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Strings returns the list of strings at key. Lists decoded from JSON
// arrive as []any and are converted element by element.
func (d Document) Strings(key string) []string {
	switch v := d[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Child returns the nested document at key, or nil if absent.
func (d Document) Child(key string) Document {
	switch v := d[key].(type) {
	case Document:
		return v
	case map[string]any:
		return Document(v)
	default:
		return nil
	}
}

// Encode converts an arbitrary value into a Document via its JSON form.
func Encode(v any) (Document, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc, nil
}

// Decode converts a document (or any JSON-like value) into target via its
// JSON form.
func Decode(doc any, target any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}
