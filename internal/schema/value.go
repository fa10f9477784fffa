package schema

import (
	"fmt"
)

// Kind discriminates the shapes a remote field value can take
type Kind int

const (
	KindEmpty Kind = iota
	KindScalar
	KindUserRef
	KindList
)

// Value is a tagged union built once per raw field value. Upstream schema
// shapes are not contractually fixed, so every conversion on Value is total:
// unknown shapes degrade to a scalar or empty, never to a panic.
type Value struct {
	Kind   Kind
	Scalar string
	Name   string
	Email  string
	Items  []Value
}

// Ingest converts a raw field value into the typed union
func Ingest(raw any) Value {
	switch v := raw.(type) {
	case nil:
		return Value{Kind: KindEmpty}
	case string:
		if v == "" {
			return Value{Kind: KindEmpty}
		}
		return Value{Kind: KindScalar, Scalar: v}
	case []any:
		if len(v) == 0 {
			return Value{Kind: KindEmpty}
		}
		items := make([]Value, 0, len(v))
		for _, item := range v {
			items = append(items, Ingest(item))
		}
		return Value{Kind: KindList, Items: items}
	case map[string]any:
		name, _ := v["name"].(string)
		email, _ := v["email"].(string)
		if name != "" || email != "" {
			return Value{Kind: KindUserRef, Name: name, Email: email}
		}
		// Attachment objects and other shapes carry a url/id; fall back to
		// whichever identifying scalar is present.
		if url, ok := v["url"].(string); ok && url != "" {
			return Value{Kind: KindScalar, Scalar: url}
		}
		if id, ok := v["id"].(string); ok && id != "" {
			return Value{Kind: KindScalar, Scalar: id}
		}
		return Value{Kind: KindEmpty}
	default:
		return Value{Kind: KindScalar, Scalar: fmt.Sprintf("%v", v)}
	}
}

// IsEmpty reports whether the value carries no content
func (v Value) IsEmpty() bool {
	return v.Kind == KindEmpty
}

// DisplayString collapses a value to a display string: user references to
// their name (email when no name is set), lists to their first element,
// scalars to themselves. Always returns something, possibly "".
func (v Value) DisplayString() string {
	switch v.Kind {
	case KindScalar:
		return v.Scalar
	case KindUserRef:
		if v.Name != "" {
			return v.Name
		}
		return v.Email
	case KindList:
		if len(v.Items) == 0 {
			return ""
		}
		return v.Items[0].DisplayString()
	default:
		return ""
	}
}

// First returns the first element of a list value, or the value itself
func (v Value) First() Value {
	if v.Kind == KindList && len(v.Items) > 0 {
		return v.Items[0]
	}
	return v
}

// Strings flattens a value into the list of its display strings. A scalar
// becomes a one-element list; empty values vanish.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindList:
		var out []string
		for _, item := range v.Items {
			if s := item.DisplayString(); s != "" {
				out = append(out, s)
			}
		}
		return out
	case KindEmpty:
		return nil
	default:
		if s := v.DisplayString(); s != "" {
			return []string{s}
		}
		return nil
	}
}
