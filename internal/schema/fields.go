// Package schema resolves logical field keys against the remote base's
// physical column names and normalizes the heterogeneous value shapes the
// store returns (lookup arrays, user objects, linked-record ids) into
// scalars the rest of the application can rely on.
package schema

import (
	"github.com/paysign/signoff/internal/tablestore"
)

// FieldMap maps logical field keys to physical field names
type FieldMap map[string]string

// Name returns the physical field name for a logical key, or the key itself
// when no mapping exists so probe lookups still have a chance to hit.
func (m FieldMap) Name(key string) string {
	if physical, ok := m[key]; ok && physical != "" {
		return physical
	}
	return key
}

// Resolve looks up the configured physical field on a record and returns the
// raw value, or nil when the field is absent. It never fails: schema drift
// shows up as empty cells, not errors.
func (m FieldMap) Resolve(record *tablestore.Record, key string) any {
	if record == nil || record.Fields == nil {
		return nil
	}
	return record.Fields[m.Name(key)]
}

// ResolveValue is Resolve followed by ingestion into the typed value union
func (m FieldMap) ResolveValue(record *tablestore.Record, key string) Value {
	return Ingest(m.Resolve(record, key))
}

// ResolveString is Resolve followed by display-string normalization
func (m FieldMap) ResolveString(record *tablestore.Record, key string) string {
	return Ingest(m.Resolve(record, key)).DisplayString()
}
