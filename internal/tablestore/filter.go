package tablestore

import (
	"fmt"
	"strings"
)

// maxBatchSize bounds id-list chunks so the generated OR() formula stays
// under the store's filter-expression length limit.
const maxBatchSize = 20

// quoteValue wraps a value in the formula language's string literal syntax.
// Embedded quote delimiters are backslash-escaped so the expression does not
// truncate; this is the extent of the hardening (values are trusted config
// and record data, not user-typed queries).
func quoteValue(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `'`, `\'`)
	return "'" + escaped + "'"
}

// EqualsFormula builds a field equality filter
func EqualsFormula(field, value string) string {
	return fmt.Sprintf("{%s}=%s", field, quoteValue(value))
}

// IDFormula builds a record-id equality filter
func IDFormula(id string) string {
	return fmt.Sprintf("RECORD_ID()=%s", quoteValue(id))
}

// IDInFormula builds a filter matching any of the given record ids
func IDInFormula(ids []string) string {
	if len(ids) == 1 {
		return IDFormula(ids[0])
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = IDFormula(id)
	}
	return OrFormula(parts...)
}

// OrFormula combines filters with a logical OR
func OrFormula(parts ...string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "OR(" + strings.Join(parts, ",") + ")"
}

// AndFormula combines filters with a logical AND
func AndFormula(parts ...string) string {
	if len(parts) == 1 {
		return parts[0]
	}
	return "AND(" + strings.Join(parts, ",") + ")"
}

// FindFormula builds a substring match against a field
func FindFormula(field, value string) string {
	return fmt.Sprintf("FIND(%s,{%s})", quoteValue(value), field)
}

// ChunkIDs splits ids into batches of at most size elements
func ChunkIDs(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}
