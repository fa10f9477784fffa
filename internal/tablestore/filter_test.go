package tablestore

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEqualsFormula(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		expected string
	}{
		{
			name:     "plain value",
			field:    "Project",
			value:    "Tower A",
			expected: "{Project}='Tower A'",
		},
		{
			name:     "value containing quote delimiter is escaped, not truncated",
			field:    "Supplier",
			value:    "O'Brien Ltd",
			expected: `{Supplier}='O\'Brien Ltd'`,
		},
		{
			name:     "empty value",
			field:    "Status",
			value:    "",
			expected: "{Status}=''",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EqualsFormula(tt.field, tt.value))
		})
	}
}

func TestIDInFormula(t *testing.T) {
	assert.Equal(t, "RECORD_ID()='rec1'", IDInFormula([]string{"rec1"}))
	assert.Equal(t,
		"OR(RECORD_ID()='rec1',RECORD_ID()='rec2')",
		IDInFormula([]string{"rec1", "rec2"}))
}

func TestAndFormula(t *testing.T) {
	assert.Equal(t, "{A}='1'", AndFormula("{A}='1'"))
	assert.Equal(t, "AND({A}='1',{B}='2')", AndFormula("{A}='1'", "{B}='2'"))
}

func TestFindFormula(t *testing.T) {
	assert.Equal(t, "FIND('rec9',{Contract})", FindFormula("Contract", "rec9"))
}

func TestChunkIDs(t *testing.T) {
	tests := []struct {
		name      string
		count     int
		size      int
		wantLens  []int
	}{
		{name: "empty input yields no chunks", count: 0, size: 20, wantLens: nil},
		{name: "under one batch", count: 7, size: 20, wantLens: []int{7}},
		{name: "exact multiple", count: 40, size: 20, wantLens: []int{20, 20}},
		{name: "remainder batch", count: 45, size: 20, wantLens: []int{20, 20, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := make([]string, tt.count)
			for i := range ids {
				ids[i] = strings.Repeat("x", 3)
			}
			chunks := ChunkIDs(ids, tt.size)
			var lens []int
			for _, chunk := range chunks {
				lens = append(lens, len(chunk))
			}
			assert.Equal(t, tt.wantLens, lens)
		})
	}
}
