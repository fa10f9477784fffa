package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIngest_DisplayString(t *testing.T) {
	tests := []struct {
		name     string
		raw      any
		expected string
	}{
		{
			name:     "missing value",
			raw:      nil,
			expected: "",
		},
		{
			name:     "single user reference",
			raw:      map[string]any{"id": "usr1", "name": "דנה לוי", "email": "dana@example.com"},
			expected: "דנה לוי",
		},
		{
			name:     "user reference with only email",
			raw:      map[string]any{"email": "ops@example.com"},
			expected: "ops@example.com",
		},
		{
			name:     "array of user references recurses on first",
			raw:      []any{map[string]any{"name": "Yoav"}, map[string]any{"name": "Rina"}},
			expected: "Yoav",
		},
		{
			name:     "array of scalars stringifies first",
			raw:      []any{float64(12), float64(13)},
			expected: "12",
		},
		{
			name:     "plain scalar coercion",
			raw:      true,
			expected: "true",
		},
		{
			name:     "empty array",
			raw:      []any{},
			expected: "",
		},
		{
			name:     "attachment object falls back to url",
			raw:      map[string]any{"id": "att1", "url": "https://cdn.example.com/a.pdf"},
			expected: "https://cdn.example.com/a.pdf",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Ingest(tt.raw).DisplayString())
		})
	}
}

func TestValue_Strings(t *testing.T) {
	v := Ingest([]any{"rec1", "", "rec2"})
	assert.Equal(t, []string{"rec1", "rec2"}, v.Strings())

	assert.Equal(t, []string{"only"}, Ingest("only").Strings())
	assert.Nil(t, Ingest(nil).Strings())
}

func TestIngest_KindClassification(t *testing.T) {
	assert.Equal(t, KindEmpty, Ingest("").Kind)
	assert.Equal(t, KindUserRef, Ingest(map[string]any{"name": "x"}).Kind)
	assert.Equal(t, KindList, Ingest([]any{"a"}).Kind)
	assert.Equal(t, KindScalar, Ingest(float64(1)).Kind)
	assert.Equal(t, KindEmpty, Ingest(map[string]any{"other": "shape"}).Kind)
}
