package attachment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestViewer() *Viewer {
	return NewViewer(
		"https://docs.google.com/viewer?url=%s",
		[]string{"jpg", "jpeg", "png", "gif", "webp"},
	)
}

func TestIsImage(t *testing.T) {
	v := newTestViewer()

	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/files/invoice.png", true},
		{"https://cdn.example.com/files/INVOICE.JPG", true},
		{"https://cdn.example.com/files/photo.jpeg?token=abc&expires=123", true},
		{"https://cdn.example.com/files/contract.pdf", false},
		{"https://cdn.example.com/files/contract.pdf?format=png", false},
		{"https://cdn.example.com/files/archive", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, v.IsImage(tt.url), tt.url)
	}
}

func TestOpenURL(t *testing.T) {
	v := newTestViewer()

	image := "https://cdn.example.com/files/invoice.png"
	assert.Equal(t, image, v.OpenURL(image), "images open directly")

	doc := "https://cdn.example.com/files/contract.pdf?token=a b"
	got := v.OpenURL(doc)
	assert.Equal(t, "https://docs.google.com/viewer?url=https%3A%2F%2Fcdn.example.com%2Ffiles%2Fcontract.pdf%3Ftoken%3Da+b", got)
}
