package approval

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// StampConfig holds certification stamp generation settings
type StampConfig struct {
	ImageServiceURL string
	Width           int
	Height          int
}

// Stamper builds certification-stamp image URLs on a placeholder image
// service. The stamp is treated as an opaque attachment, never rendered
// locally.
type Stamper struct {
	cfg StampConfig
}

// NewStamper creates a stamper
func NewStamper(cfg StampConfig) *Stamper {
	if cfg.Width <= 0 {
		cfg.Width = 360
	}
	if cfg.Height <= 0 {
		cfg.Height = 140
	}
	return &Stamper{cfg: cfg}
}

// URL builds the stamp image URL embedding signer name, date and serial.
// The image service only renders printable ASCII, so the signer name is
// sanitized and falls back to the local part of the email when nothing
// printable remains.
func (s *Stamper) URL(signerName, signerEmail, serial string, signedAt time.Time) string {
	name := sanitizeASCII(signerName)
	if name == "" {
		name = emailLocalPart(signerEmail)
	}

	text := fmt.Sprintf("Signed by %s | %s | #%s",
		name,
		signedAt.Format("02/01/2006"),
		serial)

	return fmt.Sprintf("%s/%dx%d/png?text=%s",
		strings.TrimRight(s.cfg.ImageServiceURL, "/"),
		s.cfg.Width,
		s.cfg.Height,
		url.QueryEscape(text))
}

// sanitizeASCII keeps printable ASCII runes, replaces everything else with
// spaces and collapses the result to single-spaced words
func sanitizeASCII(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 32 && r <= 126 {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func emailLocalPart(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
