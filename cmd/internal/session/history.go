package session

import (
	"time"

	"listinggen/cmd/internal/prompt"
)

const (
	// DefaultRecentCount is how many records a history view shows.
	DefaultRecentCount = 5
	// PreviewRunes is the preview length of one variant in history views.
	PreviewRunes = 160
)

// Record is one successful (possibly partial) generation batch.
type Record struct {
	ID          string
	Request     prompt.ListingRequest
	Variants    []string
	Model       string
	Temperature float32
	CreatedAt   time.Time
}

// Preview shortens text to max runes, appending "…" when cut.
func Preview(text string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "…"
}

func appendCapped(h []Record, rec Record, limit int) []Record {
	h = append(h, rec)
	if limit > 0 && len(h) > limit {
		h = append([]Record(nil), h[len(h)-limit:]...)
	}
	return h
}
