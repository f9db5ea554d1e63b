package generate

import (
	"fmt"
	"strings"
)

// BundleFilename is the suggested download name for Bundle output.
const BundleFilename = "listing_variants.txt"

// Bundle renders texts as one plain-text document, each under a
// "=== VARIANT n ===" header, separated by blank lines.
func Bundle(texts []string) []byte {
	blocks := make([]string, 0, len(texts))
	for i, t := range texts {
		blocks = append(blocks, fmt.Sprintf("=== VARIANT %d ===\n%s\n", i+1, strings.TrimSpace(t)))
	}
	return []byte(strings.Join(blocks, "\n"))
}
