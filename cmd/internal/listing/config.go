package listing

import (
	"slices"
	"strings"

	"listinggen/cmd/internal/access"
	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/license"
)

// Config is the generation and licensing policy of the service.
type Config struct {
	DefaultModel string
	Models       []string
	MaxTokens    int
	Policy       access.Policy
	Products     license.Products
}

// DefaultConfig mirrors the documented environment defaults.
func DefaultConfig() Config {
	return Config{
		DefaultModel: "gpt-4o-mini",
		Models:       []string{"gpt-4o", "gpt-4o-mini"},
		MaxTokens:    generate.DefaultMaxTokens,
		Policy:       access.DefaultPolicy(),
	}
}

// AllowedModels returns the default model followed by the other models,
// without duplicates or blanks.
func (c Config) AllowedModels() []string {
	out := make([]string, 0, len(c.Models)+1)
	add := func(m string) {
		m = strings.TrimSpace(m)
		if m != "" && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	add(c.DefaultModel)
	for _, m := range c.Models {
		add(m)
	}
	return out
}
