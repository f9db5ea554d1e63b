package generate

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	MinVariants     = 1
	MaxVariants     = 3
	DefaultVariants = 2
)

// VariantError reports the call that stopped a batch. Index is 1-based.
type VariantError struct {
	Index int
	Err   error
}

func (e *VariantError) Error() string {
	return fmt.Sprintf("variant %d failed: %v", e.Index, e.Err)
}

func (e *VariantError) Unwrap() error { return e.Err }

// Variant is one usable completion.
type Variant struct {
	Index   int // 1-based position in the batch
	Text    string
	Elapsed time.Duration
}

// ClampVariants bounds n to [MinVariants, MaxVariants].
func ClampVariants(n int) int {
	if n < MinVariants {
		return MinVariants
	}
	if n > MaxVariants {
		return MaxVariants
	}
	return n
}

// Variants requests n completions one after another. onVariant, when set,
// sees each usable variant as soon as it arrives.
//
// On a failed call the loop stops and returns the variants gathered so far
// with a *VariantError. Empty completions are skipped.
func Variants(ctx context.Context, c Completer, in Completion, n int, onVariant func(Variant)) ([]Variant, error) {
	n = ClampVariants(n)
	out := make([]Variant, 0, n)

	for i := 1; i <= n; i++ {
		start := time.Now()
		text, err := c.Complete(ctx, in)
		if err != nil {
			return out, &VariantError{Index: i, Err: err}
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		v := Variant{Index: i, Text: text, Elapsed: time.Since(start)}
		out = append(out, v)
		if onVariant != nil {
			onVariant(v)
		}
	}
	return out, nil
}

// Texts returns the text of each variant.
func Texts(vs []Variant) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Text
	}
	return out
}
