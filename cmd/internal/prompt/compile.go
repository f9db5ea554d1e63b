package prompt

import (
	"strconv"
	"strings"
)

const preamble = "You are an expert real-estate listing copywriter."

const closing = "Return only the listing text (no extra commentary)."

var qualityRules = []string{
	"- Clear, engaging, and sales-focused.",
	"- Avoid repetition and filler.",
	"- No apologies or AI disclaimers.",
	"- Keep it realistic; don't invent features.",
}

var formatRules = map[string]string{
	FormatParagraphs:       "Produce 1–2 short paragraphs. No bullet lists.",
	FormatSummaryParagraph: "Start with a one-sentence summary, then one paragraph. No bullet lists.",
	FormatHeadline:         "Begin with a short, catchy headline on its own line, then one paragraph.",
}

// BedroomLabel renders a bedroom count: "studio" for zero, "<n>-bedroom" otherwise.
func BedroomLabel(n int) string {
	if n == 0 {
		return "studio"
	}
	return strconv.Itoa(n) + "-bedroom"
}

// BathroomLabel renders a bathroom count with the right plural.
func BathroomLabel(n int) string {
	if n == 1 {
		return "1 bathroom"
	}
	return strconv.Itoa(n) + " bathrooms"
}

// SplitList splits a comma-separated list, trimming entries and dropping
// empty ones. Order is preserved. An input with no entries yields nil.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FormatRule returns the instruction sentence for a format style.
// Unknown or empty styles get the paragraph rule.
func FormatRule(format string) string {
	if rule, ok := formatRules[format]; ok {
		return rule
	}
	return formatRules[FormatParagraphs]
}

// Compile renders r into the instruction sent to the model. It is pure: the
// same request always yields the same string. Callers validate r first.
func Compile(r ListingRequest) string {
	format := r.Format
	if _, ok := formatRules[format]; !ok {
		format = FormatParagraphs
	}

	features := strings.TrimSpace(r.Features)
	if features == "" {
		features = "N/A"
	}

	var b strings.Builder
	line := func(s string) {
		if s == "" {
			return
		}
		b.WriteString(s)
		b.WriteByte('\n')
	}

	line(preamble)
	b.WriteByte('\n')

	line("Write a polished listing for a " + strings.ToLower(r.PropertyType) + " at " + strings.TrimSpace(r.Address) + ".")
	line("It is a " + BedroomLabel(r.Bedrooms) + ", " + BathroomLabel(r.Bathrooms) + " property.")
	line("Key features: " + features + ".")
	line("Target audience: " + r.Audience + ".")
	line("Desired tone: " + strings.ToLower(r.Tone) + ".")
	line("Formatting style: " + format + ".")

	line(FormatRule(format))
	line(titleClause(r.AddTitle))
	line(ctaClause(r.AddCTA))
	line(bulletsClause(r.AddBullets))
	line(keywordsClause(SplitList(r.IncludeKeywords)))
	line(avoidClause(SplitList(r.AvoidPhrases)))
	line("Aim for ~" + strconv.Itoa(r.Length) + " words (±15%).")
	line(spellingClause(r.Spelling))
	b.WriteByte('\n')

	line("Rules:")
	for _, rule := range qualityRules {
		line(rule)
	}
	b.WriteByte('\n')
	line(closing)

	return strings.TrimSpace(b.String())
}

func titleClause(on bool) string {
	if on {
		return "If appropriate, include a property headline/title."
	}
	return "Do not include a separate headline."
}

func ctaClause(on bool) string {
	if on {
		return "End with a short one-line call to action."
	}
	return "Do not include a call to action."
}

func bulletsClause(on bool) string {
	if on {
		return "Also include 3 concise selling-point bullets."
	}
	return "Do not use bullet lists."
}

func keywordsClause(kw []string) string {
	if len(kw) == 0 {
		return ""
	}
	return "Ensure you naturally include these keywords: " + strings.Join(kw, ", ") + "."
}

func avoidClause(avoid []string) string {
	if len(avoid) == 0 {
		return ""
	}
	return "Avoid using these words/phrases: " + strings.Join(avoid, ", ") + "."
}

func spellingClause(spelling string) string {
	if spelling == SpellingUS {
		return "Use US spelling."
	}
	return "Use UK spelling."
}
