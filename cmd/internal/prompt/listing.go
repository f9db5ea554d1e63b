package prompt

import (
	"fmt"
	"slices"
	"strings"
)

// Length bounds for the target word count.
const (
	MinLength     = 80
	MaxLength     = 240
	DefaultLength = 150
)

// Property types offered by the form.
const (
	PropertyFlat      = "Flat/Apartment"
	PropertyHouse     = "House"
	PropertyStudio    = "Studio"
	PropertyBungalow  = "Bungalow"
	PropertyTownhouse = "Townhouse"
	PropertyNewBuild  = "New Build"
	PropertyOther     = "Other"
)

// Tones.
const (
	ToneProfessional   = "Professional"
	ToneWarm           = "Warm"
	ToneLuxury         = "Luxury"
	ToneConcise        = "Concise"
	ToneInvestor       = "Investor-Focused"
	ToneFamilyFriendly = "Family-Friendly"
)

// Audiences.
const (
	AudienceGeneral   = "General buyers"
	AudienceFirstTime = "First-time buyers"
	AudienceFamilies  = "Families"
	AudienceInvestors = "Investors"
	AudienceRenters   = "Renters"
)

// Spelling variants.
const (
	SpellingUK = "UK"
	SpellingUS = "US"
)

// Format styles.
const (
	FormatParagraphs       = "Paragraphs"
	FormatSummaryParagraph = "Short summary + paragraph"
	FormatHeadline         = "Headline + paragraph"
)

var (
	propertyTypes = []string{PropertyFlat, PropertyHouse, PropertyStudio, PropertyBungalow, PropertyTownhouse, PropertyNewBuild, PropertyOther}
	tones         = []string{ToneProfessional, ToneWarm, ToneLuxury, ToneConcise, ToneInvestor, ToneFamilyFriendly}
	audiences     = []string{AudienceGeneral, AudienceFirstTime, AudienceFamilies, AudienceInvestors, AudienceRenters}
	spellings     = []string{SpellingUK, SpellingUS}
	formats       = []string{FormatParagraphs, FormatSummaryParagraph, FormatHeadline}
)

// ListingRequest is one submission of the listing form.
type ListingRequest struct {
	Address         string `json:"address"`
	Bedrooms        int    `json:"bedrooms"`
	Bathrooms       int    `json:"bathrooms"`
	PropertyType    string `json:"property_type"`
	Features        string `json:"features"`
	Tone            string `json:"tone"`
	Audience        string `json:"audience"`
	Length          int    `json:"length"`
	Spelling        string `json:"spelling"`
	IncludeKeywords string `json:"include_keywords"`
	AvoidPhrases    string `json:"avoid_phrases"`
	Format          string `json:"format"`
	AddTitle        bool   `json:"add_title"`
	AddCTA          bool   `json:"add_cta"`
	AddBullets      bool   `json:"add_bullets"`
}

// Defaults returns the form's initial values.
func Defaults() ListingRequest {
	return ListingRequest{
		Bedrooms:     2,
		Bathrooms:    1,
		PropertyType: PropertyFlat,
		Features:     "south-facing garden, remodeled kitchen, off-street parking, near station",
		Tone:         ToneProfessional,
		Audience:     AudienceGeneral,
		Length:       DefaultLength,
		Spelling:     SpellingUK,
		Format:       FormatParagraphs,
		AddTitle:     true,
		AddCTA:       true,
	}
}

// OptionSet lists the values accepted for every enumerated field.
type OptionSet struct {
	PropertyTypes []string `json:"property_types"`
	Tones         []string `json:"tones"`
	Audiences     []string `json:"audiences"`
	Spellings     []string `json:"spellings"`
	Formats       []string `json:"formats"`
	MinLength     int      `json:"min_length"`
	MaxLength     int      `json:"max_length"`
}

// Options returns a copy of the enumerations.
func Options() OptionSet {
	return OptionSet{
		PropertyTypes: slices.Clone(propertyTypes),
		Tones:         slices.Clone(tones),
		Audiences:     slices.Clone(audiences),
		Spellings:     slices.Clone(spellings),
		Formats:       slices.Clone(formats),
		MinLength:     MinLength,
		MaxLength:     MaxLength,
	}
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// ValidationError collects every invalid field of a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Problem)
	}
	return "invalid listing request: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// Validate checks the request before admission. It returns a *ValidationError
// listing all problems, or nil.
func (r ListingRequest) Validate() error {
	var fields []FieldError
	add := func(field, problem string) {
		fields = append(fields, FieldError{Field: field, Problem: problem})
	}

	if strings.TrimSpace(r.Address) == "" {
		add("address", "required")
	}
	if r.Bedrooms < 0 {
		add("bedrooms", "must not be negative")
	}
	if r.Bathrooms < 0 {
		add("bathrooms", "must not be negative")
	}
	if r.Length < MinLength || r.Length > MaxLength {
		add("length", fmt.Sprintf("must be between %d and %d", MinLength, MaxLength))
	}
	if !slices.Contains(propertyTypes, r.PropertyType) {
		add("property_type", "unknown value")
	}
	if !slices.Contains(tones, r.Tone) {
		add("tone", "unknown value")
	}
	if !slices.Contains(audiences, r.Audience) {
		add("audience", "unknown value")
	}
	if !slices.Contains(spellings, r.Spelling) {
		add("spelling", "unknown value")
	}
	if r.Format != "" && !slices.Contains(formats, r.Format) {
		add("format", "unknown value")
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}
