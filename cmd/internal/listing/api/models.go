package listingapi

import (
	"fmt"
	"time"

	"listinggen/cmd/internal/generate"
	"listinggen/cmd/internal/listing"
	"listinggen/cmd/internal/prompt"
	"listinggen/cmd/internal/session"
	v1 "listinggen/shared/contracts/listing/v1"
)

type unlockRequest struct {
	AccessKey string `json:"access_key"`
	Plan      string `json:"plan,omitempty"`
}

type byokKeyRequest struct {
	APIKey string `json:"api_key"`
}

type statusResponse struct {
	Licensed        bool     `json:"licensed"`
	Plan            string   `json:"plan,omitempty"`
	Unlimited       bool     `json:"unlimited"`
	Remaining       *int     `json:"remaining"`
	DailyLimit      int      `json:"daily_limit"`
	CooldownSeconds int      `json:"cooldown_seconds"`
	BYOKKeySet      bool     `json:"byok_key_set"`
	HasBatch        bool     `json:"has_batch"`
	Generating      bool     `json:"generating"`
	Plans           []string `json:"plans"`
}

type optionsResponse struct {
	prompt.OptionSet
	Defaults           prompt.ListingRequest `json:"defaults"`
	Models             []string              `json:"models"`
	DefaultModel       string                `json:"default_model"`
	MinVariants        int                   `json:"min_variants"`
	MaxVariants        int                   `json:"max_variants"`
	DefaultVariants    int                   `json:"default_variants"`
	MaxTemperature     float32               `json:"max_temperature"`
	DefaultTemperature float32               `json:"default_temperature"`
}

type generateResponse struct {
	RecordID  string   `json:"record_id"`
	Model     string   `json:"model"`
	Requested int      `json:"requested"`
	Variants  []string `json:"variants"`
	Warning   string   `json:"warning,omitempty"`
}

type historyItem struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Address      string    `json:"address"`
	PropertyType string    `json:"property_type"`
	Tone         string    `json:"tone"`
	Model        string    `json:"model"`
	Temperature  float32   `json:"temperature"`
	Previews     []string  `json:"previews"`
}

type historyResponse struct {
	Items []historyItem `json:"items"`
}

func toStatusResponse(st listing.Status, plans []string) statusResponse {
	resp := statusResponse{
		Licensed:        st.Licensed,
		Plan:            string(st.Plan),
		Unlimited:       st.Bypass,
		DailyLimit:      st.DailyLimit,
		CooldownSeconds: int(st.Cooldown / time.Second),
		BYOKKeySet:      st.HasBYOKKey,
		HasBatch:        st.HasBatch,
		Generating:      st.Generating,
		Plans:           plans,
	}
	if !st.Bypass {
		n := st.Remaining
		resp.Remaining = &n
	}
	return resp
}

func toHistoryItem(rec session.Record) historyItem {
	previews := make([]string, 0, len(rec.Variants))
	for _, v := range rec.Variants {
		previews = append(previews, session.Preview(v, session.PreviewRunes))
	}
	return historyItem{
		ID:           rec.ID,
		CreatedAt:    rec.CreatedAt,
		Address:      rec.Request.Address,
		PropertyType: rec.Request.PropertyType,
		Tone:         rec.Request.Tone,
		Model:        rec.Model,
		Temperature:  rec.Temperature,
		Previews:     previews,
	}
}

// InputFromRequest maps the wire request onto a generation input.
func InputFromRequest(req v1.GenerateRequest) listing.GenerateInput {
	return listing.GenerateInput{
		Request: prompt.ListingRequest{
			Address:         req.Address,
			Bedrooms:        req.Bedrooms,
			Bathrooms:       req.Bathrooms,
			PropertyType:    req.PropertyType,
			Features:        req.Features,
			Tone:            req.Tone,
			Audience:        req.Audience,
			Length:          req.Length,
			Spelling:        req.Spelling,
			IncludeKeywords: req.IncludeKeywords,
			AvoidPhrases:    req.AvoidPhrases,
			Format:          req.Format,
			AddTitle:        req.AddTitle,
			AddCTA:          req.AddCTA,
			AddBullets:      req.AddBullets,
		},
		Model:       req.Model,
		Temperature: req.Temperature,
		Variants:    req.Variants,
	}
}

// PartialWarning is shown when a batch stopped early.
func PartialWarning(ve *generate.VariantError, produced int) string {
	if ve == nil {
		return ""
	}
	return fmt.Sprintf("Variant %d failed; showing %d result(s).", ve.Index, produced)
}
