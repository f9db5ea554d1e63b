// Package v1 defines the listinggen streaming protocol v1.
//
// The same GenerateRequest shape is accepted by POST /api/generate, so the
// HTTP API and the WebSocket gateway share one request contract.
// This package is dependency-light; clients may vendor it.
package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Version is embedded into every envelope.
const Version = "v1"

// Subprotocol is negotiated on the WebSocket upgrade.
const Subprotocol = "listinggen.v1"

// Type constants (wire-stable).
const (
	// TypeHello asks for the session status (client -> server).
	TypeHello = "hello"
	// TypeHelloAck reports the session status (server -> client).
	TypeHelloAck = "hello.ack"

	// TypeGenerateRequest starts a batch (client -> server).
	TypeGenerateRequest = "generate.request"
	// TypeGenerateStarted confirms admission (server -> client).
	TypeGenerateStarted = "generate.started"
	// TypeVariantNew carries one variant as soon as it is produced.
	TypeVariantNew = "variant.new"
	// TypeVariantError reports the call that stopped the batch.
	TypeVariantError = "variant.error"
	// TypeGenerateDone closes a batch that produced at least one variant.
	TypeGenerateDone = "generate.done"
	// TypeGenerateRejected ends a request that stored no batch.
	TypeGenerateRejected = "generate.rejected"

	// TypeError is a generic protocol error (server -> client).
	TypeError = "error"
)

// Envelope is the canonical wire wrapper.
type Envelope struct {
	V       string          `json:"v"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	TS      time.Time       `json:"ts,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Validate performs strict structural validation for an Envelope.
func (e Envelope) Validate() error {
	if strings.TrimSpace(e.V) == "" {
		return errors.New("missing field: v")
	}
	if e.V != Version {
		return fmt.Errorf("unsupported protocol version: %q", e.V)
	}
	if strings.TrimSpace(e.Type) == "" {
		return errors.New("missing field: type")
	}

	switch e.Type {
	case TypeHello,
		TypeHelloAck,
		TypeGenerateRequest,
		TypeGenerateStarted,
		TypeVariantNew,
		TypeVariantError,
		TypeGenerateDone,
		TypeGenerateRejected,
		TypeError:
		return nil
	default:
		return fmt.Errorf("unknown type: %q", e.Type)
	}
}

// ---- Payloads ----

// GenerateRequest is the listing form plus generation settings.
// Temperature nil, Model "" and Variants 0 select server defaults.
type GenerateRequest struct {
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

	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	Variants    int      `json:"variants,omitempty"`
}

// HelloAckPayload reports the session gate and quota.
type HelloAckPayload struct {
	SessionID string `json:"session_id"`
	Licensed  bool   `json:"licensed"`
	Plan      string `json:"plan,omitempty"`
	Remaining int    `json:"remaining"`
}

// GenerateStartedPayload confirms a batch was admitted.
type GenerateStartedPayload struct {
	RequestID string `json:"request_id"`
	Variants  int    `json:"variants"`
	Model     string `json:"model"`
}

// VariantNewPayload carries one produced variant. Index is 1-based.
type VariantNewPayload struct {
	RequestID string `json:"request_id"`
	Index     int    `json:"index"`
	Text      string `json:"text"`
}

// VariantErrorPayload names the variant whose call failed.
type VariantErrorPayload struct {
	RequestID string `json:"request_id"`
	Index     int    `json:"index"`
	Message   string `json:"message"`
}

// GenerateDonePayload closes a stored batch.
type GenerateDonePayload struct {
	RequestID string `json:"request_id"`
	RecordID  string `json:"record_id"`
	Requested int    `json:"requested"`
	Produced  int    `json:"produced"`
	Warning   string `json:"warning,omitempty"`
}

// GenerateRejectedPayload reports a refused request.
type GenerateRejectedPayload struct {
	RequestID   string       `json:"request_id"`
	Code        string       `json:"code"`
	Message     string       `json:"message"`
	MinutesLeft int          `json:"minutes_left,omitempty"`
	SecondsLeft int          `json:"seconds_left,omitempty"`
	Fields      []FieldError `json:"fields,omitempty"`
}

// FieldError describes one invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Problem string `json:"problem"`
}

// ErrorPayload is the generic error body.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
