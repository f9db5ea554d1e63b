package generate

import "context"

const (
	// SystemRole is the fixed system message sent with every completion.
	SystemRole = "You write excellent property listings."
	// DefaultMaxTokens bounds the output length of one variant.
	DefaultMaxTokens = 700
	// DefaultTemperature is used when a request does not pick one.
	DefaultTemperature = 0.7
	// MaxTemperature is the highest temperature a request may pick.
	MaxTemperature = 1.2
)

// Completion is one request to the completion API.
type Completion struct {
	Model       string
	System      string
	User        string
	Temperature float32
	MaxTokens   int
}

// Completer produces one text completion. Implementations return the text
// trimmed; "" means the model produced nothing usable.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
}
