// Package assistant talks to the plant-care assistant backend.
//
// Callers never surface transport errors to users: when a call fails they
// substitute FallbackText or FallbackImage. There is no retry.
package assistant

import (
	"context"
	"io"
)

const (
	// FallbackText replaces a failed text reply.
	FallbackText = "Sorry, something went wrong while answering. Please check your network and try again."
	// FallbackImage replaces a failed image analysis.
	FallbackImage = "Sorry, image analysis failed. Please try again in a moment."
	// FallbackCareTip is used when a healthy photo's follow-up tip fails.
	FallbackCareTip = "Nothing unusual shows in the photo. Keep checking water and light regularly."
	// HealthyTipPrompt asks for general care advice after a healthy result.
	HealthyTipPrompt = "The analysis says the plant is healthy. Give me some care tips."
	// HealthyLabel is the classifier label for a healthy plant.
	HealthyLabel = "healthy"
)

// Classification is the result of an image analysis. Only Label is
// guaranteed; the other fields are filled when the backend sends them.
type Classification struct {
	Label       string  `json:"label"`
	Confidence  float64 `json:"confidence,omitempty"`
	Name        string  `json:"nameKo,omitempty"`
	Description string  `json:"description,omitempty"`
	Solution    string  `json:"solution,omitempty"`
	ExtraTips   string  `json:"extraTips,omitempty"`
}

// Client is the assistant backend.
type Client interface {
	// SendText returns the assistant's reply. roomID may be empty.
	SendText(ctx context.Context, text, roomID string) (string, error)
	// SendImage classifies a photo. A nil result means the backend had none.
	SendImage(ctx context.Context, filename string, r io.Reader) (*Classification, error)
}
