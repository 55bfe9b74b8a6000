package assistant

import (
	"context"
	"io"
	"strings"
)

// Keyword rules used by Offline, checked in order.
var offlineRules = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"water", "watering", "irrigat"},
		reply:    "Watering tip: water thoroughly once the top 2-3 cm of soil is dry, and make sure the drainage hole is not blocked.",
	},
	{
		keywords: []string{"light", "sun", "shade"},
		reply:    "Light tip: most indoor plants prefer bright indirect light. Direct sun can scorch the leaves.",
	},
	{
		keywords: []string{"fertilizer", "fertiliser", "feed", "nutrient"},
		reply:    "Fertilizer tip: use a diluted fertilizer every 4-6 weeks during the growing season (spring to summer) and feed less in winter.",
	},
}

const offlineDefault = "Ask me about plant care and I can help more specifically 🌿\nFor example: 'how often to water a monstera', 'signs of too little light', 'when to repot'."

// Offline answers from fixed keyword rules without any network access.
type Offline struct{}

var _ Client = Offline{}

// SendText implements Client.
func (Offline) SendText(_ context.Context, text, _ string) (string, error) {
	lower := strings.ToLower(text)
	for _, rule := range offlineRules {
		for _, k := range rule.keywords {
			if strings.Contains(lower, k) {
				return rule.reply, nil
			}
		}
	}
	return offlineDefault, nil
}

// SendImage implements Client. Every photo classifies as healthy.
func (Offline) SendImage(_ context.Context, _ string, r io.Reader) (*Classification, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	return &Classification{Label: HealthyLabel, Confidence: 1}, nil
}
