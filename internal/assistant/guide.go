package assistant

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed care_guides.json
var careGuidesJSON []byte

// Disease is one entry of the care guide.
type Disease struct {
	Label       string `json:"label"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Solution    string `json:"solution"`
}

// CareGuide looks up diagnoses by classifier label.
type CareGuide struct {
	entries []Disease
}

// LoadCareGuide parses the embedded guide. A guide that fails to parse is
// empty, so every label is treated as unknown.
func LoadCareGuide() *CareGuide {
	g, err := ParseCareGuide(careGuidesJSON)
	if err != nil {
		return &CareGuide{}
	}
	return g
}

// ParseCareGuide reads a JSON array of entries.
func ParseCareGuide(data []byte) (*CareGuide, error) {
	var entries []Disease
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	return &CareGuide{entries: entries}, nil
}

// Find matches label against each entry's label or name, ignoring case and
// surrounding space.
func (g *CareGuide) Find(label string) (Disease, bool) {
	norm := strings.ToLower(strings.TrimSpace(label))
	for _, d := range g.entries {
		if strings.ToLower(strings.TrimSpace(d.Label)) == norm || strings.ToLower(strings.TrimSpace(d.Name)) == norm {
			return d, true
		}
	}
	return Disease{}, false
}

// Entries returns every entry.
func (g *CareGuide) Entries() []Disease {
	return append([]Disease(nil), g.entries...)
}

// JSON returns the raw embedded guide.
func JSON() []byte { return careGuidesJSON }
