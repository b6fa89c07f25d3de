package generation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Accessibility holds the accessibility knobs the prompt honors.
type Accessibility struct {
	MinFontSizePx     int  `json:"minFontSizePx" yaml:"min_font_size_px"`
	HighContrast      bool `json:"highContrast" yaml:"high_contrast"`
	CaptionsPreferred bool `json:"captionsPreferred" yaml:"captions_preferred"`
}

// Pedagogy is the enumerated pedagogical configuration for a lesson. It has
// no other recognized keys; ParsePedagogy rejects unknown fields.
type Pedagogy struct {
	GradeBand     string        `json:"gradeBand" yaml:"grade_band"`
	ReadingLevel  string        `json:"readingLevel" yaml:"reading_level"`
	LanguageTone  string        `json:"languageTone" yaml:"language_tone"`
	CognitiveLoad string        `json:"cognitiveLoad" yaml:"cognitive_load"`
	Accessibility Accessibility `json:"accessibility" yaml:"accessibility"`
}

// ParsePedagogy decodes a JSON pedagogy object, rejecting unrecognized keys.
func ParsePedagogy(data []byte) (Pedagogy, error) {
	var p Pedagogy
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return Pedagogy{}, fmt.Errorf("parse pedagogy config: %w", err)
	}
	return p, nil
}

// presets are named grade-band defaults so the CLI can say --grade middle.
var presets = map[string]Pedagogy{
	"elementary": {
		GradeBand:     "3-5",
		ReadingLevel:  "grade-3",
		LanguageTone:  "playful",
		CognitiveLoad: "low",
		Accessibility: Accessibility{MinFontSizePx: 18, HighContrast: true, CaptionsPreferred: true},
	},
	"middle": {
		GradeBand:     "6-8",
		ReadingLevel:  "grade-6",
		LanguageTone:  "encouraging",
		CognitiveLoad: "medium",
		Accessibility: Accessibility{MinFontSizePx: 16, CaptionsPreferred: true},
	},
	"high": {
		GradeBand:     "9-12",
		ReadingLevel:  "grade-9",
		LanguageTone:  "direct",
		CognitiveLoad: "high",
		Accessibility: Accessibility{MinFontSizePx: 14},
	},
}

// Preset resolves a named pedagogy preset.
func Preset(name string) (Pedagogy, error) {
	p, ok := presets[name]
	if !ok {
		return Pedagogy{}, fmt.Errorf("unknown pedagogy preset %q (want elementary, middle, or high)", name)
	}
	return p, nil
}
