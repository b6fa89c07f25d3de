package generation

import (
	"strings"
	"testing"
)

func TestParsePedagogyRejectsUnknownKeys(t *testing.T) {
	_, err := ParsePedagogy([]byte(`{"gradeBand":"6-8","surprise":true}`))
	if err == nil {
		t.Fatal("expected error for unrecognized key")
	}

	p, err := ParsePedagogy([]byte(`{"gradeBand":"6-8","readingLevel":"grade-6","accessibility":{"minFontSizePx":16,"highContrast":true}}`))
	if err != nil {
		t.Fatalf("valid pedagogy rejected: %v", err)
	}
	if p.GradeBand != "6-8" || p.Accessibility.MinFontSizePx != 16 || !p.Accessibility.HighContrast {
		t.Errorf("fields not decoded: %+v", p)
	}
}

func TestPresetLookup(t *testing.T) {
	p, err := Preset("middle")
	if err != nil {
		t.Fatalf("middle preset missing: %v", err)
	}
	if p.GradeBand != "6-8" {
		t.Errorf("unexpected grade band %q", p.GradeBand)
	}
	if _, err := Preset("postdoc"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestBuildComponentPromptIncludesPedagogy(t *testing.T) {
	ped := Pedagogy{
		GradeBand:     "6-8",
		ReadingLevel:  "grade-6",
		LanguageTone:  "encouraging",
		CognitiveLoad: "medium",
		Accessibility: Accessibility{MinFontSizePx: 16, HighContrast: true, CaptionsPreferred: true},
	}
	prompt := BuildComponentPrompt("the water cycle", ped)

	for _, want := range []string{"the water cycle", "6-8", "grade-6", "encouraging", "16px", "high-contrast", "Caption"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildFixPromptListsErrors(t *testing.T) {
	prompt := BuildFixPrompt("const x = 1;", []string{"forbidden call \"fetch\"", "syntax error at 1:1"})
	if !strings.Contains(prompt, "1. forbidden call") || !strings.Contains(prompt, "2. syntax error") {
		t.Errorf("errors not enumerated:\n%s", prompt)
	}
	if !strings.Contains(prompt, "const x = 1;") {
		t.Error("previous source missing from fix prompt")
	}
}

func TestExtractCodeBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tsx fence",
			in:   "Here you go:\n```tsx\nexport default function C() { return null; }\n```\nEnjoy!",
			want: "export default function C() { return null; }",
		},
		{
			name: "bare fence",
			in:   "```\nconst a = 1;\n```",
			want: "const a = 1;",
		},
		{
			name: "no fence returns trimmed text",
			in:   "  export default function C() { return null; }  ",
			want: "export default function C() { return null; }",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractCodeBlock(tt.in); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
