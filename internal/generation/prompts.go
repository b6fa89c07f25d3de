package generation

import (
	"fmt"
	"strings"
)

// componentSystemPrompt is the system instruction for first-attempt
// generation. The sandbox contract (no imports resolved, no network, host
// globals only) is stated up front so well-behaved output needs no repair.
const componentSystemPrompt = `You are a TSX component generator for an interactive lesson platform.
Generate a single self-contained React component.

HARD CONSTRAINTS (violations are rejected automatically):
- No network access: never call fetch, XMLHttpRequest, WebSocket, EventSource, or sendBeacon
- No dynamic code: never use eval or the Function constructor
- No external URLs of any kind (no CDN scripts, images, fonts, or API endpoints)
- No imports other than from "react"; the runtime provides React and its hooks as globals
- All state lives in component state; storage access goes through localStorage only

STYLE:
- One default-exported function component
- Inline styles or a <style> element scoped to your own markup
- Interactive and self-explanatory; no placeholder text

Respond with a single TSX code block.`

// fixSystemPrompt is the system instruction for fix-request attempts.
const fixSystemPrompt = `You are a TSX component generator for an interactive lesson platform.
Your previous component was rejected. Fix every listed problem without
introducing new capabilities.

The same hard constraints apply: no network primitives, no eval or Function
constructor, no external URLs, no imports other than from "react".

Respond with the complete corrected component in a single TSX code block.`

// BuildComponentPrompt renders the first-attempt user prompt from the topic
// and pedagogy configuration.
func BuildComponentPrompt(topic string, ped Pedagogy) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Create an interactive lesson component about: %s\n\n", topic)
	fmt.Fprintf(&sb, "Audience:\n")
	fmt.Fprintf(&sb, "- Grade band: %s\n", orUnspecified(ped.GradeBand))
	fmt.Fprintf(&sb, "- Reading level: %s\n", orUnspecified(ped.ReadingLevel))
	fmt.Fprintf(&sb, "- Language tone: %s\n", orUnspecified(ped.LanguageTone))
	fmt.Fprintf(&sb, "- Cognitive load: %s\n", orUnspecified(ped.CognitiveLoad))
	fmt.Fprintf(&sb, "\nAccessibility requirements:\n")
	if ped.Accessibility.MinFontSizePx > 0 {
		fmt.Fprintf(&sb, "- Minimum font size: %dpx\n", ped.Accessibility.MinFontSizePx)
	}
	if ped.Accessibility.HighContrast {
		sb.WriteString("- Use a high-contrast palette\n")
	}
	if ped.Accessibility.CaptionsPreferred {
		sb.WriteString("- Caption or label every non-text element\n")
	}
	sb.WriteString("\nGenerate the complete TSX component now.")
	return sb.String()
}

// BuildFixPrompt renders a fix-request from the previous source and its
// error list (safety issues and compile diagnostics alike).
func BuildFixPrompt(previousSource string, errs []string) string {
	var sb strings.Builder
	sb.WriteString("The previous component was rejected with these problems:\n\n")
	for i, e := range errs {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, e)
	}
	sb.WriteString("\n--- PREVIOUS SOURCE ---\n")
	sb.WriteString(previousSource)
	sb.WriteString("\n--- END PREVIOUS SOURCE ---\n\n")
	sb.WriteString("Produce the complete corrected component.")
	return sb.String()
}

// SystemPrompt returns the system instruction for the given attempt kind.
func SystemPrompt(fixRequest bool) string {
	if fixRequest {
		return fixSystemPrompt
	}
	return componentSystemPrompt
}

// ExtractCodeBlock extracts a fenced code block from a model response. If no
// fence is found the whole trimmed text is returned - it might be raw code.
func ExtractCodeBlock(text string) string {
	for _, fence := range []string{"```tsx\n", "```typescript\n", "```jsx\n", "```\n"} {
		if idx := strings.Index(text, fence); idx != -1 {
			start := idx + len(fence)
			if end := strings.Index(text[start:], "```"); end != -1 {
				return strings.TrimSpace(text[start : start+end])
			}
		}
	}
	return strings.TrimSpace(text)
}

func orUnspecified(s string) string {
	if s == "" {
		return "unspecified"
	}
	return s
}
