package repair

import (
	"strings"
	"testing"
)

const validComponent = `export default function Quiz() {
  const [answer, setAnswer] = useState("");
  return <input value={answer} onChange={(e) => setAnswer(e.target.value)} />;
}
`

func TestRepairNoErrorsReturnsUnchanged(t *testing.T) {
	result := Repair(validComponent, Diagnostics{})
	if result.Changed(validComponent) {
		t.Errorf("source changed with no diagnostics:\n%s", result.Source)
	}
	if len(result.Applied) != 0 {
		t.Errorf("rules applied with no diagnostics: %v", result.Applied)
	}
}

func TestRepairUnknownDiagnosticReturnsUnchanged(t *testing.T) {
	diags := Diagnostics{Errors: []string{"something inscrutable went wrong"}}
	result := Repair(validComponent, diags)
	if result.Changed(validComponent) || len(result.Applied) != 0 {
		t.Errorf("expected no-op, got applied=%v", result.Applied)
	}
}

func TestRepairInjectsHostGlobalBinding(t *testing.T) {
	diags := Diagnostics{Errors: []string{`"useState" is not defined`}}
	result := Repair(validComponent, diags)

	if !result.Changed(validComponent) {
		t.Fatal("expected source change")
	}
	if !strings.HasPrefix(result.Source, `import { useState } from "react";`) {
		t.Errorf("output does not begin with binding statement:\n%s", result.Source[:80])
	}
	if got := strings.Count(result.Source, `import { useState }`); got != 1 {
		t.Errorf("binding injected %d times, want 1", got)
	}

	// Reapplying to already-repaired source must not duplicate the binding.
	again := Repair(result.Source, diags)
	if again.Changed(result.Source) {
		t.Errorf("reapplication changed source:\n%s", again.Source[:120])
	}
	if got := strings.Count(again.Source, `import { useState }`); got != 1 {
		t.Errorf("binding duplicated on reapply: %d occurrences", got)
	}
}

func TestRepairReactDefaultBinding(t *testing.T) {
	source := `export default function C() { return React.createElement("div"); }`
	diags := Diagnostics{Errors: []string{"ReferenceError: React is not defined"}}
	result := Repair(source, diags)

	if !strings.HasPrefix(result.Source, `import React from "react";`) {
		t.Errorf("expected React import first, got:\n%s", result.Source)
	}
}

func TestRepairSkipsAlreadyBoundGlobal(t *testing.T) {
	source := `import { useEffect } from "react";
export default function C() { useEffect(() => {}, []); return null; }
`
	diags := Diagnostics{Errors: []string{`"useEffect" is not defined`}}
	result := Repair(source, diags)
	if result.Changed(source) {
		t.Errorf("expected no-op for already-bound global:\n%s", result.Source)
	}
}

func TestRepairIgnoresUnknownIdentifiers(t *testing.T) {
	diags := Diagnostics{Errors: []string{`"lodash" is not defined`}}
	result := Repair(validComponent, diags)
	if result.Changed(validComponent) {
		t.Errorf("unknown identifier should not trigger injection")
	}
}

func TestRepairStripsMarkdownFence(t *testing.T) {
	fenced := "```tsx\n" + validComponent + "```\n"
	diags := Diagnostics{Errors: []string{`Syntax error: Unexpected "` + "`" + `"`}}
	result := Repair(fenced, diags)

	if strings.Contains(result.Source, "```") {
		t.Errorf("fence survived repair:\n%s", result.Source)
	}
	if !strings.Contains(result.Source, "export default function Quiz") {
		t.Errorf("component body lost during fence strip:\n%s", result.Source)
	}
	if len(result.Applied) == 0 || result.Applied[0] != "strip-code-fence" {
		t.Errorf("expected strip-code-fence applied, got %v", result.Applied)
	}
}

func TestRepairNormalizesTypographicQuotes(t *testing.T) {
	source := "const label = “score”;\nexport default function C() { return <span>{label}</span>; }\n"
	diags := Diagnostics{Errors: []string{`Unexpected "“"`}}
	result := Repair(source, diags)

	if strings.ContainsAny(result.Source, "“”") {
		t.Errorf("typographic quotes survived:\n%s", result.Source)
	}
	if !strings.Contains(result.Source, `"score"`) {
		t.Errorf("quote content lost:\n%s", result.Source)
	}
}

func TestRepairIsDeterministic(t *testing.T) {
	diags := Diagnostics{Errors: []string{`"useState" is not defined`, `"useRef" is not defined`}}
	first := Repair(validComponent, diags)
	second := Repair(validComponent, diags)
	if first.Source != second.Source {
		t.Error("repair output differs across identical runs")
	}
}
