package safety

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
)

// urlPattern matches literal absolute HTTP(S) URLs anywhere in the source.
// One pass over the raw text; no backtracking constructs.
var urlPattern = regexp.MustCompile(`https?://[^\s"'` + "`" + `<>()\\]+`)

// Check scans component source and returns every blocking issue found. It is
// pure and deterministic: no side effects, same input always yields the same
// issues in the same order. Cost is one tree-sitter parse plus one regex
// pass, both linear in the source length.
//
// Check never evaluates or executes the source; tree-sitter parsing is
// error-tolerant and side-effect free, so it is safe to run on arbitrary
// model output before any other pipeline stage touches it.
func Check(source string) []Issue {
	if len(source) > MaxSourceBytes {
		// Do not scan oversized input at all; the ceiling exists to bound
		// our own cost too.
		return []Issue{{
			Rule:     RuleOversizedPayload,
			Message:  fmt.Sprintf("source is %d bytes, ceiling is %d", len(source), MaxSourceBytes),
			Severity: SeverityBlock,
		}}
	}

	var issues []Issue
	issues = append(issues, scanTree(source)...)
	issues = append(issues, scanURLs(source)...)
	return issues
}

// Clean reports whether the source has no blocking issues.
func Clean(source string) bool {
	return len(Check(source)) == 0
}

// scanTree walks the TSX syntax tree looking for forbidden capability calls,
// forbidden constructors, and URL imports. tree-sitter always produces a
// tree (malformed regions become ERROR nodes), so recoverable surroundings
// are still scanned even for broken source.
func scanTree(source string) []Issue {
	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		// Parser failure (not a syntax error) leaves only the URL pass.
		return nil
	}
	defer tree.Close()

	var issues []Issue
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "call_expression":
			issues = append(issues, checkCall(n, src)...)
		case "new_expression":
			issues = append(issues, checkNew(n, src)...)
		case "import_statement":
			issues = append(issues, checkStaticImport(n, src)...)
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(tree.RootNode())
	return issues
}

func checkCall(n *sitter.Node, src []byte) []Issue {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return nil
	}

	// Dynamic import: import("...") parses as a call with an `import` node
	// in function position.
	if fn.Type() == "import" {
		return []Issue{{
			Rule:     RuleURLImport,
			Message:  fmt.Sprintf("dynamic import is not allowed: %s", snippet(n, src)),
			Severity: SeverityBlock,
		}}
	}

	name := calleeName(fn, src)
	if rule, ok := forbiddenCallees[name]; ok {
		return []Issue{{
			Rule:     rule,
			Message:  fmt.Sprintf("forbidden call %q: %s", name, snippet(n, src)),
			Severity: SeverityBlock,
		}}
	}
	return nil
}

func checkNew(n *sitter.Node, src []byte) []Issue {
	ctor := n.ChildByFieldName("constructor")
	if ctor == nil {
		return nil
	}
	name := calleeName(ctor, src)
	if rule, ok := forbiddenConstructors[name]; ok {
		return []Issue{{
			Rule:     rule,
			Message:  fmt.Sprintf("forbidden constructor %q: %s", name, snippet(n, src)),
			Severity: SeverityBlock,
		}}
	}
	return nil
}

// checkStaticImport flags `import ... from "https://..."`. Imports from bare
// specifiers are left alone here; the compiler elides them entirely.
func checkStaticImport(n *sitter.Node, src []byte) []Issue {
	srcNode := n.ChildByFieldName("source")
	if srcNode == nil {
		return nil
	}
	spec := strings.Trim(srcNode.Content(src), "\"'`")
	if strings.HasPrefix(spec, "http://") || strings.HasPrefix(spec, "https://") {
		return []Issue{{
			Rule:     RuleURLImport,
			Message:  fmt.Sprintf("import from URL %q is not allowed", spec),
			Severity: SeverityBlock,
		}}
	}
	return nil
}

// calleeName resolves the effective target of a call or construction:
// the identifier itself, or the property name of a member access so that
// window.fetch and globalThis.eval are caught alongside the bare forms.
func calleeName(fn *sitter.Node, src []byte) string {
	switch fn.Type() {
	case "identifier":
		return fn.Content(src)
	case "member_expression":
		if prop := fn.ChildByFieldName("property"); prop != nil {
			return prop.Content(src)
		}
	case "parenthesized_expression":
		if fn.NamedChildCount() == 1 {
			return calleeName(fn.NamedChild(0), src)
		}
	}
	return ""
}

// scanURLs runs the single regex pass for literal absolute URLs.
func scanURLs(source string) []Issue {
	var issues []Issue
	for _, match := range urlPattern.FindAllString(source, -1) {
		url := strings.TrimRight(match, ".,;:")
		if _, ok := allowedURLs[url]; ok {
			continue
		}
		issues = append(issues, Issue{
			Rule:     RuleExternalURL,
			Message:  fmt.Sprintf("external URL literal %q is not on the namespace allowlist", url),
			Severity: SeverityBlock,
		})
	}
	return issues
}

// snippet returns a short, single-line excerpt of a node for messages.
func snippet(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		text = text[:idx] + "..."
	}
	if len(text) > 80 {
		text = text[:80] + "..."
	}
	return text
}
