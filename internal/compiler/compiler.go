// Package compiler turns validated TSX component source into a self-contained
// browser ES module. Two stages: AST-level import elision, then transpilation
// with esbuild. The output must load standalone - the sandbox fetches it as a
// single resource with no module resolver available.
package compiler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/tsx"

	"lessonforge/internal/logging"
)

// Artifact is a compiled, browser-loadable module derived from one source
// text. ModuleText is byte-identical across compiles of identical source;
// CreatedAt is the only non-semantic metadata.
type Artifact struct {
	SourceHash string
	ModuleText string
	CreatedAt  time.Time
}

// hostGlobalBanner binds the UI library object and its standard hooks from
// the ambient global scope into local bindings, so the emitted module's free
// variables resolve without an import. The sandbox provides globalThis.React.
const hostGlobalBanner = `const React = globalThis.React; const { useState, useEffect, useRef, useMemo, useCallback, useReducer } = React;`

// Compile runs both stages. It is deterministic and side-effect free.
func Compile(source string) (*Artifact, error) {
	log := logging.Get(logging.CategoryCompile)

	elided, err := elideImports(source)
	if err != nil {
		log.Debugw("stage 1 failed", "error", err)
		return nil, err
	}

	result := api.Transform(elided, api.TransformOptions{
		Loader:      api.LoaderTSX,
		Format:      api.FormatESModule,
		Target:      api.ES2017,
		JSXFactory:  "React.createElement",
		JSXFragment: "React.Fragment",
		Banner:      hostGlobalBanner,
		Charset:     api.CharsetUTF8,
	})
	if len(result.Errors) > 0 {
		msgs := make([]string, 0, len(result.Errors))
		for _, m := range result.Errors {
			if m.Location != nil {
				msgs = append(msgs, strings.TrimSpace(m.Text)+" at line "+strconv.Itoa(m.Location.Line))
			} else {
				msgs = append(msgs, strings.TrimSpace(m.Text))
			}
		}
		log.Debugw("stage 2 failed", "diagnostics", msgs)
		return nil, &TransformError{Messages: msgs}
	}

	artifact := &Artifact{
		SourceHash: HashSource(source),
		ModuleText: string(result.Code),
		CreatedAt:  time.Now().UTC(),
	}
	log.Debugw("compiled", "source_bytes", len(source), "module_bytes", len(artifact.ModuleText), "hash", artifact.SourceHash[:12])
	return artifact, nil
}

// HashSource returns the canonical sha256 hex digest for a source text.
func HashSource(source string) string {
	sum := sha256.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}

// elideImports removes all top-level module-import declarations by syntax
// tree node range. Working on the tree rather than patterns guarantees that
// string literals or comments that merely resemble an import survive intact.
func elideImports(source string) (string, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(tsx.GetLanguage())

	src := []byte(source)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		return "", &SyntaxError{Message: err.Error()}
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		if serr := firstSyntaxError(root); serr != nil {
			return "", serr
		}
		return "", &SyntaxError{Message: "source does not parse"}
	}

	type span struct{ start, end int }
	var spans []span
	for i := 0; i < int(root.NamedChildCount()); i++ {
		child := root.NamedChild(i)
		if child.Type() == "import_statement" {
			spans = append(spans, span{int(child.StartByte()), int(child.EndByte())})
		}
	}
	if len(spans) == 0 {
		return source, nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var sb strings.Builder
	sb.Grow(len(source))
	prev := 0
	for _, s := range spans {
		sb.WriteString(source[prev:s.start])
		prev = s.end
		// Swallow the trailing newline so elision leaves no blank gap.
		if prev < len(source) && source[prev] == '\n' {
			prev++
		}
	}
	sb.WriteString(source[prev:])
	return sb.String(), nil
}

// firstSyntaxError locates the first ERROR or missing node for a precise
// diagnostic position.
func firstSyntaxError(root *sitter.Node) *SyntaxError {
	var found *sitter.Node
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	if found == nil {
		return nil
	}
	pt := found.StartPoint()
	msg := "unexpected token"
	if found.IsMissing() {
		msg = "missing " + found.Type()
	}
	return &SyntaxError{
		Line:    int(pt.Row) + 1,
		Column:  int(pt.Column) + 1,
		Message: msg,
	}
}
