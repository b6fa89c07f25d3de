// Package safety implements the static linter that screens generated
// component source before it is compiled, persisted, or mounted.
//
// The rule table below is the single source of truth for rule identifiers.
// Both lint call sites - the orchestrator before persistence and the sandbox
// mounters before execution - consume this table, so the two scans cannot
// drift apart.
package safety

// RuleID is a stable tag naming one forbidden-pattern check. IDs are shared
// between detection, trace records, and test assertions.
type RuleID string

const (
	// RuleNetworkFetch flags direct invocation of a network-fetch primitive.
	RuleNetworkFetch RuleID = "network-fetch"
	// RuleEvalUse flags dynamic code evaluation.
	RuleEvalUse RuleID = "eval-use"
	// RuleDynamicFunction flags dynamically constructed functions.
	RuleDynamicFunction RuleID = "dynamic-function"
	// RuleRawTransport flags low-level browser transport primitives
	// (XHR, sockets, server-sent events).
	RuleRawTransport RuleID = "raw-transport"
	// RuleExternalURL flags literal absolute HTTP(S) URLs outside the
	// namespace allowlist.
	RuleExternalURL RuleID = "external-url"
	// RuleURLImport flags static or dynamic imports from a URL literal.
	// Distinct from RuleExternalURL because it implies code execution,
	// not just a string reference.
	RuleURLImport RuleID = "url-import"
	// RuleOversizedPayload flags source exceeding MaxSourceBytes.
	RuleOversizedPayload RuleID = "oversized-payload"
)

// Severity of an issue. There is no warn tier: every issue blocks.
type Severity int

const (
	SeverityBlock Severity = iota
)

func (s Severity) String() string {
	return "block"
}

// Issue is one blocking finding from the linter.
type Issue struct {
	Rule     RuleID   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// MaxSourceBytes is the fixed size ceiling for generated source. Anything
// larger is rejected regardless of content to bound downstream compile and
// execution cost.
const MaxSourceBytes = 200 * 1024

// forbiddenCallees maps call targets (direct identifiers or member
// properties) to the rule they violate.
var forbiddenCallees = map[string]RuleID{
	"fetch":      RuleNetworkFetch,
	"sendBeacon": RuleNetworkFetch,
	"eval":       RuleEvalUse,
	"Function":   RuleDynamicFunction,
}

// forbiddenConstructors maps `new X(...)` targets to the rule they violate.
var forbiddenConstructors = map[string]RuleID{
	"Function":       RuleDynamicFunction,
	"XMLHttpRequest": RuleRawTransport,
	"WebSocket":      RuleRawTransport,
	"EventSource":    RuleRawTransport,
}

// allowedURLs are well-known content-inert namespace URIs. They are used for
// markup namespacing (SVG, MathML), never for resource loading, so a literal
// match is not an external reference.
var allowedURLs = map[string]struct{}{
	"http://www.w3.org/2000/svg":           {},
	"http://www.w3.org/1999/xhtml":         {},
	"http://www.w3.org/1999/xlink":         {},
	"http://www.w3.org/1998/Math/MathML":   {},
	"http://www.w3.org/XML/1998/namespace": {},
}

// Rules enumerates every rule identifier the linter can emit, in stable
// order. Exposed so call sites and tests can assert coverage against the
// same table the detector runs.
func Rules() []RuleID {
	return []RuleID{
		RuleNetworkFetch,
		RuleEvalUse,
		RuleDynamicFunction,
		RuleRawTransport,
		RuleExternalURL,
		RuleURLImport,
		RuleOversizedPayload,
	}
}
