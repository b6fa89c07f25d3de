// Package sandbox mounts compiled lesson modules into an isolated render
// surface. Two mounter strategies exist: a sandboxed iframe (full JS
// isolation) and a shadow root (style isolation only, for trusted previews).
// Both share the same lifecycle rules: a monotonic mount version makes a
// superseded mount a no-op, unmounting the previous session is deferred until
// the replacement has committed, and every exit path releases the module
// resource it acquired.
package sandbox

import (
	"context"
	"errors"
	"fmt"

	"lessonforge/internal/safety"
)

// Bundle is everything needed to mount one compiled lesson component.
// SourceText rides along for the pre-mount rescan: the stored module is
// trusted only as far as its source still passes the lint.
type Bundle struct {
	SourceText    string
	ModuleText    string
	StyleText     string
	IntegrityHash string
}

// ErrSuperseded is returned by a mount that lost the race to a newer mount
// on the same mounter. The caller discards the result; nothing was attached
// and nothing leaked.
var ErrSuperseded = errors.New("mount superseded by a newer mount")

// ErrIntegrityMismatch is returned when the bundle's recorded hash does not
// match its source text.
var ErrIntegrityMismatch = errors.New("bundle integrity hash mismatch")

// UnsafeContentError reports that the pre-mount rescan found blocking
// issues. Stored content that was safe at generation time can still fail
// here after a rule table update.
type UnsafeContentError struct {
	Issues []safety.Issue
}

func (e *UnsafeContentError) Error() string {
	return fmt.Sprintf("content failed pre-mount safety rescan: %d blocking issue(s)", len(e.Issues))
}

// Resource is a published module reference. Release is idempotent.
type Resource interface {
	Ref() string
	Release()
}

// Surface is one isolated render target inside the host document.
type Surface interface {
	InjectStyle(ctx context.Context, css string) error
	LoadModule(ctx context.Context, moduleRef string) error
	Destroy(ctx context.Context) error
}

// Host is the browser-side capability surface the mounters build on.
// *RodHost implements it against a real Chrome; tests use an in-memory fake.
type Host interface {
	PublishModule(ctx context.Context, moduleText string) (Resource, error)
	CreateFrame(ctx context.Context, containerID string) (Surface, error)
	CreateShadowRoot(ctx context.Context, containerID string) (Surface, error)
}

// Session is one live mounted component. It is created by a Mounter and
// owned by it until unmounted or superseded.
type Session struct {
	Version   uint64
	Container string

	surface  Surface
	resource Resource
	closed   bool
}

// Mounter mounts bundles into containers, one visible session at a time.
type Mounter interface {
	Mount(ctx context.Context, containerID string, bundle Bundle) (*Session, error)
	Unmount(ctx context.Context, session *Session) error
	Current() *Session
}
