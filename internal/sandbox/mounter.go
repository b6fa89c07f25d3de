package sandbox

import (
	"context"
	"sync"
	"sync/atomic"

	"lessonforge/internal/compiler"
	"lessonforge/internal/logging"
	"lessonforge/internal/safety"
)

// core carries the lifecycle machinery shared by both mounter strategies.
// The version counter is the arbiter: every Mount takes a new version, and
// any mount that observes a newer version before committing must back out
// and release what it acquired.
type core struct {
	host    Host
	version atomic.Uint64

	mu      sync.Mutex
	current *Session
}

// gate validates a bundle before any resource is acquired. The rescan runs
// on every mount, not just the first: the rule table may have tightened
// since the content was generated.
func gate(bundle Bundle) error {
	if bundle.IntegrityHash != "" && bundle.IntegrityHash != compiler.HashSource(bundle.SourceText) {
		return ErrIntegrityMismatch
	}
	if issues := safety.Check(bundle.SourceText); len(issues) > 0 {
		return &UnsafeContentError{Issues: issues}
	}
	return nil
}

// mount runs the shared lifecycle. attach creates the strategy's surface and
// applies its styles; everything else (versioning, resource handling,
// commit, deferred unmount of the predecessor) is common.
func (c *core) mount(ctx context.Context, containerID string, bundle Bundle,
	attach func(ctx context.Context, containerID string, bundle Bundle) (Surface, error)) (*Session, error) {

	log := logging.Get(logging.CategorySandbox)

	if err := gate(bundle); err != nil {
		return nil, err
	}

	version := c.version.Add(1)

	resource, err := c.host.PublishModule(ctx, bundle.ModuleText)
	if err != nil {
		return nil, err
	}
	if c.version.Load() != version {
		resource.Release()
		return nil, ErrSuperseded
	}

	surface, err := attach(ctx, containerID, bundle)
	if err != nil {
		resource.Release()
		return nil, err
	}

	if err := surface.LoadModule(ctx, resource.Ref()); err != nil {
		_ = surface.Destroy(ctx)
		resource.Release()
		return nil, err
	}

	session := &Session{
		Version:   version,
		Container: containerID,
		surface:   surface,
		resource:  resource,
	}

	c.mu.Lock()
	if c.version.Load() != version {
		c.mu.Unlock()
		_ = surface.Destroy(ctx)
		resource.Release()
		return nil, ErrSuperseded
	}
	prev := c.current
	c.current = session
	c.mu.Unlock()

	// The predecessor comes down only after the replacement is committed, so
	// there is never a gap with no content attached.
	if prev != nil {
		c.teardown(ctx, prev)
	}

	log.Debugw("mounted", "container", containerID, "version", version, "hash", shortHash(bundle.IntegrityHash))
	return session, nil
}

// Unmount detaches a session and releases its resources. Unmounting an
// already-detached or superseded session is a no-op.
func (c *core) Unmount(ctx context.Context, session *Session) error {
	if session == nil {
		return nil
	}
	c.mu.Lock()
	if session.closed {
		c.mu.Unlock()
		return nil
	}
	if c.current == session {
		c.current = nil
	}
	c.mu.Unlock()

	c.teardown(ctx, session)
	return nil
}

// Current returns the visible session, or nil.
func (c *core) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *core) teardown(ctx context.Context, session *Session) {
	c.mu.Lock()
	if session.closed {
		c.mu.Unlock()
		return
	}
	session.closed = true
	c.mu.Unlock()

	if err := session.surface.Destroy(ctx); err != nil {
		logging.Get(logging.CategorySandbox).Warnw("surface destroy failed", "version", session.Version, "error", err)
	}
	session.resource.Release()
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
