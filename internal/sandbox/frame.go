package sandbox

import "context"

// FrameMounter renders each bundle inside a sandboxed iframe. The frame gets
// its own JS realm, so component code cannot touch the host document even if
// something slipped past the lint.
type FrameMounter struct {
	core
}

// NewFrameMounter builds a frame mounter over the given host.
func NewFrameMounter(host Host) *FrameMounter {
	m := &FrameMounter{}
	m.host = host
	return m
}

// Mount mounts the bundle into a fresh sandboxed frame inside containerID.
func (m *FrameMounter) Mount(ctx context.Context, containerID string, bundle Bundle) (*Session, error) {
	return m.mount(ctx, containerID, bundle, func(ctx context.Context, containerID string, bundle Bundle) (Surface, error) {
		surface, err := m.host.CreateFrame(ctx, containerID)
		if err != nil {
			return nil, err
		}
		if bundle.StyleText != "" {
			if err := surface.InjectStyle(ctx, bundle.StyleText); err != nil {
				_ = surface.Destroy(ctx)
				return nil, err
			}
		}
		return surface, nil
	})
}
