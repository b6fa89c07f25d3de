package sandbox

// ShadowMounter renders each bundle inside an open shadow root. Styles are
// contained but JS shares the host realm, so this strategy is reserved for
// previews of content that already passed the full pipeline.

import "context"

// baseStylesheetVersion bumps whenever baseStylesheet changes, so a host
// page can detect stale injected styles across mounter upgrades.
const baseStylesheetVersion = 2

// baseStylesheet normalizes the render surface before any component styles
// land. Injected first on every shadow mount.
const baseStylesheet = `:host { all: initial; display: block; font-family: system-ui, sans-serif; line-height: 1.5; }
*, *::before, *::after { box-sizing: border-box; }
img, video { max-width: 100%; }`

// ShadowMounter mounts bundles into shadow roots.
type ShadowMounter struct {
	core
}

// NewShadowMounter builds a shadow-root mounter over the given host.
func NewShadowMounter(host Host) *ShadowMounter {
	m := &ShadowMounter{}
	m.host = host
	return m
}

// Mount mounts the bundle into a fresh shadow root inside containerID. The
// versioned base stylesheet goes in before the bundle's own styles.
func (m *ShadowMounter) Mount(ctx context.Context, containerID string, bundle Bundle) (*Session, error) {
	return m.mount(ctx, containerID, bundle, func(ctx context.Context, containerID string, bundle Bundle) (Surface, error) {
		surface, err := m.host.CreateShadowRoot(ctx, containerID)
		if err != nil {
			return nil, err
		}
		if err := surface.InjectStyle(ctx, baseStylesheet); err != nil {
			_ = surface.Destroy(ctx)
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
