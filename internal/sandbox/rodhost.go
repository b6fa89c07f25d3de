package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"lessonforge/internal/logging"
)

// HostConfig configures the Chrome-backed preview host.
type HostConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// RuntimeScript is a path to a local UI runtime bundle that defines
	// globalThis.React and globalThis.ReactDOM. Nothing is ever fetched from
	// the network, so the runtime must be provided as a file.
	RuntimeScript string
}

func (c HostConfig) viewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1280
	}
	return c.ViewportWidth
}

func (c HostConfig) viewportHeight() int {
	if c.ViewportHeight == 0 {
		return 800
	}
	return c.ViewportHeight
}

// RodHost drives a real Chrome page as the mount surface provider. One host
// page serves all mounts; each mount gets its own frame or shadow root
// inside it.
type RodHost struct {
	cfg HostConfig

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
}

// NewRodHost builds an unstarted host.
func NewRodHost(cfg HostConfig) *RodHost {
	return &RodHost{cfg: cfg}
}

// Start launches Chrome and prepares the host page with the UI runtime and
// the container node. Idempotent.
func (h *RodHost) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser != nil {
		return nil
	}

	if h.cfg.RuntimeScript == "" {
		return errors.New("sandbox host requires a runtime script (set sandbox.runtime_script)")
	}
	runtime, err := os.ReadFile(h.cfg.RuntimeScript)
	if err != nil {
		return fmt.Errorf("read runtime script: %w", err)
	}

	controlURL, err := launcher.New().Headless(h.cfg.Headless).Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create host page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             h.cfg.viewportWidth(),
		Height:            h.cfg.viewportHeight(),
		DeviceScaleFactor: 1.0,
	}).Call(page); err != nil {
		logging.Get(logging.CategorySandbox).Warnw("set viewport failed", "error", err)
	}

	doc := fmt.Sprintf(`<!doctype html>
<html>
<head><meta charset="utf-8"><title>lesson preview</title>
<script>%s</script>
<script>window.__forgeSurfaces = {};</script>
</head>
<body><div id="lesson-root"></div></body>
</html>`, string(runtime))
	if err := page.SetDocumentContent(doc); err != nil {
		_ = browser.Close()
		return fmt.Errorf("prepare host page: %w", err)
	}

	h.browser = browser
	h.page = page
	logging.Get(logging.CategorySandbox).Infow("preview host started", "headless", h.cfg.Headless)
	return nil
}

// Shutdown closes the browser.
func (h *RodHost) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browser == nil {
		return nil
	}
	err := h.browser.Close()
	h.browser = nil
	h.page = nil
	return err
}

func (h *RodHost) hostPage() (*rod.Page, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page == nil {
		return nil, errors.New("host not started")
	}
	return h.page, nil
}

func (h *RodHost) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	page, err := h.hostPage()
	if err != nil {
		return nil, err
	}
	return page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
}

// PublishModule turns module text into a blob URL inside the host page.
func (h *RodHost) PublishModule(ctx context.Context, moduleText string) (Resource, error) {
	obj, err := h.eval(ctx, `(text) => {
		const blob = new Blob([text], { type: "text/javascript" });
		return URL.createObjectURL(blob);
	}`, moduleText)
	if err != nil {
		return nil, fmt.Errorf("publish module: %w", err)
	}
	return &rodResource{host: h, url: obj.Value.String()}, nil
}

type rodResource struct {
	host *RodHost
	url  string
	once sync.Once
}

func (r *rodResource) Ref() string { return r.url }

// Release revokes the blob URL. Revocation failure is logged, not returned:
// the URL dies with the page either way.
func (r *rodResource) Release() {
	r.once.Do(func() {
		_, err := r.host.eval(context.Background(), `(url) => { URL.revokeObjectURL(url); }`, r.url)
		if err != nil {
			logging.Get(logging.CategorySandbox).Debugw("revoke module url failed", "error", err)
		}
	})
}

// CreateFrame adds a sandboxed iframe to the container. The frame document
// is same-origin so the host can bootstrap it, but its script gets the
// restricted global surface installed before any module code runs.
func (h *RodHost) CreateFrame(ctx context.Context, containerID string) (Surface, error) {
	frameID := "forge-frame-" + uuid.NewString()
	_, err := h.eval(ctx, `(containerID, frameID) => {
		const container = document.getElementById(containerID);
		if (!container) throw new Error("container not found: " + containerID);
		const frame = document.createElement("iframe");
		frame.id = frameID;
		frame.setAttribute("sandbox", "allow-scripts allow-same-origin");
		frame.style.border = "0";
		frame.style.width = "100%";
		frame.style.height = "100%";
		frame.srcdoc = '<!doctype html><html><head><meta charset="utf-8"></head><body><div id="root"></div></body></html>';
		container.appendChild(frame);
		return frameID;
	}`, containerID, frameID)
	if err != nil {
		return nil, fmt.Errorf("create frame: %w", err)
	}
	return &frameSurface{host: h, frameID: frameID}, nil
}

type frameSurface struct {
	host    *RodHost
	frameID string
}

func (s *frameSurface) InjectStyle(ctx context.Context, css string) error {
	_, err := s.host.eval(ctx, `(frameID, css) => new Promise((resolve, reject) => {
		const frame = document.getElementById(frameID);
		if (!frame) return reject(new Error("frame gone"));
		const apply = () => {
			const style = frame.contentDocument.createElement("style");
			style.textContent = css;
			frame.contentDocument.head.appendChild(style);
			resolve(true);
		};
		if (frame.contentDocument && frame.contentDocument.readyState === "complete") apply();
		else frame.addEventListener("load", apply, { once: true });
	})`, s.frameID, css)
	return err
}

func (s *frameSurface) LoadModule(ctx context.Context, moduleRef string) error {
	obj, err := s.host.eval(ctx, frameLoaderJS, s.frameID, moduleRef, frameBootstrapJS)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	if state := obj.Value.String(); state != "mounted" {
		return fmt.Errorf("mount failed: %s", state)
	}
	return nil
}

func (s *frameSurface) Destroy(ctx context.Context) error {
	_, err := s.host.eval(ctx, `(frameID) => {
		const frame = document.getElementById(frameID);
		if (frame) frame.remove();
		return true;
	}`, s.frameID)
	return err
}

// CreateShadowRoot adds a shadow-rooted div to the container and registers
// it under a handle the surface operations resolve.
func (h *RodHost) CreateShadowRoot(ctx context.Context, containerID string) (Surface, error) {
	surfaceID := "forge-shadow-" + uuid.NewString()
	_, err := h.eval(ctx, `(containerID, surfaceID) => {
		const container = document.getElementById(containerID);
		if (!container) throw new Error("container not found: " + containerID);
		const hostEl = document.createElement("div");
		hostEl.id = surfaceID;
		container.appendChild(hostEl);
		const shadow = hostEl.attachShadow({ mode: "open" });
		const mountPoint = document.createElement("div");
		shadow.appendChild(mountPoint);
		window.__forgeSurfaces[surfaceID] = { hostEl, shadow, mountPoint, reactRoot: null };
		return surfaceID;
	}`, containerID, surfaceID)
	if err != nil {
		return nil, fmt.Errorf("create shadow root: %w", err)
	}
	return &shadowSurface{host: h, surfaceID: surfaceID}, nil
}

type shadowSurface struct {
	host      *RodHost
	surfaceID string
}

func (s *shadowSurface) InjectStyle(ctx context.Context, css string) error {
	_, err := s.host.eval(ctx, `(surfaceID, css) => {
		const surface = window.__forgeSurfaces[surfaceID];
		if (!surface) throw new Error("surface gone");
		const style = document.createElement("style");
		style.textContent = css;
		surface.shadow.insertBefore(style, surface.mountPoint);
		return true;
	}`, s.surfaceID, css)
	return err
}

func (s *shadowSurface) LoadModule(ctx context.Context, moduleRef string) error {
	_, err := s.host.eval(ctx, `(surfaceID, ref) => {
		const surface = window.__forgeSurfaces[surfaceID];
		if (!surface) throw new Error("surface gone");
		return import(ref).then((mod) => {
			if (!mod.default) throw new Error("module has no default export");
			surface.reactRoot = ReactDOM.createRoot(surface.mountPoint);
			surface.reactRoot.render(React.createElement(mod.default));
			return true;
		});
	}`, s.surfaceID, moduleRef)
	if err != nil {
		return fmt.Errorf("load module: %w", err)
	}
	return nil
}

func (s *shadowSurface) Destroy(ctx context.Context) error {
	_, err := s.host.eval(ctx, `(surfaceID) => {
		const surface = window.__forgeSurfaces[surfaceID];
		if (!surface) return true;
		if (surface.reactRoot) surface.reactRoot.unmount();
		surface.hostEl.remove();
		delete window.__forgeSurfaces[surfaceID];
		return true;
	}`, s.surfaceID)
	return err
}

// Screenshot captures the host page, for the preview command's --out flag.
func (h *RodHost) Screenshot(ctx context.Context) ([]byte, error) {
	page, err := h.hostPage()
	if err != nil {
		return nil, err
	}
	return page.Context(ctx).Screenshot(false, nil)
}
