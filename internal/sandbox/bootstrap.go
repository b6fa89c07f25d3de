package sandbox

// frameBootstrapJS runs inside the sandboxed frame before any module code.
// It installs an in-memory localStorage, strips the network primitives from
// the frame's global surface, and defines the mount entry points the loader
// script calls. Rendering goes through an error boundary so a crashing
// component degrades to an alert node instead of a blank frame.
const frameBootstrapJS = `(() => {
	const root = document.getElementById("root");

	const mem = new Map();
	const storage = {
		getItem: (k) => (mem.has(String(k)) ? mem.get(String(k)) : null),
		setItem: (k, v) => { mem.set(String(k), String(v)); },
		removeItem: (k) => { mem.delete(String(k)); },
		clear: () => { mem.clear(); },
		key: (i) => Array.from(mem.keys())[i] ?? null,
		get length() { return mem.size; },
	};
	try { Object.defineProperty(window, "localStorage", { value: storage, configurable: false }); } catch (e) {}

	for (const name of ["fetch", "XMLHttpRequest", "WebSocket", "EventSource"]) {
		try { Object.defineProperty(window, name, { value: undefined, configurable: false }); } catch (e) {}
	}
	try { if (navigator.sendBeacon) Object.defineProperty(navigator, "sendBeacon", { value: undefined }); } catch (e) {}

	class ErrorBoundary extends window.React.Component {
		constructor(props) {
			super(props);
			this.state = { error: null };
		}
		static getDerivedStateFromError(error) {
			return { error };
		}
		render() {
			if (this.state.error) {
				const msg = this.state.error && this.state.error.message ? this.state.error.message : String(this.state.error);
				return window.React.createElement("div", { role: "alert" }, "Component failed: " + msg);
			}
			return this.props.children;
		}
	}

	window.__mountState = "loading";
	window.__mount = (mod) => {
		try {
			if (!mod.default) throw new Error("module has no default export");
			const element = window.React.createElement(ErrorBoundary, null, window.React.createElement(mod.default));
			window.ReactDOM.createRoot(root).render(element);
			window.__mountState = "mounted";
		} catch (e) {
			window.__mountError(e);
		}
	};
	window.__mountError = (e) => {
		window.__mountState = "error: " + (e && e.message ? e.message : String(e));
	};
})();`

// frameLoaderJS runs in the host page. It bridges the UI runtime into the
// frame, injects the bootstrap, starts the module import, and resolves with
// the frame's final mount state.
const frameLoaderJS = `(frameID, ref, bootstrap) => new Promise((resolve, reject) => {
	const frame = document.getElementById(frameID);
	if (!frame) return reject(new Error("frame gone"));

	const run = () => {
		const doc = frame.contentDocument;
		const win = frame.contentWindow;
		win.React = window.React;
		win.ReactDOM = window.ReactDOM;

		const boot = doc.createElement("script");
		boot.textContent = bootstrap;
		doc.head.appendChild(boot);

		const loader = doc.createElement("script");
		loader.type = "module";
		loader.textContent = "import(" + JSON.stringify(ref) + ").then((m) => window.__mount(m)).catch((e) => window.__mountError(e));";
		doc.body.appendChild(loader);

		const started = Date.now();
		const poll = () => {
			const state = win.__mountState;
			if (state && state !== "loading") return resolve(state);
			if (Date.now() - started > 10000) return resolve("error: mount timed out");
			setTimeout(poll, 25);
		};
		poll();
	};

	if (frame.contentDocument && frame.contentDocument.readyState === "complete") run();
	else frame.addEventListener("load", run, { once: true });
})`
