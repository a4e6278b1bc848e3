package browser

import "github.com/chromedp/chromedp"

// stealthFlags are the launch flags applied when a configuration enables
// stealth. They strip the obvious automation markers before any page runs.
func stealthFlags() []chromedp.ExecAllocatorOption {
	return []chromedp.ExecAllocatorOption{
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-features", "IsolateOrigins,site-per-process"),
	}
}

// stealthScript runs in every new document before site code. It papers
// over the navigator surface that headless Chrome leaves inconsistent.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
window.chrome = window.chrome || { runtime: {} };
const origQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
	parameters.name === 'notifications'
		? Promise.resolve({ state: Notification.permission })
		: origQuery(parameters)
);
`
