package domain

// chromeUA is the user agent template shared by the stock configurations.
const chromeUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36"

// DefaultCatalog is the stock set of browser configurations the bandit
// starts from. Operators can add more; these cover the useful corners of
// the headless/stealth/wait space.
func DefaultCatalog() []BrowserConfig {
	return []BrowserConfig{
		{
			ID:             "shell-stealth",
			Name:           "Headless shell with stealth",
			HeadlessKind:   HeadlessShell,
			ViewportWidth:  DefaultViewportWidth,
			ViewportHeight: DefaultViewportHeight,
			UserAgent:      chromeUA,
			Stealth:        true,
			WaitStrategy:   WaitNetworkIdle,
			TimeoutMS:      DefaultTimeoutMS,
		},
		{
			ID:             "new-stealth",
			Name:           "New headless with stealth",
			HeadlessKind:   HeadlessNew,
			ViewportWidth:  DefaultViewportWidth,
			ViewportHeight: DefaultViewportHeight,
			UserAgent:      chromeUA,
			Stealth:        true,
			WaitStrategy:   WaitNetworkIdle,
			TimeoutMS:      DefaultTimeoutMS,
		},
		{
			ID:             "new-plain",
			Name:           "New headless, no stealth",
			HeadlessKind:   HeadlessNew,
			ViewportWidth:  DefaultViewportWidth,
			ViewportHeight: DefaultViewportHeight,
			UserAgent:      chromeUA,
			Stealth:        false,
			WaitStrategy:   WaitLoad,
			TimeoutMS:      DefaultTimeoutMS,
		},
		{
			ID:             "new-fast",
			Name:           "New headless, DOM-ready wait",
			HeadlessKind:   HeadlessNew,
			ViewportWidth:  1366,
			ViewportHeight: 768,
			UserAgent:      chromeUA,
			Stealth:        true,
			WaitStrategy:   WaitDOMContentLoaded,
			TimeoutMS:      15000,
		},
		{
			ID:             "visible-stealth",
			Name:           "Visible browser with stealth",
			HeadlessKind:   HeadlessVisible,
			ViewportWidth:  DefaultViewportWidth,
			ViewportHeight: DefaultViewportHeight,
			UserAgent:      chromeUA,
			Stealth:        true,
			WaitStrategy:   WaitNetworkIdle,
			TimeoutMS:      45000,
		},
	}
}
