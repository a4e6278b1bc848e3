// Package domain provides domain models used across the application.
package domain

import "time"

// HeadlessKind selects how the browser is launched.
const (
	HeadlessShell   = "shell"   // Chrome 129+ headless shell, hardest to fingerprint
	HeadlessNew     = "new"     // standard new headless
	HeadlessLegacy  = "legacy"  // pre-112 headless
	HeadlessVisible = "visible" // full browser with a window
)

// Wait strategy constants for page navigation.
const (
	WaitNetworkIdle      = "networkidle"
	WaitDOMContentLoaded = "domcontentloaded"
	WaitLoad             = "load"
)

// Default browser settings.
const (
	DefaultViewportWidth  = 1920
	DefaultViewportHeight = 1080
	DefaultTimeoutMS      = 30000
)

// BrowserConfig is a named bundle of browser tunables. The tunables are
// immutable once created; only the aggregate counters change.
type BrowserConfig struct {
	ID   string `db:"id"   json:"id"`
	Name string `db:"name" json:"name"`

	// Tunables
	HeadlessKind   string `db:"headless_kind"   json:"headless_kind"`
	ViewportWidth  int    `db:"viewport_width"  json:"viewport_width"`
	ViewportHeight int    `db:"viewport_height" json:"viewport_height"`
	UserAgent      string `db:"user_agent"      json:"user_agent"`
	Stealth        bool   `db:"stealth"         json:"stealth"`
	WaitStrategy   string `db:"wait_strategy"   json:"wait_strategy"`
	TimeoutMS      int    `db:"timeout_ms"      json:"timeout_ms"`

	// Aggregate counters, monotonically non-decreasing
	Attempts    int        `db:"attempts"     json:"attempts"`
	Successes   int        `db:"successes"    json:"successes"`
	LastSuccess *time.Time `db:"last_success" json:"last_success,omitempty"`
	LastFailure *time.Time `db:"last_failure" json:"last_failure,omitempty"`
}

// SuccessRate returns successes / max(1, attempts).
func (c *BrowserConfig) SuccessRate() float64 {
	if c.Attempts == 0 {
		return 0
	}
	return float64(c.Successes) / float64(c.Attempts)
}

// ValidHeadlessKind reports whether k is a recognized headless kind.
func ValidHeadlessKind(k string) bool {
	switch k {
	case HeadlessShell, HeadlessNew, HeadlessLegacy, HeadlessVisible:
		return true
	}
	return false
}

// ValidWaitStrategy reports whether w is a recognized wait strategy.
func ValidWaitStrategy(w string) bool {
	switch w {
	case WaitNetworkIdle, WaitDOMContentLoaded, WaitLoad:
		return true
	}
	return false
}
