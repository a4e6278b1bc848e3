package domain

import "time"

// Outcome result constants.
const (
	OutcomeOK          = "ok"
	OutcomeBlocked     = "blocked"
	OutcomeCaptcha     = "captcha"
	OutcomeTimeout     = "timeout"
	OutcomeRateLimited = "rate_limited"
	OutcomeEmpty       = "empty"
	OutcomeError       = "error"
)

// Block attribution service tags. The recognized set lives in the validator's
// pattern table; these are the tags shared across components.
const (
	ServiceCloudflare = "cloudflare"
	ServiceCloudfront = "cloudfront"
	ServiceAkamai     = "akamai"
	ServicePerimeterX = "perimeterx"
	ServiceDataDome   = "datadome"
	ServiceImperva    = "imperva"
	ServiceCaptcha    = "captcha"
	ServiceRateLimit  = "rate-limit"
)

// Outcome is the append-only record of one completed attempt against a
// domain. Once written it never changes.
type Outcome struct {
	ID        int64     `db:"id"        json:"id"`
	Timestamp time.Time `db:"ts"        json:"ts"`
	Domain    string    `db:"domain"    json:"domain"`
	URL       string    `db:"url"       json:"url"`
	ConfigID  string    `db:"config_id" json:"config_id"`

	// Result
	Result       string  `db:"result"        json:"result"`
	BlockService *string `db:"block_service" json:"block_service,omitempty"`

	// Response metadata
	HTTPStatus    *int    `db:"http_status"    json:"http_status,omitempty"`
	ResponseMS    int     `db:"response_ms"    json:"response_ms"`
	ContentLength int     `db:"content_length" json:"content_length"`
	PageTitle     *string `db:"page_title"     json:"page_title,omitempty"`

	// Request context
	Hour              int `db:"hour"                json:"hour"`
	Weekday           int `db:"weekday"             json:"weekday"`
	RequestsLastMin   int `db:"requests_last_min"   json:"requests_last_min"`
}

// Success reports whether the outcome counts as a success for learning.
func (o *Outcome) Success() bool {
	return o.Result == OutcomeOK
}

// AttributedService returns the block service tag, or "none" when the
// outcome carries no attribution. Useful as a metric label.
func (o *Outcome) AttributedService() string {
	if o.BlockService == nil {
		return "none"
	}
	return *o.BlockService
}

// ValidOutcome reports whether r is a recognized outcome result.
func ValidOutcome(r string) bool {
	switch r {
	case OutcomeOK, OutcomeBlocked, OutcomeCaptcha, OutcomeTimeout,
		OutcomeRateLimited, OutcomeEmpty, OutcomeError:
		return true
	}
	return false
}

// Classification is the validator's verdict on a finished page load.
type Classification struct {
	Result  string `json:"result"`
	Service string `json:"service,omitempty"`
}

// Blocked reports whether the classification is any non-ok block kind.
func (c Classification) Blocked() bool {
	return c.Result == OutcomeBlocked || c.Result == OutcomeCaptcha ||
		c.Result == OutcomeRateLimited
}
