package validator

import "github.com/jonesrussell/national-treasure/internal/domain"

// Where a pattern looks.
const (
	WhereBody   = "body"
	WhereTitle  = "title"
	WhereHeader = "header"
	WhereCookie = "cookie"
)

// Pattern is one entry in the ordered signature table. Body and title
// entries are case-insensitive substring tests; header and cookie entries
// are name-presence tests.
type Pattern struct {
	Service string `yaml:"service" json:"service"`
	Where   string `yaml:"where"   json:"where"`
	Needle  string `yaml:"needle"  json:"needle"`
}

// DefaultPatterns is the built-in signature table. Order matters: earlier
// entries are more specific and win ties. The set is data, operators can
// replace it wholesale from configuration.
func DefaultPatterns() []Pattern {
	return []Pattern{
		// Cloudflare
		{Service: domain.ServiceCloudflare, Where: WhereBody, Needle: "just a moment"},
		{Service: domain.ServiceCloudflare, Where: WhereTitle, Needle: "attention required"},
		{Service: domain.ServiceCloudflare, Where: WhereBody, Needle: "checking your browser"},
		{Service: domain.ServiceCloudflare, Where: WhereHeader, Needle: "cf-mitigated"},
		{Service: domain.ServiceCloudflare, Where: WhereCookie, Needle: "cf_clearance"},

		// CloudFront
		{Service: domain.ServiceCloudfront, Where: WhereBody, Needle: "generated by cloudfront"},
		{Service: domain.ServiceCloudfront, Where: WhereHeader, Needle: "x-amz-cf-id"},
		{Service: domain.ServiceCloudfront, Where: WhereHeader, Needle: "x-amz-cf-pop"},

		// PerimeterX / HUMAN
		{Service: domain.ServicePerimeterX, Where: WhereBody, Needle: "px-captcha"},
		{Service: domain.ServicePerimeterX, Where: WhereBody, Needle: "perimeterx"},
		{Service: domain.ServicePerimeterX, Where: WhereCookie, Needle: "_px3"},

		// DataDome
		{Service: domain.ServiceDataDome, Where: WhereBody, Needle: "datadome"},
		{Service: domain.ServiceDataDome, Where: WhereCookie, Needle: "datadome"},

		// Akamai
		{Service: domain.ServiceAkamai, Where: WhereHeader, Needle: "x-akamai-request-id"},
		{Service: domain.ServiceAkamai, Where: WhereBody, Needle: "akamai"},
		{Service: domain.ServiceAkamai, Where: WhereCookie, Needle: "_abck"},

		// Imperva / Incapsula
		{Service: domain.ServiceImperva, Where: WhereBody, Needle: "incapsula"},
		{Service: domain.ServiceImperva, Where: WhereCookie, Needle: "visid_incap_"},

		// Generic captcha walls
		{Service: domain.ServiceCaptcha, Where: WhereBody, Needle: "recaptcha"},
		{Service: domain.ServiceCaptcha, Where: WhereBody, Needle: "hcaptcha"},
		{Service: domain.ServiceCaptcha, Where: WhereBody, Needle: "turnstile"},
		{Service: domain.ServiceCaptcha, Where: WhereBody, Needle: "verify you are human"},

		// Rate limiting
		{Service: domain.ServiceRateLimit, Where: WhereBody, Needle: "too many requests"},
		{Service: domain.ServiceRateLimit, Where: WhereHeader, Needle: "retry-after"},
	}
}
