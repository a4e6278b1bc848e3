package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	return New(Config{}, logger.NewNoOp())
}

func TestClassify(t *testing.T) {
	t.Parallel()
	v := newValidator(t)

	longBody := strings.Repeat("lorem ipsum dolor sit amet ", 40)

	tests := []struct {
		name    string
		in      Input
		result  string
		service string
	}{
		{
			name:   "clean page",
			in:     Input{HTTPStatus: 200, Body: longBody, Title: "An Article"},
			result: domain.OutcomeOK,
		},
		{
			name: "cloudflare challenge on 403",
			in: Input{
				HTTPStatus: 403,
				Body:       "just a moment... checking your browser",
				Title:      "Just a moment...",
			},
			result:  domain.OutcomeBlocked,
			service: domain.ServiceCloudflare,
		},
		{
			name:    "cloudflare challenge title only",
			in:      Input{HTTPStatus: 200, Body: longBody, Title: "Attention Required! | Cloudflare"},
			result:  domain.OutcomeBlocked,
			service: domain.ServiceCloudflare,
		},
		{
			name:    "cloudflare clearance cookie",
			in:      Input{HTTPStatus: 200, Body: longBody, Cookies: []string{"cf_clearance"}},
			result:  domain.OutcomeBlocked,
			service: domain.ServiceCloudflare,
		},
		{
			name:    "cloudfront header",
			in:      Input{HTTPStatus: 200, Body: longBody, Headers: map[string]string{"x-amz-cf-id": "abc"}},
			result:  domain.OutcomeBlocked,
			service: domain.ServiceCloudfront,
		},
		{
			name:    "akamai cookie",
			in:      Input{HTTPStatus: 200, Body: longBody, Cookies: []string{"_abck"}},
			result:  domain.OutcomeBlocked,
			service: domain.ServiceAkamai,
		},
		{
			name:    "perimeterx cookie",
			in:      Input{HTTPStatus: 200, Body: longBody, Cookies: []string{"_px3"}},
			result:  domain.OutcomeBlocked,
			service: domain.ServicePerimeterX,
		},
		{
			name:    "recaptcha widget",
			in:      Input{HTTPStatus: 200, Body: longBody + " g-recaptcha "},
			result:  domain.OutcomeCaptcha,
			service: domain.ServiceCaptcha,
		},
		{
			name:    "verify you are human",
			in:      Input{HTTPStatus: 200, Body: "please verify you are human to continue"},
			result:  domain.OutcomeCaptcha,
			service: domain.ServiceCaptcha,
		},
		{
			name:    "429 without signature",
			in:      Input{HTTPStatus: 429, Body: longBody},
			result:  domain.OutcomeRateLimited,
			service: domain.ServiceRateLimit,
		},
		{
			name:    "retry-after header",
			in:      Input{HTTPStatus: 200, Body: longBody, Headers: map[string]string{"retry-after": "30"}},
			result:  domain.OutcomeRateLimited,
			service: domain.ServiceRateLimit,
		},
		{
			name:    "plain 503",
			in:      Input{HTTPStatus: 503, Body: longBody},
			result:  domain.OutcomeBlocked,
			service: "http_503",
		},
		{
			name:    "plain 404",
			in:      Input{HTTPStatus: 404, Body: longBody},
			result:  domain.OutcomeBlocked,
			service: "http_404",
		},
		{
			name:   "short error page",
			in:     Input{HTTPStatus: 200, Body: "access denied"},
			result: domain.OutcomeEmpty,
		},
		{
			name:   "short but harmless page",
			in:     Input{HTTPStatus: 200, Body: "hello world"},
			result: domain.OutcomeOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := v.Classify(tt.in)
			require.Equal(t, tt.result, c.Result)
			require.Equal(t, tt.service, c.Service)
		})
	}
}

func TestClassifyCustomPatternsReplaceDefaults(t *testing.T) {
	t.Parallel()
	v := New(Config{
		Patterns: []Pattern{
			{Service: "homebrew", Where: WhereBody, Needle: "our robot detector"},
		},
	}, logger.NewNoOp())

	c := v.Classify(Input{HTTPStatus: 200, Body: "our robot detector says no"})
	require.Equal(t, domain.OutcomeBlocked, c.Result)
	require.Equal(t, "homebrew", c.Service)

	// The built-in table is gone, so a Cloudflare page passes through to
	// the status fallback instead.
	c = v.Classify(Input{HTTPStatus: 403, Body: "just a moment..."})
	require.Equal(t, "http_403", c.Service)
}

func TestClassifyPatternOrderWins(t *testing.T) {
	t.Parallel()
	v := New(Config{
		Patterns: []Pattern{
			{Service: "first", Where: WhereBody, Needle: "overlap"},
			{Service: "second", Where: WhereBody, Needle: "overlap"},
		},
	}, logger.NewNoOp())

	c := v.Classify(Input{HTTPStatus: 200, Body: "overlap here"})
	require.Equal(t, "first", c.Service)
}

func TestClassifyCustomLengthFloor(t *testing.T) {
	t.Parallel()
	v := New(Config{MinContentLength: 20}, logger.NewNoOp())

	// 21 chars with an error word, above the custom floor.
	c := v.Classify(Input{HTTPStatus: 200, Body: "error but long enough"})
	require.Equal(t, domain.OutcomeOK, c.Result)

	c = v.Classify(Input{HTTPStatus: 200, Body: "error short"})
	require.Equal(t, domain.OutcomeEmpty, c.Result)
}

func TestDefaultPatternsAreWellFormed(t *testing.T) {
	t.Parallel()

	for _, p := range DefaultPatterns() {
		require.NotEmpty(t, p.Service)
		require.NotEmpty(t, p.Needle)
		switch p.Where {
		case WhereBody, WhereTitle, WhereHeader, WhereCookie:
		default:
			t.Fatalf("unknown pattern location %q", p.Where)
		}
	}
}
