// Package validator classifies a finished page load into ok or a typed
// block reason by matching it against an ordered signature table.
package validator

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// DefaultMinContentLength is the body length floor below which a page with
// error words is classified empty.
const DefaultMinContentLength = 500

// emptyWords are the giveaways checked under the length floor.
var emptyWords = []string{"error", "denied", "forbidden"}

// Input is the post-navigation state of a page. Body is lowercased and
// length-capped by the caller; header keys and cookie names are lowercased.
type Input struct {
	HTTPStatus int
	URL        string
	Title      string
	Body       string
	Headers    map[string]string
	Cookies    []string
}

// Config holds validator configuration.
type Config struct {
	// MinContentLength is the body length floor for the empty check.
	MinContentLength int `yaml:"min_content_length" json:"min_content_length"`
	// Patterns replaces the built-in signature table when non-empty.
	Patterns []Pattern `yaml:"patterns" json:"patterns"`
}

// Validator classifies page loads.
type Validator struct {
	minContentLength int
	patterns         []Pattern
	logger           logger.Interface
}

// New creates a validator from the configuration, falling back to the
// built-in pattern table and default length floor.
func New(cfg Config, log logger.Interface) *Validator {
	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = DefaultPatterns()
	}
	minLen := cfg.MinContentLength
	if minLen <= 0 {
		minLen = DefaultMinContentLength
	}
	return &Validator{
		minContentLength: minLen,
		patterns:         patterns,
		logger:           log,
	}
}

// Classify converts the page state into a typed classification.
//
// The signature table is consulted before the generic status fallback, so a
// 403 carrying a Cloudflare challenge page attributes to cloudflare rather
// than http_403. Captcha and rate-limit signatures map to their own result
// kinds; everything else in the table is a block.
func (v *Validator) Classify(in Input) domain.Classification {
	for _, p := range v.patterns {
		if !v.matches(p, in) {
			continue
		}
		c := domain.Classification{Result: resultFor(p.Service), Service: p.Service}
		v.logger.Debug("Page matched block signature",
			"url", in.URL, "service", p.Service, "where", p.Where)
		return c
	}

	if in.HTTPStatus == 429 {
		return domain.Classification{
			Result:  domain.OutcomeRateLimited,
			Service: domain.ServiceRateLimit,
		}
	}
	if in.HTTPStatus >= 400 {
		return domain.Classification{
			Result:  domain.OutcomeBlocked,
			Service: fmt.Sprintf("http_%d", in.HTTPStatus),
		}
	}

	if len(in.Body) < v.minContentLength && containsAny(in.Body, emptyWords) {
		return domain.Classification{Result: domain.OutcomeEmpty}
	}

	return domain.Classification{Result: domain.OutcomeOK}
}

func (v *Validator) matches(p Pattern, in Input) bool {
	needle := strings.ToLower(p.Needle)
	switch p.Where {
	case WhereBody:
		return strings.Contains(in.Body, needle)
	case WhereTitle:
		return strings.Contains(strings.ToLower(in.Title), needle)
	case WhereHeader:
		_, ok := in.Headers[needle]
		return ok
	case WhereCookie:
		for _, name := range in.Cookies {
			if strings.Contains(name, needle) {
				return true
			}
		}
	}
	return false
}

// resultFor maps a service tag to its outcome kind.
func resultFor(service string) string {
	switch service {
	case domain.ServiceCaptcha:
		return domain.OutcomeCaptcha
	case domain.ServiceRateLimit:
		return domain.OutcomeRateLimited
	}
	return domain.OutcomeBlocked
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
