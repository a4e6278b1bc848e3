// Package scraper handles scrape jobs: plain HTTP extraction of selected
// fields and links from a page, no browser involved.
package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/national-treasure/internal/logger"
)

// Config holds scraper configuration.
type Config struct {
	UserAgent   string        `yaml:"user_agent"    json:"user_agent"`
	Timeout     time.Duration `yaml:"timeout"       json:"timeout"`
	MaxBodySize int           `yaml:"max_body_size" json:"max_body_size"`
}

// DefaultConfig returns the scraper defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36",
		Timeout:     30 * time.Second,
		MaxBodySize: 10 * 1024 * 1024,
	}
}

// Result is the extraction output for one page.
type Result struct {
	URL        string              `json:"url"`
	StatusCode int                 `json:"status_code"`
	Title      string              `json:"title"`
	Fields     map[string][]string `json:"fields,omitempty"`
	Links      []string            `json:"links,omitempty"`
}

// Scraper fetches and extracts pages.
type Scraper struct {
	cfg    Config
	logger logger.Interface
}

// New creates a scraper.
func New(cfg Config, log logger.Interface) *Scraper {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	return &Scraper{cfg: cfg, logger: log.WithComponent("scraper")}
}

// Scrape fetches the URL and extracts text for each named selector plus
// the page title and absolute links.
func (s *Scraper) Scrape(ctx context.Context, url string, selectors map[string]string) (*Result, error) {
	result := &Result{
		URL:    url,
		Fields: make(map[string][]string),
	}

	c := colly.NewCollector(
		colly.UserAgent(s.cfg.UserAgent),
		colly.MaxBodySize(s.cfg.MaxBodySize),
		colly.StdlibContext(ctx),
	)
	c.SetRequestTimeout(s.cfg.Timeout)

	var scrapeErr error
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			result.StatusCode = r.StatusCode
		}
		scrapeErr = err
	})

	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
	})

	c.OnHTML("html", func(e *colly.HTMLElement) {
		result.Title = strings.TrimSpace(e.DOM.Find("title").First().Text())

		for name, sel := range selectors {
			e.DOM.Find(sel).Each(func(_ int, sn *goquery.Selection) {
				if text := strings.TrimSpace(sn.Text()); text != "" {
					result.Fields[name] = append(result.Fields[name], text)
				}
			})
		}

		e.DOM.Find("a[href]").Each(func(_ int, sn *goquery.Selection) {
			href, ok := sn.Attr("href")
			if !ok {
				return
			}
			if abs := e.Request.AbsoluteURL(href); abs != "" {
				result.Links = append(result.Links, abs)
			}
		})
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to visit %s: %w", url, err)
	}
	c.Wait()

	if scrapeErr != nil {
		return nil, fmt.Errorf("failed to scrape %s: %w", url, scrapeErr)
	}

	s.logger.Debug("Page scraped",
		"url", url, "status", result.StatusCode,
		"fields", len(result.Fields), "links", len(result.Links))
	return result, nil
}
