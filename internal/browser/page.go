package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/jonesrussell/national-treasure/internal/domain"
	"github.com/jonesrussell/national-treasure/internal/logger"
)

// networkQuietWindow is how long the network must stay silent before a
// networkidle wait is satisfied.
const networkQuietWindow = 500 * time.Millisecond

// ResponseMeta is the main document response observed during navigation.
// Header keys are lowercased.
type ResponseMeta struct {
	Status  int
	URL     string
	Headers map[string]string
}

// Page is a scoped tab handle. All methods honor the deadline of the
// context they are given.
type Page struct {
	ctx     context.Context
	cancel  context.CancelFunc
	stealth bool
	logger  logger.Interface

	mu           sync.Mutex
	response     *ResponseMeta
	lastActivity time.Time
	domReady     chan struct{}
}

// listen wires the DevTools event stream: it records the main document
// response and tracks network activity for networkidle waits.
func (p *Page) listen() {
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			p.touch()
			if e.Type != network.ResourceTypeDocument {
				return
			}
			meta := &ResponseMeta{
				Status:  int(e.Response.Status),
				URL:     e.Response.URL,
				Headers: lowerHeaders(e.Response.Headers),
			}
			p.mu.Lock()
			p.response = meta
			p.mu.Unlock()
		case *network.EventRequestWillBeSent, *network.EventLoadingFinished, *network.EventLoadingFailed:
			p.touch()
		case *page.EventDomContentEventFired:
			p.markDOMReady()
		}
	})
}

// markDOMReady releases a pending domcontentloaded wait. Late or repeated
// fires after the wait is released are no-ops.
func (p *Page) markDOMReady() {
	p.mu.Lock()
	if p.domReady != nil {
		close(p.domReady)
		p.domReady = nil
	}
	p.mu.Unlock()
}

func (p *Page) touch() {
	p.mu.Lock()
	p.lastActivity = time.Now()
	p.mu.Unlock()
}

func lowerHeaders(h network.Headers) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return out
}

// Navigate loads the URL under the given deadline and wait strategy and
// returns the main document response. A nil response with nil error means
// navigation finished without producing a response object; callers treat
// that as an error-class outcome.
func (p *Page) Navigate(ctx context.Context, url, waitStrategy string, timeout time.Duration) (*ResponseMeta, error) {
	navCtx, cancel := context.WithTimeout(p.withDeadline(ctx), timeout)
	defer cancel()

	actions := []chromedp.Action{network.Enable()}
	if p.stealth {
		actions = append(actions, chromedp.ActionFunc(func(c context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(c)
			return err
		}))
	}
	switch waitStrategy {
	case domain.WaitNetworkIdle:
		actions = append(actions, chromedp.Navigate(url), p.waitNetworkIdle())
	case domain.WaitDOMContentLoaded:
		// chromedp.Navigate blocks until the load event, so the faster
		// strategy issues the navigation itself and returns on
		// DOMContentLoaded.
		ready := make(chan struct{})
		p.mu.Lock()
		p.domReady = ready
		p.mu.Unlock()
		actions = append(actions, p.navigateRaw(url), waitSignal(ready))
	default:
		actions = append(actions, chromedp.Navigate(url))
	}

	if err := chromedp.Run(navCtx, actions...); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.response, nil
}

// navigateRaw starts a navigation without waiting for the load event.
func (p *Page) navigateRaw(url string) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		_, _, errorText, _, err := page.Navigate(url).Do(c)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("page load error: %s", errorText)
		}
		return nil
	})
}

// waitSignal blocks until the channel closes or the context expires.
func waitSignal(ch <-chan struct{}) chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		select {
		case <-c.Done():
			return c.Err()
		case <-ch:
			return nil
		}
	})
}

// waitNetworkIdle blocks until no network event has arrived for the quiet
// window, or the context expires.
func (p *Page) waitNetworkIdle() chromedp.Action {
	return chromedp.ActionFunc(func(c context.Context) error {
		ticker := time.NewTicker(50 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				return c.Err()
			case <-ticker.C:
				p.mu.Lock()
				quiet := time.Since(p.lastActivity) >= networkQuietWindow
				p.mu.Unlock()
				if quiet {
					return nil
				}
			}
		}
	})
}

// withDeadline derives a run context from the tab that also honors the
// caller's deadline.
func (p *Page) withDeadline(ctx context.Context) context.Context {
	if deadline, ok := ctx.Deadline(); ok {
		derived, cancel := context.WithDeadline(p.ctx, deadline)
		go func() {
			<-derived.Done()
			cancel()
		}()
		return derived
	}
	return p.ctx
}

// Title returns the document title.
func (p *Page) Title(ctx context.Context) (string, error) {
	var title string
	if err := chromedp.Run(p.withDeadline(ctx), chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to get title: %w", err)
	}
	return title, nil
}

// BodyText returns the page's visible text, capped at maxLen bytes.
func (p *Page) BodyText(ctx context.Context, maxLen int) (string, error) {
	var text string
	err := chromedp.Run(p.withDeadline(ctx),
		chromedp.Evaluate(`document.body ? document.body.innerText : ''`, &text))
	if err != nil {
		return "", fmt.Errorf("failed to get body text: %w", err)
	}
	if maxLen > 0 && len(text) > maxLen {
		text = text[:maxLen]
	}
	return text, nil
}

// HTML returns the full serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	err := chromedp.Run(p.withDeadline(ctx),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	if err != nil {
		return "", fmt.Errorf("failed to get html: %w", err)
	}
	return html, nil
}

// Screenshot captures a full-page screenshot as PNG bytes.
func (p *Page) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := chromedp.Run(p.withDeadline(ctx), chromedp.FullScreenshot(&buf, 90)); err != nil {
		return nil, fmt.Errorf("failed to capture screenshot: %w", err)
	}
	return buf, nil
}

// PDF renders the page to PDF bytes.
func (p *Page) PDF(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := chromedp.Run(p.withDeadline(ctx), chromedp.ActionFunc(func(c context.Context) error {
		var err error
		buf, _, err = page.PrintToPDF().WithPrintBackground(true).Do(c)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf, nil
}

// CookieNames returns the lowercased names of all cookies visible to the
// page, for the validator's presence checks.
func (p *Page) CookieNames(ctx context.Context) ([]string, error) {
	var names []string
	err := chromedp.Run(p.withDeadline(ctx), chromedp.ActionFunc(func(c context.Context) error {
		cookies, err := storage.GetCookies().Do(c)
		if err != nil {
			return err
		}
		for _, ck := range cookies {
			names = append(names, strings.ToLower(ck.Name))
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	return names, nil
}

// SetCookie installs a cookie before navigation.
func (p *Page) SetCookie(ctx context.Context, name, value, cookieDomain string) error {
	err := chromedp.Run(p.withDeadline(ctx), chromedp.ActionFunc(func(c context.Context) error {
		return network.SetCookie(name, value).WithDomain(cookieDomain).Do(c)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookie %s: %w", name, err)
	}
	return nil
}

// Evaluate runs a script and unmarshals its result into out. Promise
// results are awaited, so behavior scripts can be async.
func (p *Page) Evaluate(ctx context.Context, script string, out any) error {
	err := chromedp.Run(p.withDeadline(ctx),
		chromedp.Evaluate(script, out, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
			return ep.WithAwaitPromise(true)
		}))
	if err != nil {
		return fmt.Errorf("failed to evaluate script: %w", err)
	}
	return nil
}

// SendEscape sends an Escape keypress, used to dismiss modals.
func (p *Page) SendEscape(ctx context.Context) error {
	if err := chromedp.Run(p.withDeadline(ctx), chromedp.KeyEvent(kb.Escape)); err != nil {
		return fmt.Errorf("failed to send escape: %w", err)
	}
	return nil
}

// Close tears the tab down.
func (p *Page) Close() {
	p.cancel()
}
