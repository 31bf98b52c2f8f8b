// Package browser drives Chrome through the devtools protocol, either on a
// Selenium grid or as a local headless process.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
)

// ErrNoNewTab is returned when a click was expected to open a tab and did not.
var ErrNoNewTab = errors.New("no new tab opened")

var _ Driver = (*Session)(nil)

// Session owns one browser tab. Selectors starting with "/" or "(" are XPath
// expressions, anything else is a CSS query.
type Session struct {
	cfg    Config
	ctx    context.Context
	cancel context.CancelFunc

	wd     *WebDriver
	remote *RemoteSession
}

// Open starts a browser. With a hub URL a grid session is created and driven
// over its devtools endpoint, otherwise Chrome is launched locally.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	s := &Session{cfg: cfg}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if cfg.HubURL != "" {
		s.wd = NewWebDriver(cfg.HubURL, nil)
		remote, err := s.wd.Start(ctx, cfg.ChromeArgs())
		if err != nil {
			return nil, fmt.Errorf("creating grid session: %w", err)
		}
		s.remote = remote
		log.WithFields(log.Fields{
			"session": remote.ID,
			"browser": remote.BrowserName,
			"version": remote.BrowserVersion,
		}).Debug("grid session created")
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, remote.CDPURL, chromedp.NoModifyURL)
	} else {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", "new"),
			chromedp.NoSandbox,
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		)
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, opts...)
	}

	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	s.ctx = tabCtx
	s.cancel = func() {
		tabCancel()
		allocCancel()
	}

	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(cfg.WindowWidth), int64(cfg.WindowHeight))); err != nil {
		_ = s.Quit()
		return nil, fmt.Errorf("starting browser: %w", err)
	}
	return s, nil
}

// Quit closes the browser and releases the grid session. It is safe to call more than once.
func (s *Session) Quit() error {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.remote == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.WaitTimeout)
	defer cancel()
	id := s.remote.ID
	s.remote = nil
	if err := s.wd.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("deleting grid session %s: %w", id, err)
	}
	log.WithField("session", id).Debug("grid session deleted")
	return nil
}

func isXPath(sel string) bool {
	return strings.HasPrefix(sel, "/") || strings.HasPrefix(sel, "(")
}

func queryOption(sel string) chromedp.QueryOption {
	if isXPath(sel) {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (s *Session) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

func (s *Session) Navigate(url string) error {
	return s.run(s.cfg.WaitTimeout*3, chromedp.Navigate(url))
}

func (s *Session) Title() (string, error) {
	var title string
	err := s.run(s.cfg.WaitTimeout, chromedp.Title(&title))
	return title, err
}

func (s *Session) Location() (string, error) {
	var url string
	err := s.run(s.cfg.WaitTimeout, chromedp.Location(&url))
	return url, err
}

// WaitPresent waits until sel is attached to the document.
func (s *Session) WaitPresent(sel string) error {
	return s.run(s.cfg.WaitTimeout, chromedp.WaitReady(sel, queryOption(sel)))
}

func (s *Session) WaitVisible(sel string) error {
	return s.run(s.cfg.WaitTimeout, chromedp.WaitVisible(sel, queryOption(sel)))
}

// WaitClickable waits until sel is visible and enabled.
func (s *Session) WaitClickable(sel string) error {
	return s.waitClickable(sel, s.cfg.WaitTimeout)
}

func (s *Session) waitClickable(sel string, timeout time.Duration) error {
	return s.run(timeout,
		chromedp.WaitVisible(sel, queryOption(sel)),
		chromedp.WaitEnabled(sel, queryOption(sel)),
	)
}

func (s *Session) WaitURLContains(fragment string) error {
	var ok bool
	expr := fmt.Sprintf("window.location.href.includes(%q)", fragment)
	err := s.run(s.cfg.WaitTimeout+time.Second,
		chromedp.Poll(expr, &ok, chromedp.WithPollingTimeout(s.cfg.WaitTimeout)),
	)
	if err != nil {
		return fmt.Errorf("waiting for url to contain %q: %w", fragment, err)
	}
	return nil
}

// Displayed reports whether sel is present and rendered.
func (s *Session) Displayed(sel string) (bool, error) {
	var nodes []*cdp.Node
	if err := s.run(s.cfg.WaitTimeout, chromedp.Nodes(sel, &nodes, queryOption(sel), chromedp.AtLeast(0))); err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}

	var visible bool
	err := s.run(s.cfg.WaitTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
		visible = err == nil
		return nil
	}))
	return visible, err
}

// Count returns how many elements match sel without waiting.
func (s *Session) Count(sel string) (int, error) {
	var nodes []*cdp.Node
	err := s.run(s.cfg.WaitTimeout, chromedp.Nodes(sel, &nodes, queryOption(sel), chromedp.AtLeast(0)))
	return len(nodes), err
}

func (s *Session) OuterHTML(sel string) (string, error) {
	var html string
	err := s.run(s.cfg.WaitTimeout, chromedp.OuterHTML(sel, &html, queryOption(sel)))
	return html, err
}

func (s *Session) ScrollIntoView(sel string) error {
	return s.run(s.cfg.WaitTimeout, chromedp.ScrollIntoView(sel, queryOption(sel)))
}

func (s *Session) Click(sel string) error {
	return s.run(s.cfg.WaitTimeout, chromedp.Click(sel, queryOption(sel)))
}

// Hover moves the mouse to the centre of sel.
func (s *Session) Hover(sel string) error {
	var nodes []*cdp.Node
	return s.run(s.cfg.WaitTimeout,
		chromedp.ScrollIntoView(sel, queryOption(sel)),
		chromedp.Nodes(sel, &nodes, queryOption(sel)),
		chromedp.ActionFunc(func(ctx context.Context) error {
			box, err := dom.GetBoxModel().WithNodeID(nodes[0].NodeID).Do(ctx)
			if err != nil {
				return err
			}
			x, y := centre(box.Content)
			return input.DispatchMouseEvent(input.MouseMoved, x, y).Do(ctx)
		}),
	)
}

func centre(q dom.Quad) (float64, float64) {
	var x, y float64
	points := len(q) / 2
	for i := 0; i < points; i++ {
		x += q[2*i]
		y += q[2*i+1]
	}
	return x / float64(points), y / float64(points)
}

// SelectOptionByText picks the option of the select element sel whose label contains text.
func (s *Session) SelectOptionByText(sel, text string) error {
	if err := s.WaitClickable(sel); err != nil {
		return err
	}
	if err := s.WaitPresent(optionXPath(sel, text)); err != nil {
		return fmt.Errorf("option %q not found in %s: %w", text, sel, err)
	}

	args, err := json.Marshal([]interface{}{sel, isXPath(sel), text})
	if err != nil {
		return err
	}
	var selected bool
	if err := s.run(s.cfg.WaitTimeout, chromedp.Evaluate(fmt.Sprintf(selectOptionJS, args), &selected)); err != nil {
		return err
	}
	if !selected {
		return fmt.Errorf("option %q not found in %s", text, sel)
	}
	return nil
}

func optionXPath(sel, text string) string {
	if isXPath(sel) {
		return fmt.Sprintf("%s//option[contains(text(), '%s')]", sel, text)
	}
	return fmt.Sprintf("//option[contains(text(), '%s')]", text)
}

const selectOptionJS = `(function(sel, xpath, text) {
	const el = xpath
		? document.evaluate(sel, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue
		: document.querySelector(sel);
	if (!el) return false;
	for (const opt of el.options) {
		if (opt.text.includes(text)) {
			el.value = opt.value;
			el.dispatchEvent(new Event('change', {bubbles: true}));
			return true;
		}
	}
	return false;
}).apply(null, %s)`

// DismissCookieConsent clicks the consent button when it shows up within the
// consent timeout. It never fails.
func (s *Session) DismissCookieConsent(sel string) ConsentStatus {
	err := s.waitClickable(sel, s.cfg.ConsentTimeout)
	if err == nil {
		err = s.Click(sel)
		if err == nil {
			log.Info("accepted cookie consent")
			return ConsentDismissed
		}
	}

	n, countErr := s.Count(sel)
	if countErr == nil && n == 0 {
		log.Debug("no cookie prompt found, continuing")
		return ConsentAbsent
	}
	log.WithError(err).Warn("cookie prompt not dismissed, continuing")
	return ConsentTimedOut
}

// Screenshot writes a PNG of the viewport to name inside the screenshot directory.
func (s *Session) Screenshot(name string) (string, error) {
	var buf []byte
	if err := s.run(s.cfg.WaitTimeout, chromedp.CaptureScreenshot(&buf)); err != nil {
		return "", fmt.Errorf("failed to capture screenshot: %w", err)
	}

	path := filepath.Join(s.cfg.ScreenshotDir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	return path, nil
}

// ClickToNewTab clicks sel, waits for the tab it opens and hands it to fn.
// The tab is closed once fn returns.
func (s *Session) ClickToNewTab(sel string, fn func(tab Driver) error) error {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return fmt.Errorf("session has no active target")
	}
	opener := c.Target.TargetID

	waitCtx, cancelWait := context.WithTimeout(s.ctx, s.cfg.WaitTimeout)
	defer cancelWait()
	ch := chromedp.WaitNewTarget(waitCtx, func(info *target.Info) bool {
		return info.OpenerID == opener
	})

	if err := s.Click(sel); err != nil {
		return err
	}

	var id target.ID
	select {
	case id = <-ch:
	case <-waitCtx.Done():
		return ErrNoNewTab
	}
	if id == "" {
		return ErrNoNewTab
	}

	select {
	case <-time.After(s.cfg.NewTabDelay):
	case <-s.ctx.Done():
		return s.ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
	tab := &Session{cfg: s.cfg, ctx: tabCtx, cancel: tabCancel}
	defer func() {
		closeCtx, cancel := context.WithTimeout(tabCtx, s.cfg.WaitTimeout)
		defer cancel()
		if err := chromedp.Run(closeCtx, page.Close()); err != nil {
			log.WithError(err).Debug("closing tab")
		}
		tabCancel()
	}()

	return fn(tab)
}
