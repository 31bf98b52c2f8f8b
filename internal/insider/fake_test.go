package insider

import (
	"fmt"
	"strings"

	"github.com/voluzi/gridpilot/internal/browser"
)

// fakeDriver scripts a browser. Selectors listed in fail return an error from
// any call, html maps selectors to markup.
type fakeDriver struct {
	calls    []string
	title    string
	url      string
	count    int
	html     map[string]string
	fail     map[string]error
	hidden   map[string]bool
	noNewTab map[string]bool
	tab      *fakeDriver
	quit     int
	shots    []string
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		title:    "Insider - #1 AI-native Omnichannel Experience Platform",
		html:     map[string]string{},
		fail:     map[string]error{},
		hidden:   map[string]bool{},
		noNewTab: map[string]bool{},
	}
}

var _ browser.Driver = (*fakeDriver)(nil)

func (f *fakeDriver) call(op, sel string) error {
	f.calls = append(f.calls, op+" "+sel)
	return f.fail[sel]
}

func (f *fakeDriver) Navigate(url string) error {
	if err := f.call("navigate", url); err != nil {
		return err
	}
	f.url = url
	return nil
}

func (f *fakeDriver) Title() (string, error) { return f.title, nil }

func (f *fakeDriver) Location() (string, error) { return f.url, nil }

func (f *fakeDriver) WaitPresent(sel string) error   { return f.call("present", sel) }
func (f *fakeDriver) WaitVisible(sel string) error   { return f.call("visible", sel) }
func (f *fakeDriver) WaitClickable(sel string) error { return f.call("clickable", sel) }

func (f *fakeDriver) WaitURLContains(fragment string) error {
	if err := f.call("url", fragment); err != nil {
		return err
	}
	if !strings.Contains(f.url, fragment) {
		return fmt.Errorf("url %q does not contain %q", f.url, fragment)
	}
	return nil
}

func (f *fakeDriver) Displayed(sel string) (bool, error) {
	return !f.hidden[sel], f.call("displayed", sel)
}

func (f *fakeDriver) Count(sel string) (int, error) { return f.count, f.call("count", sel) }

func (f *fakeDriver) OuterHTML(sel string) (string, error) {
	return f.html[sel], f.call("html", sel)
}

func (f *fakeDriver) ScrollIntoView(sel string) error { return f.call("scroll", sel) }
func (f *fakeDriver) Hover(sel string) error          { return f.call("hover", sel) }

func (f *fakeDriver) Click(sel string) error {
	if err := f.call("click", sel); err != nil {
		return err
	}
	switch sel {
	case CareersLink:
		f.url = "https://useinsider.com/careers/"
	case SeeAllQAJobs:
		f.url = "https://useinsider.com/careers/open-positions/?department=qualityassurance"
	case ApplyButton:
		f.url = "https://jobs.lever.co/useinsider/123/apply"
	}
	return nil
}

func (f *fakeDriver) SelectOptionByText(sel, text string) error {
	return f.call("select", sel+"="+text)
}

func (f *fakeDriver) ClickToNewTab(sel string, fn func(tab browser.Driver) error) error {
	if err := f.call("newtab", sel); err != nil {
		return err
	}
	if f.noNewTab[sel] {
		return browser.ErrNoNewTab
	}
	tab := f.tab
	if tab == nil {
		tab = newFakeDriver()
		tab.url = "https://jobs.lever.co/useinsider/123"
	}
	return fn(tab)
}

func (f *fakeDriver) DismissCookieConsent(sel string) browser.ConsentStatus {
	_ = f.call("consent", sel)
	return browser.ConsentAbsent
}

func (f *fakeDriver) Screenshot(name string) (string, error) {
	f.shots = append(f.shots, name)
	return name, nil
}

func (f *fakeDriver) Quit() error {
	f.quit++
	return nil
}

func listingHTML(title, department, location string) string {
	return fmt.Sprintf(`<div class="position-list-item col-12 col-lg-4">
  <div class="position-list-item-wrapper bg-light">
    <p class="position-title font-weight-bold">%s</p>
    <span class="position-department text-large font-weight-600 text-primary">%s</span>
    <div class="position-location text-large">%s</div>
    <a href="https://jobs.lever.co/useinsider/123" class="btn btn-navy rounded pt-2 pr-5 pb-2 pl-5">View Role</a>
  </div>
</div>`, title, department, location)
}
