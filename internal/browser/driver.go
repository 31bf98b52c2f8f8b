package browser

import "context"

// Driver is the set of page interactions the browser scenarios rely on.
type Driver interface {
	Navigate(url string) error
	Title() (string, error)
	Location() (string, error)

	WaitPresent(sel string) error
	WaitVisible(sel string) error
	WaitClickable(sel string) error
	WaitURLContains(fragment string) error

	Displayed(sel string) (bool, error)
	Count(sel string) (int, error)
	OuterHTML(sel string) (string, error)

	ScrollIntoView(sel string) error
	Hover(sel string) error
	Click(sel string) error
	SelectOptionByText(sel, text string) error
	ClickToNewTab(sel string, fn func(tab Driver) error) error
	DismissCookieConsent(sel string) ConsentStatus

	Screenshot(name string) (string, error)
	Quit() error
}

// Opener acquires a fresh driver.
type Opener func(ctx context.Context) (Driver, error)

// NewOpener returns an Opener starting sessions with cfg.
func NewOpener(cfg Config) Opener {
	return func(ctx context.Context) (Driver, error) {
		s, err := Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
