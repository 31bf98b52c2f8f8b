package browser

import (
	"fmt"
	"time"
)

const (
	DefaultWindowWidth  = 1920
	DefaultWindowHeight = 1080
)

type Config struct {
	// HubURL is the Selenium grid endpoint. A local headless Chrome is started when empty.
	HubURL string

	WindowWidth  int
	WindowHeight int

	// WaitTimeout bounds every explicit wait.
	WaitTimeout time.Duration

	// ConsentTimeout bounds the optional cookie consent dismissal.
	ConsentTimeout time.Duration

	// NewTabDelay is slept after a new tab shows up, before it is used.
	NewTabDelay time.Duration

	// ScreenshotDir receives failure screenshots.
	ScreenshotDir string
}

func DefaultConfig() Config {
	return Config{
		WindowWidth:    DefaultWindowWidth,
		WindowHeight:   DefaultWindowHeight,
		WaitTimeout:    10 * time.Second,
		ConsentTimeout: 5 * time.Second,
		NewTabDelay:    2 * time.Second,
		ScreenshotDir:  ".",
	}
}

// ChromeArgs are the command line switches used for both remote and local browsers.
func (c Config) ChromeArgs() []string {
	return []string{
		"--headless=new",
		"--no-sandbox",
		"--disable-dev-shm-usage",
		fmt.Sprintf("--window-size=%d,%d", c.WindowWidth, c.WindowHeight),
	}
}
