// Package insider holds the browser scenarios run against useinsider.com.
package insider

import (
	"context"
	"fmt"
	"strings"

	"emperror.dev/errors"
	log "github.com/sirupsen/logrus"

	"github.com/voluzi/gridpilot/internal/browser"
)

// Scenario is one browser check. Screenshot names the file written when it fails.
type Scenario struct {
	Name       string
	Screenshot string
	Run        func(b browser.Driver) error
}

// ErrScenarioFailed wraps every scenario failure.
var ErrScenarioFailed = errors.New("scenario failed")

var (
	CheckChrome = Scenario{Name: "check-chrome", Run: func(browser.Driver) error { return nil }}
	Homepage    = Scenario{Name: "homepage", Screenshot: "home_page_error.png", Run: homepage}
	CareersPage = Scenario{Name: "careers-page", Screenshot: "careers_page_error.png", Run: careersPage}
	QAJobs      = Scenario{Name: "qa-jobs", Screenshot: "qa_jobs_error.png", Run: qaJobs}
)

// All returns every scenario in execution order.
func All() []Scenario {
	return []Scenario{CheckChrome, Homepage, CareersPage, QAJobs}
}

// Names lists the name of every scenario in execution order.
func Names() []string {
	var names []string
	for _, sc := range All() {
		names = append(names, sc.Name)
	}
	return names
}

// Select returns the named scenarios in the order given.
func Select(names []string) ([]Scenario, error) {
	byName := make(map[string]Scenario)
	for _, sc := range All() {
		byName[sc.Name] = sc
	}

	out := make([]Scenario, 0, len(names))
	for _, name := range names {
		sc, ok := byName[name]
		if !ok {
			return nil, errors.WithDetails(errors.Errorf("unknown scenario %q", name), "known", strings.Join(Names(), ","))
		}
		out = append(out, sc)
	}
	return out, nil
}

// RunScenario acquires a driver, runs sc and always quits the driver. On
// failure a screenshot is taken before quitting.
func RunScenario(ctx context.Context, open browser.Opener, sc Scenario) (err error) {
	logger := log.WithField("scenario", sc.Name)

	b, err := open(ctx)
	if err != nil {
		return errors.WithDetails(errors.WrapIf(err, "opening browser"), "scenario", sc.Name)
	}
	defer func() {
		if qerr := b.Quit(); qerr != nil {
			logger.WithError(qerr).Warn("failed to close browser")
		}
	}()

	if err := sc.Run(b); err != nil {
		logger.WithError(err).Error("scenario failed")
		if sc.Screenshot != "" {
			if path, serr := b.Screenshot(sc.Screenshot); serr != nil {
				logger.WithError(serr).Warn("could not save screenshot")
			} else {
				logger.WithField("path", path).Info("screenshot saved")
			}
		}
		return errors.WithDetails(errors.Wrapf(ErrScenarioFailed, "%s: %v", sc.Name, err), "scenario", sc.Name)
	}
	logger.Info("scenario passed")
	return nil
}

// RunAll runs the scenarios in order. A failing browser check skips the rest;
// other failures are collected.
func RunAll(ctx context.Context, open browser.Opener, scenarios []Scenario) error {
	var errs []error
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			return errors.Append(errors.Combine(errs...), err)
		}
		err := RunScenario(ctx, open, sc)
		if err == nil {
			continue
		}
		if sc.Name == CheckChrome.Name {
			return errors.WrapIf(err, "chrome is not working")
		}
		errs = append(errs, err)
	}
	return errors.Combine(errs...)
}

func homepage(b browser.Driver) error {
	if err := b.Navigate(HomeURL); err != nil {
		return err
	}
	title, err := b.Title()
	if err != nil {
		return err
	}
	if !strings.Contains(title, TitleFragment) {
		return fmt.Errorf("title %q does not contain %q", title, TitleFragment)
	}
	log.Info("homepage loaded")
	return nil
}

func careersPage(b browser.Driver) error {
	if err := b.Navigate(HomeURL); err != nil {
		return err
	}
	b.DismissCookieConsent(CookieConsent)

	if err := b.WaitPresent(Navbar); err != nil {
		return fmt.Errorf("navbar: %w", err)
	}
	if err := b.WaitVisible(CompanyMenu); err != nil {
		return fmt.Errorf("company menu: %w", err)
	}
	if err := b.Hover(CompanyMenu); err != nil {
		return err
	}
	if err := b.WaitClickable(CareersLink); err != nil {
		return fmt.Errorf("careers link: %w", err)
	}
	if err := b.Click(CareersLink); err != nil {
		return err
	}
	if err := b.WaitURLContains(CareersFragment); err != nil {
		return err
	}

	for _, section := range []string{OurLocations, LifeAtInsider} {
		if err := b.WaitPresent(section); err != nil {
			return fmt.Errorf("section %s: %w", section, err)
		}
		shown, err := b.Displayed(section)
		if err != nil {
			return err
		}
		if !shown {
			return fmt.Errorf("section %s is not visible", section)
		}
	}
	log.Info("careers page loaded")
	return nil
}

func qaJobs(b browser.Driver) error {
	if err := b.Navigate(QACareersURL); err != nil {
		return err
	}
	b.DismissCookieConsent(CookieConsent)

	if err := b.WaitClickable(SeeAllQAJobs); err != nil {
		return fmt.Errorf("see all qa jobs: %w", err)
	}
	if err := b.Click(SeeAllQAJobs); err != nil {
		return err
	}
	if err := b.WaitURLContains(OpenPositions); err != nil {
		return err
	}

	for _, f := range []struct{ sel, text string }{
		{LocationFilter, WantedLocation},
		{DeptFilter, WantedDepartment},
	} {
		if err := b.ScrollIntoView(f.sel); err != nil {
			return err
		}
		if err := b.SelectOptionByText(f.sel, f.text); err != nil {
			return err
		}
	}

	if err := b.WaitVisible(Listings); err != nil {
		return fmt.Errorf("job listings: %w", err)
	}
	count, err := b.Count(Listings)
	if err != nil {
		return err
	}
	if count == 0 {
		return errors.New("no qa jobs found after filtering")
	}
	log.WithField("count", count).Info("found qa jobs")

	report := ScanListings(b, count)
	log.WithFields(log.Fields{
		"listings":   len(report.Listings),
		"failed":     len(report.Failed()),
		"mismatched": len(report.Mismatched()),
	}).Info("job listing scan finished")
	return nil
}
