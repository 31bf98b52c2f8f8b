package insider

import (
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/voluzi/gridpilot/internal/browser"
)

// ScanReport collects every listing of a scan, failed ones included.
type ScanReport struct {
	Listings []JobListing
}

func (r *ScanReport) Failed() []JobListing {
	var out []JobListing
	for _, l := range r.Listings {
		if l.Err != nil {
			out = append(out, l)
		}
	}
	return out
}

// Mismatched returns the listings that parsed but do not satisfy the filters.
func (r *ScanReport) Mismatched() []JobListing {
	var out []JobListing
	for _, l := range r.Listings {
		if l.Err == nil && !l.Matches() {
			out = append(out, l)
		}
	}
	return out
}

// ScanListings inspects count listings one at a time. A failure on one listing is
// recorded on it and the scan moves on.
func ScanListings(b browser.Driver, count int) *ScanReport {
	report := &ScanReport{Listings: make([]JobListing, 0, count)}
	for i := 0; i < count; i++ {
		l := scanListing(b, i)
		logger := log.WithFields(log.Fields{
			"index":      i,
			"title":      l.Title,
			"department": l.MatchesDepartment,
			"location":   l.MatchesLocation,
		})
		if l.Err != nil {
			logger.WithError(l.Err).Warn("error processing position")
		} else {
			logger.WithFields(log.Fields{
				"new_tab":       l.HasNewTabApplyFlow,
				"external_form": l.ReachedExternalForm,
			}).Info("position checked")
		}
		report.Listings = append(report.Listings, l)
	}
	return report
}

func scanListing(b browser.Driver, i int) JobListing {
	html, err := b.OuterHTML(listing(i))
	if err != nil {
		return JobListing{Index: i, Err: err}
	}
	l, err := ParseListing(html)
	l.Index = i
	if err != nil {
		l.Err = err
		return l
	}

	if err := b.Hover(listing(i)); err != nil {
		l.Err = err
		return l
	}
	if err := b.WaitClickable(viewRole(i)); err != nil {
		l.Err = err
		return l
	}

	err = b.ClickToNewTab(viewRole(i), func(tab browser.Driver) error {
		l.HasNewTabApplyFlow = true
		if err := tab.WaitClickable(ApplyButton); err != nil {
			return err
		}
		if err := tab.Click(ApplyButton); err != nil {
			return err
		}
		if err := tab.WaitURLContains(ExternalFormHost); err != nil {
			log.WithError(err).WithField("title", l.Title).Debug("application form not reached")
		}
		url, err := tab.Location()
		if err != nil {
			return err
		}
		l.ReachedExternalForm = strings.Contains(url, ExternalFormHost)
		return nil
	})
	if errors.Is(err, browser.ErrNoNewTab) {
		log.WithField("title", l.Title).Warn("view role did not open a new tab")
		return l
	}
	l.Err = err
	return l
}
