package insider

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JobListing is one open position seen on the filtered jobs page.
type JobListing struct {
	Index      int
	Title      string
	Department string
	Location   string

	MatchesDepartment   bool
	MatchesLocation     bool
	HasNewTabApplyFlow  bool
	ReachedExternalForm bool

	Err error
}

// Matches reports whether the listing satisfies both filter criteria.
func (l JobListing) Matches() bool {
	return l.MatchesDepartment && l.MatchesLocation
}

// ParseListing extracts the position fields from the listing markup.
func ParseListing(html string) (JobListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return JobListing{}, err
	}

	field := func(class string) (string, error) {
		sel := doc.Find("." + class).First()
		if sel.Length() == 0 {
			return "", fmt.Errorf("listing has no %s", class)
		}
		return strings.Join(strings.Fields(sel.Text()), " "), nil
	}

	var l JobListing
	if l.Title, err = field("position-title"); err != nil {
		return l, err
	}
	if l.Department, err = field("position-department"); err != nil {
		return l, err
	}
	if l.Location, err = field("position-location"); err != nil {
		return l, err
	}
	l.classify()
	return l, nil
}

func (l *JobListing) classify() {
	l.MatchesDepartment = strings.Contains(l.Department, WantedDepartment)
	l.MatchesLocation = strings.Contains(l.Location, WantedLocation)
}
