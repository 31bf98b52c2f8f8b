package insider

import "fmt"

const (
	HomeURL       = "https://useinsider.com/"
	QACareersURL  = "https://useinsider.com/careers/quality-assurance/"
	CookieConsent = "#wt-cli-accept-all-btn"

	Navbar         = ".navbar-nav"
	CompanyMenu    = "//a[contains(text(), 'Company')]"
	CareersLink    = "//a[contains(@class, 'dropdown-sub') and contains(text(), 'Careers')]"
	OurLocations   = "#career-our-location"
	LifeAtInsider  = "//h2[contains(text(), 'Life at Insider')]"
	SeeAllQAJobs   = "//a[contains(@class, 'btn') and contains(text(), 'See all QA jobs')]"
	LocationFilter = "//select[@id='filter-by-location']"
	DeptFilter     = "//select[@id='filter-by-department']"
	Listings       = "//div[contains(@class, 'position-list')]//div[contains(@class, 'position-list-item') and not(contains(@class, 'position-list-item-wrapper'))]"
	ApplyButton    = "//a[contains(@class, 'postings-btn') and contains(text(), 'Apply for this job')]"

	viewRoleSuffix = "//a[contains(@class, 'btn') and contains(text(), 'View Role')]"
)

const (
	TitleFragment    = "Insider"
	CareersFragment  = "careers"
	OpenPositions    = "open-positions"
	ExternalFormHost = "lever.co"
	WantedLocation   = "Istanbul, Turkiye"
	WantedDepartment = "Quality Assurance"
)

// listing addresses the i-th (zero based) job listing.
func listing(i int) string {
	return fmt.Sprintf("(%s)[%d]", Listings, i+1)
}

func viewRole(i int) string {
	return listing(i) + viewRoleSuffix
}
