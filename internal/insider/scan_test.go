package insider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanListings(t *testing.T) {
	b := newFakeDriver()
	b.html[listing(0)] = listingHTML("Senior QA Engineer", "Quality Assurance", "Istanbul, Turkiye")
	b.html[listing(1)] = listingHTML("QA Intern", "Quality Assurance", "Ankara, Turkiye")

	report := ScanListings(b, 2)
	require.Len(t, report.Listings, 2)

	first := report.Listings[0]
	assert.NoError(t, first.Err)
	assert.True(t, first.Matches())
	assert.True(t, first.HasNewTabApplyFlow)
	assert.True(t, first.ReachedExternalForm)

	assert.False(t, report.Listings[1].MatchesLocation)
	assert.Equal(t, []JobListing{report.Listings[1]}, report.Mismatched())
	assert.Empty(t, report.Failed())
}

func TestScanListingsIsolatesFailures(t *testing.T) {
	const n = 4
	for failing := 0; failing < n; failing++ {
		b := newFakeDriver()
		for i := 0; i < n; i++ {
			b.html[listing(i)] = listingHTML("QA Engineer", "Quality Assurance", "Istanbul, Turkiye")
		}
		b.fail[listing(failing)] = errors.New("stale element reference")

		report := ScanListings(b, n)
		require.Len(t, report.Listings, n)
		for i, l := range report.Listings {
			assert.Equal(t, i, l.Index)
			if i == failing {
				assert.Error(t, l.Err)
				continue
			}
			assert.NoError(t, l.Err, "listing %d", i)
			assert.True(t, l.Matches(), "listing %d", i)
		}
		assert.Len(t, report.Failed(), 1)
	}
}

func TestScanListingsNoNewTab(t *testing.T) {
	b := newFakeDriver()
	b.html[listing(0)] = listingHTML("QA Engineer", "Quality Assurance", "Istanbul, Turkiye")
	b.noNewTab[viewRole(0)] = true

	report := ScanListings(b, 1)
	l := report.Listings[0]
	assert.NoError(t, l.Err)
	assert.False(t, l.HasNewTabApplyFlow)
	assert.False(t, l.ReachedExternalForm)
}

func TestScanListingsApplyButtonMissing(t *testing.T) {
	b := newFakeDriver()
	b.html[listing(0)] = listingHTML("QA Engineer", "Quality Assurance", "Istanbul, Turkiye")
	b.tab = newFakeDriver()
	b.tab.fail[ApplyButton] = errors.New("timeout")

	l := ScanListings(b, 1).Listings[0]
	assert.True(t, l.HasNewTabApplyFlow)
	assert.False(t, l.ReachedExternalForm)
	assert.EqualError(t, l.Err, "timeout")
}

func TestListingSelectors(t *testing.T) {
	assert.Equal(t, "("+Listings+")[1]", listing(0))
	assert.Equal(t, "("+Listings+")[3]"+viewRoleSuffix, viewRole(2))
}
