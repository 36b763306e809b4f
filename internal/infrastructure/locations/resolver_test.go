package locations

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"CivicScanner/internal/config"
)

var testSites = []config.SiteConfig{
	{Name: "orlando", City: "Orlando", Region: "FL", Country: "US", Seeds: []string{"https://orlando.gov/meetings", "https://shared.gov/"}},
	{Name: "orange", City: "orlando", Region: "FL", Seeds: []string{"https://ocfl.net/agenda", "https://shared.gov/"}},
	{Name: "springfield-il", City: "Springfield", Region: "IL", Seeds: []string{"https://springfield.il.us/agendas"}},
	{Name: "springfield-mo", City: "Springfield", Region: "MO", Seeds: []string{"https://springfieldmo.gov/agendas"}},
}

func TestSeedsForMatchesCityCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSites, nil)
	assert.Equal(t, []string{
		"https://orlando.gov/meetings",
		"https://shared.gov/",
		"https://ocfl.net/agenda",
	}, r.SeedsFor("ORLANDO", "", ""))
}

func TestSeedsForNarrowsByRegion(t *testing.T) {
	t.Parallel()

	r := NewResolver(testSites, nil)
	assert.Equal(t, []string{"https://springfieldmo.gov/agendas"}, r.SeedsFor("Springfield", "mo", "US"))
	assert.Len(t, r.SeedsFor("Springfield", "", ""), 2)
}

func TestSeedsForFallbacks(t *testing.T) {
	t.Parallel()

	withEnv := NewResolver(testSites, []string{"https://env.gov/agendas"})
	assert.Equal(t, []string{"https://env.gov/agendas"}, withEnv.SeedsFor("Tampa", "FL", "US"))

	defaults := NewResolver(nil, nil)
	assert.Equal(t, DefaultSeeds, defaults.SeedsFor("Tampa", "FL", "US"))
	assert.Equal(t, DefaultSeeds, defaults.AllSeeds())
}

func TestAllSeeds(t *testing.T) {
	t.Parallel()

	assert.Len(t, NewResolver(testSites, nil).AllSeeds(), 5)
}

func TestGuessSeedsForDomain(t *testing.T) {
	t.Parallel()

	seeds := GuessSeedsForDomain("https://city.gov/")
	assert.Equal(t, "https://city.gov/agendas", seeds[0])
	assert.Equal(t, "https://city.gov/", seeds[len(seeds)-1])
	assert.Len(t, seeds, len(civicPaths)+1)
	assert.Nil(t, GuessSeedsForDomain("  "))
}

func TestExpandSeeds(t *testing.T) {
	t.Parallel()

	got := ExpandSeeds([]string{
		"https://city.gov",
		"https://county.gov/agendas",
		"https://city.gov/",
		"ftp://files.gov/",
		"https://search.gov/?q=minutes",
	})

	want := append(GuessSeedsForDomain("https://city.gov"),
		"https://county.gov/agendas",
		"ftp://files.gov/",
		"https://search.gov/?q=minutes",
	)
	assert.Equal(t, want, got)
	assert.Empty(t, ExpandSeeds(nil))
}
