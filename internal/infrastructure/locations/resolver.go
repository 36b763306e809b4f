// Package locations maps a user's municipality to seed pages.
package locations

import (
	"net/url"
	"strings"

	"CivicScanner/internal/config"
	"CivicScanner/internal/ports"
)

// DefaultSeeds are used when neither configured sites nor source URLs apply.
var DefaultSeeds = []string{
	"https://www.orlando.gov/Our-Government/Mayor-City-Council/City-Council-Meetings",
	"https://www.orangecountyfl.net/OpenGovernment/BoardofCountyCommissioners/Agenda.aspx",
}

// civicPaths are common locations of agenda and notice pages on municipal sites.
var civicPaths = []string{
	"agendas",
	"agenda-center",
	"AgendaCenter",
	"minutes",
	"meetings",
	"city-council",
	"public-notices",
	"notices",
	"calendar",
}

// Resolver implements ports.SeedResolver over configured sites.
type Resolver struct {
	sites    []config.SiteConfig
	fallback []string
}

var _ ports.SeedResolver = (*Resolver)(nil)

// NewResolver uses sourceURLs (from CIVIC_SOURCE_URLS) when no site matches,
// and DefaultSeeds when sourceURLs is empty.
func NewResolver(sites []config.SiteConfig, sourceURLs []string) *Resolver {
	fallback := sourceURLs
	if len(fallback) == 0 {
		fallback = DefaultSeeds
	}
	return &Resolver{sites: sites, fallback: fallback}
}

// SeedsFor returns the seeds of every site in the city. Region and country
// narrow the match only when both the query and the site set them.
func (r *Resolver) SeedsFor(city, region, country string) []string {
	var seeds []string
	for _, site := range r.sites {
		if !matches(site.City, city) {
			continue
		}
		if region != "" && site.Region != "" && !strings.EqualFold(site.Region, region) {
			continue
		}
		if country != "" && site.Country != "" && !strings.EqualFold(site.Country, country) {
			continue
		}
		seeds = append(seeds, site.Seeds...)
	}

	if len(seeds) == 0 {
		seeds = r.fallback
	}
	return dedup(seeds)
}

// AllSeeds lists every configured seed, or the fallback when no site is configured.
func (r *Resolver) AllSeeds() []string {
	var seeds []string
	for _, site := range r.sites {
		seeds = append(seeds, site.Seeds...)
	}
	if len(seeds) == 0 {
		seeds = r.fallback
	}
	return dedup(seeds)
}

// GuessSeedsForDomain lists common civic paths under base plus its homepage.
func GuessSeedsForDomain(base string) []string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return nil
	}

	seeds := make([]string, 0, len(civicPaths)+1)
	for _, p := range civicPaths {
		seeds = append(seeds, base+"/"+p)
	}
	seeds = append(seeds, base+"/")
	return dedup(seeds)
}

// ExpandSeeds replaces every bare-domain seed ("https://city.gov" or
// "https://city.gov/") with GuessSeedsForDomain; other seeds pass through.
func ExpandSeeds(seeds []string) []string {
	var out []string
	for _, seed := range seeds {
		if base, ok := bareDomain(seed); ok {
			out = append(out, GuessSeedsForDomain(base)...)
			continue
		}
		out = append(out, seed)
	}
	return dedup(out)
}

func bareDomain(seed string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", false
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" || u.Fragment != "" {
		return "", false
	}
	return u.Scheme + "://" + u.Host, true
}

func matches(siteCity, city string) bool {
	return city != "" && strings.EqualFold(strings.TrimSpace(siteCity), strings.TrimSpace(city))
}

func dedup(items []string) []string {
	out := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
