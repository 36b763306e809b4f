package parser

import (
	"context"
	"log/slog"
	"strings"

	"CivicScanner/internal/config"
	"CivicScanner/internal/domain"
	"CivicScanner/internal/infrastructure/fetch"
	"CivicScanner/internal/ports"
	"CivicScanner/internal/scanner"
)

// Discoverer dispatches seeds to their scanner strategy and merges the results.
type Discoverer struct {
	registry       *scanner.Registry
	defaultScanner string
	seedSites      map[string]config.SiteConfig
	logger         *slog.Logger
}

var _ ports.LinkDiscoverer = (*Discoverer)(nil)

// NewDiscoverer wires the scanner registry with config-defined sites. Seeds
// not listed under any site use the links strategy.
func NewDiscoverer(reg *scanner.Registry, sites []config.SiteConfig, log *slog.Logger) *Discoverer {
	seedSites := map[string]config.SiteConfig{}
	for _, site := range sites {
		for _, seed := range site.Seeds {
			if _, exists := seedSites[seed]; !exists {
				seedSites[seed] = site
			}
		}
	}

	return &Discoverer{
		registry:       reg,
		defaultScanner: LinksScannerName,
		seedSites:      seedSites,
		logger:         log,
	}
}

// Discover returns deduplicated candidate URLs in seed order, then anchor order.
func (d *Discoverer) Discover(ctx context.Context, seeds []string, limitPerSite, maxSites int) []string {
	links := d.DiscoverLinks(ctx, seeds, limitPerSite, maxSites)
	urls := make([]string, 0, len(links))
	for _, link := range links {
		urls = append(urls, link.URL)
	}
	return urls
}

// DiscoverLinks is Discover with per-link detail. A seed that fails to fetch
// or parse is logged and skipped.
func (d *Discoverer) DiscoverLinks(ctx context.Context, seeds []string, limitPerSite, maxSites int) []domain.DiscoveredLink {
	seeds = FilterSeeds(seeds, maxSites)
	d.debug("discover", "seeds", len(seeds), "limit_per_site", limitPerSite)

	var (
		found []domain.DiscoveredLink
		seen  = map[string]struct{}{}
	)

	for _, seed := range seeds {
		if ctx.Err() != nil {
			d.warn("discovery cancelled", "error", ctx.Err())
			break
		}

		site := d.seedSites[seed]
		name := site.Scanner
		if name == "" {
			name = d.defaultScanner
		}

		strategy, err := d.registry.Resolve(name)
		if err != nil {
			d.warn("seed skipped", "seed", seed, "error", err, "available", d.registry.Names())
			continue
		}

		links, err := strategy.Scan(ctx, scanner.Request{SiteName: site.Name, Seed: seed, Limit: limitPerSite})
		if err != nil {
			reason := "scan"
			if fetch.IsFetchError(err) {
				reason = "fetch"
			}
			d.warn("seed failed", "seed", seed, "scanner", name, "reason", reason, "error", err)
			continue
		}

		for _, link := range links {
			if _, dup := seen[link.URL]; dup {
				continue
			}
			seen[link.URL] = struct{}{}
			found = append(found, link)
		}
	}

	d.debug("discovery done", "candidates", len(found))
	return found
}

// FilterSeeds keeps http(s) seeds and truncates to maxSites (when positive).
func FilterSeeds(seeds []string, maxSites int) []string {
	out := make([]string, 0, len(seeds))
	for _, seed := range seeds {
		seed = strings.TrimSpace(seed)
		lower := strings.ToLower(seed)
		if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
			continue
		}
		out = append(out, seed)
		if maxSites > 0 && len(out) >= maxSites {
			break
		}
	}
	return out
}

func (d *Discoverer) debug(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}

func (d *Discoverer) warn(msg string, args ...interface{}) {
	if d.logger != nil {
		d.logger.Warn(msg, args...)
	}
}
