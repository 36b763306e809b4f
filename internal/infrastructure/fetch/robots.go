package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/temoto/robotstxt"
)

const (
	robotsTxtPath      = "/robots.txt"
	maxRobotsBodyBytes = 512 * 1024
	defaultRobotsHosts = 256
)

// RobotsChecker checks robots.txt rules, caching the parsed file per origin.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	cache     *lru.Cache[string, *robotstxt.RobotsData]
}

// NewRobotsChecker creates a checker holding at most size origins.
func NewRobotsChecker(client *http.Client, userAgent string, size int) (*RobotsChecker, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if size <= 0 {
		size = defaultRobotsHosts
	}
	cache, err := lru.New[string, *robotstxt.RobotsData](size)
	if err != nil {
		return nil, fmt.Errorf("robots cache: %w", err)
	}
	return &RobotsChecker{client: client, userAgent: userAgent, cache: cache}, nil
}

// IsAllowed reports whether rawURL may be fetched. An unreachable robots.txt
// allows everything.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("robots: parse url: %w", err)
	}
	if parsed.Host == "" {
		return false, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	origin := strings.ToLower(parsed.Scheme + "://" + parsed.Host)
	data, ok := r.cache.Get(origin)
	if !ok {
		data = r.fetch(ctx, origin)
		r.cache.Add(origin, data)
	}
	if data == nil {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return data.TestAgent(path, r.userAgent), nil
}

// fetch returns nil when robots.txt cannot be retrieved at all.
func (r *RobotsChecker) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+robotsTxtPath, nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil
	}
	return data
}
