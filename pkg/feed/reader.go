package feed

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/microcosm-cc/bluemonday"

	"github.com/umputun/teamdigest/pkg/config"
)

// FeedParser retrieves and parses a single feed
type FeedParser interface {
	Parse(ctx context.Context, url string) ([]Item, error)
}

// FetchError describes a feed which could not be fetched or parsed
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

// Unwrap returns the underlying error
func (e *FetchError) Unwrap() error { return e.Err }

// ReaderConfig holds Reader dependencies
type ReaderConfig struct {
	Parser    FeedParser
	Cache     *Cache // optional, disables cache writes when nil
	StripHTML bool
}

// Reader fetches team feeds and keeps entries published inside the lookback window
type Reader struct {
	parser    FeedParser
	cache     *Cache
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewReader creates a feed reader
func NewReader(cfg ReaderConfig) *Reader {
	r := &Reader{parser: cfg.Parser, cache: cfg.Cache, now: time.Now}
	if cfg.StripHTML {
		r.sanitizer = bluemonday.StrictPolicy()
	}
	return r
}

// Fetch fetches every feed of every team, in order, and filters entries older than days.
// A broken feed yields an empty entries list and never stops the siblings. The result is
// saved to the cache if one is configured; failure to save is logged only.
func (r *Reader) Fetch(ctx context.Context, teams config.Teams, days int) ByTeam {
	cutoff := r.now().Add(-time.Duration(days) * 24 * time.Hour)
	lgr.Printf("[DEBUG] fetching feeds for %d teams, cutoff %s", len(teams), cutoff.Format(time.RFC3339))

	res := make(ByTeam, 0, len(teams))
	for _, team := range teams {
		feeds := make([]Result, 0, len(team.URLs))
		for _, url := range team.URLs {
			feeds = append(feeds, r.fetchFeed(ctx, url, cutoff))
		}
		res = append(res, TeamFeeds{Team: team.Name, Feeds: feeds})
	}

	if r.cache != nil {
		if err := r.cache.Save(res); err != nil {
			lgr.Printf("[WARN] failed to save feed cache: %v", err)
		}
	}
	return res
}

// FetchOrLoad returns cached feeds when useCache is set and the cache holds data,
// otherwise it fetches live. An empty or corrupt cache counts as a miss.
func (r *Reader) FetchOrLoad(ctx context.Context, teams config.Teams, days int, useCache bool) ByTeam {
	if useCache && r.cache != nil {
		cached, err := r.cache.Load()
		if err == nil {
			lgr.Printf("[INFO] using cached feeds from %s, %d teams", r.cache.Path(), len(cached))
			return cached
		}
		lgr.Printf("[WARN] %v, fetching live", err)
	}
	return r.Fetch(ctx, teams, days)
}

// fetchFeed parses one feed and keeps entries published on or after cutoff
func (r *Reader) fetchFeed(ctx context.Context, url string, cutoff time.Time) Result {
	res := Result{FeedURL: url, Entries: []Entry{}}

	lgr.Printf("[DEBUG] parsing feed: %s", url)
	items, err := r.parser.Parse(ctx, url)
	if err != nil {
		lgr.Printf("[WARN] %v", &FetchError{URL: url, Err: err})
		return res
	}

	for _, item := range items {
		if item.Published.IsZero() {
			lgr.Printf("[DEBUG] skip entry without date: %q", item.Title)
			continue
		}
		if item.Published.Before(cutoff) {
			continue
		}
		res.Entries = append(res.Entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      item.Link,
			Published: item.Published.UTC().Truncate(time.Second),
			Summary:   r.summary(item),
		})
	}
	lgr.Printf("[DEBUG] feed %s: %d of %d entries within window", url, len(res.Entries), len(items))
	return res
}

// summary returns the item description, falling back to content, optionally reduced to plain text
func (r *Reader) summary(item Item) string {
	text := item.Description
	if strings.TrimSpace(text) == "" {
		text = item.Content
	}
	if r.sanitizer != nil {
		text = html.UnescapeString(r.sanitizer.Sanitize(text))
		text = strings.Join(strings.Fields(text), " ")
	}
	return strings.TrimSpace(text)
}
