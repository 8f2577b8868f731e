package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/mmcdole/gofeed"
)

// Item is a parsed feed item before recency filtering.
// Published is taken from the published date, falling back to the updated date; zero if neither is set.
type Item struct {
	Title       string
	Link        string
	Description string
	Content     string
	Published   time.Time
}

// ParserConfig holds HTTP and retry settings for Parser
type ParserConfig struct {
	Timeout    time.Duration
	UserAgent  string
	Retries    int
	RetryDelay time.Duration
}

// Parser fetches and parses RSS/Atom feeds
type Parser struct {
	client     *http.Client
	userAgent  string
	retries    int
	retryDelay time.Duration
}

// errPermanent marks fetch failures not worth retrying
var errPermanent = errors.New("permanent feed error")

type permanentError struct {
	err error
}

func (e *permanentError) Error() string        { return e.err.Error() }
func (e *permanentError) Unwrap() error        { return e.err }
func (e *permanentError) Is(target error) bool { return target == errPermanent }

// acceptLanguages contains common browser Accept-Language values
var acceptLanguages = []string{
	"en-US,en;q=0.9",
	"en-GB,en;q=0.9",
	"en-US,en;q=0.9,de;q=0.8",
}

// NewParser creates a new feed parser
func NewParser(cfg ParserConfig) *Parser {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Parser{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:  cfg.UserAgent,
		retries:    cfg.Retries,
		retryDelay: cfg.RetryDelay,
	}
}

// Parse fetches and parses a feed from the given URL. Network failures and 5xx responses are retried,
// client errors and unparsable content are not.
func (p *Parser) Parse(ctx context.Context, url string) ([]Item, error) {
	var feed *gofeed.Feed
	retrier := repeater.NewBackoff(p.retries, p.retryDelay, repeater.WithMaxDelay(5*time.Second))
	err := retrier.Do(ctx, func() error {
		body, err := p.fetch(ctx, url)
		if err != nil {
			return err
		}
		defer body.Close()

		parsed, err := gofeed.NewParser().Parse(body)
		if err != nil {
			return &permanentError{err: fmt.Errorf("parse feed: %w", err)}
		}
		feed = parsed
		return nil
	}, errPermanent)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(feed.Items))
	for _, item := range feed.Items {
		parsed := Item{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Content:     item.Content,
		}

		// set published time
		if item.PublishedParsed != nil {
			parsed.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			parsed.Published = *item.UpdatedParsed
		}

		items = append(items, parsed)
	}
	return items, nil
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &permanentError{err: fmt.Errorf("create request: %w", err)}
	}

	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	// accept header for feeds, include both RSS and HTML
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,text/html;q=0.7,*/*;q=0.5")
	req.Header.Set("Accept-Language", acceptLanguages[rand.Intn(len(acceptLanguages))]) //nolint:gosec // non-cryptographic randomness is fine for header variation
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := fmt.Errorf("unexpected status code: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, &permanentError{err: statusErr}
		}
		return nil, statusErr
	}

	return resp.Body, nil
}
