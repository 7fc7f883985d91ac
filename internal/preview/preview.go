// Package preview fetches metadata about a record's published page: the
// title, a plain-text first paragraph and the canonical URL. The editor only
// shows this next to the form, so failures here are advisory and never block
// editing.
package preview

import (
	"context"
	"fmt"
	"strings"
	"time"

	"arbor/editor/internal/config"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Info is the extracted page metadata.
type Info struct {
	URL         string
	Title       string
	Description string
	Canonical   string
}

type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Info, error)
}

type pageFetcher struct {
	baseURL    string
	httpClient *resty.Client
	sanitizer  *bluemonday.Policy
}

// NewFetcher builds a fetcher for pages under publicBaseURL. Absolute page
// URLs are fetched as given.
func NewFetcher(cfg config.PreviewConfig, publicBaseURL string) Fetcher {
	client := resty.New().
		SetTimeout(time.Duration(cfg.Timeout)*time.Second).
		SetHeader("Accept", "text/html")

	return &pageFetcher{
		baseURL:    strings.TrimSuffix(publicBaseURL, "/"),
		httpClient: client,
		sanitizer:  bluemonday.StrictPolicy(),
	}
}

func (f *pageFetcher) Fetch(ctx context.Context, pageURL string) (*Info, error) {
	if !strings.HasPrefix(pageURL, "http") {
		pageURL = f.baseURL + pageURL
	}

	resp, err := f.httpClient.R().
		SetContext(ctx).
		Get(pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode(), resp.Status())
	}

	info, err := f.parse(resp.String())
	if err != nil {
		return nil, err
	}
	info.URL = pageURL

	log.Debugf("Fetched preview metadata for %s: %q", pageURL, info.Title)
	return info, nil
}

func (f *pageFetcher) parse(html string) (*Info, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	info := &Info{}

	info.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if info.Title == "" {
		info.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}

	if canonical, ok := doc.Find(`link[rel="canonical"]`).Attr("href"); ok {
		info.Canonical = strings.TrimSpace(canonical)
	}

	// First paragraph with content, stripped down to plain text.
	doc.Find("p").EachWithBreak(func(i int, p *goquery.Selection) bool {
		inner, err := p.Html()
		if err != nil {
			return true
		}
		if text := strings.TrimSpace(f.sanitizer.Sanitize(inner)); text != "" {
			info.Description = text
			return false
		}
		return true
	})

	return info, nil
}
