// Package ingest turns external market data into stored rows: derived tape
// metrics from price history, and corporate events detected from
// disclosures, earnings summaries, news headlines and volume spikes.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/kabupicks/pkg/httputil"
	"github.com/wonny/kabupicks/pkg/logger"
)

// ErrNoNews is returned when neither the live feed nor the sample fallback
// yields any headline.
var ErrNoNews = errors.New("no news available")

// Polarity is the inferred tone of a headline.
type Polarity string

const (
	PolarityPositive Polarity = "pos"
	PolarityNegative Polarity = "neg"
	PolarityNeutral  Polarity = "neu"
)

// NewsItem is one fetched headline.
type NewsItem struct {
	Code        string
	Title       string
	Summary     string
	PublishedAt time.Time
	Polarity    Polarity
}

var positiveKeywords = []string{"上方", "増益", "増配", "最高益", "上振れ", "黒字"}
var negativeKeywords = []string{"下方", "減益", "減配", "赤字", "下振れ"}

// InferPolarity classifies a headline by keyword. Positive markers win over
// negative ones when both appear.
func InferPolarity(text string) Polarity {
	for _, kw := range positiveKeywords {
		if strings.Contains(text, kw) {
			return PolarityPositive
		}
	}
	for _, kw := range negativeKeywords {
		if strings.Contains(text, kw) {
			return PolarityNegative
		}
	}
	return PolarityNeutral
}

// NewsFetcher loads headlines from a configured feed URL, falling back to a
// local sample file when the feed is unset or unreachable.
type NewsFetcher struct {
	client    *httputil.Client
	feedURL   string
	sampleDir string
	log       *logger.Logger
}

// NewNewsFetcher creates a fetcher. feedURL may be empty, in which case only
// the sample fallback is used.
func NewNewsFetcher(client *httputil.Client, feedURL, sampleDir string, log *logger.Logger) *NewsFetcher {
	return &NewsFetcher{
		client:    client,
		feedURL:   feedURL,
		sampleDir: sampleDir,
		log:       log,
	}
}

// Fetch returns headlines from the live feed when possible, otherwise from
// the sample file. ErrNoNews when both come back empty.
func (f *NewsFetcher) Fetch(ctx context.Context) ([]NewsItem, error) {
	if f.feedURL != "" {
		items, err := f.fetchLive(ctx)
		if err != nil {
			f.log.WithError(err).Warn("Live news feed failed, falling back to sample data")
		} else if len(items) > 0 {
			return items, nil
		}
	}

	items, err := f.loadSample()
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoNews
	}
	return items, nil
}

func (f *NewsFetcher) fetchLive(ctx context.Context) ([]NewsItem, error) {
	resp, err := f.client.Get(ctx, f.feedURL)
	if err != nil {
		return nil, fmt.Errorf("fetch news feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("news feed returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read news feed body: %w", err)
	}

	// Feeds are JSON in the common case; anything else is treated as an
	// HTML listing page.
	if items := parseJSONNews(body); len(items) > 0 {
		return items, nil
	}
	return parseHTMLNews(body)
}

func (f *NewsFetcher) loadSample() ([]NewsItem, error) {
	path, ok := f.resolveSamplePath()
	if !ok {
		return nil, ErrNoNews
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sample news: %w", err)
	}
	return parseJSONNews(raw), nil
}

func (f *NewsFetcher) resolveSamplePath() (string, bool) {
	var candidates []string
	if f.sampleDir != "" {
		candidates = []string{filepath.Join(f.sampleDir, "news.json")}
	} else {
		candidates = []string{
			"data/sample/news.json",
			"../data/sample/news.json",
			"../../data/sample/news.json",
		}
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		}
	}
	return "", false
}

// jsonNewsEntry mirrors one element of the JSON news feed.
type jsonNewsEntry struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`
	Date     string `json:"date"`
	Polarity string `json:"polarity"`
}

func parseJSONNews(raw []byte) []NewsItem {
	var entries []jsonNewsEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}

	items := make([]NewsItem, 0, len(entries))
	for _, e := range entries {
		code := strings.TrimSpace(e.Code)
		title := strings.TrimSpace(e.Title)
		if code == "" || title == "" {
			continue
		}

		publishedAt := time.Now().UTC()
		if e.Date != "" {
			parsed, err := parseNewsTime(e.Date)
			if err != nil {
				continue
			}
			publishedAt = parsed
		}

		polarity := Polarity(e.Polarity)
		switch polarity {
		case PolarityPositive, PolarityNegative, PolarityNeutral:
		default:
			polarity = InferPolarity(title)
		}

		items = append(items, NewsItem{
			Code:        code,
			Title:       title,
			Summary:     strings.TrimSpace(e.Summary),
			PublishedAt: publishedAt,
			Polarity:    polarity,
		})
	}
	return items
}

// parseHTMLNews extracts headlines from a news listing page. Each row of
// table.s_news_list carries the instrument code in a data attribute and the
// publication time in a <time> tag.
func parseHTMLNews(raw []byte) ([]NewsItem, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("parse news HTML: %w", err)
	}

	var items []NewsItem
	doc.Find("table.s_news_list tr").Each(func(i int, row *goquery.Selection) {
		codeCell := row.Find("td.oncodetip_code-data1")
		link := row.Find("a").First()
		if codeCell.Length() == 0 || link.Length() == 0 {
			return
		}

		code, ok := codeCell.Attr("data-code")
		if !ok || strings.TrimSpace(code) == "" {
			code = codeCell.Text()
		}
		code = strings.TrimSpace(code)
		title := strings.TrimSpace(link.Text())
		if code == "" || title == "" {
			return
		}

		publishedAt := time.Now().UTC()
		if timeTag := row.Find("time").First(); timeTag.Length() > 0 {
			if raw, ok := timeTag.Attr("datetime"); ok {
				if parsed, err := parseNewsTime(raw); err == nil {
					publishedAt = parsed
				}
			}
		}

		items = append(items, NewsItem{
			Code:        code,
			Title:       title,
			PublishedAt: publishedAt,
			Polarity:    InferPolarity(title),
		})
	})
	return items, nil
}

func parseNewsTime(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
