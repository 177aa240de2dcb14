package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

const (
	// DefaultArxivURL is the arXiv Atom API endpoint.
	DefaultArxivURL = "https://export.arxiv.org/api/query"

	// arXiv asks clients to stay under one request every three seconds.
	arxivRateLimit = 1.0 / 3.0
)

// ArxivConfig configures the arXiv source.
type ArxivConfig struct {
	Enabled    bool
	Categories []string
	MaxResults int
	DaysBack   int
}

// Arxiv fetches recent preprints from the arXiv Atom API.
type Arxiv struct {
	config  ArxivConfig
	fetcher *httpFetcher
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewArxiv creates the arXiv source.
func NewArxiv(config ArxivConfig, logger *zap.Logger) *Arxiv {
	if config.MaxResults <= 0 {
		config.MaxResults = 200
	}
	return &Arxiv{
		config:  config,
		fetcher: newHTTPFetcher(arxivRateLimit),
		baseURL: DefaultArxivURL,
		logger:  logger,
		now:     time.Now,
	}
}

func (a *Arxiv) Name() string  { return "arxiv" }
func (a *Arxiv) Enabled() bool { return a.config.Enabled }

// atomFeed mirrors the subset of the arXiv Atom response we consume.
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	DOI       string       `xml:"doi"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	Category  atomCategory `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

// Fetch queries arXiv for entries submitted in the last daysBack days in
// the configured categories.
func (a *Arxiv) Fetch(ctx context.Context, daysBack int) ([]work.CandidateWork, error) {
	if daysBack <= 0 {
		daysBack = a.config.DaysBack
	}

	now := a.now().UTC()
	from := now.AddDate(0, 0, -daysBack)

	cats := make([]string, len(a.config.Categories))
	for i, cat := range a.config.Categories {
		cats[i] = "cat:" + cat
	}
	query := fmt.Sprintf("(%s) AND submittedDate:[%s0000 TO %s2359]",
		strings.Join(cats, " OR "),
		from.Format("20060102"),
		now.Format("20060102"))

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("sortBy", "submittedDate")
	params.Set("sortOrder", "descending")
	params.Set("max_results", fmt.Sprint(a.config.MaxResults))

	a.logger.Info("fetching arxiv entries",
		zap.Strings("categories", a.config.Categories),
		zap.Int("days_back", daysBack),
		zap.Int("max_results", a.config.MaxResults))

	body, err := a.fetcher.get(ctx, a.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("%w: parsing atom feed: %v", ErrInvalidResponse, err)
	}

	candidates := make([]work.CandidateWork, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		title := cleanTitle(entry.Title)
		if title == "" {
			continue
		}

		identifier := entry.ID
		if identifier == "" {
			identifier = title
		}

		authors := make([]string, 0, len(entry.Authors))
		for _, author := range entry.Authors {
			if author.Name != "" {
				authors = append(authors, author.Name)
			}
		}

		candidates = append(candidates, work.CandidateWork{
			Source:     a.Name(),
			Identifier: identifier,
			Title:      title,
			Abstract:   strings.TrimSpace(entry.Summary),
			Authors:    authors,
			DOI:        entry.DOI,
			URL:        entryLink(entry),
			Published:  work.ParseDate(entry.Published),
			Venue:      "arXiv",
			Extra:      map[string]string{"primary_category": entry.Category.Term},
		})
	}

	a.logger.Info("fetched arxiv entries", zap.Int("count", len(candidates)))
	return candidates, nil
}

// entryLink prefers the alternate link, falling back to the entry ID.
func entryLink(entry atomEntry) string {
	for _, link := range entry.Links {
		if link.Rel == "alternate" && link.Href != "" {
			return link.Href
		}
	}
	return entry.ID
}

// cleanTitle collapses the newline-wrapped whitespace arXiv puts in titles.
func cleanTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}
