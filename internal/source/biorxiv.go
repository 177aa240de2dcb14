package source

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// DefaultBiorxivURL is the bioRxiv details API base URL. The same API
// serves medRxiv under a different server segment.
const DefaultBiorxivURL = "https://api.biorxiv.org"

// PreprintConfig configures a bioRxiv-family source.
type PreprintConfig struct {
	Enabled  bool
	DaysBack int
}

// Preprint fetches recent preprints from the bioRxiv details API for one
// server ("biorxiv" or "medrxiv").
type Preprint struct {
	server  string
	config  PreprintConfig
	fetcher *httpFetcher
	baseURL string
	logger  *zap.Logger
	now     func() time.Time
}

// NewBiorxiv creates the bioRxiv source.
func NewBiorxiv(config PreprintConfig, logger *zap.Logger) *Preprint {
	return newPreprint("biorxiv", config, logger)
}

// NewMedrxiv creates the medRxiv source.
func NewMedrxiv(config PreprintConfig, logger *zap.Logger) *Preprint {
	return newPreprint("medrxiv", config, logger)
}

func newPreprint(server string, config PreprintConfig, logger *zap.Logger) *Preprint {
	return &Preprint{
		server:  server,
		config:  config,
		fetcher: newHTTPFetcher(DefaultRateLimit),
		baseURL: DefaultBiorxivURL,
		logger:  logger,
		now:     time.Now,
	}
}

func (p *Preprint) Name() string  { return p.server }
func (p *Preprint) Enabled() bool { return p.config.Enabled }

// preprintEntry mirrors one record of the details API collection.
type preprintEntry struct {
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Authors  string `json:"authors"`
	DOI      string `json:"doi"`
	RelLink  string `json:"rel_link"`
	Date     string `json:"date"`
	Category string `json:"category"`
	Version  string `json:"version"`
}

// Fetch returns preprints posted within the last daysBack days.
func (p *Preprint) Fetch(ctx context.Context, daysBack int) ([]work.CandidateWork, error) {
	if daysBack <= 0 {
		daysBack = p.config.DaysBack
	}

	now := p.now().UTC()
	from := now.AddDate(0, 0, -daysBack)
	url := fmt.Sprintf("%s/details/%s/%s/%s",
		p.baseURL, p.server, from.Format("2006-01-02"), now.Format("2006-01-02"))

	p.logger.Info("fetching preprints",
		zap.String("server", p.server),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", now.Format("2006-01-02")))

	body, err := p.fetcher.get(ctx, url)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Collection []preprintEntry `json:"collection"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing %s response: %v", ErrInvalidResponse, p.server, err)
	}

	candidates := make([]work.CandidateWork, 0, len(payload.Collection))
	for _, entry := range payload.Collection {
		if candidate, ok := p.parseEntry(entry); ok {
			candidates = append(candidates, candidate)
		}
	}

	p.logger.Info("fetched preprints",
		zap.String("server", p.server),
		zap.Int("count", len(candidates)))
	return candidates, nil
}

func (p *Preprint) parseEntry(entry preprintEntry) (work.CandidateWork, bool) {
	title := cleanTitle(entry.Title)
	if title == "" {
		return work.CandidateWork{}, false
	}

	link := entry.RelLink
	if link == "" && entry.DOI != "" {
		link = "https://doi.org/" + entry.DOI
	}

	identifier := entry.DOI
	if identifier == "" {
		identifier = title
	}

	// Authors arrive as a single semicolon-separated string.
	var authors []string
	for _, name := range strings.Split(entry.Authors, ";") {
		if name = strings.TrimSpace(name); name != "" {
			authors = append(authors, name)
		}
	}

	return work.CandidateWork{
		Source:     p.server,
		Identifier: identifier,
		Title:      title,
		Abstract:   strings.TrimSpace(entry.Abstract),
		Authors:    authors,
		DOI:        entry.DOI,
		URL:        link,
		Published:  work.ParseDate(entry.Date),
		Venue:      p.server,
		Extra: map[string]string{
			"category": entry.Category,
			"version":  entry.Version,
		},
	}, true
}
