// Package pdf extracts identifying metadata from local PDF files for
// manual library ingestion.
package pdf

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// metadataPages bounds how many leading pages are scanned. DOIs and titles
// live on the first page of nearly every paper.
const metadataPages = 3

var doiPattern = regexp.MustCompile(`10\.\d{4,9}/[^\s<>"{}|\\^~\[\]` + "`" + `]+`)

// Metadata is what could be recovered from a PDF's leading pages.
type Metadata struct {
	Title string
	DOI   string

	// Text is the raw text of the scanned pages, kept for embedding when
	// no abstract is available elsewhere.
	Text string
}

// ExtractMetadata scans the leading pages of the PDF at path. Absent title
// or DOI are empty fields, not errors; only unreadable files fail.
func ExtractMetadata(path string) (*Metadata, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	pages := metadataPages
	if r.NumPage() < pages {
		pages = r.NumPage()
	}

	var text strings.Builder
	for i := 1; i <= pages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(content)
		text.WriteString("\n")
	}

	raw := text.String()
	return &Metadata{
		Title: titleFromText(raw),
		DOI:   doiFromText(raw),
		Text:  raw,
	}, nil
}

// doiFromText returns the first plausible DOI in the text.
func doiFromText(text string) string {
	for _, match := range doiPattern.FindAllString(text, -1) {
		match = strings.TrimRight(match, ".,;:)")
		if plausibleDOI(match) {
			return match
		}
	}
	return ""
}

func plausibleDOI(doi string) bool {
	if len(doi) < 10 || !strings.HasPrefix(doi, "10.") {
		return false
	}
	slash := strings.Index(doi, "/")
	return slash > 0 && slash < len(doi)-1
}

// titleFromText returns the first substantial line that does not look like
// a journal header. Best effort; empty when nothing qualifies.
func titleFromText(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) > 20 && !looksLikeHeader(line) {
			return line
		}
	}
	return ""
}

func looksLikeHeader(line string) bool {
	lower := strings.ToLower(line)
	switch {
	case strings.Contains(lower, "journal"):
		return true
	case strings.Contains(lower, "volume") && strings.Contains(lower, "issue"):
		return true
	case strings.Contains(lower, "copyright"):
		return true
	case strings.Contains(lower, "preprint") && strings.Contains(lower, "server"):
		return true
	case strings.HasPrefix(lower, "doi:") || strings.HasPrefix(lower, "https://doi.org"):
		return true
	}
	return false
}
