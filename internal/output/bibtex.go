package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// BibTeXWriter renders ranked works as a BibTeX bibliography so
// recommendations can flow into a reference manager or a paper draft.
type BibTeXWriter struct {
	logger *zap.Logger
}

func NewBibTeXWriter(logger *zap.Logger) *BibTeXWriter {
	return &BibTeXWriter{logger: logger}
}

// Write renders the ranked list to path. An empty list yields an empty file.
func (w *BibTeXWriter) Write(ranked []work.RankedWork, path string) error {
	var entries []string
	for _, rw := range ranked {
		entries = append(entries, toBibTeX(rw))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(strings.Join(entries, "\n")), 0o644); err != nil {
		return fmt.Errorf("writing bibtex file: %w", err)
	}
	w.logger.Info("bibtex written", zap.String("path", path), zap.Int("entries", len(ranked)))
	return nil
}

// toBibTeX converts one ranked work to a BibTeX entry.
func toBibTeX(rw work.RankedWork) string {
	entryType := determineEntryType(rw.Source, rw.Venue)
	var b strings.Builder

	b.WriteString(fmt.Sprintf("@%s{%s,\n", entryType, citationKey(rw)))

	if len(rw.Authors) > 0 {
		b.WriteString(fmt.Sprintf("  author = {%s},\n", strings.Join(rw.Authors, " and ")))
	}
	b.WriteString(fmt.Sprintf("  title = {%s},\n", escapeLatex(rw.Title)))

	if rw.Venue != "" {
		fieldName := "journal"
		if entryType == "inproceedings" {
			fieldName = "booktitle"
		}
		b.WriteString(fmt.Sprintf("  %s = {%s},\n", fieldName, escapeLatex(rw.Venue)))
	}
	if rw.Published != nil {
		b.WriteString(fmt.Sprintf("  year = {%d},\n", rw.Published.Year()))
		b.WriteString(fmt.Sprintf("  month = {%d},\n", int(rw.Published.Month())))
	}
	if rw.DOI != "" {
		b.WriteString(fmt.Sprintf("  doi = {%s},\n", rw.DOI))
	}
	if rw.URL != "" {
		b.WriteString(fmt.Sprintf("  url = {%s},\n", rw.URL))
	}
	if rw.Abstract != "" {
		b.WriteString(fmt.Sprintf("  abstract = {%s},\n", escapeLatex(rw.Abstract)))
	}

	b.WriteString("}\n")
	return b.String()
}

// citationKey builds a BibTeX-safe key from the work's identifier, falling
// back to a title slug.
func citationKey(rw work.RankedWork) string {
	raw := rw.Identifier
	if raw == "" {
		raw = rw.Title
	}
	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_' || r == '/':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "untitled"
	}
	return b.String()
}

// determineEntryType picks the BibTeX entry type. Preprints and journal
// papers are articles; proceedings-style venues get inproceedings.
func determineEntryType(source, venue string) string {
	v := strings.ToLower(venue)
	switch {
	case source == "arxiv" || source == "biorxiv" || source == "medrxiv":
		return "article"
	case strings.Contains(v, "proceedings"),
		strings.Contains(v, "conference"),
		strings.Contains(v, "workshop"),
		strings.Contains(v, "symposium"):
		return "inproceedings"
	}
	return "article"
}

// escapeLatex escapes special LaTeX characters.
func escapeLatex(s string) string {
	// Order matters: & must be first (before other escapes that might produce &)
	replacer := strings.NewReplacer(
		"&", `\&`,
		"%", `\%`,
		"$", `\$`,
		"#", `\#`,
		"_", `\_`,
		"{", `\{`,
		"}", `\}`,
		"~", `\textasciitilde{}`,
		"^", `\textasciicircum{}`,
	)
	return replacer.Replace(s)
}
