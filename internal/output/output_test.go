package output

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

func rankedFixture() []work.RankedWork {
	published := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)
	return []work.RankedWork{
		{
			CandidateWork: work.CandidateWork{
				Source:     "arxiv",
				Identifier: "arxiv:1",
				Title:      "Attention & Trees <in> Phylogenetics",
				Abstract:   "A study of things.",
				Authors:    []string{"Jane Doe", "John Smith"},
				URL:        "https://arxiv.org/abs/1",
				Published:  &published,
				Venue:      "arXiv",
			},
			Score:       0.912,
			Similarity:  0.85,
			Label:       work.LabelMustRead,
			AuthorBonus: 1.0,
		},
		{
			CandidateWork: work.CandidateWork{
				Source:     "crossref",
				Identifier: "10.1/x",
				Title:      "A Journal Paper",
				URL:        "https://doi.org/10.1/x",
			},
			Score: 0.4,
			Label: work.LabelIgnore,
			Summary: &work.PaperSummary{
				PaperID: "10.1/x",
				Bullets: []string{"Asks a question.", "Uses a method."},
			},
		},
	}
}

func TestHTMLReportRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "report.html")
	h := NewHTMLReporter("", zap.NewNop())
	h.now = func() time.Time { return time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC) }

	if err := h.Render(rankedFixture(), path); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)

	if !strings.Contains(html, "2 papers") {
		t.Error("paper count missing from header")
	}
	// html/template escapes the title's special characters.
	if !strings.Contains(html, "Attention &amp; Trees &lt;in&gt; Phylogenetics") {
		t.Error("title not escaped/rendered")
	}
	if !strings.Contains(html, "must read") {
		t.Error("label badge missing")
	}
	if !strings.Contains(html, "0.912") {
		t.Error("score missing")
	}
	if !strings.Contains(html, "Jane Doe, John Smith") {
		t.Error("author line missing")
	}
	if !strings.Contains(html, "Asks a question.") {
		t.Error("summary bullets missing")
	}
	if !strings.Contains(html, "Author Match") {
		t.Error("author bonus marker missing")
	}
}

func TestHTMLReportExternalTemplate(t *testing.T) {
	dir := t.TempDir()
	custom := `custom: {{len .Works}} works`
	if err := os.WriteFile(filepath.Join(dir, "report.html"), []byte(custom), 0o644); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "report.html")
	h := NewHTMLReporter(dir, zap.NewNop())
	if err := h.Render(rankedFixture(), path); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "custom: 2 works") {
		t.Errorf("external template not used: %q", data)
	}
}

func TestHTMLReportEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.html")
	h := NewHTMLReporter("", zap.NewNop())
	if err := h.Render(nil, path); err != nil {
		t.Fatalf("empty report should render: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "0 papers") {
		t.Error("empty report should state zero papers")
	}
}

func TestRSSWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "feed.xml")
	w := NewRSSWriter(FeedInfo{
		Title:       "My Papers",
		Link:        "https://example.org/feed",
		Description: "Personalized recommendations",
	}, zap.NewNop())

	if err := w.Write(rankedFixture(), path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	xml := string(data)

	if !strings.Contains(xml, "<title>My Papers</title>") {
		t.Error("channel title missing")
	}
	if !strings.Contains(xml, "[0.912]") {
		t.Error("score prefix missing from item title")
	}
	if !strings.Contains(xml, "https://arxiv.org/abs/1") {
		t.Error("item link missing")
	}
	if !strings.Contains(xml, "Asks a question.") {
		t.Error("summary bullets missing from description")
	}
}

func TestRSSWriteEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	w := NewRSSWriter(FeedInfo{Link: "https://example.org"}, zap.NewNop())

	if err := w.Write(nil, path); err != nil {
		t.Fatalf("empty feed should still render: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "ZotWatch Recommendations") {
		t.Error("default title missing")
	}
	if strings.Contains(string(data), "<item>") {
		t.Error("empty feed should contain no items")
	}
}
