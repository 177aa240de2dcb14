package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/store"
	"github.com/zotwatch/zotwatch/internal/work"
)

const bulletJSON = `{
  "research_question": "What is studied.",
  "methodology": "How it is studied.",
  "key_findings": "What was found.",
  "innovation": "What is new.",
  "relevance_note": "Why it matters."
}`

const detailedJSON = `{"background": "Some context.", "results": "Some results."}`

func summarizerFixture(t *testing.T, handler http.HandlerFunc) (*Summarizer, *store.Store) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	st, err := store.Open(filepath.Join(t.TempDir(), "profile.sqlite"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	client := NewClient(WithBaseURL(server.URL), WithAPIKey("k"))
	s := NewSummarizer(client, st, "", zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC) }
	return s, st
}

func rankedFixture(id string) work.RankedWork {
	return work.RankedWork{
		CandidateWork: work.CandidateWork{
			Source:     "arxiv",
			Identifier: id,
			Title:      "A Paper",
			Abstract:   "An abstract.",
			Authors:    []string{"Jane Doe"},
			Venue:      "arXiv",
		},
		Score: 0.9,
		Label: work.LabelMustRead,
	}
}

func TestSummarizeBatch(t *testing.T) {
	var calls atomic.Int32
	s, st := summarizerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		// Bullet prompt arrives first, detailed second, per paper.
		if calls.Add(1)%2 == 1 {
			w.Write([]byte(completionBody(bulletJSON, 100)))
		} else {
			w.Write([]byte(completionBody(detailedJSON, 200)))
		}
	})

	summaries, err := s.SummarizeBatch(context.Background(), []work.RankedWork{rankedFixture("p1")}, false)
	if err != nil {
		t.Fatalf("SummarizeBatch failed: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}

	sum := summaries[0]
	if sum.PaperID != "p1" {
		t.Errorf("wrong paper ID: %s", sum.PaperID)
	}
	if len(sum.Bullets) != 5 || sum.Bullets[0] != "What is studied." {
		t.Errorf("bullets not parsed in order: %v", sum.Bullets)
	}
	if !strings.Contains(sum.Detailed, "Some context.") {
		t.Errorf("detailed analysis missing: %q", sum.Detailed)
	}
	if sum.TokensUsed != 300 {
		t.Errorf("tokens should sum both calls, got %d", sum.TokensUsed)
	}

	// Summary is persisted in the store.
	cached, err := st.GetSummary("p1")
	if err != nil {
		t.Fatal(err)
	}
	if cached == nil || cached.PaperID != "p1" {
		t.Error("summary not cached in store")
	}
}

func TestSummarizeBatchUsesCache(t *testing.T) {
	var calls atomic.Int32
	s, st := summarizerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(completionBody(bulletJSON, 1)))
	})

	if err := st.SaveSummary(work.PaperSummary{
		PaperID:     "p1",
		Bullets:     []string{"cached bullet"},
		Detailed:    "cached detail",
		ModelUsed:   "m",
		GeneratedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.SummarizeBatch(context.Background(), []work.RankedWork{rankedFixture("p1")}, false)
	if err != nil {
		t.Fatalf("SummarizeBatch failed: %v", err)
	}
	if calls.Load() != 0 {
		t.Error("cached paper must not hit the LLM")
	}
	if len(summaries) != 1 || summaries[0].Bullets[0] != "cached bullet" {
		t.Errorf("cached summary not returned: %+v", summaries)
	}
}

func TestSummarizeBatchForce(t *testing.T) {
	var calls atomic.Int32
	s, st := summarizerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			w.Write([]byte(completionBody(bulletJSON, 1)))
		} else {
			w.Write([]byte(completionBody(detailedJSON, 1)))
		}
	})

	if err := st.SaveSummary(work.PaperSummary{
		PaperID: "p1", Bullets: []string{"stale"}, GeneratedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	summaries, err := s.SummarizeBatch(context.Background(), []work.RankedWork{rankedFixture("p1")}, true)
	if err != nil {
		t.Fatalf("SummarizeBatch failed: %v", err)
	}
	if calls.Load() == 0 {
		t.Error("force must regenerate cached summaries")
	}
	if summaries[0].Bullets[0] != "What is studied." {
		t.Errorf("stale summary returned despite force: %v", summaries[0].Bullets)
	}
}

func TestSummarizeBatchSkipsFailures(t *testing.T) {
	old := initialRetryDelay
	initialRetryDelay = time.Millisecond
	defer func() { initialRetryDelay = old }()

	var calls atomic.Int32
	s, _ := summarizerFixture(t, func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		// First paper's bullet call returns garbage; second paper succeeds.
		switch {
		case n == 1:
			w.Write([]byte(completionBody("not json at all", 1)))
		case n%2 == 0:
			w.Write([]byte(completionBody(bulletJSON, 1)))
		default:
			w.Write([]byte(completionBody(detailedJSON, 1)))
		}
	})

	summaries, err := s.SummarizeBatch(context.Background(), []work.RankedWork{
		rankedFixture("bad"),
		rankedFixture("good"),
	}, false)
	if err != nil {
		t.Fatalf("SummarizeBatch failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].PaperID != "good" {
		t.Errorf("failing paper should be skipped, rest kept: %+v", summaries)
	}
}

func TestParseBulletsCodeFence(t *testing.T) {
	fenced := "```json\n" + bulletJSON + "\n```"
	bullets, err := parseBullets(fenced)
	if err != nil {
		t.Fatalf("parseBullets failed on fenced JSON: %v", err)
	}
	if len(bullets) != 5 {
		t.Errorf("expected 5 bullets, got %d", len(bullets))
	}
}

func TestAttachSummaries(t *testing.T) {
	ranked := []work.RankedWork{rankedFixture("p1"), rankedFixture("p2")}
	AttachSummaries(ranked, []work.PaperSummary{{PaperID: "p2", Bullets: []string{"b"}}})

	if ranked[0].Summary != nil {
		t.Error("p1 should have no summary")
	}
	if ranked[1].Summary == nil || ranked[1].Summary.PaperID != "p2" {
		t.Error("p2 summary not attached")
	}
}
