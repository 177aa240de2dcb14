package source

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/zotwatch/zotwatch/internal/work"
)

// stubSource is a canned Source for registry tests.
type stubSource struct {
	name    string
	enabled bool
	works   []work.CandidateWork
	err     error
	calls   int
}

func (s *stubSource) Name() string  { return s.name }
func (s *stubSource) Enabled() bool { return s.enabled }

func (s *stubSource) Fetch(context.Context, int) ([]work.CandidateWork, error) {
	s.calls++
	return s.works, s.err
}

func TestRegistryFetchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("concatenates in priority order", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		r.Register(&stubSource{name: "biorxiv", enabled: true, works: []work.CandidateWork{
			{Source: "biorxiv", Identifier: "b1"},
		}})
		r.Register(&stubSource{name: "arxiv", enabled: true, works: []work.CandidateWork{
			{Source: "arxiv", Identifier: "a1"},
			{Source: "arxiv", Identifier: "a2"},
		}})

		got, err := r.FetchAll(ctx, 7)
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		if len(got) != 3 || got[0].Identifier != "b1" || got[1].Identifier != "a1" {
			t.Errorf("unexpected order/content: %+v", got)
		}
	})

	t.Run("continues past a failing source", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		r.Register(&stubSource{name: "arxiv", enabled: true, err: errors.New("upstream down")})
		good := &stubSource{name: "biorxiv", enabled: true, works: []work.CandidateWork{
			{Source: "biorxiv", Identifier: "b1"},
		}}
		r.Register(good)

		got, err := r.FetchAll(ctx, 7)
		if err != nil {
			t.Fatalf("partial failure should not error: %v", err)
		}
		if len(got) != 1 || good.calls != 1 {
			t.Errorf("surviving source should have been fetched, got %+v", got)
		}
	})

	t.Run("all sources failing reports the error", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		r.Register(&stubSource{name: "arxiv", enabled: true, err: errors.New("down")})
		r.Register(&stubSource{name: "biorxiv", enabled: true, err: errors.New("down too")})

		if _, err := r.FetchAll(ctx, 7); err == nil {
			t.Error("expected an error when every source fails")
		}
	})

	t.Run("disabled sources are skipped", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		off := &stubSource{name: "medrxiv", enabled: false}
		r.Register(off)

		got, err := r.FetchAll(ctx, 7)
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		if off.calls != 0 {
			t.Error("disabled source must not be fetched")
		}
		if len(got) != 0 {
			t.Errorf("expected no candidates, got %d", len(got))
		}
	})

	t.Run("priority lists names in registration order", func(t *testing.T) {
		r := NewRegistry(zap.NewNop())
		r.Register(&stubSource{name: "biorxiv"})
		r.Register(&stubSource{name: "arxiv"})
		got := r.Priority()
		if len(got) != 2 || got[0] != "biorxiv" || got[1] != "arxiv" {
			t.Errorf("unexpected priority order: %v", got)
		}
	})
}
