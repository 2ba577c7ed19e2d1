package jobs

import (
	"testing"

	"studio/internal/domain"
)

func ids(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestMergeByIDDeduplicatesInFirstSeenOrder(t *testing.T) {
	a := domain.Item{ID: "a", Text: "first"}
	b := domain.Item{ID: "b", Text: "second"}
	c := domain.Item{ID: "c", Text: "third"}

	got := MergeByID([]domain.Item{a, b}, []domain.Item{b, c})

	want := []string{"a", "b", "c"}
	if g := ids(got); len(g) != len(want) || g[0] != want[0] || g[1] != want[1] || g[2] != want[2] {
		t.Fatalf("ids = %v, want %v", g, want)
	}
}

func TestMergeByIDUpdatesKnownItem(t *testing.T) {
	existing := []domain.Item{{ID: "hero", Type: "image", Text: "loading"}}
	incoming := []domain.Item{{ID: "hero", URL: "https://images.example.com/1.jpg", Extra: map[string]any{"w": 1200}}}

	got := MergeByID(existing, incoming)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Type != "image" || got[0].Text != "loading" || got[0].URL == "" || got[0].Extra["w"] != 1200 {
		t.Fatalf("merged item = %+v", got[0])
	}
	if existing[0].URL != "" {
		t.Fatal("MergeByID mutated its input")
	}
}

func TestMergeByIDIsIdempotent(t *testing.T) {
	items := []domain.Item{{ID: "a"}, {ID: "b"}}
	once := MergeByID(nil, items)
	twice := MergeByID(once, items)
	if len(twice) != 2 {
		t.Fatalf("len = %d after re-merging same items, want 2", len(twice))
	}
}

func TestApplyCarriesOnlyPresentFields(t *testing.T) {
	prev := domain.NewSnapshot(domain.Job{ID: "r1", Kind: domain.JobKindVideoRender, Provider: "creatomate"})

	snap := Apply(prev, domain.Pending(30))
	if snap.State != domain.JobStateProcessing || snap.Progress != 30 || !snap.Generating {
		t.Fatalf("pending snapshot = %+v", snap)
	}

	snap = Apply(snap, domain.Pending(0))
	if snap.Progress != 30 {
		t.Fatalf("progress dropped to %d on status without progress", snap.Progress)
	}

	snap = Apply(snap, domain.Succeeded("https://cdn.example.com/r1.mp4"))
	if snap.Generating || snap.Progress != 100 || snap.ResultURL != "https://cdn.example.com/r1.mp4" || snap.Error != "" {
		t.Fatalf("succeeded snapshot = %+v", snap)
	}
}

func TestApplyFailureKeepsProviderMessage(t *testing.T) {
	prev := domain.NewSnapshot(domain.Job{ID: "r2"})

	snap := Apply(prev, domain.Failed("Source image too small"))
	if snap.Generating || snap.Error != "Source image too small" {
		t.Fatalf("failed snapshot = %+v", snap)
	}

	snap = Apply(prev, domain.Failed(""))
	if snap.Error != "generation failed" {
		t.Fatalf("generic error = %q", snap.Error)
	}
}
