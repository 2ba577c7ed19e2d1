package website

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"studio/internal/domain"
	"studio/internal/jobs"
	"studio/internal/poller/pollertest"
	"studio/internal/providers/genai"
	"studio/internal/providers/pexels"
)

type fakePlanner struct {
	plan   Plan
	err    error
	schema *genai.Schema
}

func (f *fakePlanner) GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error {
	f.schema = schema
	if f.err != nil {
		return f.err
	}
	raw, _ := json.Marshal(f.plan)
	return json.Unmarshal(raw, out)
}

type fakeImages struct {
	mu      sync.Mutex
	queries []string
}

func (f *fakeImages) Search(ctx context.Context, query string, perPage int) ([]pexels.Photo, error) {
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if query == "broken" {
		return nil, errors.New("pexels: status 500")
	}
	return []pexels.Photo{{ID: 1, URL: "https://images.pexels.com/" + strings.ReplaceAll(query, " ", "-") + ".jpg", Alt: query, Photographer: "Ana"}}, nil
}

type memObjects struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func (m *memObjects) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.puts == nil {
		m.puts = map[string][]byte{}
	}
	m.puts[key] = data
	return m.PublicURL(key), nil
}

func (m *memObjects) PublicURL(key string) string { return "https://cdn.example.com/" + key }

func samplePlan() Plan {
	return Plan{
		Name:    "kopi senja",
		Tagline: "Slow coffee for fast days",
		Palette: Palette{Primary: "#3B2F2F", Secondary: "#A47148", Accent: "#F2C14E", Background: "#FFF8F0", Text: "not-a-colour"},
		Hero:    Hero{Headline: "Coffee at dusk", Subheadline: "Roasted in Bandung", CTA: "Visit us", ImageQuery: "coffee shop evening"},
		Sections: []Section{
			{ID: "about", Type: "about", Title: "About", Body: "Family run <since 1998>", ImageQuery: "barista"},
			{ID: "about", Type: "features", Title: "Menu", Body: "Pour over", Items: []string{"V60", "Aeropress"}, ImageQuery: "broken"},
			{Type: "contact", Title: "Find Us", Body: "Jl. Braga 12"},
		},
	}
}

func newTestGenerator(planner Planner) (*Generator, *jobs.Tracker, *pollertest.ManualClock, *memObjects) {
	clock := pollertest.NewManualClock(time.Unix(0, 0))
	tracker := jobs.NewTracker(jobs.Options{Clock: clock})
	objects := &memObjects{}
	g := NewGenerator(Options{
		Planner: planner,
		Images:  &fakeImages{},
		Store:   objects,
		Tracker: tracker,
		Now:     func() time.Time { return time.Unix(100, 0) },
	})
	return g, tracker, clock, objects
}

func finishPoll(t *testing.T, g *Generator, tracker *jobs.Tracker, clock *pollertest.ManualClock, id string) domain.Snapshot {
	t.Helper()
	select {
	case <-g.wait(id):
	case <-time.After(2 * time.Second):
		t.Fatal("build never finished")
	}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := tracker.Get(context.Background(), id)
		if err == nil && !snap.Generating {
			return snap
		}
		if clock.Pending() > 0 {
			clock.Advance(20 * time.Second)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("snapshot never left generating")
	return domain.Snapshot{}
}

func TestStartGeneratesAndPublishesSite(t *testing.T) {
	planner := &fakePlanner{plan: samplePlan()}
	g, tracker, clock, objects := newTestGenerator(planner)
	defer tracker.Close()

	snap, err := g.Start(context.Background(), "owner-1", Brief{BusinessName: "Kopi Senja", Description: "Coffee shop", Language: "Indonesian"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !strings.HasPrefix(snap.JobID, "site_") || !snap.Generating || snap.Kind != domain.JobKindWebsiteGeneration {
		t.Fatalf("initial snapshot = %+v", snap)
	}
	final := finishPoll(t, g, tracker, clock, snap.JobID)
	if final.State != domain.JobStateSucceeded || final.Progress != 100 {
		t.Fatalf("final = %+v", final)
	}
	if final.ResultURL != "https://cdn.example.com/sites/"+snap.JobID+"/index.html" {
		t.Fatalf("result url = %q", final.ResultURL)
	}
	if planner.schema != planSchema {
		t.Fatal("plan requested without the response schema")
	}

	ids := map[string]int{}
	for _, it := range final.Items {
		ids[it.ID]++
	}
	for _, want := range []string{"section-about", "section-about-2", "section-find-us", "image-hero", "image-about"} {
		if ids[want] != 1 {
			t.Fatalf("item %s appears %d times in %+v", want, ids[want], final.Items)
		}
	}
	if ids["image-about-2"] != 0 {
		t.Fatal("failed image search produced an item")
	}

	objects.mu.Lock()
	html := string(objects.puts["sites/"+snap.JobID+"/index.html"])
	objects.mu.Unlock()
	if !strings.Contains(html, "Kopi Senja") || !strings.Contains(html, `lang="id"`) {
		t.Fatalf("html missing title-cased name or language:\n%s", html)
	}
	if strings.Contains(html, "<since 1998>") {
		t.Fatal("model copy was not escaped")
	}
}

func TestStartPlanFailureFailsJob(t *testing.T) {
	planner := &fakePlanner{err: domain.MissingConfig("GEMINI_API_KEY")}
	g, tracker, clock, _ := newTestGenerator(planner)
	defer tracker.Close()

	snap, err := g.Start(context.Background(), "owner-1", Brief{BusinessName: "X", Description: "Y"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	final := finishPoll(t, g, tracker, clock, snap.JobID)
	if final.State != domain.JobStateFailed || !strings.Contains(final.Error, "GEMINI_API_KEY") {
		t.Fatalf("final = %+v", final)
	}
	if _, err := g.Export("owner-1", snap.JobID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Export err = %v, want ErrNotReady", err)
	}
}

func TestStartRequiresBrief(t *testing.T) {
	g, tracker, _, _ := newTestGenerator(&fakePlanner{})
	defer tracker.Close()
	if _, err := g.Start(context.Background(), "o", Brief{BusinessName: " "}); err == nil {
		t.Fatal("empty brief accepted")
	}
}

func TestExportBundlesSite(t *testing.T) {
	g, tracker, clock, _ := newTestGenerator(&fakePlanner{plan: samplePlan()})
	defer tracker.Close()
	snap, err := g.Start(context.Background(), "owner-1", Brief{BusinessName: "Kopi Senja", Description: "Coffee"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	finishPoll(t, g, tracker, clock, snap.JobID)

	if _, err := g.Export("someone-else", snap.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("foreign export err = %v, want ErrNotFound", err)
	}
	if _, err := g.Export("owner-1", "site_missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing export err = %v, want ErrNotFound", err)
	}

	data, err := g.Export("owner-1", snap.JobID)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	files := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		body, _ := io.ReadAll(rc)
		rc.Close()
		files[f.Name] = string(body)
	}
	if !strings.Contains(files["styles.css"], "--text:#111827") {
		t.Fatalf("invalid palette colour not replaced: %s", files["styles.css"])
	}
	var site Site
	if err := json.Unmarshal([]byte(files["site.json"]), &site); err != nil {
		t.Fatalf("site.json: %v", err)
	}
	if site.Plan.Name != "Kopi Senja" || len(site.Plan.Sections) != 3 {
		t.Fatalf("site.json plan = %+v", site.Plan)
	}
	if _, ok := files["index.html"]; !ok {
		t.Fatal("index.html missing")
	}
}

func TestCancelStopsBuild(t *testing.T) {
	block := make(chan struct{})
	planner := plannerFunc(func(ctx context.Context) error {
		close(block)
		<-ctx.Done()
		return ctx.Err()
	})
	g, tracker, _, _ := newTestGenerator(planner)
	defer tracker.Close()

	snap, err := g.Start(context.Background(), "o", Brief{BusinessName: "A", Description: "B"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-block
	if err := tracker.Cancel(context.Background(), snap.JobID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	select {
	case <-g.wait(snap.JobID):
	case <-time.After(2 * time.Second):
		t.Fatal("build goroutine kept running after cancel")
	}
}

type plannerFunc func(ctx context.Context) error

func (f plannerFunc) GenerateJSON(ctx context.Context, _, _ string, _ *genai.Schema, _ any) error {
	return f(ctx)
}

func TestTimedOutBuildIsStopped(t *testing.T) {
	planner := plannerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	g, tracker, clock, _ := newTestGenerator(planner)
	defer tracker.Close()

	snap, err := g.Start(context.Background(), "o", Brief{BusinessName: "A", Description: "B"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		cur, err := tracker.Get(context.Background(), snap.JobID)
		if err == nil && !cur.Generating {
			if !strings.Contains(cur.Error, "timed out") {
				t.Fatalf("error = %q, want timeout", cur.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never timed out")
		}
		if clock.Pending() > 0 {
			clock.Advance(20 * time.Second)
		}
		time.Sleep(time.Millisecond)
	}
	select {
	case <-g.wait(snap.JobID):
	case <-time.After(2 * time.Second):
		t.Fatal("build goroutine kept running after the job timed out")
	}
}

func TestFinishedBuildsExpire(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(100, 0)
	clock := pollertest.NewManualClock(time.Unix(0, 0))
	tracker := jobs.NewTracker(jobs.Options{Clock: clock})
	defer tracker.Close()
	g := NewGenerator(Options{
		Planner: &fakePlanner{plan: samplePlan()},
		Images:  &fakeImages{},
		Tracker: tracker,
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		},
		Retention: time.Hour,
	})

	first, err := g.Start(context.Background(), "o", Brief{BusinessName: "A", Description: "B"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	finishPoll(t, g, tracker, clock, first.JobID)
	if _, err := g.Site("o", first.JobID); err != nil {
		t.Fatalf("Site before expiry: %v", err)
	}

	mu.Lock()
	now = now.Add(2 * time.Hour)
	mu.Unlock()
	second, err := g.Start(context.Background(), "o", Brief{BusinessName: "C", Description: "D"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := g.Site("o", first.JobID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expired Site err = %v, want ErrNotFound", err)
	}
	finishPoll(t, g, tracker, clock, second.JobID)
	if _, err := g.Site("o", second.JobID); err != nil {
		t.Fatalf("Site for fresh build: %v", err)
	}
}
