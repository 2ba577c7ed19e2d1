// Package website generates one-page business sites from a short brief:
// Gemini writes the plan and copy, Pexels supplies the photos.
package website

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/poller"
	"studio/internal/providers/genai"
	"studio/internal/providers/pexels"
	"studio/internal/storage"
	"studio/pkg/zip"
)

const label = "website generation"

// DefaultRetention is how long a finished build stays available for
// viewing and export.
const DefaultRetention = 24 * time.Hour

var (
	ErrNotReady     = errors.New("website is not ready")
	ErrInvalidBrief = errors.New("business name and description are required")
)

// Planner produces structured output from Gemini.
type Planner interface {
	GenerateJSON(ctx context.Context, system, prompt string, schema *genai.Schema, out any) error
}

// ImageSearcher finds stock photos.
type ImageSearcher interface {
	Search(ctx context.Context, query string, perPage int) ([]pexels.Photo, error)
}

type Options struct {
	Planner Planner
	Images  ImageSearcher
	// Store, when set, publishes the rendered page and its result URL.
	Store   storage.ObjectStore
	Tracker *jobs.Tracker
	Now     func() time.Time
	// Retention defaults to DefaultRetention.
	Retention time.Duration
	Logger    *infra.Logger
}

// Site is a finished generation.
type Site struct {
	ID        string                  `json:"id"`
	OwnerID   string                  `json:"owner_id"`
	Brief     Brief                   `json:"brief"`
	Plan      Plan                    `json:"plan"`
	Hero      *pexels.Photo           `json:"hero,omitempty"`
	Images    map[string]pexels.Photo `json:"images,omitempty"`
	HTML      []byte                  `json:"-"`
	CSS       []byte                  `json:"-"`
	URL       string                  `json:"url,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type Generator struct {
	planner   Planner
	images    ImageSearcher
	store     storage.ObjectStore
	tracker   *jobs.Tracker
	now       func() time.Time
	retention time.Duration
	logger    *infra.Logger

	mu     sync.Mutex
	builds map[string]*build
}

func NewGenerator(opts Options) *Generator {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	retention := opts.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Generator{
		planner:   opts.Planner,
		images:    opts.Images,
		store:     opts.Store,
		tracker:   opts.Tracker,
		now:       now,
		retention: retention,
		logger:    infra.NopLogger(opts.Logger),
		builds:    make(map[string]*build),
	}
}

// build is the progress of one generation. The builder goroutine writes it;
// the tracker's status check reads it.
type build struct {
	owner    string
	mu       sync.Mutex
	progress int
	items    []domain.Item
	messages []domain.Item
	site     *Site
	err      error
	ended    time.Time
	done     chan struct{}
}

func (b *build) stage(progress int, msgID, text string, items ...domain.Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if progress > b.progress {
		b.progress = progress
	}
	b.items = jobs.MergeByID(b.items, items)
	if msgID != "" {
		b.messages = jobs.MergeByID(b.messages, []domain.Item{{ID: msgID, Type: "status", Text: text}})
	}
}

func (b *build) finish(site *Site, err error, at time.Time) {
	b.mu.Lock()
	b.site, b.err, b.ended = site, err, at
	b.mu.Unlock()
	close(b.done)
}

func (b *build) expired(cutoff time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.ended.IsZero() && b.ended.Before(cutoff)
}

func (b *build) status() domain.JobStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	var st domain.JobStatus
	switch {
	case b.err != nil:
		st = domain.Failed(b.err.Error())
	case b.site != nil:
		st = domain.Succeeded(b.site.URL)
	default:
		st = domain.Pending(b.progress)
	}
	st = st.WithItems(b.items...)
	st.Messages = append([]domain.Item(nil), b.messages...)
	return st
}

// Start accepts a brief and generates the site in the background. Progress
// is reported through the tracker at the website-generation interval.
func (g *Generator) Start(ctx context.Context, ownerID string, brief Brief) (domain.Snapshot, error) {
	brief.BusinessName = strings.TrimSpace(brief.BusinessName)
	brief.Description = strings.TrimSpace(brief.Description)
	if brief.BusinessName == "" || brief.Description == "" {
		return domain.Snapshot{}, ErrInvalidBrief
	}

	id := "site_" + uuid.NewString()
	job := poller.NewJob(id, domain.JobKindWebsiteGeneration, poller.ProviderGeminiSite, ownerID, g.now())
	b := &build{owner: ownerID, done: make(chan struct{})}
	b.stage(0, "stage-queued", "Queued")

	g.mu.Lock()
	g.pruneLocked(g.now())
	g.builds[id] = b
	g.mu.Unlock()

	h, err := g.tracker.Start(ctx, jobs.Watch{
		Job:   job,
		Check: func(context.Context, int) (domain.JobStatus, error) { return b.status(), nil },
		Label: label,
	})
	if err != nil {
		g.mu.Lock()
		delete(g.builds, id)
		g.mu.Unlock()
		return domain.Snapshot{}, err
	}

	buildCtx, cancel := context.WithCancel(h.Context())
	h.OnCancel(jobs.CloserFunc(func() error { cancel(); return nil }))
	go func() {
		defer cancel()
		site, err := g.generate(buildCtx, id, ownerID, brief, b)
		if err != nil {
			g.logger.Warn().Err(err).Str("job_id", id).Msg("website: generation failed")
		} else {
			g.logger.Info().Str("job_id", id).Int("sections", len(site.Plan.Sections)).Msg("website: generation finished")
		}
		b.finish(site, err, g.now())
	}()
	return h.Snapshot(), nil
}

func (g *Generator) generate(ctx context.Context, id, ownerID string, brief Brief, b *build) (*Site, error) {
	b.stage(5, "stage-plan", "Writing the site plan")
	var plan Plan
	if err := g.planner.GenerateJSON(ctx, planSystem, planPrompt(brief), planSchema, &plan); err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	plan.normalize(brief)
	if len(plan.Sections) == 0 {
		return nil, errors.New("plan has no sections")
	}

	sections := make([]domain.Item, 0, len(plan.Sections))
	for _, s := range plan.Sections {
		sections = append(sections, domain.Item{ID: "section-" + s.ID, Type: "section", Text: s.Title, Extra: map[string]any{"kind": s.Type}})
	}
	b.stage(30, "stage-plan", "Site plan ready", sections...)

	site := &Site{
		ID:        id,
		OwnerID:   ownerID,
		Brief:     brief,
		Plan:      plan,
		Images:    map[string]pexels.Photo{},
		CreatedAt: g.now(),
	}

	b.stage(30, "stage-images", "Finding photos")
	queries := []struct{ id, query string }{{"hero", plan.Hero.ImageQuery}}
	for _, s := range plan.Sections {
		queries = append(queries, struct{ id, query string }{s.ID, s.ImageQuery})
	}
	for i, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		photo, ok := g.photo(ctx, q.query)
		if ok {
			if q.id == "hero" {
				site.Hero = &photo
			} else {
				site.Images[q.id] = photo
			}
			b.stage(30+60*(i+1)/len(queries), "", "", domain.Item{ID: "image-" + q.id, Type: "image", URL: photo.URL, Text: photo.Alt})
		}
	}

	b.stage(90, "stage-render", "Building the page")
	html, err := renderHTML(site.Plan, site.Hero, site.Images, brief.Language)
	if err != nil {
		return nil, err
	}
	site.HTML = html
	site.CSS = renderCSS(site.Plan.Palette)

	if g.store != nil {
		prefix := "sites/" + id + "/"
		if _, err := g.store.Put(ctx, prefix+"styles.css", site.CSS, "text/css"); err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		url, err := g.store.Put(ctx, prefix+"index.html", site.HTML, "text/html; charset=utf-8")
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		site.URL = url
	}
	b.stage(100, "stage-render", "Website ready")
	return site, nil
}

// photo returns the first hit for query. Search failures only cost the image.
func (g *Generator) photo(ctx context.Context, query string) (pexels.Photo, bool) {
	query = strings.TrimSpace(query)
	if query == "" || g.images == nil {
		return pexels.Photo{}, false
	}
	photos, err := g.images.Search(ctx, query, 1)
	if err != nil {
		g.logger.Warn().Err(err).Str("query", query).Msg("website: image search failed")
		return pexels.Photo{}, false
	}
	if len(photos) == 0 {
		return pexels.Photo{}, false
	}
	return photos[0], true
}

// pruneLocked drops builds that finished longer than the retention ago.
func (g *Generator) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.retention)
	for id, b := range g.builds {
		if b.expired(cutoff) {
			delete(g.builds, id)
		}
	}
}

// Site returns a finished site owned by ownerID.
func (g *Generator) Site(ownerID, id string) (*Site, error) {
	g.mu.Lock()
	b, ok := g.builds[id]
	g.mu.Unlock()
	if !ok || b.owner != ownerID {
		return nil, domain.ErrNotFound
	}
	b.mu.Lock()
	site, err := b.site, b.err
	b.mu.Unlock()
	switch {
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrNotReady, err)
	case site == nil:
		return nil, ErrNotReady
	}
	return site, nil
}

// Export packages a finished site as a zip archive.
func (g *Generator) Export(ownerID, id string) ([]byte, error) {
	site, err := g.Site(ownerID, id)
	if err != nil {
		return nil, err
	}
	return Export(site)
}

// Export bundles the page, its stylesheet and the plan it was built from.
func Export(site *Site) ([]byte, error) {
	meta, err := json.MarshalIndent(site, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("website: encode site.json: %w", err)
	}
	return zip.Archive([]zip.File{
		{Name: "index.html", Data: site.HTML, Modified: site.CreatedAt},
		{Name: "styles.css", Data: site.CSS, Modified: site.CreatedAt},
		{Name: "site.json", Data: meta, Modified: site.CreatedAt},
	})
}

// wait blocks until the build for id finished. Used by tests.
func (g *Generator) wait(id string) <-chan struct{} {
	g.mu.Lock()
	defer g.mu.Unlock()
	if b, ok := g.builds[id]; ok {
		return b.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}
