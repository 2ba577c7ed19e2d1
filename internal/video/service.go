// Package video starts AI video renders and tracks them until a playable
// URL is available.
package video

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/poller"
	"studio/internal/providers/creatomate"
	"studio/internal/providers/runway"
	"studio/internal/providers/stability"
	"studio/internal/storage"
)

const label = "video generation"

var ErrUnknownProvider = errors.New("unknown video provider")

type Creatomate interface {
	Submit(ctx context.Context, req creatomate.RenderRequest) (domain.Job, error)
	Status(ctx context.Context, renderID string) (domain.JobStatus, error)
}

type Runway interface {
	Submit(ctx context.Context, req runway.ImageToVideoRequest) (domain.Job, error)
	Status(ctx context.Context, taskID string) (domain.JobStatus, error)
}

type Stability interface {
	Submit(ctx context.Context, req stability.ImageToVideoRequest) (domain.Job, error)
	Result(ctx context.Context, generationID string) (stability.Result, error)
}

// Request selects a provider and carries its inputs. Creatomate renders
// Scenes with Theme; Runway animates ImageURL guided by Prompt; Stability
// animates the raw Image bytes.
type Request struct {
	Provider string             `json:"provider"`
	Scenes   []creatomate.Scene `json:"scenes,omitempty"`
	Theme    string             `json:"theme,omitempty"`
	ImageURL string             `json:"image_url,omitempty"`
	Prompt   string             `json:"prompt,omitempty"`
	Duration int                `json:"duration,omitempty"`
	Ratio    string             `json:"ratio,omitempty"`
	Image    []byte             `json:"-"`
	Filename string             `json:"-"`
}

type Options struct {
	Creatomate Creatomate
	Runway     Runway
	Stability  Stability
	// Store receives Stability output, which arrives as bytes rather than a URL.
	Store   storage.ObjectStore
	Tracker *jobs.Tracker
	Logger  *infra.Logger
}

type Service struct {
	creatomate Creatomate
	runway     Runway
	stability  Stability
	store      storage.ObjectStore
	tracker    *jobs.Tracker
	logger     *infra.Logger
}

func NewService(opts Options) *Service {
	return &Service{
		creatomate: opts.Creatomate,
		runway:     opts.Runway,
		stability:  opts.Stability,
		store:      opts.Store,
		tracker:    opts.Tracker,
		logger:     infra.NopLogger(opts.Logger),
	}
}

// Generate submits the render and hands it to the tracker. The returned
// snapshot is the initial one, with Generating set.
func (s *Service) Generate(ctx context.Context, ownerID string, req Request) (domain.Snapshot, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	if provider == "" {
		provider = poller.ProviderCreatomate
	}

	var (
		job   domain.Job
		check poller.CheckFunc
		err   error
	)
	switch provider {
	case poller.ProviderCreatomate:
		if s.creatomate == nil {
			return domain.Snapshot{}, domain.MissingConfig("CREATOMATE_API_KEY")
		}
		job, err = s.creatomate.Submit(ctx, creatomate.RenderRequest{OwnerID: ownerID, Scenes: req.Scenes, Theme: req.Theme})
		if err == nil {
			id := job.ID
			check = func(ctx context.Context, _ int) (domain.JobStatus, error) { return s.creatomate.Status(ctx, id) }
		}
	case poller.ProviderRunway:
		if s.runway == nil {
			return domain.Snapshot{}, domain.MissingConfig("RUNWAY_API_KEY")
		}
		job, err = s.runway.Submit(ctx, runway.ImageToVideoRequest{
			OwnerID:     ownerID,
			PromptImage: req.ImageURL,
			PromptText:  req.Prompt,
			Duration:    req.Duration,
			Ratio:       req.Ratio,
		})
		if err == nil {
			id := job.ID
			check = func(ctx context.Context, _ int) (domain.JobStatus, error) { return s.runway.Status(ctx, id) }
		}
	case poller.ProviderStability:
		if s.stability == nil {
			return domain.Snapshot{}, domain.MissingConfig("STABILITY_API_KEY")
		}
		job, err = s.stability.Submit(ctx, stability.ImageToVideoRequest{OwnerID: ownerID, Image: req.Image, Filename: req.Filename})
		if err == nil {
			check = s.stabilityCheck(job.ID)
		}
	default:
		return domain.Snapshot{}, fmt.Errorf("%w: %q", ErrUnknownProvider, req.Provider)
	}
	if err != nil {
		return domain.Snapshot{}, err
	}

	h, err := s.tracker.Start(ctx, jobs.Watch{
		Job:   job,
		Check: check,
		Label: label,
		OnFinish: func(snap domain.Snapshot, err error) {
			if err != nil {
				s.logger.Warn().Err(err).Str("job_id", snap.JobID).Str("provider", snap.Provider).Msg("video: render did not complete")
				return
			}
			s.logger.Info().Str("job_id", snap.JobID).Str("url", snap.ResultURL).Msg("video: render ready")
		},
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	return h.Snapshot(), nil
}

// stabilityCheck polls a generation and stores the finished MP4 so the
// snapshot can carry a URL like the other providers.
func (s *Service) stabilityCheck(generationID string) poller.CheckFunc {
	return func(ctx context.Context, _ int) (domain.JobStatus, error) {
		res, err := s.stability.Result(ctx, generationID)
		if err != nil {
			return domain.JobStatus{}, err
		}
		if res.Status.State != domain.JobStateSucceeded {
			return res.Status, nil
		}
		if s.store == nil {
			return domain.Failed("no object storage configured for video output"), nil
		}
		url, err := s.store.Put(ctx, storage.ObjectKey("videos", "video/mp4"), res.Video, "video/mp4")
		if err != nil {
			return domain.JobStatus{}, fmt.Errorf("video: store stability output: %w", err)
		}
		return domain.Succeeded(url), nil
	}
}

// Get returns the latest snapshot of a render owned by ownerID.
func (s *Service) Get(ctx context.Context, ownerID, jobID string) (domain.Snapshot, error) {
	snap, err := s.tracker.Get(ctx, jobID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if snap.OwnerID != "" && snap.OwnerID != ownerID {
		return domain.Snapshot{}, domain.ErrNotFound
	}
	return snap, nil
}

// Cancel stops polling and releases the job's resources.
func (s *Service) Cancel(ctx context.Context, ownerID, jobID string) error {
	if _, err := s.Get(ctx, ownerID, jobID); err != nil {
		return err
	}
	return s.tracker.Cancel(ctx, jobID)
}
