package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/jobs"
	"studio/internal/poller"
	"studio/internal/providers/instagram"
	"studio/internal/providers/tiktok"
)

type PublisherOptions struct {
	Tokens    *TokenSource
	Repo      domain.SocialTokenRepository
	TikTok    *tiktok.Client
	Instagram *instagram.Client
	Media     *MediaUploader
	Tracker   *jobs.Tracker
	Now       func() time.Time
	Logger    *infra.Logger
}

// Publisher pushes videos to connected accounts. Each publish is tracked as a
// social-publish job so its progress can be streamed while the caller waits.
type Publisher struct {
	tokens    *TokenSource
	repo      domain.SocialTokenRepository
	tiktok    *tiktok.Client
	instagram *instagram.Client
	media     *MediaUploader
	tracker   *jobs.Tracker
	now       func() time.Time
	logger    *infra.Logger
}

func NewPublisher(opts PublisherOptions) *Publisher {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		tokens:    opts.Tokens,
		repo:      opts.Repo,
		tiktok:    opts.TikTok,
		instagram: opts.Instagram,
		media:     opts.Media,
		tracker:   opts.Tracker,
		now:       now,
		logger:    infra.NopLogger(opts.Logger),
	}
}

// ShareToTikTok uploads by URL, polls the publish status and returns the post
// once TikTok reports it complete. A publish TikTok rejects is reported in the
// result, not as an error.
func (p *Publisher) ShareToTikTok(ctx context.Context, userID string, req domain.ShareRequest) (domain.ShareResult, error) {
	tok, err := p.tokens.Valid(ctx, userID, domain.PlatformTikTok)
	if err != nil {
		return domain.ShareResult{}, err
	}
	videoURL, err := p.media.EnsurePublic(ctx, "tiktok/"+userID, req.VideoURL)
	if err != nil {
		return domain.ShareResult{}, err
	}
	publishID, err := p.tiktok.InitPublish(ctx, tok.AccessToken, videoURL, req.Caption, req.AsDraft)
	if err != nil {
		return domain.ShareResult{}, err
	}

	job := poller.NewJob(publishID, domain.JobKindSocialPublish, poller.ProviderTikTok, userID, p.now())
	snap, err := p.track(ctx, job, "tiktok publish", func(ctx context.Context, _ int) (domain.JobStatus, error) {
		st, err := p.tiktok.FetchStatus(ctx, tok.AccessToken, publishID)
		if err != nil {
			return domain.JobStatus{}, err
		}
		return tiktok.MapStatus(st, publishID), nil
	})
	if err != nil {
		return domain.ShareResult{}, err
	}
	if snap.State != domain.JobStateSucceeded {
		return domain.ShareResult{Success: false, Error: snap.Error}, nil
	}

	postID := snap.PostID
	if postID == "" {
		postID = publishID
	}
	p.touchUsage(ctx, userID, domain.PlatformTikTok)
	return domain.ShareResult{
		Success: true,
		PostID:  postID,
		PostURL: tiktok.PostURL(tok.PlatformUserID, postID),
	}, nil
}

// ShareToInstagram creates a Reels container, waits for it to finish
// processing and publishes it.
func (p *Publisher) ShareToInstagram(ctx context.Context, userID string, req domain.ShareRequest) (domain.ShareResult, error) {
	tok, err := p.tokens.Valid(ctx, userID, domain.PlatformInstagram)
	if err != nil {
		return domain.ShareResult{}, err
	}
	if tok.PlatformUserID == "" {
		return domain.ShareResult{}, fmt.Errorf("%w: instagram business account unknown, reconnect the account", domain.ErrNotConnected)
	}
	videoURL, err := p.media.EnsurePublic(ctx, "instagram/"+userID, req.VideoURL)
	if err != nil {
		return domain.ShareResult{}, err
	}
	containerID, err := p.instagram.CreateReelContainer(ctx, tok.AccessToken, tok.PlatformUserID, videoURL, req.Caption)
	if err != nil {
		return domain.ShareResult{}, err
	}

	job := poller.NewJob(containerID, domain.JobKindSocialPublish, poller.ProviderInstagram, userID, p.now())
	snap, err := p.track(ctx, job, "instagram publish", func(ctx context.Context, _ int) (domain.JobStatus, error) {
		code, detail, err := p.instagram.ContainerStatus(ctx, tok.AccessToken, containerID)
		if err != nil {
			return domain.JobStatus{}, err
		}
		return instagram.MapContainerStatus(code, detail), nil
	})
	if err != nil {
		return domain.ShareResult{}, err
	}
	if snap.State != domain.JobStateSucceeded {
		return domain.ShareResult{Success: false, Error: snap.Error}, nil
	}

	mediaID, err := p.instagram.Publish(ctx, tok.AccessToken, tok.PlatformUserID, containerID)
	if err != nil {
		return domain.ShareResult{}, err
	}
	permalink, err := p.instagram.Permalink(ctx, tok.AccessToken, mediaID)
	if err != nil {
		p.logger.Warn().Err(err).Str("media_id", mediaID).Msg("social: permalink lookup failed")
	}
	p.touchUsage(ctx, userID, domain.PlatformInstagram)
	return domain.ShareResult{Success: true, PostID: mediaID, PostURL: permalink}, nil
}

// track polls job through the tracker and blocks until it finishes. Leaving
// early cancels the job. A platform's own rejection comes back as a failed
// snapshot; timeouts and aborted polls come back as errors.
func (p *Publisher) track(ctx context.Context, job domain.Job, label string, check poller.CheckFunc) (domain.Snapshot, error) {
	var pollErr error
	h, err := p.tracker.Start(ctx, jobs.Watch{
		Job:      job,
		Check:    check,
		Label:    label,
		OnFinish: func(_ domain.Snapshot, err error) { pollErr = err },
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	select {
	case <-h.Done():
	case <-ctx.Done():
		_ = h.Cancel()
		return domain.Snapshot{}, fmt.Errorf("%s: %w", label, domain.ErrCanceled)
	}
	snap := h.Snapshot()
	if pollErr != nil && !errors.Is(pollErr, domain.ErrJobFailed) {
		return snap, fmt.Errorf("%s: %w", label, pollErr)
	}
	return snap, nil
}

// touchUsage records last use. It never fails the publish.
func (p *Publisher) touchUsage(ctx context.Context, userID string, platform domain.Platform) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.repo.TouchUsage(ctx, userID, platform); err != nil {
		p.logger.Warn().Err(err).Str("user_id", userID).Str("platform", string(platform)).Msg("social: usage update failed")
	}
}

// IsUserError reports errors caused by the request rather than a platform.
func IsUserError(err error) bool {
	return errors.Is(err, ErrUnsupportedMedia)
}
