package domain

import (
	"strings"
	"time"
)

// JobKind enumerates the long-running operations tracked by the service.
type JobKind string

const (
	JobKindVideoRender       JobKind = "video-render"
	JobKindSocialPublish     JobKind = "social-publish"
	JobKindWebsiteGeneration JobKind = "website-generation"
)

// JobState is the closed set of local states every provider status maps into.
type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateProcessing JobState = "processing"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
)

// IsTerminal reports whether the state is final.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// Job is the handle returned by a submitter once an external system accepted work.
// Only the poller's attempt counter changes after creation.
type Job struct {
	ID           string        `json:"id"`
	Kind         JobKind       `json:"kind"`
	Provider     string        `json:"provider"`
	OwnerID      string        `json:"owner_id"`
	SubmittedAt  time.Time     `json:"submitted_at"`
	PollInterval time.Duration `json:"poll_interval"`
	MaxAttempts  int           `json:"max_attempts"`
}

// Item is one id-addressable partial result (an image preview, a status line, a page section).
type Item struct {
	ID    string         `json:"id"`
	Type  string         `json:"type,omitempty"`
	Text  string         `json:"text,omitempty"`
	URL   string         `json:"url,omitempty"`
	Extra map[string]any `json:"extra,omitempty"`
}

// JobStatus is produced fresh on every poll. Use the constructors so that
// ResultURL only appears on success and ErrorMessage only on failure.
type JobStatus struct {
	State        JobState `json:"state"`
	Progress     int      `json:"progress,omitempty"`
	ResultURL    string   `json:"result_url,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
	PostID       string   `json:"post_id,omitempty"`
	Items        []Item   `json:"items,omitempty"`
	Messages     []Item   `json:"messages,omitempty"`
}

// Pending builds a non-terminal status. A positive progress marks it as processing.
func Pending(progress int) JobStatus {
	state := JobStatePending
	if progress > 0 {
		state = JobStateProcessing
	}
	return JobStatus{State: state, Progress: clampProgress(progress)}
}

// Succeeded builds a terminal success status.
func Succeeded(resultURL string) JobStatus {
	return JobStatus{State: JobStateSucceeded, Progress: 100, ResultURL: strings.TrimSpace(resultURL)}
}

// Failed builds a terminal failure status. An empty message is kept empty so
// callers can distinguish a provider message from the generic fallback.
func Failed(message string) JobStatus {
	return JobStatus{State: JobStateFailed, ErrorMessage: strings.TrimSpace(message)}
}

// IsTerminal reports whether no further status for the job is meaningful.
func (s JobStatus) IsTerminal() bool {
	return s.State.IsTerminal()
}

// WithItems returns a copy carrying partial results.
func (s JobStatus) WithItems(items ...Item) JobStatus {
	s.Items = append([]Item(nil), items...)
	return s
}

// Snapshot is the reconciled, client-facing view of a job.
type Snapshot struct {
	JobID      string    `json:"job_id"`
	Kind       JobKind   `json:"kind"`
	Provider   string    `json:"provider"`
	OwnerID    string    `json:"owner_id,omitempty"`
	State      JobState  `json:"state"`
	Progress   int       `json:"progress"`
	ResultURL  string    `json:"result_url,omitempty"`
	PostID     string    `json:"post_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	Generating bool      `json:"generating"`
	Items      []Item    `json:"items,omitempty"`
	Messages   []Item    `json:"messages,omitempty"`
	Attempts   int       `json:"attempts"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewSnapshot returns the initial state for a freshly submitted job.
func NewSnapshot(job Job) Snapshot {
	return Snapshot{
		JobID:      job.ID,
		Kind:       job.Kind,
		Provider:   job.Provider,
		OwnerID:    job.OwnerID,
		State:      JobStatePending,
		Generating: true,
		UpdatedAt:  job.SubmittedAt,
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
