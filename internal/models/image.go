package models

import "time"

// AttemptStatus is the outcome of a single cover-source attempt.
type AttemptStatus string

const (
	AttemptSuccess  AttemptStatus = "success"
	AttemptNotFound AttemptStatus = "not_found"
	AttemptTimeout  AttemptStatus = "timeout"
	AttemptFailure  AttemptStatus = "failure"
	AttemptSkipped  AttemptStatus = "skipped"
)

// ImageDetails describes a resolved cover image.
type ImageDetails struct {
	URL     string `json:"url,omitempty"`
	Path    string `json:"path,omitempty"`
	Source  string `json:"source"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	HighRes bool   `json:"high_res"`
}

// ImageAttempt records one cover-source attempt, successful or not.
type ImageAttempt struct {
	Source   string            `json:"source"`
	URL      string            `json:"url,omitempty"`
	Status   AttemptStatus     `json:"status"`
	Reason   string            `json:"reason,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ImageProvenance is the audit trail of a cover resolution: every source
// attempted plus the final selection. It is immutable once the resolution
// completes and is used only for debugging and audit, never for business
// branching beyond "was anything selected".
type ImageProvenance struct {
	BookID      string         `json:"book_id"`
	Attempts    []ImageAttempt `json:"attempts"`
	Selected    *ImageDetails  `json:"selected,omitempty"`
	Placeholder bool           `json:"placeholder"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// Record appends an attempt to the trail.
func (p *ImageProvenance) Record(attempt ImageAttempt) {
	p.Attempts = append(p.Attempts, attempt)
}

// Complete marks the trail finished with the selected image.
func (p *ImageProvenance) Complete(selected *ImageDetails, placeholder bool) {
	p.Selected = selected
	p.Placeholder = placeholder
	p.CompletedAt = time.Now().UTC()
}

// CoverUpdatedEvent is published when background resolution stores a new
// cover for a book. UI-facing layers subscribe to refresh stale images.
type CoverUpdatedEvent struct {
	BookID    string        `json:"book_id"`
	Image     *ImageDetails `json:"image"`
	Timestamp time.Time     `json:"timestamp"`
}
