package domain

import "time"

// Status tracks the lifecycle of a video through the processing pipeline.
//
// The happy path is:
//
//	pending → acquiring → acquired → transcribing → transcribed → summarizing → completed
//
// Side branches: any non-terminal status may transition to failed; acquired
// may transition to skipped when the duration policy rejects the video.
type Status string

const (
	StatusPending      Status = "pending"
	StatusAcquiring    Status = "acquiring"
	StatusAcquired     Status = "acquired"
	StatusTranscribing Status = "transcribing"
	StatusTranscribed  Status = "transcribed"
	StatusSummarizing  Status = "summarizing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusSkipped      Status = "skipped"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAcquiring, StatusAcquired, StatusTranscribing,
		StatusTranscribed, StatusSummarizing, StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// IsTerminal reports whether no further pipeline work applies to the status.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Stage identifies one external pipeline stage.
type Stage string

const (
	StageAcquire    Stage = "acquire"
	StageTranscribe Stage = "transcribe"
	StageSummarize  Stage = "summarize"
)

// Transition describes the single legal pipeline step out of a status:
// which stage to run, the status held while the stage is in flight, and
// the status persisted once the stage succeeds.
type Transition struct {
	Stage   Stage
	Working Status
	OnDone  Status
}

// transitions is the exhaustive pipeline transition table. A status absent
// from the table has no legal pipeline step; Advance treats jobs for such
// videos as no-ops. In-flight statuses map back onto their own stage so
// that a crash mid-stage resumes by restarting the current stage (stages
// persist nothing until the boundary, so a restart is always safe).
var transitions = map[Status]Transition{
	StatusPending:      {Stage: StageAcquire, Working: StatusAcquiring, OnDone: StatusAcquired},
	StatusAcquiring:    {Stage: StageAcquire, Working: StatusAcquiring, OnDone: StatusAcquired},
	StatusAcquired:     {Stage: StageTranscribe, Working: StatusTranscribing, OnDone: StatusTranscribed},
	StatusTranscribing: {Stage: StageTranscribe, Working: StatusTranscribing, OnDone: StatusTranscribed},
	StatusTranscribed:  {Stage: StageSummarize, Working: StatusSummarizing, OnDone: StatusCompleted},
	StatusSummarizing:  {Stage: StageSummarize, Working: StatusSummarizing, OnDone: StatusCompleted},
}

// NextTransition returns the pipeline step for the given status, or
// ok=false when the status admits no further processing.
func NextTransition(s Status) (Transition, bool) {
	t, ok := transitions[s]
	return t, ok
}

// SkipReasonDuration is recorded when a video exceeds the configured
// duration ceiling and is skipped without transcription.
const SkipReasonDuration = "duration_exceeded"

// Video is the unit of work progressing through the pipeline.
type Video struct {
	ID              string     `json:"id"`
	SourceID        string     `json:"source_id"`
	Ref             string     `json:"ref"` // external video identifier (e.g. YouTube ID)
	Title           string     `json:"title"`
	Status          Status     `json:"status"`
	DurationSeconds int        `json:"duration_seconds"`
	SkipReason      *string    `json:"skip_reason,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	RetryCount      int        `json:"retry_count"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SubmitVideoRequest is the inbound payload for registering a video.
type SubmitVideoRequest struct {
	SourceID string `json:"source_id"`
	Ref      string `json:"ref"`
	Title    string `json:"title"`
}

func (r *SubmitVideoRequest) Validate() error {
	if r.SourceID == "" {
		return ErrInvalidSource
	}
	if r.Ref == "" {
		return ErrInvalidRef
	}
	return nil
}
