// Package stage holds the three external pipeline collaborators. Each is
// a single bounded call returning a typed result; the orchestrator treats
// them as black boxes with a latency and failure profile and never looks
// inside their protocols.
package stage

import (
	"context"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// AcquireResult is what the media service reports after fetching a video.
type AcquireResult struct {
	MediaURL        string `json:"media_url"`
	DurationSeconds int    `json:"duration_seconds"`
	Title           string `json:"title"`
}

// Acquirer downloads/probes the source media for a video.
type Acquirer interface {
	Acquire(ctx context.Context, v *domain.Video) (*AcquireResult, error)
}

// TranscribeResult is the speech-to-text output for acquired media.
type TranscribeResult struct {
	Text       string           `json:"text"`
	Language   string           `json:"language"`
	Confidence float64          `json:"confidence"`
	Segments   []domain.Segment `json:"segments"`
}

// Transcriber converts acquired media into a transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, v *domain.Video) (*TranscribeResult, error)
}

// SummarizeResult is the LLM output for a transcript.
type SummarizeResult struct {
	Text             string   `json:"text"`
	Category         string   `json:"category"`
	Keywords         []string `json:"keywords"`
	Model            string   `json:"model"`
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
}

// Summarizer condenses a transcript into the distributable artifact.
type Summarizer interface {
	Summarize(ctx context.Context, v *domain.Video, t *domain.Transcript) (*SummarizeResult, error)
}
