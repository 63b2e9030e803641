package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// WhisperTranscriber calls the speech-to-text service. The service pulls
// the media the acquirer staged for the video ref and returns the full
// transcript with per-segment timing.
type WhisperTranscriber struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewWhisperTranscriber(baseURL string, timeout time.Duration) *WhisperTranscriber {
	return &WhisperTranscriber{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

type transcribeRequest struct {
	Ref string `json:"ref"`
}

func (t *WhisperTranscriber) Transcribe(ctx context.Context, v *domain.Video) (*TranscribeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	body, err := json.Marshal(transcribeRequest{Ref: v.Ref})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal transcribe request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcribe", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create transcribe request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, classifyCallErr("transcriber", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("transcriber", resp.StatusCode)
	}

	var result TranscribeResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Transient(fmt.Errorf("decode transcribe response: %w", err))
	}
	if result.Text == "" {
		return nil, Permanent(fmt.Errorf("transcriber returned an empty transcript for %s", v.Ref))
	}
	return &result, nil
}

var _ Transcriber = (*WhisperTranscriber)(nil)
