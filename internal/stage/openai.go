package stage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

const summarySystemPrompt = `You summarize video transcripts. Respond with a JSON object:
{"summary": "...", "category": "...", "keywords": ["...", "..."]}
Keep the summary under 200 words and pick a single category.`

// OpenAISummarizer condenses transcripts through an OpenAI-compatible
// chat completions endpoint.
type OpenAISummarizer struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration
}

func NewOpenAISummarizer(endpoint, model, apiKey string, timeout time.Duration) *OpenAISummarizer {
	return &OpenAISummarizer{
		endpoint:   endpoint,
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

type summaryContent struct {
	Summary  string   `json:"summary"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, v *domain.Video, t *domain.Transcript) (*SummarizeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]any{
		"model": s.model,
		"messages": []map[string]string{
			{"role": "system", "content": summarySystemPrompt},
			{"role": "user", "content": fmt.Sprintf("Title: %s\n\nTranscript:\n%s", v.Title, t.Text)},
		},
		"response_format": map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal summarize payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create summarize request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyCallErr("summarizer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := classifyStatus("summarizer", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(payload)))
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, Transient(fmt.Errorf("decode summarizer response: %w", err))
	}
	if len(chat.Choices) == 0 {
		return nil, Transient(fmt.Errorf("summarizer returned no choices"))
	}

	var content summaryContent
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &content); err != nil {
		return nil, Transient(fmt.Errorf("parse summary content: %w", err))
	}
	if content.Summary == "" {
		return nil, Transient(fmt.Errorf("summarizer returned an empty summary"))
	}

	return &SummarizeResult{
		Text:             content.Summary,
		Category:         content.Category,
		Keywords:         content.Keywords,
		Model:            s.model,
		PromptTokens:     chat.Usage.PromptTokens,
		CompletionTokens: chat.Usage.CompletionTokens,
	}, nil
}

var _ Summarizer = (*OpenAISummarizer)(nil)
