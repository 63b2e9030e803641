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

// HTTPAcquirer acquires videos through the media fetch service, which
// downloads the source and reports the probed duration.
type HTTPAcquirer struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

func NewHTTPAcquirer(baseURL string, timeout time.Duration) *HTTPAcquirer {
	return &HTTPAcquirer{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

type acquireRequest struct {
	Ref      string `json:"ref"`
	SourceID string `json:"source_id"`
}

// Acquire posts the video reference and expects a 200 with the probed
// media metadata. 4xx from the service means the source is malformed or
// unavailable for policy reasons, which is permanent.
func (a *HTTPAcquirer) Acquire(ctx context.Context, v *domain.Video) (*AcquireResult, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	body, err := json.Marshal(acquireRequest{Ref: v.Ref, SourceID: v.SourceID})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal acquire request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/acquire", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create acquire request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, classifyCallErr("media service", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus("media service", resp.StatusCode)
	}

	var result AcquireResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, Transient(fmt.Errorf("decode acquire response: %w", err))
	}
	return &result, nil
}

var _ Acquirer = (*HTTPAcquirer)(nil)
