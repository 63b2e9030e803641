package domain

import "time"

// Segment is one timed span of a transcript.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Transcript is the speech-to-text output for a video.
// At most one exists per video and it is immutable once created.
type Transcript struct {
	ID         string    `json:"id"`
	VideoID    string    `json:"video_id"`
	Text       string    `json:"text"`
	Language   string    `json:"language"`
	Confidence float64   `json:"confidence"`
	Segments   []Segment `json:"segments"`
	CreatedAt  time.Time `json:"created_at"`
}

// DeliveryRecord ties one subscriber to the gateway message actually sent
// to them. The ordered slice (not a bare map) is what gets persisted, so
// the accumulation step and the single final write see the same value.
type DeliveryRecord struct {
	SubscriberID int64  `json:"subscriber_id"`
	MessageID    string `json:"message_id"`
}

// Summary is the generated artifact attached to a completed video.
// After creation only Deliveries and Distributed are ever mutated, and
// only by the distribution worker.
type Summary struct {
	ID               string           `json:"id"`
	VideoID          string           `json:"video_id"`
	Text             string           `json:"text"`
	Category         string           `json:"category"`
	Keywords         []string         `json:"keywords"`
	Model            string           `json:"model"`
	PromptTokens     int              `json:"prompt_tokens"`
	CompletionTokens int              `json:"completion_tokens"`
	Distributed      bool             `json:"distributed"`
	Deliveries       []DeliveryRecord `json:"deliveries"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// DeliveredTo reports whether the summary already reached the subscriber.
func (s *Summary) DeliveredTo(subscriberID int64) bool {
	for _, d := range s.Deliveries {
		if d.SubscriberID == subscriberID {
			return true
		}
	}
	return false
}
