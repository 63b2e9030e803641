package domain

import "time"

// Source is a content feed (a YouTube channel); many videos per source.
type Source struct {
	ID         string    `json:"id"`
	ChannelRef string    `json:"channel_ref"`
	Title      string    `json:"title"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subscriber is an external messaging recipient, keyed by chat ID.
// Blocked is set by the distribution worker when the gateway reports the
// recipient permanently unreachable; a blocked subscriber is excluded
// from every future fan-out until unblocked by user action.
type Subscriber struct {
	ID        int64     `json:"id"` // messaging chat identifier
	Username  string    `json:"username"`
	Blocked   bool      `json:"blocked"`
	CreatedAt time.Time `json:"created_at"`
}

// Subscription joins a subscriber to a source. Created and removed by
// user action; read by distribution to resolve the fan-out set.
type Subscription struct {
	SubscriberID int64     `json:"subscriber_id"`
	SourceID     string    `json:"source_id"`
	CreatedAt    time.Time `json:"created_at"`
}
