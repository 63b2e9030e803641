package cache

// Key builders. Prefixes group keys by volatility so invalidation can
// sweep a whole class at once: per-video detail is long-lived, list and
// aggregate keys are short-lived and churn on every finished video.
const (
	videoPrefix  = "video:"
	recentPrefix = "recent:"
	statsKey     = "stats:overview"
)

func VideoKey(videoID string) string   { return videoPrefix + videoID }
func SummaryKey(videoID string) string { return videoPrefix + videoID + ":summary" }
func RecentKey(sourceID string) string { return recentPrefix + sourceID }
func StatsKey() string                 { return statsKey }
func RecentPrefix() string             { return recentPrefix }
