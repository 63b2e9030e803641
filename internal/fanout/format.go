package fanout

import (
	"fmt"
	"strings"

	"github.com/Prodelaya/youtube-AIsummary-sub001/internal/domain"
)

// formatMessage renders a summary as the plain-text message sent to
// every subscriber.
func formatMessage(v *domain.Video, s *domain.Summary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📹 %s\n\n", v.Title)
	b.WriteString(s.Text)

	if s.Category != "" {
		fmt.Fprintf(&b, "\n\nCategory: %s", s.Category)
	}
	if len(s.Keywords) > 0 {
		fmt.Fprintf(&b, "\nKeywords: %s", strings.Join(s.Keywords, ", "))
	}
	fmt.Fprintf(&b, "\nhttps://www.youtube.com/watch?v=%s", v.Ref)

	return b.String()
}
