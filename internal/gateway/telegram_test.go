package gateway

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"blocked by user", tele.NewError(403, "Forbidden: bot was blocked by the user"), true},
		{"chat not found", tele.NewError(400, "Bad Request: chat not found"), true},
		{"flood limit", tele.FloodError{RetryAfter: 30}, false},
		{"server error", tele.NewError(502, "Bad Gateway"), false},
		{"transport fault", errors.New("dial tcp: connection refused"), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			classified := classify(tc.err)
			if got := IsPermanent(classified); got != tc.permanent {
				t.Fatalf("expected permanent=%v, got %v (%v)", tc.permanent, got, classified)
			}
		})
	}
}

func TestClassify_FloodCarriesRetryAfter(t *testing.T) {
	classified := classify(tele.FloodError{RetryAfter: 30})

	var transient *TransientError
	if !errors.As(classified, &transient) {
		t.Fatalf("expected TransientError, got %T", classified)
	}
	if transient.RetryAfter.Seconds() != 30 {
		t.Fatalf("expected retry-after 30s, got %v", transient.RetryAfter)
	}
}
