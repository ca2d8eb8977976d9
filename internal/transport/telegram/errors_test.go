package telegram

import (
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"

	"postbot/internal/transport"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"nil", nil, false},
		{"plain network error", errors.New("connection reset"), false},
		{"bad request", tele.NewError(400, "Bad Request: chat not found"), true},
		{"forbidden", tele.NewError(403, "Forbidden: bot was blocked"), true},
		{"plain rate limit", tele.NewError(429, "Too Many Requests"), false},
		{"flood with retry_after", tele.FloodError{RetryAfter: 5}, false},
		{"server error", tele.NewError(502, "Bad Gateway"), false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := classify(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Fatalf("classify(nil) is not nil")
				}
				return
			}
			if got == nil {
				t.Fatal("classified error is nil")
			}
			if transport.IsPermanent(got) != tt.permanent {
				t.Fatalf("IsPermanent = %v, want %v", transport.IsPermanent(got), tt.permanent)
			}
		})
	}
}
