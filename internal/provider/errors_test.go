package provider

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsRateLimit_UnwrapsWrappedErrors(t *testing.T) {
	inner := &RateLimitError{Provider: "NewsAPI", RetryAfter: time.Second}
	wrapped := fmt.Errorf("fetch us: %w", inner)

	rle, ok := AsRateLimit(wrapped)
	require.True(t, ok)
	assert.Equal(t, inner, rle)

	_, ok = AsRateLimit(errors.New("status 503"))
	assert.False(t, ok)
}

func TestIsPermanent_UnwrapsWrappedErrors(t *testing.T) {
	inner := &PermanentError{Provider: "NewsAPI", Reason: "unexpected status 400"}
	wrapped := fmt.Errorf("fetch us: %w", inner)

	assert.True(t, IsPermanent(wrapped))
	assert.False(t, IsPermanent(errors.New("status 503")))
	assert.False(t, IsPermanent(&RateLimitError{Provider: "NewsAPI"}))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "empty", value: "", want: 0},
		{name: "delta seconds", value: "120", want: 2 * time.Minute},
		{name: "negative seconds", value: "-5", want: 0},
		{name: "http date in the future", value: now.Add(90 * time.Second).Format(http.TimeFormat), want: 90 * time.Second},
		{name: "http date in the past", value: now.Add(-time.Minute).Format(http.TimeFormat), want: 0},
		{name: "garbage", value: "soon", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseRetryAfter(tt.value, now))
		})
	}
}
