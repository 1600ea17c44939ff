package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"cross origin", fmt.Errorf("bridge: %w", ErrCrossOrigin), KindCORS},
		{"not a feed", ErrNotFeed, KindParse},
		{"connection reset", errors.New("read: connection reset by peer"), KindNetwork},
		{"already classified", StatusError("u", http.StatusNotFound), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify("https://example.com", tt.err).Kind)
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}

	assert.Nil(t, Classify("u", nil))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewError(KindNetwork, "u", errors.New("refused"))))
	assert.True(t, IsTransient(NewError(KindTimeout, "u", context.DeadlineExceeded)))
	assert.True(t, IsTransient(StatusError("u", http.StatusBadGateway)))
	assert.True(t, IsTransient(StatusError("u", http.StatusTooManyRequests)))
	assert.False(t, IsTransient(StatusError("u", http.StatusForbidden)))
	assert.False(t, IsTransient(StatusError("u", http.StatusNotFound)))
	assert.False(t, IsTransient(NewError(KindParse, "u", ErrNotFeed)))
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "http_not_found: HTTP 404 Not Found", StatusError("u", 404).Error())
	assert.Contains(t, NewError(KindNetwork, "u", errors.New("refused")).Error(), "network: refused")
}
