package rabbitmq

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		mult    float64
		want    time.Duration
	}{
		{0, 2, 100 * time.Millisecond},
		{1, 2, 200 * time.Millisecond},
		{3, 2, 800 * time.Millisecond},
		{2, 1.5, 225 * time.Millisecond},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, BackoffDelay(100*time.Millisecond, tt.mult, tt.attempt))
	}
}

func TestClient_NotConnected(t *testing.T) {
	c := &Client{config: &Config{PublishRetries: 1, PublishRetryDelay: time.Millisecond}, logger: slog.Default()}

	assert.False(t, c.IsConnected())
	assert.ErrorIs(t, c.Publish(context.Background(), Message{ID: "job-1"}), ErrNotConnected)

	err := c.PublishWithRetry(context.Background(), Message{ID: "job-1"})
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.Contains(t, err.Error(), "after 2 attempts")

	_, err = c.Consume()
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.ErrorIs(t, c.HealthCheck(context.Background()), ErrNotConnected)

	assert.ErrorIs(t, c.Reply(context.Background(), "reply-q", "job-1", []byte("{}")), ErrNotConnected)
}

func TestClient_PublishWithRetryStopsOnCancel(t *testing.T) {
	c := &Client{config: &Config{PublishRetries: 5, PublishRetryDelay: time.Hour}, logger: slog.Default()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.PublishWithRetry(ctx, Message{ID: "job-1"})
	assert.ErrorIs(t, err, context.Canceled)
}
