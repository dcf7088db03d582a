//go:build integration

package ratelimit

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a client
func setupRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	endpoint, err := redisContainer.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("Failed to get Redis endpoint: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: endpoint,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("Failed to connect to Redis: %v", err)
	}

	cleanup := func() {
		client.Close()
		redisContainer.Terminate(ctx)
	}

	return client, cleanup
}

func TestTracker_Integration_CooldownSurvivesRestart(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	ctx := context.Background()
	searchedAt := time.Now()

	first := NewTracker(redisClient, logger)
	if err := first.MarkLimited(ctx); err != nil {
		t.Fatalf("MarkLimited() error = %v", err)
	}
	if err := first.RecordSearch(ctx, searchedAt); err != nil {
		t.Fatalf("RecordSearch() error = %v", err)
	}

	// A second tracker stands in for a new process.
	second := NewTracker(redisClient, logger)
	wait, err := second.CooldownRemaining(ctx, searchedAt.Add(30*time.Second), DefaultCooldown)
	if err != nil {
		t.Fatalf("CooldownRemaining() error = %v", err)
	}
	if wait != 90*time.Second {
		t.Errorf("wait = %v, want 1m30s", wait)
	}
}

func TestTracker_Integration_UpdateFromHeaders(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	logger := zerolog.New(os.Stderr).Level(zerolog.Disabled)
	tracker := NewTracker(redisClient, logger)
	ctx := context.Background()

	reset := time.Now().Add(2 * time.Minute).Unix()
	headers := http.Header{}
	headers.Set("X-RateLimit-Remaining", "42")
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))

	if err := tracker.UpdateFromHeaders(ctx, headers); err != nil {
		t.Fatalf("UpdateFromHeaders() error = %v", err)
	}

	remaining, err := redisClient.Get(ctx, RedisKeyRemaining).Int()
	if err != nil {
		t.Fatalf("redis get remaining: %v", err)
	}
	if remaining != 42 {
		t.Errorf("remaining in redis = %d, want 42", remaining)
	}

	state, err := NewTracker(redisClient, logger).GetState(ctx)
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	if state.Remaining != 42 {
		t.Errorf("Remaining = %d, want 42", state.Remaining)
	}
	if state.ResetAt.Unix() != reset {
		t.Errorf("ResetAt = %d, want %d", state.ResetAt.Unix(), reset)
	}
}
