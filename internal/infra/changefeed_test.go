package infra

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestChangePayloadRoundTrip(t *testing.T) {
	instance, version, err := decodeChange(encodeChange("a1b2-c3", 42))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if instance != "a1b2-c3" || version != 42 {
		t.Fatalf("unexpected decode result %q %d", instance, version)
	}
	for _, bad := range []string{"", "nocolon", ":5", "inst:notanumber"} {
		if _, _, err := decodeChange(bad); err == nil {
			t.Errorf("expected error for payload %q", bad)
		}
	}
}

func TestChangeFeedSkipsOwnInstance(t *testing.T) {
	redisAddr := os.Getenv("DROPFEE_REDIS_ADDR")
	if redisAddr == "" {
		t.Skip("DROPFEE_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	local := NewChangeFeed(rdb, nil)
	remote := NewChangeFeed(rdb, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	got := make(chan int64, 4)
	go func() {
		_ = local.Subscribe(ctx, "test-topic", func(_ context.Context, v int64) { got <- v })
	}()
	time.Sleep(200 * time.Millisecond)

	if err := local.Publish(ctx, "test-topic", 1); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := remote.Publish(ctx, "test-topic", 2); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case v := <-got:
		if v != 2 {
			t.Fatalf("expected only the remote version 2, got %d", v)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for change notification")
	}
}
