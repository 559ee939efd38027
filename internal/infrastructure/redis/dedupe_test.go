package redis

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	tests := []struct {
		topic     string
		partition int32
		offset    int64
		want      string
	}{
		{"raw_transactions", 0, 0, "fraudserve:scored:raw_transactions:0:0"},
		{"raw_transactions", 3, 42, "fraudserve:scored:raw_transactions:3:42"},
		{"payments", 12, 9000000000, "fraudserve:scored:payments:12:9000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Key(tt.topic, tt.partition, tt.offset); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestDeduper_SeenAfterMark runs against a live server when
// FRAUDSERVE_TEST_REDIS_ADDRS is set.
func TestDeduper_SeenAfterMark(t *testing.T) {
	addrs := os.Getenv("FRAUDSERVE_TEST_REDIS_ADDRS")
	if addrs == "" {
		t.Skip("FRAUDSERVE_TEST_REDIS_ADDRS not set")
	}

	client := NewClient(strings.Split(addrs, ","))
	defer client.Close()

	ctx := context.Background()
	if err := WaitReady(ctx, client, 3, 100*time.Millisecond); err != nil {
		t.Fatalf("WaitReady() failed: %v", err)
	}

	d := NewDeduper(client, time.Minute)
	offset := time.Now().UnixNano()
	defer client.Del(ctx, Key("dedupe_test", 0, offset))

	seen, err := d.Seen(ctx, "dedupe_test", 0, offset)
	if err != nil || seen {
		t.Fatalf("Seen() before Mark = %v, %v; want false, nil", seen, err)
	}
	if err := d.Mark(ctx, "dedupe_test", 0, offset); err != nil {
		t.Fatalf("Mark() failed: %v", err)
	}
	seen, err = d.Seen(ctx, "dedupe_test", 0, offset)
	if err != nil || !seen {
		t.Errorf("Seen() after Mark = %v, %v; want true, nil", seen, err)
	}
}

func TestWaitReady_Cancelled(t *testing.T) {
	client := NewClient([]string{"127.0.0.1:1"})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := WaitReady(ctx, client, 5, time.Second); err == nil {
		t.Error("WaitReady() expected error for cancelled context, got nil")
	}
}
