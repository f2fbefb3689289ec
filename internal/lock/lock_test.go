package lock

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestSortedKeys(t *testing.T) {
	got := sortedKeys([]string{"b", "a", "b", "c"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("Expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected %v, got %v", want, got)
		}
	}
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	m := NewKeyedMutex()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := m.Lock(ctx, ProductKey("p1"), ProductKey("p2"))
			if err != nil {
				t.Errorf("Lock failed: %v", err)
				return
			}
			current := counter
			time.Sleep(time.Microsecond)
			counter = current + 1
			unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("Expected 50 increments, got %d", counter)
	}
	if len(m.locks) != 0 {
		t.Errorf("Expected lock table to drain, got %d entries", len(m.locks))
	}
}

func TestKeyedMutex_RespectsContext(t *testing.T) {
	m := NewKeyedMutex()
	unlock, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := m.Lock(ctx, "other", "k"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}

	// "other" must have been released when "k" timed out.
	free, err := m.Lock(context.Background(), "other")
	if err != nil {
		t.Fatalf("Expected other to be free, got %v", err)
	}
	free()
}

func TestKeyedMutex_UnlockIsIdempotent(t *testing.T) {
	m := NewKeyedMutex()
	unlock, _ := m.Lock(context.Background(), "k")
	unlock()
	unlock()

	again, err := m.Lock(context.Background(), "k")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	again()
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	locker := NewRedisLocker(client, zap.NewNop(), WithRetry(2, 10*time.Millisecond))
	ctx := context.Background()

	unlock, err := locker.Lock(ctx, "lock:test:a")
	if err != nil {
		t.Fatalf("Lock failed: %v", err)
	}
	if _, err := locker.Lock(ctx, "lock:test:a"); !errors.Is(err, ErrBusy) {
		t.Errorf("Expected ErrBusy, got %v", err)
	}
	unlock()

	again, err := locker.Lock(ctx, "lock:test:a")
	if err != nil {
		t.Fatalf("Expected lock after release, got %v", err)
	}
	again()
}
