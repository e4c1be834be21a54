package apismith

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewRateLimiter(t *testing.T) {
	rl := NewRateLimiter(10, 1*time.Second)

	if rl == nil {
		t.Fatal("NewRateLimiter() returned nil")
	}
	if rl.maxTokens != 10 {
		t.Errorf("Expected maxTokens=10, got %d", rl.maxTokens)
	}
	if rl.Tokens() != 10 {
		t.Errorf("Expected initial tokens=10, got %d", rl.Tokens())
	}
	if rl.refillRate != 1*time.Second {
		t.Errorf("Expected refillRate=1s, got %v", rl.refillRate)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(3, 1*time.Second)

	for i := 0; i < 3; i++ {
		if !rl.Allow() {
			t.Errorf("Expected true for request %d", i+1)
		}
	}

	if rl.Allow() {
		t.Error("Expected false for 4th request")
	}
	if rl.Tokens() != 0 {
		t.Errorf("Expected tokens=0, got %d", rl.Tokens())
	}
}

func TestRateLimiterRefill(t *testing.T) {
	rl := NewRateLimiter(2, 50*time.Millisecond)

	rl.Allow()
	rl.Allow()

	if rl.Allow() {
		t.Error("Expected false when no tokens available")
	}

	time.Sleep(60 * time.Millisecond)

	if !rl.Allow() {
		t.Error("Expected true after refill")
	}
}

func TestRateLimiterRefillCapsAtMax(t *testing.T) {
	rl := NewRateLimiter(2, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	rl.refillTokens()

	if rl.Tokens() != 2 {
		t.Errorf("Expected tokens capped at 2, got %d", rl.Tokens())
	}
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := NewRateLimiter(50, time.Hour)

	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rl.Allow() {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("Expected exactly 50 allowed requests, got %d", allowed)
	}
}
