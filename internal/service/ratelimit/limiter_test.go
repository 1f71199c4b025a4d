package ratelimit

import (
    "context"
    "testing"
    "time"
)

func TestAllowExhaustsBucket(t *testing.T) {
    l := New()
    if !l.Allow("k", 2, 0.0001) {
        t.Fatalf("first token expected")
    }
    if !l.Allow("k", 2, 0.0001) {
        t.Fatalf("second token expected")
    }
    if l.Allow("k", 2, 0.0001) {
        t.Fatalf("bucket should be empty")
    }
}

func TestWaitRespectsContext(t *testing.T) {
    l := New()
    l.Allow("k", 1, 0.0001) // drain

    ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
    defer cancel()
    if err := l.Wait(ctx, "k", 1, 0.0001); err == nil {
        t.Fatalf("expected context error")
    }
}

func TestWaitRefills(t *testing.T) {
    l := New()
    l.Allow("k", 1, 200) // drain; fast refill

    ctx, cancel := context.WithTimeout(context.Background(), time.Second)
    defer cancel()
    if err := l.Wait(ctx, "k", 1, 200); err != nil {
        t.Fatalf("expected token after refill, got %v", err)
    }
}
