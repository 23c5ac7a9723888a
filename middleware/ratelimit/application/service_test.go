package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"assistant-gateway/middleware/ratelimit/domain"
)

type fakeStore struct {
	dec    domain.Decision
	err    error
	gotKey domain.Key
	gotNow time.Time
}

func (s *fakeStore) Check(_ context.Context, key domain.Key, now time.Time) (domain.Decision, error) {
	s.gotKey = key
	s.gotNow = now
	return s.dec, s.err
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{}
	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_PassesKeyAndClock(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{dec: domain.Allow(5, 4, now.Add(time.Minute))}
	svc := Service{Store: store, Clock: domain.ClockFunc(func() time.Time { return now })}

	dec := svc.Decide(context.Background(), "10.0.0.1")
	if !dec.Allowed || dec.Remaining != 4 {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if store.gotKey != "10.0.0.1" {
		t.Fatalf("expected key to be forwarded, got %q", store.gotKey)
	}
	if !store.gotNow.Equal(now) {
		t.Fatalf("expected injected clock to be used, got %s", store.gotNow)
	}
}

func TestService_Decide_ForwardsDeny(t *testing.T) {
	store := &fakeStore{dec: domain.Deny(5, time.Time{}, 50*time.Second)}
	svc := Service{Store: store}

	dec := svc.Decide(context.Background(), "k")
	if dec.Allowed {
		t.Fatalf("expected blocked")
	}
	if dec.RetryAfterSeconds() != 50 {
		t.Fatalf("expected retryAfter=50, got %d", dec.RetryAfterSeconds())
	}
}

func TestService_Decide_StoreErrorResolvesToAllow(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	svc := Service{Store: store, Scope: "model"}

	dec := svc.Decide(context.Background(), "k")
	if !dec.Allowed {
		t.Fatalf("expected store failure to resolve to allow")
	}
}
