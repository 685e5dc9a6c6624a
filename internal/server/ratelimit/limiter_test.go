package ratelimit

import "testing"

func TestLimiterBurstThenDeny(t *testing.T) {
	l := NewLimiter(60, 3)
	defer l.Close()

	for i := range 3 {
		res := l.Allow("client-a")
		if !res.Allowed {
			t.Fatalf("request %d denied within burst", i)
		}
	}
	res := l.Allow("client-a")
	if res.Allowed {
		t.Fatal("request allowed past burst")
	}
	if res.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %v, want positive", res.RetryAfter)
	}
	if res.Limit != 60 {
		t.Errorf("Limit = %d, want 60", res.Limit)
	}
}

func TestLimiterKeysIndependent(t *testing.T) {
	l := NewLimiter(60, 1)
	defer l.Close()

	if !l.Allow("a").Allowed {
		t.Fatal("first request for a denied")
	}
	if l.Allow("a").Allowed {
		t.Fatal("second request for a allowed past burst")
	}
	if !l.Allow("b").Allowed {
		t.Fatal("first request for b denied")
	}
}
