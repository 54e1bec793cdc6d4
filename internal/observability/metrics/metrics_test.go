package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveHelpersCount(t *testing.T) {
	Init(nil, nil)

	before := testutil.ToFloat64(submitTotal.WithLabelValues(ResultSuccess))
	ObserveSubmit("", 10*time.Millisecond)
	if got := testutil.ToFloat64(submitTotal.WithLabelValues(ResultSuccess)); got != before+1 {
		t.Fatalf("expected submit counter %v, got %v", before+1, got)
	}

	IncFeeLookupError("")
	if got := testutil.ToFloat64(feeLookupErrors.WithLabelValues("unknown")); got < 1 {
		t.Fatalf("expected lookup error counter, got %v", got)
	}

	IncRateLimited("/auth/login")
	if got := testutil.ToFloat64(rateLimitedTotal.WithLabelValues("/auth/login")); got < 1 {
		t.Fatalf("expected rate limited counter, got %v", got)
	}

	IncEventDelivery("registration.submitted", "mail", ResultError)
	if got := testutil.ToFloat64(eventDeliveryTotal.WithLabelValues("registration.submitted", "mail", ResultError)); got < 1 {
		t.Fatalf("expected event delivery counter, got %v", got)
	}
}
