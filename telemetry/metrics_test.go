package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestInitIdempotent(t *testing.T) {
	Init()
	first := PollCycles
	Init()
	if PollCycles != first {
		t.Error("Init re-registered metrics")
	}
	if PollCycles == nil || FetchDuration == nil || RoomsJoinedGauge == nil {
		t.Error("metrics not initialized")
	}
}

func TestHelpersTolerateNilMetrics(t *testing.T) {
	// Must not panic even if Init was never called in a process; the
	// package-global Init in TestInitIdempotent may already have run, so
	// this is a smoke test of the guarded paths.
	IncPollCycles()
	IncFetchErrors()
	IncMessagesNew()
	IncMessagesEdited()
	IncRateLimited()
	ObserveFetchDuration(time.Second)
	SetRoomsJoined(3)
}

func TestTimeFunc(t *testing.T) {
	d := TimeFunc(nil, func() { time.Sleep(10 * time.Millisecond) })
	if d < 10*time.Millisecond {
		t.Errorf("duration = %v, want >= 10ms", d)
	}
}

func TestCorrelationRoundTrip(t *testing.T) {
	ctx := context.Background()
	if GetCorrelation(ctx) != "" {
		t.Error("empty context carries a correlation id")
	}
	ctx = WithCorrelation(ctx, "corr-1")
	if got := GetCorrelation(ctx); got != "corr-1" {
		t.Errorf("GetCorrelation = %q", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("LoggerWithCorr returned nil")
	}
}
