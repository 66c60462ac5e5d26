package breaker

import (
	"testing"
	"time"
)

// fakeHealth lets tests drive HealthCounts deterministically without going
// through a real metrics.Aggregator and its rolling-window timing.
type fakeHealth struct {
	counts      HealthCounts
	resetCalled bool
}

func (f *fakeHealth) HealthCounts() HealthCounts { return f.counts }
func (f *fakeHealth) ResetRolling()               { f.resetCalled = true }

func TestAllowRequestClosedUnderThreshold(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 5, ErrorCount: 5, ErrorPercentage: 100}}
	cb := New(DefaultSettings("svc"), h) // RequestVolumeThreshold=20

	if !cb.AllowRequest() {
		t.Fatal("expected AllowRequest to admit below RequestVolumeThreshold despite 100% errors")
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", cb.State())
	}
}

func TestAllowRequestTripsOnUnhealthyMetrics(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 100, ErrorCount: 60, ErrorPercentage: 60}}
	cb := New(DefaultSettings("svc"), h)

	cb.AllowRequest() // observes unhealthy snapshot, trips

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want Open", cb.State())
	}
	if cb.AllowRequest() {
		t.Fatal("expected AllowRequest to reject immediately after tripping (sleep window not elapsed)")
	}
}

func TestHalfOpenAdmitsExactlyOneProbe(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 100, ErrorCount: 60, ErrorPercentage: 60}}
	settings := DefaultSettings("svc")
	settings.SleepWindow = 10 * time.Millisecond
	cb := New(settings, h)

	cb.AllowRequest() // trips to Open
	time.Sleep(20 * time.Millisecond)

	admitted := 0
	rejected := 0
	for i := 0; i < 5; i++ {
		if cb.AllowRequest() {
			admitted++
		} else {
			rejected++
		}
	}
	if admitted != 1 {
		t.Fatalf("admitted = %d, want exactly 1 probe", admitted)
	}
	if rejected != 4 {
		t.Fatalf("rejected = %d, want 4", rejected)
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want HalfOpen", cb.State())
	}
}

func TestOnSuccessClosesFromHalfOpenAndResetsHealth(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 100, ErrorCount: 60, ErrorPercentage: 60}}
	settings := DefaultSettings("svc")
	settings.SleepWindow = 1 * time.Millisecond
	cb := New(settings, h)

	cb.AllowRequest()
	time.Sleep(5 * time.Millisecond)
	cb.AllowRequest() // admits the HalfOpen probe

	cb.OnSuccess()

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want Closed", cb.State())
	}
	if !h.resetCalled {
		t.Fatal("expected ResetRolling to be called on HalfOpen -> Closed")
	}
}

func TestOnFailureReopensFromHalfOpen(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 100, ErrorCount: 60, ErrorPercentage: 60}}
	settings := DefaultSettings("svc")
	settings.SleepWindow = 1 * time.Millisecond
	cb := New(settings, h)

	cb.AllowRequest()
	time.Sleep(5 * time.Millisecond)
	cb.AllowRequest()

	cb.OnFailure()

	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want Open", cb.State())
	}
	if cb.AllowRequest() {
		t.Fatal("expected immediate re-rejection after reopening")
	}
}

func TestForceOpenOverridesHealth(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 0, ErrorCount: 0}}
	settings := DefaultSettings("svc")
	settings.ForceOpen = true
	cb := New(settings, h)

	if cb.AllowRequest() {
		t.Fatal("expected ForceOpen to reject regardless of health")
	}
	if !cb.IsOpen() {
		t.Fatal("expected IsOpen to report true under ForceOpen")
	}
}

func TestForceClosedAdmitsDespiteUnhealthyMetrics(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 1000, ErrorCount: 999, ErrorPercentage: 99.9}}
	settings := DefaultSettings("svc")
	settings.ForceClosed = true
	cb := New(settings, h)

	for i := 0; i < 10; i++ {
		if !cb.AllowRequest() {
			t.Fatal("expected ForceClosed to always admit")
		}
	}
}

func TestDisabledBreakerAlwaysAdmits(t *testing.T) {
	h := &fakeHealth{counts: HealthCounts{TotalCount: 1000, ErrorCount: 1000, ErrorPercentage: 100}}
	settings := DefaultSettings("svc")
	settings.Enabled = false
	cb := New(settings, h)

	if !cb.AllowRequest() {
		t.Fatal("expected disabled breaker to admit unconditionally")
	}
	if cb.IsOpen() {
		t.Fatal("expected disabled breaker to never report Open")
	}
}

func TestUpdateSettingsRejectsInvalidThresholdAtomically(t *testing.T) {
	h := &fakeHealth{}
	cb := New(DefaultSettings("svc"), h)

	badThreshold := 150.0
	err := cb.UpdateSettings(SettingsUpdate{
		ErrorThresholdPercentage: &badThreshold,
		SleepWindow:              DurationPtr(time.Minute),
	})
	if err == nil {
		t.Fatal("expected UpdateSettings to reject an out-of-range ErrorThresholdPercentage")
	}
	if cb.sleepWindowNanos.Load() == int64(time.Minute) {
		t.Fatal("expected all-or-nothing update: SleepWindow must not have applied alongside the rejected field")
	}
}

func TestRegistryGetOrCreateIsSingleton(t *testing.T) {
	r := NewRegistry()
	build := func() *CircuitBreaker { return New(DefaultSettings("svc"), &fakeHealth{}) }

	cb1 := r.GetOrCreate("svc", build)
	cb2 := r.GetOrCreate("svc", build)
	if cb1 != cb2 {
		t.Fatal("GetOrCreate returned distinct breakers for the same name")
	}
}

func TestRegistryReset(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate("svc", func() *CircuitBreaker { return New(DefaultSettings("svc"), &fakeHealth{}) })
	r.Reset()

	if _, ok := r.Get("svc"); ok {
		t.Fatal("Get found a breaker after Reset")
	}
}
