package pipeline

import (
	"testing"
	"time"

	"github.com/shaiso/Tendera/internal/domain"
)

// --- Sequences ---

func TestNextPhase_Discovery(t *testing.T) {
	// queued → первая фаза
	phase, ok := NextPhase(domain.KindDiscovery, domain.PhaseQueued)
	if !ok || phase != domain.PhaseAuthenticating {
		t.Fatalf("expected authenticating after queued, got %s (ok=%v)", phase, ok)
	}

	// Середина последовательности
	phase, ok = NextPhase(domain.KindDiscovery, domain.PhaseScanning)
	if !ok || phase != domain.PhaseExtracting {
		t.Fatalf("expected extracting after scanning, got %s (ok=%v)", phase, ok)
	}

	// Последняя фаза — последовательность исчерпана
	_, ok = NextPhase(domain.KindDiscovery, domain.PhaseMonitoring)
	if ok {
		t.Error("monitoring is the last discovery phase, expected ok=false")
	}
}

func TestNextPhase_Submission(t *testing.T) {
	want := []domain.Phase{
		domain.PhasePreflight,
		domain.PhaseAuthenticating,
		domain.PhaseFilling,
		domain.PhaseUploading,
		domain.PhaseSubmitting,
		domain.PhaseVerifying,
	}

	current := domain.PhaseQueued
	for _, expected := range want {
		next, ok := NextPhase(domain.KindSubmission, current)
		if !ok {
			t.Fatalf("sequence ended early at %s", current)
		}
		if next != expected {
			t.Fatalf("after %s expected %s, got %s", current, expected, next)
		}
		current = next
	}

	if _, ok := NextPhase(domain.KindSubmission, current); ok {
		t.Error("verifying is the last submission phase, expected ok=false")
	}
}

func TestNextPhase_UnknownPhase(t *testing.T) {
	if _, ok := NextPhase(domain.KindDiscovery, domain.Phase("bogus")); ok {
		t.Error("unknown phase should not have a successor")
	}
}

// --- Weights ---

func TestWeightFor_SubmissionMonotonic(t *testing.T) {
	// Веса submission-фаз строго возрастают: 10/25/45/65/80/95
	prev := -1
	for _, phase := range Sequence(domain.KindSubmission) {
		w := WeightFor(domain.KindSubmission, phase)
		if w <= prev {
			t.Errorf("weight of %s (%d) is not greater than previous (%d)", phase, w, prev)
		}
		prev = w
	}
}

func TestWeightFor_DiscoveryMonotonic(t *testing.T) {
	prev := -1
	for _, phase := range Sequence(domain.KindDiscovery) {
		w := WeightFor(domain.KindDiscovery, phase)
		if w <= prev {
			t.Errorf("weight of %s (%d) is not greater than previous (%d)", phase, w, prev)
		}
		prev = w
	}
}

func TestWeightFor_SharedAuthenticatingPhase(t *testing.T) {
	// authenticating — вторая фаза submission (25), но первая discovery (10)
	if w := WeightFor(domain.KindSubmission, domain.PhaseAuthenticating); w != 25 {
		t.Errorf("submission authenticating weight: expected 25, got %d", w)
	}
	if w := WeightFor(domain.KindDiscovery, domain.PhaseAuthenticating); w != 10 {
		t.Errorf("discovery authenticating weight: expected 10, got %d", w)
	}
}

// --- Result keys ---

func TestResultKeyFor(t *testing.T) {
	tests := []struct {
		phase   domain.Phase
		wantKey string
		wantOK  bool
	}{
		{domain.PhasePreflight, "preflightReport", true},
		{domain.PhaseSubmitting, "confirmation", true},
		{domain.PhaseCompleted, "finalResult", true},
		{domain.PhaseFailed, "failureReason", true},
		{domain.Phase("bogus"), "", false},
	}

	for _, tt := range tests {
		key, ok := ResultKeyFor(tt.phase)
		if ok != tt.wantOK || key != tt.wantKey {
			t.Errorf("ResultKeyFor(%s) = (%q, %v), want (%q, %v)",
				tt.phase, key, ok, tt.wantKey, tt.wantOK)
		}
	}
}

func TestIsKnownPhase(t *testing.T) {
	for _, name := range []string{"queued", "authenticating", "verifying", "completed", "failed"} {
		if !IsKnownPhase(name) {
			t.Errorf("%s should be a known phase", name)
		}
	}
	if IsKnownPhase("teleporting") {
		t.Error("teleporting should not be a known phase")
	}
}

// --- Task types and timeouts ---

func TestTaskTypeFor(t *testing.T) {
	taskType, ok := TaskTypeFor(domain.PhaseExtracting)
	if !ok || taskType != domain.TaskExtraction {
		t.Errorf("expected extraction task for extracting phase, got %s", taskType)
	}

	if _, ok := TaskTypeFor(domain.PhaseCompleted); ok {
		t.Error("terminal pseudo-phase should have no task type")
	}
}

func TestTimeoutFor(t *testing.T) {
	tests := []struct {
		taskType domain.TaskType
		want     time.Duration
	}{
		{domain.TaskAuthentication, 5 * time.Minute},
		{domain.TaskScanning, 20 * time.Minute},
		{domain.TaskExtraction, 30 * time.Minute},
		{domain.TaskMonitoring, 10 * time.Minute},
	}

	for _, tt := range tests {
		if got := TimeoutFor(tt.taskType); got != tt.want {
			t.Errorf("TimeoutFor(%s) = %s, want %s", tt.taskType, got, tt.want)
		}
	}

	// Неизвестный тип — документированный default
	if got := TimeoutFor(domain.TaskType("telepathy")); got != DefaultTimeout {
		t.Errorf("unknown task type: expected %s, got %s", DefaultTimeout, got)
	}
}
