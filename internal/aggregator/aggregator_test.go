package aggregator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"
)

// fakeSource — Source с программируемыми ответами.
type fakeSource struct {
	byPhase     map[string]int
	byStatus    map[string]int
	recent      []map[string]any
	phaseStats  []map[string]any
	transitions map[string]any
	err         error

	calls int
}

func (f *fakeSource) CountByPhase(context.Context) (map[string]int, error) {
	f.calls++
	return f.byPhase, f.err
}

func (f *fakeSource) CountByStatus(context.Context) (map[string]int, error) {
	f.calls++
	return f.byStatus, f.err
}

func (f *fakeSource) RecentWorkflowStates(_ context.Context, _ int) ([]map[string]any, error) {
	f.calls++
	return f.recent, f.err
}

func (f *fakeSource) PhaseStats(context.Context) ([]map[string]any, error) {
	f.calls++
	return f.phaseStats, f.err
}

func (f *fakeSource) TransitionSummary(context.Context) (map[string]any, error) {
	f.calls++
	return f.transitions, f.err
}

func newTestAggregator(src Source) *Aggregator {
	return New(Config{
		Source: src,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestGlobalState(t *testing.T) {
	src := &fakeSource{
		byStatus: map[string]int{"ACTIVE": 2, "COMPLETED": 5},
		byPhase:  map[string]int{"scanning": 1, "filling": 1},
		recent: []map[string]any{
			{"id": "wf-1", "kind": "DISCOVERY", "current_phase": "completed", "status": "COMPLETED", "progress": float64(100)},
		},
	}

	state := newTestAggregator(src).GlobalState(context.Background())

	if state.Workflows["ACTIVE"] != 2 {
		t.Errorf("expected 2 active workflows, got %d", state.Workflows["ACTIVE"])
	}
	if state.ActivePhases["scanning"] != 1 {
		t.Errorf("expected 1 scanning workflow, got %d", state.ActivePhases["scanning"])
	}
	if len(state.Recent) != 1 {
		t.Fatalf("expected 1 recent workflow, got %d", len(state.Recent))
	}
	if state.Recent[0].Progress != 100 {
		t.Errorf("expected progress 100, got %v", state.Recent[0].Progress)
	}
}

func TestGlobalState_StorageErrorDegrades(t *testing.T) {
	src := &fakeSource{err: errors.New("connection refused")}

	state := newTestAggregator(src).GlobalState(context.Background())

	// Деградация БД даёт нулевую сводку, не панику и не nil
	if state.Workflows == nil || state.ActivePhases == nil || state.Recent == nil {
		t.Fatal("degraded state must have non-nil fields")
	}
	if len(state.Workflows) != 0 {
		t.Errorf("expected empty workflow counts, got %v", state.Workflows)
	}
}

func TestPhaseStatistics_NormalizesAggregates(t *testing.T) {
	src := &fakeSource{
		phaseStats: []map[string]any{
			// AVG по пустому набору приходит как nil
			{"task_type": "scanning", "active": float64(1), "completed": float64(4), "failed": float64(0), "avg_duration_ms": nil},
			{"task_type": "filling", "active": nil, "completed": "7", "failed": float64(-3), "avg_duration_ms": math.NaN()},
		},
	}

	stats := newTestAggregator(src).PhaseStatistics(context.Background())

	if len(stats) != 2 {
		t.Fatalf("expected 2 phase stats, got %d", len(stats))
	}

	if stats[0].AvgDurationMs != 0 {
		t.Errorf("nil aggregate should normalize to 0, got %v", stats[0].AvgDurationMs)
	}
	if stats[1].Active != 0 {
		t.Errorf("nil count should normalize to 0, got %d", stats[1].Active)
	}
	if stats[1].Completed != 7 {
		t.Errorf("numeric string should parse, got %d", stats[1].Completed)
	}
	if stats[1].Failed != 0 {
		t.Errorf("negative count should clamp to 0, got %d", stats[1].Failed)
	}
	if stats[1].AvgDurationMs != 0 {
		t.Errorf("NaN should normalize to 0, got %v", stats[1].AvgDurationMs)
	}
}

func TestTransitionSummary(t *testing.T) {
	src := &fakeSource{
		transitions: map[string]any{
			"total":           float64(12),
			"successful":      float64(10),
			"failed":          float64(2),
			"avg_duration_ms": float64(340.5),
		},
	}

	summary := newTestAggregator(src).TransitionSummary(context.Background())

	if summary.Total != 12 || summary.Successful != 10 || summary.Failed != 2 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.AvgDurationMs != 340.5 {
		t.Errorf("expected avg 340.5, got %v", summary.AvgDurationMs)
	}
}

func TestTransitionSummary_StorageErrorDegrades(t *testing.T) {
	src := &fakeSource{err: errors.New("timeout")}

	summary := newTestAggregator(src).TransitionSummary(context.Background())

	if summary.Total != 0 || summary.AvgDurationMs != 0 {
		t.Errorf("degraded summary must be zeroed: %+v", summary)
	}
}

func TestCache_AvoidsRepeatQueries(t *testing.T) {
	src := &fakeSource{transitions: map[string]any{"total": float64(1)}}
	agg := New(Config{
		Source:   src,
		CacheTTL: time.Minute,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	agg.TransitionSummary(context.Background())
	first := src.calls
	agg.TransitionSummary(context.Background())

	if src.calls != first {
		t.Errorf("second call within TTL should hit cache, calls went %d -> %d", first, src.calls)
	}
}

func TestToFiniteNumber(t *testing.T) {
	cases := []struct {
		name     string
		value    any
		fallback float64
		want     float64
	}{
		{"float", float64(3.5), 0, 3.5},
		{"int", 7, 0, 7},
		{"int64", int64(9), 0, 9},
		{"nil", nil, 1, 1},
		{"nan", math.NaN(), 2, 2},
		{"pos_inf", math.Inf(1), 0, 0},
		{"neg_inf", math.Inf(-1), 5, 5},
		{"numeric_string", "12.5", 0, 12.5},
		{"garbage_string", "abc", 4, 4},
		{"bool", true, 3, 3},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := toFiniteNumber(tc.value, tc.fallback); got != tc.want {
				t.Errorf("toFiniteNumber(%v, %v) = %v, want %v", tc.value, tc.fallback, got, tc.want)
			}
		})
	}
}
