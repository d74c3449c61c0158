package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/artie-scraper/artie/pkg/client"
)

func quotaErr() error {
	return &client.Error{Kind: client.KindQuotaExceeded, Message: "rate limit exceeded"}
}

func forbiddenErr() error {
	return &client.Error{Kind: client.KindAccessForbidden, Message: "forbidden"}
}

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(zerolog.Nop())
}

func TestRun_AllSucceed(t *testing.T) {
	var ran atomic.Int32
	items := make([]Item, 8)
	for i := range items {
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}
	}

	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 8 || summary.Failed != 0 || summary.Cancelled != 0 {
		t.Errorf("summary = %+v, want 8 completed", summary)
	}
	if summary.Halted {
		t.Error("Halted = true, want false")
	}
	if ran.Load() != 8 {
		t.Errorf("ran = %d, want 8", ran.Load())
	}
	if summary.RunID == "" {
		t.Error("RunID empty")
	}
}

func TestRun_QuotaHaltSemantics(t *testing.T) {
	// Ten items, item 5 deterministically exceeds quota, sequential pool.
	var started atomic.Int32
	items := make([]Item, 10)
	for i := range items {
		i := i
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error {
			started.Add(1)
			if i == 4 {
				return quotaErr()
			}
			return nil
		}}
	}

	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{Concurrency: 1})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if !summary.Halted {
		t.Error("Halted = false, want true")
	}
	if summary.Completed != 4 {
		t.Errorf("Completed = %d, want 4", summary.Completed)
	}
	if summary.Failed != 1 {
		t.Errorf("Failed = %d, want 1", summary.Failed)
	}
	if summary.Cancelled < 1 {
		t.Errorf("Cancelled = %d, want at least 1", summary.Cancelled)
	}
	if total := summary.Completed + summary.Failed + summary.Cancelled; total != 10 {
		t.Errorf("attempted-or-cancelled = %d, want 10", total)
	}
	if started.Load() != 5 {
		t.Errorf("started = %d, want 5", started.Load())
	}
}

func TestRun_QuotaHaltWithConcurrency(t *testing.T) {
	// In-flight items finish naturally after the halt; accounting still
	// covers every item exactly once.
	items := make([]Item, 10)
	for i := range items {
		i := i
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error {
			if i == 4 {
				return quotaErr()
			}
			return nil
		}}
	}

	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{Concurrency: 3})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !summary.Halted {
		t.Error("Halted = false, want true")
	}
	if total := summary.Completed + summary.Failed + summary.Cancelled; total != 10 {
		t.Errorf("attempted-or-cancelled = %d, want 10", total)
	}
	if summary.Failed < 1 {
		t.Errorf("Failed = %d, want at least the quota item", summary.Failed)
	}
}

func TestRun_ForbiddenDoesNotHalt(t *testing.T) {
	items := make([]Item, 6)
	for i := range items {
		i := i
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error {
			if i == 1 {
				return forbiddenErr()
			}
			return nil
		}}
	}

	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{Concurrency: 2})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Halted {
		t.Error("forbidden result halted the batch")
	}
	if summary.Completed != 5 || summary.Failed != 1 || summary.Cancelled != 0 {
		t.Errorf("summary = %+v, want 5/1/0", summary)
	}
}

func TestRun_OtherFailuresRecordedAndContinue(t *testing.T) {
	items := []Item{
		{ID: "ok", Do: func(ctx context.Context) error { return nil }},
		{ID: "missing", Do: func(ctx context.Context) error {
			return &client.Error{Kind: client.KindNotFound, Message: "no such game"}
		}},
		{ID: "plain", Do: func(ctx context.Context) error { return errors.New("disk full") }},
	}

	var kinds []client.ErrorKind
	var mu sync.Mutex
	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{
		Concurrency: 1,
		OnProgress: func(completed, total int, last Result) {
			mu.Lock()
			kinds = append(kinds, last.Kind)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 1 || summary.Failed != 2 {
		t.Errorf("summary = %+v, want 1 completed, 2 failed", summary)
	}

	// Unclassified item errors surface as the unknown kind.
	found := false
	for _, k := range kinds {
		if k == client.KindUnknown {
			found = true
		}
	}
	if !found {
		t.Errorf("kinds = %v, want one unknown", kinds)
	}
}

func TestRun_ProgressReporting(t *testing.T) {
	items := make([]Item, 5)
	for i := range items {
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error { return nil }}
	}

	var mu sync.Mutex
	var counters []int
	totals := map[int]bool{}
	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{
		Concurrency: 4,
		OnProgress: func(completed, total int, last Result) {
			mu.Lock()
			counters = append(counters, completed)
			totals[total] = true
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 5 {
		t.Fatalf("Completed = %d, want 5", summary.Completed)
	}

	// Progress is a running counter: each resolution reports a distinct
	// count from 1..5, in completion order.
	if len(counters) != 5 {
		t.Fatalf("progress calls = %d, want 5", len(counters))
	}
	seen := map[int]bool{}
	for _, c := range counters {
		seen[c] = true
	}
	for i := 1; i <= 5; i++ {
		if !seen[i] {
			t.Errorf("progress counter %d never reported", i)
		}
	}
	if len(totals) != 1 || !totals[5] {
		t.Errorf("totals = %v, want always 5", totals)
	}
}

func TestRun_DispatchDelayPacesDispatch(t *testing.T) {
	items := make([]Item, 3)
	for i := range items {
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error { return nil }}
	}

	const delay = 20 * time.Millisecond
	start := time.Now()
	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{
		Concurrency:   1,
		DispatchDelay: delay,
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 3 {
		t.Fatalf("Completed = %d, want 3", summary.Completed)
	}

	// Items after the first each wait out the delay.
	if elapsed := time.Since(start); elapsed < 2*delay {
		t.Errorf("elapsed = %v, want at least %v", elapsed, 2*delay)
	}
}

func TestRun_NilWorkFunctionIsStructuralError(t *testing.T) {
	items := []Item{{ID: "broken"}}
	_, err := newTestOrchestrator().Run(context.Background(), items, Options{Concurrency: 1})
	if err == nil {
		t.Error("Run should fail for an item with no work function")
	}
}

func TestRun_NegotiateClampsConcurrency(t *testing.T) {
	var mu sync.Mutex
	inFlight, peak := 0, 0
	blocker := make(chan struct{})

	items := make([]Item, 6)
	for i := range items {
		items[i] = Item{ID: itemID(i), Do: func(ctx context.Context) error {
			mu.Lock()
			inFlight++
			if inFlight > peak {
				peak = inFlight
			}
			mu.Unlock()
			<-blocker
			mu.Lock()
			inFlight--
			mu.Unlock()
			return nil
		}}
	}

	negotiations := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		newTestOrchestrator().Run(context.Background(), items, Options{
			Concurrency: 8,
			Negotiate: func(ctx context.Context) (int, error) {
				negotiations++
				return 2, nil
			},
		})
	}()

	// Let workers saturate the clamped pool, then release them.
	for i := 0; i < 6; i++ {
		blocker <- struct{}{}
	}
	<-done

	if negotiations != 1 {
		t.Errorf("negotiations = %d, want 1 (one-shot per run)", negotiations)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestRun_NegotiateFailureFallsBackToConfigured(t *testing.T) {
	items := []Item{{ID: "a", Do: func(ctx context.Context) error { return nil }}}
	summary, err := newTestOrchestrator().Run(context.Background(), items, Options{
		Concurrency: 4,
		Negotiate: func(ctx context.Context) (int, error) {
			return 0, errors.New("infra endpoint unavailable")
		},
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if summary.Completed != 1 {
		t.Errorf("Completed = %d, want 1", summary.Completed)
	}
}

func itemID(i int) string {
	return string(rune('a' + i))
}
