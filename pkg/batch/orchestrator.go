// Package batch drives many independent scrape operations over a fixed
// worklist with bounded concurrency and quota-aware halting.
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/artie-scraper/artie/pkg/client"
)

// State of one orchestrator run.
type State string

const (
	// StateRunning means items are still being dispatched and drained.
	StateRunning State = "running"

	// StateQuotaHalted means a quota-exceeded result was observed: no new
	// items are dispatched, in-flight items finish naturally.
	StateQuotaHalted State = "quota_halted"

	// StateDone means every item resolved, failed, or was cancelled.
	StateDone State = "done"
)

// Item is one unit of the worklist: an opaque identifier plus the closure
// performing its unit of work. The closure owns all of the item's side
// effects (fetching, parsing, writing destination files); the orchestrator
// only records whether it succeeded.
type Item struct {
	ID string
	Do func(ctx context.Context) error
}

// Result reports the outcome of one item that actually started.
type Result struct {
	Item      string
	Succeeded bool
	Elapsed   time.Duration
	Kind      client.ErrorKind
}

// ProgressFunc is invoked after each item resolves, in completion order,
// which is not worklist order.
type ProgressFunc func(completed, total int, last Result)

// Options configures one orchestrator run.
type Options struct {
	// Concurrency is the requested worker count. It is clamped to the
	// negotiated server maximum when a Negotiate hook is set, and always
	// to at least 1.
	Concurrency int

	// Negotiate returns the server-advertised worker maximum. Called once
	// per run, best-effort: any error leaves Concurrency as configured.
	Negotiate func(ctx context.Context) (int, error)

	// DispatchDelay, when positive, paces the dispatch loop: each item
	// after the first waits this long before being handed to the pool.
	DispatchDelay time.Duration

	// OnProgress, when set, receives per-item completion updates.
	OnProgress ProgressFunc
}

// Summary aggregates one run. The orchestrator never fails on a per-item
// error; only structural problems surface as errors from Run.
type Summary struct {
	RunID     string
	Completed int
	Failed    int
	Cancelled int
	Elapsed   time.Duration
	Halted    bool
}

// Orchestrator runs worklists through a bounded worker pool.
type Orchestrator struct {
	logger zerolog.Logger
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{logger: logger}
}

// Run processes every item with at most the clamped concurrency in flight.
// A quota-exceeded result halts dispatch: not-yet-started items are counted
// as cancelled and in-flight items run to completion. Access-forbidden and
// all other failure kinds are recorded per item and do not halt the run.
func (o *Orchestrator) Run(ctx context.Context, items []Item, opts Options) (Summary, error) {
	runID := uuid.NewString()
	start := time.Now()

	for i, item := range items {
		if item.Do == nil {
			return Summary{RunID: runID}, fmt.Errorf("item %d (%s) has no work function", i, item.ID)
		}
	}

	workers := o.clampConcurrency(ctx, opts)
	logger := o.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Int("items", len(items)).
		Int("workers", workers).
		Msg("Starting batch run")

	var (
		mu            sync.Mutex
		state         = StateRunning
		completed     int
		failed        int
		resolved      int
		notDispatched int
	)

	g, runCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	dispatched := 0
	for _, item := range items {
		if dispatched > 0 && opts.DispatchDelay > 0 {
			select {
			case <-time.After(opts.DispatchDelay):
			case <-runCtx.Done():
			}
		}

		mu.Lock()
		halted := state != StateRunning
		mu.Unlock()
		if halted || runCtx.Err() != nil {
			break
		}

		item := item
		dispatched++
		g.Go(func() error {
			// The halt may have landed while this item was waiting for a
			// pool slot; a not-yet-started item is never run after it.
			mu.Lock()
			if state != StateRunning {
				notDispatched++
				mu.Unlock()
				return nil
			}
			mu.Unlock()

			result := o.runItem(runCtx, logger, item)

			mu.Lock()
			resolved++
			if result.Succeeded {
				completed++
			} else {
				failed++
				if result.Kind == client.KindQuotaExceeded && state == StateRunning {
					state = StateQuotaHalted
					logger.Warn().
						Str("item", item.ID).
						Msg("Quota exceeded, halting dispatch of remaining items")
				}
			}
			done := resolved
			mu.Unlock()

			if opts.OnProgress != nil {
				opts.OnProgress(done, len(items), result)
			}
			return nil
		})
	}

	g.Wait()

	mu.Lock()
	halted := state == StateQuotaHalted
	state = StateDone
	mu.Unlock()

	summary := Summary{
		RunID:     runID,
		Completed: completed,
		Failed:    failed,
		Cancelled: len(items) - dispatched + notDispatched,
		Elapsed:   time.Since(start),
		Halted:    halted,
	}

	batchRunsTotal.WithLabelValues(outcomeLabel(halted)).Inc()
	batchDuration.Observe(summary.Elapsed.Seconds())

	logger.Info().
		Int("completed", summary.Completed).
		Int("failed", summary.Failed).
		Int("cancelled", summary.Cancelled).
		Bool("halted", summary.Halted).
		Dur("elapsed", summary.Elapsed).
		Msg("Batch run finished")
	return summary, nil
}

// runItem executes one item and classifies its outcome.
func (o *Orchestrator) runItem(ctx context.Context, logger zerolog.Logger, item Item) Result {
	itemStart := time.Now()
	err := item.Do(ctx)
	elapsed := time.Since(itemStart)

	if err == nil {
		batchItemsTotal.WithLabelValues("success").Inc()
		logger.Debug().
			Str("item", item.ID).
			Dur("elapsed", elapsed).
			Msg("Item completed")
		return Result{Item: item.ID, Succeeded: true, Elapsed: elapsed}
	}

	kind := client.KindOf(err)
	batchItemsTotal.WithLabelValues(string(kind)).Inc()
	logger.Warn().
		Str("item", item.ID).
		Str("kind", string(kind)).
		Err(err).
		Dur("elapsed", elapsed).
		Msg("Item failed")
	return Result{Item: item.ID, Elapsed: elapsed, Kind: kind}
}

// clampConcurrency resolves the worker count for one run: the configured
// value bounded by the server-advertised maximum, fetched once, best-effort.
func (o *Orchestrator) clampConcurrency(ctx context.Context, opts Options) int {
	workers := opts.Concurrency
	if workers < 1 {
		workers = 1
	}

	if opts.Negotiate == nil {
		return workers
	}

	serverMax, err := opts.Negotiate(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Worker negotiation failed, using configured maximum")
		return workers
	}
	if serverMax >= 1 && serverMax < workers {
		o.logger.Info().
			Int("configured", workers).
			Int("server_max", serverMax).
			Msg("Clamping workers to server-advertised maximum")
		return serverMax
	}
	return workers
}

func outcomeLabel(halted bool) string {
	if halted {
		return "quota_halted"
	}
	return "completed"
}
