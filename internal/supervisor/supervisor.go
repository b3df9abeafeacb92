// Package supervisor implements the forwarder's core scheduling loop
// (spec.md §4.6, C8): two independent cadence tick loops, each driving its
// own ordered list of collectors behind per-collector breakers, handing
// successful results to a shared writer. The tick-loop-with-restart shape
// follows the teacher's monitor package (vendor/github.com/cashapp/blip
// /monitor/level_collector.go's Run/stopChan/doneChan pattern), generalized
// from MySQL metric levels to the two fixed AiSEG2 cadences.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/breaker"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/collector"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/metrics"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/writer"
)

// restartBackoff is the fixed delay before respawning a cadence loop that
// terminated unexpectedly (spec.md §9's open question: fixed 1s backoff,
// unlimited restarts — no exponential policy, since the source left this
// unspecified and a fixed delay is simplest to reason about for an
// appliance scrape that is expected to recover on its own schedule).
const restartBackoff = 1 * time.Second

// Binding pairs one collector with the breaker that guards it. A collector
// belongs to exactly one cadence and therefore exactly one Binding.
type Binding struct {
	Collector collector.Collector
	Breaker   *breaker.Breaker
}

// CadenceConfig describes one tick loop: its cadence identity, its fixed
// interval, and the ordered collectors it drives. Collectors within a
// cadence run strictly in Bindings order (spec.md §5 ordering guarantee).
type CadenceConfig struct {
	Cadence  model.Cadence
	Interval time.Duration
	Bindings []Binding
}

// Supervisor owns every cadence loop and the shared writer they feed.
type Supervisor struct {
	cadences      []CadenceConfig
	writer        *writer.Writer
	metrics       *metrics.Registry
	log           zerolog.Logger
	taskTimeout   time.Duration
	shutdownGrace time.Duration
}

// New constructs a Supervisor. taskTimeout bounds every collect() call
// (COLLECTOR_TASK_TIMEOUT_SECONDS); shutdownGrace bounds how long Run waits
// for cadence loops to exit after ctx is cancelled.
func New(cadences []CadenceConfig, w *writer.Writer, reg *metrics.Registry, log zerolog.Logger, taskTimeout, shutdownGrace time.Duration) *Supervisor {
	return &Supervisor{
		cadences:      cadences,
		writer:        w,
		metrics:       reg,
		log:           log,
		taskTimeout:   taskTimeout,
		shutdownGrace: shutdownGrace,
	}
}

// Run starts every cadence loop and blocks until ctx is cancelled, then
// waits up to shutdownGrace for all loops to exit before returning
// (spec.md §4.6 shutdown; points in flight may be dropped).
func (s *Supervisor) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, cfg := range s.cadences {
		cfg := cfg
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.superviseCadence(ctx, cfg)
		}()
	}

	<-ctx.Done()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(s.shutdownGrace):
		s.log.Warn().Dur("grace", s.shutdownGrace).Msg("shutdown grace period exceeded, returning anyway")
		return errors.New("supervisor: shutdown grace period exceeded")
	}
}

// superviseCadence respawns the cadence's tick loop after fixed backoff any
// time it terminates for a reason other than ctx cancellation (spec.md
// §4.6 restart policy). The loop body itself never lets a collector error
// escape (handled entirely within tick), so termination here only happens
// on a genuine panic inside the loop's own bookkeeping.
func (s *Supervisor) superviseCadence(ctx context.Context, cfg CadenceConfig) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := s.runCadenceLoopGuarded(ctx, cfg)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			s.metrics.TickLoopRestarts.WithLabelValues(cfg.Cadence.String()).Inc()
			s.log.Error().Str("cadence", cfg.Cadence.String()).Err(err).
				Dur("backoff", restartBackoff).Msg("cadence tick loop terminated unexpectedly, restarting")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(restartBackoff):
		}
	}
}

// runCadenceLoopGuarded recovers a panic inside runCadenceLoop and reports
// it as an error to the restart supervisor, rather than crashing the
// process (spec.md §7: "Panics inside a tick loop are caught by the loop's
// restart supervisor").
func (s *Supervisor) runCadenceLoopGuarded(ctx context.Context, cfg CadenceConfig) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	s.runCadenceLoop(ctx, cfg)
	return nil
}

// runCadenceLoop ticks at absolute-time boundaries: if a tick's work
// overran the interval, the next tick fires immediately rather than
// compounding the delay (spec.md §4.6 step 1).
func (s *Supervisor) runCadenceLoop(ctx context.Context, cfg CadenceConfig) {
	next := time.Now().Add(cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(next)):
		}

		s.tick(ctx, cfg)

		now := time.Now()
		next = next.Add(cfg.Interval)
		if !next.After(now) {
			// Overran: step to the latest boundary already passed so the next
			// tick fires at once, and log how far behind it is.
			for !next.Add(cfg.Interval).After(now) {
				next = next.Add(cfg.Interval)
			}
			s.log.Warn().Str("cadence", cfg.Cadence.String()).Dur("lag", now.Sub(next)).
				Msg("tick overran its interval, firing next tick immediately")
		}
	}
}

// tick runs every collector in cfg once, in order, each step fully
// contained per spec.md §4.6 step 2 and §7's propagation policy.
func (s *Supervisor) tick(ctx context.Context, cfg CadenceConfig) {
	for _, b := range cfg.Bindings {
		id := string(b.Collector.ID())

		if !b.Breaker.Allow() {
			s.metrics.ShortCircuited.WithLabelValues(id).Inc()
			continue
		}

		taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
		points, err := b.Collector.Collect(taskCtx)
		cancel()

		if err != nil {
			b.Breaker.RecordFailure()
			kind := classifyCollectErr(taskCtx, err)
			s.metrics.CollectorErrors.WithLabelValues(id, kind).Inc()
			s.log.Error().Str("collector", id).Str("kind", kind).Err(err).Msg("collector failed")
			s.metrics.BreakerState.WithLabelValues(id).Set(metrics.BreakerStateValue(b.Breaker.CurrentState()))
			continue
		}
		b.Breaker.RecordSuccess()
		s.metrics.BreakerState.WithLabelValues(id).Set(metrics.BreakerStateValue(b.Breaker.CurrentState()))

		if len(points) == 0 {
			continue
		}

		if werr := s.writer.Write(ctx, points); werr != nil {
			kind := "unknown"
			if we, ok := writer.AsWriteError(werr); ok {
				kind = we.Kind.String()
			}
			s.metrics.WriterFailures.WithLabelValues(kind).Inc()
			s.log.Error().Str("collector", id).Str("kind", kind).Err(werr).Msg("writer failed")
			continue
		}
		s.metrics.PointsWritten.Add(float64(len(points)))
	}
}

// classifyCollectErr labels a collector failure for metrics/logging. A
// context deadline exceeded error not already wrapped as a collector.Error
// (e.g. a collector that never checks ctx itself) is still reported as a
// timeout, matching spec.md §7's four-way taxonomy.
func classifyCollectErr(ctx context.Context, err error) string {
	if ce, ok := collector.AsCollectorError(err); ok {
		return ce.Kind.String()
	}
	if ctx.Err() == context.DeadlineExceeded {
		return collector.KindTimeout.String()
	}
	return collector.KindFetch.String()
}
