package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/htmlutil"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
)

const circuitDailyTotalPagePathFmt = "/page/graph/53?d=%s"

const (
	circuitRowSelector   = ".circuit_row"
	circuitLabelSelector = ".circuit_label"
	circuitValueSelector = ".circuit_value"
)

// CircuitDailyTotal implements the per-circuit daily-energy collector
// (spec.md §4.3). It shares DailyTotal's backfill-then-today cadence model
// (including its retry-the-unfinished-queue behavior on a partial backfill
// failure, see dailytotal.go) but tags each point by circuit instead of
// emitting one combined point.
type CircuitDailyTotal struct {
	fetcher     *fetch.Fetcher
	log         zerolog.Logger
	initialDays int
	now         func() time.Time

	mu                  sync.Mutex
	backfillInitialized bool
	backfillQueue       []time.Time
}

func NewCircuitDailyTotal(fetcher *fetch.Fetcher, initialDays int, log zerolog.Logger) *CircuitDailyTotal {
	return &CircuitDailyTotal{
		fetcher:     fetcher,
		initialDays: initialDays,
		now:         time.Now,
		log:         log.With().Str("collector_id", string(model.CircuitDailyTotal)).Logger(),
	}
}

func (c *CircuitDailyTotal) ID() model.CollectorId { return model.CircuitDailyTotal }

func (c *CircuitDailyTotal) Collect(ctx context.Context) ([]model.Point, error) {
	c.mu.Lock()
	if !c.backfillInitialized {
		c.backfillQueue = backfillDates(c.now(), c.initialDays)
		c.backfillInitialized = true
	}
	backfilling := len(c.backfillQueue) > 0
	dates := c.backfillQueue
	c.mu.Unlock()

	if !backfilling {
		dates = []time.Time{dayStart(c.now())}
	}

	var points []model.Point
	for i, day := range dates {
		dayPoints, err := c.collectDay(ctx, day)
		if err != nil {
			if backfilling {
				c.mu.Lock()
				c.backfillQueue = dates[i:]
				c.mu.Unlock()
			}
			return nil, err
		}
		points = append(points, dayPoints...)
	}

	if backfilling {
		c.mu.Lock()
		c.backfillQueue = nil
		c.mu.Unlock()
	}
	return points, nil
}

func (c *CircuitDailyTotal) collectDay(ctx context.Context, day time.Time) ([]model.Point, error) {
	path := fmt.Sprintf(circuitDailyTotalPagePathFmt, day.Format("20060102"))
	body, err := c.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, classifyFetchErr(err)
	}

	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, ParseError(fmt.Errorf("parse circuit daily total page for %s: %w", day.Format("2006-01-02"), err))
	}

	labels := htmlutil.SelectAllText(doc, circuitLabelSelector)
	values := htmlutil.SelectAllText(doc, circuitValueSelector)

	points := make([]model.Point, 0, len(labels))
	for i, label := range labels {
		if i >= len(values) {
			break
		}
		v, ok := htmlutil.ParseNumeric(values[i])
		if !ok {
			c.log.Warn().Str("circuit", label).Str("raw", values[i]).
				Str("date", day.Format("2006-01-02")).Msg("skipping unparseable circuit row")
			continue
		}
		points = append(points, model.NewPoint(
			"circuit_daily_total",
			map[string]string{"circuit": label},
			map[string]interface{}{"energy_kwh": v},
			day,
		))
	}

	if len(points) == 0 && len(labels) > 0 {
		return nil, ParseError(fmt.Errorf("no parseable circuit rows among %d for %s", len(labels), day.Format("2006-01-02")))
	}
	return points, nil
}
