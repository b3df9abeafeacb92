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

const dailyTotalPagePathFmt = "/page/graph/52?d=%s"

const (
	dailyTotalGenerationSelector = ".daily_generation"
	dailyTotalConsumptionSelector = ".daily_consumption"
	dailyTotalGridImportSelector  = ".daily_grid_import"
	dailyTotalGridExportSelector  = ".daily_grid_export"
)

// DailyTotal implements the whole-house daily-energy collector (spec.md
// §4.3). On its first Collect call it backfills TotalInitialDays days
// (excluding today); every call after that requests today only. The
// pending backfill queue is the one piece of mutable state a collector is
// allowed to carry across calls (spec.md §9's design note on backfill
// scope). Backfill is only considered done once every queued day has been
// fetched and parsed without error — a partial failure (one bad day, or
// the whole batch not finishing inside the call's deadline) leaves the
// unprocessed days queued for the next tick instead of silently dropping
// them (spec.md §4.3/§9's backfill contract).
type DailyTotal struct {
	fetcher     *fetch.Fetcher
	log         zerolog.Logger
	initialDays int
	now         func() time.Time

	mu                  sync.Mutex
	backfillInitialized bool
	backfillQueue       []time.Time
}

func NewDailyTotal(fetcher *fetch.Fetcher, initialDays int, log zerolog.Logger) *DailyTotal {
	return &DailyTotal{
		fetcher:     fetcher,
		initialDays: initialDays,
		now:         time.Now,
		log:         log.With().Str("collector_id", string(model.DailyTotal)).Logger(),
	}
}

func (d *DailyTotal) ID() model.CollectorId { return model.DailyTotal }

func (d *DailyTotal) Collect(ctx context.Context) ([]model.Point, error) {
	d.mu.Lock()
	if !d.backfillInitialized {
		d.backfillQueue = backfillDates(d.now(), d.initialDays)
		d.backfillInitialized = true
	}
	backfilling := len(d.backfillQueue) > 0
	dates := d.backfillQueue
	d.mu.Unlock()

	if !backfilling {
		dates = []time.Time{dayStart(d.now())}
	}

	var points []model.Point
	for i, day := range dates {
		dayPoints, err := d.collectDay(ctx, day)
		if err != nil {
			if backfilling {
				// Keep this day and every day after it queued for retry;
				// only the days strictly before i actually succeeded.
				d.mu.Lock()
				d.backfillQueue = dates[i:]
				d.mu.Unlock()
			}
			return nil, err
		}
		points = append(points, dayPoints...)
	}

	if backfilling {
		d.mu.Lock()
		d.backfillQueue = nil
		d.mu.Unlock()
	}
	return points, nil
}

func (d *DailyTotal) collectDay(ctx context.Context, day time.Time) ([]model.Point, error) {
	path := fmt.Sprintf(dailyTotalPagePathFmt, day.Format("20060102"))
	body, err := d.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, classifyFetchErr(err)
	}

	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, ParseError(fmt.Errorf("parse daily total page for %s: %w", day.Format("2006-01-02"), err))
	}

	fields := map[string]interface{}{}
	missing := 0
	for field, selector := range map[string]string{
		"generation_kwh":   dailyTotalGenerationSelector,
		"consumption_kwh":  dailyTotalConsumptionSelector,
		"grid_import_kwh":  dailyTotalGridImportSelector,
		"grid_export_kwh":  dailyTotalGridExportSelector,
	} {
		text, ok := htmlutil.SelectText(doc, selector)
		if !ok {
			missing++
			continue
		}
		v, ok := htmlutil.ParseNumeric(text)
		if !ok {
			d.log.Warn().Str("field", field).Str("raw", text).Str("date", day.Format("2006-01-02")).
				Msg("skipping unparseable daily total field")
			missing++
			continue
		}
		fields[field] = v
	}

	if len(fields) == 0 {
		return nil, ParseError(fmt.Errorf("no parseable daily total fields for %s", day.Format("2006-01-02")))
	}

	return []model.Point{model.NewPoint("daily_total", nil, fields, day)}, nil
}

// dayStart truncates t to 00:00:00 in its own location (spec.md §4.3:
// "Timestamp is set to 00:00:00 local time of the date in question").
func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// backfillDates returns the day boundaries for the last n days strictly
// before today, oldest first (spec.md §8 scenario 6).
func backfillDates(today time.Time, n int) []time.Time {
	start := dayStart(today)
	dates := make([]time.Time, 0, n)
	for i := n; i >= 1; i-- {
		dates = append(dates, start.AddDate(0, 0, -i))
	}
	return dates
}
