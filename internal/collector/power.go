package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/htmlutil"
	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/model"
)

const powerPagePath = "/page/airvolume/41?d=1"

// powerRowSelector matches one instantaneous-power row on the AiSEG2
// "current status" page. Each row carries a source label and a watt value;
// circuit rows additionally carry a per-circuit label instead of a fixed
// source name.
const (
	powerRowSelector   = ".power_row"
	powerLabelSelector = ".power_label"
	powerValueSelector = ".power_value"
)

// knownSources maps the label text AiSEG2 shows for each row to the tag value
// this collector emits. Rows whose label doesn't match a known source are
// treated as per-circuit rows and tagged with their own label text.
var knownSources = map[string]string{
	"買電":    "grid_import",
	"売電":    "grid_export",
	"発電":    "solar",
	"蓄電池":   "battery",
	"消費電力":  "consumption",
}

// Power implements the instantaneous-power collector (spec.md §4.3).
type Power struct {
	fetcher *fetch.Fetcher
	log     zerolog.Logger
}

// NewPower constructs a Power collector using fetcher for HTTP access.
func NewPower(fetcher *fetch.Fetcher, log zerolog.Logger) *Power {
	return &Power{fetcher: fetcher, log: log.With().Str("collector_id", string(model.Power)).Logger()}
}

func (p *Power) ID() model.CollectorId { return model.Power }

// Collect fetches the instantaneous-power page and returns one "power"
// point per row, all sharing a single clock read (spec.md §3 invariants).
func (p *Power) Collect(ctx context.Context) ([]model.Point, error) {
	body, err := p.fetcher.Fetch(ctx, powerPagePath)
	if err != nil {
		return nil, classifyFetchErr(err)
	}

	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, ParseError(fmt.Errorf("parse power page: %w", err))
	}

	now := time.Now()
	labels := htmlutil.SelectAllText(doc, powerLabelSelector)
	values := htmlutil.SelectAllText(doc, powerValueSelector)

	points := make([]model.Point, 0, len(labels))
	for i, label := range labels {
		if i >= len(values) {
			break
		}
		watts, ok := htmlutil.ParseNumeric(values[i])
		if !ok {
			p.log.Warn().Str("label", label).Str("raw", values[i]).Msg("skipping unparseable power row")
			continue
		}

		source, known := knownSources[label]
		if !known {
			source = label
		}
		points = append(points, model.NewPoint(
			"power",
			map[string]string{"source": source},
			map[string]interface{}{"watts": watts},
			now,
		))
	}

	if len(points) == 0 && len(labels) > 0 {
		return nil, ParseError(fmt.Errorf("no parseable power rows among %d", len(labels)))
	}
	return points, nil
}
