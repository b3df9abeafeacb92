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

const climatePagePath = "/page/control/airenvironment"

const (
	climateRoomSelector        = ".env_room_row"
	climateRoomLabelSelector   = ".env_room_label"
	climateTempSelector        = ".env_room_temp"
	climateHumiditySelector    = ".env_room_humidity"
)

// Climate implements the per-room climate collector (spec.md §4.3).
type Climate struct {
	fetcher *fetch.Fetcher
	log     zerolog.Logger
}

func NewClimate(fetcher *fetch.Fetcher, log zerolog.Logger) *Climate {
	return &Climate{fetcher: fetcher, log: log.With().Str("collector_id", string(model.Climate)).Logger()}
}

func (c *Climate) ID() model.CollectorId { return model.Climate }

func (c *Climate) Collect(ctx context.Context) ([]model.Point, error) {
	body, err := c.fetcher.Fetch(ctx, climatePagePath)
	if err != nil {
		return nil, classifyFetchErr(err)
	}

	doc, err := htmlutil.Parse(body)
	if err != nil {
		return nil, ParseError(fmt.Errorf("parse climate page: %w", err))
	}

	now := time.Now()
	rooms := htmlutil.SelectAllText(doc, climateRoomLabelSelector)
	temps := htmlutil.SelectAllText(doc, climateTempSelector)
	humidities := htmlutil.SelectAllText(doc, climateHumiditySelector)

	points := make([]model.Point, 0, len(rooms))
	for i, room := range rooms {
		if i >= len(temps) || i >= len(humidities) {
			break
		}
		temp, tempOK := htmlutil.ParseNumeric(temps[i])
		humidity, humidityOK := htmlutil.ParseNumeric(humidities[i])
		if !tempOK || !humidityOK {
			c.log.Warn().Str("room", room).
				Str("raw_temp", temps[i]).Str("raw_humidity", humidities[i]).
				Msg("skipping unparseable climate row")
			continue
		}

		points = append(points, model.NewPoint(
			"climate",
			map[string]string{"room": room},
			map[string]interface{}{
				"temperature_c": temp,
				"humidity_pct":  humidity,
			},
			now,
		))
	}

	if len(points) == 0 && len(rooms) > 0 {
		return nil, ParseError(fmt.Errorf("no parseable climate rows among %d", len(rooms)))
	}
	return points, nil
}
