package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
)

const powerFixture = `
<html><body>
  <div class="power_row"><span class="power_label">買電</span><span class="power_value">1234W</span></div>
  <div class="power_row"><span class="power_label">売電</span><span class="power_value">0W</span></div>
  <div class="power_row"><span class="power_label">リビング</span><span class="power_value">56W</span></div>
  <div class="power_row"><span class="power_label">不明</span><span class="power_value">--</span></div>
</body></html>
`

func TestPowerCollectKnownAndCircuitSources(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(powerFixture))
	}))
	defer srv.Close()

	f := fetch.New(srv.URL, "u", "p", time.Second)
	p := NewPower(f, zerolog.Nop())

	points, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 4 rows, one unparseable ("不明"), so 3 points remain.
	if len(points) != 3 {
		t.Fatalf("points = %d, want 3", len(points))
	}

	bySource := map[string]float64{}
	for _, pt := range points {
		if pt.Name() != "power" {
			t.Errorf("point name = %q, want power", pt.Name())
		}
		bySource[pt.Tags()["source"]] = pt.Fields()["watts"].(float64)
	}
	if bySource["grid_import"] != 1234 {
		t.Errorf("grid_import watts = %v, want 1234", bySource["grid_import"])
	}
	if bySource["grid_export"] != 0 {
		t.Errorf("grid_export watts = %v, want 0", bySource["grid_export"])
	}
	if bySource["リビング"] != 56 {
		t.Errorf("circuit リビング watts = %v, want 56", bySource["リビング"])
	}
}

func TestPowerCollectSharesSingleTimestamp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(powerFixture))
	}))
	defer srv.Close()

	f := fetch.New(srv.URL, "u", "p", time.Second)
	p := NewPower(f, zerolog.Nop())

	points, err := p.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) == 0 {
		t.Fatal("expected at least one point")
	}
	ts := points[0].Timestamp()
	for _, pt := range points[1:] {
		if !pt.Timestamp().Equal(ts) {
			t.Errorf("timestamp %v differs from first point's %v", pt.Timestamp(), ts)
		}
	}
}
