package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/sawadashota/aiseg2-influxdb2-forwarder/internal/fetch"
)

const circuitDailyTotalFixture = `
<html><body>
  <div class="circuit_row"><span class="circuit_label">Living Room</span><span class="circuit_value">3.4kWh</span></div>
  <div class="circuit_row"><span class="circuit_label">Kitchen</span><span class="circuit_value">1.2kWh</span></div>
  <div class="circuit_row"><span class="circuit_label">Unused</span><span class="circuit_value">--</span></div>
</body></html>
`

func TestCircuitDailyTotalBackfillOnFirstTick(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		w.Write([]byte(circuitDailyTotalFixture))
	}))
	defer srv.Close()

	f := fetch.New(srv.URL, "u", "p", time.Second)
	cdt := NewCircuitDailyTotal(f, 2, zerolog.Nop())
	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	cdt.now = func() time.Time { return today }

	points, err := cdt.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requests != 2 {
		t.Fatalf("requests = %d, want 2 on first (backfill) tick", requests)
	}
	// Two circuits per day, 2 backfill days = 4 points.
	if len(points) != 4 {
		t.Fatalf("points = %d, want 4", len(points))
	}
	for _, p := range points {
		if p.Timestamp().Format("2006-01-02") != "2025-01-08" && p.Timestamp().Format("2006-01-02") != "2025-01-09" {
			t.Errorf("unexpected point date: %v", p.Timestamp())
		}
		if p.Timestamp().Hour() != 0 || p.Timestamp().Minute() != 0 {
			t.Errorf("point timestamp not at day boundary: %v", p.Timestamp())
		}
	}

	points, err = cdt.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second tick: %v", err)
	}
	if requests != 3 {
		t.Fatalf("requests = %d, want 3 after second tick", requests)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 on subsequent tick", len(points))
	}
}

func TestCircuitDailyTotalRetriesUnfinishedBackfillAfterFailure(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&requests, 1)
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(circuitDailyTotalFixture))
	}))
	defer srv.Close()

	f := fetch.New(srv.URL, "u", "p", time.Second)
	cdt := NewCircuitDailyTotal(f, 2, zerolog.Nop())
	today := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	cdt.now = func() time.Time { return today }

	_, err := cdt.Collect(context.Background())
	if err == nil {
		t.Fatal("expected an error from the failed first day's fetch")
	}
	if requests != 1 {
		t.Fatalf("requests = %d, want 1 (stopped at the failing day)", requests)
	}

	// Next tick must retry both backfill days (2025-01-08 and 2025-01-09),
	// not fall back to today-only.
	points, err := cdt.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on retry tick: %v", err)
	}
	if requests != 3 {
		t.Fatalf("requests = %d, want 3 after retry tick", requests)
	}
	if len(points) != 4 {
		t.Fatalf("points = %d, want 4 (2 circuits x 2 days)", len(points))
	}

	// Third tick: backfill drained, today only.
	points, err = cdt.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on third tick: %v", err)
	}
	if requests != 4 {
		t.Fatalf("requests = %d, want 4 after third tick", requests)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 on today-only tick", len(points))
	}
}

func TestCircuitDailyTotalTagsAndSkipsUnparseable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(circuitDailyTotalFixture))
	}))
	defer srv.Close()

	f := fetch.New(srv.URL, "u", "p", time.Second)
	cdt := NewCircuitDailyTotal(f, 0, zerolog.Nop())
	cdt.now = func() time.Time { return time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC) }

	points, err := cdt.Collect(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("points = %d, want 2 (unparseable circuit skipped)", len(points))
	}

	byCircuit := map[string]float64{}
	for _, p := range points {
		byCircuit[p.Tags()["circuit"]] = p.Fields()["energy_kwh"].(float64)
	}
	if byCircuit["Living Room"] != 3.4 {
		t.Errorf("Living Room energy_kwh = %v, want 3.4", byCircuit["Living Room"])
	}
	if byCircuit["Kitchen"] != 1.2 {
		t.Errorf("Kitchen energy_kwh = %v, want 1.2", byCircuit["Kitchen"])
	}
	if _, ok := byCircuit["Unused"]; ok {
		t.Errorf("unparseable circuit %q should have been skipped", "Unused")
	}
}
