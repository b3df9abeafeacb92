// Package model defines the measurement types shared by every collector and
// the writer: an immutable Point, the CollectorId and Cadence enums.
package model

import "time"

// CollectorId is a short, stable identifier for a collector. It is used as
// the breaker registry key and in log/metric context.
type CollectorId string

const (
	Power               CollectorId = "power"
	Climate             CollectorId = "climate"
	DailyTotal          CollectorId = "daily_total"
	CircuitDailyTotal   CollectorId = "circuit_daily_total"
)

// Cadence is a tick rate driving a group of collectors. Each cadence owns an
// independent tick loop in the supervisor.
type Cadence int

const (
	Status Cadence = iota
	Total
)

func (c Cadence) String() string {
	switch c {
	case Status:
		return "status"
	case Total:
		return "total"
	default:
		return "unknown"
	}
}

// Point is a single immutable measurement: a name, a tag set, a field set and
// a timestamp. Construct with NewPoint; the tag/field maps passed in are
// copied so the caller's maps may be reused or mutated afterward.
type Point struct {
	name   string
	tags   map[string]string
	fields map[string]interface{}
	ts     time.Time
}

// NewPoint copies tags and fields so the returned Point is safe to retain
// after the caller's maps are mutated or reused.
func NewPoint(name string, tags map[string]string, fields map[string]interface{}, ts time.Time) Point {
	tagsCopy := make(map[string]string, len(tags))
	for k, v := range tags {
		tagsCopy[k] = v
	}
	fieldsCopy := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		fieldsCopy[k] = v
	}
	return Point{name: name, tags: tagsCopy, fields: fieldsCopy, ts: ts}
}

func (p Point) Name() string { return p.name }

func (p Point) Timestamp() time.Time { return p.ts }

// Tags returns a copy of the point's tag set.
func (p Point) Tags() map[string]string {
	out := make(map[string]string, len(p.tags))
	for k, v := range p.tags {
		out[k] = v
	}
	return out
}

// Fields returns a copy of the point's field set.
func (p Point) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(p.fields))
	for k, v := range p.fields {
		out[k] = v
	}
	return out
}
