package ringdb

import (
	"regexp"
	"time"
)

// SeriesType selects the aggregator semantics applied to incoming samples.
type SeriesType uint8

const (
	Period SeriesType = iota
	Gauge
	Counter
)

func (t SeriesType) String() string {
	switch t {
	case Period:
		return "period"
	case Gauge:
		return "gauge"
	case Counter:
		return "counter"
	default:
		return "unknown"
	}
}

// AggregationType selects how samples within a slot's window are folded.
type AggregationType uint8

const (
	Average AggregationType = iota
	Min
	Max
)

func (t AggregationType) String() string {
	switch t {
	case Average:
		return "average"
	case Min:
		return "min"
	case Max:
		return "max"
	default:
		return "unknown"
	}
}

// SlugPattern is the regex every series identifier must match.
var SlugPattern = regexp.MustCompile(`^[A-Za-z0-9_:.\-]{1,64}$`)

// ValidSlug reports whether slug satisfies SlugPattern.
func ValidSlug(slug string) bool {
	return SlugPattern.MatchString(slug)
}

const maxTimezoneNameBytes = 64 // 64-byte field, NUL-padded, so 63 usable bytes

// ArchiveConfig declares one archive at series-creation time.
type ArchiveConfig struct {
	AggregationType AggregationType
	Aggregation     uint32 // native samples per slot
	Count           uint32 // number of slots in the ring
	Threshold       float32
}

// Resolution returns the number of seconds covered by one slot in this
// archive, given the series' native sampling interval.
func (a ArchiveConfig) Resolution(interval uint32) int64 {
	return int64(interval) * int64(a.Aggregation)
}

// SeriesConfig is the immutable shape fixed at Create time.
type SeriesConfig struct {
	SeriesType   SeriesType
	Start        time.Time // truncated to UTC and aligned down to Interval
	Interval     uint32    // seconds; positive
	TimezoneName string    // IANA zone id, <= 63 bytes
	Archives     []ArchiveConfig

	// DefaultThreshold fills in an archive's Threshold when it is left at
	// the zero value. Ignored once a series is created; it is not part of
	// the on-disk format.
	DefaultThreshold float32
}

// Reading is one (timestamp, value) input sample.
type Reading struct {
	Timestamp time.Time
	Value     float32
}

// Point is one (timestamp, value) output sample from Fetch.
type Point struct {
	Timestamp time.Time
	Value     float32
}

// ArchiveInfo summarizes one archive for display.
type ArchiveInfo struct {
	AggregationType AggregationType
	Aggregation     uint32
	Count           uint32
	Resolution      int64 // seconds per slot
	Cycles          uint32
	Position        uint32
}

// Info summarizes a series for display.
type Info struct {
	Slug         string
	SeriesType   SeriesType
	Start        time.Time
	Interval     uint32
	TimezoneName string
	Last         time.Time
	Archives     []ArchiveInfo
}
