// Package aggregate downsamples raw samples into fixed-width averaged buckets.
package aggregate

import (
	"sort"
	"time"

	"github.com/voltwatch/backend/internal/db/models"
	"github.com/voltwatch/backend/internal/timeframe"
)

// Bucket widths chosen by SelectBucketWidth
const (
	MinuteWidth    = time.Minute
	TenMinuteWidth = 10 * time.Minute
	DayWidth       = 24 * time.Hour
)

// Bucket holds the mean of the samples whose createdAt falls in
// [CreatedAt, CreatedAt+width)
type Bucket struct {
	CreatedAt   int64   `json:"createdAt"`
	SampleCount int     `json:"sampleCount"`
	Current     float64 `json:"current"`
	Voltage     float64 `json:"voltage"`
	Power       float64 `json:"power"`
}

type accumulator struct {
	count                   int
	current, voltage, power float64
}

func (a *accumulator) add(s models.Sample) {
	a.count++
	a.current += s.Current
	a.voltage += s.Voltage
	a.power += s.Power
}

func (a *accumulator) bucket(createdAt int64) Bucket {
	n := float64(a.count)
	return Bucket{
		CreatedAt:   createdAt,
		SampleCount: a.count,
		Current:     a.current / n,
		Voltage:     a.voltage / n,
		Power:       a.power / n,
	}
}

// Aggregate partitions samples by floor(createdAt / width) and averages each
// partition. Empty partitions are omitted and the result is NOT ordered; use
// Sort or Merge when chronological order matters.
func Aggregate(samples []models.Sample, width time.Duration) []Bucket {
	if len(samples) == 0 {
		return []Bucket{}
	}

	widthMs := width.Milliseconds()
	if widthMs < 1 {
		widthMs = 1
	}

	partitions := make(map[int64]*accumulator)
	for _, s := range samples {
		key := floorDiv(s.CreatedAt, widthMs)
		acc, ok := partitions[key]
		if !ok {
			acc = &accumulator{}
			partitions[key] = acc
		}
		acc.add(s)
	}

	buckets := make([]Bucket, 0, len(partitions))
	for key, acc := range partitions {
		buckets = append(buckets, acc.bucket(key*widthMs))
	}
	return buckets
}

// Summarize averages the whole slice into one bucket stamped at createdAt
func Summarize(samples []models.Sample, createdAt int64) (Bucket, bool) {
	if len(samples) == 0 {
		return Bucket{}, false
	}

	var acc accumulator
	for _, s := range samples {
		acc.add(s)
	}
	return acc.bucket(createdAt), true
}

// SelectBucketWidth picks the downsampling width for a query
func SelectBucketWidth(frame timeframe.Frame, w timeframe.Window) time.Duration {
	switch frame {
	case timeframe.Today:
		if isWholeDay(w) {
			return TenMinuteWidth
		}
	case timeframe.Last7Days, timeframe.Last30Days, timeframe.Custom:
		return DayWidth
	}
	return MinuteWidth
}

func isWholeDay(w timeframe.Window) bool {
	return w.StartDate.Equal(timeframe.StartOfDay(w.StartDate)) &&
		w.EndDate.Equal(timeframe.EndOfDay(w.StartDate))
}

// Sort orders buckets by createdAt. Ties are broken on the remaining fields so
// the order does not depend on the input order.
func Sort(buckets []Bucket) {
	sort.Slice(buckets, func(i, j int) bool {
		return less(buckets[i], buckets[j])
	})
}

func less(a, b Bucket) bool {
	switch {
	case a.CreatedAt != b.CreatedAt:
		return a.CreatedAt < b.CreatedAt
	case a.SampleCount != b.SampleCount:
		return a.SampleCount < b.SampleCount
	case a.Current != b.Current:
		return a.Current < b.Current
	case a.Voltage != b.Voltage:
		return a.Voltage < b.Voltage
	default:
		return a.Power < b.Power
	}
}

// Merge concatenates bucket sequences and sorts the result
func Merge(parts ...[]Bucket) []Bucket {
	total := 0
	for _, p := range parts {
		total += len(p)
	}

	out := make([]Bucket, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	Sort(out)
	return out
}

// FromRollups converts daily rollup records into buckets. Records of several
// devices that share a day are combined, weighted by their sample counts.
func FromRollups(records []models.RollupRecord) []Bucket {
	type weighted struct {
		count                   int
		current, voltage, power float64
	}

	days := make(map[int64]*weighted)
	for _, r := range records {
		if r.SampleCount <= 0 {
			continue
		}
		w, ok := days[r.WindowStart]
		if !ok {
			w = &weighted{}
			days[r.WindowStart] = w
		}
		n := float64(r.SampleCount)
		w.count += r.SampleCount
		w.current += r.AvgCurrent * n
		w.voltage += r.AvgVoltage * n
		w.power += r.AvgPower * n
	}

	buckets := make([]Bucket, 0, len(days))
	for day, w := range days {
		n := float64(w.count)
		buckets = append(buckets, Bucket{
			CreatedAt:   day,
			SampleCount: w.count,
			Current:     w.current / n,
			Voltage:     w.voltage / n,
			Power:       w.power / n,
		})
	}
	Sort(buckets)
	return buckets
}

// ToRollup turns a whole-day bucket into the record stored for deviceID
func ToRollup(deviceID uint, b Bucket) models.RollupRecord {
	return models.RollupRecord{
		DeviceID:    deviceID,
		WindowStart: b.CreatedAt,
		SampleCount: b.SampleCount,
		AvgCurrent:  b.Current,
		AvgVoltage:  b.Voltage,
		AvgPower:    b.Power,
	}
}

// floorDiv rounds towards negative infinity
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
