package traffic

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"time"
)

// TrendOrigin is the synthetic start time of the cumulative-duration clock.
var TrendOrigin = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Count is one row of a value-count table.
type Count struct {
	Key   string `json:"key" yaml:"key"`
	Count int    `json:"count" yaml:"count"`
}

// TrendPoint is the number of flows that started within one hour.
type TrendPoint struct {
	Hour  time.Time `json:"hour" yaml:"hour"`
	Count int       `json:"attack_count" yaml:"attack_count"`
}

// Summary holds descriptive statistics of one numeric column.
type Summary struct {
	Count int     `json:"count" yaml:"count"`
	Mean  float64 `json:"mean" yaml:"mean"`
	Std   float64 `json:"std" yaml:"std"`
	Min   float64 `json:"min" yaml:"min"`
	P25   float64 `json:"p25" yaml:"p25"`
	P50   float64 `json:"p50" yaml:"p50"`
	P75   float64 `json:"p75" yaml:"p75"`
	Max   float64 `json:"max" yaml:"max"`
}

// Distribution compares source and destination byte counts.
type Distribution struct {
	SourceBytes      Summary `json:"source_bytes" yaml:"source_bytes"`
	DestinationBytes Summary `json:"destination_bytes" yaml:"destination_bytes"`
}

// AttackCategories counts flows per attack category, most frequent first.
func (d *Dataset) AttackCategories() []Count {
	if !d.HasColumn(colAttackCat) {
		return nil
	}
	return d.valueCounts(func(f Flow) (string, bool) { return f.AttackCategory, true })
}

// Protocols counts flows per transport protocol.
func (d *Dataset) Protocols() []Count {
	if !d.HasColumn(colProto) {
		return nil
	}
	return d.valueCounts(func(f Flow) (string, bool) { return f.Protocol, f.Protocol != "" })
}

// TopPorts returns the n most targeted destination ports.
func (d *Dataset) TopPorts(n int) []Count {
	if !d.HasColumn(colDstPort) {
		return nil
	}
	return head(d.valueCounts(func(f Flow) (string, bool) {
		if math.IsNaN(f.DstPort) {
			return "", false
		}
		return strconv.FormatFloat(f.DstPort, 'f', -1, 64), true
	}), n)
}

// TopServices returns the n most targeted services.
func (d *Dataset) TopServices(n int) []Count {
	if !d.HasColumn(colService) {
		return nil
	}
	return head(d.valueCounts(func(f Flow) (string, bool) { return f.Service, true }), n)
}

// HourlyTrends lays flows on a clock that starts at TrendOrigin and advances
// by each flow's duration, then counts flows per hour. Hours without flows
// are included with a zero count.
func (d *Dataset) HourlyTrends() []TrendPoint {
	if !d.HasColumn(colDuration) || len(d.Flows) == 0 {
		return nil
	}
	var elapsed float64
	buckets := make(map[int64]int)
	first, last := int64(math.MaxInt64), int64(math.MinInt64)
	for _, f := range d.Flows {
		if !math.IsNaN(f.Duration) {
			elapsed += f.Duration
		}
		h := int64(math.Floor(elapsed / 3600))
		buckets[h]++
		first, last = min(first, h), max(last, h)
	}

	points := make([]TrendPoint, 0, last-first+1)
	for h := first; h <= last; h++ {
		points = append(points, TrendPoint{
			Hour:  TrendOrigin.Add(time.Duration(h) * time.Hour),
			Count: buckets[h],
		})
	}
	return points
}

// TrafficDistribution describes source and destination bytes. It returns nil
// when either column is absent.
func (d *Dataset) TrafficDistribution() *Distribution {
	if !d.HasColumn(colSrcBytes) || !d.HasColumn(colDstBytes) {
		return nil
	}
	src := make([]float64, 0, len(d.Flows))
	dst := make([]float64, 0, len(d.Flows))
	for _, f := range d.Flows {
		src = append(src, f.SrcBytes)
		dst = append(dst, f.DstBytes)
	}
	return &Distribution{SourceBytes: Describe(src), DestinationBytes: Describe(dst)}
}

// Describe summarizes values, ignoring NaNs. The standard deviation is the
// sample deviation and is zero for fewer than two values; quantiles use
// linear interpolation.
func Describe(values []float64) Summary {
	vals := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Summary{}
	}
	slices.Sort(vals)

	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))

	var std float64
	if len(vals) > 1 {
		var sq float64
		for _, v := range vals {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(len(vals)-1))
	}

	return Summary{
		Count: len(vals),
		Mean:  mean,
		Std:   std,
		Min:   vals[0],
		P25:   quantile(vals, 0.25),
		P50:   quantile(vals, 0.5),
		P75:   quantile(vals, 0.75),
		Max:   vals[len(vals)-1],
	}
}

// quantile expects sorted input.
func quantile(sorted []float64, q float64) float64 {
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

func (d *Dataset) valueCounts(key func(Flow) (string, bool)) []Count {
	counts := make(map[string]int)
	for _, f := range d.Flows {
		if k, ok := key(f); ok {
			counts[k]++
		}
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func head[T any](s []T, n int) []T {
	if n >= 0 && len(s) > n {
		return s[:n]
	}
	return s
}
