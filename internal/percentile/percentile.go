// Package percentile records durations and reports their distribution.
package percentile

import (
	"fmt"
	"slices"
	"time"
)

const defaultSize = 100 * 10000

// Recorder keeps the latest samples in a ring.
type Recorder struct {
	data   []time.Duration
	sorted []time.Duration
	pos    int
	size   int
}

// New returns a Recorder keeping at most size samples, or a million when
// size is not positive.
func New(size int) *Recorder {
	if size <= 0 {
		size = defaultSize
	}
	return &Recorder{data: make([]time.Duration, 0, min(size, 1024)), size: size}
}

// Add
func (r *Recorder) Add(d time.Duration) {
	r.sorted = r.sorted[:0]
	if len(r.data) < r.size {
		r.data = append(r.data, d)
		return
	}
	r.data[r.pos] = d
	r.pos = (r.pos + 1) % r.size
}

// Time records the duration of f.
func (r *Recorder) Time(f func()) {
	start := time.Now()
	f()
	r.Add(time.Since(start))
}

func (r *Recorder) Len() int {
	return len(r.data)
}

func (r *Recorder) sort() []time.Duration {
	if len(r.sorted) != len(r.data) {
		r.sorted = append(r.sorted[:0], r.data...)
		slices.Sort(r.sorted)
	}
	return r.sorted
}

// Quantile returns the sample below which q percent of the samples fall.
func (r *Recorder) Quantile(q float64) time.Duration {
	s := r.sort()
	if len(s) == 0 {
		return 0
	}
	i := int(q / 100 * float64(len(s)))
	return s[min(max(i, 0), len(s)-1)]
}

// Min
func (r *Recorder) Min() time.Duration {
	if s := r.sort(); len(s) > 0 {
		return s[0]
	}
	return 0
}

// Max
func (r *Recorder) Max() time.Duration {
	if s := r.sort(); len(s) > 0 {
		return s[len(s)-1]
	}
	return 0
}

// Mean
func (r *Recorder) Mean() time.Duration {
	if len(r.data) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range r.data {
		sum += d
	}
	return sum / time.Duration(len(r.data))
}

// Summary is the distribution in a form ready for reports.
type Summary struct {
	Count int           `json:"count"`
	Min   time.Duration `json:"min"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
	Max   time.Duration `json:"max"`
}

func (r *Recorder) Summary() Summary {
	return Summary{
		Count: r.Len(),
		Min:   r.Min(),
		Mean:  r.Mean(),
		P50:   r.Quantile(50),
		P90:   r.Quantile(90),
		P99:   r.Quantile(99),
		Max:   r.Max(),
	}
}

func (r *Recorder) String() string {
	s := r.Summary()
	return fmt.Sprintf("count: %d min: %v mean: %v p50: %v p90: %v p99: %v max: %v",
		s.Count, s.Min, s.Mean, s.P50, s.P90, s.P99, s.Max)
}
