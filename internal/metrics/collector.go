// Package metrics aggregates the results a run consumes.
package metrics

import (
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// Summary is a point-in-time view of a collector
type Summary struct {
	Count     int64                      `json:"count"`
	Min       float64                    `json:"min"`
	Max       float64                    `json:"max"`
	Sum       float64                    `json:"sum"`
	Mean      float64                    `json:"mean"`
	StdDev    float64                    `json:"stddev"`
	P50       float64                    `json:"p50"`
	P95       float64                    `json:"p95"`
	P99       float64                    `json:"p99"`
	Histogram map[models.TrialResult]int `json:"histogram"`
	StartTime time.Time                  `json:"start_time"`
	EndTime   time.Time                  `json:"end_time,omitempty"`
	Duration  time.Duration              `json:"duration"`
}

// Collector records consumed trial results. It is safe for concurrent use
// and satisfies harness.Observer.
type Collector struct {
	mu sync.RWMutex

	startTime time.Time
	endTime   time.Time

	values    []float64
	histogram map[models.TrialResult]int
}

// NewCollector creates a new result collector
func NewCollector() *Collector {
	return &Collector{
		startTime: time.Now(),
		histogram: make(map[models.TrialResult]int),
	}
}

// Start marks the start of collection
func (c *Collector) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()
}

// Stop marks the end of collection
func (c *Collector) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endTime = time.Now()
}

// Observe records one consumed result
func (c *Collector) Observe(r models.TrialResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, float64(r))
	c.histogram[r]++
}

// Count returns how many results were observed
func (c *Collector) Count() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return int64(len(c.values))
}

// Values returns the observed results in observation order
func (c *Collector) Values() []models.TrialResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.TrialResult, len(c.values))
	for i, v := range c.values {
		out[i] = models.TrialResult(v)
	}
	return out
}

// Summary computes statistics over everything observed so far. The zero
// Summary (with its time window) is returned before the first result.
func (c *Collector) Summary() *Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()

	end := c.endTime
	if end.IsZero() {
		end = time.Now()
	}
	s := &Summary{
		Histogram: maps.Clone(c.histogram),
		StartTime: c.startTime,
		EndTime:   c.endTime,
		Duration:  end.Sub(c.startTime),
	}
	if len(c.values) == 0 {
		return s
	}

	sorted := slices.Clone(c.values)
	slices.Sort(sorted)

	s.Count = int64(len(sorted))
	s.Min = sorted[0]
	s.Max = sorted[len(sorted)-1]
	s.Sum = floats.Sum(sorted)
	s.Mean, s.StdDev = stat.MeanStdDev(sorted, nil)
	if math.IsNaN(s.StdDev) {
		s.StdDev = 0
	}
	s.P50 = percentile(sorted, 0.50)
	s.P95 = percentile(sorted, 0.95)
	s.P99 = percentile(sorted, 0.99)
	return s
}

// percentile interpolates linearly between the closest ranks of a sorted slice
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	return stat.Quantile(p, stat.LinInterp, sorted, nil)
}
