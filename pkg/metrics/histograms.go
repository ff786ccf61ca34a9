package metrics

import (
	"sync"
	"time"
)

// latencyBounds are cumulative upper bounds in seconds, chosen so the
// request percentiles the gateway reports land on distinct buckets.
var latencyBounds = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
}

// HistogramBucket stores the cumulative count at one latency bound.
type HistogramBucket struct {
	Le    float64
	Count int64
}

// Histogram tracks a latency distribution over fixed buckets.
type Histogram struct {
	mu      sync.Mutex
	name    string
	buckets []HistogramBucket
	sum     float64
	count   int64
}

func NewHistogram(name string) *Histogram {
	h := &Histogram{
		name:    name,
		buckets: make([]HistogramBucket, len(latencyBounds)),
	}
	for i, le := range latencyBounds {
		h.buckets[i].Le = le
	}
	return h
}

// Observe records one request duration.
func (h *Histogram) Observe(d time.Duration) {
	sec := d.Seconds()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += sec
	h.count++
	for i := range h.buckets {
		if sec <= h.buckets[i].Le {
			h.buckets[i].Count++
		}
	}
}

// Percentile estimates the latency bound under which the given share of
// observations fell. p is in [0, 1].
func (h *Histogram) Percentile(p float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return estimate(h.buckets, h.count, p)
}

// estimate walks the cumulative buckets for the first bound covering the
// requested share.
func estimate(buckets []HistogramBucket, count int64, p float64) float64 {
	if count == 0 || len(buckets) == 0 {
		return 0
	}
	target := int64(p * float64(count))
	for _, b := range buckets {
		if b.Count >= target {
			return b.Le
		}
	}
	return buckets[len(buckets)-1].Le
}

// HistogramSnapshot is a point-in-time copy used for exposition.
type HistogramSnapshot struct {
	Name    string
	Buckets []HistogramBucket
	Sum     float64
	Count   int64
	P50     float64
	P95     float64
	P99     float64
}

func (h *Histogram) Snapshot() HistogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	buckets := append([]HistogramBucket(nil), h.buckets...)
	return HistogramSnapshot{
		Name:    h.name,
		Buckets: buckets,
		Sum:     h.sum,
		Count:   h.count,
		P50:     estimate(buckets, h.count, 0.50),
		P95:     estimate(buckets, h.count, 0.95),
		P99:     estimate(buckets, h.count, 0.99),
	}
}

// HistogramRegistry hands out one histogram per endpoint label.
type HistogramRegistry struct {
	mu         sync.RWMutex
	histograms map[string]*Histogram
}

func NewHistogramRegistry() *HistogramRegistry {
	return &HistogramRegistry{histograms: make(map[string]*Histogram)}
}

func (r *HistogramRegistry) Get(name string) *Histogram {
	r.mu.RLock()
	h, ok := r.histograms[name]
	r.mu.RUnlock()
	if ok {
		return h
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok = r.histograms[name]; ok {
		return h
	}
	h = NewHistogram(name)
	r.histograms[name] = h
	return h
}

func (r *HistogramRegistry) ObserveDuration(name string, d time.Duration) {
	r.Get(name).Observe(d)
}

// Snapshots lists every histogram ordered by name.
func (r *HistogramRegistry) Snapshots() []HistogramSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]HistogramSnapshot, 0, len(r.histograms))
	for _, name := range SortedKeys(r.histograms) {
		out = append(out, r.histograms[name].Snapshot())
	}
	return out
}
