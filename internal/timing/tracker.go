package timing

import (
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"
)

// DefaultWindow is the number of samples kept per operation.
const DefaultWindow = 512

type Span struct {
	Operation string
	StartTime time.Time
}

type Summary struct {
	Count int
	Mean  time.Duration
	P50   time.Duration
	P95   time.Duration
	Max   time.Duration
}

// Tracker keeps a sliding window of durations per operation.
type Tracker struct {
	timings map[string][]time.Duration
	window  int
	mu      sync.RWMutex
	enabled bool
}

func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		timings: make(map[string][]time.Duration),
		window:  window,
		enabled: true,
	}
}

func (tt *Tracker) StartTiming(operation string) Span {
	return Span{Operation: operation, StartTime: time.Now()}
}

// EndTiming records the time elapsed since span started and returns it.
func (tt *Tracker) EndTiming(span Span) time.Duration {
	duration := time.Since(span.StartTime)
	tt.Record(span.Operation, duration)
	return duration
}

func (tt *Tracker) Record(operation string, duration time.Duration) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if !tt.enabled {
		return
	}

	samples := append(tt.timings[operation], duration)
	if len(samples) > tt.window {
		samples = samples[len(samples)-tt.window:]
	}
	tt.timings[operation] = samples
}

func (tt *Tracker) GetTimings(operation string) []time.Duration {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	timings := tt.timings[operation]
	if timings == nil {
		return nil
	}

	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

func (tt *Tracker) Operations() []string {
	tt.mu.RLock()
	defer tt.mu.RUnlock()

	ops := make([]string, 0, len(tt.timings))
	for op := range tt.timings {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

func (tt *Tracker) GetAverageTime(operation string) time.Duration {
	return tt.Summarize(operation).Mean
}

// Summarize computes statistics over the current window of operation.
func (tt *Tracker) Summarize(operation string) Summary {
	timings := tt.GetTimings(operation)
	if len(timings) == 0 {
		return Summary{}
	}

	values := make([]float64, len(timings))
	for i, d := range timings {
		values[i] = float64(d)
	}
	sort.Float64s(values)

	return Summary{
		Count: len(values),
		Mean:  time.Duration(stat.Mean(values, nil)),
		P50:   time.Duration(stat.Quantile(0.5, stat.Empirical, values, nil)),
		P95:   time.Duration(stat.Quantile(0.95, stat.Empirical, values, nil)),
		Max:   time.Duration(values[len(values)-1]),
	}
}

func (tt *Tracker) SetEnabled(enabled bool) {
	tt.mu.Lock()
	defer tt.mu.Unlock()
	tt.enabled = enabled
}

func (tt *Tracker) Reset(operation string) {
	tt.mu.Lock()
	defer tt.mu.Unlock()

	if operation == "" {
		tt.timings = make(map[string][]time.Duration)
	} else {
		delete(tt.timings, operation)
	}
}
