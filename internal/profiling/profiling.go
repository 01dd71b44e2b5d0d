package profiling

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Lightweight per-batch CPU profiler for pipeline-stage insights.

var (
	mu          sync.Mutex
	batchTotals = make(map[string]time.Duration)
)

// Track returns a stop function that records the elapsed time under the given name.
// Usage: defer profiling.Track("dispatch.ApplyScene")()
func Track(name string) func() {
	start := time.Now()
	return func() {
		d := time.Since(start)
		mu.Lock()
		batchTotals[name] += d
		mu.Unlock()
	}
}

// ResetBatch clears the current totals. Call at the start of each scene batch.
func ResetBatch() {
	mu.Lock()
	clear(batchTotals)
	mu.Unlock()
}

// Snapshot returns a copy of the current per-batch totals.
func Snapshot() map[string]time.Duration {
	mu.Lock()
	defer mu.Unlock()
	out := make(map[string]time.Duration, len(batchTotals))
	for k, v := range batchTotals {
		out[k] = v
	}
	return out
}

// TopN formats the N largest stage durations from the current batch.
// Example: "dispatch.apply:4.2ms, world.LoadScene:2.1ms"
func TopN(n int) string {
	ss := Snapshot()
	type pair struct {
		name string
		dur  time.Duration
	}
	list := make([]pair, 0, len(ss))
	for k, v := range ss {
		list = append(list, pair{name: k, dur: v})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].dur > list[j].dur })
	if n > len(list) {
		n = len(list)
	}
	parts := make([]string, 0, n)
	for i := 0; i < n; i++ {
		ms := float64(list[i].dur.Microseconds()) / 1000.0
		parts = append(parts, fmt.Sprintf("%s:%.1fms", list[i].name, ms))
	}
	return strings.Join(parts, ", ")
}
