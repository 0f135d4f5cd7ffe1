package infrastructure

import (
	"context"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// RuntimeStats is a snapshot of the Go runtime, reported by the health
// endpoint
type RuntimeStats struct {
	Goroutines     int     `json:"goroutines"`
	HeapAllocBytes uint64  `json:"heap_alloc_bytes"`
	SysBytes       uint64  `json:"sys_bytes"`
	NumGC          uint32  `json:"num_gc"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// CollectRuntimeStats reads the current runtime statistics
func CollectRuntimeStats(started time.Time) RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		Goroutines:     runtime.NumGoroutine(),
		HeapAllocBytes: mem.HeapAlloc,
		SysBytes:       mem.Sys,
		NumGC:          mem.NumGC,
		UptimeSeconds:  time.Since(started).Seconds(),
	}
}

// RegisterRuntimeMetrics exposes runtime statistics as observable gauges,
// sampled on every collection of meter's reader
func RegisterRuntimeMetrics(meter metric.Meter, started time.Time) error {
	goroutines, err := meter.Int64ObservableGauge("staats_runtime_goroutines",
		metric.WithDescription("Number of active goroutines"))
	if err != nil {
		return err
	}
	heap, err := meter.Int64ObservableGauge("staats_runtime_heap_alloc",
		metric.WithDescription("Heap bytes allocated"), metric.WithUnit("By"))
	if err != nil {
		return err
	}
	uptime, err := meter.Float64ObservableGauge("staats_runtime_uptime",
		metric.WithDescription("Process uptime"), metric.WithUnit("s"))
	if err != nil {
		return err
	}

	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := CollectRuntimeStats(started)
		o.ObserveInt64(goroutines, int64(stats.Goroutines))
		o.ObserveInt64(heap, int64(stats.HeapAllocBytes))
		o.ObserveFloat64(uptime, stats.UptimeSeconds)
		return nil
	}, goroutines, heap, uptime)
	return err
}
