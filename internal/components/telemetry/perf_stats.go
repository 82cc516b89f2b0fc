package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.opentelemetry.io/otel"
)

const report_perf_stats = "perf-stats"

var meter = otel.Meter("catalogscraper/perf_stats")
var cpuGauge, _ = meter.Float64Gauge("process_cpu_percent")
var rssGauge, _ = meter.Int64Gauge("process_rss_mb")
var goroutineGauge, _ = meter.Int64Gauge("goroutine_count")

// InstrumentPerfStats samples the resource usage of this process every interval (30 seconds when zero)
// until ctx is done.
func InstrumentPerfStats(ctx context.Context, tel API, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		tel.ReportWarning(report_perf_stats, err)
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				samplePerfStats(ctx, proc, tel)
			case <-ctx.Done():
				return
			}
		}
	}()
}

func samplePerfStats(ctx context.Context, proc *process.Process, tel API) {
	cpuPercent, err := proc.CPUPercentWithContext(ctx)
	if err != nil {
		tel.ReportWarning(report_perf_stats, fmt.Errorf("cpu: %w", err))
	} else {
		cpuGauge.Record(ctx, cpuPercent)
	}

	var rss int64
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		tel.ReportWarning(report_perf_stats, fmt.Errorf("memory: %w", err))
	} else {
		rss = int64(mem.RSS / 1_000_000)
		rssGauge.Record(ctx, rss)
	}

	goroutines := int64(runtime.NumGoroutine())
	goroutineGauge.Record(ctx, goroutines)
	tel.ReportDebug("perf stats", cpuPercent, rss, goroutines)
}
