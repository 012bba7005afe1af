// Package telemetry models the GPU-telemetry collaborator that §4.2's
// gateway client owns the lifecycle of but does not itself implement: the
// actual NVML probing is an external collaborator (spec.md §1 lists "GPU
// telemetry reporting" as explicitly out of scope). The core's
// responsibility is just to run a Reporter on a fixed cadence and cancel it
// on Close.
package telemetry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reporter is queried once per tick by the background telemetry task owned
// by a gateway client.
type Reporter interface {
	// Report returns GPU memory-used bytes, utilization percent [0,100],
	// and an error if the probe failed.
	Report(ctx context.Context) (memUsedBytes uint64, utilPercent float32, err error)
}

// LoggingReporter is the default Reporter: it emits a structured log line
// with placeholder zero values. A real NVML-backed Reporter can be swapped
// in by callers that wire this package to an actual NVML binding.
type LoggingReporter struct {
	GPUName string
}

func (LoggingReporter) Report(ctx context.Context) (uint64, float32, error) {
	return 0, 0, nil
}

// Run ticks Reporter every interval, logging the result, until ctx is
// cancelled. Intended to be launched as the "background telemetry task"
// referenced by §3's GatewayClient data model entry and cancelled via the
// same context when the client is dropped (§5 Cancellation).
func Run(ctx context.Context, log *logrus.Entry, reporter Reporter, interval time.Duration, modelName string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			memUsed, util, err := reporter.Report(ctx)
			if err != nil {
				log.WithError(err).WithField("model", modelName).Warn("gpu telemetry probe failed")
				continue
			}
			log.WithFields(logrus.Fields{
				"model":          modelName,
				"gpu_mem_used":   memUsed,
				"gpu_util_pct":   util,
			}).Debug("gpu telemetry")
		}
	}
}
