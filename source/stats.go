package source

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Stats holds the atomic per-source counters of §4.4 SourceStats. All
// fields are accessed via atomic ops so they can be mutated concurrently
// by every in-flight frame's worker goroutine.
type Stats struct {
	FramesTotal    int64
	FramesExpected int64
	FramesSuccess  int64
	FramesFailed   int64

	QueueUS   int64
	PreUS     int64
	InfUS     int64
	PostUS    int64
	PublishUS int64
	TotalUS   int64
}

// recordIngested increments FramesTotal and returns the post-increment
// value, so callers can apply the stride policy against the same counter
// the stats reporter snapshots (§4.4.1, §4.4.4).
func (s *Stats) recordIngested() int64 {
	return atomic.AddInt64(&s.FramesTotal, 1)
}

func (s *Stats) recordSuccess(queueUS, preUS, infUS, postUS, publishUS, totalUS int64) {
	atomic.AddInt64(&s.FramesSuccess, 1)
	atomic.AddInt64(&s.QueueUS, queueUS)
	atomic.AddInt64(&s.PreUS, preUS)
	atomic.AddInt64(&s.InfUS, infUS)
	atomic.AddInt64(&s.PostUS, postUS)
	atomic.AddInt64(&s.PublishUS, publishUS)
	atomic.AddInt64(&s.TotalUS, totalUS)
}

func (s *Stats) recordFailure() {
	atomic.AddInt64(&s.FramesFailed, 1)
}

// snapshot is an instantaneous copy of every counter, taken by the stats
// reporter immediately before it resets them to zero (§4.4.4).
type snapshot struct {
	framesTotal, framesSuccess, framesFailed int64
	queueUS, preUS, infUS, postUS, publishUS, totalUS int64
}

func (s *Stats) snapshotAndReset() snapshot {
	return snapshot{
		framesTotal:   atomic.SwapInt64(&s.FramesTotal, 0),
		framesSuccess: atomic.SwapInt64(&s.FramesSuccess, 0),
		framesFailed:  atomic.SwapInt64(&s.FramesFailed, 0),
		queueUS:       atomic.SwapInt64(&s.QueueUS, 0),
		preUS:         atomic.SwapInt64(&s.PreUS, 0),
		infUS:         atomic.SwapInt64(&s.InfUS, 0),
		postUS:        atomic.SwapInt64(&s.PostUS, 0),
		publishUS:     atomic.SwapInt64(&s.PublishUS, 0),
		totalUS:       atomic.SwapInt64(&s.TotalUS, 0),
	}
}

func avg(sum, count int64) int64 {
	if count < 1 {
		count = 1
	}
	return sum / count
}

// StatsReporterInterval is SOURCE_STATS_INTERVAL (§4.4.4).
const StatsReporterInterval = time.Second

// runStatsReporter ticks every interval, snapshots+resets the counters, and
// emits one structured logrus record per tick (§4.4.4). It returns when ctx
// is cancelled.
func runStatsReporter(ctx context.Context, sourceID string, stats *Stats, interval time.Duration, log *logrus.Entry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := stats.snapshotAndReset()
			log.WithFields(logrus.Fields{
				"source_id":       sourceID,
				"frames_total":    snap.framesTotal,
				"frames_success":  snap.framesSuccess,
				"frames_failed":   snap.framesFailed,
				"avg_queue_us":    avg(snap.queueUS, snap.framesSuccess),
				"avg_pre_us":      avg(snap.preUS, snap.framesSuccess),
				"avg_inf_us":      avg(snap.infUS, snap.framesSuccess),
				"avg_post_us":     avg(snap.postUS, snap.framesSuccess),
				"avg_publish_us":  avg(snap.publishUS, snap.framesSuccess),
				"avg_total_us":    avg(snap.totalUS, snap.framesSuccess),
			}).Info("source stats")
		}
	}
}
