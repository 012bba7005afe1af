// Package source implements the Source Processor (§4.4): the per-source
// state machine that ingests frames under a stride policy, pulls them off
// a bounded queue with a bounded amount of parallelism, and runs the
// codec → gateway → publish pipeline on each one.
//
// Grounded on original_source/client-triton/client/src/inference/source.rs
// (SourceProcessor::on_frame/run_worker_loop/process_frame) for the state
// machine shape, and on the teacher's goroutine-per-unit-of-work +
// buffered-channel-as-semaphore idiom (see cvpipe/pipeline.go's worker
// pool) for the permit pool.
package source

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/n0remac/videoinfer/codec"
	"github.com/n0remac/videoinfer/config"
	"github.com/n0remac/videoinfer/debugsnap"
	"github.com/n0remac/videoinfer/gateway"
	"github.com/n0remac/videoinfer/publish"
	"github.com/n0remac/videoinfer/queue"
)

// MaxParallelFrameProcessing is the default permit pool size (§4.4).
const MaxParallelFrameProcessing = 5

// QueueCapacity is the default bounded-queue capacity each processor's
// queue.Queue is constructed with.
const QueueCapacity = 16

type queuedFrame struct {
	frame   codec.RawFrame
	arrival time.Time
}

// Processor is the per-source state machine of §4.4.
type Processor struct {
	sourceID string
	cfg      config.SourceConfig
	model    gateway.ModelSpec
	client   *gateway.Client
	pub      *publish.Publisher
	log      *logrus.Entry

	q       *queue.Queue[queuedFrame]
	stats   *Stats
	permits chan struct{}

	// snap is optional: non-nil only when inference_config.debug_snapshot_dir
	// is configured (§4.6 supplemental feature). Only ever consulted on the
	// detection path, since it draws detection boxes.
	snap *debugsnap.Snapshotter
}

// New constructs a Processor for one source. client and pub must outlive
// the processor. snap may be nil, in which case no debug snapshots are
// written.
func New(sourceID string, cfg config.SourceConfig, model gateway.ModelSpec, client *gateway.Client, pub *publish.Publisher, snap *debugsnap.Snapshotter, log *logrus.Entry) *Processor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	p := &Processor{
		sourceID: sourceID,
		cfg:      cfg,
		model:    model,
		client:   client,
		pub:      pub,
		log:      log.WithField("source_id", sourceID),
		stats:    &Stats{},
		permits:  make(chan struct{}, MaxParallelFrameProcessing),
		snap:     snap,
	}
	p.q = queue.New[queuedFrame](QueueCapacity, func(dropped queuedFrame) {
		p.stats.recordFailure()
		p.log.Warn("queue overflow, dropped oldest frame")
	})
	return p
}

// Run starts the worker loop and the stats reporter; it blocks until ctx is
// cancelled.
func (p *Processor) Run(ctx context.Context) {
	go runStatsReporter(ctx, p.sourceID, p.stats, StatsReporterInterval, p.log)
	p.runWorkerLoop(ctx)
}

// OnFrame is the ingestion contract of §4.4.1. It is synchronous and safe
// to call from the decoder callback thread; data is copied before this
// method returns, honoring the frame-ownership contract of §9.
func (p *Processor) OnFrame(data []byte, height, width int, pts uint64) {
	framesTotal := p.stats.recordIngested()
	if p.cfg.InferenceStride < 1 {
		p.cfg.InferenceStride = 1
	}
	if framesTotal%int64(p.cfg.InferenceStride) != 0 {
		return
	}

	owned := make([]byte, len(data))
	copy(owned, data)

	qf := queuedFrame{
		frame:   codec.RawFrame{Data: owned, Height: height, Width: width, PTS: pts},
		arrival: time.Now(),
	}

	if err := p.q.TryPush(qf); err != nil {
		p.stats.recordFailure()
		p.log.WithError(err).Warn("on_frame: queue push failed")
	}
}

// runWorkerLoop implements §4.4.2: permit acquire (waiting until a permit is
// free or ctx is cancelled), blocking pull from the queue, detached
// processing goroutine holding the permit.
func (p *Processor) runWorkerLoop(ctx context.Context) {
	for {
		select {
		case p.permits <- struct{}{}:
		case <-ctx.Done():
			return
		}

		qf, err := p.q.Recv(ctx)
		if err != nil {
			<-p.permits
			return
		}

		go func(qf queuedFrame) {
			defer func() { <-p.permits }()
			p.processFrame(ctx, qf)
		}(qf)
	}
}

// processFrame implements §4.4.3's model-kind dispatch and stage timing.
func (p *Processor) processFrame(ctx context.Context, qf queuedFrame) {
	start := time.Now()
	queueUS := start.Sub(qf.arrival).Microseconds()

	var err error
	var preUS, infUS, postUS, publishUS int64

	switch p.model.Kind {
	case gateway.Detection:
		preUS, infUS, postUS, publishUS, err = p.processDetection(ctx, qf.frame)
	case gateway.Embedding:
		preUS, infUS, postUS, publishUS, err = p.processEmbedding(ctx, qf.frame)
	default:
		err = fmt.Errorf("source: unknown model kind %v", p.model.Kind)
	}

	if err != nil {
		p.stats.recordFailure()
		p.log.WithError(err).Warn("frame processing failed")
		return
	}

	totalUS := queueUS + time.Since(start).Microseconds()
	p.stats.recordSuccess(queueUS, preUS, infUS, postUS, publishUS, totalUS)
}

func (p *Processor) processDetection(ctx context.Context, frame codec.RawFrame) (preUS, infUS, postUS, publishUS int64, err error) {
	t0 := time.Now()
	tensor, err := codec.PreprocessYOLO(frame, codec.DefaultYOLOTargetSize, p.model.Precision)
	preUS = time.Since(t0).Microseconds()
	if err != nil {
		return preUS, 0, 0, 0, fmt.Errorf("preprocess: %w", err)
	}

	t1 := time.Now()
	raw, err := p.client.InferSingle(ctx, tensor)
	infUS = time.Since(t1).Microseconds()
	if err != nil {
		return preUS, infUS, 0, 0, fmt.Errorf("infer: %w", err)
	}

	var outputShape [2]int64
	if len(p.model.OutputShape) >= 2 {
		outputShape[0] = p.model.OutputShape[0]
		outputShape[1] = p.model.OutputShape[1]
	}

	t2 := time.Now()
	boxes, err := codec.PostprocessYOLO(raw, frame, outputShape, p.model.Precision, p.cfg.ConfidenceThreshold, p.cfg.NMSIoUThreshold)
	postUS = time.Since(t2).Microseconds()
	if err != nil {
		return preUS, infUS, postUS, 0, fmt.Errorf("postprocess: %w", err)
	}

	if p.snap != nil {
		if snapErr := p.snap.Capture(p.sourceID, frame, boxes); snapErr != nil {
			p.log.WithError(snapErr).Warn("debug snapshot failed")
		}
	}

	if len(boxes) == 0 {
		return preUS, infUS, postUS, 0, nil
	}

	t3 := time.Now()
	p.pub.PublishDetections(p.sourceID, frame, boxes)
	publishUS = time.Since(t3).Microseconds()

	return preUS, infUS, postUS, publishUS, nil
}

// processEmbedding implements §4.4.3's embedding path. When the model is
// configured with BatchMax > 1, the frame is split into BatchMax
// column-wise crops and the crops are submitted together via
// gateway.InferBatch (§4.4.3: "a batched call... optionally batching the
// frame together with N crop tensors"); the resulting per-crop vectors are
// averaged into a single embedding before publishing. With BatchMax <= 1
// the whole frame is embedded directly via InferSingle.
func (p *Processor) processEmbedding(ctx context.Context, frame codec.RawFrame) (preUS, infUS, postUS, publishUS int64, err error) {
	if p.model.BatchMax > 1 {
		return p.processEmbeddingBatched(ctx, frame)
	}

	t0 := time.Now()
	tensor, err := codec.PreprocessEmbedding(frame, codec.DefaultEmbeddingCrop, codec.DefaultEmbeddingCrop, codec.DefaultEmbeddingShortestEdge, p.model.Precision)
	preUS = time.Since(t0).Microseconds()
	if err != nil {
		return preUS, 0, 0, 0, fmt.Errorf("preprocess: %w", err)
	}

	t1 := time.Now()
	raw, err := p.client.InferSingle(ctx, tensor)
	infUS = time.Since(t1).Microseconds()
	if err != nil {
		return preUS, infUS, 0, 0, fmt.Errorf("infer: %w", err)
	}

	t2 := time.Now()
	vec, err := codec.PostprocessEmbedding(raw, int(p.model.OutputElemCount()), p.model.Precision)
	postUS = time.Since(t2).Microseconds()
	if err != nil {
		return preUS, infUS, postUS, 0, fmt.Errorf("postprocess: %w", err)
	}

	t3 := time.Now()
	p.pub.PublishEmbedding(p.sourceID, frame, vec)
	publishUS = time.Since(t3).Microseconds()

	return preUS, infUS, postUS, publishUS, nil
}

func (p *Processor) processEmbeddingBatched(ctx context.Context, frame codec.RawFrame) (preUS, infUS, postUS, publishUS int64, err error) {
	n := p.model.BatchMax
	colWidth := frame.Width / n

	t0 := time.Now()
	tensors := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		x1 := float32(i * colWidth)
		x2 := float32(frame.Width)
		if i < n-1 {
			x2 = float32((i + 1) * colWidth)
		}
		crop, cropErr := codec.CropToBox(frame, codec.DetectionBox{X1: x1, Y1: 0, X2: x2, Y2: float32(frame.Height)})
		if cropErr != nil {
			err = fmt.Errorf("crop %d: %w", i, cropErr)
			break
		}
		tensor, preErr := codec.PreprocessEmbedding(crop, codec.DefaultEmbeddingCrop, codec.DefaultEmbeddingCrop, codec.DefaultEmbeddingShortestEdge, p.model.Precision)
		if preErr != nil {
			err = fmt.Errorf("preprocess crop %d: %w", i, preErr)
			break
		}
		tensors = append(tensors, tensor)
	}
	preUS = time.Since(t0).Microseconds()
	if err != nil {
		return preUS, 0, 0, 0, err
	}

	t1 := time.Now()
	rawOutputs, err := p.client.InferBatch(ctx, tensors)
	infUS = time.Since(t1).Microseconds()
	if err != nil {
		return preUS, infUS, 0, 0, fmt.Errorf("infer: %w", err)
	}

	t2 := time.Now()
	elemCount := int(p.model.OutputElemCount())
	avgVec := make([]float32, elemCount)
	for _, raw := range rawOutputs {
		vec, postErr := codec.PostprocessEmbedding(raw, elemCount, p.model.Precision)
		if postErr != nil {
			err = fmt.Errorf("postprocess: %w", postErr)
			break
		}
		for i, v := range vec.Data {
			avgVec[i] += v
		}
	}
	postUS = time.Since(t2).Microseconds()
	if err != nil {
		return preUS, infUS, postUS, 0, err
	}
	for i := range avgVec {
		avgVec[i] /= float32(len(rawOutputs))
	}

	t3 := time.Now()
	p.pub.PublishEmbedding(p.sourceID, frame, codec.EmbeddingVector{Data: avgVec})
	publishUS = time.Since(t3).Microseconds()

	return preUS, infUS, postUS, publishUS, nil
}

// Stats exposes the processor's live counters (read-only diagnostics).
func (p *Processor) Stats() *Stats { return p.stats }
