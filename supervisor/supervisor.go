// Package supervisor wires the Pipeline Supervisor (§4.7 of SPEC_FULL.md):
// load configuration, construct one gateway client per configured model,
// autoscale and (re)load each model, construct one source.Processor per
// configured source, and tell the decoder controller which sources to
// initialize. Pipeline implements decoder.Callbacks; Setup does not register
// it with any decoder.
//
// Grounded on the teacher's client.Setup (client/client.go) — a single
// top-level function that resolves configuration, builds the long-lived
// collaborators, and wires them together before returning control to
// main().
package supervisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/n0remac/videoinfer/autoscale"
	"github.com/n0remac/videoinfer/codec"
	"github.com/n0remac/videoinfer/config"
	"github.com/n0remac/videoinfer/debugsnap"
	"github.com/n0remac/videoinfer/decoder"
	"github.com/n0remac/videoinfer/gateway"
	"github.com/n0remac/videoinfer/publish"
	"github.com/n0remac/videoinfer/source"
	"github.com/n0remac/videoinfer/telemetry"
)

// DefaultDebugSnapshotEveryNth is used when debug_snapshot_dir is configured
// but debug_snapshot_every_nth is left unset (zero).
const DefaultDebugSnapshotEveryNth = 30

// Pipeline owns every long-lived collaborator constructed for one
// configuration document: the gateway clients, the source processors, and
// the publisher. It implements decoder.Callbacks so it can be registered
// directly against a real decoder.
type Pipeline struct {
	cfg *config.Config
	log *logrus.Entry

	clients    map[gateway.ModelKind]*gateway.Client
	publisher  *publish.Publisher
	processors map[string]*source.Processor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Setup loads cfgPath, dials a gateway client per configured model kind,
// autoscales and loads each model, constructs one source.Processor per
// configured source, and instructs controller to initialize the configured
// source ids (§4.4.5, §4.6 step 6, §4.7). The returned Pipeline's processors
// are not yet running; call Run to start them. A nil controller is replaced
// with decoder.NopController.
func Setup(ctx context.Context, cfgPath string, sink publish.Sink, controller decoder.Controller, log *logrus.Entry) (*Pipeline, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if controller == nil {
		controller = decoder.NopController{}
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("supervisor: %w", err)
	}

	var snap *debugsnap.Snapshotter
	if cfg.InferenceConfig.DebugSnapshotDir != "" {
		everyNth := cfg.InferenceConfig.DebugSnapshotEveryNth
		if everyNth < 1 {
			everyNth = DefaultDebugSnapshotEveryNth
		}
		snap = debugsnap.New(cfg.InferenceConfig.DebugSnapshotDir, everyNth)
	}

	p := &Pipeline{
		cfg:        cfg,
		log:        log,
		clients:    make(map[gateway.ModelKind]*gateway.Client),
		publisher:  publish.New(sink, controller, log),
		processors: make(map[string]*source.Processor),
	}

	if err := controller.InitSources(cfg.SourcesConfig.IDs, int(log.Logger.GetLevel())); err != nil {
		p.Close()
		return nil, fmt.Errorf("supervisor: init sources: %w", err)
	}

	policy := autoscale.ParsePolicy(cfg.InferenceConfig.AutoscalePolicy)
	loads := make([]autoscale.SourceLoad, 0, len(cfg.SourcesConfig.IDs))
	for _, id := range cfg.SourcesConfig.IDs {
		loads = append(loads, autoscale.SourceLoad{SourceID: id, Stride: cfg.ResolvedSourceConfig(id).InferenceStride})
	}

	for kindName, modelCfg := range cfg.InferenceConfig.Models {
		kind := gateway.Detection
		if modelCfg.Kind == "embedding" {
			kind = gateway.Embedding
		}

		spec := toModelSpec(kind, modelCfg)

		client, err := gateway.New(ctx, cfg.TritonConfig.Endpoint, spec, telemetry.LoggingReporter{}, log)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("supervisor: gateway client for model %q: %w", kindName, err)
		}

		instances := autoscale.Compute(policy, loads, autoscale.LoadAwareParams{
			PreferredBatchSize: preferredBatchSize(modelCfg),
			BatchEfficiency:    1,
		})

		client.Unload(ctx)
		if err := client.Load(ctx, instances); err != nil {
			p.Close()
			return nil, fmt.Errorf("supervisor: loading model %q with %d instances: %w", kindName, instances, err)
		}

		p.clients[kind] = client

		for _, id := range cfg.SourcesConfig.IDs {
			sourceCfg := cfg.ResolvedSourceConfig(id)
			procSnap := snap
			if kind != gateway.Detection {
				procSnap = nil
			}
			proc := source.New(id, sourceCfg, spec, client, p.publisher, procSnap, log)
			p.processors[processorKey(id, kind)] = proc
		}
	}

	if err := controller.InitSources(cfg.SourcesConfig.IDs, int(log.Logger.GetLevel())); err != nil {
		p.Close()
		return nil, fmt.Errorf("supervisor: init sources: %w", err)
	}

	return p, nil
}

func processorKey(sourceID string, kind gateway.ModelKind) string {
	return fmt.Sprintf("%s/%s", sourceID, kind)
}

func preferredBatchSize(m config.ModelConfig) int {
	if len(m.BatchPreferredSizes) > 0 {
		return m.BatchPreferredSizes[len(m.BatchPreferredSizes)-1]
	}
	if m.BatchMaxSize > 0 {
		return m.BatchMaxSize
	}
	return 1
}

func toModelSpec(kind gateway.ModelKind, m config.ModelConfig) gateway.ModelSpec {
	precision := codec.FP32
	if m.Precision == "FP16" {
		precision = codec.FP16
	}
	return gateway.ModelSpec{
		Kind:                kind,
		ModelName:           m.Name,
		InputName:           m.InputName,
		InputShape:          m.InputShape,
		OutputName:          m.OutputName,
		OutputShape:         m.OutputShape,
		Precision:           precision,
		BatchMax:            m.BatchMaxSize,
		BatchPreferredSizes: m.BatchPreferredSizes,
		BatchQueueDelayUS:   m.BatchMaxQueueDelayUS,
	}
}

// Run starts every processor's worker loop and stats reporter; it returns
// immediately, running each processor on its own goroutine until ctx is
// cancelled or Close is called.
func (p *Pipeline) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for _, proc := range p.processors {
		proc := proc
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			proc.Run(ctx)
		}()
	}
}

// OnFrame implements decoder.Callbacks, fanning the frame out to every
// processor registered for sourceID (one per configured model kind).
func (p *Pipeline) OnFrame(sourceID string, data []byte, width, height int, pts uint64) {
	for kind := range p.clients {
		if proc, ok := p.processors[processorKey(sourceID, kind)]; ok {
			proc.OnFrame(data, height, width, pts)
		}
	}
}

// OnStopped implements decoder.Callbacks.
func (p *Pipeline) OnStopped(sourceID string) {
	p.log.WithField("source_id", sourceID).Info("source stopped")
}

// OnName implements decoder.Callbacks.
func (p *Pipeline) OnName(sourceID string, name string) {
	p.log.WithFields(logrus.Fields{"source_id": sourceID, "name": name}).Debug("source name")
}

// OnStatus implements decoder.Callbacks.
func (p *Pipeline) OnStatus(sourceID string, status decoder.Status) {
	p.log.WithFields(logrus.Fields{"source_id": sourceID, "status": status.String()}).Info("source status")
}

// Close unloads every model, cancels running processors, and waits for
// them to exit.
func (p *Pipeline) Close() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	ctx := context.Background()
	for _, client := range p.clients {
		client.Unload(ctx)
		client.Close()
	}
}
