// Package autoscale computes instances_per_model for the Pipeline
// Supervisor (§4.4.5): how many serving instances of a given model the
// gateway should load given the currently active sources.
//
// The conservative 1:1 mapping is this repo's own restatement of the
// default policy (no original_source scheduling file implements it); the
// NEW LoadAware policy follows spec.md §9 design note (c) — "an
// alternative load-aware formula... left as a tuning hook".
package autoscale

import "math"

// Policy selects how instances_per_model is computed.
type Policy int

const (
	// Conservative is the default 1:1 sources-to-instances mapping
	// (§4.4.5): instances_per_model = len(sources).
	Conservative Policy = iota
	// LoadAware scales instance count to the aggregate frame rate each
	// source demands, accounting for batching efficiency.
	LoadAware
)

// ParsePolicy maps a config string ("conservative", "load_aware") to a
// Policy, defaulting to Conservative for an empty or unrecognized value.
func ParsePolicy(s string) Policy {
	if s == "load_aware" {
		return LoadAware
	}
	return Conservative
}

// SourceLoad is the per-source input this package needs: the inference
// stride determines what fraction of decoded frames a source actually
// submits for inference.
type SourceLoad struct {
	SourceID string
	Stride   int
}

// LoadAwareParams are the batching characteristics of one model, taken
// from its ModelSpec/ModelConfig.
type LoadAwareParams struct {
	PreferredBatchSize int
	// BatchEfficiency is the fraction of PreferredBatchSize a batch
	// realistically fills under the configured queue delay (0 < e <= 1).
	BatchEfficiency float64
}

// Compute returns instances_per_model for policy given the active sources
// and (for LoadAware) the model's batching parameters.
func Compute(policy Policy, sources []SourceLoad, params LoadAwareParams) int {
	switch policy {
	case LoadAware:
		return computeLoadAware(sources, params)
	default:
		return len(sources)
	}
}

// computeLoadAware implements ceil(Σ 1/stride_s / (preferred_batch ·
// batch_efficiency)).
func computeLoadAware(sources []SourceLoad, params LoadAwareParams) int {
	if len(sources) == 0 {
		return 0
	}

	var demand float64
	for _, s := range sources {
		stride := s.Stride
		if stride < 1 {
			stride = 1
		}
		demand += 1.0 / float64(stride)
	}

	batchSize := params.PreferredBatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	efficiency := params.BatchEfficiency
	if efficiency <= 0 || efficiency > 1 {
		efficiency = 1
	}

	capacityPerInstance := float64(batchSize) * efficiency
	instances := int(math.Ceil(demand / capacityPerInstance))
	if instances < 1 {
		instances = 1
	}
	return instances
}
