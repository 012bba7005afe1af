package autoscale

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConservativeIsOneToOne(t *testing.T) {
	sources := []SourceLoad{{SourceID: "a"}, {SourceID: "b"}, {SourceID: "c"}}
	assert.Equal(t, 3, Compute(Conservative, sources, LoadAwareParams{}))
}

func TestLoadAwareScalesWithStride(t *testing.T) {
	sources := []SourceLoad{
		{SourceID: "a", Stride: 1},
		{SourceID: "b", Stride: 1},
		{SourceID: "c", Stride: 1},
		{SourceID: "d", Stride: 1},
	}
	params := LoadAwareParams{PreferredBatchSize: 2, BatchEfficiency: 1}
	// demand = 4, capacity/instance = 2 -> ceil(4/2) = 2
	assert.Equal(t, 2, Compute(LoadAware, sources, params))
}

func TestLoadAwareHighStrideReducesInstances(t *testing.T) {
	sources := []SourceLoad{
		{SourceID: "a", Stride: 10},
		{SourceID: "b", Stride: 10},
	}
	params := LoadAwareParams{PreferredBatchSize: 4, BatchEfficiency: 1}
	// demand = 0.2, capacity/instance = 4 -> ceil(0.2/4) = 1
	assert.Equal(t, 1, Compute(LoadAware, sources, params))
}

func TestLoadAwareNoSources(t *testing.T) {
	assert.Equal(t, 0, Compute(LoadAware, nil, LoadAwareParams{PreferredBatchSize: 4, BatchEfficiency: 1}))
}

func TestParsePolicy(t *testing.T) {
	assert.Equal(t, LoadAware, ParsePolicy("load_aware"))
	assert.Equal(t, Conservative, ParsePolicy("conservative"))
	assert.Equal(t, Conservative, ParsePolicy(""))
	assert.Equal(t, Conservative, ParsePolicy("bogus"))
}
