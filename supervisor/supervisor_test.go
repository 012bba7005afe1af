package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n0remac/videoinfer/codec"
	"github.com/n0remac/videoinfer/config"
	"github.com/n0remac/videoinfer/gateway"
)

func TestToModelSpecPrecision(t *testing.T) {
	spec := toModelSpec(gateway.Detection, config.ModelConfig{Precision: "FP16", Name: "yolo"})
	assert.Equal(t, codec.FP16, spec.Precision)
	assert.Equal(t, gateway.Detection, spec.Kind)

	spec = toModelSpec(gateway.Embedding, config.ModelConfig{Precision: "FP32", Name: "dino"})
	assert.Equal(t, codec.FP32, spec.Precision)
}

func TestPreferredBatchSizePrefersLastPreferredSize(t *testing.T) {
	assert.Equal(t, 8, preferredBatchSize(config.ModelConfig{BatchPreferredSizes: []int{2, 4, 8}, BatchMaxSize: 16}))
	assert.Equal(t, 16, preferredBatchSize(config.ModelConfig{BatchMaxSize: 16}))
	assert.Equal(t, 1, preferredBatchSize(config.ModelConfig{}))
}

func TestProcessorKeyIsStableAndKindDistinguishing(t *testing.T) {
	a := processorKey("cam-1", gateway.Detection)
	b := processorKey("cam-1", gateway.Embedding)
	assert.Equal(t, a, processorKey("cam-1", gateway.Detection))
	assert.NotEqual(t, a, b)
}
