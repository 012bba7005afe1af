package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n0remac/videoinfer/codec"
)

func TestOutputByteLen(t *testing.T) {
	spec := ModelSpec{
		OutputShape: []int64{6, 8400},
		Precision:   codec.FP32,
	}
	assert.Equal(t, 6*8400*4, spec.OutputByteLen())

	spec.Precision = codec.FP16
	assert.Equal(t, 6*8400*2, spec.OutputByteLen())
}
