package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLetterboxInversion(t *testing.T) {
	lb := CalculateLetterbox(1080, 1920, 640)
	assert.Equal(t, 640, lb.NewW)
	assert.Equal(t, 360, lb.NewH)
	assert.Equal(t, 0, lb.PadX)
	assert.Equal(t, 140, lb.PadY)
	assert.InDelta(t, 3.0, lb.InvScale, 0.01)

	x1 := (float32(100) - float32(lb.PadX)) * lb.InvScale
	y1 := (float32(200) - float32(lb.PadY)) * lb.InvScale
	x2 := (float32(200) - float32(lb.PadX)) * lb.InvScale
	y2 := (float32(300) - float32(lb.PadY)) * lb.InvScale

	assert.InDelta(t, 300, x1, 1)
	assert.InDelta(t, 180, y1, 1)
	assert.InDelta(t, 600, x2, 1)
	assert.InDelta(t, 480, y2, 1)
}

func TestFP16RoundTrip(t *testing.T) {
	ensureLUTs()
	for _, f := range []float32{0, 1, -1, 3.99, -3.99, 0.5, -0.5, 2.71828, 0.001} {
		enc := EncodeFP16Clamped(f)
		dec := DecodeFP16(enc)
		assert.InDelta(t, float64(f), float64(dec), 0.01, "value %v", f)
	}
}

func TestFP16ClampsOutOfRange(t *testing.T) {
	enc := EncodeFP16Clamped(100)
	dec := DecodeFP16(enc)
	assert.InDelta(t, 4.0, float64(dec), 0.01)
}

func TestPreprocessYOLOShape(t *testing.T) {
	frame := makeFrame(t, 1080, 1920)
	out, err := PreprocessYOLO(frame, DefaultYOLOTargetSize, FP32)
	require.NoError(t, err)
	assert.Len(t, out, 3*640*640*4)

	out16, err := PreprocessYOLO(frame, DefaultYOLOTargetSize, FP16)
	require.NoError(t, err)
	assert.Len(t, out16, 3*640*640*2)
}

func TestPreprocessYOLORejectsBadShape(t *testing.T) {
	frame := RawFrame{Data: make([]byte, 10), Height: 100, Width: 100}
	_, err := PreprocessYOLO(frame, DefaultYOLOTargetSize, FP32)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestClassAwareNMSSuppressesOverlapSameClass(t *testing.T) {
	dets := []DetectionBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, ClassID: 0, Score: 0.9},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, ClassID: 0, Score: 0.8},
		{X1: 20, Y1: 20, X2: 30, Y2: 30, ClassID: 0, Score: 0.7},
	}
	kept := classAwareNMS(dets, 0.5)
	require.Len(t, kept, 2)
	assert.InDelta(t, 0.9, kept[0].Score, 0.001)
	assert.InDelta(t, 0.7, kept[1].Score, 0.001)
}

func TestClassAwareNMSKeepsAcrossClasses(t *testing.T) {
	dets := []DetectionBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, ClassID: 0, Score: 0.9},
		{X1: 1, Y1: 1, X2: 11, Y2: 11, ClassID: 1, Score: 0.8},
	}
	kept := classAwareNMS(dets, 0.5)
	assert.Len(t, kept, 2)
}

func TestNMSOutputOrderingProperty(t *testing.T) {
	dets := []DetectionBox{
		{X1: 0, Y1: 0, X2: 10, Y2: 10, ClassID: 0, Score: 0.9},
		{X1: 50, Y1: 50, X2: 60, Y2: 60, ClassID: 0, Score: 0.95},
		{X1: 100, Y1: 100, X2: 110, Y2: 110, ClassID: 0, Score: 0.3},
	}
	kept := classAwareNMS(dets, 0.5)
	for i := 1; i < len(kept); i++ {
		assert.GreaterOrEqual(t, kept[i-1].Score, kept[i].Score)
	}
	for _, pair := range [][2]int{{0, 1}, {0, 2}, {1, 2}} {
		a, b := kept[pair[0]], kept[pair[1]]
		if a.ClassID == b.ClassID {
			assert.LessOrEqual(t, iou(a, b), float32(0.5))
		}
	}
}

func TestPostprocessYOLORejectsBadOutputLength(t *testing.T) {
	frame := makeFrame(t, 100, 100)
	_, err := PostprocessYOLO(make([]byte, 3), frame, [2]int64{6, 100}, FP32, 0.5, 0.5)
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestPostprocessEmbeddingRoundTrip(t *testing.T) {
	vals := []float32{0.1, -0.2, 3.3, -4.4}
	raw := make([]byte, len(vals)*4)
	for i, v := range vals {
		bits := math.Float32bits(v)
		raw[i*4] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}
	vec, err := PostprocessEmbedding(raw, len(vals), FP32)
	require.NoError(t, err)
	for i, v := range vals {
		assert.InDelta(t, v, vec.Data[i], 0.0001)
	}
}

func TestPreprocessEmbeddingShape(t *testing.T) {
	frame := makeFrame(t, 480, 640)
	out, err := PreprocessEmbedding(frame, DefaultEmbeddingCrop, DefaultEmbeddingCrop, DefaultEmbeddingShortestEdge, FP32)
	require.NoError(t, err)
	assert.Len(t, out, 3*224*224*4)
}

func TestCropToBoxDegenerateFails(t *testing.T) {
	frame := makeFrame(t, 100, 100)
	_, err := CropToBox(frame, DetectionBox{X1: 50, Y1: 50, X2: 50, Y2: 50})
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestCropToBoxClampsToFrame(t *testing.T) {
	frame := makeFrame(t, 100, 100)
	cropped, err := CropToBox(frame, DetectionBox{X1: -10, Y1: -10, X2: 50, Y2: 50})
	require.NoError(t, err)
	assert.Equal(t, 50, cropped.Width)
	assert.Equal(t, 50, cropped.Height)
}

func makeFrame(t *testing.T, h, w int) RawFrame {
	t.Helper()
	data := make([]byte, h*w*3)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return RawFrame{Data: data, Height: h, Width: w}
}
