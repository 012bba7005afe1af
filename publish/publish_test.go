package publish

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0remac/videoinfer/codec"
)

type recordingSink struct {
	keys     []string
	payloads [][]byte
}

func (r *recordingSink) Publish(key string, payload []byte) error {
	r.keys = append(r.keys, key)
	r.payloads = append(r.payloads, payload)
	return nil
}

type failingSink struct{}

func (failingSink) Publish(string, []byte) error { return assert.AnError }

func TestPublishDetectionsEnvelope(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil, nil)

	frame := codec.RawFrame{Height: 480, Width: 640, PTS: 1000}
	boxes := []codec.DetectionBox{
		{X1: 10, Y1: 20, X2: 30, Y2: 40, ClassID: 0, Score: 0.9},
		{X1: 1, Y1: 1, X2: 2, Y2: 2, ClassID: 99, Score: 0.5}, // unknown class id
	}

	p.PublishDetections("cam-1", frame, boxes)

	require.Len(t, sink.keys, 1)
	assert.Equal(t, "cam-1", sink.keys[0])

	var env envelope
	require.NoError(t, json.Unmarshal(sink.payloads[0], &env))
	assert.Equal(t, "BBOX", env.Type)

	raw, err := json.Marshal(env.Data)
	require.NoError(t, err)
	var inner detectionInner
	require.NoError(t, json.Unmarshal(raw, &inner))

	assert.Equal(t, "cam-1", inner.StreamID)
	require.Len(t, inner.BBoxes, 2)
	assert.Equal(t, "person", inner.BBoxes[0].ClassName)
	assert.Equal(t, int64(20*640+10), inner.BBoxes[0].TopLeftIdx)
	assert.Equal(t, int64(40*640+30), inner.BBoxes[0].BottomRightIdx)
	assert.Equal(t, "99", inner.BBoxes[1].ClassName)
}

func TestPublishEmbeddingKey(t *testing.T) {
	sink := &recordingSink{}
	p := New(sink, nil, nil)

	frame := codec.RawFrame{PTS: 42}
	p.PublishEmbedding("cam-2", frame, codec.EmbeddingVector{Data: []float32{1, 2, 3}})

	require.Len(t, sink.keys, 1)
	assert.Equal(t, "cam-2-42", sink.keys[0])

	var env envelope
	require.NoError(t, json.Unmarshal(sink.payloads[0], &env))
	assert.Equal(t, "Embedding", env.Type)
}

func TestPublishSwallowsSinkFailure(t *testing.T) {
	p := New(failingSink{}, nil, nil)
	assert.NotPanics(t, func() {
		p.PublishDetections("cam-3", codec.RawFrame{Width: 10}, nil)
	})
}

func TestNopSink(t *testing.T) {
	var s Sink = NopSink{}
	assert.NoError(t, s.Publish("k", []byte("v")))
}

type recordingController struct {
	sourceIDs []string
	payloads  [][]byte
}

func (r *recordingController) InitSources(ids []string, logLevel int) error { return nil }

func (r *recordingController) PostResults(sourceID string, resultJSON []byte) error {
	r.sourceIDs = append(r.sourceIDs, sourceID)
	r.payloads = append(r.payloads, resultJSON)
	return nil
}

func TestPublishDetectionsPostsResultsToController(t *testing.T) {
	ctrl := &recordingController{}
	p := New(&recordingSink{}, ctrl, nil)

	boxes := []codec.DetectionBox{{X1: 1, Y1: 1, X2: 2, Y2: 2, ClassID: 0, Score: 0.9}}
	p.PublishDetections("cam-1", codec.RawFrame{Width: 10}, boxes)

	require.Len(t, ctrl.sourceIDs, 1)
	assert.Equal(t, "cam-1", ctrl.sourceIDs[0])

	var inner detectionInner
	require.NoError(t, json.Unmarshal(ctrl.payloads[0], &inner))
	assert.Equal(t, "cam-1", inner.StreamID)
	require.Len(t, inner.BBoxes, 1)
}
