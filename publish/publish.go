// Package publish implements the Result Publisher (§4.6): it turns a
// source's detection boxes or embedding vector into the event-bus JSON
// envelope and hands it to a Sink, swallowing and logging any failure so a
// flaky downstream subscriber never fails a frame.
//
// Grounded on original_source/client-triton/client/src/inference/publisher.rs
// for the envelope shapes and the class-name table, and on the teacher's
// websocket/websocket.go hub (a mutex-guarded set of *websocket.Conn,
// broadcast-to-all on publish) for the Sink implementation, repurposed from
// browser fan-out to downstream-subscriber fan-out.
package publish

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/n0remac/videoinfer/codec"
	"github.com/n0remac/videoinfer/decoder"
)

// Sink is the opaque "key + payload" event-bus collaborator (§3).
type Sink interface {
	Publish(key string, payload []byte) error
}

// classNames is the short enumerated table of §4.6; unknown ids fall back
// to their numeric string form.
var classNames = map[int]string{
	0: "person",
	1: "bicycle",
	2: "car",
	3: "motorcycle",
	4: "airplane",
	5: "bus",
}

func classNameFor(id int) string {
	if name, ok := classNames[id]; ok {
		return name
	}
	return fmt.Sprintf("%d", id)
}

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type bboxEntry struct {
	PTS             uint64  `json:"pts"`
	TopLeftIdx      int64   `json:"top_left_idx"`
	BottomRightIdx  int64   `json:"bottom_right_idx"`
	ClassName       string  `json:"class_name"`
	Score           float32 `json:"score"`
}

type detectionInner struct {
	StreamID string      `json:"stream_id"`
	BBoxes   []bboxEntry `json:"bboxes"`
}

type embeddingInner struct {
	Data []float32 `json:"data"`
}

// Publisher wraps a Sink with logging (§4.6 "Publisher failures are logged
// at warn and swallowed; they never fail the frame"). It also hands every
// published detection payload back to the decoder.Controller, the outbound
// half of the decoder control contract (§6 "Decoder control contract
// (exposed)"), e.g. for on-screen overlay.
type Publisher struct {
	sink       Sink
	controller decoder.Controller
	log        *logrus.Entry
}

// New constructs a Publisher. A nil sink is replaced with NopSink; a nil
// controller is replaced with decoder.NopController.
func New(sink Sink, controller decoder.Controller, log *logrus.Entry) *Publisher {
	if sink == nil {
		sink = NopSink{}
	}
	if controller == nil {
		controller = decoder.NopController{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{sink: sink, controller: controller, log: log}
}

// PublishDetections serializes boxes per §4.6 and forwards them with key
// sourceID, payload-type tag "BBOX". idx = y*width + x converts a pixel
// coordinate to the one-dimensional index the wire format carries.
func (p *Publisher) PublishDetections(sourceID string, frame codec.RawFrame, boxes []codec.DetectionBox) {
	entries := make([]bboxEntry, 0, len(boxes))
	for _, b := range boxes {
		entries = append(entries, bboxEntry{
			PTS:            frame.PTS,
			TopLeftIdx:     idxOf(int64(b.X1), int64(b.Y1), int64(frame.Width)),
			BottomRightIdx: idxOf(int64(b.X2), int64(b.Y2), int64(frame.Width)),
			ClassName:      classNameFor(b.ClassID),
			Score:          b.Score,
		})
	}

	inner := detectionInner{StreamID: sourceID, BBoxes: entries}
	env := envelope{Type: "BBOX", Data: inner}

	p.publish(sourceID, env)
	p.postResults(sourceID, inner)
}

// postResults hands the detection payload back to the decoder.Controller,
// logging and swallowing any failure (the same "never fail the frame"
// contract as publish).
func (p *Publisher) postResults(sourceID string, inner detectionInner) {
	payload, err := json.Marshal(inner)
	if err != nil {
		p.log.WithError(err).WithField("source_id", sourceID).Warn("post_results: marshal failed")
		return
	}
	if err := p.controller.PostResults(sourceID, payload); err != nil {
		p.log.WithError(err).WithField("source_id", sourceID).Warn("post_results: controller rejected payload")
	}
}

// PublishEmbedding serializes vec per §4.6 and forwards it with key
// "{source_id}-{pts}", payload-type tag "Embedding".
func (p *Publisher) PublishEmbedding(sourceID string, frame codec.RawFrame, vec codec.EmbeddingVector) {
	env := envelope{
		Type: "Embedding",
		Data: embeddingInner{Data: vec.Data},
	}

	key := fmt.Sprintf("%s-%d", sourceID, frame.PTS)
	p.publish(key, env)
}

func (p *Publisher) publish(key string, env envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		p.log.WithError(err).WithField("key", key).Warn("publish: marshal envelope failed")
		return
	}
	if err := p.sink.Publish(key, payload); err != nil {
		p.log.WithError(err).WithField("key", key).Warn("publish: sink rejected payload")
	}
}

func idxOf(x, y, width int64) int64 {
	return y*width + x
}

// NopSink discards every payload; used in tests and when no downstream
// subscriber is configured.
type NopSink struct{}

func (NopSink) Publish(string, []byte) error { return nil }
