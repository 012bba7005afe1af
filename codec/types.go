// Package codec implements the deterministic image-tensor codec: letterbox
// resize and planar normalization for YOLO-style detection models, shortest
// edge resize + center crop + ImageNet normalization for embedding models,
// FP16/FP32 packing, and detection-result decoding with class-aware NMS.
//
// Grounded on original_source/client-triton/client/src/processing/{preprocessing,yolo}.rs.
package codec

import "errors"

// ErrInvalidShape is returned whenever an input or output byte buffer does
// not match the shape/precision it is declared to carry.
var ErrInvalidShape = errors.New("codec: invalid shape")

// Precision is the element width of a tensor payload.
type Precision int

const (
	FP32 Precision = iota
	FP16
)

// ByteWidth returns the number of bytes one scalar of this precision occupies.
func (p Precision) ByteWidth() int {
	switch p {
	case FP16:
		return 2
	default:
		return 4
	}
}

func (p Precision) String() string {
	if p == FP16 {
		return "FP16"
	}
	return "FP32"
}

// RawFrame is a decoded RGB8 interleaved frame as delivered by the decoder
// callback (§3 RawFrame). The Data slice is always owned by the caller of
// the codec (never aliased across goroutines).
type RawFrame struct {
	Data   []byte
	Height int
	Width  int
	PTS    uint64
}

// DetectionBox is one decoded, NMS-surviving detection in original-image
// pixel space.
type DetectionBox struct {
	X1, Y1, X2, Y2 float32
	ClassID        int
	Score          float32
}

// EmbeddingVector is a post-processed embedding model output.
type EmbeddingVector struct {
	Data []float32
}
