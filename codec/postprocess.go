package codec

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// PostprocessYOLO decodes a raw detection-model output tensor (§4.1.5) into
// DetectionBoxes in original-image pixel space, applying the confidence
// threshold and class-aware NMS.
//
// outputShape is [features, anchors] where features = 4 + numClasses.
func PostprocessYOLO(
	raw []byte,
	frame RawFrame,
	outputShape [2]int64,
	precision Precision,
	confThreshold float32,
	nmsIoUThreshold float32,
) ([]DetectionBox, error) {
	features := int(outputShape[0])
	anchors := int(outputShape[1])
	if features < 5 {
		return nil, fmt.Errorf("%w: output features %d must be >= 5 (4 box + >=1 class)", ErrInvalidShape, features)
	}
	numClasses := features - 4

	expected := anchors * features * precision.ByteWidth()
	if len(raw) != expected {
		return nil, fmt.Errorf("%w: got %d raw output bytes, expected %d for %s", ErrInvalidShape, len(raw), expected, precision)
	}

	lb := CalculateLetterbox(frame.Height, frame.Width, DefaultYOLOTargetSize)

	at := func(featureIdx, anchorIdx int) float32 {
		scalarIdx := featureIdx*anchors + anchorIdx
		switch precision {
		case FP16:
			bits := binary.LittleEndian.Uint16(raw[scalarIdx*2:])
			return DecodeFP16(bits)
		default:
			bits := binary.LittleEndian.Uint32(raw[scalarIdx*4:])
			return math.Float32frombits(bits)
		}
	}

	detections := make([]DetectionBox, 0, 256)
	for a := 0; a < anchors; a++ {
		x := at(0, a)
		y := at(1, a)
		w := at(2, a)
		h := at(3, a)

		halfW, halfH := w*0.5, h*0.5
		x1 := (x - halfW - float32(lb.PadX)) * lb.InvScale
		y1 := (y - halfH - float32(lb.PadY)) * lb.InvScale
		x2 := (x + halfW - float32(lb.PadX)) * lb.InvScale
		y2 := (y + halfH - float32(lb.PadY)) * lb.InvScale

		var bestClass int
		var bestScore float32
		for c := 0; c < numClasses; c++ {
			score := at(4+c, a)
			if score > bestScore {
				bestScore = score
				bestClass = c
			}
		}

		if bestScore >= confThreshold {
			detections = append(detections, DetectionBox{
				X1: x1, Y1: y1, X2: x2, Y2: y2,
				ClassID: bestClass,
				Score:   bestScore,
			})
		}
	}

	detections = clampDetections(detections, frame.Width, frame.Height)
	return classAwareNMS(detections, nmsIoUThreshold), nil
}

func clampDetections(dets []DetectionBox, w, h int) []DetectionBox {
	for i := range dets {
		d := &dets[i]
		if d.X1 < 0 {
			d.X1 = 0
		}
		if d.Y1 < 0 {
			d.Y1 = 0
		}
		if d.X2 > float32(w) {
			d.X2 = float32(w)
		}
		if d.Y2 > float32(h) {
			d.Y2 = float32(h)
		}
	}
	return dets
}

// classAwareNMS applies non-maximum suppression independently per class id
// (§4.1.5). Candidates are sorted by score descending (a stable sort, so
// equal scores keep their input order), then a candidate is kept iff its IoU against every
// already-kept candidate of the same class is <= iouThreshold. Output
// preserves the sorted order of kept candidates.
func classAwareNMS(dets []DetectionBox, iouThreshold float32) []DetectionBox {
	if len(dets) <= 1 {
		return dets
	}

	sort.SliceStable(dets, func(i, j int) bool {
		return dets[i].Score > dets[j].Score
	})

	kept := make([]DetectionBox, 0, len(dets))
	for _, cand := range dets {
		keep := true
		for _, k := range kept {
			if k.ClassID != cand.ClassID {
				continue
			}
			if iou(cand, k) > iouThreshold {
				keep = false
				break
			}
		}
		if keep {
			kept = append(kept, cand)
		}
	}
	return kept
}

func iou(a, b DetectionBox) float32 {
	x1 := maxF32(a.X1, b.X1)
	y1 := maxF32(a.Y1, b.Y1)
	x2 := minF32(a.X2, b.X2)
	y2 := minF32(a.Y2, b.Y2)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}
	intersection := (x2 - x1) * (y2 - y1)
	areaA := (a.X2 - a.X1) * (a.Y2 - a.Y1)
	areaB := (b.X2 - b.X1) * (b.Y2 - b.Y1)
	union := areaA + areaB - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

func maxF32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func minF32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
