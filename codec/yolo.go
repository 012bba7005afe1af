package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultYOLOTargetSize is the square input size YOLO-family detection
// models in this system are trained/exported for (§4.1.2).
const DefaultYOLOTargetSize = 640

// PreprocessYOLO performs the letterbox resize + planar YOLO normalization
// of §4.1.2: allocate the output once, prefill every plane with the
// normalized pad value, then nearest-neighbor-resample the active region.
func PreprocessYOLO(frame RawFrame, targetSize int, precision Precision) ([]byte, error) {
	ensureLUTs()

	expected := frame.Height * frame.Width * 3
	if frame.Height <= 0 || frame.Width <= 0 || len(frame.Data) != expected {
		return nil, fmt.Errorf("%w: frame is %dx%d with %d bytes, expected %d", ErrInvalidShape, frame.Width, frame.Height, len(frame.Data), expected)
	}

	lb := CalculateLetterbox(frame.Height, frame.Width, targetSize)
	numPixels := targetSize * targetSize

	out := make([]byte, numPixels*3*precision.ByteWidth())

	// Precompute per-column source x offsets (byte offset of pixel start).
	xOffsets := make([]int, lb.NewW)
	for x := 0; x < lb.NewW; x++ {
		sx := int(float32(x) * lb.InvScale)
		if sx > frame.Width-1 {
			sx = frame.Width - 1
		}
		xOffsets[x] = sx * 3
	}

	if precision == FP16 {
		padVal := pixelLUT16[padGrayColor]
		planeR := make([]uint16, numPixels)
		planeG := make([]uint16, numPixels)
		planeB := make([]uint16, numPixels)
		for i := range planeR {
			planeR[i], planeG[i], planeB[i] = padVal, padVal, padVal
		}

		for y := 0; y < lb.NewH; y++ {
			sy := int(float32(y) * lb.InvScale)
			if sy > frame.Height-1 {
				sy = frame.Height - 1
			}
			srcRow := sy * frame.Width * 3
			dstY := y + lb.PadY
			for x := 0; x < lb.NewW; x++ {
				srcIdx := srcRow + xOffsets[x]
				dstIdx := dstY*targetSize + (x + lb.PadX)
				planeR[dstIdx] = pixelLUT16[frame.Data[srcIdx]]
				planeG[dstIdx] = pixelLUT16[frame.Data[srcIdx+1]]
				planeB[dstIdx] = pixelLUT16[frame.Data[srcIdx+2]]
			}
		}
		writeU16Plane(out[0:numPixels*2], planeR)
		writeU16Plane(out[numPixels*2:numPixels*4], planeG)
		writeU16Plane(out[numPixels*4:numPixels*6], planeB)
		return out, nil
	}

	padVal := pixelLUT32[padGrayColor]
	planeR := make([]float32, numPixels)
	planeG := make([]float32, numPixels)
	planeB := make([]float32, numPixels)
	for i := range planeR {
		planeR[i], planeG[i], planeB[i] = padVal, padVal, padVal
	}

	for y := 0; y < lb.NewH; y++ {
		sy := int(float32(y) * lb.InvScale)
		if sy > frame.Height-1 {
			sy = frame.Height - 1
		}
		srcRow := sy * frame.Width * 3
		dstY := y + lb.PadY
		for x := 0; x < lb.NewW; x++ {
			srcIdx := srcRow + xOffsets[x]
			dstIdx := dstY*targetSize + (x + lb.PadX)
			planeR[dstIdx] = pixelLUT32[frame.Data[srcIdx]]
			planeG[dstIdx] = pixelLUT32[frame.Data[srcIdx+1]]
			planeB[dstIdx] = pixelLUT32[frame.Data[srcIdx+2]]
		}
	}
	writeF32Plane(out[0:numPixels*4], planeR)
	writeF32Plane(out[numPixels*4:numPixels*8], planeG)
	writeF32Plane(out[numPixels*8:numPixels*12], planeB)
	return out, nil
}

func writeU16Plane(dst []byte, plane []uint16) {
	for i, v := range plane {
		binary.LittleEndian.PutUint16(dst[i*2:], v)
	}
}

func writeF32Plane(dst []byte, plane []float32) {
	for i, v := range plane {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}
