package codec

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultEmbeddingCrop and DefaultEmbeddingShortestEdge are the standard
// ImageNet-style embedding model input geometry (§4.1.3).
const (
	DefaultEmbeddingCrop         = 224
	DefaultEmbeddingShortestEdge = 256
)

// PreprocessEmbedding performs the shortest-edge resize + center crop +
// ImageNet normalization of §4.1.3. Pixels outside the resized image (which
// can only happen when cropH/cropW exceed the resized image in some
// dimension) are left at the normalized ImageNet-mean-zero value baked into
// the output buffer at allocation.
func PreprocessEmbedding(frame RawFrame, cropH, cropW, shortestEdge int, precision Precision) ([]byte, error) {
	ensureLUTs()

	expected := frame.Height * frame.Width * 3
	if frame.Height <= 0 || frame.Width <= 0 || len(frame.Data) != expected {
		return nil, fmt.Errorf("%w: frame is %dx%d with %d bytes, expected %d", ErrInvalidShape, frame.Width, frame.Height, len(frame.Data), expected)
	}

	minDim := frame.Height
	if frame.Width < minDim {
		minDim = frame.Width
	}
	scale := float32(shortestEdge) / float32(minDim)
	newW := int(math.Round(float64(float32(frame.Width) * scale)))
	newH := int(math.Round(float64(float32(frame.Height) * scale)))
	scaleX := float32(newW) / float32(frame.Width)
	scaleY := float32(newH) / float32(frame.Height)

	cropXStart := 0
	if newW > cropW {
		cropXStart = (newW - cropW) / 2
	}
	cropYStart := 0
	if newH > cropH {
		cropYStart = (newH - cropH) / 2
	}

	numPixels := cropH * cropW
	out := make([]byte, numPixels*3*precision.ByteWidth())

	if precision == FP16 {
		planeR := make([]uint16, numPixels)
		planeG := make([]uint16, numPixels)
		planeB := make([]uint16, numPixels)
		for y := 0; y < cropH; y++ {
			for x := 0; x < cropW; x++ {
				if x+cropXStart >= newW || y+cropYStart >= newH {
					continue
				}
				srcXF := float32(x+cropXStart) / scaleX
				srcYF := float32(y+cropYStart) / scaleY
				srcX := clampInt(int(math.Floor(float64(srcXF))), 0, frame.Width-1)
				srcY := clampInt(int(math.Floor(float64(srcYF))), 0, frame.Height-1)
				srcIdx := (srcY*frame.Width + srcX) * 3
				dstIdx := y*cropW + x
				planeR[dstIdx] = imagenetLUT16[0][frame.Data[srcIdx]]
				planeG[dstIdx] = imagenetLUT16[1][frame.Data[srcIdx+1]]
				planeB[dstIdx] = imagenetLUT16[2][frame.Data[srcIdx+2]]
			}
		}
		writeU16Plane(out[0:numPixels*2], planeR)
		writeU16Plane(out[numPixels*2:numPixels*4], planeG)
		writeU16Plane(out[numPixels*4:numPixels*6], planeB)
		return out, nil
	}

	planeR := make([]float32, numPixels)
	planeG := make([]float32, numPixels)
	planeB := make([]float32, numPixels)
	for y := 0; y < cropH; y++ {
		for x := 0; x < cropW; x++ {
			if x+cropXStart >= newW || y+cropYStart >= newH {
				continue
			}
			srcXF := float32(x+cropXStart) / scaleX
			srcYF := float32(y+cropYStart) / scaleY
			srcX := clampInt(int(math.Floor(float64(srcXF))), 0, frame.Width-1)
			srcY := clampInt(int(math.Floor(float64(srcYF))), 0, frame.Height-1)
			srcIdx := (srcY*frame.Width + srcX) * 3
			dstIdx := y*cropW + x
			planeR[dstIdx] = imagenetLUT32[0][frame.Data[srcIdx]]
			planeG[dstIdx] = imagenetLUT32[1][frame.Data[srcIdx+1]]
			planeB[dstIdx] = imagenetLUT32[2][frame.Data[srcIdx+2]]
		}
	}
	writeF32Plane(out[0:numPixels*4], planeR)
	writeF32Plane(out[numPixels*4:numPixels*8], planeG)
	writeF32Plane(out[numPixels*8:numPixels*12], planeB)
	return out, nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PostprocessEmbedding decodes N precision-packed scalars into an FP32
// embedding vector (§4.1.6).
func PostprocessEmbedding(raw []byte, n int, precision Precision) (EmbeddingVector, error) {
	expected := n * precision.ByteWidth()
	if len(raw) != expected {
		return EmbeddingVector{}, fmt.Errorf("%w: got %d bytes, expected %d for %d %s scalars", ErrInvalidShape, len(raw), expected, n, precision)
	}

	out := make([]float32, n)
	if precision == FP16 {
		ensureLUTs()
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint16(raw[i*2:])
			out[i] = DecodeFP16(bits)
		}
	} else {
		for i := 0; i < n; i++ {
			bits := binary.LittleEndian.Uint32(raw[i*4:])
			out[i] = math.Float32frombits(bits)
		}
	}
	return EmbeddingVector{Data: out}, nil
}
