package codec

import "sync"

// Process-wide, immutable-once-initialized lookup tables (§5, §9 Design Notes).
// Initialized lazily on first use of the codec package so that tests and
// callers that never touch the codec never pay the table-build cost.
var (
	lutOnce sync.Once

	// f16EncodeLUT maps a quantized float in [-4, +4] to its binary16 bit
	// pattern. Index i corresponds to the float value
	// -4 + i*(8/32767). Out-of-range callers must clamp before indexing;
	// EncodeFP16Clamped below does this.
	f16EncodeLUT [32768]uint16

	// f16DecodeLUT maps every possible binary16 bit pattern to its float32
	// value, honoring denormals and +/-Inf/NaN.
	f16DecodeLUT [65536]float32

	// pixelLUT32/pixelLUT16 map a u8 pixel value to its YOLO-normalized
	// (v/255) value in FP32 / FP16.
	pixelLUT32 [256]float32
	pixelLUT16 [256]uint16

	// imagenetLUT32/imagenetLUT16 map a u8 pixel value, per channel, to its
	// ImageNet-normalized ((v/255 - mean_c) / std_c) value.
	imagenetLUT32 [3][256]float32
	imagenetLUT16 [3][256]uint16
)

// ImageNet normalization constants (§4.1.3).
var (
	imagenetMean = [3]float32{0.485, 0.456, 0.406}
	imagenetStd  = [3]float32{0.229, 0.224, 0.225}
)

const padGrayColor = 114

// ensureLUTs builds every table exactly once, process-wide.
func ensureLUTs() {
	lutOnce.Do(func() {
		const encodeN = 32768
		for i := 0; i < encodeN; i++ {
			f := -4.0 + float32(i)*(8.0/(encodeN-1))
			f16EncodeLUT[i] = fp16FromFloat32(f)
		}
		for i := 0; i < 65536; i++ {
			f16DecodeLUT[i] = fp16ToFloat32(uint16(i))
		}
		for v := 0; v < 256; v++ {
			norm := float32(v) / 255.0
			pixelLUT32[v] = norm
			pixelLUT16[v] = fp16FromFloat32(clampToFP16Range(norm))
			for c := 0; c < 3; c++ {
				n := (norm - imagenetMean[c]) / imagenetStd[c]
				imagenetLUT32[c][v] = n
				imagenetLUT16[c][v] = fp16FromFloat32(clampToFP16Range(n))
			}
		}
	})
}

func clampToFP16Range(f float32) float32 {
	if f < -4 {
		return -4
	}
	if f > 4 {
		return 4
	}
	return f
}

// EncodeFP16Clamped encodes f as binary16 via the process-wide LUT, clamping
// to [-4, +4] first (§4.1.4).
func EncodeFP16Clamped(f float32) uint16 {
	ensureLUTs()
	if f != f {
		return 0x7E00 // NaN
	}
	f = clampToFP16Range(f)
	idx := int((f + 4) * (32767.0 / 8.0))
	if idx < 0 {
		idx = 0
	}
	if idx > 32767 {
		idx = 32767
	}
	return f16EncodeLUT[idx]
}

// DecodeFP16 decodes a binary16 bit pattern to float32 via the process-wide
// decode table.
func DecodeFP16(h uint16) float32 {
	ensureLUTs()
	return f16DecodeLUT[h]
}
