package codec

// Letterbox holds the geometry of a letterbox resize (§4.1.1): the
// aspect-ratio-preserving resize of a (height, width) source image into a
// target x target square, padded with a constant gray color.
type Letterbox struct {
	Scale    float32
	InvScale float32
	NewW     int
	NewH     int
	PadX     int
	PadY     int
}

// CalculateLetterbox computes the letterbox geometry for resizing a
// height x width source image into a target x target square.
func CalculateLetterbox(height, width, target int) Letterbox {
	maxDim := float32(height)
	if width > height {
		maxDim = float32(width)
	}
	scale := float32(target) / maxDim
	newW := int(float32(width) * scale)
	newH := int(float32(height) * scale)
	if newW > target {
		newW = target
	}
	if newH > target {
		newH = target
	}
	padX := (target - newW) / 2
	padY := (target - newH) / 2

	return Letterbox{
		Scale:    scale,
		InvScale: 1.0 / scale,
		NewW:     newW,
		NewH:     newH,
		PadX:     padX,
		PadY:     padY,
	}
}
