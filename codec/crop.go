package codec

import "fmt"

// CropToBox crops frame to the rectangle enclosing box, clamped to frame
// bounds, returning ErrInvalidShape if the clamped rectangle is degenerate
// (§4.1.3's optional bounding-box crop path for embedding models).
func CropToBox(frame RawFrame, box DetectionBox) (RawFrame, error) {
	x1 := clampInt(int(box.X1), 0, frame.Width)
	y1 := clampInt(int(box.Y1), 0, frame.Height)
	x2 := clampInt(int(box.X2), 0, frame.Width)
	y2 := clampInt(int(box.Y2), 0, frame.Height)

	w, h := x2-x1, y2-y1
	if w <= 0 || h <= 0 {
		return RawFrame{}, fmt.Errorf("%w: degenerate crop box (%d,%d)-(%d,%d) against frame %dx%d", ErrInvalidShape, x1, y1, x2, y2, frame.Width, frame.Height)
	}

	out := make([]byte, w*h*3)
	for row := 0; row < h; row++ {
		srcOff := ((y1+row)*frame.Width + x1) * 3
		dstOff := row * w * 3
		copy(out[dstOff:dstOff+w*3], frame.Data[srcOff:srcOff+w*3])
	}

	return RawFrame{
		Data:   out,
		Height: h,
		Width:  w,
		PTS:    frame.PTS,
	}, nil
}
