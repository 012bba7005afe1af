// Package debugsnap is an optional, config-gated diagnostic feature not
// present in spec.md: every Nth processed frame of a source, draw its
// surviving detection boxes and write a JPEG snapshot to disk. It sits
// strictly downstream of the codec (it consumes a codec.RawFrame plus the
// already-decoded []codec.DetectionBox) so it cannot affect any codec
// invariant.
//
// Grounded on the teacher's cvpipe/pipeline.go and detect.go, which build a
// gocv.Mat directly from a raw BGR byte buffer (gocv.NewMatFromBytes),
// draw detection rectangles with gocv.Rectangle, and manage Mat lifetimes
// with explicit Close() calls.
package debugsnap

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"sync/atomic"

	"gocv.io/x/gocv"

	"github.com/n0remac/videoinfer/codec"
)

// boxColor matches the teacher's detect.go rectangle color convention.
var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}

// Snapshotter writes an annotated JPEG for every Nth frame of a source.
type Snapshotter struct {
	dir        string
	everyNth   int64
	frameCount int64
}

// New constructs a Snapshotter writing into dir, sampling every Nth
// processed frame. everyNth < 1 is treated as 1 (snapshot every frame).
func New(dir string, everyNth int) *Snapshotter {
	if everyNth < 1 {
		everyNth = 1
	}
	return &Snapshotter{dir: dir, everyNth: int64(everyNth)}
}

// Capture draws boxes onto frame and writes a JPEG to
// "<dir>/<sourceID>-<pts>.jpg" if this call lands on the sampling stride;
// otherwise it is a no-op. frame.Data must be RGB8 interleaved, H*W*3
// bytes, matching codec.RawFrame's contract.
func (s *Snapshotter) Capture(sourceID string, frame codec.RawFrame, boxes []codec.DetectionBox) error {
	n := atomic.AddInt64(&s.frameCount, 1)
	if n%s.everyNth != 0 {
		return nil
	}

	mat, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Data)
	if err != nil {
		return fmt.Errorf("debugsnap: frame to mat: %w", err)
	}
	defer mat.Close()

	gocv.CvtColor(mat, &mat, gocv.ColorRGBToBGR)

	for _, b := range boxes {
		rect := image.Rect(int(b.X1), int(b.Y1), int(b.X2), int(b.Y2))
		gocv.Rectangle(&mat, rect, boxColor, 2)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("%s-%d.jpg", sourceID, frame.PTS))
	if ok := gocv.IMWrite(path, mat); !ok {
		return fmt.Errorf("debugsnap: imwrite %s failed", path)
	}
	return nil
}
