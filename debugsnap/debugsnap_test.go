package debugsnap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0remac/videoinfer/codec"
)

// solidFrame builds a w x h RGB8 frame filled with a single gray value, big
// enough for gocv.NewMatFromBytes to accept.
func solidFrame(w, h int) codec.RawFrame {
	data := make([]byte, w*h*3)
	for i := range data {
		data[i] = 128
	}
	return codec.RawFrame{Data: data, Width: w, Height: h, PTS: 1}
}

func TestNewClampsEveryNth(t *testing.T) {
	s := New(t.TempDir(), 0)
	assert.Equal(t, int64(1), s.everyNth)

	s = New(t.TempDir(), -5)
	assert.Equal(t, int64(1), s.everyNth)

	s = New(t.TempDir(), 10)
	assert.Equal(t, int64(10), s.everyNth)
}

func TestCaptureSamplesEveryNthFrame(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 3)
	frame := solidFrame(8, 8)
	boxes := []codec.DetectionBox{{X1: 1, Y1: 1, X2: 4, Y2: 4, ClassID: 0, Score: 0.9}}

	for i := uint64(1); i <= 3; i++ {
		frame.PTS = i
		require.NoError(t, s.Capture("cam-1", frame, boxes))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cam-1-3.jpg", entries[0].Name())
}

func TestCaptureRejectsDegenerateFrame(t *testing.T) {
	s := New(t.TempDir(), 1)
	frame := codec.RawFrame{Data: []byte{1, 2, 3}, Width: 0, Height: 0, PTS: 1}
	err := s.Capture("cam-1", frame, nil)
	assert.Error(t, err)
}

func TestCaptureWritesUnderConfiguredDir(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, 1)
	frame := solidFrame(4, 4)
	frame.PTS = 42
	require.NoError(t, s.Capture("cam-7", frame, nil))

	_, err := os.Stat(filepath.Join(dir, "cam-7-42.jpg"))
	assert.NoError(t, err)
}
