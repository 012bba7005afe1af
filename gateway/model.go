package gateway

import "github.com/n0remac/videoinfer/codec"

// ModelKind distinguishes the two supported model architectures (§1
// Non-goals: detection and embedding only).
type ModelKind int

const (
	Detection ModelKind = iota
	Embedding
)

func (k ModelKind) String() string {
	if k == Embedding {
		return "embedding"
	}
	return "detection"
}

// ModelSpec is the immutable-after-load model configuration (§3 ModelSpec).
type ModelSpec struct {
	Kind                ModelKind
	ModelName           string
	ModelVersion        string
	InputName           string
	InputShape          [3]int64 // C, H, W
	OutputName          string
	OutputShape         []int64
	Precision           codec.Precision
	BatchMax            int
	BatchPreferredSizes []int
	BatchQueueDelayUS   int
}

// OutputElemCount returns the product of OutputShape, i.e. the number of
// scalars one sample's output tensor carries.
func (m ModelSpec) OutputElemCount() int64 {
	n := int64(1)
	for _, d := range m.OutputShape {
		n *= d
	}
	return n
}

// OutputByteLen returns the per-sample output byte length (§4.2: "Per-sample
// output byte length = Π(output_shape) · sizeof(precision)").
func (m ModelSpec) OutputByteLen() int {
	return int(m.OutputElemCount()) * m.Precision.ByteWidth()
}
