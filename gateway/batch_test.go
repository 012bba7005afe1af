package gateway

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/n0remac/videoinfer/codec"
	"github.com/n0remac/videoinfer/gateway/triton"
)

// outOfOrderConn is a fake grpcConn whose ModelInfer handler echoes back one
// FP32 scalar per input sample (the first byte of that sample, widened),
// after sleeping an amount inversely related to call order: the first
// chunk dispatched sleeps longest, so chunks that start later finish
// first. This exercises the out-of-order completion path InferBatch must
// reassemble correctly.
type outOfOrderConn struct {
	mu       sync.Mutex
	seen     int
	perElem  int
}

func (f *outOfOrderConn) Invoke(ctx context.Context, method string, args, reply interface{}, opts ...grpc.CallOption) error {
	req := args.(*triton.ModelInferRequest)
	resp := reply.(*triton.ModelInferResponse)

	f.mu.Lock()
	order := f.seen
	f.seen++
	f.mu.Unlock()

	// Earlier-dispatched chunks sleep longer, forcing later chunks to
	// complete first.
	time.Sleep(time.Duration(3-order) * 20 * time.Millisecond)

	batchSize := int(req.Inputs[0].Shape[0])
	sampleInLen := len(req.RawInputContents[0]) / batchSize

	out := make([]byte, 0, batchSize*f.perElem)
	for i := 0; i < batchSize; i++ {
		marker := req.RawInputContents[0][i*sampleInLen]
		buf := make([]byte, f.perElem)
		binary.LittleEndian.PutUint32(buf, uint32(marker))
		out = append(out, buf...)
	}
	resp.RawOutputContents = [][]byte{out}
	return nil
}

func (f *outOfOrderConn) NewStream(ctx context.Context, desc *grpc.StreamDesc, method string, opts ...grpc.CallOption) (grpc.ClientStream, error) {
	return nil, assert.AnError
}

func (f *outOfOrderConn) Close() error { return nil }

func TestInferBatchPreservesOrderUnderOutOfOrderCompletion(t *testing.T) {
	spec := ModelSpec{
		InputName:   "input",
		InputShape:  [3]int64{1, 1, 1},
		OutputName:  "output",
		OutputShape: []int64{1},
		Precision:   codec.FP32,
		BatchMax:    1, // force one sample per chunk so every chunk races independently
	}

	conn := &outOfOrderConn{perElem: spec.OutputByteLen()}
	c := &Client{
		conn: conn,
		spec: spec,
		log:  logrus.NewEntry(logrus.StandardLogger()),
		template: triton.ModelInferRequest{
			ModelName: spec.ModelName,
			Inputs:    []triton.InferInputTensor{{Name: spec.InputName, Datatype: spec.Precision.String()}},
			Outputs:   []triton.InferRequestedOutputTensor{{Name: spec.OutputName}},
		},
	}

	inputs := make([][]byte, 4)
	for i := range inputs {
		inputs[i] = []byte{byte(i)}
	}

	results, err := c.InferBatch(context.Background(), inputs)
	require.NoError(t, err)
	require.Len(t, results, len(inputs))

	for i, out := range results {
		require.Len(t, out, spec.OutputByteLen())
		assert.Equal(t, uint32(i), binary.LittleEndian.Uint32(out), "chunk %d result out of order", i)
	}
}

func TestInferBatchEmptyInputsShortCircuits(t *testing.T) {
	c := &Client{spec: ModelSpec{BatchMax: 4}}
	results, err := c.InferBatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Nil(t, results)
}
