package gateway

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/n0remac/videoinfer/gateway/triton"
)

// InferBatch splits inputs into chunks of at most spec.BatchMax, submits
// each chunk concurrently (fan-out, join-all), and deconcatenates outputs
// by the precomputed per-sample output byte length. Output order always
// matches input order regardless of which chunk completes first (§4.2,
// §5 "Ordering guarantees").
func (c *Client) InferBatch(ctx context.Context, inputs [][]byte) ([][]byte, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	batchMax := c.spec.BatchMax
	if batchMax <= 0 {
		batchMax = 1
	}

	numChunks := (len(inputs) + batchMax - 1) / batchMax
	chunkOutputs := make([][][]byte, numChunks)

	g, gctx := errgroup.WithContext(ctx)
	for chunkIdx := 0; chunkIdx < numChunks; chunkIdx++ {
		chunkIdx := chunkIdx
		start := chunkIdx * batchMax
		end := start + batchMax
		if end > len(inputs) {
			end = len(inputs)
		}
		chunk := inputs[start:end]

		g.Go(func() error {
			out, err := c.inferChunk(gctx, chunk)
			if err != nil {
				return err
			}
			chunkOutputs[chunkIdx] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results := make([][]byte, 0, len(inputs))
	for _, chunk := range chunkOutputs {
		results = append(results, chunk...)
	}
	return results, nil
}

func (c *Client) inferChunk(ctx context.Context, chunk [][]byte) ([][]byte, error) {
	batchSize := len(chunk)
	concatenated := make([]byte, 0)
	for _, sample := range chunk {
		concatenated = append(concatenated, sample...)
	}

	req := c.template
	batchShape := make([]int64, 0, len(req.Inputs[0].Shape))
	batchShape = append(batchShape, int64(batchSize))
	batchShape = append(batchShape, c.spec.InputShape[:]...)
	req.Inputs = []triton.InferInputTensor{{
		Name:     c.spec.InputName,
		Datatype: c.spec.Precision.String(),
		Shape:    batchShape,
	}}
	req.RawInputContents = [][]byte{concatenated}

	var resp triton.ModelInferResponse
	if err := invoke(ctx, c.conn, triton.MethodModelInfer, &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	if len(resp.RawOutputContents) == 0 {
		return nil, fmt.Errorf("%w: empty raw_output_contents", ErrInvalidShape)
	}

	raw := resp.RawOutputContents[0]
	perSample := c.spec.OutputByteLen()
	expected := perSample * batchSize
	if len(raw) != expected {
		return nil, fmt.Errorf("%w: got %d batch output bytes, expected %d (%d samples x %d)", ErrInvalidShape, len(raw), expected, batchSize, perSample)
	}

	out := make([][]byte, batchSize)
	for i := 0; i < batchSize; i++ {
		out[i] = raw[i*perSample : (i+1)*perSample]
	}
	return out, nil
}
