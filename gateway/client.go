// Package gateway implements the Inference Gateway Client (§4.2): one
// instance per configured model, holding a long-lived gRPC connection to
// the remote tensor-serving process and an immutable, pre-templated
// request body.
//
// Grounded on original_source/client-triton/client/src/inference.rs
// (InferenceModel::new/load_model/infer) for the request/response shapes,
// and on the teacher's client/client.go gRPC-dialing idiom
// (grpc.NewClient + insecure transport credentials) for the transport.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/n0remac/videoinfer/gateway/triton"
	"github.com/n0remac/videoinfer/telemetry"
)

// TelemetryInterval is the fixed cadence of the background GPU telemetry
// task (§4.2).
const TelemetryInterval = 10 * time.Second

// grpcConn is the subset of *grpc.ClientConn this package depends on,
// narrowed to an interface so tests can substitute a fake gateway without a
// real Triton server (grpc.ClientConnInterface is the same interface
// *grpc.ClientConn.Invoke satisfies in the real google.golang.org/grpc
// package).
type grpcConn interface {
	grpc.ClientConnInterface
	Close() error
}

// Client is a long-lived connection to the serving process for one
// configured model (§3 GatewayClient).
type Client struct {
	conn grpcConn
	spec ModelSpec
	log  *logrus.Entry

	template triton.ModelInferRequest

	telemetryCancel context.CancelFunc
	telemetryDone   chan struct{}
}

// New connects to target, verifies server readiness, and precomputes the
// immutable request template for spec (§4.2 "On construction").
func New(ctx context.Context, target string, spec ModelSpec, reporter telemetry.Reporter, log *logrus.Entry) (*Client, error) {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, target, err)
	}

	var liveResp triton.ServerLiveResponse
	if err := invoke(ctx, conn, triton.MethodServerLive, &triton.ServerLiveRequest{}, &liveResp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: server-live: %v", ErrUnavailable, err)
	}
	if !liveResp.Live {
		conn.Close()
		return nil, fmt.Errorf("%w: server not live", ErrUnavailable)
	}

	var readyResp triton.ServerReadyResponse
	if err := invoke(ctx, conn, triton.MethodServerReady, &triton.ServerReadyRequest{}, &readyResp); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: server-ready: %v", ErrUnavailable, err)
	}
	if !readyResp.Ready {
		conn.Close()
		return nil, fmt.Errorf("%w: server not ready", ErrUnavailable)
	}

	batchShape := make([]int64, 0, 4)
	batchShape = append(batchShape, 1)
	batchShape = append(batchShape, spec.InputShape[:]...)

	template := triton.ModelInferRequest{
		ModelName:    spec.ModelName,
		ModelVersion: spec.ModelVersion,
		Inputs: []triton.InferInputTensor{{
			Name:     spec.InputName,
			Datatype: spec.Precision.String(),
			Shape:    batchShape,
		}},
		Outputs: []triton.InferRequestedOutputTensor{{Name: spec.OutputName}},
	}

	entry := log
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	entry = entry.WithField("model", spec.ModelName)

	c := &Client{
		conn:     conn,
		spec:     spec,
		log:      entry,
		template: template,
	}

	telemetryCtx, cancel := context.WithCancel(context.Background())
	c.telemetryCancel = cancel
	c.telemetryDone = make(chan struct{})
	if reporter == nil {
		reporter = telemetry.LoggingReporter{}
	}
	go func() {
		defer close(c.telemetryDone)
		telemetry.Run(telemetryCtx, entry, reporter, TelemetryInterval, spec.ModelName)
	}()

	return c, nil
}

// Load sends a load request describing the full model configuration
// document (§4.2 load(instances)).
func (c *Client) Load(ctx context.Context, instances int) error {
	cfg := c.buildModelConfig(instances)
	parameters, err := marshalConfigParameter(cfg)
	if err != nil {
		return fmt.Errorf("%w: marshal model config: %v", ErrUnavailable, err)
	}

	req := &triton.RepositoryModelLoadRequest{
		ModelName:  c.spec.ModelName,
		Parameters: parameters,
	}
	var resp triton.RepositoryModelLoadResponse
	if err := invoke(ctx, c.conn, triton.MethodRepositoryModelLoad, req, &resp); err != nil {
		return fmt.Errorf("%w: load model %s: %v", ErrUnavailable, c.spec.ModelName, err)
	}
	return nil
}

// Unload best-effort releases currently loaded instances; failures are
// logged and swallowed (§4.2 unload()).
func (c *Client) Unload(ctx context.Context) {
	req := &triton.RepositoryModelUnloadRequest{ModelName: c.spec.ModelName}
	var resp triton.RepositoryModelUnloadResponse
	if err := invoke(ctx, c.conn, triton.MethodRepositoryModelUnload, req, &resp); err != nil {
		c.log.WithError(err).Warn("unload failed, ignoring")
	}
}

// InferSingle reuses the request template, pushes one input blob, and
// returns the first raw output tensor (§4.2 infer_single).
func (c *Client) InferSingle(ctx context.Context, input []byte) ([]byte, error) {
	req := c.template
	req.RawInputContents = [][]byte{input}

	var resp triton.ModelInferResponse
	if err := invoke(ctx, c.conn, triton.MethodModelInfer, &req, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInferenceFailed, err)
	}
	if len(resp.RawOutputContents) == 0 {
		return nil, fmt.Errorf("%w: empty raw_output_contents", ErrInvalidShape)
	}
	out := resp.RawOutputContents[0]
	if expected := c.spec.OutputByteLen(); len(out) != expected {
		return nil, fmt.Errorf("%w: got %d output bytes, expected %d", ErrInvalidShape, len(out), expected)
	}
	return out, nil
}

// Close cancels the background telemetry task and tears down the
// connection (§5 Cancellation: "Dropping a gateway client cancels its
// telemetry task").
func (c *Client) Close() error {
	c.telemetryCancel()
	<-c.telemetryDone
	return c.conn.Close()
}

func (c *Client) buildModelConfig(instances int) triton.ModelConfig {
	dtype := "TYPE_" + c.spec.Precision.String()
	warmupDims := c.spec.InputShape[:]

	preferred := c.spec.BatchPreferredSizes
	if len(preferred) == 0 {
		preferred = []int{c.spec.BatchMax}
	}

	return triton.ModelConfig{
		Name:         c.spec.ModelName,
		Platform:     "tensorrt_plan",
		MaxBatchSize: c.spec.BatchMax,
		Input: []triton.ModelIOSpec{{
			Name:     c.spec.InputName,
			DataType: dtype,
			Dims:     c.spec.InputShape[:],
		}},
		Output: []triton.ModelIOSpec{{
			Name:     c.spec.OutputName,
			DataType: dtype,
			Dims:     c.spec.OutputShape,
		}},
		InstanceGroup: []triton.InstanceGroup{{
			Kind:  "KIND_GPU",
			Count: instances,
			GPUs:  []int{0},
		}},
		DynamicBatching: triton.DynamicBatchingSpec{
			MaxQueueDelayMicroseconds: c.spec.BatchQueueDelayUS,
			PreferredBatchSize:        preferred,
			PreserveOrdering:          false,
		},
		Optimization: triton.OptimizationSpec{
			InputPinnedMemory:  triton.PinnedMemorySpec{Enable: true},
			OutputPinnedMemory: triton.PinnedMemorySpec{Enable: true},
		},
		TransactionPolicy: triton.ModelTransactionPolicy{Decoupled: false},
		Warmup: []triton.ModelWarmupEntry{{
			Name:      "warmup_random",
			BatchSize: c.spec.BatchMax,
			Inputs: map[string]triton.ModelWarmupInput{
				c.spec.InputName: {
					Dims:       warmupDims,
					DataType:   dtype,
					RandomData: true,
				},
			},
		}},
	}
}

func invoke(ctx context.Context, conn grpc.ClientConnInterface, method string, req, resp interface{}) error {
	return conn.Invoke(ctx, triton.Method(method), req, resp, grpc.CallContentSubtype(triton.Name))
}

func marshalConfigParameter(cfg triton.ModelConfig) (map[string]string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	return map[string]string{"config": string(data)}, nil
}
