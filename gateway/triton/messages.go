// Package triton defines the wire types and transport codec for talking to
// a Triton Inference Server-compatible tensor-serving gateway over gRPC
// (§6 "Gateway wire protocol"). The service name and RPC method names below
// match the real Triton KServe v2 gRPC service, inference.GRPCInferenceService,
// as called by the original Rust client's triton_client::Client
// (original_source/client-triton/client/src/inference.rs).
//
// Because this repository is never run through protoc, the messages here
// are plain Go structs carrying json tags rather than generated
// protobuf.Message types; jsonCodec (see codec.go) lets *grpc.ClientConn invoke
// RPCs against them directly over real gRPC/HTTP2 framing.
package triton

const ServiceName = "inference.GRPCInferenceService"

// Method is a fully qualified gRPC method name on ServiceName.
func Method(name string) string {
	return "/" + ServiceName + "/" + name
}

// Well-known method names, matching the Triton KServe v2 gRPC API.
const (
	MethodServerLive           = "ServerLive"
	MethodServerReady          = "ServerReady"
	MethodModelInfer           = "ModelInfer"
	MethodRepositoryModelLoad  = "RepositoryModelLoad"
	MethodRepositoryModelUnload = "RepositoryModelUnload"
)

type ServerLiveRequest struct{}

type ServerLiveResponse struct {
	Live bool `json:"live"`
}

type ServerReadyRequest struct{}

type ServerReadyResponse struct {
	Ready bool `json:"ready"`
}

// InferInputTensor describes one named input of a ModelInferRequest.
type InferInputTensor struct {
	Name     string `json:"name"`
	Datatype string `json:"datatype"`
	Shape    []int64 `json:"shape"`
	// Contents is omitted; the raw bytes travel in RawInputContents so that
	// the wire contract of §6 ("raw_input_contents byte array") holds.
}

// InferRequestedOutputTensor names one output the caller wants back.
type InferRequestedOutputTensor struct {
	Name string `json:"name"`
}

// ModelInferRequest is the request body of the ModelInfer RPC.
type ModelInferRequest struct {
	ModelName        string                       `json:"model_name"`
	ModelVersion     string                       `json:"model_version"`
	ID               string                       `json:"id"`
	Inputs           []InferInputTensor           `json:"inputs"`
	Outputs          []InferRequestedOutputTensor `json:"outputs"`
	RawInputContents [][]byte                     `json:"raw_input_contents"`
}

// ModelInferResponse is the response body of the ModelInfer RPC.
type ModelInferResponse struct {
	ModelName         string   `json:"model_name"`
	ModelVersion      string   `json:"model_version"`
	ID                string   `json:"id"`
	RawOutputContents [][]byte `json:"raw_output_contents"`
}

// ModelConfig is the JSON document describing how a model should be loaded,
// matching Triton's model configuration protobuf shape closely enough to
// round-trip through RepositoryModelLoadRequest's string parameter (§4.2).
type ModelConfig struct {
	Name            string               `json:"name"`
	Platform        string               `json:"platform"`
	MaxBatchSize    int                  `json:"max_batch_size"`
	Input           []ModelIOSpec        `json:"input"`
	Output          []ModelIOSpec        `json:"output"`
	InstanceGroup   []InstanceGroup      `json:"instance_group"`
	DynamicBatching DynamicBatchingSpec  `json:"dynamic_batching"`
	Optimization    OptimizationSpec     `json:"optimization"`
	TransactionPolicy ModelTransactionPolicy `json:"model_transaction_policy"`
	Warmup          []ModelWarmupEntry   `json:"model_warmup"`
}

type ModelIOSpec struct {
	Name     string  `json:"name"`
	DataType string  `json:"data_type"`
	Dims     []int64 `json:"dims"`
}

type InstanceGroup struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
	GPUs  []int  `json:"gpus"`
}

type DynamicBatchingSpec struct {
	MaxQueueDelayMicroseconds int   `json:"max_queue_delay_microseconds"`
	PreferredBatchSize        []int `json:"preferred_batch_size"`
	PreserveOrdering          bool  `json:"preserve_ordering"`
}

type PinnedMemorySpec struct {
	Enable bool `json:"enable"`
}

type OptimizationSpec struct {
	InputPinnedMemory  PinnedMemorySpec `json:"input_pinned_memory"`
	OutputPinnedMemory PinnedMemorySpec `json:"output_pinned_memory"`
}

type ModelTransactionPolicy struct {
	Decoupled bool `json:"decoupled"`
}

type ModelWarmupInput struct {
	Dims       []int64 `json:"dims"`
	DataType   string  `json:"data_type"`
	RandomData bool    `json:"random_data"`
}

type ModelWarmupEntry struct {
	Name      string                      `json:"name"`
	BatchSize int                         `json:"batch_size"`
	Inputs    map[string]ModelWarmupInput `json:"inputs"`
}

// RepositoryModelLoadRequest loads (or reloads) a model with an explicit
// configuration override (§4.2 load(instances)).
type RepositoryModelLoadRequest struct {
	ModelName  string            `json:"model_name"`
	Parameters map[string]string `json:"parameters"`
}

type RepositoryModelLoadResponse struct{}

// RepositoryModelUnloadRequest unloads a model (§4.2 unload()).
type RepositoryModelUnloadRequest struct {
	ModelName string `json:"model_name"`
}

type RepositoryModelUnloadResponse struct{}
