// Package config loads the single YAML configuration document described in
// spec.md §6: sources_config, triton_config, kafka_config,
// inference_config.models.
//
// Grounded on original_source/client-triton/client/src/utils/config.rs
// (AppConfig, SourcesConfig, SourceConfig/SourceConfigOptional merge logic,
// InferenceConfig), rendered with gopkg.in/yaml.v3 in place of serde_yaml.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfig holds the per-source overrides of §3 SourceConfig.
type SourceConfig struct {
	InferenceStride   int     `yaml:"inference_stride"`
	ConfidenceThreshold float32 `yaml:"confidence_threshold"`
	NMSIoUThreshold   float32 `yaml:"nms_iou_threshold"`
}

// SourceConfigOptional is a partial per-source override; unset fields fall
// back to SourcesConfig.Default.
type SourceConfigOptional struct {
	InferenceStride     *int     `yaml:"inference_stride"`
	ConfidenceThreshold *float32 `yaml:"confidence_threshold"`
	NMSIoUThreshold     *float32 `yaml:"nms_iou_threshold"`
}

// SourcesConfig lists the configured source ids and their settings.
type SourcesConfig struct {
	IDs     []string                         `yaml:"ids"`
	Default SourceConfig                     `yaml:"default"`
	Custom  map[string]SourceConfigOptional `yaml:"custom"`
}

// TritonConfig points at the inference gateway.
type TritonConfig struct {
	Endpoint  string `yaml:"endpoint"`
	ModelsDir string `yaml:"models_dir"`
}

// KafkaConfig points at the downstream event bus. The field names follow
// spec.md §6 verbatim ("kafka_config (brokers, topics)"). These fields are
// parsed but read nowhere else in this repo: results go to
// publish.WebSocketSink, which has no broker or topic setting and ignores
// the publish key.
type KafkaConfig struct {
	Brokers        string `yaml:"brokers"`
	TopicBBoxes    string `yaml:"topic_bboxes"`
	TopicEmbedding string `yaml:"topic_embedding"`
}

// ModelConfig is one entry of inference_config.models (§3 ModelSpec, §6).
type ModelConfig struct {
	Name                 string  `yaml:"name"`
	Kind                 string  `yaml:"kind"` // "detection" | "embedding"
	Precision            string  `yaml:"precision"` // "FP32" | "FP16"
	InputName            string  `yaml:"input_name"`
	InputShape           [3]int64 `yaml:"input_shape"`
	OutputName           string  `yaml:"output_name"`
	OutputShape          []int64 `yaml:"output_shape"`
	BatchMaxSize         int     `yaml:"batch_max_size"`
	BatchPreferredSizes  []int   `yaml:"batch_preferred_sizes"`
	BatchMaxQueueDelayUS int     `yaml:"batch_max_queue_delay_us"`
}

// InferenceConfig carries the configured models plus the NEW tuning hooks
// (SPEC_FULL.md §4.5, §9 debug snapshots).
type InferenceConfig struct {
	Models                map[string]ModelConfig `yaml:"models"`
	AutoscalePolicy       string                 `yaml:"autoscale_policy"` // "conservative" (default) | "load_aware"
	DebugSnapshotDir      string                 `yaml:"debug_snapshot_dir"`
	DebugSnapshotEveryNth int                    `yaml:"debug_snapshot_every_nth"`
}

// Config is the top-level configuration document (§6).
type Config struct {
	SourcesConfig   SourcesConfig   `yaml:"sources_config"`
	TritonConfig    TritonConfig    `yaml:"triton_config"`
	KafkaConfig     KafkaConfig     `yaml:"kafka_config"`
	InferenceConfig InferenceConfig `yaml:"inference_config"`
}

// Load reads and parses the YAML configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.SourcesConfig.IDs) == 0 {
		return fmt.Errorf("config: sources_config.ids must not be empty")
	}
	if c.TritonConfig.Endpoint == "" {
		return fmt.Errorf("config: triton_config.endpoint is required")
	}
	if len(c.InferenceConfig.Models) == 0 {
		return fmt.Errorf("config: inference_config.models must not be empty")
	}
	return nil
}

// ResolvedSourceConfig merges SourcesConfig.Default with any custom
// override for sourceID, clamping out-of-range overrides back to the
// default exactly as the original client does (inf_frame in [1,30],
// thresholds in [0,1]) rather than rejecting the whole document.
func (c *Config) ResolvedSourceConfig(sourceID string) SourceConfig {
	resolved := c.SourcesConfig.Default
	override, ok := c.SourcesConfig.Custom[sourceID]
	if !ok {
		return resolved
	}

	if override.InferenceStride != nil && *override.InferenceStride >= 1 && *override.InferenceStride <= 30 {
		resolved.InferenceStride = *override.InferenceStride
	}
	if override.ConfidenceThreshold != nil && *override.ConfidenceThreshold >= 0 && *override.ConfidenceThreshold <= 1 {
		resolved.ConfidenceThreshold = *override.ConfidenceThreshold
	}
	if override.NMSIoUThreshold != nil && *override.NMSIoUThreshold >= 0 && *override.NMSIoUThreshold <= 1 {
		resolved.NMSIoUThreshold = *override.NMSIoUThreshold
	}
	return resolved
}
