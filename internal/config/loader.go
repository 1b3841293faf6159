package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// File holds optional settings read from a config file.
// Zero values mean "unspecified" and are replaced during Resolve.
type File struct {
	GatewayPort    int      `json:"gateway_port" yaml:"gateway_port" toml:"gateway_port"`
	BackendPort    int      `json:"backend_port" yaml:"backend_port" toml:"backend_port"`
	BackendBaseURL string   `json:"backend_base_url" yaml:"backend_base_url" toml:"backend_base_url"`
	BackendBin     string   `json:"backend_bin" yaml:"backend_bin" toml:"backend_bin"`
	ExtraArgs      []string `json:"extra_args" yaml:"extra_args" toml:"extra_args"`

	ModelRepo string `json:"model_repo" yaml:"model_repo" toml:"model_repo"`
	CacheDir  string `json:"cache_dir" yaml:"cache_dir" toml:"cache_dir"`

	MaxModelLen          int     `json:"max_model_len" yaml:"max_model_len" toml:"max_model_len"`
	GPUMemoryUtilization float64 `json:"gpu_memory_utilization" yaml:"gpu_memory_utilization" toml:"gpu_memory_utilization"`
	Dtype                string  `json:"dtype" yaml:"dtype" toml:"dtype"`
	MaxNumSeqs           int     `json:"max_num_seqs" yaml:"max_num_seqs" toml:"max_num_seqs"`

	// CompileLevel is a pointer so an explicit 0 (warm-up disabled) can be
	// told apart from "unspecified".
	CompileLevel *int `json:"compile_level" yaml:"compile_level" toml:"compile_level"`

	SecretSource string `json:"secret_source" yaml:"secret_source" toml:"secret_source"`
	SecretName   string `json:"secret_name" yaml:"secret_name" toml:"secret_name"`
	HealthPath   string `json:"health_path" yaml:"health_path" toml:"health_path"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (File, error) {
	var cfg File
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
