package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Defaults for every resolved field. Resolution order per field is
// environment variable -> config file value -> default.
const (
	DefaultGatewayPort  = 8000
	DefaultBackendPort  = 8080
	DefaultBackendBin   = "vllm"
	DefaultModelRepo    = "deepseek-ai/DeepSeek-R1-Distill-Qwen-1.5B"
	DefaultGPUMemUtil   = 0.95
	DefaultDtype        = "auto"
	DefaultMaxNumSeqs   = 256
	DefaultCompileLevel = 1
	DefaultSecretName   = "vllm-api-keys"
	DefaultHealthPath   = "/health"

	DefaultStartupTimeout = 180 * time.Second
	DefaultPollInterval   = 2 * time.Second
	DefaultWarmupTimeout  = 120 * time.Second
	DefaultProxyTimeout   = 300 * time.Second
	DefaultShutdownGrace  = 10 * time.Second
)

// Runtime is the immutable resolved configuration snapshot. It is created
// once at process start and passed by pointer; nothing mutates it afterwards.
type Runtime struct {
	GatewayAddr    string
	BackendHost    string
	BackendPort    int
	BackendBaseURL string
	BackendBin     string
	ExtraArgs      []string

	ModelRepo string
	ModelID   string
	ModelPath string

	MaxModelLen          int // 0 = let the backend decide
	GPUMemoryUtilization float64
	Dtype                string
	MaxNumSeqs           int

	CompileLevel  int
	WarmupEnabled bool

	SecretSource string
	SecretName   string
	HealthPath   string

	StartupTimeout time.Duration
	PollInterval   time.Duration
	WarmupTimeout  time.Duration
	ProxyTimeout   time.Duration
	ShutdownGrace  time.Duration
}

// LoadEnvFile loads KEY=VALUE pairs from an env file into the process
// environment without overriding variables that are already set. A missing
// file is not an error; the deployment may rely on real environment only.
func LoadEnvFile(path string, log zerolog.Logger) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("env file ignored")
		return
	}
	log.Info().Str("path", path).Msg("loaded env file")
}

// Resolve merges environment overrides over file values over defaults and
// returns the Runtime snapshot. It never fails: invalid values fall back to
// the next source and emit a warning.
func Resolve(cfg File, log zerolog.Logger) *Runtime {
	rt := &Runtime{
		BackendHost: "127.0.0.1",
	}

	rt.GatewayAddr = fmt.Sprintf(":%d", envInt(log, "PORT", pickInt(cfg.GatewayPort, DefaultGatewayPort)))
	rt.BackendPort = envInt(log, "VLLM_PORT", pickInt(cfg.BackendPort, DefaultBackendPort))
	rt.BackendBaseURL = envStr("VLLM_BASE_URL", pickStr(cfg.BackendBaseURL,
		fmt.Sprintf("http://%s:%d", rt.BackendHost, rt.BackendPort)))
	rt.BackendBin = envStr("VLLM_BIN", pickStr(cfg.BackendBin, DefaultBackendBin))
	rt.ExtraArgs = envList("VLLM_EXTRA_ARGS", cfg.ExtraArgs)

	// MODEL_REPO is preferred; MODEL_NAME is the legacy alias.
	rt.ModelRepo = envStr("MODEL_REPO", envStr("MODEL_NAME", pickStr(cfg.ModelRepo, DefaultModelRepo)))
	rt.ModelID = modelID(rt.ModelRepo)

	// cache_dir (file) and HUGGINGFACE_HUB_CACHE point at the hub cache
	// itself; HF_HOME points at the cache root with hub/ underneath.
	cacheDir := cfg.CacheDir
	if v := os.Getenv("HF_HOME"); v != "" {
		cacheDir = filepath.Join(v, "hub")
	}
	if v := os.Getenv("HUGGINGFACE_HUB_CACHE"); v != "" {
		cacheDir = v
	}
	rt.ModelPath = resolveModelPath(cacheDir, rt.ModelRepo, log)

	rt.MaxModelLen = envInt(log, "MAX_MODEL_LEN", pickInt(cfg.MaxModelLen, 0))
	rt.GPUMemoryUtilization = envFloat(log, "GPU_MEMORY_UTILIZATION", pickFloat(cfg.GPUMemoryUtilization, DefaultGPUMemUtil))
	rt.Dtype = envStr("DTYPE", pickStr(cfg.Dtype, DefaultDtype))
	rt.MaxNumSeqs = envInt(log, "MAX_NUM_SEQS", pickInt(cfg.MaxNumSeqs, DefaultMaxNumSeqs))

	fileLevel := DefaultCompileLevel
	if cfg.CompileLevel != nil {
		fileLevel = *cfg.CompileLevel
	}
	rt.CompileLevel = envInt(log, "VLLM_TORCH_COMPILE_LEVEL", fileLevel)
	rt.WarmupEnabled = rt.CompileLevel > 0 && !envBool("SKIP_PREWARM")

	rt.SecretSource = envStr("API_KEYS_SOURCE", cfg.SecretSource)
	rt.SecretName = envStr("API_KEYS_SECRET_NAME", pickStr(cfg.SecretName, DefaultSecretName))
	rt.HealthPath = envStr("HEALTH_PATH", pickStr(cfg.HealthPath, DefaultHealthPath))

	rt.StartupTimeout = envDuration(log, "STARTUP_TIMEOUT", DefaultStartupTimeout)
	rt.PollInterval = envDuration(log, "HEALTH_POLL_INTERVAL", DefaultPollInterval)
	rt.WarmupTimeout = envDuration(log, "PREWARM_REQUEST_TIMEOUT", DefaultWarmupTimeout)
	rt.ProxyTimeout = envDuration(log, "PROXY_TIMEOUT", DefaultProxyTimeout)
	rt.ShutdownGrace = envDuration(log, "SHUTDOWN_GRACE", DefaultShutdownGrace)

	return rt
}

// modelID extracts the API-visible model id: the segment after the last "/".
func modelID(repo string) string {
	if i := strings.LastIndex(repo, "/"); i >= 0 {
		return repo[i+1:]
	}
	return repo
}

// resolveModelPath maps a repo id to its on-disk snapshot under the Hugging
// Face hub cache layout (models--org--name/snapshots/<rev>). When the cache
// is absent the bare repo id is returned and the backend downloads as usual.
// With multiple snapshots present the lexicographically last name wins; this
// is a documented simplification, not a recency guarantee.
func resolveModelPath(cacheDir, repo string, log zerolog.Logger) string {
	if cacheDir == "" {
		return repo
	}
	snapDir := filepath.Join(cacheDir, "models--"+strings.ReplaceAll(repo, "/", "--"), "snapshots")
	entries, err := os.ReadDir(snapDir)
	if err != nil {
		log.Warn().Str("dir", snapDir).Msg("model cache not found, falling back to repo id")
		return repo
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		log.Warn().Str("dir", snapDir).Msg("no snapshots in model cache, falling back to repo id")
		return repo
	}
	sort.Strings(names)
	if len(names) > 1 {
		log.Debug().Int("snapshots", len(names)).Str("picked", names[len(names)-1]).Msg("multiple snapshots, picking last")
	}
	return filepath.Join(snapDir, names[len(names)-1])
}

func pickStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func pickInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func pickFloat(v, def float64) float64 {
	if v != 0 {
		return v
	}
	return def
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(log zerolog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("not an integer, using fallback")
		return def
	}
	return n
}

func envFloat(log zerolog.Logger, key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("not a number, using fallback")
		return def
	}
	return f
}

func envBool(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func envDuration(log zerolog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	// Accept bare seconds for parity with the env files this replaces.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("var", key).Str("value", v).Msg("not a duration, using fallback")
		return def
	}
	return d
}

// envList splits a comma-separated env var into fields, trimming whitespace.
func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
