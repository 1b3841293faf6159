package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger { return zerolog.Nop() }

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "VLLM_PORT", "VLLM_BASE_URL", "VLLM_BIN", "VLLM_EXTRA_ARGS",
		"MODEL_REPO", "MODEL_NAME", "HF_HOME", "HUGGINGFACE_HUB_CACHE",
		"MAX_MODEL_LEN", "GPU_MEMORY_UTILIZATION", "DTYPE", "MAX_NUM_SEQS",
		"VLLM_TORCH_COMPILE_LEVEL", "SKIP_PREWARM",
		"API_KEYS_SOURCE", "API_KEYS_SECRET_NAME", "HEALTH_PATH",
		"STARTUP_TIMEOUT", "HEALTH_POLL_INTERVAL", "PREWARM_REQUEST_TIMEOUT",
		"PROXY_TIMEOUT", "SHUTDOWN_GRACE",
	} {
		t.Setenv(k, "")
	}
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)
	rt := Resolve(File{}, testLogger())
	if rt.GatewayAddr != ":8000" {
		t.Fatalf("gateway addr=%s", rt.GatewayAddr)
	}
	if rt.BackendPort != 8080 || rt.BackendBaseURL != "http://127.0.0.1:8080" {
		t.Fatalf("backend: %d %s", rt.BackendPort, rt.BackendBaseURL)
	}
	if rt.ModelRepo != DefaultModelRepo || rt.ModelID != "DeepSeek-R1-Distill-Qwen-1.5B" {
		t.Fatalf("model: %s / %s", rt.ModelRepo, rt.ModelID)
	}
	if rt.ModelPath != rt.ModelRepo {
		t.Fatalf("expected bare repo id fallback, got %s", rt.ModelPath)
	}
	if rt.GPUMemoryUtilization != DefaultGPUMemUtil || rt.Dtype != "auto" || rt.MaxNumSeqs != 256 {
		t.Fatalf("serving params: %+v", rt)
	}
	if rt.CompileLevel != 1 || !rt.WarmupEnabled {
		t.Fatalf("warmup: level=%d enabled=%v", rt.CompileLevel, rt.WarmupEnabled)
	}
	if rt.SecretName != DefaultSecretName || rt.HealthPath != "/health" {
		t.Fatalf("secret/health: %s %s", rt.SecretName, rt.HealthPath)
	}
	if rt.StartupTimeout != 180*time.Second || rt.PollInterval != 2*time.Second {
		t.Fatalf("timeouts: %v %v", rt.StartupTimeout, rt.PollInterval)
	}
}

func TestResolveEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("MODEL_REPO", "org/env-model")
	t.Setenv("DTYPE", "bfloat16")
	cfg := File{GatewayPort: 1234, ModelRepo: "org/file-model", Dtype: "half"}
	rt := Resolve(cfg, testLogger())
	if rt.GatewayAddr != ":9999" {
		t.Fatalf("env should win over file: %s", rt.GatewayAddr)
	}
	if rt.ModelRepo != "org/env-model" || rt.ModelID != "env-model" {
		t.Fatalf("model: %s / %s", rt.ModelRepo, rt.ModelID)
	}
	if rt.Dtype != "bfloat16" {
		t.Fatalf("dtype: %s", rt.Dtype)
	}
}

func TestResolveFileOverridesDefault(t *testing.T) {
	clearEnv(t)
	lvl := 0
	cfg := File{BackendPort: 9001, CompileLevel: &lvl, MaxNumSeqs: 32}
	rt := Resolve(cfg, testLogger())
	if rt.BackendPort != 9001 || rt.MaxNumSeqs != 32 {
		t.Fatalf("file values ignored: %+v", rt)
	}
	if rt.CompileLevel != 0 || rt.WarmupEnabled {
		t.Fatalf("explicit compile_level=0 should disable warmup: %+v", rt)
	}
}

func TestResolveInvalidEnvFallsBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-number")
	t.Setenv("GPU_MEMORY_UTILIZATION", "lots")
	rt := Resolve(File{}, testLogger())
	if rt.GatewayAddr != ":8000" || rt.GPUMemoryUtilization != DefaultGPUMemUtil {
		t.Fatalf("invalid env must fall back: %+v", rt)
	}
}

func TestResolveSkipPrewarm(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKIP_PREWARM", "true")
	rt := Resolve(File{}, testLogger())
	if rt.WarmupEnabled {
		t.Fatalf("SKIP_PREWARM should disable warmup")
	}
	t.Setenv("SKIP_PREWARM", "")
	t.Setenv("VLLM_TORCH_COMPILE_LEVEL", "0")
	rt = Resolve(File{}, testLogger())
	if rt.WarmupEnabled {
		t.Fatalf("compile level 0 should disable warmup")
	}
}

func TestResolveDurationEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("STARTUP_TIMEOUT", "90")
	t.Setenv("SHUTDOWN_GRACE", "3s")
	rt := Resolve(File{}, testLogger())
	if rt.StartupTimeout != 90*time.Second {
		t.Fatalf("bare seconds not accepted: %v", rt.StartupTimeout)
	}
	if rt.ShutdownGrace != 3*time.Second {
		t.Fatalf("duration string not accepted: %v", rt.ShutdownGrace)
	}
}

func TestResolveModelPathSnapshot(t *testing.T) {
	clearEnv(t)
	hub := t.TempDir()
	snaps := filepath.Join(hub, "models--org--m", "snapshots")
	if err := os.MkdirAll(filepath.Join(snaps, "abc123"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	t.Setenv("HUGGINGFACE_HUB_CACHE", hub)
	t.Setenv("MODEL_REPO", "org/m")
	rt := Resolve(File{}, testLogger())
	want := filepath.Join(snaps, "abc123")
	if rt.ModelPath != want {
		t.Fatalf("model path=%s want=%s", rt.ModelPath, want)
	}
}

func TestResolveModelPathPicksLastSnapshot(t *testing.T) {
	clearEnv(t)
	hub := t.TempDir()
	snaps := filepath.Join(hub, "models--org--m", "snapshots")
	for _, n := range []string{"aaa", "zzz", "mmm"} {
		if err := os.MkdirAll(filepath.Join(snaps, n), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	t.Setenv("HUGGINGFACE_HUB_CACHE", hub)
	t.Setenv("MODEL_REPO", "org/m")
	rt := Resolve(File{}, testLogger())
	if rt.ModelPath != filepath.Join(snaps, "zzz") {
		t.Fatalf("expected lexicographically last snapshot, got %s", rt.ModelPath)
	}
}

func TestResolveModelPathMissingCache(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUGGINGFACE_HUB_CACHE", filepath.Join(t.TempDir(), "nope"))
	t.Setenv("MODEL_REPO", "org/m")
	rt := Resolve(File{}, testLogger())
	if rt.ModelPath != "org/m" {
		t.Fatalf("expected repo id fallback, got %s", rt.ModelPath)
	}
}

func TestResolveExtraArgs(t *testing.T) {
	clearEnv(t)
	t.Setenv("VLLM_EXTRA_ARGS", "--enforce-eager, --seed 7 ,")
	rt := Resolve(File{}, testLogger())
	if len(rt.ExtraArgs) != 2 || rt.ExtraArgs[0] != "--enforce-eager" || rt.ExtraArgs[1] != "--seed 7" {
		t.Fatalf("extra args: %#v", rt.ExtraArgs)
	}
}
