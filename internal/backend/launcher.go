package backend

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"infergate/internal/config"
)

// Args builds the serve argv for the backend from the resolved runtime
// config. The backend binds to the internal host only, never the public port.
func Args(rt *config.Runtime) []string {
	args := []string{
		"serve", rt.ModelPath,
		"--host", rt.BackendHost,
		"--port", strconv.Itoa(rt.BackendPort),
		"--gpu-memory-utilization", strconv.FormatFloat(rt.GPUMemoryUtilization, 'f', -1, 64),
		"--dtype", rt.Dtype,
		"--max-num-seqs", strconv.Itoa(rt.MaxNumSeqs),
	}
	if rt.MaxModelLen > 0 {
		args = append(args, "--max-model-len", strconv.Itoa(rt.MaxModelLen))
	}
	args = append(args, rt.ExtraArgs...)
	return args
}

// Launch starts the inference backend as a child process and returns its
// handle immediately; readiness is the warm-up driver's concern. An exec
// failure here is an environment defect and is fatal to the caller — there
// is no retry.
func Launch(rt *config.Runtime, log zerolog.Logger) (*Process, error) {
	args := Args(rt)
	cmd := exec.Command(rt.BackendBin, args...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout

	p, err := startProcess(cmd)
	if err != nil {
		return nil, fmt.Errorf("launch backend: %w", err)
	}
	log.Info().
		Int("pid", p.PID()).
		Str("bin", rt.BackendBin).
		Str("model", rt.ModelPath).
		Int("port", rt.BackendPort).
		Msg("backend started")
	return p, nil
}
