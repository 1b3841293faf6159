package keystore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// FetchError wraps any failure to retrieve or parse the secret payload.
// The store guarantees that a FetchError never disturbs the credential set
// that was in place before the attempt.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch credentials from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is a credential fetch failure.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}

// Source fetches the raw secret payload holding the credential set.
// Only Store.Load touches a Source; request-path validation never does.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
	Describe() string
}

// NewSource builds a Source from a spec string:
//
//	file:/path/to/keys.json   (a bare path works too)
//	https://host/keys.json
//	exec:gcloud secrets versions access latest --secret=NAME
//
// The secret name is substituted for a literal {name} in exec specs.
func NewSource(spec, secretName string) (Source, error) {
	switch {
	case spec == "":
		return nil, fmt.Errorf("no secret source configured (set API_KEYS_SOURCE)")
	case strings.HasPrefix(spec, "file:"):
		return &FileSource{Path: strings.TrimPrefix(spec, "file:")}, nil
	case strings.HasPrefix(spec, "http://"), strings.HasPrefix(spec, "https://"):
		return &HTTPSource{URL: spec}, nil
	case strings.HasPrefix(spec, "exec:"):
		cmdline := strings.ReplaceAll(strings.TrimPrefix(spec, "exec:"), "{name}", secretName)
		fields := strings.Fields(cmdline)
		if len(fields) == 0 {
			return nil, fmt.Errorf("empty exec source command")
		}
		return &ExecSource{Path: fields[0], Args: fields[1:]}, nil
	default:
		return &FileSource{Path: spec}, nil
	}
}

// FileSource reads the credential payload from a local file.
type FileSource struct {
	Path string
}

func (s *FileSource) Describe() string { return "file:" + s.Path }

func (s *FileSource) Fetch(ctx context.Context) ([]byte, error) {
	return os.ReadFile(s.Path)
}

// HTTPSource fetches the credential payload from a URL, typically a secret
// store's HTTP frontend. The latest version is always fetched.
type HTTPSource struct {
	URL    string
	Client *http.Client
}

func (s *HTTPSource) Describe() string { return s.URL }

func (s *HTTPSource) Fetch(ctx context.Context) ([]byte, error) {
	cli := s.Client
	if cli == nil {
		cli = &http.Client{Timeout: 10 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("secret endpoint returned %s", resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// ExecSource runs an external command and treats its stdout as the payload.
// This keeps cloud CLIs usable (e.g. gcloud secrets versions access) without
// binding the gateway to any one provider SDK.
type ExecSource struct {
	Path string
	Args []string
}

func (s *ExecSource) Describe() string {
	return "exec:" + strings.Join(append([]string{s.Path}, s.Args...), " ")
}

func (s *ExecSource) Fetch(ctx context.Context) ([]byte, error) {
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	cmd.Env = os.Environ()
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// StaticSource serves a fixed payload. Used in tests and for bootstrapping.
type StaticSource struct {
	Payload []byte
	Err     error
}

func (s *StaticSource) Describe() string { return "static" }

func (s *StaticSource) Fetch(ctx context.Context) ([]byte, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Payload, nil
}
