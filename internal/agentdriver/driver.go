package agentdriver

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// defaultTimeout bounds every individual tmux invocation (session create,
// send-keys, capture-pane, ...). It is not the skill-loop's own
// MonitorConfig.timeout, which bounds the whole interaction.
const defaultTimeout = 10 * time.Second

// run executes a tmux subcommand, mirroring the exec-wrapping discipline of
// adapters/git/client.go: a resolved absolute binary path, no shell
// interpolation, a bounded context, and stdout/stderr captured separately.
func run(ctx context.Context, tmuxPath string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, tmuxPath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", core.ErrTimeout("tmux command timed out")
		}
		return "", fmt.Errorf("tmux %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// resolveTmuxBinaryPath locates and validates the real tmux binary, the
// same way resolveGitBinaryPath does for git.
func resolveTmuxBinaryPath() (string, error) {
	p, err := exec.LookPath("tmux")
	if err != nil {
		return "", fmt.Errorf("tmux not found in PATH: %w", err)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving tmux path: %w", err)
	}

	real := abs
	if rr, err := filepath.EvalSymlinks(abs); err == nil {
		real = rr
	}

	info, err := os.Stat(real)
	if err != nil {
		return "", fmt.Errorf("stat tmux binary: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("tmux binary is not a regular file: %s", real)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return "", fmt.Errorf("tmux binary is not executable: %s", real)
	}
	return real, nil
}

func validateNoNul(field, value string) error {
	if strings.ContainsRune(value, 0) {
		return core.ErrValidation("INVALID_"+strings.ToUpper(field), field+" must not contain a NUL byte")
	}
	return nil
}

// validateSessionName rejects characters tmux itself treats as
// session/window/pane separators (':' and '.'), plus whitespace.
func validateSessionName(name string) error {
	if err := validateNoNul("session", name); err != nil {
		return err
	}
	if name == "" {
		return core.ErrValidation("INVALID_SESSION", "session name must not be empty")
	}
	if strings.ContainsAny(name, " \t\n\r:.") {
		return core.ErrValidation("INVALID_SESSION", "session name contains a reserved tmux separator character")
	}
	return nil
}
