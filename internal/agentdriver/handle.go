package agentdriver

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Handle drives one external coding-assistant process inside a detached
// tmux session: a pane per agent, keystrokes sent with Send, the pane's
// scrollback read with ReadPlain. Not concurrency-safe: only the owning
// skill-interaction loop (C6) may call Send or ReadPlain on a given Handle.
type Handle struct {
	tmuxPath     string
	session      string
	worktreePath string
	git          core.GitClient // scoped to worktreePath; nil if the caller didn't attach one
	timeout      time.Duration
	lastActivity time.Time
}

// Option configures a Handle at construction.
type Option func(*Handle)

// WithGitClient attaches a core.GitClient rooted at the handle's worktree,
// enabling LastCommit. Callers that never need a commit lookup (e.g.
// single-agent skill phases with no worktree of their own) can omit it.
func WithGitClient(client core.GitClient) Option {
	return func(h *Handle) { h.git = client }
}

// NewHandle starts a detached tmux session named sessionName, rooted at
// worktreePath, running startCmd as its initial program.
func NewHandle(ctx context.Context, sessionName, worktreePath, startCmd string, opts ...Option) (*Handle, error) {
	if err := validateSessionName(sessionName); err != nil {
		return nil, err
	}
	if err := validateNoNul("worktree", worktreePath); err != nil {
		return nil, err
	}
	if err := validateNoNul("start_cmd", startCmd); err != nil {
		return nil, err
	}

	tmuxPath, err := resolveTmuxBinaryPath()
	if err != nil {
		return nil, err
	}

	h := &Handle{
		tmuxPath:     tmuxPath,
		session:      sessionName,
		worktreePath: worktreePath,
		timeout:      defaultTimeout,
		lastActivity: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}

	if _, err := run(ctx, tmuxPath, h.timeout, "new-session", "-d", "-s", sessionName, "-c", worktreePath, startCmd); err != nil {
		return nil, core.ErrExecution("AGENT_SPAWN_FAILED", fmt.Sprintf("start tmux session %s: %v", sessionName, err)).WithCause(err)
	}
	return h, nil
}

// Send writes text to the pane as literal keystrokes followed by Enter, one
// tmux call per half so the trailing newline can never be folded into the
// literal text and misread as part of it.
func (h *Handle) Send(ctx context.Context, text string) error {
	if err := validateNoNul("input", text); err != nil {
		return err
	}
	if _, err := run(ctx, h.tmuxPath, h.timeout, "send-keys", "-t", h.session, "-l", "--", text); err != nil {
		return core.ErrExecution("AGENT_SEND_FAILED", fmt.Sprintf("send to session %s: %v", h.session, err)).WithCause(err)
	}
	if _, err := run(ctx, h.tmuxPath, h.timeout, "send-keys", "-t", h.session, "Enter"); err != nil {
		return core.ErrExecution("AGENT_SEND_FAILED", fmt.Sprintf("send Enter to session %s: %v", h.session, err)).WithCause(err)
	}
	h.lastActivity = time.Now()
	return nil
}

// ReadPlain returns the pane's current plain-text buffer, scrollback
// included, for the classifier to inspect.
func (h *Handle) ReadPlain(ctx context.Context) (string, error) {
	out, err := run(ctx, h.tmuxPath, h.timeout, "capture-pane", "-p", "-t", h.session, "-S", "-")
	if err != nil {
		return "", core.ErrExecution("AGENT_READ_FAILED", fmt.Sprintf("capture pane %s: %v", h.session, err)).WithCause(err)
	}
	return out, nil
}

// Alive reports whether the pane's target process is still running,
// checked against the OS process table rather than tmux's own bookkeeping:
// a pane can stay open under a dead shell well after the process it drove
// has exited, which would otherwise make a stale capture look live.
func (h *Handle) Alive(ctx context.Context) (bool, error) {
	out, err := run(ctx, h.tmuxPath, h.timeout, "list-panes", "-t", h.session, "-F", "#{pane_pid}")
	if err != nil {
		return false, core.ErrExecution("AGENT_PANE_LOOKUP_FAILED", fmt.Sprintf("list panes for %s: %v", h.session, err)).WithCause(err)
	}
	pidField := strings.SplitN(out, "\n", 2)[0]
	pid, err := strconv.Atoi(strings.TrimSpace(pidField))
	if err != nil {
		return false, fmt.Errorf("parse pane pid %q: %w", pidField, err)
	}
	running, err := process.PidExists(int32(pid))
	if err != nil {
		return false, fmt.Errorf("check pane process liveness: %w", err)
	}
	return running, nil
}

// WorktreePath returns the worktree this handle's session is rooted in.
func (h *Handle) WorktreePath() string {
	return h.worktreePath
}

// SessionName returns the tmux session name backing this handle.
func (h *Handle) SessionName() string {
	return h.session
}

// LastActivity returns the time of the most recent Send call, used by the
// Health Monitor's stall detection.
func (h *Handle) LastActivity() time.Time {
	return h.lastActivity
}

// LastCommit returns the HEAD commit of the handle's worktree, or "" if no
// git client was attached via WithGitClient.
func (h *Handle) LastCommit(ctx context.Context) (string, error) {
	if h.git == nil {
		return "", nil
	}
	commit, err := h.git.HeadCommit(ctx, "HEAD")
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return "", nil
		}
		return "", err
	}
	return commit, nil
}

// Terminate kills the tmux session. Idempotent: killing an already-gone
// session is not an error.
func (h *Handle) Terminate(ctx context.Context) error {
	_, err := run(ctx, h.tmuxPath, h.timeout, "kill-session", "-t", h.session)
	if err != nil && !strings.Contains(err.Error(), "session not found") && !strings.Contains(err.Error(), "can't find session") {
		return core.ErrExecution("AGENT_TERMINATE_FAILED", fmt.Sprintf("kill session %s: %v", h.session, err)).WithCause(err)
	}
	return nil
}
