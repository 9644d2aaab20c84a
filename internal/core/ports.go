package core

import (
	"context"
	"time"
)

// GitClient is the narrow interface the core consumes for the underlying
// VCS. Every other component (C1, C2, C10) is built against this interface,
// never against a concrete git binary wrapper directly.
type GitClient interface {
	RepoRoot(ctx context.Context) (string, error)
	CurrentBranch(ctx context.Context) (string, error)
	DefaultBranch(ctx context.Context) (string, error)

	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name, base string) error
	DeleteBranch(ctx context.Context, name string) error
	CheckoutBranch(ctx context.Context, name string) error

	CreateWorktree(ctx context.Context, path, branch string) error
	RemoveWorktree(ctx context.Context, path string) error
	ListWorktrees(ctx context.Context) ([]Worktree, error)

	Status(ctx context.Context) (*GitStatus, error)
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) (string, error)

	// Merge merges head into the current branch using a three-way merge.
	// Returns the resulting commit hash on a clean merge, or ErrConflict
	// (wrapping the conflicted path list) when conflict markers remain.
	Merge(ctx context.Context, head string) (string, error)
	AbortMerge(ctx context.Context) error
	HasMergeConflicts(ctx context.Context) (bool, error)
	GetConflictFiles(ctx context.Context) ([]ConflictFile, error)

	Diff(ctx context.Context, base, head string) (string, error)
	DiffFiles(ctx context.Context, base, head string) ([]string, error)

	IsClean(ctx context.Context) (bool, error)

	// HeadCommit returns the commit hash the given ref currently resolves to.
	HeadCommit(ctx context.Context, ref string) (string, error)

	// Notes attaches/reads/lists JSON blobs under a notes namespace, the
	// mechanism C1 uses to persist records against an anchor commit.
	AddNote(ctx context.Context, namespace, commit string, data []byte) error
	ReadNote(ctx context.Context, namespace, commit string) ([]byte, error)
	ListNotes(ctx context.Context, namespace string) (map[string][]byte, error)
	RemoveNote(ctx context.Context, namespace, commit string) error

	// UpdateRef and ReadRef manage the named references C1 maintains
	// alongside each note (zen/workflows/{id}, zen/tasks/{id}, ...).
	UpdateRef(ctx context.Context, ref, commit string) error
	ReadRef(ctx context.Context, ref string) (string, error)
	DeleteRef(ctx context.Context, ref string) error
	ListRefs(ctx context.Context, prefix string) ([]string, error)
}

// Worktree represents a VCS worktree.
type Worktree struct {
	Path     string
	Branch   string
	Commit   string
	IsMain   bool
	IsLocked bool
}

// GitStatus represents the status of the repository.
type GitStatus struct {
	Branch       string
	Staged       []FileStatus
	Unstaged     []FileStatus
	Untracked    []string
	HasConflicts bool
}

// FileStatus represents a file's VCS status.
type FileStatus struct {
	Path   string
	Status string // M, A, D, R, C, U
}

// WorktreeManager provides task-scoped worktree lifecycle management on top
// of GitClient, matching the naming/path-safety discipline of C1.
type WorktreeManager interface {
	Create(ctx context.Context, taskID TaskID, branch string) (*WorktreeInfo, error)
	Get(ctx context.Context, taskID TaskID) (*WorktreeInfo, error)
	Remove(ctx context.Context, taskID TaskID) error
	CleanupStale(ctx context.Context) error
	List(ctx context.Context) ([]*WorktreeInfo, error)
}

// WorktreeInfo contains information about a task's worktree.
type WorktreeInfo struct {
	TaskID    TaskID
	Path      string
	Branch    string
	CreatedAt time.Time
	Status    WorktreeStatus
}

// WorktreeStatus represents the state of a worktree.
type WorktreeStatus string

const (
	WorktreeStatusActive  WorktreeStatus = "active"
	WorktreeStatusStale   WorktreeStatus = "stale"
	WorktreeStatusOrphan  WorktreeStatus = "orphan"
	WorktreeStatusCleaned WorktreeStatus = "cleaned"
)
