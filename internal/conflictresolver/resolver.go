package conflictresolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
)

// Git is the narrow slice of core.GitClient the resolver needs, bound to a
// single checkout rooted at the staging worktree.
type Git interface {
	BranchExists(ctx context.Context, name string) (bool, error)
	CreateBranch(ctx context.Context, name, base string) error
	CheckoutBranch(ctx context.Context, name string) error

	Merge(ctx context.Context, head string) (string, error)
	AbortMerge(ctx context.Context) error
	HasMergeConflicts(ctx context.Context) (bool, error)
	GetConflictFiles(ctx context.Context) ([]core.ConflictFile, error)

	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, message string) (string, error)
	HeadCommit(ctx context.Context, ref string) (string, error)
}

// AgentHandle is the surface the resolver's skill loop drives. A bare alias
// of skillloop.AgentHandle so the package documents its own dependency
// without introducing a second, divergent interface.
type AgentHandle = skillloop.AgentHandle

// Pool spawns and tears down the dedicated resolver agent. See
// NewPoolAdapter to satisfy this from a real *agentpool.Pool.
type Pool interface {
	SpawnForSkill(ctx context.Context, skillName, sessionName, workDir string) (core.AgentID, error)
	Get(id core.AgentID) (*core.Agent, AgentHandle, bool)
	Terminate(ctx context.Context, id core.AgentID) error
}

// Config tunes the staging merge and resolver-agent behavior.
type Config struct {
	SkillName            string
	SessionPrefix        string
	PollInterval         time.Duration
	Timeout              time.Duration
	MaxResolutionRetries int
}

func (c Config) skillName() string {
	if c.SkillName == "" {
		return "conflict-resolution"
	}
	return c.SkillName
}

func (c Config) sessionPrefix() string {
	if c.SessionPrefix == "" {
		return "zen-resolve"
	}
	return c.SessionPrefix
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return 2 * time.Second
	}
	return c.PollInterval
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 15 * time.Minute
	}
	return c.Timeout
}

// maxResolutionRetries defaults to 1: spec §4.10 step 4 allows exactly one
// retry of the resolver agent before the merge is declared failed.
func (c Config) maxResolutionRetries() int {
	if c.MaxResolutionRetries <= 0 {
		return 1
	}
	return c.MaxResolutionRetries
}

// Resolver drives the Conflict Resolver's merge-into-staging algorithm for
// one workflow. Not concurrency-safe: results are merged strictly in the
// order given, one at a time, matching the staging branch's single-writer
// discipline.
type Resolver struct {
	Git       Git
	Pool      Pool
	QA        skillloop.QuestionAnswerer
	Escalator skillloop.Escalator
	Publisher core.Publisher

	WorkflowID          core.WorkflowID
	StagingBranch       string
	StagingWorktreePath string

	Config Config

	breaker *gobreaker.CircuitBreaker
}

// New builds a Resolver with its three-consecutive-merge-failure circuit
// breaker (spec §7) wired to trip after 3 straight mergeOne failures.
func New(git Git, pool Pool, qa skillloop.QuestionAnswerer, escalator skillloop.Escalator, publisher core.Publisher,
	workflowID core.WorkflowID, stagingBranch, stagingWorktreePath string, cfg Config) *Resolver {
	r := &Resolver{
		Git: git, Pool: pool, QA: qa, Escalator: escalator, Publisher: publisher,
		WorkflowID: workflowID, StagingBranch: stagingBranch, StagingWorktreePath: stagingWorktreePath,
		Config: cfg,
	}
	r.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("conflict-resolver-%s", workflowID),
		MaxRequests: 1,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
	return r
}

// Resolve merges every task result's branch into the staging branch, in the
// order given, and returns the staging branch's final commit hash. A
// MergeFailed on any task makes the overall result fatal (spec §4.10's
// failure semantics); the breaker may additionally abort before every
// result is attempted once three merges in a row have failed.
func (r *Resolver) Resolve(ctx context.Context, baseCommit string, results []*core.Task) (string, error) {
	if err := r.prepareStaging(ctx, baseCommit); err != nil {
		return "", err
	}

	var failures []error
	for _, task := range results {
		_, err := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.mergeOne(ctx, task)
		})
		if err == nil {
			continue
		}
		if err == gobreaker.ErrOpenState {
			failures = append(failures, fmt.Errorf(
				"merging phase aborted before task %s: circuit open after 3 consecutive merge failures", task.ID))
			break
		}
		failures = append(failures, err)
	}

	if len(failures) > 0 {
		return "", aggregateFailures(failures)
	}

	return r.Git.HeadCommit(ctx, "HEAD")
}

func (r *Resolver) prepareStaging(ctx context.Context, baseCommit string) error {
	exists, err := r.Git.BranchExists(ctx, r.StagingBranch)
	if err != nil {
		return fmt.Errorf("checking staging branch %s: %w", r.StagingBranch, err)
	}
	if !exists {
		if err := r.Git.CreateBranch(ctx, r.StagingBranch, baseCommit); err != nil {
			return fmt.Errorf("creating staging branch %s: %w", r.StagingBranch, err)
		}
	}
	return r.Git.CheckoutBranch(ctx, r.StagingBranch)
}

// mergeOne merges task's branch into staging: a clean merge is a no-op
// beyond the event it emits (git's own Merge already committed); a
// conflicted merge is handed to the resolver agent and, on verified
// resolution, staged and committed explicitly.
func (r *Resolver) mergeOne(ctx context.Context, task *core.Task) error {
	commit, err := r.Git.Merge(ctx, task.BranchName)
	if err == nil {
		r.publish(core.Event{Type: core.EventMergeSuccess, WorkflowID: r.WorkflowID, TaskID: task.ID, CommitHash: commit})
		return nil
	}
	if !core.IsCategory(err, core.ErrCatConflict) {
		return fmt.Errorf("merging task %s branch %s: %w", task.ID, task.BranchName, err)
	}

	conflicts, cErr := r.Git.GetConflictFiles(ctx)
	if cErr != nil {
		_ = r.Git.AbortMerge(ctx)
		return fmt.Errorf("reading conflicts for task %s: %w", task.ID, cErr)
	}
	r.publish(core.Event{Type: core.EventConflictDetected, WorkflowID: r.WorkflowID, TaskID: task.ID, ConflictFiles: conflicts})

	resolved, rErr := r.resolveConflicts(ctx, task, conflicts)
	if rErr != nil {
		_ = r.Git.AbortMerge(ctx)
		return rErr
	}
	if !resolved {
		_ = r.Git.AbortMerge(ctx)
		return core.ErrConflict(fmt.Sprintf("task %s: conflict markers remained after resolution attempts", task.ID))
	}

	paths := make([]string, len(conflicts))
	for i, c := range conflicts {
		paths[i] = c.Path
	}
	if err := r.Git.Add(ctx, paths...); err != nil {
		_ = r.Git.AbortMerge(ctx)
		return fmt.Errorf("staging resolved files for task %s: %w", task.ID, err)
	}

	commitHash, err := r.Git.Commit(ctx, fmt.Sprintf("Merge task %s (%s): resolved conflicts", task.ID, task.BranchName))
	if err != nil {
		_ = r.Git.AbortMerge(ctx)
		return fmt.Errorf("committing resolved merge for task %s: %w", task.ID, err)
	}
	r.publish(core.Event{Type: core.EventMergeSuccess, WorkflowID: r.WorkflowID, TaskID: task.ID, CommitHash: commitHash})
	return nil
}

// resolveConflicts drives the resolver agent, allowing one retry if the
// first pass leaves conflict markers behind (spec §4.10 step 4).
func (r *Resolver) resolveConflicts(ctx context.Context, task *core.Task, conflicts []core.ConflictFile) (bool, error) {
	for attempt := 0; attempt <= r.Config.maxResolutionRetries(); attempt++ {
		if err := r.runResolverAgent(ctx, task, conflicts); err != nil {
			return false, err
		}
		stillConflicted, err := r.Git.HasMergeConflicts(ctx)
		if err != nil {
			return false, fmt.Errorf("verifying resolution for task %s: %w", task.ID, err)
		}
		if !stillConflicted {
			return true, nil
		}
	}
	return false, nil
}

func aggregateFailures(failures []error) error {
	msgs := make([]string, len(failures))
	for i, f := range failures {
		msgs[i] = f.Error()
	}
	return core.ErrConflict(fmt.Sprintf("merging phase failed: %s", strings.Join(msgs, "; ")))
}

func (r *Resolver) publish(e core.Event) {
	if r.Publisher == nil {
		return
	}
	r.Publisher.Publish(e)
}
