package orchestrator

import (
	"context"
	"fmt"

	"github.com/TheHiddenLayer/zen/internal/agentdriver"
	"github.com/TheHiddenLayer/zen/internal/agentpool"
	"github.com/TheHiddenLayer/zen/internal/aqa"
	adaptergit "github.com/TheHiddenLayer/zen/internal/adapters/git"
	"github.com/TheHiddenLayer/zen/internal/core"
	"github.com/TheHiddenLayer/zen/internal/skillloop"
	"github.com/TheHiddenLayer/zen/internal/telemetry"
	"github.com/TheHiddenLayer/zen/internal/vcsstore"
)

// OrchestratorBuilder provides a fluent API for constructing an Orchestrator,
// unifying the wiring a CLI entrypoint and a future service entrypoint would
// otherwise duplicate (the same purpose the teacher's RunnerBuilder served).
type OrchestratorBuilder struct {
	// Required dependencies.
	repoPath    string
	indexPath   string
	startCmd    string
	maxParallel int

	// Optional dependencies.
	qa             skillloop.QuestionAnswerer
	answerGen      aqa.AnswerGenerator
	escalator      skillloop.Escalator
	publisher      core.Publisher
	metrics        *telemetry.Metrics
	workflowConfig *core.Config
	config         Config

	errors []error
}

// NewOrchestratorBuilder creates a builder with package defaults applied.
func NewOrchestratorBuilder() *OrchestratorBuilder {
	return &OrchestratorBuilder{maxParallel: 4}
}

// WithRepository points the orchestrator at the repository its task graph
// operates on; required.
func (b *OrchestratorBuilder) WithRepository(path string) *OrchestratorBuilder {
	b.repoPath = path
	return b
}

// WithIndexPath sets the vcsstore ref/notes index file; required.
func (b *OrchestratorBuilder) WithIndexPath(path string) *OrchestratorBuilder {
	b.indexPath = path
	return b
}

// WithStartCommand sets the coding-assistant binary invocation every spawned
// agent runs as its tmux session's initial program (e.g. "claude" or
// "gemini --yolo"); required.
func (b *OrchestratorBuilder) WithStartCommand(cmd string) *OrchestratorBuilder {
	b.startCmd = cmd
	return b
}

// WithMaxParallel overrides the default max-parallel-agents budget used when
// the caller's workflow config leaves it at zero.
func (b *OrchestratorBuilder) WithMaxParallel(n int) *OrchestratorBuilder {
	b.maxParallel = n
	return b
}

// WithQuestionAnswerer overrides the default AQA; useful for tests driving a
// scripted answerer.
func (b *OrchestratorBuilder) WithQuestionAnswerer(qa skillloop.QuestionAnswerer) *OrchestratorBuilder {
	b.qa = qa
	return b
}

// WithAnswerGenerator sets the generator the default AQA shells out through
// when no QuestionAnswerer override is supplied.
func (b *OrchestratorBuilder) WithAnswerGenerator(gen aqa.AnswerGenerator) *OrchestratorBuilder {
	b.answerGen = gen
	return b
}

// WithEscalator overrides the default escalator (a no-op that always denies
// an override, forcing AQA's own best-guess answer).
func (b *OrchestratorBuilder) WithEscalator(e skillloop.Escalator) *OrchestratorBuilder {
	b.escalator = e
	return b
}

// WithPublisher sets the event sink every phase and component publishes to.
func (b *OrchestratorBuilder) WithPublisher(p core.Publisher) *OrchestratorBuilder {
	b.publisher = p
	return b
}

// WithMetrics attaches a telemetry.Metrics instance for Prometheus export.
func (b *OrchestratorBuilder) WithMetrics(m *telemetry.Metrics) *OrchestratorBuilder {
	b.metrics = m
	return b
}

// WithWorkflowConfig overrides the per-workflow defaults (max parallel
// agents, staging branch prefix, update_docs) Execute applies to every
// workflow it creates.
func (b *OrchestratorBuilder) WithWorkflowConfig(cfg core.Config) *OrchestratorBuilder {
	b.workflowConfig = &cfg
	return b
}

// WithConfig sets the orchestrator's own tunables (timeouts, sub-component
// configs).
func (b *OrchestratorBuilder) WithConfig(cfg Config) *OrchestratorBuilder {
	b.config = cfg
	return b
}

// noopEscalator never grants an override, so the Skill Interaction Loop
// always falls through to AQA's own best-guess answer (spec §4.4's
// non-interactive default).
type noopEscalator struct{}

func (noopEscalator) AwaitOverride(ctx context.Context, question string) (string, error) {
	return "", core.ErrExecution(core.CodeAgentFailed, "no escalation channel configured")
}

// Build validates required dependencies, applies defaults to everything
// optional, and wires every component (C1, C5, C7-C11) into a single
// Orchestrator.
func (b *OrchestratorBuilder) Build(ctx context.Context) (*Orchestrator, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("orchestrator builder errors: %v", b.errors)
	}
	if b.repoPath == "" {
		return nil, fmt.Errorf("repository path is required")
	}
	if b.indexPath == "" {
		return nil, fmt.Errorf("vcsstore index path is required")
	}
	if b.startCmd == "" {
		return nil, fmt.Errorf("agent start command is required")
	}

	repoClient, err := adaptergit.NewClient(b.repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository git client: %w", err)
	}

	store, err := vcsstore.Open(repoClient, b.indexPath)
	if err != nil {
		return nil, fmt.Errorf("opening vcs store: %w", err)
	}

	worktrees := adaptergit.NewTaskWorktreeManager(repoClient, b.config.worktreeBaseDir())

	gitFactory := GitClientFactory(func(path string) (core.GitClient, error) {
		return adaptergit.NewClient(path)
	})

	pool := agentpool.New(b.maxParallel, buildStartFunc(b.startCmd, gitFactory))

	publisher := b.publisher
	if publisher == nil {
		publisher = core.PublisherFunc(func(core.Event) {})
	}

	escalator := b.escalator
	if escalator == nil {
		escalator = noopEscalator{}
	}

	workflowConfig := core.DefaultConfig()
	if b.workflowConfig != nil {
		workflowConfig = *b.workflowConfig
	}
	if workflowConfig.MaxParallelAgents <= 0 {
		workflowConfig.MaxParallelAgents = b.maxParallel
	}
	if err := workflowConfig.Validate(); err != nil {
		return nil, fmt.Errorf("workflow config: %w", err)
	}

	cfg := b.config
	cfg.Scheduler.MaxParallel = workflowConfig.MaxParallelAgents

	answerGen := b.answerGen
	if answerGen == nil {
		answerGen = aqa.CLIAnswerGenerator{Binary: b.startCmd}
	}

	o := &Orchestrator{
		store:          store,
		pool:           pool,
		worktrees:      worktrees,
		gitFactory:     gitFactory,
		qaOverride:     b.qa,
		answerGen:      answerGen,
		escalator:      escalator,
		publisher:      publisher,
		metrics:        b.metrics,
		config:         cfg,
		workflowConfig: workflowConfig,
	}

	return o, nil
}

// buildStartFunc closes over the fixed agent invocation every spawned
// session runs, bridging agentpool.StartFunc's (ctx, sessionName, workDir)
// shape to agentdriver.NewHandle's extra startCmd parameter. Each call
// scopes a fresh git client to the agent's own worktree so LastCommit
// reads that worktree's HEAD, not the orchestrator's repository checkout.
func buildStartFunc(startCmd string, gitFactory GitClientFactory) agentpool.StartFunc {
	return func(ctx context.Context, sessionName, workDir string) (*agentdriver.Handle, error) {
		git, err := gitFactory(workDir)
		if err != nil {
			return nil, fmt.Errorf("opening git client for %s: %w", workDir, err)
		}
		return agentdriver.NewHandle(ctx, sessionName, workDir, startCmd, agentdriver.WithGitClient(git))
	}
}
