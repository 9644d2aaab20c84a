package vcsstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Notes namespaces and their parallel named-ref prefixes. A ref always
// points at the commit the current note for that id is attached to, so a
// load never walks notes history.
const (
	namespaceWorkflows = "zen/workflows"
	namespaceTasks     = "zen/tasks"
	namespaceAgents    = "zen/agents"

	refPrefixWorkflows = "refs/zen/workflows/"
	refPrefixTasks     = "refs/zen/tasks/"
	refPrefixAgents    = "refs/zen/agents/"
)

// envelopeVersion guards against a future incompatible envelope shape; bump
// it if the envelope's own fields change.
const envelopeVersion = 1

// envelope wraps a marshaled record with a checksum computed over the raw
// record bytes, so a note's integrity can be verified independently of the
// sqlite cache. Grounded on the teacher's stateEnvelope
// (adapters/state/json.go): same checksum-over-zeroed-checksum idea, adapted
// to wrap one record instead of a whole workflow-state file.
type envelope struct {
	Version   int             `json:"version"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	Record    json.RawMessage `json:"record"`
}

func encodeEnvelope(record []byte) ([]byte, error) {
	sum := sha256.Sum256(record)
	env := envelope{
		Version:   envelopeVersion,
		Checksum:  hex.EncodeToString(sum[:]),
		UpdatedAt: time.Now(),
		Record:    record,
	}
	out, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return out, nil
}

// decodeEnvelope verifies the checksum and returns the raw record bytes.
func decodeEnvelope(data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, core.ErrStore(core.CodeStateCorrupted, "note is not a valid record envelope").WithCause(err)
	}
	sum := sha256.Sum256(env.Record)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, core.ErrStore(core.CodeStateCorrupted, "record checksum mismatch")
	}
	return env.Record, nil
}

func unmarshalJSON(data []byte, v interface{}) error {
	if err := json.Unmarshal(data, v); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "cached record is not valid JSON").WithCause(err)
	}
	return nil
}

// Store is the VCS-notes-backed record store for workflows, tasks, and
// agents. Every write lands on a git note anchored to the repository's
// current HEAD commit and a named ref pointing at that commit; the sqlite
// index is a read-side cache over the same data, rebuildable at any time via
// Reconcile.
type Store struct {
	git     core.GitClient
	idx     *index
	schemas *schemaSet
}

// Open opens (creating if absent) the sqlite read-index at indexPath and
// prepares the record schemas used to validate every load.
func Open(git core.GitClient, indexPath string) (*Store, error) {
	idx, err := openIndex(indexPath)
	if err != nil {
		return nil, err
	}
	schemas, err := newSchemaSet()
	if err != nil {
		idx.Close()
		return nil, err
	}
	return &Store{git: git, idx: idx, schemas: schemas}, nil
}

// Close releases the index's database connections.
func (s *Store) Close() error {
	return s.idx.Close()
}

func (s *Store) anchorCommit(ctx context.Context) (string, error) {
	commit, err := s.git.HeadCommit(ctx, "HEAD")
	if err != nil {
		return "", core.ErrStore(core.CodeStateCorrupted, "resolve HEAD for record anchor").WithCause(err)
	}
	return commit, nil
}

// SaveWorkflow persists wf as a note on the current HEAD commit and updates
// its named ref and index row.
func (s *Store) SaveWorkflow(ctx context.Context, wf *core.Workflow) error {
	record, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("marshal workflow %s: %w", wf.ID, err)
	}
	if err := validateRecord(s.schemas.workflow, "workflow", record); err != nil {
		return err
	}
	env, err := encodeEnvelope(record)
	if err != nil {
		return err
	}

	commit, err := s.anchorCommit(ctx)
	if err != nil {
		return err
	}
	if err := s.git.AddNote(ctx, namespaceWorkflows, commit, env); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "write workflow note").WithCause(err)
	}
	if err := s.git.UpdateRef(ctx, refPrefixWorkflows+string(wf.ID), commit); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "update workflow ref").WithCause(err)
	}
	return s.idx.upsertWorkflow(ctx, wf, commit, record)
}

// LoadWorkflow reads the workflow identified by id from its current note,
// bypassing the index entirely so a stale cache can never mask the
// authoritative record.
func (s *Store) LoadWorkflow(ctx context.Context, id core.WorkflowID) (*core.Workflow, error) {
	commit, err := s.git.ReadRef(ctx, refPrefixWorkflows+string(id))
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("workflow", string(id))
		}
		return nil, err
	}
	raw, err := s.git.ReadNote(ctx, namespaceWorkflows, commit)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("workflow", string(id))
		}
		return nil, err
	}
	record, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(s.schemas.workflow, "workflow", record); err != nil {
		return nil, err
	}
	var wf core.Workflow
	if err := unmarshalJSON(record, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ListWorkflows returns every indexed workflow, most recently updated first.
// It reads the sqlite cache, not the notes directly; call Reconcile first if
// the cache is suspected stale.
func (s *Store) ListWorkflows(ctx context.Context) ([]*core.Workflow, error) {
	return s.idx.listWorkflows(ctx)
}

// DeleteWorkflow removes the workflow's note, ref, and index row.
func (s *Store) DeleteWorkflow(ctx context.Context, id core.WorkflowID) error {
	ref := refPrefixWorkflows + string(id)
	commit, err := s.git.ReadRef(ctx, ref)
	if err == nil {
		if rmErr := s.git.RemoveNote(ctx, namespaceWorkflows, commit); rmErr != nil {
			return core.ErrStore(core.CodeStateCorrupted, "remove workflow note").WithCause(rmErr)
		}
	} else if !core.IsCategory(err, core.ErrCatNotFound) {
		return err
	}
	if err := s.git.DeleteRef(ctx, ref); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "delete workflow ref").WithCause(err)
	}
	return s.idx.deleteWorkflow(ctx, id)
}

// SaveTask persists task the same way SaveWorkflow persists a workflow.
func (s *Store) SaveTask(ctx context.Context, task *core.Task) error {
	record, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task %s: %w", task.ID, err)
	}
	if err := validateRecord(s.schemas.task, "task", record); err != nil {
		return err
	}
	env, err := encodeEnvelope(record)
	if err != nil {
		return err
	}

	commit, err := s.anchorCommit(ctx)
	if err != nil {
		return err
	}
	if err := s.git.AddNote(ctx, namespaceTasks, commit, env); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "write task note").WithCause(err)
	}
	if err := s.git.UpdateRef(ctx, refPrefixTasks+string(task.ID), commit); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "update task ref").WithCause(err)
	}
	return s.idx.upsertTask(ctx, task, commit, record)
}

// LoadTask reads the task identified by id from its current note.
func (s *Store) LoadTask(ctx context.Context, id core.TaskID) (*core.Task, error) {
	commit, err := s.git.ReadRef(ctx, refPrefixTasks+string(id))
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("task", string(id))
		}
		return nil, err
	}
	raw, err := s.git.ReadNote(ctx, namespaceTasks, commit)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("task", string(id))
		}
		return nil, err
	}
	record, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(s.schemas.task, "task", record); err != nil {
		return nil, err
	}
	var task core.Task
	if err := unmarshalJSON(record, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// ListTasksByWorkflow returns every indexed task for workflowID, oldest
// first.
func (s *Store) ListTasksByWorkflow(ctx context.Context, workflowID core.WorkflowID) ([]*core.Task, error) {
	return s.idx.listTasksByWorkflow(ctx, workflowID)
}

// DeleteTask removes the task's note, ref, and index row.
func (s *Store) DeleteTask(ctx context.Context, id core.TaskID) error {
	ref := refPrefixTasks + string(id)
	commit, err := s.git.ReadRef(ctx, ref)
	if err == nil {
		if rmErr := s.git.RemoveNote(ctx, namespaceTasks, commit); rmErr != nil {
			return core.ErrStore(core.CodeStateCorrupted, "remove task note").WithCause(rmErr)
		}
	} else if !core.IsCategory(err, core.ErrCatNotFound) {
		return err
	}
	if err := s.git.DeleteRef(ctx, ref); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "delete task ref").WithCause(err)
	}
	return s.idx.deleteTask(ctx, id)
}

// SaveAgent persists agent the same way SaveWorkflow persists a workflow.
func (s *Store) SaveAgent(ctx context.Context, agent *core.Agent) error {
	record, err := json.Marshal(agent)
	if err != nil {
		return fmt.Errorf("marshal agent %s: %w", agent.ID, err)
	}
	if err := validateRecord(s.schemas.agent, "agent", record); err != nil {
		return err
	}
	env, err := encodeEnvelope(record)
	if err != nil {
		return err
	}

	commit, err := s.anchorCommit(ctx)
	if err != nil {
		return err
	}
	if err := s.git.AddNote(ctx, namespaceAgents, commit, env); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "write agent note").WithCause(err)
	}
	if err := s.git.UpdateRef(ctx, refPrefixAgents+string(agent.ID), commit); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "update agent ref").WithCause(err)
	}
	return s.idx.upsertAgent(ctx, agent, commit, record)
}

// LoadAgent reads the agent identified by id from its current note.
func (s *Store) LoadAgent(ctx context.Context, id core.AgentID) (*core.Agent, error) {
	commit, err := s.git.ReadRef(ctx, refPrefixAgents+string(id))
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("agent", string(id))
		}
		return nil, err
	}
	raw, err := s.git.ReadNote(ctx, namespaceAgents, commit)
	if err != nil {
		if core.IsCategory(err, core.ErrCatNotFound) {
			return nil, core.ErrNotFound("agent", string(id))
		}
		return nil, err
	}
	record, err := decodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	if err := validateRecord(s.schemas.agent, "agent", record); err != nil {
		return nil, err
	}
	var agent core.Agent
	if err := unmarshalJSON(record, &agent); err != nil {
		return nil, err
	}
	return &agent, nil
}

// ListAgents returns every indexed agent handle, most recently updated
// first.
func (s *Store) ListAgents(ctx context.Context) ([]*core.Agent, error) {
	return s.idx.listAgents(ctx)
}

// DeleteAgent removes the agent's note, ref, and index row.
func (s *Store) DeleteAgent(ctx context.Context, id core.AgentID) error {
	ref := refPrefixAgents + string(id)
	commit, err := s.git.ReadRef(ctx, ref)
	if err == nil {
		if rmErr := s.git.RemoveNote(ctx, namespaceAgents, commit); rmErr != nil {
			return core.ErrStore(core.CodeStateCorrupted, "remove agent note").WithCause(rmErr)
		}
	} else if !core.IsCategory(err, core.ErrCatNotFound) {
		return err
	}
	if err := s.git.DeleteRef(ctx, ref); err != nil {
		return core.ErrStore(core.CodeStateCorrupted, "delete agent ref").WithCause(err)
	}
	return s.idx.deleteAgent(ctx, id)
}
