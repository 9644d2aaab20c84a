package vcsstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Reconcile rebuilds the sqlite read-index entirely from the git notes,
// which remain the single source of truth. Call it at startup (in case the
// cache file was deleted or a prior process crashed mid-write) or whenever a
// list read looks inconsistent with a known note.
func (s *Store) Reconcile(ctx context.Context) error {
	if err := s.idx.clear(ctx); err != nil {
		return err
	}
	if err := s.reconcileWorkflows(ctx); err != nil {
		return err
	}
	if err := s.reconcileTasks(ctx); err != nil {
		return err
	}
	return s.reconcileAgents(ctx)
}

func (s *Store) reconcileWorkflows(ctx context.Context) error {
	notes, err := s.git.ListNotes(ctx, namespaceWorkflows)
	if err != nil {
		return fmt.Errorf("list workflow notes: %w", err)
	}
	for commit, raw := range notes {
		record, err := decodeEnvelope(raw)
		if err != nil {
			return fmt.Errorf("workflow note at %s: %w", commit, err)
		}
		if err := validateRecord(s.schemas.workflow, "workflow", record); err != nil {
			return fmt.Errorf("workflow note at %s: %w", commit, err)
		}
		var wf core.Workflow
		if err := json.Unmarshal(record, &wf); err != nil {
			return fmt.Errorf("workflow note at %s: %w", commit, err)
		}
		if err := s.idx.upsertWorkflow(ctx, &wf, commit, record); err != nil {
			return fmt.Errorf("reindex workflow %s: %w", wf.ID, err)
		}
	}
	return nil
}

func (s *Store) reconcileTasks(ctx context.Context) error {
	notes, err := s.git.ListNotes(ctx, namespaceTasks)
	if err != nil {
		return fmt.Errorf("list task notes: %w", err)
	}
	for commit, raw := range notes {
		record, err := decodeEnvelope(raw)
		if err != nil {
			return fmt.Errorf("task note at %s: %w", commit, err)
		}
		if err := validateRecord(s.schemas.task, "task", record); err != nil {
			return fmt.Errorf("task note at %s: %w", commit, err)
		}
		var task core.Task
		if err := json.Unmarshal(record, &task); err != nil {
			return fmt.Errorf("task note at %s: %w", commit, err)
		}
		if err := s.idx.upsertTask(ctx, &task, commit, record); err != nil {
			return fmt.Errorf("reindex task %s: %w", task.ID, err)
		}
	}
	return nil
}

func (s *Store) reconcileAgents(ctx context.Context) error {
	notes, err := s.git.ListNotes(ctx, namespaceAgents)
	if err != nil {
		return fmt.Errorf("list agent notes: %w", err)
	}
	for commit, raw := range notes {
		record, err := decodeEnvelope(raw)
		if err != nil {
			return fmt.Errorf("agent note at %s: %w", commit, err)
		}
		if err := validateRecord(s.schemas.agent, "agent", record); err != nil {
			return fmt.Errorf("agent note at %s: %w", commit, err)
		}
		var agent core.Agent
		if err := json.Unmarshal(record, &agent); err != nil {
			return fmt.Errorf("agent note at %s: %w", commit, err)
		}
		if err := s.idx.upsertAgent(ctx, &agent, commit, record); err != nil {
			return fmt.Errorf("reindex agent %s: %w", agent.ID, err)
		}
	}
	return nil
}
