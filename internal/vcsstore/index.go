package vcsstore

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/TheHiddenLayer/zen/internal/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// index is the sqlite read-index backing list/query access. It mirrors the
// notes/refs state for fast reads; every row can be rebuilt from the git
// notes themselves, so the index is a cache, never the record of truth.
// Grounded on the teacher's dual read/write connection split
// (adapters/state/sqlite.go): a single-connection write pool in WAL mode so
// writers serialize instead of colliding on SQLITE_BUSY, and a separate
// read-only pool sized for concurrent list/query callers.
type index struct {
	write *sql.DB
	read  *sql.DB
}

func openIndex(path string) (*index, error) {
	write, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open write index: %w", err)
	}
	write.SetMaxOpenConns(1)

	read, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&mode=ro&_pragma=busy_timeout(1000)")
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read index: %w", err)
	}
	read.SetMaxOpenConns(10)

	if err := migrate(write); err != nil {
		write.Close()
		read.Close()
		return nil, err
	}

	return &index{write: write, read: read}, nil
}

// migrate applies pending schema migrations via goose instead of the
// teacher's hand-rolled embedded-SQL version stepper (adapters/state/
// sqlite.go's migrate()): goose tracks applied versions itself, so adding a
// migration is just dropping a new numbered file in migrations/.
func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationFS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (ix *index) Close() error {
	readErr := ix.read.Close()
	writeErr := ix.write.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

func (ix *index) upsertWorkflow(ctx context.Context, wf *core.Workflow, commit string, data []byte) error {
	_, err := ix.write.ExecContext(ctx, `
		INSERT INTO workflows(id, name, phase, status, commit_hash, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name, phase=excluded.phase, status=excluded.status,
			commit_hash=excluded.commit_hash, updated_at=excluded.updated_at, data=excluded.data`,
		string(wf.ID), wf.Name, string(wf.Phase), string(wf.Status), commit, time.Now().Unix(), data)
	return err
}

func (ix *index) deleteWorkflow(ctx context.Context, id core.WorkflowID) error {
	_, err := ix.write.ExecContext(ctx, `DELETE FROM workflows WHERE id = ?`, string(id))
	return err
}

func (ix *index) listWorkflows(ctx context.Context) ([]*core.Workflow, error) {
	rows, err := ix.read.QueryContext(ctx, `SELECT data FROM workflows ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query workflows: %w", err)
	}
	defer rows.Close()

	var out []*core.Workflow
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan workflow row: %w", err)
		}
		var wf core.Workflow
		if err := unmarshalJSON(data, &wf); err != nil {
			return nil, err
		}
		out = append(out, &wf)
	}
	return out, rows.Err()
}

func (ix *index) upsertTask(ctx context.Context, task *core.Task, commit string, data []byte) error {
	_, err := ix.write.ExecContext(ctx, `
		INSERT INTO tasks(id, workflow_id, name, status, commit_hash, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			workflow_id=excluded.workflow_id, name=excluded.name, status=excluded.status,
			commit_hash=excluded.commit_hash, updated_at=excluded.updated_at, data=excluded.data`,
		string(task.ID), string(task.WorkflowID), task.Name, string(task.Status), commit, time.Now().Unix(), data)
	return err
}

func (ix *index) deleteTask(ctx context.Context, id core.TaskID) error {
	_, err := ix.write.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, string(id))
	return err
}

func (ix *index) listTasksByWorkflow(ctx context.Context, workflowID core.WorkflowID) ([]*core.Task, error) {
	rows, err := ix.read.QueryContext(ctx, `SELECT data FROM tasks WHERE workflow_id = ? ORDER BY updated_at ASC`, string(workflowID))
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*core.Task
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan task row: %w", err)
		}
		var task core.Task
		if err := unmarshalJSON(data, &task); err != nil {
			return nil, err
		}
		out = append(out, &task)
	}
	return out, rows.Err()
}

func (ix *index) upsertAgent(ctx context.Context, agent *core.Agent, commit string, data []byte) error {
	_, err := ix.write.ExecContext(ctx, `
		INSERT INTO agents(id, task_id, status, commit_hash, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			task_id=excluded.task_id, status=excluded.status,
			commit_hash=excluded.commit_hash, updated_at=excluded.updated_at, data=excluded.data`,
		string(agent.ID), string(agent.TaskID), string(agent.Status), commit, time.Now().Unix(), data)
	return err
}

func (ix *index) deleteAgent(ctx context.Context, id core.AgentID) error {
	_, err := ix.write.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, string(id))
	return err
}

func (ix *index) listAgents(ctx context.Context) ([]*core.Agent, error) {
	rows, err := ix.read.QueryContext(ctx, `SELECT data FROM agents ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	var out []*core.Agent
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan agent row: %w", err)
		}
		var agent core.Agent
		if err := unmarshalJSON(data, &agent); err != nil {
			return nil, err
		}
		out = append(out, &agent)
	}
	return out, rows.Err()
}

// clear truncates every index table; used by Reconcile to rebuild from
// scratch rather than reconcile row-by-row.
func (ix *index) clear(ctx context.Context) error {
	for _, table := range []string{"workflows", "tasks", "agents"} {
		if _, err := ix.write.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
