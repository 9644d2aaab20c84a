package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// Git notes are the durable record store C1 builds on: each namespace is its
// own notes ref (refs/notes/<namespace>), and a note is attached to the
// commit it describes rather than living in a side channel that can drift
// from history. There is no teacher precedent for notes plumbing; this is
// grounded directly on `git notes` rather than adapted from existing code.

func notesRef(namespace string) string {
	return "refs/notes/" + namespace
}

func validateNotesNamespace(namespace string) error {
	if err := validateNoNul("namespace", namespace); err != nil {
		return err
	}
	if namespace == "" {
		return core.ErrValidation("INVALID_NAMESPACE", "notes namespace must not be empty")
	}
	if strings.ContainsAny(namespace, " \t\n\r~^:?*[\\") || strings.Contains(namespace, "..") {
		return core.ErrValidation("INVALID_NAMESPACE", "notes namespace contains forbidden character")
	}
	return nil
}

// AddNote attaches data to commit under namespace, overwriting any existing
// note at that commit (implements core.GitClient).
func (c *Client) AddNote(ctx context.Context, namespace, commit string, data []byte) error {
	if err := validateNotesNamespace(namespace); err != nil {
		return err
	}
	if err := validateGitRev(commit); err != nil {
		return err
	}

	_, stderr, err := c.runWithInput(ctx, data, "notes", "--ref="+notesRef(namespace), "add", "-f", "-F", "-", commit)
	if err != nil {
		return fmt.Errorf("git notes add: %w: %s", err, stderr)
	}
	return nil
}

// ReadNote returns the raw bytes of the note attached to commit under
// namespace, or core.ErrNotFound if no such note exists (implements
// core.GitClient).
func (c *Client) ReadNote(ctx context.Context, namespace, commit string) ([]byte, error) {
	if err := validateNotesNamespace(namespace); err != nil {
		return nil, err
	}
	if err := validateGitRev(commit); err != nil {
		return nil, err
	}

	out, stderr, err := c.runWithOutput(ctx, "notes", "--ref="+notesRef(namespace), "show", commit)
	if err != nil {
		if strings.Contains(stderr, "no note found") || strings.Contains(stderr, "No note") {
			return nil, core.ErrNotFound("note", namespace+"/"+commit)
		}
		return nil, fmt.Errorf("git notes show: %w: %s", err, stderr)
	}
	return []byte(out), nil
}

// ListNotes returns every note under namespace, keyed by the commit it is
// attached to (implements core.GitClient).
func (c *Client) ListNotes(ctx context.Context, namespace string) (map[string][]byte, error) {
	if err := validateNotesNamespace(namespace); err != nil {
		return nil, err
	}

	out, stderr, err := c.runWithOutput(ctx, "notes", "--ref="+notesRef(namespace), "list")
	if err != nil {
		if strings.Contains(stderr, "unknown ref") || strings.Contains(stderr, "does not exist") {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("git notes list: %w: %s", err, stderr)
	}

	result := make(map[string][]byte)
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		commit := fields[1]
		data, err := c.ReadNote(ctx, namespace, commit)
		if err != nil {
			return nil, err
		}
		result[commit] = data
	}
	return result, nil
}

// RemoveNote deletes the note attached to commit under namespace. A no-op if
// no note exists (implements core.GitClient).
func (c *Client) RemoveNote(ctx context.Context, namespace, commit string) error {
	if err := validateNotesNamespace(namespace); err != nil {
		return err
	}
	if err := validateGitRev(commit); err != nil {
		return err
	}

	_, stderr, err := c.runWithOutput(ctx, "notes", "--ref="+notesRef(namespace), "remove", "--ignore-missing", commit)
	if err != nil {
		return fmt.Errorf("git notes remove: %w: %s", err, stderr)
	}
	return nil
}
