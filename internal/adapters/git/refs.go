package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/TheHiddenLayer/zen/internal/core"
)

// UpdateRef points ref at commit, creating it if absent (implements
// core.GitClient). Named refs under refs/zen/... are how C1 tracks the
// latest known commit for a workflow/task/agent record without walking
// notes history on every read.
func (c *Client) UpdateRef(ctx context.Context, ref, commit string) error {
	if err := validateZenRef(ref); err != nil {
		return err
	}
	if err := validateGitRev(commit); err != nil {
		return err
	}
	_, err := c.run(ctx, "update-ref", ref, commit)
	return err
}

// ReadRef resolves ref to the commit it points at, or core.ErrNotFound if it
// does not exist (implements core.GitClient).
func (c *Client) ReadRef(ctx context.Context, ref string) (string, error) {
	if err := validateZenRef(ref); err != nil {
		return "", err
	}
	out, stderr, err := c.runWithOutput(ctx, "rev-parse", "--verify", "--quiet", ref)
	if err != nil {
		if strings.TrimSpace(out) == "" && strings.TrimSpace(stderr) == "" {
			return "", core.ErrNotFound("ref", ref)
		}
		return "", fmt.Errorf("git rev-parse %s: %w: %s", ref, err, stderr)
	}
	if out == "" {
		return "", core.ErrNotFound("ref", ref)
	}
	return out, nil
}

// DeleteRef removes ref. A no-op if it does not exist (implements
// core.GitClient).
func (c *Client) DeleteRef(ctx context.Context, ref string) error {
	if err := validateZenRef(ref); err != nil {
		return err
	}
	_, stderr, err := c.runWithOutput(ctx, "update-ref", "-d", ref)
	if err != nil {
		if strings.Contains(stderr, "not a valid ref") || strings.Contains(stderr, "unable to resolve") {
			return nil
		}
		return fmt.Errorf("git update-ref -d %s: %w: %s", ref, err, stderr)
	}
	return nil
}

// ListRefs returns every ref whose name starts with prefix (implements
// core.GitClient).
func (c *Client) ListRefs(ctx context.Context, prefix string) ([]string, error) {
	if err := validateNoNul("prefix", prefix); err != nil {
		return nil, err
	}
	out, stderr, err := c.runWithOutput(ctx, "for-each-ref", "--format=%(refname)", prefix)
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref: %w: %s", err, stderr)
	}
	if out == "" {
		return nil, nil
	}

	var refs []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			refs = append(refs, line)
		}
	}
	return refs, nil
}

// validateZenRef is a conservative refname check shared by the ref-management
// methods: no whitespace, no path traversal, must not look like a flag.
func validateZenRef(ref string) error {
	if err := validateNoNul("ref", ref); err != nil {
		return err
	}
	if ref == "" {
		return core.ErrValidation("INVALID_REF", "ref must not be empty")
	}
	if strings.HasPrefix(ref, "-") {
		return core.ErrValidation("INVALID_REF", "ref must not start with '-'")
	}
	if strings.ContainsAny(ref, " \t\n\r~^:?*[\\") || strings.Contains(ref, "..") {
		return core.ErrValidation("INVALID_REF", "ref contains forbidden character")
	}
	return nil
}
