// Package ghenv resolves the comment target from the GitHub Actions
// environment.
package ghenv

import (
	"errors"
	"fmt"
	"strings"
)

var errUnsupported = errors.New("unsupported event type")

// Target identifies the issue or pull request a comment goes to.
type Target struct {
	Owner       string
	Repo        string
	IssueNumber int
}

// Merge returns t with every zero field filled from fallback.
func (t Target) Merge(fallback Target) Target {
	if t.Owner == "" {
		t.Owner = fallback.Owner
	}
	if t.Repo == "" {
		t.Repo = fallback.Repo
	}
	if t.IssueNumber == 0 {
		t.IssueNumber = fallback.IssueNumber
	}
	return t
}

// Detect builds a Target from GITHUB_REPOSITORY and the event payload at
// GITHUB_EVENT_PATH. Unset variables leave the matching fields empty; an
// event that carries no issue number leaves IssueNumber zero. When the
// payload cannot be read or parsed, the returned Target still carries the
// owner and repo resolved from GITHUB_REPOSITORY alongside the error.
func Detect(getenv func(string) string, readFile func(string) ([]byte, error)) (Target, error) {
	var t Target

	if full := getenv("GITHUB_REPOSITORY"); full != "" {
		owner, repo, err := SplitRepository(full)
		if err != nil {
			return Target{}, err
		}
		t.Owner, t.Repo = owner, repo
	}

	path := getenv("GITHUB_EVENT_PATH")
	name := getenv("GITHUB_EVENT_NAME")
	if path == "" || name == "" {
		return t, nil
	}

	payload, err := readFile(path)
	if err != nil {
		return t, fmt.Errorf("read event payload: %w", err)
	}

	event, err := ParseEvent(name, payload)
	if err != nil {
		if errors.Is(err, errUnsupported) {
			return t, nil
		}
		return t, err
	}
	t.IssueNumber = issueNumber(event)
	return t, nil
}

// SplitRepository splits an "owner/repo" string.
func SplitRepository(full string) (owner, repo string, err error) {
	parts := strings.Split(full, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("GITHUB_REPOSITORY must be owner/repo, got %q", full)
	}
	return parts[0], parts[1], nil
}
