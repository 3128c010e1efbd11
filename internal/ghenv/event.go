package ghenv

import (
	"encoding/json"
	"fmt"
)

// PullRequestEvent is the payload of pull_request and pull_request_target events.
type PullRequestEvent struct {
	Action      string             `json:"action"`
	Number      int                `json:"number"`
	PullRequest PullRequestPayload `json:"pull_request"`
	Repository  Repository         `json:"repository"`
}

// PullRequestPayload contains pull request details.
type PullRequestPayload struct {
	Number int    `json:"number"`
	State  string `json:"state"`
	Head   GitRef `json:"head"`
	Base   GitRef `json:"base"`
}

// IssuesEvent is the payload of the issues event.
type IssuesEvent struct {
	Action     string       `json:"action"`
	Issue      IssuePayload `json:"issue"`
	Repository Repository   `json:"repository"`
}

// IssueCommentEvent is the payload of the issue_comment event. It fires for
// comments on both issues and pull requests.
type IssueCommentEvent struct {
	Action     string       `json:"action"`
	Issue      IssuePayload `json:"issue"`
	Repository Repository   `json:"repository"`
}

// IssuePayload contains issue details.
type IssuePayload struct {
	Number int    `json:"number"`
	State  string `json:"state"`
}

// GitRef represents a git reference (branch head).
type GitRef struct {
	SHA string `json:"sha"`
	Ref string `json:"ref"`
}

// Repository represents a GitHub repository.
type Repository struct {
	FullName string `json:"full_name"`
	Name     string `json:"name"`
	Owner    User   `json:"owner"`
}

// User represents a GitHub user or organization.
type User struct {
	Login string `json:"login"`
}

// ParseEvent parses an event payload based on the event name.
func ParseEvent(eventName string, payload []byte) (interface{}, error) {
	switch eventName {
	case "pull_request", "pull_request_target":
		var e PullRequestEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse %s event: %w", eventName, err)
		}
		return &e, nil
	case "issues":
		var e IssuesEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse issues event: %w", err)
		}
		return &e, nil
	case "issue_comment":
		var e IssueCommentEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse issue_comment event: %w", err)
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnsupported, eventName)
	}
}

// issueNumber extracts the issue or pull request number from a parsed event.
func issueNumber(event interface{}) int {
	switch e := event.(type) {
	case *PullRequestEvent:
		if e.Number != 0 {
			return e.Number
		}
		return e.PullRequest.Number
	case *IssuesEvent:
		return e.Issue.Number
	case *IssueCommentEvent:
		return e.Issue.Number
	}
	return 0
}
