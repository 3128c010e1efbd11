package publish

import (
	"errors"
	"fmt"
)

// InvalidRequestError reports a request that violates an input constraint.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// FileAccessError reports a scan result file that could not be read.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("read scan result %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// RemoteCallError reports a failed comment creation.
type RemoteCallError struct {
	Owner       string
	Repo        string
	IssueNumber int
	Err         error
}

func (e *RemoteCallError) Error() string {
	return fmt.Sprintf("create comment on %s/%s#%d: %v", e.Owner, e.Repo, e.IssueNumber, e.Err)
}

func (e *RemoteCallError) Unwrap() error { return e.Err }

// StatusCoder is implemented by remote errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// StatusCode returns the HTTP status carried by the remote failure, or 0.
func (e *RemoteCallError) StatusCode() int {
	var sc StatusCoder
	if errors.As(e.Err, &sc) {
		return sc.StatusCode()
	}
	return 0
}
