// Package publish posts a scan report as a comment on an issue or pull request.
//
// A Publisher holds two capabilities: a FileReader for the scan result and a
// CommentCreator for the remote API. Each call to Publish reads the file once,
// composes the body, and creates exactly one comment. Nothing is retried or
// deduplicated; calling Publish twice creates two comments.
package publish

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/scanpost/scanpost/pkg/comment"
)

// FileReader reads a whole file.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// CommentCreator creates a comment on an issue or pull request.
type CommentCreator interface {
	CreateComment(ctx context.Context, owner, repo string, number int, body string) (*Comment, error)
}

// Comment is the API client's answer to a create request.
type Comment struct {
	ID  int64
	URL string
}

// Request identifies where to post and which scan result to read.
type Request struct {
	Owner          string
	Repo           string
	IssueNumber    int
	ScanResultPath string
}

// Validate checks the request constraints without touching the file or network.
func (r Request) Validate() error {
	switch {
	case r.Owner == "":
		return &InvalidRequestError{Field: "owner", Reason: "must not be empty"}
	case r.Repo == "":
		return &InvalidRequestError{Field: "repo", Reason: "must not be empty"}
	case r.IssueNumber <= 0:
		return &InvalidRequestError{Field: "issue_number", Reason: fmt.Sprintf("must be positive, got %d", r.IssueNumber)}
	case r.ScanResultPath == "":
		return &InvalidRequestError{Field: "scan_result", Reason: "must not be empty"}
	}
	return nil
}

// Result describes a published comment.
type Result struct {
	Body    string
	Comment *Comment
}

// Publisher composes and posts scan report comments.
type Publisher struct {
	files    FileReader
	comments CommentCreator
	logger   *zap.Logger
}

// NewPublisher creates a Publisher. A nil logger disables logging.
func NewPublisher(files FileReader, comments CommentCreator, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		files:    files,
		comments: comments,
		logger:   logger,
	}
}

// Compose reads the scan result and returns the comment body without posting it.
func (p *Publisher) Compose(req Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	p.logger.Info("Looking at repository",
		zap.String("repository", req.Owner+"/"+req.Repo),
		zap.Int("issue_number", req.IssueNumber),
		zap.String("scan_result", req.ScanResultPath),
	)

	content, err := p.files.ReadFile(req.ScanResultPath)
	if err != nil {
		return "", &FileAccessError{Path: req.ScanResultPath, Err: err}
	}
	p.logger.Debug("Loaded scan result", zap.ByteString("content", content))

	return comment.Compose(content), nil
}

// Publish reads the scan result, composes the body and creates one comment.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Result, error) {
	body, err := p.Compose(req)
	if err != nil {
		return nil, err
	}

	created, err := p.comments.CreateComment(ctx, req.Owner, req.Repo, req.IssueNumber, body)
	if err != nil {
		return nil, &RemoteCallError{
			Owner:       req.Owner,
			Repo:        req.Repo,
			IssueNumber: req.IssueNumber,
			Err:         err,
		}
	}
	if created == nil {
		created = &Comment{}
	}

	p.logger.Info("Created comment",
		zap.Int64("comment_id", created.ID),
		zap.String("url", created.URL),
	)

	return &Result{Body: body, Comment: created}, nil
}
