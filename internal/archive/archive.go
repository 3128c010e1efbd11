// Package archive keeps a copy of every posted comment in blob storage so
// the exact body that reached GitHub can be retrieved later.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// ErrNotFound is returned by every StorageClient when no blob exists under
// the requested key.
var ErrNotFound = errors.New("archived record not found")

// StorageClient abstracts blob storage for archived records.
type StorageClient interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// Record is the archived form of one published comment.
type Record struct {
	ID          string    `json:"id"`
	Owner       string    `json:"owner"`
	Repo        string    `json:"repo"`
	IssueNumber int       `json:"issue_number"`
	CommentID   int64     `json:"comment_id"`
	CommentURL  string    `json:"comment_url"`
	BodySHA256  string    `json:"body_sha256"`
	Body        string    `json:"body"`
	PostedAt    time.Time `json:"posted_at"`
}

// Archive stores records as JSON documents under
// [prefix/]owner/repo/<issue>/<id>.json.
type Archive struct {
	store  StorageClient
	prefix string
}

// New creates an Archive on top of store.
func New(store StorageClient, prefix string) *Archive {
	return &Archive{store: store, prefix: strings.Trim(prefix, "/")}
}

// Key returns the storage key for a record.
func (a *Archive) Key(rec Record) string {
	key := fmt.Sprintf("%s/%s/%d/%s.json", rec.Owner, rec.Repo, rec.IssueNumber, rec.ID)
	if a.prefix != "" {
		key = a.prefix + "/" + key
	}
	return key
}

// PutRecord stores rec and returns the key it was written under.
func (a *Archive) PutRecord(ctx context.Context, rec Record) (string, error) {
	if rec.ID == "" {
		return "", fmt.Errorf("archive record has no id")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	key := a.Key(rec)
	if err := a.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}
	return key, nil
}

// GetRecord loads the record stored under key.
func (a *Archive) GetRecord(ctx context.Context, key string) (*Record, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", key, err)
	}
	return &rec, nil
}

// Close releases the underlying storage client when it holds resources.
func (a *Archive) Close() error {
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
