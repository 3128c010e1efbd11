// Package ledger records every published scan comment in Postgres.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNotFound is returned when no publication matches the lookup.
var ErrNotFound = errors.New("publication not found")

// Publication is one row of the publications table.
type Publication struct {
	ID          string
	Owner       string
	Repo        string
	IssueNumber int
	CommentID   int64
	CommentURL  string
	BodySHA256  string
	ArchiveRef  string
	PostedAt    time.Time
}

// Store provides publication bookkeeping backed by Postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store on an open database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to databaseURL with the lib/pq driver and verifies the
// connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Record inserts p. p.ID must be a UUID.
func (s *Store) Record(ctx context.Context, p Publication) error {
	if _, err := uuid.Parse(p.ID); err != nil {
		return fmt.Errorf("record publication: invalid id %q: %w", p.ID, err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO publications
		   (id, owner, repo, issue_number, comment_id, comment_url, body_sha256, archive_ref, posted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.Owner, p.Repo, p.IssueNumber, p.CommentID, p.CommentURL, p.BodySHA256, p.ArchiveRef, p.PostedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("record publication %s: already recorded: %w", p.ID, err)
		}
		return fmt.Errorf("record publication %s: %w", p.ID, err)
	}
	return nil
}

// Get retrieves a publication by ID.
func (s *Store) Get(ctx context.Context, id string) (*Publication, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get publication: invalid id %q: %w", id, err)
	}
	p := &Publication{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, owner, repo, issue_number, comment_id, comment_url, body_sha256, archive_ref, posted_at
		 FROM publications WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Owner, &p.Repo, &p.IssueNumber, &p.CommentID, &p.CommentURL, &p.BodySHA256, &p.ArchiveRef, &p.PostedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get publication %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get publication %s: %w", id, err)
	}
	return p, nil
}

// ListByIssue returns the publications for one issue, newest first.
func (s *Store) ListByIssue(ctx context.Context, owner, repo string, issueNumber int) ([]Publication, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner, repo, issue_number, comment_id, comment_url, body_sha256, archive_ref, posted_at
		 FROM publications WHERE owner = $1 AND repo = $2 AND issue_number = $3
		 ORDER BY posted_at DESC`,
		owner, repo, issueNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	var pubs []Publication
	for rows.Next() {
		var p Publication
		if err := rows.Scan(&p.ID, &p.Owner, &p.Repo, &p.IssueNumber, &p.CommentID, &p.CommentURL, &p.BodySHA256, &p.ArchiveRef, &p.PostedAt); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		pubs = append(pubs, p)
	}
	return pubs, rows.Err()
}
