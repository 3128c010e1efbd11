// Package delivery runs one scanpost invocation end to end: publish the
// comment, then archive the body and record the publication.
package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scanpost/scanpost/internal/archive"
	"github.com/scanpost/scanpost/internal/ledger"
	"github.com/scanpost/scanpost/pkg/publish"
)

// Publisher posts one comment per call.
type Publisher interface {
	Publish(ctx context.Context, req publish.Request) (*publish.Result, error)
}

// Archiver stores the posted body.
type Archiver interface {
	PutRecord(ctx context.Context, rec archive.Record) (string, error)
}

// Recorder writes the publication ledger.
type Recorder interface {
	Record(ctx context.Context, p ledger.Publication) error
}

// Receipt records one successful publication.
type Receipt struct {
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

// Service publishes a comment and then does the bookkeeping around it.
type Service struct {
	publisher Publisher
	archive   Archiver
	ledger    Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithArchive stores every published body in a.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// WithLedger records every publication in r.
func WithLedger(r Recorder) Option {
	return func(s *Service) { s.ledger = r }
}

// WithClock overrides the time source used for PostedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service. A nil logger disables logging.
func NewService(publisher Publisher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver publishes the comment described by req. Publish errors are
// returned unchanged. Once the comment exists, archive and ledger failures
// are logged as warnings and the receipt is still returned.
func (s *Service) Deliver(ctx context.Context, req publish.Request) (*Receipt, error) {
	res, err := s.publisher.Publish(ctx, req)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256([]byte(res.Body))
	receipt := &Receipt{
		ID:          uuid.NewString(),
		Owner:       req.Owner,
		Repo:        req.Repo,
		IssueNumber: req.IssueNumber,
		CommentID:   res.Comment.ID,
		CommentURL:  res.Comment.URL,
		BodySHA256:  hex.EncodeToString(sum[:]),
		PostedAt:    s.now().UTC(),
	}
	log := s.logger.With(zap.String("receipt_id", receipt.ID))

	if s.archive != nil {
		ref, err := s.archive.PutRecord(ctx, archive.Record{
			ID:          receipt.ID,
			Owner:       receipt.Owner,
			Repo:        receipt.Repo,
			IssueNumber: receipt.IssueNumber,
			CommentID:   receipt.CommentID,
			CommentURL:  receipt.CommentURL,
			BodySHA256:  receipt.BodySHA256,
			Body:        res.Body,
			PostedAt:    receipt.PostedAt,
		})
		if err != nil {
			log.Warn("Archiving comment failed", zap.Error(err))
		} else {
			receipt.ArchiveRef = ref
			log.Debug("Archived comment", zap.String("archive_ref", ref))
		}
	}

	if s.ledger != nil {
		if err := s.ledger.Record(ctx, receipt.Publication()); err != nil {
			log.Warn("Recording publication failed", zap.Error(err))
		} else {
			log.Debug("Recorded publication")
		}
	}

	return receipt, nil
}

// Publication converts the receipt to its ledger row.
func (r *Receipt) Publication() ledger.Publication {
	return ledger.Publication{
		ID:          r.ID,
		Owner:       r.Owner,
		Repo:        r.Repo,
		IssueNumber: r.IssueNumber,
		CommentID:   r.CommentID,
		CommentURL:  r.CommentURL,
		BodySHA256:  r.BodySHA256,
		ArchiveRef:  r.ArchiveRef,
		PostedAt:    r.PostedAt,
	}
}
