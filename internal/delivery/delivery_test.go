package delivery

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scanpost/scanpost/internal/archive"
	"github.com/scanpost/scanpost/internal/ledger"
	"github.com/scanpost/scanpost/pkg/publish"
)

const body = "# Scan Results\n## Security\n\n\nSecurity scan: \nNo issues found."

type fakePublisher struct {
	calls int
	err   error
}

func (f *fakePublisher) Publish(ctx context.Context, req publish.Request) (*publish.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &publish.Result{
		Body:    body,
		Comment: &publish.Comment{ID: 1001, URL: "https://github.com/acme/widgets/pull/42#issuecomment-1001"},
	}, nil
}

type fakeArchive struct {
	records []archive.Record
	err     error
}

func (f *fakeArchive) PutRecord(ctx context.Context, rec archive.Record) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return "acme/widgets/42/" + rec.ID + ".json", nil
}

type fakeLedger struct {
	rows []ledger.Publication
	err  error
}

func (f *fakeLedger) Record(ctx context.Context, p ledger.Publication) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, p)
	return nil
}

var (
	request = publish.Request{Owner: "acme", Repo: "widgets", IssueNumber: 42, ScanResultPath: "scan.txt"}
	fixed   = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
)

func TestDeliver(t *testing.T) {
	pub := &fakePublisher{}
	arch := &fakeArchive{}
	led := &fakeLedger{}
	svc := NewService(pub, nil, WithArchive(arch), WithLedger(led), WithClock(func() time.Time { return fixed }))

	receipt, err := svc.Deliver(context.Background(), request)
	require.NoError(t, err)

	_, err = uuid.Parse(receipt.ID)
	assert.NoError(t, err, "receipt id should be a uuid")

	sum := sha256.Sum256([]byte(body))
	assert.Equal(t, hex.EncodeToString(sum[:]), receipt.BodySHA256)
	assert.Equal(t, int64(1001), receipt.CommentID)
	assert.Equal(t, fixed, receipt.PostedAt)
	assert.Equal(t, "acme/widgets/42/"+receipt.ID+".json", receipt.ArchiveRef)

	require.Len(t, arch.records, 1)
	assert.Equal(t, body, arch.records[0].Body)
	assert.Equal(t, receipt.ID, arch.records[0].ID)

	require.Len(t, led.rows, 1)
	assert.Equal(t, receipt.Publication(), led.rows[0])
	assert.Equal(t, receipt.ArchiveRef, led.rows[0].ArchiveRef)
}

func TestDeliverPublishErrorIsReturnedUnchanged(t *testing.T) {
	pubErr := &publish.RemoteCallError{Owner: "acme", Repo: "widgets", IssueNumber: 42, Err: errors.New("boom")}
	arch := &fakeArchive{}
	led := &fakeLedger{}
	svc := NewService(&fakePublisher{err: pubErr}, nil, WithArchive(arch), WithLedger(led))

	receipt, err := svc.Deliver(context.Background(), request)
	assert.Nil(t, receipt)
	assert.Same(t, pubErr, err)
	assert.Empty(t, arch.records)
	assert.Empty(t, led.rows)
}

func TestDeliverArchiveFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	led := &fakeLedger{}
	svc := NewService(&fakePublisher{}, zap.New(core),
		WithArchive(&fakeArchive{err: errors.New("bucket unavailable")}),
		WithLedger(led))

	receipt, err := svc.Deliver(context.Background(), request)
	require.NoError(t, err)
	assert.Empty(t, receipt.ArchiveRef)

	require.Len(t, led.rows, 1)
	assert.Empty(t, led.rows[0].ArchiveRef)

	warnings := logs.FilterMessage("Archiving comment failed").All()
	require.Len(t, warnings, 1)
	assert.Equal(t, receipt.ID, warnings[0].ContextMap()["receipt_id"])
}

func TestDeliverLedgerFailureIsNotFatal(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc := NewService(&fakePublisher{}, zap.New(core),
		WithLedger(&fakeLedger{err: errors.New("connection refused")}))

	receipt, err := svc.Deliver(context.Background(), request)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, 1, logs.FilterMessage("Recording publication failed").Len())
}

func TestDeliverWithoutBookkeeping(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(pub, nil)

	first, err := svc.Deliver(context.Background(), request)
	require.NoError(t, err)
	second, err := svc.Deliver(context.Background(), request)
	require.NoError(t, err)

	assert.Equal(t, 2, pub.calls, "every delivery publishes a new comment")
	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, first.ArchiveRef)
}
