// Package receipts keeps confirmed registration receipts in a local SQLite
// database.
//
// The ledger is the source of truth, the journal is a cache of it for
// quick lookups of past runs. Every run gets its own row, so the same
// fingerprint may appear several times.
package receipts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nspcc-dev/neofs-authenticity/fingerprint"
	"github.com/nspcc-dev/neofs-authenticity/pipeline"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS receipts (
	run_id TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL,
	filename TEXT NOT NULL DEFAULT '',
	artifact_address TEXT NOT NULL,
	artifact_url TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL,
	ledger_score INTEGER NOT NULL,
	is_authentic INTEGER NOT NULL,
	transaction_id TEXT NOT NULL,
	valid_until_block INTEGER NOT NULL,
	nonce INTEGER NOT NULL,
	message TEXT NOT NULL DEFAULT '',
	submitted_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS receipts_fingerprint ON receipts (fingerprint);
`

// timeLayout keeps lexical order of stored times equal to their
// chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectColumns = `SELECT run_id, fingerprint, filename, artifact_address, artifact_url, score, ledger_score,
	is_authentic, transaction_id, valid_until_block, nonce, message, submitted_at FROM receipts`

// Journal is a SQLite receipt journal. It implements pipeline.Journal.
type Journal struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal database: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends r.
func (j *Journal) Record(ctx context.Context, r pipeline.Receipt) error {
	_, err := j.db.ExecContext(ctx, `INSERT INTO receipts (
		run_id, fingerprint, filename, artifact_address, artifact_url, score, ledger_score,
		is_authentic, transaction_id, valid_until_block, nonce, message, submitted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID.String(), r.ContentFingerprint.String(), r.Filename, r.ArtifactAddress, r.ArtifactURL,
		r.AuthenticityScore, r.LedgerScore, r.IsAuthentic, r.TransactionID, int64(r.ValidUntilBlock),
		int64(r.Nonce), r.Message, r.SubmittedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("insert receipt: %w", err)
	}

	return nil
}

// ByFingerprint returns every receipt of fp, oldest first.
func (j *Journal) ByFingerprint(ctx context.Context, fp fingerprint.Fingerprint) ([]pipeline.Receipt, error) {
	return j.query(ctx, selectColumns+` WHERE fingerprint = ? ORDER BY submitted_at, rowid`, fp.String())
}

// List returns up to limit most recent receipts, newest first.
func (j *Journal) List(ctx context.Context, limit int) ([]pipeline.Receipt, error) {
	return j.query(ctx, selectColumns+` ORDER BY submitted_at DESC, rowid DESC LIMIT ?`, limit)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]pipeline.Receipt, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var res []pipeline.Receipt

	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}

	return res, nil
}

func scanReceipt(rows *sql.Rows) (pipeline.Receipt, error) {
	var (
		r           pipeline.Receipt
		runID       string
		fp          string
		vub         int64
		nonce       int64
		submittedAt string
	)

	err := rows.Scan(&runID, &fp, &r.Filename, &r.ArtifactAddress, &r.ArtifactURL, &r.AuthenticityScore, &r.LedgerScore,
		&r.IsAuthentic, &r.TransactionID, &vub, &nonce, &r.Message, &submittedAt)
	if err != nil {
		return r, fmt.Errorf("scan receipt: %w", err)
	}

	r.RunID, err = uuid.Parse(runID)
	if err != nil {
		return r, fmt.Errorf("invalid run ID %q: %w", runID, err)
	}

	r.ContentFingerprint, err = fingerprint.Parse(fp)
	if err != nil {
		return r, fmt.Errorf("invalid fingerprint %q: %w", fp, err)
	}

	r.SubmittedAt, err = time.Parse(timeLayout, submittedAt)
	if err != nil {
		return r, fmt.Errorf("invalid submission time %q: %w", submittedAt, err)
	}

	if vub < 0 || nonce < 0 {
		return r, errors.New("negative block height or nonce")
	}
	r.ValidUntilBlock, r.Nonce = uint32(vub), uint64(nonce)

	return r, nil
}
