// Package journal records the asset transactions submitted through the
// service: a PENDING entry before submission, completed as CONFIRMED or
// FAILED once the ledger answers.
package journal

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/fabric-lib-go/common/flogging"
	"github.com/pkg/errors"
)

var logger = flogging.MustGetLogger("journal")

type Status string

const (
	Pending   Status = "PENDING"
	Confirmed Status = "CONFIRMED"
	Failed    Status = "FAILED"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

type Entry struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	Operation string    `json:"operation"`
	AssetID   string    `json:"assetId"`
	Status    Status    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Recorder is implemented by journal backends.
type Recorder interface {
	// Begin records a PENDING entry and returns its id.
	Begin(ctx context.Context, identity, operation, assetID string) (string, error)
	// Complete marks the entry CONFIRMED when cause is nil, FAILED otherwise.
	Complete(ctx context.Context, id string, cause error) error
	// List returns up to limit entries, newest first.
	List(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit maps a requested page size onto [1, MaxLimit], with
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

type Postgres struct {
	db    *sql.DB
	newID func() string
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, newID: uuid.NewString}
}

func (p *Postgres) Begin(ctx context.Context, identity, operation, assetID string) (string, error) {
	id := p.newID()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO asset_journal (id, identity, operation, asset_id, status)
		VALUES ($1, $2, $3, $4, $5)`,
		id, identity, operation, assetID, Pending)
	if err != nil {
		return "", errors.Wrapf(err, "failed to record pending %s of asset %s", operation, assetID)
	}
	logger.Debugf("Journal entry %s: %s %s by [%s]", id, operation, assetID, identity)
	return id, nil
}

func (p *Postgres) Complete(ctx context.Context, id string, cause error) error {
	status, text := Confirmed, sql.NullString{}
	if cause != nil {
		status = Failed
		text = sql.NullString{String: cause.Error(), Valid: true}
	}

	res, err := p.db.ExecContext(ctx,
		"UPDATE asset_journal SET status = $1, error = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3",
		status, text, id)
	if err != nil {
		return errors.Wrapf(err, "failed to complete journal entry %s", id)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("journal entry %s not found", id)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, identity, operation, asset_id, status, error, created_at, updated_at
		FROM asset_journal ORDER BY created_at DESC LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, errors.Wrap(err, "failed to query journal")
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var text sql.NullString
		if err := rows.Scan(&e.ID, &e.Identity, &e.Operation, &e.AssetID, &e.Status, &text, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan journal entry")
		}
		e.Error = text.String
		entries = append(entries, e)
	}
	return entries, errors.Wrap(rows.Err(), "failed to read journal")
}

// Nop discards everything. It is used when the journal is disabled.
type Nop struct{}

func (Nop) Begin(context.Context, string, string, string) (string, error) { return "", nil }

func (Nop) Complete(context.Context, string, error) error { return nil }

func (Nop) List(context.Context, int) ([]Entry, error) { return []Entry{}, nil }
