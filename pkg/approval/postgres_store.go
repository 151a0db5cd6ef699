package approval

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/speedrun-hq/gmp-verifier/pkg/chains"
	"github.com/speedrun-hq/gmp-verifier/pkg/models"
)

// PostgresStore persists approvals in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS approvals (
    intent_id TEXT PRIMARY KEY,
    escrow_id TEXT NOT NULL,
    chain_id BIGINT NOT NULL,
    chain_kind TEXT NOT NULL,
    approval_value NUMERIC(20, 0) NOT NULL,
    signature TEXT NOT NULL,
    fulfillment_tx TEXT NOT NULL DEFAULT '',
    signed_at BIGINT NOT NULL
);
ALTER TABLE approvals ADD COLUMN IF NOT EXISTS fulfillment_tx TEXT NOT NULL DEFAULT '';
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// approval_value is NUMERIC so the full u64 range fits; it travels as text
func (p *PostgresStore) Save(ctx context.Context, approval models.Approval) error {
	_, err := p.pool.Exec(ctx, `
INSERT INTO approvals (intent_id, escrow_id, chain_id, chain_kind, approval_value, signature, fulfillment_tx, signed_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8)
ON CONFLICT (intent_id) DO UPDATE
SET escrow_id = EXCLUDED.escrow_id,
    chain_id = EXCLUDED.chain_id,
    chain_kind = EXCLUDED.chain_kind,
    approval_value = EXCLUDED.approval_value,
    signature = EXCLUDED.signature,
    fulfillment_tx = EXCLUDED.fulfillment_tx,
    signed_at = EXCLUDED.signed_at
`, approval.IntentID, approval.EscrowID, int64(approval.ChainID), approval.ChainKind.String(),
		fmt.Sprintf("%d", approval.ApprovalValue), approval.Signature, approval.FulfillmentTx, int64(approval.Timestamp))
	return err
}

const selectColumns = `intent_id, escrow_id, chain_id, chain_kind, approval_value::text, signature, fulfillment_tx, signed_at`

func (p *PostgresStore) Get(ctx context.Context, intentID string) (*models.Approval, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM approvals WHERE intent_id = $1`, intentID)

	approval, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return approval, nil
}

func (p *PostgresStore) List(ctx context.Context) ([]models.Approval, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+selectColumns+` FROM approvals ORDER BY signed_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Approval
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *approval)
	}
	return out, rows.Err()
}

func scanApproval(row pgx.Row) (*models.Approval, error) {
	var (
		a        models.Approval
		chainID  int64
		kind     string
		value    string
		signedAt int64
	)
	if err := row.Scan(&a.IntentID, &a.EscrowID, &chainID, &kind, &value, &a.Signature, &a.FulfillmentTx, &signedAt); err != nil {
		return nil, err
	}

	parsedKind, err := chains.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	if _, err := fmt.Sscan(value, &a.ApprovalValue); err != nil {
		return nil, fmt.Errorf("invalid approval value %q: %w", value, err)
	}
	a.ChainID = uint64(chainID)
	a.ChainKind = parsedKind
	a.Timestamp = uint64(signedAt)
	return &a, nil
}
