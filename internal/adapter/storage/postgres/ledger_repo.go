package postgres

import (
	"context"
	"fmt"
	"strconv"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository. Sequence numbers come from a
// singleton counter row bumped inside the caller's transaction, so entries
// read back in sequence order reproduce true commit order.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

const ledgerColumns = `seq, ts, module_id, op, from_uuid, to_uuid, amount, reason,
		ok, code, idem_scope, idem_key_hash, old_units, new_units, server_node, extra_json`

// NextSeq increments and returns the persisted sequence counter. The UPDATE
// takes a row lock on the counter, serializing sequence assignment with
// every concurrent writer until their transactions resolve.
func (r *LedgerRepo) NextSeq(ctx context.Context, tx pgx.Tx) (int64, error) {
	var seq int64
	err := tx.QueryRow(ctx,
		`UPDATE ledger_seq SET value = value + 1 WHERE id = 1 RETURNING value`,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next ledger seq: %w", err)
	}
	return seq, nil
}

// Append inserts an entry within the caller's transaction. Entries are never
// updated or deleted by this repo.
func (r *LedgerRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger (` + ledgerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	var code *string
	if e.Code != "" {
		c := string(e.Code)
		code = &c
	}

	_, err := tx.Exec(ctx, query,
		e.Seq, e.Timestamp, e.ModuleID, e.Op, e.From, e.To, e.Amount, e.Reason,
		e.OK, code, nullIfEmpty(e.IdemScope), nullIfEmpty(e.IdemKeyHash),
		e.OldUnits, e.NewUnits, e.Node, e.Extra,
	)
	if err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}
	return nil
}

// List returns committed entries in ascending sequence order with the total
// match count.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	where := " WHERE seq > $1"
	args := []any{params.SinceSeq}

	if params.ModuleID != "" {
		args = append(args, params.ModuleID)
		where += " AND module_id = $" + strconv.Itoa(len(args))
	}
	if params.Op != "" {
		args = append(args, params.Op)
		where += " AND op = $" + strconv.Itoa(len(args))
	}
	if params.Player != nil {
		args = append(args, *params.Player)
		n := strconv.Itoa(len(args))
		where += " AND (from_uuid = $" + n + " OR to_uuid = $" + n + ")"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM ledger`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	page := params.Page
	if page < 1 {
		page = 1
	}
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	args = append(args, pageSize, (page-1)*pageSize)
	query := `SELECT ` + ledgerColumns + ` FROM ledger` + where +
		` ORDER BY seq ASC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		var e domain.LedgerEntry
		var code, idemScope, idemKeyHash *string
		if err := rows.Scan(
			&e.Seq, &e.Timestamp, &e.ModuleID, &e.Op, &e.From, &e.To, &e.Amount, &e.Reason,
			&e.OK, &code, &idemScope, &idemKeyHash,
			&e.OldUnits, &e.NewUnits, &e.Node, &e.Extra,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry: %w", err)
		}
		if code != nil {
			e.Code = domain.Code(*code)
		}
		if idemScope != nil {
			e.IdemScope = *idemScope
		}
		if idemKeyHash != nil {
			e.IdemKeyHash = *idemKeyHash
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list ledger rows: %w", err)
	}
	return entries, total, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
