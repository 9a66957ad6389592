package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/pkg/pgretry"
)

// LedgerService appends module-authored events to the audit log and serves
// reads. Wallet mutations write their own ledger rows inside the engine's
// transaction; this path is for everything else a module wants on record.
type LedgerService struct {
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	mirror     ports.LedgerMirror
	retry      pgretry.Policy
	node       string
	log        zerolog.Logger
}

// NewLedgerService creates a new ledger service.
func NewLedgerService(
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	mirror ports.LedgerMirror,
	retry pgretry.Policy,
	node string,
	log zerolog.Logger,
) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		mirror:     mirror,
		retry:      retry,
		node:       node,
		log:        log,
	}
}

// Log appends one entry in its own short transaction. The sequence number is
// claimed and the row written atomically, so committed entries are strictly
// ordered with the wallet engine's own rows.
func (s *LedgerService) Log(ctx context.Context, req ports.LogRequest) error {
	entry := domain.LedgerEntry{
		Timestamp: time.Now().UTC(),
		ModuleID:  req.ModuleID,
		Op:        req.Op,
		From:      req.From,
		To:        req.To,
		Amount:    req.Amount,
		Reason:    req.Reason,
		OK:        req.OK,
		Code:      req.Code,
		IdemScope: req.IdemScope,
		Node:      s.node,
		Extra:     req.Extra,
	}
	// Raw keys never reach storage, same as in the wallet engine.
	if req.IdemKey != "" {
		entry.IdemKeyHash = domain.HashKey(req.IdemKey)
	}

	err := pgretry.Do(ctx, s.retry, func(ctx context.Context) error {
		tx, err := s.transactor.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		seq, err := s.ledgerRepo.NextSeq(ctx, tx)
		if err != nil {
			return err
		}
		entry.Seq = seq

		if err := s.ledgerRepo.Append(ctx, tx, &entry); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		s.log.Error().Err(err).Str("module_id", req.ModuleID).Str("op", req.Op).Msg("ledger append failed")
		return err
	}

	if s.mirror != nil {
		s.mirror.Enqueue(entry)
	}

	return nil
}

// List returns committed entries matching the filter, oldest first, plus the
// total match count for pagination.
func (s *LedgerService) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	return s.ledgerRepo.List(ctx, params)
}
