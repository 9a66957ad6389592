package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/internal/metrics"
	"economy-core/pkg/pgretry"
)

// Idempotency scopes, one per operation family.
const (
	scopeDeposit  = "wallet:deposit"
	scopeWithdraw = "wallet:withdraw"
	scopeTransfer = "wallet:transfer"
)

// WalletConfig carries the engine's tuning knobs.
type WalletConfig struct {
	Retry          pgretry.Policy
	IdempotencyTTL time.Duration
	AttemptTimeout time.Duration
	Node           string
}

// WalletService is the money-movement engine. Every mutation runs inside a
// single database transaction that locks the affected player rows, writes the
// ledger entry and the idempotency record, and commits or rolls back as one
// unit. Transient failures are retried with a fresh transaction per attempt.
type WalletService struct {
	playerRepo  ports.PlayerRepository
	ledgerRepo  ports.LedgerRepository
	idemRepo    ports.IdempotencyRepository
	transactor  ports.DBTransactor
	replayCache ports.ReplayCache     // optional fast path, may be nil
	mirror      ports.LedgerMirror    // optional, may be nil
	monitor     ports.DegradedMonitor // optional, may be nil
	cfg         WalletConfig
	log         zerolog.Logger
}

// NewWalletService creates the wallet engine.
func NewWalletService(
	playerRepo ports.PlayerRepository,
	ledgerRepo ports.LedgerRepository,
	idemRepo ports.IdempotencyRepository,
	transactor ports.DBTransactor,
	replayCache ports.ReplayCache,
	mirror ports.LedgerMirror,
	monitor ports.DegradedMonitor,
	cfg WalletConfig,
	log zerolog.Logger,
) *WalletService {
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = 5 * time.Second
	}
	return &WalletService{
		playerRepo:  playerRepo,
		ledgerRepo:  ledgerRepo,
		idemRepo:    idemRepo,
		transactor:  transactor,
		replayCache: replayCache,
		mirror:      mirror,
		monitor:     monitor,
		cfg:         cfg,
		log:         log,
	}
}

// Deposit credits a player.
func (s *WalletService) Deposit(ctx context.Context, req ports.MutationRequest) (res domain.Result) {
	defer s.observe(domain.OpDeposit, time.Now(), &res)
	return s.mutateOne(ctx, domain.OpDeposit, req)
}

// Withdraw debits a player.
func (s *WalletService) Withdraw(ctx context.Context, req ports.MutationRequest) (res domain.Result) {
	defer s.observe(domain.OpWithdraw, time.Now(), &res)
	return s.mutateOne(ctx, domain.OpWithdraw, req)
}

// GetBalance resolves a player by UUID or name and returns the current
// balance in minor units.
func (s *WalletService) GetBalance(ctx context.Context, player string) (int64, error) {
	p, err := s.lookupPlayer(ctx, player)
	if err != nil {
		return 0, err
	}
	if p == nil {
		return 0, fmt.Errorf("%w: %q", domain.ErrUnknownPlayer, player)
	}
	return p.Balance, nil
}

// Seen records a player sighting. First contact creates the directory row
// with a zero balance; later sightings refresh the name and seen-at stamp.
func (s *WalletService) Seen(ctx context.Context, id uuid.UUID, name string) error {
	now := time.Now().UTC()
	return s.playerRepo.Upsert(ctx, &domain.Player{
		UUID:      id,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		SeenAt:    now,
	})
}

// mutateOne is the shared deposit/withdraw path.
func (s *WalletService) mutateOne(ctx context.Context, op string, req ports.MutationRequest) domain.Result {
	if s.monitor != nil && s.monitor.Degraded() {
		return domain.Fail(domain.CodeDegradedMode, "database unreachable, refusing new work")
	}
	if req.Amount <= 0 {
		return domain.Fail(domain.CodeInvalidAmount, "amount must be a positive integer in minor units")
	}

	player, failure := s.resolvePlayer(ctx, req.Player)
	if player == nil {
		return failure
	}

	scope := scopeDeposit
	var from, to *uuid.UUID
	if op == domain.OpWithdraw {
		scope = scopeWithdraw
		from = &player.UUID
	} else {
		to = &player.UUID
	}

	key, replayable := effectiveKey(req.IdempotencyKey)
	keyHash := domain.HashKey(key)
	fingerprint := domain.Fingerprint(scope, from, to, req.Amount, req.Reason)

	if replayable {
		if res, done := s.checkReplay(ctx, scope, keyHash, fingerprint); done {
			return res
		}
	}

	delta := req.Amount
	if op == domain.OpWithdraw {
		delta = -req.Amount
	}

	var result domain.Result
	err := s.withRetry(ctx, op, func(ctx context.Context) error {
		r, err := s.attemptOne(ctx, op, scope, keyHash, fingerprint, player.UUID, delta, req, replayable)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return s.failureFromErr(op, err)
	}
	return result
}

// Transfer moves units between two players as two coupled legs in one
// transaction. Either both legs apply or neither does.
func (s *WalletService) Transfer(ctx context.Context, req ports.TransferRequest) (res domain.Result) {
	defer s.observe(domain.OpTransfer, time.Now(), &res)

	if s.monitor != nil && s.monitor.Degraded() {
		return domain.Fail(domain.CodeDegradedMode, "database unreachable, refusing new work")
	}
	if req.Amount <= 0 {
		return domain.Fail(domain.CodeInvalidAmount, "amount must be a positive integer in minor units")
	}

	fromP, failure := s.resolvePlayer(ctx, req.From)
	if fromP == nil {
		return failure
	}
	toP, failure := s.resolvePlayer(ctx, req.To)
	if toP == nil {
		return failure
	}

	key, replayable := effectiveKey(req.IdempotencyKey)
	keyHash := domain.HashKey(key)
	fingerprint := domain.Fingerprint(scopeTransfer, &fromP.UUID, &toP.UUID, req.Amount, req.Reason)

	if replayable {
		if res, done := s.checkReplay(ctx, scopeTransfer, keyHash, fingerprint); done {
			return res
		}
	}

	var result domain.Result
	err := s.withRetry(ctx, domain.OpTransfer, func(ctx context.Context) error {
		r, err := s.attemptTransfer(ctx, keyHash, fingerprint, fromP.UUID, toP.UUID, req, replayable)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return s.failureFromErr(domain.OpTransfer, err)
	}
	return result
}

// attemptOne runs one deposit/withdraw transaction. Safe to re-execute: every
// call opens a fresh transaction and the authoritative idempotency check runs
// inside it.
func (s *WalletService) attemptOne(
	ctx context.Context,
	op, scope, keyHash, fingerprint string,
	playerID uuid.UUID,
	delta int64,
	req ports.MutationRequest,
	replayable bool,
) (domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	defer tx.Rollback(ctx)

	if replayable {
		if res, done, err := s.checkReplayTx(ctx, tx, scope, keyHash, fingerprint); err != nil {
			return domain.Result{}, err
		} else if done {
			return res, nil
		}
	}

	locked, err := s.playerRepo.GetForUpdate(ctx, tx, playerID)
	if err != nil {
		return domain.Result{}, err
	}
	if locked == nil {
		return domain.Fail(domain.CodeUnknownPlayer, "player row vanished before lock"), nil
	}

	oldBal := locked.Balance
	newBal := oldBal + delta

	var from, to *uuid.UUID
	if delta < 0 {
		from = &playerID
	} else {
		to = &playerID
	}

	entry := domain.LedgerEntry{
		Timestamp: time.Now().UTC(),
		ModuleID:  req.ModuleID,
		Op:        op,
		From:      from,
		To:        to,
		Amount:    delta,
		Reason:    domain.NormalizeReason(req.Reason),
		Node:      s.cfg.Node,
	}
	if replayable {
		entry.IdemScope = scope
		entry.IdemKeyHash = keyHash
	}

	if newBal < 0 {
		result := domain.Fail(domain.CodeInsufficientFunds,
			fmt.Sprintf("balance %d short of %d", oldBal, -delta))
		entry.OK = false
		entry.Code = result.Code
		entry.OldUnits = &oldBal
		entry.NewUnits = &oldBal
		return s.commitOutcome(ctx, tx, &entry, scope, keyHash, fingerprint, result, replayable)
	}

	if err := s.playerRepo.UpdateBalance(ctx, tx, playerID, newBal); err != nil {
		return domain.Result{}, err
	}

	result := domain.Succeed(newBal)
	entry.OK = true
	entry.OldUnits = &oldBal
	entry.NewUnits = &newBal
	return s.commitOutcome(ctx, tx, &entry, scope, keyHash, fingerprint, result, replayable)
}

// attemptTransfer runs one transfer transaction. Rows are locked in ascending
// UUID order so opposite-direction transfers over the same pair cannot
// deadlock each other.
func (s *WalletService) attemptTransfer(
	ctx context.Context,
	keyHash, fingerprint string,
	fromID, toID uuid.UUID,
	req ports.TransferRequest,
	replayable bool,
) (domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	defer tx.Rollback(ctx)

	if replayable {
		if res, done, err := s.checkReplayTx(ctx, tx, scopeTransfer, keyHash, fingerprint); err != nil {
			return domain.Result{}, err
		} else if done {
			return res, nil
		}
	}

	first, second := fromID, toID
	if bytes.Compare(second[:], first[:]) < 0 {
		first, second = second, first
	}

	rows := map[uuid.UUID]*domain.Player{}
	lockedFirst, err := s.playerRepo.GetForUpdate(ctx, tx, first)
	if err != nil {
		return domain.Result{}, err
	}
	if lockedFirst == nil {
		return domain.Fail(domain.CodeUnknownPlayer, "player row vanished before lock"), nil
	}
	rows[first] = lockedFirst

	if second != first {
		lockedSecond, err := s.playerRepo.GetForUpdate(ctx, tx, second)
		if err != nil {
			return domain.Result{}, err
		}
		if lockedSecond == nil {
			return domain.Fail(domain.CodeUnknownPlayer, "player row vanished before lock"), nil
		}
		rows[second] = lockedSecond
	}

	fromRow := rows[fromID]
	toRow := rows[toID]

	oldFrom := fromRow.Balance
	entry := domain.LedgerEntry{
		Timestamp: time.Now().UTC(),
		ModuleID:  req.ModuleID,
		Op:        domain.OpTransfer,
		From:      &fromID,
		To:        &toID,
		Amount:    req.Amount,
		Reason:    domain.NormalizeReason(req.Reason),
		Node:      s.cfg.Node,
	}
	if replayable {
		entry.IdemScope = scopeTransfer
		entry.IdemKeyHash = keyHash
	}

	if oldFrom < req.Amount {
		result := domain.Fail(domain.CodeInsufficientFunds,
			fmt.Sprintf("balance %d short of %d", oldFrom, req.Amount))
		entry.OK = false
		entry.Code = result.Code
		entry.OldUnits = &oldFrom
		entry.NewUnits = &oldFrom
		return s.commitOutcome(ctx, tx, &entry, scopeTransfer, keyHash, fingerprint, result, replayable)
	}

	newFrom := oldFrom - req.Amount
	if fromID == toID {
		// Self-transfer: both legs apply to one row and cancel out.
		newFrom = oldFrom
	} else {
		if err := s.playerRepo.UpdateBalance(ctx, tx, fromID, newFrom); err != nil {
			return domain.Result{}, err
		}
		if err := s.playerRepo.UpdateBalance(ctx, tx, toID, toRow.Balance+req.Amount); err != nil {
			return domain.Result{}, err
		}
	}

	result := domain.Succeed(newFrom)
	entry.OK = true
	entry.OldUnits = &oldFrom
	entry.NewUnits = &newFrom
	return s.commitOutcome(ctx, tx, &entry, scopeTransfer, keyHash, fingerprint, result, replayable)
}

// commitOutcome claims the next ledger sequence, appends the entry, writes the
// idempotency record when the call is replayable, and commits. Post-commit it
// feeds the mirror and the replay cache.
func (s *WalletService) commitOutcome(
	ctx context.Context,
	tx pgx.Tx,
	entry *domain.LedgerEntry,
	scope, keyHash, fingerprint string,
	result domain.Result,
	replayable bool,
) (domain.Result, error) {
	seq, err := s.ledgerRepo.NextSeq(ctx, tx)
	if err != nil {
		return domain.Result{}, err
	}
	entry.Seq = seq

	if err := s.ledgerRepo.Append(ctx, tx, entry); err != nil {
		return domain.Result{}, err
	}

	var rec *domain.IdempotencyRecord
	if replayable {
		now := time.Now().UTC()
		rec = &domain.IdempotencyRecord{
			Scope:       scope,
			KeyHash:     keyHash,
			Fingerprint: fingerprint,
			Result:      result,
			ExpiresAt:   now.Add(s.cfg.IdempotencyTTL),
			CreatedAt:   now,
		}
		if err := s.idemRepo.Create(ctx, tx, rec); err != nil {
			return domain.Result{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Result{}, err
	}

	metrics.LedgerAppendsTotal.WithLabelValues("wallet").Inc()
	if s.mirror != nil {
		s.mirror.Enqueue(*entry)
	}
	if rec != nil && s.replayCache != nil {
		if blob, err := json.Marshal(rec); err == nil {
			cacheCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
			if err := s.replayCache.Set(cacheCtx, domain.ReplayCacheKey(scope, keyHash), blob, s.cfg.IdempotencyTTL); err != nil {
				s.log.Debug().Err(err).Msg("replay cache set failed")
			}
			cancel()
		}
	}

	evt := s.log.Info()
	if !result.OK {
		evt = s.log.Warn().Str("code", string(result.Code))
	}
	evt.Str("op", entry.Op).Int64("seq", entry.Seq).Int64("amount", entry.Amount).
		Str("module_id", entry.ModuleID).Msg("wallet mutation committed")

	return result, nil
}

// checkReplay is the pre-transaction replay fast path: the cache first, then
// an advisory read of the store. Both are best-effort; the in-transaction
// check remains authoritative.
func (s *WalletService) checkReplay(ctx context.Context, scope, keyHash, fingerprint string) (domain.Result, bool) {
	if s.replayCache != nil {
		blob, err := s.replayCache.Get(ctx, domain.ReplayCacheKey(scope, keyHash))
		if err != nil {
			s.log.Debug().Err(err).Msg("replay cache get failed")
		} else if blob != nil {
			var rec domain.IdempotencyRecord
			if json.Unmarshal(blob, &rec) == nil {
				return s.replayOutcome(&rec, fingerprint), true
			}
		}
	}

	rec, err := s.idemRepo.Get(ctx, scope, keyHash)
	if err != nil {
		s.log.Debug().Err(err).Msg("advisory idempotency read failed")
		return domain.Result{}, false
	}
	if rec != nil {
		return s.replayOutcome(rec, fingerprint), true
	}
	return domain.Result{}, false
}

// checkReplayTx is the authoritative replay check inside the mutation
// transaction.
func (s *WalletService) checkReplayTx(ctx context.Context, tx pgx.Tx, scope, keyHash, fingerprint string) (domain.Result, bool, error) {
	rec, err := s.idemRepo.GetTx(ctx, tx, scope, keyHash)
	if err != nil {
		return domain.Result{}, false, err
	}
	if rec == nil {
		return domain.Result{}, false, nil
	}
	return s.replayOutcome(rec, fingerprint), true, nil
}

func (s *WalletService) replayOutcome(rec *domain.IdempotencyRecord, fingerprint string) domain.Result {
	if rec.Fingerprint != fingerprint {
		return domain.Fail(domain.CodeIdempotencyMismatch,
			"idempotency key reused for a different request")
	}
	return rec.Result.Replay()
}

// resolvePlayer accepts a UUID string or a display name. Returns the player,
// or a nil player with the failure to hand back.
func (s *WalletService) resolvePlayer(ctx context.Context, ref string) (*domain.Player, domain.Result) {
	p, err := s.lookupPlayer(ctx, ref)
	if err != nil {
		return nil, s.failureFromErr("resolve", err)
	}
	if p == nil {
		return nil, domain.Fail(domain.CodeUnknownPlayer, fmt.Sprintf("no player matching %q", ref))
	}
	return p, domain.Result{}
}

func (s *WalletService) lookupPlayer(ctx context.Context, ref string) (*domain.Player, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, nil
	}
	if id, err := uuid.Parse(ref); err == nil {
		return s.playerRepo.GetByUUID(ctx, id)
	}
	return s.playerRepo.GetByName(ctx, ref)
}

// withRetry wraps pgretry.Do, counting re-executions for the metrics.
func (s *WalletService) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := 0
	return pgretry.Do(ctx, s.cfg.Retry, func(ctx context.Context) error {
		attempts++
		if attempts > 1 {
			metrics.RetriesTotal.WithLabelValues(op).Inc()
		}
		return fn(ctx)
	})
}

// failureFromErr maps an infrastructure error to a canonical failure code.
// The taxonomy is closed, so anything that is not contention or a duplicate
// key surfaces as CONNECTION_LOST: from the caller's perspective the engine
// lost its storage mid-request.
func (s *WalletService) failureFromErr(op string, err error) domain.Result {
	s.log.Error().Err(err).Str("op", op).Msg("wallet mutation failed")

	if errors.Is(err, pgretry.ErrRetryExhausted) {
		return domain.Fail(domain.CodeDeadlockRetryExhausted,
			"database contention outlasted the retry budget")
	}
	if pgretry.Classify(err) == pgretry.ClassDuplicateKey {
		return domain.Fail(domain.CodeDuplicateKey,
			"idempotency key raced with a concurrent request; retry to observe its result")
	}
	return domain.Fail(domain.CodeConnectionLost, "lost database connection")
}

func (s *WalletService) observe(op string, start time.Time, res *domain.Result) {
	metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	code := "OK"
	if !res.OK {
		code = string(res.Code)
	}
	metrics.OpsTotal.WithLabelValues(op, code).Inc()
	if res.Replayed {
		metrics.ReplayTotal.WithLabelValues(op).Inc()
	}
}

// effectiveKey returns the idempotency key to use and whether the call is
// replayable. A blank key gets a synthesized one-shot key: the write path
// stays uniform but nothing is stored, so the call can never be replayed.
func effectiveKey(key string) (string, bool) {
	key = strings.TrimSpace(key)
	if key != "" {
		return key, true
	}
	return uuid.NewString(), false
}
