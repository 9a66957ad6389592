package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"economy-core/internal/core/domain"
	"economy-core/internal/core/ports"
	"economy-core/internal/core/ports/mocks"
	"economy-core/pkg/logger"
)

var (
	uuidLow  = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	uuidHigh = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

type walletFixture struct {
	players    *mocks.MockPlayerRepository
	ledger     *mocks.MockLedgerRepository
	idem       *mocks.MockIdempotencyRepository
	transactor *mocks.MockDBTransactor
	monitor    *mocks.MockDegradedMonitor
	svc        *WalletService
}

func newWalletFixture(t *testing.T, monitored bool) *walletFixture {
	ctrl := gomock.NewController(t)
	f := &walletFixture{
		players:    mocks.NewMockPlayerRepository(ctrl),
		ledger:     mocks.NewMockLedgerRepository(ctrl),
		idem:       mocks.NewMockIdempotencyRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	var monitor ports.DegradedMonitor
	if monitored {
		f.monitor = mocks.NewMockDegradedMonitor(ctrl)
		monitor = f.monitor
	}
	f.svc = NewWalletService(
		f.players, f.ledger, f.idem, f.transactor,
		nil, nil, monitor,
		WalletConfig{
			Retry:          fastRetry(),
			IdempotencyTTL: time.Hour,
			AttemptTimeout: time.Second,
			Node:           "node-1",
		},
		logger.New("error", false),
	)
	return f
}

func TestWalletService_Deposit(t *testing.T) {
	f := newWalletFixture(t, false)
	ctx := context.Background()
	tx := &mocks.FakeTx{}

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 100}
	keyHash := domain.HashKey("key-1")

	f.players.EXPECT().GetByName(gomock.Any(), "alice").Return(alice, nil)
	f.idem.EXPECT().Get(gomock.Any(), "wallet:deposit", keyHash).Return(nil, nil)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.idem.EXPECT().GetTx(gomock.Any(), tx, "wallet:deposit", keyHash).Return(nil, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(alice, nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx, uuidLow, int64(150)).Return(nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(7), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Equal(t, int64(7), entry.Seq)
			assert.Equal(t, domain.OpDeposit, entry.Op)
			assert.Equal(t, int64(50), entry.Amount)
			assert.True(t, entry.OK)
			require.NotNil(t, entry.To)
			assert.Equal(t, uuidLow, *entry.To)
			assert.Nil(t, entry.From)
			assert.Equal(t, int64(100), *entry.OldUnits)
			assert.Equal(t, int64(150), *entry.NewUnits)
			assert.Equal(t, "wallet:deposit", entry.IdemScope)
			assert.Equal(t, "node-1", entry.Node)
			return nil
		})
	f.idem.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.IdempotencyRecord) error {
			assert.Equal(t, "wallet:deposit", rec.Scope)
			assert.Equal(t, keyHash, rec.KeyHash)
			assert.True(t, rec.Result.OK)
			return nil
		})

	res := f.svc.Deposit(ctx, ports.MutationRequest{
		ModuleID: "mod-arena", Player: "alice", Amount: 50,
		Reason: "quest reward", IdempotencyKey: "key-1",
	})

	assert.True(t, res.OK)
	assert.False(t, res.Replayed)
	require.NotNil(t, res.NewBalance)
	assert.Equal(t, int64(150), *res.NewBalance)
	assert.Equal(t, 1, tx.Committed)
}

func TestWalletService_Deposit_InvalidAmount(t *testing.T) {
	f := newWalletFixture(t, false)

	for _, amount := range []int64{0, -5} {
		res := f.svc.Deposit(context.Background(), ports.MutationRequest{
			ModuleID: "mod-arena", Player: "alice", Amount: amount,
		})
		assert.False(t, res.OK)
		assert.Equal(t, domain.CodeInvalidAmount, res.Code)
	}
}

func TestWalletService_Deposit_UnknownPlayer(t *testing.T) {
	f := newWalletFixture(t, false)

	f.players.EXPECT().GetByName(gomock.Any(), "ghost").Return(nil, nil)

	res := f.svc.Deposit(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "ghost", Amount: 10,
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeUnknownPlayer, res.Code)
}

func TestWalletService_Withdraw_InsufficientFundsCommitsFailureEntry(t *testing.T) {
	f := newWalletFixture(t, false)
	tx := &mocks.FakeTx{}

	bob := &domain.Player{UUID: uuidLow, Name: "bob", Balance: 30}
	keyHash := domain.HashKey("key-w")

	f.players.EXPECT().GetByName(gomock.Any(), "bob").Return(bob, nil)
	f.idem.EXPECT().Get(gomock.Any(), "wallet:withdraw", keyHash).Return(nil, nil)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.idem.EXPECT().GetTx(gomock.Any(), tx, "wallet:withdraw", keyHash).Return(nil, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(bob, nil)
	// No UpdateBalance: the failed attempt still gets a ledger row and an
	// idempotency record, but the balance is untouched.
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(8), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.False(t, entry.OK)
			assert.Equal(t, domain.CodeInsufficientFunds, entry.Code)
			assert.Equal(t, int64(-100), entry.Amount)
			assert.Equal(t, int64(30), *entry.OldUnits)
			assert.Equal(t, int64(30), *entry.NewUnits)
			return nil
		})
	f.idem.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.IdempotencyRecord) error {
			assert.False(t, rec.Result.OK)
			assert.Equal(t, domain.CodeInsufficientFunds, rec.Result.Code)
			return nil
		})

	res := f.svc.Withdraw(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "bob", Amount: 100, IdempotencyKey: "key-w",
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeInsufficientFunds, res.Code)
	assert.Equal(t, 1, tx.Committed)
}

func TestWalletService_Deposit_ReplaySkipsMutation(t *testing.T) {
	f := newWalletFixture(t, false)

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 150}
	keyHash := domain.HashKey("key-1")
	fp := domain.Fingerprint("wallet:deposit", nil, &uuidLow, 50, "quest reward")
	cached := domain.Succeed(150)

	f.players.EXPECT().GetByName(gomock.Any(), "alice").Return(alice, nil)
	f.idem.EXPECT().Get(gomock.Any(), "wallet:deposit", keyHash).Return(&domain.IdempotencyRecord{
		Scope: "wallet:deposit", KeyHash: keyHash, Fingerprint: fp, Result: cached,
	}, nil)

	res := f.svc.Deposit(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "alice", Amount: 50,
		Reason: "quest reward", IdempotencyKey: "key-1",
	})
	assert.True(t, res.OK)
	assert.True(t, res.Replayed)
	assert.Equal(t, domain.CodeIdempotencyReplay, res.Code)
	require.NotNil(t, res.NewBalance)
	assert.Equal(t, int64(150), *res.NewBalance)
}

func TestWalletService_Deposit_FingerprintMismatch(t *testing.T) {
	f := newWalletFixture(t, false)

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 150}
	keyHash := domain.HashKey("key-1")
	otherFp := domain.Fingerprint("wallet:deposit", nil, &uuidLow, 999, "something else")

	f.players.EXPECT().GetByName(gomock.Any(), "alice").Return(alice, nil)
	f.idem.EXPECT().Get(gomock.Any(), "wallet:deposit", keyHash).Return(&domain.IdempotencyRecord{
		Scope: "wallet:deposit", KeyHash: keyHash, Fingerprint: otherFp, Result: domain.Succeed(1),
	}, nil)

	res := f.svc.Deposit(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "alice", Amount: 50,
		Reason: "quest reward", IdempotencyKey: "key-1",
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeIdempotencyMismatch, res.Code)
}

func TestWalletService_Deposit_FireAndForgetSkipsIdempotency(t *testing.T) {
	f := newWalletFixture(t, false)
	tx := &mocks.FakeTx{}

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 0}

	f.players.EXPECT().GetByName(gomock.Any(), "alice").Return(alice, nil)
	// No Get, GetTx or Create: a blank key is never stored or replayed.
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(alice, nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx, uuidLow, int64(10)).Return(nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(1), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Empty(t, entry.IdemScope)
			assert.Empty(t, entry.IdemKeyHash)
			return nil
		})

	res := f.svc.Deposit(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "alice", Amount: 10,
	})
	assert.True(t, res.OK)
	assert.Equal(t, 1, tx.Committed)
}

func TestWalletService_Transfer_LocksInAscendingUUIDOrder(t *testing.T) {
	f := newWalletFixture(t, false)
	tx := &mocks.FakeTx{}

	// Transfer goes high -> low; locks must still be taken low first.
	from := &domain.Player{UUID: uuidHigh, Name: "zoe", Balance: 100}
	to := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 5}

	f.players.EXPECT().GetByUUID(gomock.Any(), uuidHigh).Return(from, nil)
	f.players.EXPECT().GetByUUID(gomock.Any(), uuidLow).Return(to, nil)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	gomock.InOrder(
		f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(to, nil),
		f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidHigh).Return(from, nil),
	)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx, uuidHigh, int64(60)).Return(nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx, uuidLow, int64(45)).Return(nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(3), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Equal(t, domain.OpTransfer, entry.Op)
			assert.Equal(t, uuidHigh, *entry.From)
			assert.Equal(t, uuidLow, *entry.To)
			assert.Equal(t, int64(40), entry.Amount)
			assert.Equal(t, int64(100), *entry.OldUnits)
			assert.Equal(t, int64(60), *entry.NewUnits)
			return nil
		})

	res := f.svc.Transfer(context.Background(), ports.TransferRequest{
		ModuleID: "mod-arena",
		From:     uuidHigh.String(),
		To:       uuidLow.String(),
		Amount:   40,
	})
	assert.True(t, res.OK)
	assert.Equal(t, int64(60), *res.NewBalance)
	assert.Equal(t, 1, tx.Committed)
}

func TestWalletService_Transfer_SelfTransferNetsToZero(t *testing.T) {
	f := newWalletFixture(t, false)
	tx := &mocks.FakeTx{}

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 80}

	f.players.EXPECT().GetByUUID(gomock.Any(), uuidLow).Return(alice, nil).Times(2)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	// One lock on the single row, no balance writes.
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(alice, nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(4), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, entry *domain.LedgerEntry) error {
			assert.Equal(t, int64(80), *entry.OldUnits)
			assert.Equal(t, int64(80), *entry.NewUnits)
			return nil
		})

	res := f.svc.Transfer(context.Background(), ports.TransferRequest{
		ModuleID: "mod-arena",
		From:     uuidLow.String(),
		To:       uuidLow.String(),
		Amount:   20,
	})
	assert.True(t, res.OK)
	assert.Equal(t, int64(80), *res.NewBalance)
	assert.Equal(t, 1, tx.Committed)
}

func TestWalletService_Transfer_DeadlockRetriedThenSucceeds(t *testing.T) {
	f := newWalletFixture(t, false)

	from := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 100}
	to := &domain.Player{UUID: uuidHigh, Name: "zoe", Balance: 0}

	f.players.EXPECT().GetByUUID(gomock.Any(), uuidLow).Return(from, nil)
	f.players.EXPECT().GetByUUID(gomock.Any(), uuidHigh).Return(to, nil)

	tx1 := &mocks.FakeTx{}
	tx2 := &mocks.FakeTx{}
	gomock.InOrder(
		f.transactor.EXPECT().Begin(gomock.Any()).Return(tx1, nil),
		f.transactor.EXPECT().Begin(gomock.Any()).Return(tx2, nil),
	)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx1, uuidLow).
		Return(nil, &pgconn.PgError{Code: "40P01"})
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx2, uuidLow).Return(from, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx2, uuidHigh).Return(to, nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx2, uuidLow, int64(90)).Return(nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx2, uuidHigh, int64(10)).Return(nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx2).Return(int64(5), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx2, gomock.Any()).Return(nil)

	res := f.svc.Transfer(context.Background(), ports.TransferRequest{
		ModuleID: "mod-arena",
		From:     uuidLow.String(),
		To:       uuidHigh.String(),
		Amount:   10,
	})
	assert.True(t, res.OK)
	assert.Equal(t, 1, tx1.RolledBack)
	assert.Equal(t, 1, tx2.Committed)
}

func TestWalletService_Withdraw_RetryBudgetExhausted(t *testing.T) {
	f := newWalletFixture(t, false)

	bob := &domain.Player{UUID: uuidLow, Name: "bob", Balance: 100}
	f.players.EXPECT().GetByName(gomock.Any(), "bob").Return(bob, nil)

	// Every attempt deadlocks; each transaction must roll back in full.
	txs := make([]*mocks.FakeTx, 0, 3)
	f.transactor.EXPECT().Begin(gomock.Any()).DoAndReturn(
		func(context.Context) (pgx.Tx, error) {
			tx := &mocks.FakeTx{}
			txs = append(txs, tx)
			return tx, nil
		}).Times(3)
	f.players.EXPECT().GetForUpdate(gomock.Any(), gomock.Any(), uuidLow).
		Return(nil, &pgconn.PgError{Code: "40001"}).Times(3)

	res := f.svc.Withdraw(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "bob", Amount: 10,
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeDeadlockRetryExhausted, res.Code)
	for _, tx := range txs {
		assert.Equal(t, 1, tx.RolledBack)
		assert.Zero(t, tx.Committed)
	}
}

func TestWalletService_Withdraw_ConnectionLost(t *testing.T) {
	f := newWalletFixture(t, false)

	bob := &domain.Player{UUID: uuidLow, Name: "bob", Balance: 100}
	tx := &mocks.FakeTx{}

	f.players.EXPECT().GetByName(gomock.Any(), "bob").Return(bob, nil)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).
		Return(nil, &pgconn.PgError{Code: "08006"})

	res := f.svc.Withdraw(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "bob", Amount: 10,
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeConnectionLost, res.Code)
	assert.Equal(t, 1, tx.RolledBack)
}

func TestWalletService_Deposit_DuplicateKeyRace(t *testing.T) {
	f := newWalletFixture(t, false)
	tx := &mocks.FakeTx{}

	alice := &domain.Player{UUID: uuidLow, Name: "alice", Balance: 0}
	keyHash := domain.HashKey("key-1")

	f.players.EXPECT().GetByName(gomock.Any(), "alice").Return(alice, nil)
	f.idem.EXPECT().Get(gomock.Any(), "wallet:deposit", keyHash).Return(nil, nil)
	f.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	f.idem.EXPECT().GetTx(gomock.Any(), tx, "wallet:deposit", keyHash).Return(nil, nil)
	f.players.EXPECT().GetForUpdate(gomock.Any(), tx, uuidLow).Return(alice, nil)
	f.players.EXPECT().UpdateBalance(gomock.Any(), tx, uuidLow, int64(10)).Return(nil)
	f.ledger.EXPECT().NextSeq(gomock.Any(), tx).Return(int64(9), nil)
	f.ledger.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	// A concurrent request committed the same key first.
	f.idem.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		Return(&pgconn.PgError{Code: "23505"})

	res := f.svc.Deposit(context.Background(), ports.MutationRequest{
		ModuleID: "mod-arena", Player: "alice", Amount: 10, IdempotencyKey: "key-1",
	})
	assert.False(t, res.OK)
	assert.Equal(t, domain.CodeDuplicateKey, res.Code)
	assert.Equal(t, 1, tx.RolledBack)
}

func TestWalletService_DegradedModeShortCircuits(t *testing.T) {
	f := newWalletFixture(t, true)

	f.monitor.EXPECT().Degraded().Return(true).Times(3)

	dep := f.svc.Deposit(context.Background(), ports.MutationRequest{Player: "a", Amount: 1})
	wd := f.svc.Withdraw(context.Background(), ports.MutationRequest{Player: "a", Amount: 1})
	tr := f.svc.Transfer(context.Background(), ports.TransferRequest{From: "a", To: "b", Amount: 1})

	for _, res := range []domain.Result{dep, wd, tr} {
		assert.False(t, res.OK)
		assert.Equal(t, domain.CodeDegradedMode, res.Code)
	}
}

func TestWalletService_GetBalance(t *testing.T) {
	f := newWalletFixture(t, false)

	f.players.EXPECT().GetByUUID(gomock.Any(), uuidLow).
		Return(&domain.Player{UUID: uuidLow, Balance: 77}, nil)

	bal, err := f.svc.GetBalance(context.Background(), uuidLow.String())
	require.NoError(t, err)
	assert.Equal(t, int64(77), bal)
}

func TestWalletService_GetBalance_Unknown(t *testing.T) {
	f := newWalletFixture(t, false)

	f.players.EXPECT().GetByName(gomock.Any(), "ghost").Return(nil, nil)

	_, err := f.svc.GetBalance(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUnknownPlayer)
}

func TestWalletService_Seen(t *testing.T) {
	f := newWalletFixture(t, false)

	f.players.EXPECT().Upsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p *domain.Player) error {
			assert.Equal(t, uuidLow, p.UUID)
			assert.Equal(t, "alice", p.Name)
			assert.False(t, p.SeenAt.IsZero())
			// A first sighting creates the row, so the creation stamps
			// must arrive populated rather than as zero times.
			assert.False(t, p.CreatedAt.IsZero())
			assert.False(t, p.UpdatedAt.IsZero())
			return nil
		})

	require.NoError(t, f.svc.Seen(context.Background(), uuidLow, "alice"))
}
