package services

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koskita/backend/internal/clock"
	"github.com/koskita/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestLedgerService_RecordPaymentInTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewLedgerService(db, clock.NewFixed(now))

	payment := &models.Payment{ID: "pay-1", Amount: 1_500_000}

	t.Run("writes IN entry into existing default account", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT id FROM ledger_accounts").
			WithArgs("owner-1", models.DefaultIncomeAccountName).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "acc-1", "owner-1", "pay-1",
				models.LedgerEntryIn, int64(1_500_000), "Pembayaran booking KOS-2026-000001", now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, _ := db.Begin()
		err := service.RecordPaymentInTx(tx, "owner-1", payment, "Pembayaran booking KOS-2026-000001")
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("creates the default account on first income", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
		mock.ExpectQuery("SELECT id FROM ledger_accounts").
			WithArgs("owner-2", models.DefaultIncomeAccountName).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec("INSERT INTO ledger_accounts").
			WithArgs(sqlmock.AnyArg(), "owner-2", models.DefaultIncomeAccountName,
				models.LedgerAccountIncome, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, _ := db.Begin()
		err := service.RecordPaymentInTx(tx, "owner-2", payment, "Pembayaran booking KOS-2026-000002")
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second call for the same payment is a no-op", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("pay-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
		mock.ExpectCommit()

		tx, _ := db.Begin()
		err := service.RecordPaymentInTx(tx, "owner-1", payment, "Pembayaran booking KOS-2026-000001")
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_RecordPayoutOutTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewLedgerService(db, clock.NewFixed(now))

	payout := &models.Payout{
		ID:            "payout-1",
		OwnerID:       "owner-1",
		BankCode:      "014",
		AccountNumber: "1234567890",
		Amount:        2_000_000,
	}

	t.Run("insufficient balance", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(1_999_999)))
		mock.ExpectRollback()

		tx, _ := db.Begin()
		err := service.RecordPayoutOutTx(tx, payout)
		assert.ErrorIs(t, err, models.ErrSaldoTidakCukup)
		assert.EqualError(t, err, "Saldo tidak mencukupi")
		tx.Rollback()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sufficient balance writes OUT entry", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2_000_000)))
		mock.ExpectQuery("SELECT id FROM ledger_accounts").
			WithArgs("owner-1", models.DefaultIncomeAccountName).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("acc-1"))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "acc-1", "owner-1", "payout-1",
				models.LedgerEntryOut, int64(2_000_000), sqlmock.AnyArg(), now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		tx, _ := db.Begin()
		err := service.RecordPayoutOutTx(tx, payout)
		assert.NoError(t, err)
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestLedgerService_Balance(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewLedgerService(db, clock.NewSystem())

	t.Run("sums IN minus OUT", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(3_500_000)))

		balance, err := service.Balance(context.Background(), "owner-1")
		assert.NoError(t, err)
		assert.Equal(t, int64(3_500_000), balance)
	})

	t.Run("empty ledger is zero", func(t *testing.T) {
		mock.ExpectQuery("SELECT COALESCE").
			WithArgs("owner-empty").
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(0)))

		balance, err := service.Balance(context.Background(), "owner-empty")
		assert.NoError(t, err)
		assert.Zero(t, balance)
	})
}

func TestLedgerService_CreateAdjustment(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	service := NewLedgerService(db, clock.NewFixed(now))

	t.Run("reverses the original direction", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, account_id, direction, amount").
			WithArgs("entry-1", "owner-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "account_id", "direction", "amount"}).
				AddRow("entry-1", "acc-1", models.LedgerEntryIn, int64(500_000)))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WithArgs(sqlmock.AnyArg(), "acc-1", "owner-1", sqlmock.AnyArg(),
				models.LedgerEntryOut, int64(500_000), "salah input", now, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		adj, err := service.CreateAdjustment(context.Background(), "owner-1", "entry-1", "salah input")
		assert.NoError(t, err)
		assert.Equal(t, models.LedgerEntryOut, adj.Direction)
		assert.Equal(t, int64(500_000), adj.Amount)
		assert.NotNil(t, adj.AdjustsID)
		assert.Equal(t, "entry-1", *adj.AdjustsID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
