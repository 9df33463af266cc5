package repository

import (
	"context"
	"testing"
	"time"

	"storefront_checkout/internal/domain/payment/model"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestLedgerCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec(`INSERT INTO "payment_ledgers"`).WillReturnResult(sqlmock.NewResult(0, 1))

	ledger := &model.PaymentLedger{PaymentSn: "DP1", OrderSn: "SN1", Gateway: model.GatewayAlipayPage, Amount: decimal.NewFromInt(100), Status: string(model.StatusWaitPay)}
	require.NoError(t, repo.Create(context.Background(), ledger))
	assert.NotEmpty(t, ledger.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerGetByPaymentSn(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		rows := sqlmock.NewRows([]string{"id", "payment_sn", "order_sn", "gateway", "amount", "status"}).
			AddRow("2b1e", "DP1", "SN1", model.GatewayWechatH5, "12.34", "SUCCESS")
		mock.ExpectQuery(`SELECT \* FROM "payment_ledgers" WHERE payment_sn = \$1`).
			WillReturnRows(rows)

		ledger, err := NewLedgerRepository(db).GetByPaymentSn(context.Background(), "DP1")

		require.NoError(t, err)
		rec := ledger.Record()
		assert.Equal(t, model.StatusSuccess, rec.PaymentStatus)
		assert.Equal(t, "SN1", rec.OrderSn)
		assert.True(t, decimal.RequireFromString("12.34").Equal(rec.Amount))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT \* FROM "payment_ledgers"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := NewLedgerRepository(db).GetByPaymentSn(context.Background(), "nope")

		assert.ErrorIs(t, err, ErrLedgerNotFound)
	})
}

func TestLedgerUpdateStatus(t *testing.T) {
	paidAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("moves a waiting row", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE "payment_ledgers" SET .*WHERE \(payment_sn = \$\d+ AND status = \$\d+\)`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		updated, err := NewLedgerRepository(db).UpdateStatus(context.Background(), "DP1", model.StatusSuccess, &paidAt, []byte(`{"ok":true}`))

		require.NoError(t, err)
		assert.True(t, updated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already settled", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE "payment_ledgers"`).WillReturnResult(sqlmock.NewResult(0, 0))

		updated, err := NewLedgerRepository(db).UpdateStatus(context.Background(), "DP1", model.StatusClosed, nil, nil)

		require.NoError(t, err)
		assert.False(t, updated)
	})
}
