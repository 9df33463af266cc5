package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"storefront_checkout/internal/domain/payment/model"

	"gorm.io/gorm"
)

// ErrLedgerNotFound 支付流水不存在
var ErrLedgerNotFound = errors.New("payment ledger not found")

type LedgerRepository interface {
	Create(ctx context.Context, ledger *model.PaymentLedger) error
	GetByPaymentSn(ctx context.Context, paymentSn string) (*model.PaymentLedger, error)
	// UpdateStatus 只更新仍处于 WAIT_PAY 的流水，返回是否有行被更新
	UpdateStatus(ctx context.Context, paymentSn string, status model.PaymentStatus, paidAt *time.Time, notify json.RawMessage) (bool, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Create(ctx context.Context, ledger *model.PaymentLedger) error {
	return r.db.WithContext(ctx).Create(ledger).Error
}

func (r *ledgerRepository) GetByPaymentSn(ctx context.Context, paymentSn string) (*model.PaymentLedger, error) {
	var ledger model.PaymentLedger
	err := r.db.WithContext(ctx).Where("payment_sn = ?", paymentSn).First(&ledger).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLedgerNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ledger, nil
}

func (r *ledgerRepository) UpdateStatus(ctx context.Context, paymentSn string, status model.PaymentStatus, paidAt *time.Time, notify json.RawMessage) (bool, error) {
	updates := map[string]interface{}{
		"status": string(status),
	}
	if paidAt != nil {
		updates["paid_at"] = paidAt
	}
	if notify != nil {
		updates["notify"] = []byte(notify)
	}
	res := r.db.WithContext(ctx).Model(&model.PaymentLedger{}).
		Where("payment_sn = ? AND status = ?", paymentSn, string(model.StatusWaitPay)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
