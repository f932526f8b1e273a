package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Payment is money received from a customer or paid out to a payee.
// UnallocatedAmount is the portion the allocation pass could not absorb
// into any of the entity's obligations.
type Payment struct {
	ID                int             `gorm:"primary_key" json:"id"`
	BusinessId        string          `gorm:"index;not null" json:"business_id" binding:"required"`
	EntityId          int             `gorm:"index;not null" json:"entity_id" binding:"required"`
	PaymentDate       time.Time       `gorm:"not null;index" json:"payment_date" binding:"required"`
	Amount            decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"amount" binding:"required"`
	UnallocatedAmount decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unallocated_amount"`
	Description       string          `gorm:"type:text;default:null" json:"description"`
	PaymentMethod     PaymentMethod   `gorm:"type:enum('Cash','KPay','WavePay','BankTransfer');not null" json:"payment_method" binding:"required"`
	PaymentNumber     string          `gorm:"size:255;not null" json:"payment_number"`
	SequenceNo        decimal.Decimal `gorm:"type:decimal(15);not null" json:"sequence_no"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewPayment is the reconciliation UI's input for creating or editing a payment.
type NewPayment struct {
	EntityId      int             `json:"entity_id" binding:"required"`
	PaymentDate   time.Time       `json:"payment_date" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Description   string          `json:"description"`
	PaymentMethod PaymentMethod   `json:"payment_method" binding:"required"`
}

func GetPayment(ctx context.Context, id int) (*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Payment](ctx, businessId, id)
}

// ListPaymentsByEntity returns the entity's payments in storage order.
// The replay path re-sorts by payment date.
func ListPaymentsByEntity(ctx context.Context, entityId int) ([]*Payment, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Payment
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_id = ?", businessId, entityId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
