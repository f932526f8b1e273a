package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// Obligation is a billable line item with an amount owed: the customer side
// of a trade order, or one payee cost line of an order. PaidAmount
// accumulates allocations from the entity's payments; Status is derived from
// (Amount, PaidAmount) and never set independently.
type Obligation struct {
	ID             int               `gorm:"primary_key" json:"id"`
	BusinessId     string            `gorm:"index;not null" json:"business_id" binding:"required"`
	EntityId       int               `gorm:"index;not null" json:"entity_id" binding:"required"`
	RefType        ObligationRefType `gorm:"type:enum('Order','OrderCostLine');not null" json:"ref_type"`
	RefId          int               `gorm:"index;not null" json:"ref_id"`
	ObligationDate time.Time         `gorm:"not null;index" json:"obligation_date" binding:"required"`
	Description    string            `gorm:"type:text;default:null" json:"description"`
	Amount         decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"amount"`
	PaidAmount     decimal.Decimal   `gorm:"type:decimal(20,4);default:0" json:"paid_amount"`
	Status         ObligationStatus  `gorm:"type:enum('Unpaid','Paid');not null;default:'Unpaid'" json:"status"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

// UnpaidAmount returns the portion of the obligation no payment has covered yet.
func (o Obligation) UnpaidAmount() decimal.Decimal {
	return o.Amount.Sub(o.PaidAmount)
}

// DeriveStatus recomputes Status from (Amount, PaidAmount). A zero-amount
// obligation counts as paid.
func (o *Obligation) DeriveStatus() {
	if o.PaidAmount.GreaterThanOrEqual(o.Amount) {
		o.Status = ObligationStatusPaid
	} else {
		o.Status = ObligationStatusUnpaid
	}
}

// ResetAllocation clears the obligation back to its pre-allocation state.
// Only the reset-and-replay path of payment edit/delete may do this.
func (o *Obligation) ResetAllocation() {
	o.PaidAmount = decimal.Zero
	o.Status = ObligationStatusUnpaid
	o.DeriveStatus()
}

func GetObligation(ctx context.Context, id int) (*Obligation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Obligation](ctx, businessId, id)
}

// ListObligationsByEntity returns the entity's full obligation set in
// storage order. Callers that allocate must re-sort (date asc, id asc).
func ListObligationsByEntity(ctx context.Context, entityId int) ([]*Obligation, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	db := config.GetDB()
	var results []*Obligation
	err := db.WithContext(ctx).
		Where("business_id = ? AND entity_id = ?", businessId, entityId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
