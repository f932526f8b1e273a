package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TradeOrder is the order-entry record. Creating one spawns the customer
// obligation for the order amount plus one payee obligation per cost line;
// the reconciliation engine only ever sees the obligations.
type TradeOrder struct {
	ID          int              `gorm:"primary_key" json:"id"`
	BusinessId  string           `gorm:"index;not null" json:"business_id" binding:"required"`
	CustomerId  int              `gorm:"index;not null" json:"customer_id" binding:"required"`
	OrderDate   time.Time        `gorm:"not null;index" json:"order_date" binding:"required"`
	OrderNumber string           `gorm:"size:255;not null" json:"order_number"`
	SequenceNo  decimal.Decimal  `gorm:"type:decimal(15);not null" json:"sequence_no"`
	ItemName    string           `gorm:"size:255;not null" json:"item_name" binding:"required"`
	Description string           `gorm:"type:text;default:null" json:"description"`
	FormType    string           `gorm:"size:50;not null" json:"form_type" binding:"required"`
	GateName    string           `gorm:"size:255;default:null" json:"gate_name"`
	Quantity    decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"quantity"`
	Price       decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"price"`
	Amount      decimal.Decimal  `gorm:"type:decimal(20,4);default:0" json:"amount"`
	CostLines   []OrderCostLine  `gorm:"foreignKey:TradeOrderId" json:"cost_lines"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// OrderCostLine is one payee's share of an order's cost.
type OrderCostLine struct {
	ID           int             `gorm:"primary_key" json:"id"`
	TradeOrderId int             `gorm:"index;not null" json:"trade_order_id"`
	PayeeId      int             `gorm:"index;not null" json:"payee_id" binding:"required"`
	Quantity     decimal.Decimal `gorm:"type:decimal(20,4);default:1" json:"quantity"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_price"`
	CostAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"cost_amount"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTradeOrder struct {
	CustomerId  int                `json:"customer_id" binding:"required"`
	OrderDate   time.Time          `json:"order_date" binding:"required"`
	ItemName    string             `json:"item_name" binding:"required"`
	Description string             `json:"description"`
	FormType    string             `json:"form_type" binding:"required"`
	GateName    string             `json:"gate_name"`
	Quantity    decimal.Decimal    `json:"quantity"`
	Price       decimal.Decimal    `json:"price"`
	Amount      decimal.Decimal    `json:"amount"`
	CostLines   []NewOrderCostLine `json:"cost_lines"`
}

type NewOrderCostLine struct {
	PayeeId    int             `json:"payee_id" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	CostPrice  decimal.Decimal `json:"cost_price"`
	CostAmount decimal.Decimal `json:"cost_amount"`
}

func (input *NewTradeOrder) validate(ctx context.Context, businessId string) error {
	// exists customer
	count, err := utils.ResourceCountWhere[Entity](ctx, businessId, "id = ? AND type = ?", input.CustomerId, EntityTypeCustomer)
	if err != nil {
		return err
	}
	if count <= 0 {
		return errors.New("customer not found")
	}
	if input.Amount.IsNegative() {
		return errors.New("order amount cannot be negative")
	}
	for _, line := range input.CostLines {
		count, err := utils.ResourceCountWhere[Entity](ctx, businessId, "id = ? AND type = ?", line.PayeeId, EntityTypePayee)
		if err != nil {
			return err
		}
		if count <= 0 {
			return errors.New("payee not found")
		}
		if line.CostAmount.IsNegative() {
			return errors.New("cost amount cannot be negative")
		}
	}
	return nil
}

func CreateTradeOrder(ctx context.Context, input *NewTradeOrder) (*TradeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	order := TradeOrder{
		BusinessId:  businessId,
		CustomerId:  input.CustomerId,
		OrderDate:   input.OrderDate,
		ItemName:    input.ItemName,
		Description: input.Description,
		FormType:    input.FormType,
		GateName:    input.GateName,
		Quantity:    input.Quantity,
		Price:       input.Price,
		Amount:      input.Amount,
	}
	for _, line := range input.CostLines {
		order.CostLines = append(order.CostLines, OrderCostLine{
			PayeeId:    line.PayeeId,
			Quantity:   line.Quantity,
			CostPrice:  line.CostPrice,
			CostAmount: line.CostAmount,
		})
	}

	seqNo, err := utils.GetSequence[TradeOrder](ctx, businessId)
	if err != nil {
		return nil, err
	}
	order.SequenceNo = decimal.NewFromInt(seqNo)
	order.OrderNumber = "TO-" + fmt.Sprint(seqNo)

	db := config.GetDB()
	tx := db.Begin()
	if err := tx.WithContext(ctx).Create(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	// spawn obligations for the reconciliation engine
	customerObligation := Obligation{
		BusinessId:     businessId,
		EntityId:       order.CustomerId,
		RefType:        ObligationRefTypeOrder,
		RefId:          order.ID,
		ObligationDate: order.OrderDate,
		Description:    order.ItemName,
		Amount:         order.Amount,
		PaidAmount:     decimal.Zero,
	}
	customerObligation.DeriveStatus()
	if err := tx.WithContext(ctx).Create(&customerObligation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, line := range order.CostLines {
		payeeObligation := Obligation{
			BusinessId:     businessId,
			EntityId:       line.PayeeId,
			RefType:        ObligationRefTypeOrderCostLine,
			RefId:          line.ID,
			ObligationDate: order.OrderDate,
			Description:    order.ItemName,
			Amount:         line.CostAmount,
			PaidAmount:     decimal.Zero,
		}
		payeeObligation.DeriveStatus()
		if err := tx.WithContext(ctx).Create(&payeeObligation).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return &order, nil
}

func UpdateTradeOrder(ctx context.Context, id int, input *NewTradeOrder) (*TradeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	order, err := utils.FetchModel[TradeOrder](ctx, businessId, id, "CostLines")
	if err != nil {
		return nil, err
	}

	// refuse once any linked obligation has received an allocation;
	// the caller must delete the payments first
	paidCount, err := orderPaidObligationCount(ctx, businessId, order)
	if err != nil {
		return nil, err
	}
	if paidCount > 0 {
		return nil, errors.New("order has allocated payments; delete the payments first")
	}

	db := config.GetDB()
	tx := db.Begin()

	// replace obligations and cost lines wholesale; nothing is allocated yet
	if err := deleteOrderObligations(ctx, tx, businessId, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("trade_order_id = ?", order.ID).Delete(&OrderCostLine{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	order.CustomerId = input.CustomerId
	order.OrderDate = input.OrderDate
	order.ItemName = input.ItemName
	order.Description = input.Description
	order.FormType = input.FormType
	order.GateName = input.GateName
	order.Quantity = input.Quantity
	order.Price = input.Price
	order.Amount = input.Amount
	order.CostLines = nil
	for _, line := range input.CostLines {
		order.CostLines = append(order.CostLines, OrderCostLine{
			TradeOrderId: order.ID,
			PayeeId:      line.PayeeId,
			Quantity:     line.Quantity,
			CostPrice:    line.CostPrice,
			CostAmount:   line.CostAmount,
		})
	}

	if err := tx.WithContext(ctx).Save(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	customerObligation := Obligation{
		BusinessId:     businessId,
		EntityId:       order.CustomerId,
		RefType:        ObligationRefTypeOrder,
		RefId:          order.ID,
		ObligationDate: order.OrderDate,
		Description:    order.ItemName,
		Amount:         order.Amount,
		PaidAmount:     decimal.Zero,
	}
	customerObligation.DeriveStatus()
	if err := tx.WithContext(ctx).Create(&customerObligation).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	for _, line := range order.CostLines {
		payeeObligation := Obligation{
			BusinessId:     businessId,
			EntityId:       line.PayeeId,
			RefType:        ObligationRefTypeOrderCostLine,
			RefId:          line.ID,
			ObligationDate: order.OrderDate,
			Description:    order.ItemName,
			Amount:         line.CostAmount,
			PaidAmount:     decimal.Zero,
		}
		payeeObligation.DeriveStatus()
		if err := tx.WithContext(ctx).Create(&payeeObligation).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return order, nil
}

func DeleteTradeOrder(ctx context.Context, id int) (*TradeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	order, err := utils.FetchModel[TradeOrder](ctx, businessId, id, "CostLines")
	if err != nil {
		return nil, err
	}

	paidCount, err := orderPaidObligationCount(ctx, businessId, order)
	if err != nil {
		return nil, err
	}
	if paidCount > 0 {
		return nil, errors.New("order has allocated payments; delete the payments first")
	}

	db := config.GetDB()
	tx := db.Begin()
	if err := deleteOrderObligations(ctx, tx, businessId, order); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("trade_order_id = ?", order.ID).Delete(&OrderCostLine{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.WithContext(ctx).Delete(&order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return order, nil
}

func GetTradeOrder(ctx context.Context, id int) (*TradeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[TradeOrder](ctx, businessId, id, "CostLines")
}

func ListTradeOrders(ctx context.Context) ([]*TradeOrder, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchAllModels[TradeOrder](ctx, businessId, "CostLines")
}

func orderPaidObligationCount(ctx context.Context, businessId string, order *TradeOrder) (int64, error) {
	lineIds := make([]int, 0, len(order.CostLines))
	for _, line := range order.CostLines {
		lineIds = append(lineIds, line.ID)
	}
	cond := "((ref_type = ? AND ref_id = ?) OR (ref_type = ? AND ref_id IN ?)) AND paid_amount > 0"
	return utils.ResourceCountWhere[Obligation](ctx, businessId, cond,
		ObligationRefTypeOrder, order.ID, ObligationRefTypeOrderCostLine, lineIds)
}

func deleteOrderObligations(ctx context.Context, tx *gorm.DB, businessId string, order *TradeOrder) error {
	lineIds := make([]int, 0, len(order.CostLines))
	for _, line := range order.CostLines {
		lineIds = append(lineIds, line.ID)
	}
	return tx.WithContext(ctx).
		Where("business_id = ? AND ((ref_type = ? AND ref_id = ?) OR (ref_type = ? AND ref_id IN ?))",
			businessId, ObligationRefTypeOrder, order.ID, ObligationRefTypeOrderCostLine, lineIds).
		Delete(&Obligation{}).Error
}
