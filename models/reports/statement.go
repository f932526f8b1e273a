package reports

import (
	"context"
	"errors"
	"sort"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/shopspring/decimal"
)

// StatementRow is one line of an entity statement: either an obligation
// (amount owed) or a payment (amount settled), in date order with a
// running balance.
type StatementRow struct {
	Date        time.Time       `json:"date"`
	Kind        string          `json:"kind"` // Obligation | Payment
	RefType     string          `json:"ref_type,omitempty"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	PaidAmount  decimal.Decimal `json:"paid_amount"`
	Unallocated decimal.Decimal `json:"unallocated_amount"`
	Balance     decimal.Decimal `json:"balance"`
}

type EntityStatement struct {
	EntityId         int             `json:"entity_id"`
	EntityName       string          `json:"entity_name"`
	EntityType       string          `json:"entity_type"`
	FromDate         time.Time       `json:"from_date"`
	ToDate           time.Time       `json:"to_date"`
	Rows             []StatementRow  `json:"rows"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	TotalUnallocated decimal.Decimal `json:"total_unallocated"`
}

type statementObligationRow struct {
	ObligationDate time.Time
	RefType        string
	Reference      string
	Description    string
	Amount         decimal.Decimal
	PaidAmount     decimal.Decimal
}

type statementPaymentRow struct {
	PaymentDate       time.Time
	PaymentNumber     string
	Description       string
	Amount            decimal.Decimal
	UnallocatedAmount decimal.Decimal
}

// GetEntityStatement builds the statement for one customer or payee over
// the given date range. Rows are date ascending; the running balance adds
// obligation amounts and subtracts payment amounts, so the final balance of
// a fully settled range is zero plus any unallocated remainder.
func GetEntityStatement(ctx context.Context, entityId int, fromDate time.Time, toDate time.Time) (*EntityStatement, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	entity, err := utils.FetchModel[models.Entity](ctx, businessId, entityId)
	if err != nil {
		return nil, errors.New("entity not found")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	obligationSql := `
SELECT
    obligations.obligation_date,
    obligations.ref_type,
    CASE obligations.ref_type
        WHEN 'Order' THEN trade_orders.order_number
        ELSE CONCAT(trade_orders.order_number, '/cost')
    END AS reference,
    obligations.description,
    obligations.amount,
    obligations.paid_amount
FROM
    obligations
        LEFT JOIN order_cost_lines ON obligations.ref_type = 'OrderCostLine'
            AND order_cost_lines.id = obligations.ref_id
        LEFT JOIN trade_orders ON trade_orders.id = CASE obligations.ref_type
            WHEN 'Order' THEN obligations.ref_id
            ELSE order_cost_lines.trade_order_id
        END
WHERE
    obligations.business_id = @businessId
        AND obligations.entity_id = @entityId
        AND obligations.obligation_date BETWEEN @fromDate AND @toDate
ORDER BY obligations.obligation_date, obligations.id;
`

	paymentSql := `
SELECT
    payment_date, payment_number, description, amount, unallocated_amount
FROM
    payments
WHERE
    business_id = @businessId
        AND entity_id = @entityId
        AND payment_date BETWEEN @fromDate AND @toDate
ORDER BY payment_date, id;
`

	params := map[string]interface{}{
		"businessId": businessId,
		"entityId":   entityId,
		"fromDate":   fromDate,
		"toDate":     toDate,
	}

	db := config.GetDB()
	var obligationRows []*statementObligationRow
	if err := db.WithContext(ctx).Raw(obligationSql, params).Scan(&obligationRows).Error; err != nil {
		return nil, err
	}
	var paymentRows []*statementPaymentRow
	if err := db.WithContext(ctx).Raw(paymentSql, params).Scan(&paymentRows).Error; err != nil {
		return nil, err
	}

	statement := buildEntityStatement(entity, fromDate, toDate, obligationRows, paymentRows)
	return statement, nil
}

// buildEntityStatement merges fetched obligation and payment rows into the
// dated statement with running balance and range totals.
func buildEntityStatement(entity *models.Entity, fromDate, toDate time.Time,
	obligationRows []*statementObligationRow, paymentRows []*statementPaymentRow) *EntityStatement {

	statement := &EntityStatement{
		EntityId:   entity.ID,
		EntityName: entity.Name,
		EntityType: string(entity.Type),
		FromDate:   fromDate,
		ToDate:     toDate,
	}

	rows := make([]StatementRow, 0, len(obligationRows)+len(paymentRows))
	for _, o := range obligationRows {
		rows = append(rows, StatementRow{
			Date:        o.ObligationDate,
			Kind:        "Obligation",
			RefType:     o.RefType,
			Reference:   o.Reference,
			Description: o.Description,
			Amount:      o.Amount,
			PaidAmount:  o.PaidAmount,
		})
		statement.TotalAmount = statement.TotalAmount.Add(o.Amount)
		statement.TotalPaid = statement.TotalPaid.Add(o.PaidAmount)
	}
	for _, p := range paymentRows {
		rows = append(rows, StatementRow{
			Date:        p.PaymentDate,
			Kind:        "Payment",
			Reference:   p.PaymentNumber,
			Description: p.Description,
			Amount:      p.Amount,
			Unallocated: p.UnallocatedAmount,
		})
		statement.TotalUnallocated = statement.TotalUnallocated.Add(p.UnallocatedAmount)
	}

	// obligations sort before payments on the same date, matching the
	// order the allocation pass consumes them
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].Kind == "Obligation" && rows[j].Kind == "Payment"
	})

	balance := decimal.Zero
	for i := range rows {
		if rows[i].Kind == "Obligation" {
			balance = balance.Add(rows[i].Amount)
		} else {
			balance = balance.Sub(rows[i].Amount)
		}
		rows[i].Balance = balance
	}

	statement.Rows = rows
	statement.RemainingBalance = statement.TotalAmount.Sub(statement.TotalPaid)
	return statement
}

type ProfitLossReport struct {
	FromDate        time.Time       `json:"from_date"`
	ToDate          time.Time       `json:"to_date"`
	OrderCount      int             `json:"order_count"`
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	NetProfit       decimal.Decimal `json:"net_profit"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`
}

// GetProfitLossReport aggregates order revenue against cost-line totals for
// orders dated in the range. Margin is net over revenue as a percentage,
// zero when there is no revenue.
func GetProfitLossReport(ctx context.Context, fromDate time.Time, toDate time.Time) (*ProfitLossReport, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	if toDate.Before(fromDate) {
		return nil, errors.New("to date must not be before from date")
	}

	sql := `
SELECT
    COUNT(DISTINCT trade_orders.id) AS order_count,
    COALESCE(SUM(trade_orders.amount), 0) AS total_revenue,
    COALESCE((SELECT SUM(order_cost_lines.cost_amount)
        FROM order_cost_lines
            JOIN trade_orders t2 ON t2.id = order_cost_lines.trade_order_id
        WHERE t2.business_id = @businessId
            AND t2.order_date BETWEEN @fromDate AND @toDate), 0) AS total_cost
FROM
    trade_orders
WHERE
    trade_orders.business_id = @businessId
        AND trade_orders.order_date BETWEEN @fromDate AND @toDate;
`

	var report ProfitLossReport
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, map[string]interface{}{
		"businessId": businessId,
		"fromDate":   fromDate,
		"toDate":     toDate,
	}).Scan(&report).Error; err != nil {
		return nil, err
	}

	report.FromDate = fromDate
	report.ToDate = toDate
	report.NetProfit = report.TotalRevenue.Sub(report.TotalCost)
	if report.TotalRevenue.IsPositive() {
		report.ProfitMarginPct = report.NetProfit.
			Div(report.TotalRevenue).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return &report, nil
}
