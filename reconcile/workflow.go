package reconcile

import (
	"context"
	"fmt"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

const moduleName = "workflow.go"

var tracer = otel.Tracer("tradebooks-reconcile")

// RecordPayment persists a new payment for the entity and allocates it
// across the entity's unpaid obligations, oldest first. The returned
// payment carries the allocation remainder as its UnallocatedAmount.
//
// Obligation writes happen strictly in allocation order and must all
// succeed before the payment row is written, so a reported remainder always
// matches committed obligation state.
func RecordPayment(ctx context.Context, input *models.NewPayment) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "reconcile.RecordPayment")
	defer span.End()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, newValidationError("business id is required")
	}
	if err := validatePaymentInput(ctx, businessId, input); err != nil {
		return nil, err
	}

	// one reconciliation operation at a time per entity
	lock, err := utils.EntityLock(ctx, businessId, input.EntityId, moduleName, "RecordPayment")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	seqNo, err := utils.GetSequence[models.Payment](ctx, businessId)
	if err != nil {
		return nil, &PersistenceError{Op: "GetSequence", Err: err}
	}

	db := config.GetDB()
	tx := db.Begin()
	store := NewGormStore(tx, businessId)

	obligations, err := store.ListObligations(ctx, input.EntityId)
	if err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "ListObligations", Err: err}
	}
	SortObligations(obligations)

	result, err := Allocate(input.Amount, obligations)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	// persist obligation changes in visit order, before the payment's
	// unallocated amount is finalized
	for _, obligation := range result.Changed {
		if err := store.SaveObligation(ctx, obligation); err != nil {
			tx.Rollback()
			config.LogError(logger, moduleName, "RecordPayment", "SaveObligation", obligation.ID, err)
			return nil, &PartialAllocationError{EntityId: input.EntityId, Op: "SaveObligation", Err: err}
		}
	}

	payment := &models.Payment{
		BusinessId:        businessId,
		EntityId:          input.EntityId,
		PaymentDate:       input.PaymentDate,
		Amount:            input.Amount,
		UnallocatedAmount: result.Remainder,
		Description:       input.Description,
		PaymentMethod:     input.PaymentMethod,
		PaymentNumber:     "PMT-" + fmt.Sprint(seqNo),
		SequenceNo:        decimal.NewFromInt(seqNo),
	}
	if err := store.SavePayment(ctx, payment); err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, "RecordPayment", "SavePayment", input.EntityId, err)
		return nil, &PersistenceError{Op: "SavePayment", Err: err}
	}

	payments, err := store.ListPayments(ctx, input.EntityId)
	if err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "ListPayments", Err: err}
	}
	if err := VerifyConservation(input.EntityId, obligations, payments); err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, "RecordPayment", "VerifyConservation", input.EntityId, err)
		return nil, err
	}

	if err := models.WriteReconcileEvent(ctx, tx, businessId, input.EntityId, payment.PaymentDate, payment.ID, payment, nil, models.ReconcileActionCreate); err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "WriteReconcileEvent", Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &PersistenceError{Op: "Commit", Err: err}
	}

	return payment, nil
}

// DeletePayment removes the payment and rebuilds the entity's allocation
// state from scratch. Allocation is an order-dependent fold over the
// payment sequence, so undoing one payment in place is not possible: every
// obligation is reset and the remaining payments are replayed in date
// order. The post-state is identical to the payment never having existed.
func DeletePayment(ctx context.Context, paymentId int) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "reconcile.DeletePayment")
	defer span.End()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, newValidationError("business id is required")
	}

	oldPayment, err := utils.FetchModel[models.Payment](ctx, businessId, paymentId)
	if err != nil {
		return nil, newValidationError("payment not found")
	}

	lock, err := utils.EntityLock(ctx, businessId, oldPayment.EntityId, moduleName, "DeletePayment")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	db := config.GetDB()
	tx := db.Begin()
	store := NewGormStore(tx, businessId)

	if err := store.DeletePayment(ctx, paymentId); err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, "DeletePayment", "DeletePayment", paymentId, err)
		return nil, &PersistenceError{Op: "DeletePayment", Err: err}
	}

	if err := replayEntity(ctx, store, oldPayment.EntityId); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := models.WriteReconcileEvent(ctx, tx, businessId, oldPayment.EntityId, oldPayment.PaymentDate, oldPayment.ID, nil, oldPayment, models.ReconcileActionDelete); err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "WriteReconcileEvent", Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &PersistenceError{Op: "Commit", Err: err}
	}

	return oldPayment, nil
}

// EditPayment applies a new amount/date/method to an existing payment and
// rebuilds the entity's allocation state the same way DeletePayment does,
// with the edited payment replayed in its (possibly new) date-sorted
// position.
func EditPayment(ctx context.Context, paymentId int, input *models.NewPayment) (*models.Payment, error) {
	ctx, span := tracer.Start(ctx, "reconcile.EditPayment")
	defer span.End()
	logger := config.GetLogger()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, newValidationError("business id is required")
	}

	oldPayment, err := utils.FetchModel[models.Payment](ctx, businessId, paymentId)
	if err != nil {
		return nil, newValidationError("payment not found")
	}
	if input.EntityId != oldPayment.EntityId {
		return nil, newValidationError("payment cannot be moved to another entity")
	}
	if err := validatePaymentInput(ctx, businessId, input); err != nil {
		return nil, err
	}

	lock, err := utils.EntityLock(ctx, businessId, oldPayment.EntityId, moduleName, "EditPayment")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	db := config.GetDB()
	tx := db.Begin()
	store := NewGormStore(tx, businessId)

	updated := *oldPayment
	updated.PaymentDate = input.PaymentDate
	updated.Amount = input.Amount
	updated.Description = input.Description
	updated.PaymentMethod = input.PaymentMethod
	updated.UnallocatedAmount = decimal.Zero
	if err := store.SavePayment(ctx, &updated); err != nil {
		tx.Rollback()
		config.LogError(logger, moduleName, "EditPayment", "SavePayment", paymentId, err)
		return nil, &PersistenceError{Op: "SavePayment", Err: err}
	}

	if err := replayEntity(ctx, store, oldPayment.EntityId); err != nil {
		tx.Rollback()
		return nil, err
	}

	// re-read after replay so the returned payment carries the replayed
	// unallocated amount
	result := updated
	payments, err := store.ListPayments(ctx, oldPayment.EntityId)
	if err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "ListPayments", Err: err}
	}
	for _, p := range payments {
		if p.ID == paymentId {
			result = *p
			break
		}
	}

	if err := models.WriteReconcileEvent(ctx, tx, businessId, oldPayment.EntityId, result.PaymentDate, result.ID, result, oldPayment, models.ReconcileActionUpdate); err != nil {
		tx.Rollback()
		return nil, &PersistenceError{Op: "WriteReconcileEvent", Err: err}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, &PersistenceError{Op: "Commit", Err: err}
	}

	return &result, nil
}

// RebuildEntity re-runs the full reset-and-replay for one entity from
// persisted state. This is the documented recovery path after a
// PartialAllocationError, and what the maintenance CLI runs.
func RebuildEntity(ctx context.Context, entityId int) error {
	ctx, span := tracer.Start(ctx, "reconcile.RebuildEntity")
	defer span.End()

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return newValidationError("business id is required")
	}
	if err := utils.ValidateResourceId[models.Entity](ctx, businessId, entityId); err != nil {
		return newValidationError("entity not found")
	}

	lock, err := utils.EntityLock(ctx, businessId, entityId, moduleName, "RebuildEntity")
	if err != nil {
		return err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	db := config.GetDB()
	tx := db.Begin()
	store := NewGormStore(tx, businessId)

	if err := replayEntity(ctx, store, entityId); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return &PersistenceError{Op: "Commit", Err: err}
	}
	return nil
}

// replayEntity resets every obligation of the entity and replays all of its
// payments in date order on the given store, persisting each step
// sequentially, then verifies conservation. Must run inside the caller's
// transaction.
func replayEntity(ctx context.Context, store Store, entityId int) error {
	logger := config.GetLogger()

	obligations, err := store.ListObligations(ctx, entityId)
	if err != nil {
		return &PersistenceError{Op: "ListObligations", Err: err}
	}
	payments, err := store.ListPayments(ctx, entityId)
	if err != nil {
		return &PersistenceError{Op: "ListPayments", Err: err}
	}

	for _, obligation := range obligations {
		obligation.ResetAllocation()
		if err := store.SaveObligation(ctx, obligation); err != nil {
			config.LogError(logger, moduleName, "replayEntity", "ResetObligation", obligation.ID, err)
			return &PartialAllocationError{EntityId: entityId, Op: "ResetObligation", Err: err}
		}
	}

	SortObligations(obligations)
	SortPayments(payments)

	for _, payment := range payments {
		result, err := Allocate(payment.Amount, obligations)
		if err != nil {
			return err
		}
		for _, obligation := range result.Changed {
			if err := store.SaveObligation(ctx, obligation); err != nil {
				config.LogError(logger, moduleName, "replayEntity", "SaveObligation", obligation.ID, err)
				return &PartialAllocationError{EntityId: entityId, Op: "SaveObligation", Err: err}
			}
		}
		payment.UnallocatedAmount = result.Remainder
		if err := store.SavePayment(ctx, payment); err != nil {
			config.LogError(logger, moduleName, "replayEntity", "SavePayment", payment.ID, err)
			return &PartialAllocationError{EntityId: entityId, Op: "SavePayment", Err: err}
		}
	}

	if err := VerifyConservation(entityId, obligations, payments); err != nil {
		config.LogError(logger, moduleName, "replayEntity", "VerifyConservation", entityId, err)
		return err
	}
	return nil
}

func validatePaymentInput(ctx context.Context, businessId string, input *models.NewPayment) error {
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return newValidationError("payment amount must be positive")
	}
	if input.PaymentDate.IsZero() {
		return newValidationError("payment date is required")
	}
	if _, err := models.ParsePaymentMethod(string(input.PaymentMethod)); err != nil {
		return newValidationError("invalid payment method")
	}
	if err := utils.ValidateResourceId[models.Entity](ctx, businessId, input.EntityId); err != nil {
		return newValidationError("entity not found")
	}
	return nil
}
