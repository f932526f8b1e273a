package reconcile

import (
	"context"

	"bitbucket.org/mmdatafocus/tradebooks_backend/models"
	"gorm.io/gorm"
)

// Store is the persistence contract the engine consumes. The engine holds
// no ambient database state; callers hand it a Store bound to whatever
// transaction scope they need.
type Store interface {
	ListObligations(ctx context.Context, entityId int) ([]*models.Obligation, error)
	ListPayments(ctx context.Context, entityId int) ([]*models.Payment, error)
	SaveObligation(ctx context.Context, obligation *models.Obligation) error
	SavePayment(ctx context.Context, payment *models.Payment) error
	DeletePayment(ctx context.Context, paymentId int) error
}

// GormStore binds the Store contract to a gorm transaction.
type GormStore struct {
	tx         *gorm.DB
	businessId string
}

func NewGormStore(tx *gorm.DB, businessId string) *GormStore {
	return &GormStore{tx: tx, businessId: businessId}
}

func (s *GormStore) ListObligations(ctx context.Context, entityId int) ([]*models.Obligation, error) {
	var results []*models.Obligation
	err := s.tx.WithContext(ctx).
		Where("business_id = ? AND entity_id = ?", s.businessId, entityId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) ListPayments(ctx context.Context, entityId int) ([]*models.Payment, error) {
	var results []*models.Payment
	err := s.tx.WithContext(ctx).
		Where("business_id = ? AND entity_id = ?", s.businessId, entityId).
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (s *GormStore) SaveObligation(ctx context.Context, obligation *models.Obligation) error {
	return s.tx.WithContext(ctx).Save(obligation).Error
}

func (s *GormStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	return s.tx.WithContext(ctx).Save(payment).Error
}

func (s *GormStore) DeletePayment(ctx context.Context, paymentId int) error {
	res := s.tx.WithContext(ctx).
		Where("business_id = ?", s.businessId).
		Delete(&models.Payment{}, paymentId)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
