package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Outbox publish states.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// ReconcileEventRecord is the outbox row written inside the reconciliation
// transaction. The dispatcher publishes it to Pub/Sub after commit, so
// consumers never observe an event for state that did not commit.
type ReconcileEventRecord struct {
	ID               int             `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	BusinessId       string          `gorm:"size:64;not null;index" json:"business_id"`
	EntityId         int             `gorm:"index;not null" json:"entity_id"`
	PaymentDate      time.Time       `gorm:"index;not null" json:"payment_date"`
	ReferenceId      int             `json:"reference_id"`
	Action           ReconcileAction `gorm:"type:enum('Create','Update','Delete')" json:"action"`
	OldObj           []byte          `gorm:"type:blob" json:"old_obj"`
	NewObj           []byte          `gorm:"type:blob" json:"new_obj"`
	PublishStatus    string          `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"`
	PublishedAt      *time.Time      `gorm:"index" json:"published_at"`
	PubSubMessageId  *string         `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int             `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time      `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LastPublishError *string         `gorm:"type:text" json:"last_publish_error"`
	LockedAt         *time.Time      `gorm:"index" json:"locked_at"`
	LockedBy         *string         `gorm:"size:64" json:"locked_by"`
	CorrelationId    string          `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// WriteReconcileEvent appends an outbox row on the caller's transaction.
func WriteReconcileEvent(ctx context.Context, db *gorm.DB, businessId string, entityId int, paymentDate time.Time, refId int, obj interface{}, oldObj interface{}, action ReconcileAction) error {

	var objInByte []byte
	var oldObjInByte []byte
	var err error

	if action == ReconcileActionCreate || action == ReconcileActionUpdate {
		objInByte, err = json.Marshal(obj)
		if err != nil {
			return err
		}
	}
	if action == ReconcileActionUpdate || action == ReconcileActionDelete {
		oldObjInByte, err = json.Marshal(oldObj)
		if err != nil {
			return err
		}
	}

	record := ReconcileEventRecord{
		BusinessId:    businessId,
		EntityId:      entityId,
		PaymentDate:   paymentDate,
		ReferenceId:   refId,
		Action:        action,
		NewObj:        objInByte,
		OldObj:        oldObjInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

// ConvertToReconcileEvent maps an outbox row to the published envelope.
func ConvertToReconcileEvent(record ReconcileEventRecord) config.ReconcileEvent {
	return config.ReconcileEvent{
		ID:            record.ID,
		BusinessId:    record.BusinessId,
		EntityId:      record.EntityId,
		PaymentDate:   record.PaymentDate,
		ReferenceId:   record.ReferenceId,
		Action:        string(record.Action),
		OldObj:        record.OldObj,
		NewObj:        record.NewObj,
		CorrelationId: record.CorrelationId,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
