package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"bitbucket.org/mmdatafocus/tradebooks_backend/utils"
)

// Entity is the unit of reconciliation scope: a customer we bill or a payee
// we owe cost lines to. Obligations and payments are both keyed by entity.
type Entity struct {
	ID         int        `gorm:"primary_key" json:"id"`
	BusinessId string     `gorm:"index;not null;uniqueIndex:uniq_entity_name" json:"business_id" binding:"required"`
	Name       string     `gorm:"size:100;not null;uniqueIndex:uniq_entity_name" json:"name" binding:"required"`
	Type       EntityType `gorm:"type:enum('Customer','Payee');not null;index" json:"type" binding:"required"`
	Phone      string     `gorm:"size:20" json:"phone"`
	Notes      string     `gorm:"type:text" json:"notes"`
	IsActive   *bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt  time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewEntity struct {
	Name  string     `json:"name" binding:"required"`
	Type  EntityType `json:"type" binding:"required"`
	Phone string     `json:"phone"`
	Notes string     `json:"notes"`
}

func (input *NewEntity) validate(ctx context.Context, businessId string, id int) error {
	if id > 0 {
		if err := utils.ValidateResourceId[Entity](ctx, businessId, id); err != nil {
			return err
		}
	}
	if _, err := ParseEntityType(string(input.Type)); err != nil {
		return err
	}
	// validate unique name within type
	if err := utils.ValidateUnique[Entity](ctx, businessId, "name", input.Name, id); err != nil {
		return err
	}
	return nil
}

func CreateEntity(ctx context.Context, input *NewEntity) (*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	entity := Entity{
		BusinessId: businessId,
		Name:       input.Name,
		Type:       input.Type,
		Phone:      input.Phone,
		Notes:      input.Notes,
		IsActive:   utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&entity).Error; err != nil {
		// ValidateUnique raced with another writer; the index is the backstop
		if utils.IsDuplicateKeyErr(err) {
			return nil, errors.New("duplicate name")
		}
		return nil, err
	}

	// invalidate cached list
	if err := utils.RemoveRedisList[Entity](businessId); err != nil {
		return nil, err
	}

	return &entity, nil
}

func UpdateEntity(ctx context.Context, id int, input *NewEntity) (*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	entity, err := utils.FetchModel[Entity](ctx, businessId, id)
	if err != nil {
		return nil, err
	}
	// entity type is fixed at creation; obligations/payments already reference it
	if entity.Type != input.Type {
		return nil, errors.New("entity type cannot be changed")
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(&entity).Updates(map[string]interface{}{
		"Name":  input.Name,
		"Phone": input.Phone,
		"Notes": input.Notes,
	}).Error
	if err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisList[Entity](businessId); err != nil {
		return nil, err
	}

	return entity, nil
}

func DeleteEntity(ctx context.Context, id int) (*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	entity, err := utils.FetchModel[Entity](ctx, businessId, id)
	if err != nil {
		return nil, err
	}

	// don't delete if used in transactions
	obligationCount, err := utils.ResourceCountWhere[Obligation](ctx, businessId, "entity_id = ?", id)
	if err != nil {
		return nil, err
	}
	paymentCount, err := utils.ResourceCountWhere[Payment](ctx, businessId, "entity_id = ?", id)
	if err != nil {
		return nil, err
	}
	if obligationCount > 0 || paymentCount > 0 {
		return nil, errors.New("entity is used in transactions")
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(&entity).Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisList[Entity](businessId); err != nil {
		return nil, err
	}

	return entity, nil
}

func GetEntity(ctx context.Context, id int) (*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Entity](ctx, businessId, id)
}

// ListEntities reads the cached entity list, falling back to db, caching the result.
func ListEntities(ctx context.Context) ([]*Entity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.RetrieveRedisList[Entity](businessId)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results, err = utils.FetchAllModels[Entity](ctx, businessId)
		if err != nil {
			return nil, err
		}
		if err := utils.StoreRedisList[Entity](results, businessId); err != nil {
			return nil, err
		}
	}

	return results, nil
}
