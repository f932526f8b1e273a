package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/mmdatafocus/tradebooks_backend/config"
	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func UniqueSlice[T comparable](slice []T) []T {
	keys := make(map[T]bool)
	list := []T{}
	for _, entry := range slice {
		if _, value := keys[entry]; !value {
			keys[entry] = true
			list = append(list, entry)
		}
	}
	return list
}

func ParseDecimal(value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(value)
}

// ParseDateOnly parses a calendar date in the wire format the UI sends (2006-01-02).
func ParseDateOnly(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

// ProcessValidationErrors flattens binding failures into a field -> rule map
// for 400 responses. The caller must have checked the error is a
// validator.ValidationErrors.
func ProcessValidationErrors(err error) map[string]string {

	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)

	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}

	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// EntityLock obtains the per-entity reconciliation lock. Only one
// reconciliation operation (add/edit/delete payment) may run at a time per
// entity; the caller must Release the returned lock when the operation's
// transaction is finished.
func EntityLock(ctx context.Context, businessId string, entityId int, moduleName string, functionName string) (*redislock.Lock, error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", entityId, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	lockKey := fmt.Sprintf("reconcile:%s:%d", businessId, entityId)
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain lock for entity", entityId, err)
		return nil, errors.New("could not obtain lock for entity")
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining lock for entity", entityId, err)
		return nil, err
	}
	return lock, nil
}
