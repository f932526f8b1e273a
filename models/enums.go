package models

import (
	"errors"
)

type EntityType string

const (
	EntityTypeCustomer EntityType = "Customer"
	EntityTypePayee    EntityType = "Payee"
)

func ParseEntityType(s string) (EntityType, error) {
	switch s {
	case "Customer":
		return EntityTypeCustomer, nil
	case "Payee":
		return EntityTypePayee, nil
	default:
		return "", errors.New("invalid entity type")
	}
}

type ObligationStatus string

const (
	ObligationStatusUnpaid ObligationStatus = "Unpaid"
	ObligationStatusPaid   ObligationStatus = "Paid"
)

// ObligationRefType names the order-entry record an obligation was derived
// from. Customer obligations come from the order itself, payee obligations
// from the order's cost lines.
type ObligationRefType string

const (
	ObligationRefTypeOrder         ObligationRefType = "Order"
	ObligationRefTypeOrderCostLine ObligationRefType = "OrderCostLine"
)

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "Cash"
	PaymentMethodKPay         PaymentMethod = "KPay"
	PaymentMethodWavePay      PaymentMethod = "WavePay"
	PaymentMethodBankTransfer PaymentMethod = "BankTransfer"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch s {
	case "Cash":
		return PaymentMethodCash, nil
	case "KPay":
		return PaymentMethodKPay, nil
	case "WavePay":
		return PaymentMethodWavePay, nil
	case "BankTransfer":
		return PaymentMethodBankTransfer, nil
	default:
		return "", errors.New("invalid payment method")
	}
}

type ReconcileAction string

const (
	ReconcileActionCreate ReconcileAction = "Create"
	ReconcileActionUpdate ReconcileAction = "Update"
	ReconcileActionDelete ReconcileAction = "Delete"
)
