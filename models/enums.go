package models

import "strings"

// PlatformTenant identifies which storefront instance a record belongs to.
type PlatformTenant string

const (
	TenantWeb PlatformTenant = "web"
	TenantPOS PlatformTenant = "pos"
)

func ParseTenant(raw string) (PlatformTenant, bool) {
	switch PlatformTenant(strings.ToLower(strings.TrimSpace(raw))) {
	case TenantWeb:
		return TenantWeb, true
	case TenantPOS:
		return TenantPOS, true
	}
	return "", false
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusOnHold     OrderStatus = "on-hold"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
	OrderStatusFailed     OrderStatus = "failed"
)

var orderStatusTable = map[string]OrderStatus{
	"pending":    OrderStatusPending,
	"processing": OrderStatusProcessing,
	"on-hold":    OrderStatusOnHold,
	"completed":  OrderStatusCompleted,
	"cancelled":  OrderStatusCancelled,
	"canceled":   OrderStatusCancelled,
	"refunded":   OrderStatusRefunded,
	"failed":     OrderStatusFailed,
}

// NormalizeOrderStatus maps a remote status string onto the local enum.
// Unrecognized values fall back to pending rather than failing the record.
func NormalizeOrderStatus(raw string) OrderStatus {
	if s, ok := orderStatusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return OrderStatusPending
}

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cash-on-delivery"
	PaymentMethodBankTransfer PaymentMethod = "bank-transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodWallet       PaymentMethod = "wallet"
	PaymentMethodOther        PaymentMethod = "other"
)

var paymentMethodTable = map[string]PaymentMethod{
	"cod":      PaymentMethodCOD,
	"bacs":     PaymentMethodBankTransfer,
	"cheque":   PaymentMethodOther,
	"stripe":   PaymentMethodCard,
	"card":     PaymentMethodCard,
	"kbzpay":   PaymentMethodWallet,
	"wavepay":  PaymentMethodWallet,
	"paypal":   PaymentMethodWallet,
	"transfer": PaymentMethodBankTransfer,
}

func NormalizePaymentMethod(raw string) PaymentMethod {
	if m, ok := paymentMethodTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return m
	}
	return PaymentMethodOther
}

type OrderOrigin string

const (
	OriginWeb     OrderOrigin = "web"
	OriginPOS     OrderOrigin = "pos"
	OriginAdmin   OrderOrigin = "admin"
	OriginUnknown OrderOrigin = "unknown"
)

var orderOriginTable = map[string]OrderOrigin{
	"web":      OriginWeb,
	"checkout": OriginWeb,
	"store":    OriginWeb,
	"pos":      OriginPOS,
	"admin":    OriginAdmin,
	"rest-api": OriginAdmin,
}

func NormalizeOrderOrigin(raw string) OrderOrigin {
	if o, ok := orderOriginTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return o
	}
	return OriginUnknown
}

const (
	SyncRunStatusQueued  = "queued"
	SyncRunStatusRunning = "running"
	SyncRunStatusSuccess = "success"
	SyncRunStatusFailed  = "failed"
	SyncRunStatusPartial = "partial"
)

const (
	SyncTriggeredManual = "manual"
	SyncTriggeredSystem = "system"
)
