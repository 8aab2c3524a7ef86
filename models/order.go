package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the canonical mirror of a remote commerce order. Mirrors are
// upserted into the content repository by the order syncer; they are never
// authored or deleted from the dashboard side.
type Order struct {
	Number          string          `json:"number"`
	RemoteNumericId int64           `json:"remoteId"`
	Tenant          PlatformTenant  `json:"tenant"`
	Status          OrderStatus     `json:"status"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	Origin          OrderOrigin     `json:"origin"`
	CustomerName    string          `json:"customerName"`
	Total           decimal.Decimal `json:"total"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Discount        decimal.Decimal `json:"discount"`
	PlacedAt        *time.Time      `json:"placedAt,omitempty"`
	LineItems       []OrderLineItem `json:"lineItems"`

	// RawRemotePayload is the untouched remote order, kept for audit.
	RawRemotePayload json.RawMessage `json:"raw,omitempty"`
}

type OrderLineItem struct {
	ProductRef string          `json:"productRef"`
	Sku        string          `json:"sku"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	LineTotal  decimal.Decimal `json:"lineTotal"`
}
